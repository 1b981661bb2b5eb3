// Package server implements the stdio language server for sugared source
// buffers. It runs the engine's full pipeline on every edit and publishes
// the batched diagnostics; hover explains markers, slots and bindings.
package server

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/slotlang/slotc/compiler"
	"github.com/slotlang/slotc/manifest"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "slotc-lsp"

// LspServer serves editor features for .sjs buffers.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → open document state

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// document is one open buffer with its latest analysis.
type document struct {
	text string

	// file is the resolved input tree, kept for hover and navigation.
	// It is nil while the buffer fails to parse or resolve.
	file *compiler.File

	// allowSharing mirrors the project manifest's dialect toggle,
	// looked up when the document opens.
	allowSharing bool
}

// NewLSP creates a new language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: compiler.EngineVersion,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "slotc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	diags := s.update(uri, text, sharingAllowed(string(uri)))
	s.publishDiagnostics(ctx, uri, diags)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	allow := true
	if doc, ok := s.docs[string(uri)]; ok {
		allow = doc.allowSharing
	}
	s.mu.Unlock()

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			diags := s.update(uri, whole.Text, allow)
			s.publishDiagnostics(ctx, uri, diags)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update reanalyzes a buffer, stores the result and returns the batch.
func (s *LspServer) update(uri protocol.DocumentUri, text string, allowSharing bool) compiler.DiagnosticList {
	file, diags := analyzeUnit(string(uri), text, allowSharing)

	s.mu.Lock()
	s.docs[string(uri)] = &document{text: text, file: file, allowSharing: allowSharing}
	s.mu.Unlock()

	return diags
}

func (s *LspServer) doc(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// analyzeUnit runs the pipeline on one buffer. The returned tree is the
// resolved input (markers intact, bindings attached), usable for hover and
// navigation; it is nil until the buffer parses and resolves.
func analyzeUnit(path, text string, allowSharing bool) (*compiler.File, compiler.DiagnosticList) {
	f, diags := compiler.Parse(path, text)
	if len(diags) > 0 {
		return nil, diags
	}
	if diags := compiler.Resolve(f); len(diags) > 0 {
		return nil, diags
	}
	if !allowSharing {
		if diags := compiler.CheckSharing(f); len(diags) > 0 {
			return f, diags
		}
	}
	_, diags = compiler.Rewrite(f)
	return f, diags
}

// sharingAllowed reads the dialect toggle from the project manifest
// governing the document, defaulting to allowed.
func sharingAllowed(uri string) bool {
	path := strings.TrimPrefix(uri, "file://")
	if !filepath.IsAbs(path) {
		return true
	}
	m, err := manifest.FindAndLoad(filepath.Dir(path))
	if err != nil || m == nil {
		return true
	}
	return m.Dialect.AllowSharing
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, diags compiler.DiagnosticList) {
	s.mu.Lock()
	text := ""
	if doc, ok := s.docs[string(uri)]; ok {
		text = doc.text
	}
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: lspDiagnostics(diags, text),
	})
}

// lspDiagnostics converts an engine batch to protocol diagnostics. Engine
// positions are 1-based with byte columns; ranges extend through the token
// characters at the position so editors underline a visible span.
func lspDiagnostics(diags compiler.DiagnosticList, text string) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range diags {
		start := lspPos(d.Pos)
		end := protocol.Position{
			Line:      start.Line,
			Character: start.Character + uint32(tokenLenAt(text, d.Pos.Offset)),
		}
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("%s: %s", d.Kind, d.Msg),
		})
	}
	return out
}

func lspPos(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: uint32(line), Character: uint32(col)}
}

func lspRange(sp compiler.Span) protocol.Range {
	return protocol.Range{Start: lspPos(sp.Start), End: lspPos(sp.End)}
}

// tokenLenAt measures the identifier-ish run starting at off, minimum 1.
// Marker and private sigils count so their diagnostics underline the sigil.
func tokenLenAt(text string, off int) int {
	if off < 0 || off >= len(text) {
		return 1
	}
	n := 0
	for off+n < len(text) {
		ch := rune(text[off+n])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '&' || ch == '#' {
			n++
		} else {
			break
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.doc(params.TextDocument.URI)
	if doc == nil || doc.file == nil {
		return nil, nil
	}

	prefix, afterDot := completionContext(doc.text, params.Position)
	if prefix == "" && !afterDot {
		return nil, nil
	}

	items := complete(doc.file, prefix, afterDot)
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.doc(params.TextDocument.URI)
	if doc == nil || doc.file == nil {
		return nil, nil
	}

	off := offsetAt(doc.text, params.Position)
	return hoverAt(doc.file, off), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.doc(params.TextDocument.URI)
	if doc == nil || doc.file == nil {
		return nil, nil
	}

	off := offsetAt(doc.text, params.Position)
	id := nodeAt(doc.file, off).ident
	if id == nil || id.Binding == nil || id.Binding.Decl == nil {
		return nil, nil
	}

	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: lspRange(id.Binding.Decl.Span()),
	}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.doc(params.TextDocument.URI)
	if doc == nil || doc.file == nil {
		return nil, nil
	}

	off := offsetAt(doc.text, params.Position)
	id := nodeAt(doc.file, off).ident
	if id == nil || id.Binding == nil {
		return nil, nil
	}

	return references(doc.file, params.TextDocument.URI, id), nil
}

// references lists every occurrence of the identifier's binding, the
// declaring one included.
func references(f *compiler.File, uri protocol.DocumentUri, id *compiler.Ident) []protocol.Location {
	var locations []protocol.Location
	compiler.Walk(f, func(n compiler.Node) bool {
		if occ, ok := n.(*compiler.Ident); ok && occ.Binding == id.Binding {
			locations = append(locations, protocol.Location{
				URI:   uri,
				Range: lspRange(occ.Span()),
			})
		}
		return true
	})
	return locations
}

// --- Node lookup ---

// hoverNode carries the innermost nodes of interest covering an offset.
type hoverNode struct {
	marker *compiler.ReifyExpr
	ident  *compiler.Ident
	expose *compiler.ExposeDecl
	imp    *compiler.ImportDecl
}

// nodeAt walks the tree pruning subtrees that do not cover off. Children
// are visited after their parent, so the last hit of each kind is the
// innermost one.
func nodeAt(f *compiler.File, off int) hoverNode {
	var h hoverNode
	compiler.Walk(f, func(n compiler.Node) bool {
		if n == nil {
			return true
		}
		if _, isRoot := n.(*compiler.File); !isRoot {
			sp := n.Span()
			if off < sp.Start.Offset || off >= sp.End.Offset {
				return false
			}
		}
		switch n := n.(type) {
		case *compiler.ReifyExpr:
			h.marker = n
		case *compiler.Ident:
			h.ident = n
		case *compiler.ExposeDecl:
			h.expose = n
		case *compiler.ImportDecl:
			h.imp = n
		}
		return true
	})
	return h
}

// owningClass finds the class declaring a given member node.
func owningClass(f *compiler.File, member compiler.ClassMember) *compiler.ClassDecl {
	var owner *compiler.ClassDecl
	compiler.Walk(f, func(n compiler.Node) bool {
		if cls, ok := n.(*compiler.ClassDecl); ok {
			for _, m := range cls.Members {
				if m == member {
					owner = cls
				}
			}
		}
		return true
	})
	return owner
}

// --- Hover ---

func hoverAt(f *compiler.File, off int) *protocol.Hover {
	h := nodeAt(f, off)

	var b strings.Builder
	switch {
	case h.marker != nil:
		markerHover(&b, h.marker)
	case h.expose != nil:
		exposeHover(&b, f, h.expose)
	case h.imp != nil:
		importHover(&b, h.imp)
	case h.ident != nil:
		identHover(&b, h.ident)
	}
	if b.Len() == 0 {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func markerHover(b *strings.Builder, m *compiler.ReifyExpr) {
	if m.Unbound {
		name := "?"
		if p, ok := m.Target.(*compiler.PrivateExpr); ok {
			name = p.Name
		}
		fmt.Fprintf(b, "**&&this.#%s**\n\n", name)
		fmt.Fprintf(b, "Unbound accessor pair for `#%s`.\n\n", name)
		b.WriteString("Shape: `{ peek(o), poke(o, v) }`. The receiver is passed explicitly ")
		b.WriteString("and must carry the declaring class's brand.")
		return
	}

	switch t := m.Target.(type) {
	case *compiler.Ident:
		if t.Binding != nil && t.Binding.Reified {
			fmt.Fprintf(b, "**&%s**\n\n", t.Name)
			fmt.Fprintf(b, "The slot backing the reified binding `%s`. ", t.Name)
			b.WriteString("Every reification of the binding yields this same accessor pair.\n\n")
			writeCapabilities(b, !t.Binding.Const)
			return
		}
		fmt.Fprintf(b, "**&%s**\n\n", t.Name)
		scope := "ambient"
		poke := true
		if t.Binding != nil {
			scope = t.Binding.Scope.String()
			poke = !t.Binding.Const
		}
		fmt.Fprintf(b, "Slot over the %s binding `%s`.\n\n", scope, t.Name)
		writeCapabilities(b, poke)
	case *compiler.PrivateExpr:
		if t.Imported {
			fmt.Fprintf(b, "**&%s**\n\n", compiler.Print(m.Target))
			fmt.Fprintf(b, "Slot over the imported private field `#%s`", t.Name)
			if t.Origin != nil {
				fmt.Fprintf(b, " exposed by `%s`", t.Origin.Name.Name)
			}
			b.WriteString(". The receiver is captured once when the marker evaluates.\n\n")
			writeCapabilities(b, true)
			return
		}
		fmt.Fprintf(b, "**&%s**\n\n", compiler.Print(m.Target))
		fmt.Fprintf(b, "Slot over the private field `#%s`", t.Name)
		if t.Origin != nil {
			fmt.Fprintf(b, " of class `%s`", t.Origin.Name.Name)
		}
		b.WriteString(".\n\n")
		writeCapabilities(b, true)
	default:
		fmt.Fprintf(b, "**&%s**\n\n", compiler.Print(m.Target))
		fmt.Fprintf(b, "Slot over the location `%s`. ", compiler.Print(m.Target))
		b.WriteString("Addressing subexpressions are captured once when the marker evaluates.\n\n")
		writeCapabilities(b, true)
	}
}

func exposeHover(b *strings.Builder, f *compiler.File, e *compiler.ExposeDecl) {
	fmt.Fprintf(b, "**expose #%s**\n\n", e.Name)
	if owner := owningClass(f, e); owner != nil {
		fmt.Fprintf(b, "Shares `#%s` of `%s` through a class-wide accessor pair. ",
			e.Name, owner.Name.Name)
	} else {
		fmt.Fprintf(b, "Shares `#%s` through a class-wide accessor pair. ", e.Name)
	}
	fmt.Fprintf(b, "Subclasses regain access with `import #%s;`.", e.Name)
}

func importHover(b *strings.Builder, i *compiler.ImportDecl) {
	fmt.Fprintf(b, "**import #%s**\n\n", i.Name)
	if i.From != nil {
		fmt.Fprintf(b, "Imports `#%s` exposed by the superclass `%s`. ", i.Name, i.From.Name.Name)
	} else {
		fmt.Fprintf(b, "Imports `#%s` from an exposing superclass. ", i.Name)
	}
	fmt.Fprintf(b, "`this.#%s` in this class reads and writes the ancestor's field.", i.Name)
}

func identHover(b *strings.Builder, id *compiler.Ident) {
	bind := id.Binding
	if bind == nil {
		return
	}

	if bind.Reified {
		fmt.Fprintf(b, "**%s**\n\n", id.Name)
		b.WriteString("Reified binding: reads rewrite to `.peek()`, writes to `.poke(v)`.")
		if bind.SlotName != "" {
			fmt.Fprintf(b, " Backed by the hidden slot `%s`.", bind.SlotName)
		}
		b.WriteString("\n\n")
		writeCapabilities(b, !bind.Const)
		return
	}

	if bind.Class != nil {
		fmt.Fprintf(b, "**%s**\n\n", id.Name)
		if bind.Class.SuperName != nil {
			fmt.Fprintf(b, "Class, extends `%s`.", bind.Class.SuperName.Name)
		} else {
			b.WriteString("Class.")
		}
		return
	}

	fmt.Fprintf(b, "**%s**\n\n", id.Name)
	if bind.Const {
		fmt.Fprintf(b, "Constant %s binding.", bind.Scope)
	} else {
		fmt.Fprintf(b, "Mutable %s binding.", bind.Scope)
	}
}

func writeCapabilities(b *strings.Builder, poke bool) {
	if poke {
		b.WriteString("Capabilities: `{ peek, poke }`")
	} else {
		b.WriteString("Capabilities: `{ peek }` (immutable target; poke absent)")
	}
}

// --- Completion ---

// complete gathers completion candidates from the resolved tree: bindings
// and classes at the top, member and capability names after a dot.
func complete(f *compiler.File, prefix string, afterDot bool) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	seen := make(map[string]bool)

	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		kindCopy := kind
		detailCopy := detail
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kindCopy,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	if afterDot {
		// Slot capabilities come first: after a dot they are the names
		// this dialect adds over the host language.
		add("peek", protocol.CompletionItemKindMethod, "slot read capability")
		add("poke", protocol.CompletionItemKindMethod, "slot write capability")

		compiler.Walk(f, func(n compiler.Node) bool {
			switch n := n.(type) {
			case *compiler.ClassDecl:
				for _, m := range n.Members {
					switch m := m.(type) {
					case *compiler.MethodDef:
						if !m.IsCtor() {
							add(m.Name, protocol.CompletionItemKindMethod,
								fmt.Sprintf("method of %s", n.Name.Name))
						}
					case *compiler.FieldDef:
						if !m.Private {
							add(m.Name, protocol.CompletionItemKindField,
								fmt.Sprintf("field of %s", n.Name.Name))
						}
					}
				}
			case *compiler.ObjectLiteral:
				for _, field := range n.Fields {
					if !field.Quoted {
						add(field.Key, protocol.CompletionItemKindField, "object field")
					}
				}
			}
			return true
		})
	} else {
		compiler.Walk(f, func(n compiler.Node) bool {
			switch n := n.(type) {
			case *compiler.ClassDecl:
				detail := "class"
				if n.SuperName != nil {
					detail = fmt.Sprintf("class (extends %s)", n.SuperName.Name)
				}
				add(n.Name.Name, protocol.CompletionItemKindClass, detail)
			case *compiler.VarDecl:
				detail := fmt.Sprintf("%s binding", n.Name.Binding.Scope)
				switch {
				case n.Reified:
					detail = "reified " + detail
				case n.Const:
					detail = "constant " + detail
				}
				add(n.Name.Name, protocol.CompletionItemKindVariable, detail)
			}
			return true
		})
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

// --- Text position helpers ---

// offsetAt converts a protocol position to a byte offset, clamped to the
// line's end.
func offsetAt(text string, pos protocol.Position) int {
	off := 0
	for line := 0; line < int(pos.Line); line++ {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}

	end := strings.IndexByte(text[off:], '\n')
	if end < 0 {
		end = len(text) - off
	}
	col := int(pos.Character)
	if col > end {
		col = end
	}
	return off + col
}

// completionContext returns the identifier fragment before the cursor and
// whether the fragment follows a dot.
func completionContext(text string, pos protocol.Position) (string, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", false
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from the cursor to the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	afterDot := start > 0 && line[start-1] == '.'
	return line[start:col], afterDot
}

func boolPtr(b bool) *bool {
	return &b
}
