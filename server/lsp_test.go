package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/slotlang/slotc/compiler"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func offsetOf(t *testing.T, text, frag string) int {
	t.Helper()
	off := strings.Index(text, frag)
	if off < 0 {
		t.Fatalf("fragment %q not in source", frag)
	}
	return off
}

func analyzeDoc(t *testing.T, src string) *compiler.File {
	t.Helper()
	f, diags := analyzeUnit("test.sjs", src, true)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if f == nil {
		t.Fatal("analyzeUnit returned no tree")
	}
	return f
}

func hoverText(t *testing.T, src, frag string) string {
	t.Helper()
	f := analyzeDoc(t, src)
	h := hoverAt(f, offsetOf(t, src, frag))
	if h == nil {
		t.Fatalf("no hover at %q", frag)
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("hover contents are %T, want MarkupContent", h.Contents)
	}
	return mc.Value
}

func wantContains(t *testing.T, got string, frags ...string) {
	t.Helper()
	for _, frag := range frags {
		if !strings.Contains(got, frag) {
			t.Errorf("hover %q does not mention %q", got, frag)
		}
	}
}

// ---------------------------------------------------------------------------
// Pipeline analysis
// ---------------------------------------------------------------------------

func TestAnalyzeCleanUnit(t *testing.T) {
	f, diags := analyzeUnit("test.sjs", "let x = 1;\nx = x + 2;\n", true)
	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if f == nil {
		t.Error("expected a resolved tree")
	}
}

func TestAnalyzeParseError(t *testing.T) {
	f, diags := analyzeUnit("test.sjs", "let = 1;\n", true)
	if len(diags) == 0 {
		t.Error("expected parse diagnostics")
	}
	if f != nil {
		t.Error("expected no tree for an unparsable buffer")
	}
}

func TestAnalyzeRewriteRejection(t *testing.T) {
	f, diags := analyzeUnit("test.sjs", "const s = &f();\n", true)
	if len(diags) == 0 {
		t.Fatal("expected rewrite diagnostics")
	}
	if !diags.HasKind(compiler.MalformedTarget) {
		t.Errorf("diagnostics = %v, want a malformed target", diags)
	}
	if f == nil {
		t.Error("resolved tree should survive a rewrite rejection for hover")
	}
}

func TestAnalyzeSharingDisabled(t *testing.T) {
	src := `class B {
  #hp = 10;
  expose #hp;
}
`
	if _, diags := analyzeUnit("test.sjs", src, true); len(diags) > 0 {
		t.Fatalf("sharing allowed: unexpected diagnostics: %v", diags)
	}

	f, diags := analyzeUnit("test.sjs", src, false)
	if len(diags) == 0 {
		t.Fatal("sharing disabled: expected diagnostics")
	}
	if !diags.HasKind(compiler.BadScope) {
		t.Errorf("diagnostics = %v, want scope kind", diags)
	}
	if !strings.Contains(diags[0].Msg, "disabled") {
		t.Errorf("message %q does not say the construct is disabled", diags[0].Msg)
	}
	if f == nil {
		t.Error("resolved tree should survive a sharing rejection")
	}
}

// ---------------------------------------------------------------------------
// Diagnostic conversion
// ---------------------------------------------------------------------------

func TestLspDiagnostics(t *testing.T) {
	src := "const k = 1;\nk = 2;\n"
	_, diags := analyzeUnit("test.sjs", src, true)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one", diags)
	}

	out := lspDiagnostics(diags, src)
	if len(out) != 1 {
		t.Fatalf("converted %d diagnostics, want 1", len(out))
	}
	d := out[0]
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 0 {
		t.Errorf("range start = %v, want 1:0", d.Range.Start)
	}
	if d.Range.End.Line != 1 || d.Range.End.Character != 1 {
		t.Errorf("range end = %v, want 1:1", d.Range.End)
	}
	if d.Message != "scope: assignment to constant k" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Source == nil || *d.Source != lspName {
		t.Errorf("source = %v, want %q", d.Source, lspName)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
}

func TestLspDiagnosticsEmptyBatch(t *testing.T) {
	out := lspDiagnostics(nil, "")
	if out == nil || len(out) != 0 {
		t.Errorf("lspDiagnostics(nil) = %v, want empty non-nil slice", out)
	}
}

func TestTokenLenAt(t *testing.T) {
	cases := []struct {
		text string
		off  int
		want int
	}{
		{"hello", 0, 5},
		{"&x = 1", 0, 2},
		{"#hp + 1", 0, 3},
		{"a + b", 2, 1},
		{"x", 5, 1},
		{"", 0, 1},
	}
	for _, tc := range cases {
		if got := tokenLenAt(tc.text, tc.off); got != tc.want {
			t.Errorf("tokenLenAt(%q, %d) = %d, want %d", tc.text, tc.off, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func TestHoverMarkerOverMutableBinding(t *testing.T) {
	src := "let x = 1;\nconst s = &x;\n"
	got := hoverText(t, src, "&x")
	wantContains(t, got, "&x", "module binding", "{ peek, poke }")
}

func TestHoverMarkerOverConstBinding(t *testing.T) {
	src := "const k = 1;\nconst s = &k;\n"
	got := hoverText(t, src, "&k")
	wantContains(t, got, "{ peek }", "poke absent")
	if strings.Contains(got, "{ peek, poke }") {
		t.Errorf("hover %q grants poke over a constant", got)
	}
}

func TestHoverMarkerOverLocation(t *testing.T) {
	src := "let o = { n: 1 };\nlet i = 0;\nconst s = &o.n;\n"
	got := hoverText(t, src, "&o.n")
	wantContains(t, got, "o.n", "captured once", "{ peek, poke }")
}

func TestHoverMarkerAliasesReifiedBinding(t *testing.T) {
	src := "let &hp = 5;\nconst s = &hp;\n"
	got := hoverText(t, src, "&hp;")
	wantContains(t, got, "slot backing the reified binding", "{ peek, poke }")
}

func TestHoverReifiedBindingUse(t *testing.T) {
	src := "let &hp = 5;\nhp = hp + 1;\n"
	got := hoverText(t, src, "hp = hp")
	wantContains(t, got, "Reified binding", ".peek()", ".poke(v)", "__slot1")
}

func TestHoverUnboundMarker(t *testing.T) {
	src := `let mk;
class K {
  #n = 0;
  static {
    mk = &&this.#n;
  }
}
`
	got := hoverText(t, src, "&&this")
	wantContains(t, got, "Unbound accessor pair", "#n", "{ peek(o), poke(o, v) }", "brand")
}

func TestHoverExpose(t *testing.T) {
	src := `class B {
  #hp = 10;
  expose #hp;
}
class D extends B {
  import #hp;
}
`
	got := hoverText(t, src, "expose")
	wantContains(t, got, "expose #hp", "Shares", "B")

	got = hoverText(t, src, "import")
	wantContains(t, got, "import #hp", "exposed by the superclass", "B")
}

func TestHoverPlainIdent(t *testing.T) {
	src := "const total = 3;\ntotal;\n"
	got := hoverText(t, src, "total;")
	wantContains(t, got, "Constant module binding")
}

func TestHoverClassName(t *testing.T) {
	src := "class Base {}\nclass Foo extends Base {}\nconst f = new Foo();\n"
	got := hoverText(t, src, "Foo()")
	wantContains(t, got, "Class", "extends `Base`")
}

func TestHoverNothing(t *testing.T) {
	src := "let x = 100;\n"
	f := analyzeDoc(t, src)
	if h := hoverAt(f, offsetOf(t, src, "100")); h != nil {
		t.Errorf("hover over a number literal = %v, want nil", h)
	}
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func TestDefinitionTarget(t *testing.T) {
	src := "let hp = 1;\nhp = 2;\n"
	f := analyzeDoc(t, src)

	id := nodeAt(f, offsetOf(t, src, "hp = 2")).ident
	if id == nil || id.Binding == nil || id.Binding.Decl == nil {
		t.Fatal("use does not resolve to a declaration")
	}
	r := lspRange(id.Binding.Decl.Span())
	if r.Start.Line != 0 || r.Start.Character != 4 {
		t.Errorf("declaration range starts at %v, want 0:4", r.Start)
	}
}

func TestReferences(t *testing.T) {
	src := "let hp = 1;\nhp = 2;\nhp;\n"
	f := analyzeDoc(t, src)

	id := nodeAt(f, offsetOf(t, src, "hp;")).ident
	if id == nil {
		t.Fatal("no identifier at use")
	}
	locs := references(f, "file:///t.sjs", id)
	if len(locs) != 3 {
		t.Fatalf("references = %d locations, want 3", len(locs))
	}
	if locs[0].Range.Start.Line != 0 || locs[0].Range.Start.Character != 4 {
		t.Errorf("first reference at %v, want the declaration at 0:4", locs[0].Range.Start)
	}
}

func TestNodeAtInnermost(t *testing.T) {
	src := "let o = { items: [1] };\nlet i = 0;\nconst s = &o.items[i];\n"
	f := analyzeDoc(t, src)

	h := nodeAt(f, offsetOf(t, src, "i];"))
	if h.marker == nil {
		t.Error("offset inside the marker should see the marker")
	}
	if h.ident == nil || h.ident.Name != "i" {
		t.Errorf("innermost ident = %v, want i", h.ident)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func completionLabels(items []protocol.CompletionItem) []string {
	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.Label
	}
	return labels
}

func TestCompleteTopLevel(t *testing.T) {
	src := "let score = 1;\nconst scale = 2;\nclass Scene {}\nlet other = 9;\n"
	f := analyzeDoc(t, src)

	items := complete(f, "sc", false)
	want := []string{"score", "scale", "Scene"}
	if diff := cmp.Diff(want, completionLabels(items)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	for _, item := range items {
		if item.Label == "scale" {
			if item.Detail == nil || *item.Detail != "constant module binding" {
				t.Errorf("scale detail = %v", item.Detail)
			}
		}
		if item.Label == "Scene" {
			if item.Kind == nil || *item.Kind != protocol.CompletionItemKindClass {
				t.Error("Scene should complete as a class")
			}
		}
	}
}

func TestCompleteAfterDot(t *testing.T) {
	src := `class Scene {
  size = 4;
  #hidden = 0;
  constructor() {}
  draw() { return 1; }
}
const o = { wave: 1 };
`
	f := analyzeDoc(t, src)

	items := complete(f, "", true)
	labels := completionLabels(items)
	if len(labels) < 2 || labels[0] != "peek" || labels[1] != "poke" {
		t.Fatalf("labels = %v, want peek and poke first", labels)
	}
	got := strings.Join(labels, " ")
	for _, want := range []string{"draw", "size", "wave"} {
		if !strings.Contains(got, want) {
			t.Errorf("labels %v missing %q", labels, want)
		}
	}
	for _, banned := range []string{"#hidden", "hidden", "constructor"} {
		if strings.Contains(got, banned) {
			t.Errorf("labels %v include %q", labels, banned)
		}
	}

	items = complete(f, "pe", true)
	if diff := cmp.Diff([]string{"peek"}, completionLabels(items)); diff != "" {
		t.Errorf("filtered labels mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteReifiedDetail(t *testing.T) {
	src := "let &hp = 5;\nhp;\n"
	f := analyzeDoc(t, src)

	items := complete(f, "hp", false)
	if len(items) != 1 {
		t.Fatalf("items = %v, want one", completionLabels(items))
	}
	if items[0].Detail == nil || *items[0].Detail != "reified module binding" {
		t.Errorf("detail = %v, want reified module binding", items[0].Detail)
	}
}

// ---------------------------------------------------------------------------
// Text position helpers
// ---------------------------------------------------------------------------

func TestOffsetAt(t *testing.T) {
	text := "ab\ncd\n"
	cases := []struct {
		line, char uint32
		want       int
	}{
		{0, 0, 0},
		{0, 2, 2},
		{0, 99, 2}, // clamped to line end
		{1, 1, 4},
		{5, 0, 6}, // beyond the document
	}
	for _, tc := range cases {
		got := offsetAt(text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("offsetAt(%d:%d) = %d, want %d", tc.line, tc.char, got, tc.want)
		}
	}
}

func TestCompletionContext(t *testing.T) {
	cases := []struct {
		line      string
		char      uint32
		prefix    string
		afterDot  bool
	}{
		{"o.pe", 4, "pe", true},
		{"o.", 2, "", true},
		{"pe", 2, "pe", false},
		{"x := y", 1, "x", false},
		{"", 0, "", false},
	}
	for _, tc := range cases {
		prefix, afterDot := completionContext(tc.line, protocol.Position{Line: 0, Character: tc.char})
		if prefix != tc.prefix || afterDot != tc.afterDot {
			t.Errorf("completionContext(%q, %d) = %q, %v; want %q, %v",
				tc.line, tc.char, prefix, afterDot, tc.prefix, tc.afterDot)
		}
	}
}

// ---------------------------------------------------------------------------
// Document state and manifest lookup
// ---------------------------------------------------------------------------

func TestDocumentLifecycle(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	uri := protocol.DocumentUri("file:///test.sjs")

	diags := s.update(uri, "let x = 1;\n", true)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	doc := s.doc(uri)
	if doc == nil || doc.file == nil {
		t.Fatal("document missing after update")
	}
	if doc.text != "let x = 1;\n" {
		t.Errorf("document text = %q", doc.text)
	}

	// An edit that breaks the buffer keeps the doc but drops the tree
	diags = s.update(uri, "let = ;\n", true)
	if len(diags) == 0 {
		t.Error("expected diagnostics for the broken edit")
	}
	doc = s.doc(uri)
	if doc == nil {
		t.Fatal("document missing after broken edit")
	}
	if doc.file != nil {
		t.Error("broken buffer should have no tree")
	}

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()
	if s.doc(uri) != nil {
		t.Error("document should be gone after close")
	}
}

func TestSharingAllowed(t *testing.T) {
	dir := t.TempDir()

	// No manifest anywhere above the temp dir: allowed
	if !sharingAllowed("file://" + dir + "/src/a.sjs") {
		t.Error("sharing should default to allowed without a manifest")
	}

	// Relative or non-file URIs: allowed
	if !sharingAllowed("untitled:Untitled-1") {
		t.Error("sharing should default to allowed for non-file URIs")
	}

	manifestToml := "[dialect]\nallow-sharing = false\n"
	if err := os.WriteFile(filepath.Join(dir, "slotc.toml"), []byte(manifestToml), 0644); err != nil {
		t.Fatal(err)
	}
	if sharingAllowed("file://" + dir + "/src/a.sjs") {
		t.Error("manifest disables sharing, lookup says allowed")
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}
