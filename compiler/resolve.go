package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Resolver: scopes, bindings and occurrence classification
// ---------------------------------------------------------------------------

// Resolve walks the tree, attaches a Binding to every identifier occurrence,
// classifies how each occurrence touches its location, links private names
// and sharing declarations to their classes, and reports everything it
// cannot classify statically. Rewriting must not run on a tree whose
// resolution produced diagnostics.
func Resolve(f *File) DiagnosticList {
	r := &resolver{
		ambient: make(map[string]*Binding),
		infos:   make(map[*ClassDecl]*classInfo),
	}
	r.pushScope(true)
	r.declareStmts(f.Stmts)
	for _, s := range f.Stmts {
		r.stmt(s)
	}
	r.popScope()
	r.diags.Sort()
	return r.diags
}

type resolver struct {
	diags   DiagnosticList
	scope   *scope
	classes []*classInfo
	ambient map[string]*Binding
	infos   map[*ClassDecl]*classInfo
}

// scope is one lexical scope. Function scopes (and the module scope) are
// the units that direct eval poisons.
type scope struct {
	parent   *scope
	bindings map[string]*Binding
	function bool
	dynamic  bool       // a direct eval call is visible here
	reified  []*VarDecl // reified declarations made in this scope
}

// classInfo carries the per-class facts the resolver accumulates: declared
// private fields and the sharing surface.
type classInfo struct {
	decl     *ClassDecl
	privates map[string]*FieldDef
	exposes  map[string]*ExposeDecl
	imports  map[string]*ImportDecl
}

func (r *resolver) errorf(pos Position, kind DiagKind, format string, args ...interface{}) {
	r.diags = append(r.diags, Diagnostic{Pos: pos, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (r *resolver) pushScope(function bool) {
	r.scope = &scope{
		parent:   r.scope,
		bindings: make(map[string]*Binding),
		function: function,
	}
}

// popScope closes the current scope, flushing dynamic-scope rejections for
// any reified bindings it declared.
func (r *resolver) popScope() {
	s := r.scope
	if s.dynamic {
		for _, decl := range s.reified {
			r.errorf(decl.Span().Start, MalformedTarget,
				"cannot reify binding %s: its scope contains a direct eval call", decl.Name.Name)
		}
	}
	r.scope = s.parent
}

// markDynamic poisons every enclosing scope: direct eval can observe and
// create bindings anywhere up the chain, so occurrences can no longer be
// statically enumerated there.
func (r *resolver) markDynamic() {
	for s := r.scope; s != nil; s = s.parent {
		s.dynamic = true
	}
}

// declare adds a binding to the current scope.
func (r *resolver) declare(id *Ident, b *Binding) {
	if strings.HasPrefix(id.Name, "__") {
		r.errorf(id.Span().Start, BadScope,
			"names beginning with __ are reserved for the rewriter: %s", id.Name)
	}
	if _, ok := r.scope.bindings[id.Name]; ok {
		r.errorf(id.Span().Start, BadScope, "%s already declared in this scope", id.Name)
		return
	}
	b.Name = id.Name
	b.Decl = id
	id.Binding = b
	r.scope.bindings[id.Name] = b
}

// lookup resolves a name through the scope chain, falling back to a shared
// ambient binding for names the unit never declares.
func (r *resolver) lookup(name string) *Binding {
	for s := r.scope; s != nil; s = s.parent {
		if b, ok := s.bindings[name]; ok {
			return b
		}
	}
	b, ok := r.ambient[name]
	if !ok {
		b = &Binding{Scope: AmbientScope, Name: name}
		r.ambient[name] = b
	}
	return b
}

// use resolves an identifier occurrence. Reserved names are rejected at
// every occurrence, not just declarations: an ambient use would otherwise
// be captured by a hoisted temporary of the same name.
func (r *resolver) use(id *Ident, usage Usage) {
	if strings.HasPrefix(id.Name, "__") {
		r.errorf(id.Span().Start, BadScope,
			"names beginning with __ are reserved for the rewriter: %s", id.Name)
	}
	id.Binding = r.lookup(id.Name)
	id.Usage = usage
	if usage != UseRead && id.Binding.Const {
		r.errorf(id.Span().Start, BadScope, "assignment to constant %s", id.Name)
	}
}

// scopeKind returns the BindScope for a declaration made in the current
// scope.
func (r *resolver) scopeKind() BindScope {
	if r.scope.parent == nil {
		return ModuleScope
	}
	return LocalScope
}

// declareStmts pre-declares the let/const/class names of a statement list
// so that uses anywhere in the scope, including inside earlier function
// literals, resolve to the declaration.
func (r *resolver) declareStmts(stmts []Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *VarDecl:
			r.declare(s.Name, &Binding{
				Scope:   r.scopeKind(),
				Const:   s.Const,
				Reified: s.Reified,
			})
			if s.Reified {
				r.scope.reified = append(r.scope.reified, s)
			}
		case *ClassDecl:
			r.declare(s.Name, &Binding{
				Scope: r.scopeKind(),
				Const: true,
				Class: s,
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *resolver) stmt(s Stmt) {
	switch s := s.(type) {
	case *VarDecl:
		if s.Init != nil {
			r.expr(s.Init)
		}

	case *ExprStmt:
		r.expr(s.Expr)

	case *BlockStmt:
		r.pushScope(false)
		r.declareStmts(s.Stmts)
		for _, inner := range s.Stmts {
			r.stmt(inner)
		}
		r.popScope()

	case *IfStmt:
		r.expr(s.Cond)
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}

	case *WhileStmt:
		r.expr(s.Cond)
		r.stmt(s.Body)

	case *ReturnStmt:
		if s.Value != nil {
			r.expr(s.Value)
		}

	case *ClassDecl:
		r.classDecl(s)

	default:
		panic(s)
	}
}

// fnBody resolves a function body: params in a fresh function scope, then
// the pre-declared statements.
func (r *resolver) fnBody(params []*Ident, body []Stmt) {
	r.pushScope(true)
	for _, param := range params {
		r.declare(param, &Binding{Scope: ParamScope})
	}
	r.declareStmts(body)
	for _, s := range body {
		r.stmt(s)
	}
	r.popScope()
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

func (r *resolver) classDecl(c *ClassDecl) {
	info := &classInfo{
		decl:     c,
		privates: make(map[string]*FieldDef),
		exposes:  make(map[string]*ExposeDecl),
		imports:  make(map[string]*ImportDecl),
	}
	r.infos[c] = info

	if c.SuperName != nil {
		r.use(c.SuperName, UseRead)
		super := c.SuperName.Binding.Class
		if super == nil {
			r.errorf(c.SuperName.Span().Start, BadScope,
				"superclass %s is not a class declared in this unit", c.SuperName.Name)
		} else if _, done := r.infos[super]; !done || super == c {
			r.errorf(c.SuperName.Span().Start, BadScope,
				"class %s extends %s before it is declared", c.Name.Name, c.SuperName.Name)
		} else {
			c.Super = super
		}
	}

	// First pass: collect fields and the sharing surface.
	seen := make(map[string]bool)
	for _, m := range c.Members {
		switch m := m.(type) {
		case *FieldDef:
			key := memberKey(m.Name, m.Private, m.Static)
			if seen[key] {
				r.errorf(m.Span().Start, BadScope, "duplicate member %s in class %s", m.Name, c.Name.Name)
				continue
			}
			seen[key] = true
			if m.Private {
				info.privates[m.Name] = m
			}
		case *MethodDef:
			key := memberKey(m.Name, false, m.Static)
			if seen[key] {
				r.errorf(m.Span().Start, BadScope, "duplicate member %s in class %s", m.Name, c.Name.Name)
			}
			seen[key] = true
		case *ExposeDecl:
			if _, dup := info.exposes[m.Name]; dup {
				r.errorf(m.Span().Start, BadScope, "duplicate expose #%s", m.Name)
				continue
			}
			info.exposes[m.Name] = m
		case *ImportDecl:
			if _, dup := info.imports[m.Name]; dup {
				r.errorf(m.Span().Start, BadScope, "duplicate import #%s", m.Name)
				continue
			}
			info.imports[m.Name] = m
		}
	}

	// Validate the sharing surface against the collected fields.
	for name, e := range info.exposes {
		if info.privates[name] == nil {
			r.errorf(e.Span().Start, BadScope,
				"expose #%s: class %s declares no private field #%s", name, c.Name.Name, name)
		}
	}
	for name, imp := range info.imports {
		if info.privates[name] != nil {
			r.errorf(imp.Span().Start, BadScope,
				"class %s both declares and imports #%s", c.Name.Name, name)
			continue
		}
		from := r.findExposer(c.Super, name)
		if from == nil {
			r.errorf(imp.Span().Start, BadScope,
				"import #%s: no ancestor of %s exposes it", name, c.Name.Name)
			continue
		}
		imp.From = from
	}

	// Second pass: member bodies and initializers, inside the class brand.
	r.classes = append(r.classes, info)
	for _, m := range c.Members {
		switch m := m.(type) {
		case *FieldDef:
			if m.Init != nil {
				r.pushScope(true)
				r.expr(m.Init)
				r.popScope()
			}
		case *MethodDef:
			r.fnBody(m.Params, m.Body)
		case *StaticBlock:
			r.fnBody(nil, m.Body)
		}
	}
	r.classes = r.classes[:len(r.classes)-1]
}

// findExposer walks the superclass chain for the nearest class exposing
// the private name.
func (r *resolver) findExposer(c *ClassDecl, name string) *ClassDecl {
	for ; c != nil; c = c.Super {
		info := r.infos[c]
		if info == nil {
			return nil
		}
		if _, ok := info.exposes[name]; ok {
			return c
		}
	}
	return nil
}

// resolvePrivate attaches the declaring class to a private member access,
// searching enclosing class bodies innermost first.
func (r *resolver) resolvePrivate(e *PrivateExpr) {
	for i := len(r.classes) - 1; i >= 0; i-- {
		info := r.classes[i]
		if info.privates[e.Name] != nil {
			e.Origin = info.decl
			return
		}
		if imp, ok := info.imports[e.Name]; ok && imp.From != nil {
			e.Origin = imp.From
			e.Imported = true
			return
		}
	}
	r.errorf(e.Span().Start, BadScope,
		"private name #%s is not declared by an enclosing class", e.Name)
}

func memberKey(name string, private, static bool) string {
	key := name
	if private {
		key = "#" + key
	}
	if static {
		key = "static " + key
	}
	return key
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *resolver) expr(e Expr) {
	switch e := e.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NullLiteral,
		*UndefinedLiteral, *ThisExpr:
		// nothing to resolve

	case *Ident:
		r.use(e, UseRead)

	case *ArrayLiteral:
		for _, elem := range e.Elements {
			r.expr(elem)
		}

	case *ObjectLiteral:
		for _, field := range e.Fields {
			r.expr(field.Value)
		}

	case *ArrowFn:
		if e.ExprBody != nil {
			r.pushScope(true)
			for _, param := range e.Params {
				r.declare(param, &Binding{Scope: ParamScope})
			}
			r.expr(e.ExprBody)
			r.popScope()
		} else {
			r.fnBody(e.Params, e.Body)
		}

	case *CallExpr:
		if callee, ok := e.Callee.(*Ident); ok && callee.Name == "eval" {
			if r.lookup("eval").Scope == AmbientScope {
				r.markDynamic()
			}
		}
		r.expr(e.Callee)
		for _, arg := range e.Args {
			r.expr(arg)
		}

	case *NewExpr:
		r.expr(e.Callee)
		for _, arg := range e.Args {
			r.expr(arg)
		}

	case *MemberExpr:
		r.expr(e.Object)

	case *IndexExpr:
		r.expr(e.Object)
		r.expr(e.Key)

	case *PrivateExpr:
		r.expr(e.Object)
		r.resolvePrivate(e)

	case *UnaryExpr:
		r.expr(e.Operand)

	case *ReifyExpr:
		r.expr(e.Target)

	case *AssignExpr:
		r.assignTarget(e.Target, e.Op == "=")
		r.expr(e.Value)

	case *IncDecExpr:
		r.assignTarget(e.Target, false)

	case *BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)

	case *CondExpr:
		r.expr(e.Cond)
		r.expr(e.Then)
		r.expr(e.Else)

	case *SeqExpr:
		for _, inner := range e.Exprs {
			r.expr(inner)
		}

	default:
		panic(e)
	}
}

// assignTarget resolves an assignment or increment target. Identifier
// targets get their usage recorded; structured targets resolve their
// subexpressions as reads.
func (r *resolver) assignTarget(target Expr, simple bool) {
	switch target := target.(type) {
	case *Ident:
		if simple {
			r.use(target, UseWrite)
		} else {
			r.use(target, UseReadWrite)
		}
	default:
		r.expr(target)
	}
}
