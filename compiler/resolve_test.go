package compiler

import (
	"strings"
	"testing"
)

// resolveSrc parses and resolves a unit, failing the test on parse errors.
func resolveSrc(t *testing.T, src string) (*File, DiagnosticList) {
	t.Helper()
	f, diags := Parse("test.sjs", src)
	if len(diags) > 0 {
		t.Fatalf("Parse(%q): unexpected diagnostics: %v", src, diags)
	}
	return f, Resolve(f)
}

// wantScopeError asserts that resolution rejects src with a message
// containing frag.
func wantScopeError(t *testing.T, src, frag string, kind DiagKind) {
	t.Helper()
	_, diags := resolveSrc(t, src)
	if len(diags) == 0 {
		t.Fatalf("Resolve(%q): no diagnostics, want %v mentioning %q", src, kind, frag)
	}
	for _, d := range diags {
		if d.Kind == kind && strings.Contains(d.Msg, frag) {
			return
		}
	}
	t.Errorf("Resolve(%q): diagnostics = %v, want %v mentioning %q", src, diags, kind, frag)
}

func TestResolveBindings(t *testing.T) {
	f, diags := resolveSrc(t, "let x = 1;\nconst y = x + 1;\nx = y;")
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	decl := f.Stmts[0].(*VarDecl)
	if decl.Name.Binding == nil || decl.Name.Binding.Scope != ModuleScope {
		t.Fatalf("x binding = %+v, want module scope", decl.Name.Binding)
	}

	// The x in y's initializer resolves to the declaration's binding.
	yInit := f.Stmts[1].(*VarDecl).Init.(*BinaryExpr)
	use := yInit.Left.(*Ident)
	if use.Binding != decl.Name.Binding {
		t.Errorf("use of x bound to %+v, want declaration binding", use.Binding)
	}
	if use.Usage != UseRead {
		t.Errorf("use of x usage = %v, want UseRead", use.Usage)
	}

	// The write records its usage.
	write := f.Stmts[2].(*ExprStmt).Expr.(*AssignExpr).Target.(*Ident)
	if write.Usage != UseWrite {
		t.Errorf("write of x usage = %v, want UseWrite", write.Usage)
	}
}

func TestResolveAmbient(t *testing.T) {
	f, diags := resolveSrc(t, "print(1);\nprint(2);")
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	first := f.Stmts[0].(*ExprStmt).Expr.(*CallExpr).Callee.(*Ident)
	second := f.Stmts[1].(*ExprStmt).Expr.(*CallExpr).Callee.(*Ident)
	if first.Binding.Scope != AmbientScope {
		t.Fatalf("print scope = %v, want ambient", first.Binding.Scope)
	}
	if first.Binding != second.Binding {
		t.Errorf("two uses of print got distinct bindings")
	}
}

func TestResolvePreDeclaration(t *testing.T) {
	// A function literal may use a binding declared later in its scope.
	f, diags := resolveSrc(t, "const f = () => count;\nlet count = 0;")
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	fn := f.Stmts[0].(*VarDecl).Init.(*ArrowFn)
	use := fn.ExprBody.(*Ident)
	decl := f.Stmts[1].(*VarDecl)
	if use.Binding != decl.Name.Binding {
		t.Errorf("count inside arrow bound to %+v, want the later declaration", use.Binding)
	}
}

func TestResolveShadowing(t *testing.T) {
	src := `let x = 1;
{
  let x = 2;
  x = 3;
}
x = 4;`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	outer := f.Stmts[0].(*VarDecl).Name.Binding
	block := f.Stmts[1].(*BlockStmt)
	inner := block.Stmts[0].(*VarDecl).Name.Binding
	if outer == inner {
		t.Fatal("inner x shares the outer binding")
	}
	innerWrite := block.Stmts[1].(*ExprStmt).Expr.(*AssignExpr).Target.(*Ident)
	if innerWrite.Binding != inner {
		t.Errorf("write inside block bound to outer x")
	}
	outerWrite := f.Stmts[2].(*ExprStmt).Expr.(*AssignExpr).Target.(*Ident)
	if outerWrite.Binding != outer {
		t.Errorf("write after block bound to inner x")
	}
}

func TestResolveRedeclaration(t *testing.T) {
	wantScopeError(t, "let x = 1;\nlet x = 2;", "already declared", BadScope)
	wantScopeError(t, "let x = 1;\nconst x = 2;", "already declared", BadScope)
	wantScopeError(t, "((a, a) => a);", "already declared", BadScope)

	// Distinct scopes do not collide.
	_, diags := resolveSrc(t, "let x = 1;\n{ let x = 2; }")
	if len(diags) > 0 {
		t.Errorf("shadowing rejected: %v", diags)
	}
}

func TestResolveReservedPrefix(t *testing.T) {
	wantScopeError(t, "let __x = 1;", "reserved for the rewriter", BadScope)
	wantScopeError(t, "((__a) => __a);", "reserved for the rewriter", BadScope)
	wantScopeError(t, "const __slot1 = 0;", "reserved for the rewriter", BadScope)

	// Uses are rejected like declarations, ambient ones included: an
	// undeclared __ reference must not resolve to a fresh ambient binding.
	wantScopeError(t, "__t4;", "reserved for the rewriter", BadScope)
	wantScopeError(t, "let y = 0;\ny = __t4;", "reserved for the rewriter", BadScope)
	wantScopeError(t, "__t1 = 5;", "reserved for the rewriter", BadScope)
	wantScopeError(t, "f(__slot2);", "reserved for the rewriter", BadScope)

	// A single underscore is fine.
	_, diags := resolveSrc(t, "let _x = 1;")
	if len(diags) > 0 {
		t.Errorf("_x rejected: %v", diags)
	}
	// Property names are not bindings; a __ member access stays legal.
	_, diags = resolveSrc(t, "let o = {};\no.__proto = 1;")
	if len(diags) > 0 {
		t.Errorf("__ property rejected: %v", diags)
	}
}

func TestResolveConstWrites(t *testing.T) {
	wantScopeError(t, "const c = 1;\nc = 2;", "assignment to constant", BadScope)
	wantScopeError(t, "const c = 1;\nc += 2;", "assignment to constant", BadScope)
	wantScopeError(t, "const c = 1;\nc++;", "assignment to constant", BadScope)
	wantScopeError(t, "class C {}\nC = 1;", "assignment to constant", BadScope)

	// Reified constants reject writes the same way.
	wantScopeError(t, "const &c = 1;\nc = 2;", "assignment to constant", BadScope)
}

func TestResolveDirectEval(t *testing.T) {
	// A reified binding whose scope sees a direct eval call cannot have
	// its occurrences enumerated.
	wantScopeError(t, `let &x = 1;`+"\n"+`eval("x = 2");`,
		"direct eval", MalformedTarget)

	// The poison climbs out of nested functions.
	wantScopeError(t, `let &x = 1;`+"\n"+`const f = () => eval("x");`,
		"direct eval", MalformedTarget)

	// A binding named eval is just a function value.
	_, diags := resolveSrc(t, `let eval = f;`+"\n"+`let &x = 1;`+"\n"+`eval("x");`)
	if len(diags) > 0 {
		t.Errorf("shadowed eval rejected: %v", diags)
	}

	// Indirect eval does not see this scope.
	_, diags = resolveSrc(t, `let &x = 1;`+"\n"+`(0, eval)("x");`)
	if len(diags) > 0 {
		t.Errorf("indirect eval rejected: %v", diags)
	}

	// Non-reified bindings coexist with direct eval.
	_, diags = resolveSrc(t, `let x = 1;`+"\n"+`eval("x = 2");`)
	if len(diags) > 0 {
		t.Errorf("plain binding with eval rejected: %v", diags)
	}

	// A reified binding in a scope the eval cannot see stays legal.
	_, diags = resolveSrc(t, `eval("1");`+"\n"+`const f = () => { let &x = 1; return &x; };`)
	if len(diags) > 0 {
		t.Errorf("inner reified binding rejected: %v", diags)
	}
}

func TestResolvePrivateNames(t *testing.T) {
	src := `class C {
  #x = 0;
  get() { return this.#x; }
}`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	c := f.Stmts[0].(*ClassDecl)
	get := c.Members[1].(*MethodDef)
	ret := get.Body[0].(*ReturnStmt)
	pv := ret.Value.(*PrivateExpr)
	if pv.Origin != c {
		t.Errorf("this.#x origin = %v, want class C", pv.Origin)
	}
	if pv.Imported {
		t.Errorf("this.#x marked imported inside its declaring class")
	}
}

func TestResolvePrivateUndeclared(t *testing.T) {
	wantScopeError(t, `class C { get() { return this.#y; } }`,
		"not declared by an enclosing class", BadScope)
	wantScopeError(t, `let o = { f: 1 };`+"\n"+`o.#x;`,
		"not declared by an enclosing class", BadScope)
}

func TestResolvePrivateNesting(t *testing.T) {
	// The innermost class declaring the name wins.
	src := `class Outer {
  #x = 1;
  m() {
    class Inner {
      #x = 2;
      n() { return this.#x; }
    }
    return Inner;
  }
}`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	outer := f.Stmts[0].(*ClassDecl)
	m := outer.Members[1].(*MethodDef)
	inner := m.Body[0].(*ClassDecl)
	n := inner.Members[1].(*MethodDef)
	pv := n.Body[0].(*ReturnStmt).Value.(*PrivateExpr)
	if pv.Origin != inner {
		t.Errorf("this.#x in Inner.n origin = %v, want Inner", pv.Origin)
	}
}

func TestResolveSuperChain(t *testing.T) {
	src := `class A {}
class B extends A {}
class C extends B {}`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	a := f.Stmts[0].(*ClassDecl)
	b := f.Stmts[1].(*ClassDecl)
	c := f.Stmts[2].(*ClassDecl)
	if b.Super != a || c.Super != b {
		t.Errorf("super links = %v/%v, want A/B", b.Super, c.Super)
	}
}

func TestResolveSuperErrors(t *testing.T) {
	wantScopeError(t, "class D extends B {}\nclass B {}",
		"before it is declared", BadScope)
	wantScopeError(t, "class C extends C {}",
		"before it is declared", BadScope)
	wantScopeError(t, "let B = 1;\nclass D extends B {}",
		"not a class", BadScope)
	wantScopeError(t, "class D extends Missing {}",
		"not a class", BadScope)
}

func TestResolveSharingSurface(t *testing.T) {
	src := `class B {
  #x = 1;
  expose #x;
}
class D extends B {
  import #x;
  get() { return this.#x; }
}`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	b := f.Stmts[0].(*ClassDecl)
	d := f.Stmts[1].(*ClassDecl)
	imp := d.Members[0].(*ImportDecl)
	if imp.From != b {
		t.Fatalf("import #x from = %v, want B", imp.From)
	}
	get := d.Members[1].(*MethodDef)
	pv := get.Body[0].(*ReturnStmt).Value.(*PrivateExpr)
	if !pv.Imported || pv.Origin != b {
		t.Errorf("this.#x in D: imported=%v origin=%v, want imported from B", pv.Imported, pv.Origin)
	}
}

func TestResolveSharingAcrossGap(t *testing.T) {
	// The exposer may be any ancestor, not just the direct superclass.
	src := `class A {
  #x = 1;
  expose #x;
}
class B extends A {}
class C extends B {
  import #x;
  get() { return this.#x; }
}`
	f, diags := resolveSrc(t, src)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	a := f.Stmts[0].(*ClassDecl)
	c := f.Stmts[2].(*ClassDecl)
	if c.Members[0].(*ImportDecl).From != a {
		t.Errorf("import resolved to %v, want A", c.Members[0].(*ImportDecl).From)
	}
}

func TestResolveSharingErrors(t *testing.T) {
	wantScopeError(t, "class C { expose #x; }",
		"declares no private field", BadScope)
	wantScopeError(t, "class C { #x = 1; expose #x; expose #x; }",
		"duplicate expose", BadScope)
	wantScopeError(t, "class C { #x = 1; import #x; }",
		"both declares and imports", BadScope)
	wantScopeError(t, "class B {}\nclass D extends B { import #x; }",
		"no ancestor", BadScope)
	wantScopeError(t, "class C { import #x; }",
		"no ancestor", BadScope)
	// An unexposed ancestor field stays sealed.
	wantScopeError(t, "class B { #x = 1; }\nclass D extends B { import #x; }",
		"no ancestor", BadScope)
}

func TestResolveDuplicateMembers(t *testing.T) {
	wantScopeError(t, "class C { f() {} f() {} }", "duplicate member", BadScope)
	wantScopeError(t, "class C { #x = 1; #x = 2; }", "duplicate member", BadScope)

	// Static and instance members live in different tables, and a private
	// field does not collide with a public one of the same name.
	_, diags := resolveSrc(t, "class C { f() {} static f() {} #g = 1; g = 2; }")
	if len(diags) > 0 {
		t.Errorf("legal member mix rejected: %v", diags)
	}
}

func TestResolveBatchOrder(t *testing.T) {
	src := "const a = 1;\na = 2;\nlet __b = 3;\nconst c = 4;\nc = 5;"
	_, diags := resolveSrc(t, src)
	if len(diags) != 3 {
		t.Fatalf("diagnostics = %v, want 3", diags)
	}
	for i := 1; i < len(diags); i++ {
		if diags[i].Pos.Offset < diags[i-1].Pos.Offset {
			t.Errorf("diagnostics out of order: %v before %v", diags[i-1], diags[i])
		}
	}
}
