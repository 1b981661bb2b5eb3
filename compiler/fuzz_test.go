package compiler

import (
	"testing"
)

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	// Seed corpus: valid source snippets covering diverse token types
	seeds := []string{
		// Basic tokens
		`( ) [ ] { } . , ; : ? =>`,
		// Numbers
		`42`, `0`, `3.14`, `0.5`, `.5`, `1e10`, `1.5e-3`, `2.0E+5`,
		// Strings
		`'hello'`, `"hello world"`, `''`, `'it\'s'`, `"a\nb"`,
		// Identifiers and reserved words
		`foo`, `FooBar`, `foo123`, `_private`, `this`, `null`, `true`, `false`,
		`let`, `const`, `class`, `extends`, `static`, `new`, `expose`, `import`,
		`if`, `else`, `while`, `return`, `await`, `yield`, `undefined`,
		// Operators
		`+ - * / % = += -= *= /= %= == != < > <= >= ! || ++ --`,
		// Markers and private names
		`&x`, `&&this.#x`, `a && b`, `&&&x`, `#field`, `this.#x`,
		// Comments
		"// line comment\nfoo", `/* block */ bar`, `/* unclosed`,
		// Complete statements
		`let &x = 1;`,
		`const s = &o.m[k];`,
		`x += f(a, b);`,
		`class C extends B { #hp = 10; expose #hp; }`,
		`const f = (a) => a + 1;`,
		// Edge cases
		`&`, `&&`, `#`, `# x`, `'unterminated`, `"`, `|`, `@`, "`",
		// Unicode
		`'こんにちは'`, `café`, `naïve`,
		// Empty
		``,
		// Whitespace only
		`   `, "\t\n\r",
		// Operator soup
		`+-*/%<>=!&|?.,;:`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			tok := l.NextToken()
			if tok.End.Offset < tok.Pos.Offset || tok.End.Offset > len(data) {
				t.Fatalf("token %v at offset %d ends at %d (input is %d bytes)",
					tok.Type, tok.Pos.Offset, tok.End.Offset, len(data))
			}
			if tok.Type == TokenEOF || tok.Type == TokenError {
				break
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: ensure the parser never panics on arbitrary input.
// Parse errors are acceptable; panics are not.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	seeds := []string{
		// Declarations
		`let x = 1;`, `const y = 'a';`, `let z;`, `let &x = 1;`, `const &c = 2;`,
		// Expressions
		`x = a + b * c;`, `x = (a + b) * c;`, `x = a ? b : c;`, `x = a, b;`,
		`x++;`, `--y;`, `o.f += 2;`,
		// Markers
		`const s = &x;`, `const s = &o.f;`, `const s = &o.m[k()];`,
		`const s = &&this.#x;`, `f(&x, &y);`,
		// Arrows and calls
		`const f = (a, b) => a + b;`, `const g = x => x;`,
		`const h = () => { return 1; };`, `((x) => x)(42);`,
		`f(1)(2)[3].m().#p;`,
		// New
		`x = new C();`, `x = new C;`, `x = new (f())(1);`,
		// Classes
		`class A {}`,
		`class B extends A { #x = 1; constructor(v) { this.#x = v; } m() { return this.#x; } }`,
		`class C { static n = 0; static { C.n = 1; } }`,
		`class D extends B { expose #x; }`,
		`class E extends D { import #x; }`,
		// Control flow
		`if (a) { f(); } else if (b) { g(); } else { h(); }`,
		`while (i < 10) { i += 1; }`,
		`return x + 1;`,
		// Objects and arrays
		`let o = { a: 1, "b": [2, 3] };`,
		// Await and yield
		`x = await p;`, `y = yield v;`,
		// Edge cases that might trip up the parser
		``, `(`, `)`, `{`, `}`, `[`, `]`, `;`, `=>`,
		`let`, `let x`, `let x =`, `const x;`,
		`&`, `&&`, `&& x;`, `&1;`, `f() = 3;`, `this = 1;`,
		`class`, `class C {`, `class C extends {}`,
		`expose`, `expose #;`, `import #x`,
		`new`, `new ()`,
		`#x;`, `. x`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked on input %q: %v", data, r)
			}
		}()

		file, diags := Parse("fuzz.sjs", data)
		if file == nil {
			return
		}
		if len(diags) > 0 {
			return
		}

		// A clean parse must also survive printing.
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("printer panicked on parse of %q: %v", data, r)
				}
			}()
			_ = Print(file)
		}()
	})
}

// ---------------------------------------------------------------------------
// FuzzPipeline: feed arbitrary sources through the full pipeline
// (parse -> resolve -> rewrite -> print). Diagnostics are fine, panics
// are not.
// ---------------------------------------------------------------------------

func FuzzPipeline(f *testing.F) {
	seeds := []string{
		// Plain code passes through
		`let x = 1; x = x + 1;`,
		// Reified bindings
		`let &x = 5; x += 1; const s = &x; f(x, s);`,
		`const &c = 1; const s = &c;`,
		`let &u; u = 2;`,
		// Expression slots
		`const s = &o.m[k()];`,
		`class C { #x = 0; m() { return &this.#x; } }`,
		// Unbound accessors
		`class C { #x = 0; static m() { return &&this.#x; } }`,
		// Sharing
		`class B { #hp = 9; expose #hp; } class D extends B { import #hp; heal(n) { this.#hp += n; } }`,
		// Suspension points
		`const s = &o[await k()];`,
		`const s = &a[yield v];`,
		// Diagnostics on purpose
		`const s = &f();`, `const s = &1;`, `const s = &&x;`,
		`let &x = 1; const bad = eval; eval("x");`,
		`let __x = 1;`,
		`c = 2;`,
		// Edge fragments
		``, `&`, `let &;`, `class C { expose #x; }`,
		// Deeply nested
		`const s = &a.b.c.d[e.f[g]].h;`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("pipeline panicked on input %q: %v", data, r)
			}
		}()

		out, diags := RewriteSource("fuzz.sjs", data)
		if len(diags) > 0 {
			if out != nil {
				t.Fatalf("RewriteSource(%q) returned both a tree and diagnostics", data)
			}
			return
		}
		if out == nil {
			t.Fatalf("RewriteSource(%q) returned no tree and no diagnostics", data)
		}

		// The rewritten tree must print and reparse without panicking.
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("printing rewrite of %q panicked: %v", data, r)
				}
			}()
			printed := Print(out)
			_, _ = Parse("fuzz.js", printed)
		}()
	})
}
