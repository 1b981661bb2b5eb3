package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Rewriter: marker elimination over resolved trees
// ---------------------------------------------------------------------------

// EngineVersion identifies the rewrite engine's output shapes. It
// participates in cache keys, so cached output never outlives the engine
// that produced it.
const EngineVersion = "0.1.0"

// Rewrite eliminates every reification construct from a resolved tree and
// returns the plain output tree. On rejection it returns nil and the full
// batch of diagnostics; it never returns a partially rewritten tree. The
// input tree's nodes are not restructured, though binding annotations are
// extended; output subtrees may share unchanged input nodes.
func Rewrite(f *File) (*File, DiagnosticList) {
	rw := &rewriter{
		names:   &NameAlloc{},
		exports: make(map[*ClassDecl]map[string]string),
	}
	rw.assignSlotNames(f)
	stmts := rw.fnStmts(f.Stmts)
	if len(rw.diags) > 0 {
		rw.diags.Sort()
		return nil, rw.diags
	}
	return &File{SpanVal: f.SpanVal, Path: f.Path, Stmts: stmts}, nil
}

// RewriteSource runs the whole pipeline on one unit: parse, resolve,
// rewrite. Each stage's rejections stop the pipeline with the stage's full
// diagnostic batch.
func RewriteSource(path, src string) (*File, DiagnosticList) {
	f, diags := Parse(path, src)
	if len(diags) > 0 {
		return nil, diags
	}
	if diags := Resolve(f); len(diags) > 0 {
		return nil, diags
	}
	return Rewrite(f)
}

type rewriter struct {
	names *NameAlloc
	diags DiagnosticList

	// exports maps each exposing class to its private-name -> module-slot
	// assignments, filled before the main pass.
	exports map[*ClassDecl]map[string]string

	// hoisted collects temporary names needing declaration at the top of
	// the innermost function or module body under rewrite.
	hoisted []string

	// curClass and inStatic track the doubled marker's legality.
	curClass *ClassDecl
	inStatic bool
}

func (rw *rewriter) errorf(pos Position, kind DiagKind, format string, args ...interface{}) {
	rw.diags = append(rw.diags, Diagnostic{Pos: pos, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// tempIdent builds a reference to a rewriter-introduced name.
func (rw *rewriter) tempIdent(name string, sp Span) *Ident {
	return &Ident{SpanVal: sp, Name: name, Binding: &Binding{Scope: LocalScope, Name: name}}
}

// fresh allocates and references a new hidden name.
func (rw *rewriter) fresh(kind string, sp Span) *Ident {
	return rw.tempIdent(rw.names.Fresh(kind), sp)
}

// hoistTemp allocates a temporary declared at the top of the enclosing
// function or module body. Such temporaries are per-activation and must
// never be captured by a generated closure; closures get plan cells via
// planWrap instead.
func (rw *rewriter) hoistTemp(sp Span) *Ident {
	name := rw.names.Fresh("t")
	rw.hoisted = append(rw.hoisted, name)
	return rw.tempIdent(name, sp)
}

// assignSlotNames allocates hidden names before the main pass: every
// reified declaration gets its slot binding, every exposed field its
// module slot. Allocation follows source order, so generated names are
// deterministic for a given unit.
func (rw *rewriter) assignSlotNames(f *File) {
	Walk(f, func(n Node) bool {
		switch n := n.(type) {
		case *VarDecl:
			if n.Reified {
				n.Name.Binding.SlotName = rw.names.Fresh("slot")
			}
		case *ClassDecl:
			for _, m := range n.Members {
				ex, ok := m.(*ExposeDecl)
				if !ok {
					continue
				}
				slots := rw.exports[n]
				if slots == nil {
					slots = make(map[string]string)
					rw.exports[n] = slots
				}
				slots[ex.Name] = rw.names.Fresh("slot")
			}
		}
		return true
	})
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// fnStmts rewrites a function or module body, prepending declarations for
// the temporaries its sequences hoisted.
func (rw *rewriter) fnStmts(body []Stmt) []Stmt {
	saved := rw.hoisted
	rw.hoisted = nil
	out := rw.stmts(body)
	out = rw.hoistDecls(rw.hoisted, out)
	rw.hoisted = saved
	return out
}

func (rw *rewriter) stmts(stmts []Stmt) []Stmt {
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, rw.stmt(s))
	}
	return out
}

// hoistDecls prefixes a statement list with declarations for hoisted
// temporaries.
func (rw *rewriter) hoistDecls(names []string, stmts []Stmt) []Stmt {
	if len(names) == 0 {
		return stmts
	}
	out := make([]Stmt, 0, len(names)+len(stmts))
	for _, name := range names {
		out = append(out, &VarDecl{Name: rw.tempIdent(name, Span{})})
	}
	return append(out, stmts...)
}

func (rw *rewriter) stmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *VarDecl:
		if s.Reified {
			return rw.reifyDecl(s)
		}
		out := &VarDecl{SpanVal: s.SpanVal, Const: s.Const, Name: s.Name}
		if s.Init != nil {
			out.Init = rw.expr(s.Init)
		}
		return out

	case *ExprStmt:
		return &ExprStmt{SpanVal: s.SpanVal, Expr: rw.expr(s.Expr)}

	case *BlockStmt:
		return rw.block(s)

	case *IfStmt:
		out := &IfStmt{SpanVal: s.SpanVal, Cond: rw.expr(s.Cond), Then: rw.block(s.Then)}
		if s.Else != nil {
			out.Else = rw.stmt(s.Else)
		}
		return out

	case *WhileStmt:
		return &WhileStmt{SpanVal: s.SpanVal, Cond: rw.expr(s.Cond), Body: rw.block(s.Body)}

	case *ReturnStmt:
		out := &ReturnStmt{SpanVal: s.SpanVal}
		if s.Value != nil {
			out.Value = rw.expr(s.Value)
		}
		return out

	case *ClassDecl:
		return rw.classDecl(s)

	default:
		panic(s)
	}
}

// block rewrites a braced block. Blocks share the enclosing function's
// hoist list: a temporary's lifetime is the activation, not the block.
func (rw *rewriter) block(b *BlockStmt) *BlockStmt {
	return &BlockStmt{SpanVal: b.SpanVal, Stmts: rw.stmts(b.Stmts)}
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

func (rw *rewriter) classDecl(c *ClassDecl) Stmt {
	savedClass, savedStatic := rw.curClass, rw.inStatic
	rw.curClass = c

	out := &ClassDecl{
		SpanVal:   c.SpanVal,
		Name:      c.Name,
		SuperName: c.SuperName,
		Super:     c.Super,
	}
	var exposes []*ExposeDecl
	for _, m := range c.Members {
		switch m := m.(type) {
		case *FieldDef:
			rw.inStatic = m.Static
			out.Members = append(out.Members, rw.fieldDef(m))

		case *MethodDef:
			rw.inStatic = m.Static
			out.Members = append(out.Members, &MethodDef{
				SpanVal: m.SpanVal,
				Name:    m.Name,
				Static:  m.Static,
				Params:  m.Params,
				Body:    rw.fnStmts(m.Body),
			})

		case *StaticBlock:
			rw.inStatic = true
			out.Members = append(out.Members, &StaticBlock{SpanVal: m.SpanVal, Body: rw.fnStmts(m.Body)})

		case *ExposeDecl:
			exposes = append(exposes, m)

		case *ImportDecl:
			// Consumed during resolution; nothing remains in output.

		default:
			panic(m)
		}
	}
	rw.curClass, rw.inStatic = savedClass, savedStatic

	if len(exposes) > 0 {
		out.Members = append(out.Members, rw.exposeBlock(c, exposes))
	}
	return out
}

// fieldDef rewrites a field initializer. Initializers have no statement
// list of their own, so when the rewrite needs hoisted temporaries the
// initializer moves into an immediately applied arrow that carries them;
// the arrow keeps the initializer's this.
func (rw *rewriter) fieldDef(m *FieldDef) *FieldDef {
	out := &FieldDef{SpanVal: m.SpanVal, Name: m.Name, Private: m.Private, Static: m.Static}
	if m.Init == nil {
		return out
	}
	saved := rw.hoisted
	rw.hoisted = nil
	init := rw.expr(m.Init)
	if len(rw.hoisted) > 0 {
		body := rw.hoistDecls(rw.hoisted, []Stmt{&ReturnStmt{SpanVal: m.SpanVal, Value: init}})
		init = &CallExpr{
			SpanVal: m.SpanVal,
			Callee:  &ArrowFn{SpanVal: m.SpanVal, Body: body},
		}
	}
	rw.hoisted = saved
	out.Init = init
	return out
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (rw *rewriter) expr(e Expr) Expr {
	switch e := e.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NullLiteral,
		*UndefinedLiteral, *ThisExpr:
		return e

	case *Ident:
		if e.Binding != nil && e.Binding.Reified {
			return rw.peekCall(e)
		}
		return e

	case *ArrayLiteral:
		out := &ArrayLiteral{SpanVal: e.SpanVal, Elements: make([]Expr, len(e.Elements))}
		for i, elem := range e.Elements {
			out.Elements[i] = rw.expr(elem)
		}
		return out

	case *ObjectLiteral:
		out := &ObjectLiteral{SpanVal: e.SpanVal, Fields: make([]ObjectField, len(e.Fields))}
		for i, field := range e.Fields {
			out.Fields[i] = ObjectField{Key: field.Key, Quoted: field.Quoted, Value: rw.expr(field.Value)}
		}
		return out

	case *ArrowFn:
		return rw.arrowFn(e)

	case *CallExpr:
		out := &CallExpr{SpanVal: e.SpanVal, Callee: rw.expr(e.Callee), Args: make([]Expr, len(e.Args))}
		for i, arg := range e.Args {
			out.Args[i] = rw.expr(arg)
		}
		return out

	case *NewExpr:
		out := &NewExpr{SpanVal: e.SpanVal, Callee: rw.expr(e.Callee), Args: make([]Expr, len(e.Args))}
		for i, arg := range e.Args {
			out.Args[i] = rw.expr(arg)
		}
		return out

	case *MemberExpr:
		return &MemberExpr{SpanVal: e.SpanVal, Object: rw.expr(e.Object), Name: e.Name}

	case *IndexExpr:
		return &IndexExpr{SpanVal: e.SpanVal, Object: rw.expr(e.Object), Key: rw.expr(e.Key)}

	case *PrivateExpr:
		obj := rw.expr(e.Object)
		if e.Imported {
			slot := rw.tempIdent(rw.exportOf(e), e.SpanVal)
			return methodCall(slot, "peek", []Expr{obj}, e.SpanVal)
		}
		return &PrivateExpr{SpanVal: e.SpanVal, Object: obj, Name: e.Name, Origin: e.Origin}

	case *UnaryExpr:
		return &UnaryExpr{SpanVal: e.SpanVal, Op: e.Op, Operand: rw.expr(e.Operand)}

	case *ReifyExpr:
		return rw.reify(e)

	case *AssignExpr:
		return rw.assign(e)

	case *IncDecExpr:
		return rw.incDec(e)

	case *BinaryExpr:
		return &BinaryExpr{SpanVal: e.SpanVal, Op: e.Op, Left: rw.expr(e.Left), Right: rw.expr(e.Right)}

	case *CondExpr:
		return &CondExpr{SpanVal: e.SpanVal, Cond: rw.expr(e.Cond), Then: rw.expr(e.Then), Else: rw.expr(e.Else)}

	case *SeqExpr:
		out := &SeqExpr{SpanVal: e.SpanVal, Exprs: make([]Expr, len(e.Exprs))}
		for i, inner := range e.Exprs {
			out.Exprs[i] = rw.expr(inner)
		}
		return out

	default:
		panic(e)
	}
}

// arrowFn rewrites a function literal. An expression body that needs
// hoisted temporaries becomes a block body carrying their declarations.
func (rw *rewriter) arrowFn(e *ArrowFn) Expr {
	if e.ExprBody == nil {
		return &ArrowFn{SpanVal: e.SpanVal, Params: e.Params, Body: rw.fnStmts(e.Body)}
	}
	saved := rw.hoisted
	rw.hoisted = nil
	body := rw.expr(e.ExprBody)
	temps := rw.hoisted
	rw.hoisted = saved
	if len(temps) == 0 {
		return &ArrowFn{SpanVal: e.SpanVal, Params: e.Params, ExprBody: body}
	}
	stmts := rw.hoistDecls(temps, []Stmt{&ReturnStmt{SpanVal: e.SpanVal, Value: body}})
	return &ArrowFn{SpanVal: e.SpanVal, Params: e.Params, Body: stmts}
}

// assign rewrites an assignment. Slot-backed targets (reified bindings and
// imported private fields) go through their accessors; everything else
// keeps the native assignment with rewritten subexpressions.
func (rw *rewriter) assign(e *AssignExpr) Expr {
	if e.Op == "=" {
		switch target := e.Target.(type) {
		case *Ident:
			if target.Binding.Reified {
				acc := rw.bindingAccess(target.Binding, e.SpanVal)
				return rw.writeThrough(acc, nil, rw.expr(e.Value), e.SpanVal)
			}
		case *PrivateExpr:
			if target.Imported {
				var lead []Expr
				recv := rw.captureInline(&lead, target.Object)
				acc := rw.importedAccess(rw.exportOf(target), recv, e.SpanVal)
				return rw.writeThrough(acc, lead, rw.expr(e.Value), e.SpanVal)
			}
		}
		return &AssignExpr{SpanVal: e.SpanVal, Target: rw.assignTargetExpr(e.Target), Op: "=", Value: rw.expr(e.Value)}
	}

	switch target := e.Target.(type) {
	case *Ident:
		if target.Binding.Reified {
			acc := rw.bindingAccess(target.Binding, e.SpanVal)
			return rw.compound(acc, nil, e.Op, rw.expr(e.Value), e.SpanVal)
		}
	case *PrivateExpr:
		if target.Imported {
			var lead []Expr
			recv := rw.captureInline(&lead, target.Object)
			acc := rw.importedAccess(rw.exportOf(target), recv, e.SpanVal)
			return rw.compound(acc, lead, e.Op, rw.expr(e.Value), e.SpanVal)
		}
	}
	return &AssignExpr{SpanVal: e.SpanVal, Target: rw.assignTargetExpr(e.Target), Op: e.Op, Value: rw.expr(e.Value)}
}

// incDec rewrites an increment or decrement, splitting it when the target
// is slot-backed.
func (rw *rewriter) incDec(e *IncDecExpr) Expr {
	switch target := e.Target.(type) {
	case *Ident:
		if target.Binding.Reified {
			acc := rw.bindingAccess(target.Binding, e.SpanVal)
			return rw.stepped(acc, nil, e.Op, e.Prefix, e.SpanVal)
		}
	case *PrivateExpr:
		if target.Imported {
			var lead []Expr
			recv := rw.captureInline(&lead, target.Object)
			acc := rw.importedAccess(rw.exportOf(target), recv, e.SpanVal)
			return rw.stepped(acc, lead, e.Op, e.Prefix, e.SpanVal)
		}
	}
	return &IncDecExpr{SpanVal: e.SpanVal, Target: rw.assignTargetExpr(e.Target), Op: e.Op, Prefix: e.Prefix}
}

// assignTargetExpr rewrites inside a native assignment target without
// touching the access itself; the access stays in place for the host
// operator's own once-only addressing.
func (rw *rewriter) assignTargetExpr(t Expr) Expr {
	switch t := t.(type) {
	case *Ident:
		return t
	case *MemberExpr:
		return &MemberExpr{SpanVal: t.SpanVal, Object: rw.expr(t.Object), Name: t.Name}
	case *IndexExpr:
		return &IndexExpr{SpanVal: t.SpanVal, Object: rw.expr(t.Object), Key: rw.expr(t.Key)}
	case *PrivateExpr:
		return &PrivateExpr{SpanVal: t.SpanVal, Object: rw.expr(t.Object), Name: t.Name, Origin: t.Origin}
	default:
		panic(t)
	}
}

// methodCall builds recv.name(args).
func methodCall(recv Expr, name string, args []Expr, sp Span) Expr {
	return &CallExpr{
		SpanVal: sp,
		Callee:  &MemberExpr{SpanVal: sp, Object: recv, Name: name},
		Args:    args,
	}
}
