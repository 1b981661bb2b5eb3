package compiler

// ---------------------------------------------------------------------------
// Friend slots: the doubled marker and expose/import sharing
// ---------------------------------------------------------------------------

// unboundSlot handles the doubled marker. The accessor pair takes its
// receiver as an explicit first argument instead of capturing one, so a
// single slot serves every instance of the declaring class. That shape is
// a deliberate hole in the private brand, which is why it is only
// available where the class itself could punch it: a static context of
// the declaring class.
func (rw *rewriter) unboundSlot(e *ReifyExpr) Expr {
	target, ok := e.Target.(*PrivateExpr)
	if !ok {
		rw.errorf(e.Span().Start, MalformedTarget,
			"the doubled marker requires a private field access, not %s", exprNoun(e.Target))
		return e
	}
	if _, isThis := target.Object.(*ThisExpr); !isThis {
		rw.errorf(e.Span().Start, MalformedTarget,
			"the doubled marker requires this as the receiver")
		return e
	}
	if rw.curClass == nil || !rw.inStatic {
		rw.errorf(e.Span().Start, MalformedTarget,
			"the doubled marker is only available in a static context of the declaring class")
		return e
	}
	if target.Imported || target.Origin != rw.curClass {
		rw.errorf(e.Span().Start, MalformedTarget,
			"#%s is not declared by class %s", target.Name, rw.curClass.Name.Name)
		return e
	}
	return rw.unboundLiteral(e.SpanVal, target.Name, rw.curClass)
}

// unboundLiteral builds the receiver-taking accessor pair for a private
// field. It is only ever emitted inside the declaring class's body, where
// the private name is in scope.
func (rw *rewriter) unboundLiteral(sp Span, name string, origin *ClassDecl) *ObjectLiteral {
	po := rw.fresh("o", sp)
	peek := &ArrowFn{
		SpanVal:  sp,
		Params:   []*Ident{po},
		ExprBody: &PrivateExpr{SpanVal: sp, Object: po, Name: name, Origin: origin},
	}

	qo := rw.fresh("o", sp)
	v := rw.fresh("v", sp)
	poke := &ArrowFn{
		SpanVal: sp,
		Params:  []*Ident{qo, v},
		ExprBody: &AssignExpr{
			SpanVal: sp,
			Target:  &PrivateExpr{SpanVal: sp, Object: qo, Name: name, Origin: origin},
			Op:      "=",
			Value:   v,
		},
	}

	lit := &ObjectLiteral{SpanVal: sp, Fields: []ObjectField{
		{Key: "peek", Value: peek},
		{Key: "poke", Value: poke},
	}}
	verifyReceiverFree(lit)
	return lit
}

// exposeBlock builds the static block that publishes a class's exposed
// fields into their module slots, and registers those slots for hoisted
// declaration in the scope enclosing the class. The block runs at class
// definition time, before any subclass extending this one is reached.
func (rw *rewriter) exposeBlock(c *ClassDecl, exposes []*ExposeDecl) *StaticBlock {
	var body []Stmt
	for _, ex := range exposes {
		name := rw.exports[c][ex.Name]
		rw.hoisted = append(rw.hoisted, name)
		assign := &AssignExpr{
			SpanVal: ex.SpanVal,
			Target:  rw.tempIdent(name, ex.SpanVal),
			Op:      "=",
			Value:   rw.unboundLiteral(ex.SpanVal, ex.Name, c),
		}
		body = append(body, &ExprStmt{SpanVal: ex.SpanVal, Expr: assign})
	}
	return &StaticBlock{SpanVal: c.SpanVal, Body: body}
}

// exportOf returns the module slot name backing an imported private
// access.
func (rw *rewriter) exportOf(e *PrivateExpr) string {
	name, ok := rw.exports[e.Origin][e.Name]
	if !ok {
		panic("import with no matching expose survived resolution")
	}
	return name
}

// CheckSharing reports every cross-class sharing construct in a unit: the
// doubled marker, expose and import. Projects that disable sharing run
// this before rewriting.
func CheckSharing(f *File) DiagnosticList {
	var diags DiagnosticList
	Walk(f, func(n Node) bool {
		switch n := n.(type) {
		case *ReifyExpr:
			if n.Unbound {
				diags = append(diags, Diagnostic{
					Pos:  n.Span().Start,
					Kind: BadScope,
					Msg:  "the doubled marker is disabled for this project",
				})
			}
		case *ExposeDecl:
			diags = append(diags, Diagnostic{
				Pos:  n.Span().Start,
				Kind: BadScope,
				Msg:  "expose is disabled for this project",
			})
		case *ImportDecl:
			diags = append(diags, Diagnostic{
				Pos:  n.Span().Start,
				Kind: BadScope,
				Msg:  "import is disabled for this project",
			})
		}
		return true
	})
	diags.Sort()
	return diags
}
