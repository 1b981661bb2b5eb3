package compiler

// ---------------------------------------------------------------------------
// Reification: slot construction and reified-binding occurrences
// ---------------------------------------------------------------------------

// reify eliminates a reification marker, producing the expression that
// builds (or names) the slot for its target.
func (rw *rewriter) reify(e *ReifyExpr) Expr {
	if e.Unbound {
		return rw.unboundSlot(e)
	}

	if target, ok := e.Target.(*Ident); ok {
		b := target.Binding
		if b.Reified {
			// The binding is already backed by a slot; hand out that
			// slot, so every reification of the binding aliases it.
			return rw.tempIdent(b.SlotName, e.SpanVal)
		}
		return rw.slotLiteral(e.SpanVal, target, !b.Const)
	}

	if target, ok := e.Target.(*PrivateExpr); ok && target.Imported {
		return rw.importedSlot(e, target)
	}

	plan, ok := rw.extract(e.Target)
	if !ok {
		return e
	}
	lit := rw.slotLiteral(e.SpanVal, plan.Residual, true)
	return rw.planWrap(e.SpanVal, plan, lit)
}

// slotLiteral builds the accessor pair over a residual location. Immutable
// locations get no poke: absence of the capability is the signal, not a
// poke that throws.
func (rw *rewriter) slotLiteral(sp Span, residual Expr, withPoke bool) *ObjectLiteral {
	peek := &ArrowFn{SpanVal: sp, ExprBody: residual}
	fields := []ObjectField{{Key: "peek", Value: peek}}
	if withPoke {
		v := rw.fresh("v", sp)
		poke := &ArrowFn{
			SpanVal:  sp,
			Params:   []*Ident{v},
			ExprBody: &AssignExpr{SpanVal: sp, Target: residual, Op: "=", Value: v},
		}
		fields = append(fields, ObjectField{Key: "poke", Value: poke})
	}
	lit := &ObjectLiteral{SpanVal: sp, Fields: fields}
	verifyReceiverFree(lit)
	return lit
}

// importedSlot reifies a private access that resolves through an exposed
// slot. The receiver is captured once and the accessors delegate to the
// class-wide slot with it, so the result is bound to a single instance
// like any other slot.
func (rw *rewriter) importedSlot(e *ReifyExpr, target *PrivateExpr) Expr {
	sp := e.SpanVal
	slotName := rw.exportOf(target)

	var plan AddressingPlan
	recv := rw.capture(&plan, target.Object)
	if recv == nil {
		return e
	}

	peek := &ArrowFn{
		SpanVal:  sp,
		ExprBody: methodCall(rw.tempIdent(slotName, sp), "peek", []Expr{recv}, sp),
	}
	v := rw.fresh("v", sp)
	poke := &ArrowFn{
		SpanVal:  sp,
		Params:   []*Ident{v},
		ExprBody: methodCall(rw.tempIdent(slotName, sp), "poke", []Expr{recv, v}, sp),
	}
	lit := &ObjectLiteral{SpanVal: sp, Fields: []ObjectField{
		{Key: "peek", Value: peek},
		{Key: "poke", Value: poke},
	}}
	verifyReceiverFree(lit)
	return rw.planWrap(sp, plan, lit)
}

// planWrap evaluates a plan's captures once, in source order, around an
// expression over the residual. With no captures the expression stands
// alone. Otherwise an immediately applied arrow gives each evaluation of
// the reification its own cells, which the accessors close over; reusing
// hoisted temporaries here would let a later evaluation of the same marker
// retarget an earlier slot.
func (rw *rewriter) planWrap(sp Span, plan AddressingPlan, body Expr) Expr {
	if len(plan.Temps) == 0 {
		return body
	}
	params := make([]*Ident, len(plan.Temps))
	args := make([]Expr, len(plan.Temps))
	for i, t := range plan.Temps {
		params[i] = rw.tempIdent(t.Name, sp)
		args[i] = t.Init
	}
	fn := &ArrowFn{SpanVal: sp, Params: params, ExprBody: body}
	return &CallExpr{SpanVal: sp, Callee: fn, Args: args}
}

// reifyDecl replaces a reified declaration with its hidden slot: a fresh
// cell initialized once, wrapped in an accessor pair. The cell lives in an
// arrow activation, so nothing but the accessors can reach it. Constant
// declarations keep their immutability by omitting poke, which also keeps
// the marker from leaking a write capability to whoever reifies the
// binding later.
func (rw *rewriter) reifyDecl(d *VarDecl) Stmt {
	sp := d.SpanVal
	var init Expr
	if d.Init != nil {
		init = rw.expr(d.Init)
	} else {
		init = &UndefinedLiteral{SpanVal: sp}
	}

	cell := rw.fresh("cell", sp)
	lit := rw.slotLiteral(sp, cell, !d.Const)
	fn := &ArrowFn{SpanVal: sp, Params: []*Ident{cell}, ExprBody: lit}
	call := &CallExpr{SpanVal: sp, Callee: fn, Args: []Expr{init}}

	return &VarDecl{
		SpanVal: sp,
		Const:   true,
		Name:    rw.tempIdent(d.Name.Binding.SlotName, d.Name.SpanVal),
		Init:    call,
	}
}

// peekCall rewrites a read of a reified binding.
func (rw *rewriter) peekCall(id *Ident) Expr {
	slot := rw.tempIdent(id.Binding.SlotName, id.SpanVal)
	return methodCall(slot, "peek", nil, id.SpanVal)
}

// verifyReceiverFree panics when a generated accessor pair captures an
// implicit receiver. The extractor hoists every receiver, so this guards
// the rewriter against its own regressions, not against user input.
func verifyReceiverFree(lit *ObjectLiteral) {
	Walk(lit, func(n Node) bool {
		if _, ok := n.(*ThisExpr); ok {
			panic("generated accessor captures an implicit receiver")
		}
		return true
	})
}
