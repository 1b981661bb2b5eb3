package compiler

import "strings"

// ---------------------------------------------------------------------------
// Compound-access desugaring
// ---------------------------------------------------------------------------

// slotAccess builds reads and writes against an already-addressed location.
// The addressing work happens once, before the access pair is constructed;
// read and write may then be emitted in any combination without repeating
// effects.
type slotAccess struct {
	read  func() Expr
	write func(v Expr) Expr
}

// bindingAccess accesses a reified binding through its hidden slot.
func (rw *rewriter) bindingAccess(b *Binding, sp Span) slotAccess {
	return slotAccess{
		read: func() Expr {
			return methodCall(rw.tempIdent(b.SlotName, sp), "peek", nil, sp)
		},
		write: func(v Expr) Expr {
			return methodCall(rw.tempIdent(b.SlotName, sp), "poke", []Expr{v}, sp)
		},
	}
}

// importedAccess accesses an imported private field through the exposing
// class's module slot, with an explicit receiver.
func (rw *rewriter) importedAccess(slotName string, recv Expr, sp Span) slotAccess {
	return slotAccess{
		read: func() Expr {
			return methodCall(rw.tempIdent(slotName, sp), "peek", []Expr{recv}, sp)
		},
		write: func(v Expr) Expr {
			return methodCall(rw.tempIdent(slotName, sp), "poke", []Expr{recv, v}, sp)
		},
	}
}

// captureInline rewrites a receiver expression and pins it in a hoisted
// temporary, appending the capture to lead. Expressions whose repetition
// is unobservable stay inline.
func (rw *rewriter) captureInline(lead *[]Expr, e Expr) Expr {
	rewritten := rw.expr(e)
	if stableInline(rewritten) {
		return rewritten
	}
	t := rw.hoistTemp(e.Span())
	*lead = append(*lead, &AssignExpr{SpanVal: e.Span(), Target: t, Op: "=", Value: rewritten})
	return t
}

// writeThrough builds the value-preserving write sequence for a slot-backed
// target: capture the value, write it, yield the captured value. The slot's
// own poke result never leaks into the expression value.
func (rw *rewriter) writeThrough(acc slotAccess, lead []Expr, value Expr, sp Span) Expr {
	t := rw.hoistTemp(sp)
	exprs := append(lead,
		&AssignExpr{SpanVal: sp, Target: t, Op: "=", Value: value},
		acc.write(t),
		t)
	return &SeqExpr{SpanVal: sp, Exprs: exprs}
}

// compound splits a compound assignment on a slot-backed location into a
// read, the computation and a write. The read happens before the operand
// evaluates, matching the plain-variable operator.
func (rw *rewriter) compound(acc slotAccess, lead []Expr, op string, value Expr, sp Span) Expr {
	op = strings.TrimSuffix(op, "=")
	old := rw.hoistTemp(sp)
	next := rw.hoistTemp(sp)
	exprs := append(lead,
		&AssignExpr{SpanVal: sp, Target: old, Op: "=", Value: acc.read()},
		&AssignExpr{SpanVal: sp, Target: next, Op: "=", Value: &BinaryExpr{SpanVal: sp, Op: op, Left: old, Right: value}},
		acc.write(next),
		next)
	return &SeqExpr{SpanVal: sp, Exprs: exprs}
}

// stepped splits an increment or decrement on a slot-backed location. The
// prefix form yields the stepped value, the postfix form the prior one.
func (rw *rewriter) stepped(acc slotAccess, lead []Expr, op string, prefix bool, sp Span) Expr {
	binOp := "+"
	if op == "--" {
		binOp = "-"
	}
	old := rw.hoistTemp(sp)
	next := rw.hoistTemp(sp)
	result := old
	if prefix {
		result = next
	}
	one := &NumberLiteral{SpanVal: sp, Value: 1}
	exprs := append(lead,
		&AssignExpr{SpanVal: sp, Target: old, Op: "=", Value: acc.read()},
		&AssignExpr{SpanVal: sp, Target: next, Op: "=", Value: &BinaryExpr{SpanVal: sp, Op: binOp, Left: old, Right: one}},
		acc.write(next),
		result)
	return &SeqExpr{SpanVal: sp, Exprs: exprs}
}
