package compiler

// ---------------------------------------------------------------------------
// Addressing-subexpression extraction
// ---------------------------------------------------------------------------

// An AddressingPlan fixes which location a target expression addresses. The
// temporaries capture, in source order, every subexpression that picks the
// location; the residual re-expresses the target over those temporaries.
// Evaluating the temporaries once and then reading or writing the residual
// any number of times touches the same location each time.
type AddressingPlan struct {
	Temps    []PlanTemp
	Residual Expr
}

// PlanTemp is one captured addressing subexpression.
type PlanTemp struct {
	Name string
	Init Expr
}

// extract builds the addressing plan for a reification target or a
// slot-backed write target. It returns false after recording diagnostics
// when the expression is not an assignable location or when an addressing
// subexpression cannot be evaluated once at the extraction point.
func (rw *rewriter) extract(target Expr) (AddressingPlan, bool) {
	var plan AddressingPlan

	switch target := target.(type) {
	case *Ident:
		plan.Residual = target
		return plan, true

	case *MemberExpr:
		obj := rw.capture(&plan, target.Object)
		if obj == nil {
			return plan, false
		}
		plan.Residual = &MemberExpr{SpanVal: target.SpanVal, Object: obj, Name: target.Name}
		return plan, true

	case *IndexExpr:
		obj := rw.capture(&plan, target.Object)
		key := rw.capture(&plan, target.Key)
		if obj == nil || key == nil {
			return plan, false
		}
		plan.Residual = &IndexExpr{SpanVal: target.SpanVal, Object: obj, Key: key}
		return plan, true

	case *PrivateExpr:
		obj := rw.capture(&plan, target.Object)
		if obj == nil {
			return plan, false
		}
		plan.Residual = &PrivateExpr{
			SpanVal:  target.SpanVal,
			Object:   obj,
			Name:     target.Name,
			Origin:   target.Origin,
			Imported: target.Imported,
		}
		return plan, true

	default:
		rw.errorf(target.Span().Start, MalformedTarget,
			"cannot reify %s: not an assignable location", exprNoun(target))
		return plan, false
	}
}

// capture rewrites one addressing subexpression and adds it to the plan,
// returning the leaf that stands for it in the residual, or nil when the
// subexpression cannot be hoisted. Literals stay in the residual: repeating
// them is indistinguishable from evaluating them once.
func (rw *rewriter) capture(plan *AddressingPlan, e Expr) Expr {
	failed := false
	if op, ok := suspendIn(e); ok {
		rw.errorf(e.Span().Start, UnsafeExtraction,
			"%s cannot be evaluated once at the reification point", op)
		failed = true
	}
	rewritten := rw.expr(e)
	if failed {
		return nil
	}
	if literalLeaf(rewritten) {
		return rewritten
	}
	name := rw.names.Fresh("t")
	plan.Temps = append(plan.Temps, PlanTemp{Name: name, Init: rewritten})
	return rw.tempIdent(name, e.Span())
}

// literalLeaf reports whether an addressing subexpression may stay inline
// in a residual instead of being captured.
func literalLeaf(e Expr) bool {
	switch e.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NullLiteral, *UndefinedLiteral:
		return true
	}
	return false
}

// stableInline reports whether re-reading an already rewritten expression
// inside the same activation is free of effects and always yields the same
// value. Such expressions may repeat inside an inline access sequence; they
// must still be captured when an accessor closure would carry them out of
// the activation.
func stableInline(e Expr) bool {
	if literalLeaf(e) {
		return true
	}
	_, isThis := e.(*ThisExpr)
	return isThis
}

// suspendIn reports the first suspending operator whose evaluation belongs
// to the enclosing activation. Bodies of nested function literals suspend
// their own activations, not this one, so they do not count.
func suspendIn(e Expr) (string, bool) {
	op := ""
	Walk(e, func(n Node) bool {
		if op != "" {
			return false
		}
		switch n := n.(type) {
		case *ArrowFn:
			return false
		case *UnaryExpr:
			if n.Op == "await" || n.Op == "yield" {
				op = n.Op
				return false
			}
		}
		return true
	})
	return op, op != ""
}

// exprNoun names an expression form for diagnostics.
func exprNoun(e Expr) string {
	switch e.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NullLiteral, *UndefinedLiteral:
		return "a literal"
	case *ArrayLiteral:
		return "an array literal"
	case *ObjectLiteral:
		return "an object literal"
	case *ThisExpr:
		return "this"
	case *ArrowFn:
		return "a function literal"
	case *CallExpr:
		return "a call result"
	case *NewExpr:
		return "a constructed value"
	case *ReifyExpr:
		return "a reification"
	case *AssignExpr:
		return "an assignment"
	case *IncDecExpr:
		return "an increment result"
	case *UnaryExpr:
		return "an operator result"
	case *BinaryExpr:
		return "an operator result"
	case *CondExpr:
		return "a conditional result"
	case *SeqExpr:
		return "a sequence result"
	default:
		return "this expression"
	}
}
