package compiler

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Printer: canonical source rendering
// ---------------------------------------------------------------------------

// Operator precedence levels for parenthesization; higher binds tighter.
const (
	precSeq = iota + 1
	precAssign
	precCond
	precOr
	precAnd
	precEq
	precRel
	precAdd
	precMul
	precUnary
	precPostfix
	precCall
	precPrimary
)

// Print renders a syntax tree as canonical source. Trees that still carry
// reification markers print with their markers, so both the input and the
// output dialect round-trip through the parser.
func Print(n Node) string {
	p := &printer{buf: &strings.Builder{}}
	switch n := n.(type) {
	case *File:
		for _, s := range n.Stmts {
			p.stmt(s)
		}
	case Stmt:
		p.stmt(n)
	case Expr:
		p.expr(n, 0)
	default:
		panic(n)
	}
	return p.buf.String()
}

// printer walks the tree and emits canonical source.
type printer struct {
	indent int
	buf    *strings.Builder
}

func (p *printer) write(s string) {
	p.buf.WriteString(s)
}

// writeIndent writes the current indentation prefix (two spaces per level).
func (p *printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("  ")
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *VarDecl:
		p.writeIndent()
		if s.Const {
			p.write("const ")
		} else {
			p.write("let ")
		}
		if s.Reified {
			p.write("&")
		}
		p.write(s.Name.Name)
		if s.Init != nil {
			p.write(" = ")
			p.expr(s.Init, precAssign)
		}
		p.write(";\n")

	case *ExprStmt:
		// Sequences are printed parenthesized at statement level; a bare
		// leading { would parse as a block.
		p.writeIndent()
		if startsWithBrace(s.Expr) {
			p.write("(")
			p.expr(s.Expr, 0)
			p.write(")")
		} else {
			p.expr(s.Expr, precSeq+1)
		}
		p.write(";\n")

	case *BlockStmt:
		p.writeIndent()
		p.blockBody(s.Stmts)
		p.write("\n")

	case *IfStmt:
		p.writeIndent()
		for {
			p.write("if (")
			p.expr(s.Cond, 0)
			p.write(") ")
			p.blockBody(s.Then.Stmts)
			if s.Else == nil {
				break
			}
			p.write(" else ")
			if next, ok := s.Else.(*IfStmt); ok {
				s = next
				continue
			}
			p.blockBody(s.Else.(*BlockStmt).Stmts)
			break
		}
		p.write("\n")

	case *WhileStmt:
		p.writeIndent()
		p.write("while (")
		p.expr(s.Cond, 0)
		p.write(") ")
		p.blockBody(s.Body.Stmts)
		p.write("\n")

	case *ReturnStmt:
		p.writeIndent()
		p.write("return")
		if s.Value != nil {
			p.write(" ")
			p.expr(s.Value, precSeq+1)
		}
		p.write(";\n")

	case *ClassDecl:
		p.writeIndent()
		p.write("class ")
		p.write(s.Name.Name)
		if s.SuperName != nil {
			p.write(" extends ")
			p.write(s.SuperName.Name)
		}
		if len(s.Members) == 0 {
			p.write(" {}\n")
			return
		}
		p.write(" {\n")
		p.indent++
		for _, m := range s.Members {
			p.member(m)
		}
		p.indent--
		p.writeIndent()
		p.write("}\n")

	default:
		panic(s)
	}
}

// blockBody prints { ... } starting at the cursor, without a trailing
// newline.
func (p *printer) blockBody(stmts []Stmt) {
	if len(stmts) == 0 {
		p.write("{}")
		return
	}
	p.write("{\n")
	p.indent++
	for _, s := range stmts {
		p.stmt(s)
	}
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *printer) member(m ClassMember) {
	switch m := m.(type) {
	case *FieldDef:
		p.writeIndent()
		if m.Static {
			p.write("static ")
		}
		if m.Private {
			p.write("#")
		}
		p.write(m.Name)
		if m.Init != nil {
			p.write(" = ")
			p.expr(m.Init, precAssign)
		}
		p.write(";\n")

	case *MethodDef:
		p.writeIndent()
		if m.Static {
			p.write("static ")
		}
		p.write(m.Name)
		p.write("(")
		for i, param := range m.Params {
			if i > 0 {
				p.write(", ")
			}
			p.write(param.Name)
		}
		p.write(") ")
		p.blockBody(m.Body)
		p.write("\n")

	case *StaticBlock:
		p.writeIndent()
		p.write("static ")
		p.blockBody(m.Body)
		p.write("\n")

	case *ExposeDecl:
		p.writeIndent()
		p.write("expose #")
		p.write(m.Name)
		p.write(";\n")

	case *ImportDecl:
		p.writeIndent()
		p.write("import #")
		p.write(m.Name)
		p.write(";\n")

	default:
		panic(m)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *printer) expr(e Expr, min int) {
	if exprPrec(e) < min {
		p.write("(")
		p.expr(e, 0)
		p.write(")")
		return
	}

	switch e := e.(type) {
	case *NumberLiteral:
		p.write(formatNumber(e.Value))

	case *StringLiteral:
		p.write(strconv.Quote(e.Value))

	case *BoolLiteral:
		if e.Value {
			p.write("true")
		} else {
			p.write("false")
		}

	case *NullLiteral:
		p.write("null")

	case *UndefinedLiteral:
		p.write("undefined")

	case *Ident:
		p.write(e.Name)

	case *ThisExpr:
		p.write("this")

	case *ArrayLiteral:
		p.write("[")
		for i, elem := range e.Elements {
			if i > 0 {
				p.write(", ")
			}
			p.expr(elem, precAssign)
		}
		p.write("]")

	case *ObjectLiteral:
		if len(e.Fields) == 0 {
			p.write("{}")
			return
		}
		p.write("{ ")
		for i, field := range e.Fields {
			if i > 0 {
				p.write(", ")
			}
			if field.Quoted {
				p.write(strconv.Quote(field.Key))
			} else {
				p.write(field.Key)
			}
			p.write(": ")
			p.expr(field.Value, precAssign)
		}
		p.write(" }")

	case *ArrowFn:
		p.write("(")
		for i, param := range e.Params {
			if i > 0 {
				p.write(", ")
			}
			p.write(param.Name)
		}
		p.write(") => ")
		if e.ExprBody == nil {
			p.blockBody(e.Body)
			return
		}
		switch e.ExprBody.(type) {
		case *ObjectLiteral, *AssignExpr, *SeqExpr:
			p.write("(")
			p.expr(e.ExprBody, 0)
			p.write(")")
		default:
			p.expr(e.ExprBody, precAssign)
		}

	case *CallExpr:
		p.expr(e.Callee, precCall)
		p.write("(")
		for i, arg := range e.Args {
			if i > 0 {
				p.write(", ")
			}
			p.expr(arg, precAssign)
		}
		p.write(")")

	case *NewExpr:
		p.write("new ")
		if id, ok := e.Callee.(*Ident); ok {
			p.write(id.Name)
		} else {
			p.write("(")
			p.expr(e.Callee, 0)
			p.write(")")
		}
		p.write("(")
		for i, arg := range e.Args {
			if i > 0 {
				p.write(", ")
			}
			p.expr(arg, precAssign)
		}
		p.write(")")

	case *MemberExpr:
		if _, isNum := e.Object.(*NumberLiteral); isNum {
			p.write("(")
			p.expr(e.Object, 0)
			p.write(")")
		} else {
			p.expr(e.Object, precCall)
		}
		p.write(".")
		p.write(e.Name)

	case *IndexExpr:
		p.expr(e.Object, precCall)
		p.write("[")
		p.expr(e.Key, 0)
		p.write("]")

	case *PrivateExpr:
		p.expr(e.Object, precCall)
		p.write(".#")
		p.write(e.Name)

	case *UnaryExpr:
		switch e.Op {
		case "await", "yield":
			p.write(e.Op)
			p.write(" ")
			p.expr(e.Operand, precUnary)
		case "-":
			p.write("-")
			// A nested minus must not fuse into a decrement token.
			p.expr(e.Operand, precUnary+1)
		default:
			p.write(e.Op)
			p.expr(e.Operand, precUnary)
		}

	case *ReifyExpr:
		if e.Unbound {
			p.write("&&")
		} else {
			p.write("&")
		}
		p.expr(e.Target, precUnary)

	case *IncDecExpr:
		if e.Prefix {
			p.write(e.Op)
			p.expr(e.Target, precUnary)
		} else {
			p.expr(e.Target, precPostfix)
			p.write(e.Op)
		}

	case *AssignExpr:
		p.expr(e.Target, precCall)
		p.write(" ")
		p.write(e.Op)
		p.write(" ")
		p.expr(e.Value, precAssign)

	case *BinaryExpr:
		prec := binaryOpPrec(e.Op)
		p.expr(e.Left, prec)
		p.write(" ")
		p.write(e.Op)
		p.write(" ")
		p.expr(e.Right, prec+1)

	case *CondExpr:
		p.expr(e.Cond, precOr)
		p.write(" ? ")
		p.expr(e.Then, precAssign)
		p.write(" : ")
		p.expr(e.Else, precAssign)

	case *SeqExpr:
		for i, inner := range e.Exprs {
			if i > 0 {
				p.write(", ")
			}
			p.expr(inner, precAssign)
		}

	default:
		panic(e)
	}
}

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *SeqExpr:
		return precSeq
	case *AssignExpr, *ArrowFn:
		return precAssign
	case *CondExpr:
		return precCond
	case *BinaryExpr:
		return binaryOpPrec(e.Op)
	case *UnaryExpr, *ReifyExpr:
		return precUnary
	case *IncDecExpr:
		if e.Prefix {
			return precUnary
		}
		return precPostfix
	case *CallExpr, *NewExpr, *MemberExpr, *IndexExpr, *PrivateExpr:
		return precCall
	default:
		return precPrimary
	}
}

func binaryOpPrec(op string) int {
	switch op {
	case "||":
		return precOr
	case "&&":
		return precAnd
	case "==", "!=":
		return precEq
	case "<", "<=", ">", ">=":
		return precRel
	case "+", "-":
		return precAdd
	case "*", "/", "%":
		return precMul
	}
	panic("unknown operator " + op)
}

// startsWithBrace reports whether an expression's leftmost token is {,
// which statement position would read as a block.
func startsWithBrace(e Expr) bool {
	switch e := e.(type) {
	case *ObjectLiteral:
		return true
	case *MemberExpr:
		return startsWithBrace(e.Object)
	case *IndexExpr:
		return startsWithBrace(e.Object)
	case *PrivateExpr:
		return startsWithBrace(e.Object)
	case *CallExpr:
		return startsWithBrace(e.Callee)
	case *BinaryExpr:
		return startsWithBrace(e.Left)
	case *CondExpr:
		return startsWithBrace(e.Cond)
	case *AssignExpr:
		return startsWithBrace(e.Target)
	case *IncDecExpr:
		return !e.Prefix && startsWithBrace(e.Target)
	case *SeqExpr:
		return startsWithBrace(e.Exprs[0])
	}
	return false
}

// formatNumber renders a numeric value, preferring the integer form.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
