package compiler

// Walk traverses a syntax tree in depth-first order. It starts by calling
// f(n); n must not be nil. If f returns true, Walk calls itself recursively
// for each non-nil child of n, then calls f(nil).
func Walk(n Node, f func(Node) bool) {
	if !f(n) {
		return
	}

	switch n := n.(type) {
	case *File:
		walkStmts(n.Stmts, f)

	case *NumberLiteral, *StringLiteral, *BoolLiteral, *NullLiteral,
		*UndefinedLiteral, *Ident, *ThisExpr:
		// no children

	case *ArrayLiteral:
		walkExprs(n.Elements, f)

	case *ObjectLiteral:
		for _, field := range n.Fields {
			Walk(field.Value, f)
		}

	case *ArrowFn:
		for _, param := range n.Params {
			Walk(param, f)
		}
		if n.ExprBody != nil {
			Walk(n.ExprBody, f)
		}
		walkStmts(n.Body, f)

	case *CallExpr:
		Walk(n.Callee, f)
		walkExprs(n.Args, f)

	case *NewExpr:
		Walk(n.Callee, f)
		walkExprs(n.Args, f)

	case *MemberExpr:
		Walk(n.Object, f)

	case *IndexExpr:
		Walk(n.Object, f)
		Walk(n.Key, f)

	case *PrivateExpr:
		Walk(n.Object, f)

	case *UnaryExpr:
		Walk(n.Operand, f)

	case *ReifyExpr:
		Walk(n.Target, f)

	case *AssignExpr:
		Walk(n.Target, f)
		Walk(n.Value, f)

	case *IncDecExpr:
		Walk(n.Target, f)

	case *BinaryExpr:
		Walk(n.Left, f)
		Walk(n.Right, f)

	case *CondExpr:
		Walk(n.Cond, f)
		Walk(n.Then, f)
		Walk(n.Else, f)

	case *SeqExpr:
		walkExprs(n.Exprs, f)

	case *VarDecl:
		Walk(n.Name, f)
		if n.Init != nil {
			Walk(n.Init, f)
		}

	case *ExprStmt:
		Walk(n.Expr, f)

	case *BlockStmt:
		walkStmts(n.Stmts, f)

	case *IfStmt:
		Walk(n.Cond, f)
		Walk(n.Then, f)
		if n.Else != nil {
			Walk(n.Else, f)
		}

	case *WhileStmt:
		Walk(n.Cond, f)
		Walk(n.Body, f)

	case *ReturnStmt:
		if n.Value != nil {
			Walk(n.Value, f)
		}

	case *ClassDecl:
		Walk(n.Name, f)
		if n.SuperName != nil {
			Walk(n.SuperName, f)
		}
		for _, m := range n.Members {
			Walk(m, f)
		}

	case *FieldDef:
		if n.Init != nil {
			Walk(n.Init, f)
		}

	case *MethodDef:
		for _, param := range n.Params {
			Walk(param, f)
		}
		walkStmts(n.Body, f)

	case *StaticBlock:
		walkStmts(n.Body, f)

	case *ExposeDecl, *ImportDecl:
		// no children

	default:
		panic(n)
	}

	f(nil)
}

func walkStmts(stmts []Stmt, f func(Node) bool) {
	for _, s := range stmts {
		Walk(s, f)
	}
}

func walkExprs(exprs []Expr, f func(Node) bool) {
	for _, e := range exprs {
		Walk(e, f)
	}
}
