package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for slotted source
// ---------------------------------------------------------------------------

// Parser parses slotted source code into an AST. Errors are collected, not
// thrown; a parse with diagnostics yields a best-effort tree that callers
// must not rewrite.
type Parser struct {
	tokens    []Token
	pos       int // index of peekToken in tokens
	curToken  Token
	peekToken Token
	diags     DiagnosticList
	path      string
}

// NewParser creates a new parser for the given input.
func NewParser(path, input string) *Parser {
	p := &Parser{path: path}

	l := NewLexer(input)
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			p.diags = append(p.diags, Diagnostic{Pos: tok.Pos, Kind: BadSyntax, Msg: tok.Literal})
			continue
		}
		p.tokens = append(p.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	// Fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole compilation unit.
func Parse(path, input string) (*File, DiagnosticList) {
	p := NewParser(path, input)
	f := p.ParseFile()
	p.diags.Sort()
	return f, p.diags
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// expectSemi consumes a statement-terminating semicolon.
func (p *Parser) expectSemi() {
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
		return
	}
	p.errorf("expected ;, got %s", p.curToken.Type)
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorfAt(p.curToken.Pos, format, args...)
}

// errorfAt records a parse error at a specific position.
func (p *Parser) errorfAt(pos Position, format string, args ...interface{}) {
	p.diags = append(p.diags, Diagnostic{
		Pos:  pos,
		Kind: BadSyntax,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns accumulated parse diagnostics.
func (p *Parser) Diagnostics() DiagnosticList {
	return p.diags
}

// sync skips tokens until after the next semicolon or a block boundary, to
// resume statement parsing after an error.
func (p *Parser) sync() {
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			return
		}
		if p.curTokenIs(TokenRBrace) || p.curTokenIs(TokenLBrace) {
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseFile parses statements until EOF.
func (p *Parser) ParseFile() *File {
	start := Position{Offset: 0, Line: 1, Column: 1}

	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) {
		before := p.curToken
		stmt := p.parseStmt()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		// Guarantee progress even on a statement that parsed to nothing.
		if p.curToken == before && stmt == nil {
			p.nextToken()
		}
	}

	return &File{
		SpanVal: MakeSpan(start, p.curToken.Pos),
		Path:    p.path,
		Stmts:   stmts,
	}
}

// parseStmt parses a single statement.
func (p *Parser) parseStmt() Stmt {
	switch p.curToken.Type {
	case TokenLet, TokenConst:
		return p.parseVarDecl()
	case TokenClass:
		return p.parseClassDecl()
	case TokenIf:
		return p.parseIfStmt()
	case TokenWhile:
		return p.parseWhileStmt()
	case TokenReturn:
		return p.parseReturnStmt()
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.nextToken() // empty statement
		return nil
	default:
		return p.parseExprStmt()
	}
}

// parseVarDecl parses let/const declarations, including the reified form
// let &x = e.
func (p *Parser) parseVarDecl() Stmt {
	startPos := p.curToken.Pos
	isConst := p.curTokenIs(TokenConst)
	p.nextToken() // consume let/const

	reified := false
	if p.curTokenIs(TokenAmp) {
		reified = true
		p.nextToken()
	}

	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected variable name, got %s", p.curToken.Type)
		p.sync()
		return nil
	}
	name := &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
	p.nextToken()

	var init Expr
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		init = p.parseAssign()
	}

	if isConst && init == nil {
		p.errorf("const declaration of %s needs an initializer", name.Name)
	}

	p.expectSemi()

	return &VarDecl{
		SpanVal: MakeSpan(startPos, p.curToken.Pos),
		Const:   isConst,
		Reified: reified,
		Name:    name,
		Init:    init,
	}
}

// parseExprStmt parses an expression statement.
func (p *Parser) parseExprStmt() Stmt {
	startPos := p.curToken.Pos
	expr := p.parseExpr()
	if expr == nil {
		p.sync()
		return nil
	}
	p.expectSemi()
	return &ExprStmt{SpanVal: MakeSpan(startPos, p.curToken.Pos), Expr: expr}
}

// parseBlock parses a braced statement block.
func (p *Parser) parseBlock() *BlockStmt {
	startPos := p.curToken.Pos
	p.expect(TokenLBrace)

	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.curToken
		stmt := p.parseStmt()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.curToken == before && stmt == nil {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)

	return &BlockStmt{SpanVal: MakeSpan(startPos, p.curToken.Pos), Stmts: stmts}
}

// parseIfStmt parses if (cond) { ... } with optional else / else if.
func (p *Parser) parseIfStmt() Stmt {
	startPos := p.curToken.Pos
	p.nextToken() // consume if
	p.expect(TokenLParen)
	cond := p.parseExpr()
	p.expect(TokenRParen)

	if !p.curTokenIs(TokenLBrace) {
		p.errorf("expected block after if condition, got %s", p.curToken.Type)
		p.sync()
		return nil
	}
	then := p.parseBlock()

	var els Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			els = p.parseIfStmt()
		} else if p.curTokenIs(TokenLBrace) {
			els = p.parseBlock()
		} else {
			p.errorf("expected block or if after else, got %s", p.curToken.Type)
		}
	}

	return &IfStmt{
		SpanVal: MakeSpan(startPos, p.curToken.Pos),
		Cond:    cond,
		Then:    then,
		Else:    els,
	}
}

// parseWhileStmt parses while (cond) { ... }.
func (p *Parser) parseWhileStmt() Stmt {
	startPos := p.curToken.Pos
	p.nextToken() // consume while
	p.expect(TokenLParen)
	cond := p.parseExpr()
	p.expect(TokenRParen)

	if !p.curTokenIs(TokenLBrace) {
		p.errorf("expected block after while condition, got %s", p.curToken.Type)
		p.sync()
		return nil
	}
	body := p.parseBlock()

	return &WhileStmt{
		SpanVal: MakeSpan(startPos, p.curToken.Pos),
		Cond:    cond,
		Body:    body,
	}
}

// parseReturnStmt parses return with an optional value.
func (p *Parser) parseReturnStmt() Stmt {
	startPos := p.curToken.Pos
	p.nextToken() // consume return

	var value Expr
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		value = p.parseExpr()
	}
	p.expectSemi()

	return &ReturnStmt{SpanVal: MakeSpan(startPos, p.curToken.Pos), Value: value}
}

// ---------------------------------------------------------------------------
// Class parsing
// ---------------------------------------------------------------------------

// parseClassDecl parses class Name extends Super { members }.
func (p *Parser) parseClassDecl() Stmt {
	startPos := p.curToken.Pos
	p.nextToken() // consume class

	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected class name, got %s", p.curToken.Type)
		p.sync()
		return nil
	}
	name := &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
	p.nextToken()

	var superName *Ident
	if p.curTokenIs(TokenExtends) {
		p.nextToken()
		if !p.curTokenIs(TokenIdent) {
			p.errorf("expected superclass name, got %s", p.curToken.Type)
		} else {
			superName = &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
			p.nextToken()
		}
	}

	p.expect(TokenLBrace)

	var members []ClassMember
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.curToken
		m := p.parseClassMember()
		if m != nil {
			members = append(members, m)
		}
		if p.curToken == before && m == nil {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)

	return &ClassDecl{
		SpanVal:   MakeSpan(startPos, p.curToken.Pos),
		Name:      name,
		SuperName: superName,
		Members:   members,
	}
}

// parseClassMember parses one class body element.
func (p *Parser) parseClassMember() ClassMember {
	startPos := p.curToken.Pos

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
		return nil
	}

	static := false
	if p.curTokenIs(TokenStatic) {
		if p.peekTokenIs(TokenLBrace) {
			p.nextToken() // consume static
			block := p.parseBlock()
			return &StaticBlock{SpanVal: MakeSpan(startPos, p.curToken.Pos), Body: block.Stmts}
		}
		static = true
		p.nextToken()
	}

	switch p.curToken.Type {
	case TokenExpose:
		if static {
			p.errorf("expose cannot be static")
		}
		p.nextToken()
		if !p.curTokenIs(TokenPrivateName) {
			p.errorf("expected private name after expose, got %s", p.curToken.Type)
			p.sync()
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expectSemi()
		return &ExposeDecl{SpanVal: MakeSpan(startPos, p.curToken.Pos), Name: name}

	case TokenImport:
		if static {
			p.errorf("import cannot be static")
		}
		p.nextToken()
		if !p.curTokenIs(TokenPrivateName) {
			p.errorf("expected private name after import, got %s", p.curToken.Type)
			p.sync()
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expectSemi()
		return &ImportDecl{SpanVal: MakeSpan(startPos, p.curToken.Pos), Name: name}

	case TokenPrivateName:
		if static {
			p.errorf("static private fields are not supported")
		}
		name := p.curToken.Literal
		p.nextToken()
		var init Expr
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			init = p.parseAssign()
		}
		p.expectSemi()
		return &FieldDef{
			SpanVal: MakeSpan(startPos, p.curToken.Pos),
			Name:    name,
			Private: true,
			Init:    init,
		}

	case TokenIdent:
		name := p.curToken.Literal
		if p.peekTokenIs(TokenLParen) {
			p.nextToken() // consume name
			params := p.parseParamList()
			if !p.curTokenIs(TokenLBrace) {
				p.errorf("expected method body, got %s", p.curToken.Type)
				p.sync()
				return nil
			}
			body := p.parseBlock()
			return &MethodDef{
				SpanVal: MakeSpan(startPos, p.curToken.Pos),
				Name:    name,
				Static:  static,
				Params:  params,
				Body:    body.Stmts,
			}
		}
		p.nextToken() // consume name
		var init Expr
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			init = p.parseAssign()
		}
		p.expectSemi()
		return &FieldDef{
			SpanVal: MakeSpan(startPos, p.curToken.Pos),
			Name:    name,
			Static:  static,
			Init:    init,
		}

	default:
		p.errorf("unexpected %s in class body", p.curToken.Type)
		p.sync()
		return nil
	}
}

// parseParamList parses (a, b, c) into identifiers.
func (p *Parser) parseParamList() []*Ident {
	p.expect(TokenLParen)

	var params []*Ident
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if !p.curTokenIs(TokenIdent) {
			p.errorf("expected parameter name, got %s", p.curToken.Type)
			break
		}
		params = append(params, &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal})
		p.nextToken()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(TokenRParen)
	return params
}

// ---------------------------------------------------------------------------
// Expression parsing
// ---------------------------------------------------------------------------

// parseExpr parses at the lowest precedence: the comma sequence.
func (p *Parser) parseExpr() Expr {
	startPos := p.curToken.Pos
	left := p.parseAssign()
	if left == nil {
		return nil
	}
	if !p.curTokenIs(TokenComma) {
		return left
	}

	exprs := []Expr{left}
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		next := p.parseAssign()
		if next == nil {
			return nil
		}
		exprs = append(exprs, next)
	}
	return &SeqExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Exprs: exprs}
}

// parseAssign parses assignment expressions (right-associative).
func (p *Parser) parseAssign() Expr {
	startPos := p.curToken.Pos
	left := p.parseCond()
	if left == nil {
		return nil
	}

	if !IsAssignOp(p.curToken.Type) {
		return left
	}
	if !validAssignTarget(left) {
		p.errorfAt(startPos, "invalid assignment target")
	}

	op := p.curToken.Literal
	p.nextToken()
	right := p.parseAssign()
	if right == nil {
		return nil
	}

	return &AssignExpr{
		SpanVal: MakeSpan(startPos, p.curToken.Pos),
		Target:  left,
		Op:      op,
		Value:   right,
	}
}

// validAssignTarget reports whether an expression form can stand on the
// left of an assignment or under an increment operator.
func validAssignTarget(e Expr) bool {
	switch e.(type) {
	case *Ident, *MemberExpr, *IndexExpr, *PrivateExpr:
		return true
	}
	return false
}

// parseCond parses the conditional operator.
func (p *Parser) parseCond() Expr {
	startPos := p.curToken.Pos
	cond := p.parseBinary(0)
	if cond == nil || !p.curTokenIs(TokenQuestion) {
		return cond
	}

	p.nextToken()
	then := p.parseAssign()
	p.expect(TokenColon)
	els := p.parseAssign()
	if then == nil || els == nil {
		return nil
	}

	return &CondExpr{
		SpanVal: MakeSpan(startPos, p.curToken.Pos),
		Cond:    cond,
		Then:    then,
		Else:    els,
	}
}

// binaryPrec assigns precedence levels to infix operators; higher binds
// tighter. Zero means not an infix operator.
func binaryPrec(t TokenType) int {
	switch t {
	case TokenOrOr:
		return 1
	case TokenAmpAmp:
		return 2
	case TokenEq, TokenNe:
		return 3
	case TokenLt, TokenLe, TokenGt, TokenGe:
		return 4
	case TokenPlus, TokenMinus:
		return 5
	case TokenStar, TokenSlash, TokenPercent:
		return 6
	}
	return 0
}

// parseBinary parses infix operator chains by precedence climbing.
func (p *Parser) parseBinary(minPrec int) Expr {
	startPos := p.curToken.Pos
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		prec := binaryPrec(p.curToken.Type)
		if prec == 0 || prec < minPrec {
			return left
		}
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseBinary(prec + 1)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: MakeSpan(startPos, p.curToken.Pos),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
}

// parseUnary parses prefix operators, including the reification markers.
func (p *Parser) parseUnary() Expr {
	startPos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenBang, TokenMinus:
		op := p.curToken.Literal
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Op: op, Operand: operand}

	case TokenAwait, TokenYield:
		op := p.curToken.Literal
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Op: op, Operand: operand}

	case TokenInc, TokenDec:
		op := p.curToken.Literal
		p.nextToken()
		target := p.parseUnary()
		if target == nil {
			return nil
		}
		if !validAssignTarget(target) {
			p.errorfAt(startPos, "invalid %s target", op)
		}
		return &IncDecExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Target: target, Op: op, Prefix: true}

	case TokenAmp:
		p.nextToken()
		target := p.parseUnary()
		if target == nil {
			return nil
		}
		return &ReifyExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Target: target}

	case TokenAmpAmp:
		// Doubled marker in prefix position.
		p.nextToken()
		target := p.parseUnary()
		if target == nil {
			return nil
		}
		return &ReifyExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Target: target, Unbound: true}

	default:
		return p.parsePostfix()
	}
}

// parsePostfix parses postfix increment/decrement.
func (p *Parser) parsePostfix() Expr {
	startPos := p.curToken.Pos
	expr := p.parseCallMember()
	if expr == nil {
		return nil
	}

	if p.curTokenIs(TokenInc) || p.curTokenIs(TokenDec) {
		op := p.curToken.Literal
		if !validAssignTarget(expr) {
			p.errorfAt(startPos, "invalid %s target", op)
		}
		p.nextToken()
		return &IncDecExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Target: expr, Op: op}
	}
	return expr
}

// parseCallMember parses call, member, index and private-member chains.
func (p *Parser) parseCallMember() Expr {
	startPos := p.curToken.Pos
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	for {
		switch p.curToken.Type {
		case TokenDot:
			p.nextToken()
			if p.curTokenIs(TokenPrivateName) {
				expr = &PrivateExpr{
					SpanVal: MakeSpan(startPos, p.curToken.Pos),
					Object:  expr,
					Name:    p.curToken.Literal,
				}
				p.nextToken()
				continue
			}
			if !p.curTokenIs(TokenIdent) {
				p.errorf("expected member name, got %s", p.curToken.Type)
				return expr
			}
			expr = &MemberExpr{
				SpanVal: MakeSpan(startPos, p.curToken.Pos),
				Object:  expr,
				Name:    p.curToken.Literal,
			}
			p.nextToken()

		case TokenLBracket:
			p.nextToken()
			key := p.parseExpr()
			p.expect(TokenRBracket)
			if key == nil {
				return nil
			}
			expr = &IndexExpr{
				SpanVal: MakeSpan(startPos, p.curToken.Pos),
				Object:  expr,
				Key:     key,
			}

		case TokenLParen:
			args := p.parseArgs()
			expr = &CallExpr{
				SpanVal: MakeSpan(startPos, p.curToken.Pos),
				Callee:  expr,
				Args:    args,
			}

		default:
			return expr
		}
	}
}

// parseArgs parses a parenthesized argument list.
func (p *Parser) parseArgs() []Expr {
	p.expect(TokenLParen)

	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		arg := p.parseAssign()
		if arg == nil {
			break
		}
		args = append(args, arg)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(TokenRParen)
	return args
}

// parsePrimary parses literals, identifiers, this, new, arrows, grouping,
// arrays and object literals.
func (p *Parser) parsePrimary() Expr {
	startPos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenNumber:
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf("bad number literal %q", p.curToken.Literal)
		}
		span := p.tokenSpan()
		p.nextToken()
		return &NumberLiteral{SpanVal: span, Value: v}

	case TokenString:
		span := p.tokenSpan()
		lit := p.curToken.Literal
		p.nextToken()
		return &StringLiteral{SpanVal: span, Value: lit}

	case TokenTrue, TokenFalse:
		span := p.tokenSpan()
		v := p.curTokenIs(TokenTrue)
		p.nextToken()
		return &BoolLiteral{SpanVal: span, Value: v}

	case TokenNull:
		span := p.tokenSpan()
		p.nextToken()
		return &NullLiteral{SpanVal: span}

	case TokenUndefined:
		span := p.tokenSpan()
		p.nextToken()
		return &UndefinedLiteral{SpanVal: span}

	case TokenThis:
		span := p.tokenSpan()
		p.nextToken()
		return &ThisExpr{SpanVal: span}

	case TokenIdent:
		if p.peekTokenIs(TokenArrow) {
			param := &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
			p.nextToken() // consume param
			return p.parseArrowRest(startPos, []*Ident{param})
		}
		id := &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
		p.nextToken()
		return id

	case TokenNew:
		p.nextToken()
		var callee Expr
		switch {
		case p.curTokenIs(TokenIdent):
			callee = &Ident{SpanVal: p.tokenSpan(), Name: p.curToken.Literal}
			p.nextToken()
		case p.curTokenIs(TokenLParen):
			p.nextToken()
			callee = p.parseExpr()
			p.expect(TokenRParen)
			if callee == nil {
				return nil
			}
		default:
			p.errorf("expected class name after new, got %s", p.curToken.Type)
			return nil
		}
		var args []Expr
		if p.curTokenIs(TokenLParen) {
			args = p.parseArgs()
		}
		return &NewExpr{SpanVal: MakeSpan(startPos, p.curToken.Pos), Callee: callee, Args: args}

	case TokenLParen:
		if p.arrowAhead() {
			params := p.parseParamList()
			return p.parseArrowRest(startPos, params)
		}
		p.nextToken()
		expr := p.parseExpr()
		p.expect(TokenRParen)
		return expr

	case TokenLBracket:
		p.nextToken()
		var elems []Expr
		for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
			e := p.parseAssign()
			if e == nil {
				break
			}
			elems = append(elems, e)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(TokenRBracket)
		return &ArrayLiteral{SpanVal: MakeSpan(startPos, p.curToken.Pos), Elements: elems}

	case TokenLBrace:
		return p.parseObjectLiteral()

	default:
		p.errorf("unexpected %s", p.curToken.Type)
		return nil
	}
}

// parseObjectLiteral parses {key: value, ...} with identifier or string keys.
func (p *Parser) parseObjectLiteral() Expr {
	startPos := p.curToken.Pos
	p.expect(TokenLBrace)

	var fields []ObjectField
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		var key string
		var quoted bool
		switch p.curToken.Type {
		case TokenIdent:
			key = p.curToken.Literal
		case TokenString:
			key = p.curToken.Literal
			quoted = true
		default:
			p.errorf("expected object key, got %s", p.curToken.Type)
			p.sync()
			return nil
		}
		p.nextToken()
		p.expect(TokenColon)

		value := p.parseAssign()
		if value == nil {
			break
		}
		fields = append(fields, ObjectField{Key: key, Quoted: quoted, Value: value})

		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(TokenRBrace)

	return &ObjectLiteral{SpanVal: MakeSpan(startPos, p.curToken.Pos), Fields: fields}
}

// parseArrowRest parses the => and body of an arrow function whose
// parameters have already been consumed.
func (p *Parser) parseArrowRest(startPos Position, params []*Ident) Expr {
	p.expect(TokenArrow)

	if p.curTokenIs(TokenLBrace) {
		body := p.parseBlock()
		return &ArrowFn{
			SpanVal: MakeSpan(startPos, p.curToken.Pos),
			Params:  params,
			Body:    body.Stmts,
		}
	}

	exprBody := p.parseAssign()
	if exprBody == nil {
		return nil
	}
	return &ArrowFn{
		SpanVal:  MakeSpan(startPos, p.curToken.Pos),
		Params:   params,
		ExprBody: exprBody,
	}
}

// arrowAhead reports whether the token stream at the current ( begins an
// arrow function parameter list: idents and commas up to ), then =>.
func (p *Parser) arrowAhead() bool {
	// p.pos indexes the token after peekToken; curToken is tokens[p.pos-2].
	i := p.pos - 2
	if i < 0 || i >= len(p.tokens) || p.tokens[i].Type != TokenLParen {
		return false
	}
	i++
	for i < len(p.tokens) && p.tokens[i].Type != TokenRParen {
		switch p.tokens[i].Type {
		case TokenIdent, TokenComma:
			i++
		default:
			return false
		}
	}
	if i+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[i+1].Type == TokenArrow
}

// tokenSpan returns a span covering just the current token.
func (p *Parser) tokenSpan() Span {
	return Span{Start: p.curToken.Pos, End: p.curToken.End}
}
