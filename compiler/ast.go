package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for slotted source
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan builds a span from two positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NullLiteral represents the null literal.
type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// UndefinedLiteral represents the undefined literal.
type UndefinedLiteral struct {
	SpanVal Span
}

func (n *UndefinedLiteral) Span() Span { return n.SpanVal }
func (n *UndefinedLiteral) node()      {}
func (n *UndefinedLiteral) expr()      {}

// ArrayLiteral represents an array literal [a, b, c].
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// ObjectLiteral represents an object literal {k: v, ...}.
type ObjectLiteral struct {
	SpanVal Span
	Fields  []ObjectField
}

func (n *ObjectLiteral) Span() Span { return n.SpanVal }
func (n *ObjectLiteral) node()      {}
func (n *ObjectLiteral) expr()      {}

// ObjectField is one key/value pair of an object literal.
type ObjectField struct {
	Key    string
	Quoted bool // key was written as a string literal
	Value  Expr
}

// Ident represents an identifier reference.
type Ident struct {
	SpanVal Span
	Name    string

	Binding *Binding // set by resolver
	Usage   Usage    // set by resolver
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// ThisExpr represents the 'this' expression.
type ThisExpr struct {
	SpanVal Span
}

func (n *ThisExpr) Span() Span { return n.SpanVal }
func (n *ThisExpr) node()      {}
func (n *ThisExpr) expr()      {}

// ArrowFn represents an arrow function literal. Exactly one of ExprBody and
// Body is set: (x) => expr or (x) => { stmts }.
type ArrowFn struct {
	SpanVal  Span
	Params   []*Ident
	ExprBody Expr
	Body     []Stmt
}

func (n *ArrowFn) Span() Span { return n.SpanVal }
func (n *ArrowFn) node()      {}
func (n *ArrowFn) expr()      {}

// CallExpr represents a function call f(a, b).
type CallExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// NewExpr represents an instantiation new C(a, b). The callee is an
// identifier in source; the rewriter may substitute another expression.
type NewExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// MemberExpr represents a dotted member access obj.name.
type MemberExpr struct {
	SpanVal Span
	Object  Expr
	Name    string
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

// IndexExpr represents a computed member access obj[key].
type IndexExpr struct {
	SpanVal Span
	Object  Expr
	Key     Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// PrivateExpr represents a private member access obj.#name.
type PrivateExpr struct {
	SpanVal Span
	Object  Expr
	Name    string

	Origin   *ClassDecl // set by resolver: class whose brand holds the field
	Imported bool       // set by resolver: access goes through an exposed slot
}

func (n *PrivateExpr) Span() Span { return n.SpanVal }
func (n *PrivateExpr) node()      {}
func (n *PrivateExpr) expr()      {}

// UnaryExpr represents a prefix operator application: !x, -x, await x,
// yield x.
type UnaryExpr struct {
	SpanVal Span
	Op      string
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// ReifyExpr represents a reification marker &target or &&target. The
// rewriter eliminates every ReifyExpr; none survive into output trees.
type ReifyExpr struct {
	SpanVal Span
	Target  Expr
	Unbound bool // doubled marker &&
}

func (n *ReifyExpr) Span() Span { return n.SpanVal }
func (n *ReifyExpr) node()      {}
func (n *ReifyExpr) expr()      {}

// AssignExpr represents an assignment target op value, where op is = or a
// compound operator.
type AssignExpr struct {
	SpanVal Span
	Target  Expr
	Op      string // "=", "+=", "-=", "*=", "/=", "%="
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// IncDecExpr represents ++x, --x, x++ or x--.
type IncDecExpr struct {
	SpanVal Span
	Target  Expr
	Op      string // "++" or "--"
	Prefix  bool
}

func (n *IncDecExpr) Span() Span { return n.SpanVal }
func (n *IncDecExpr) node()      {}
func (n *IncDecExpr) expr()      {}

// BinaryExpr represents an infix operator application, including the
// short-circuiting && and ||.
type BinaryExpr struct {
	SpanVal Span
	Op      string
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// CondExpr represents the conditional operator c ? a : b.
type CondExpr struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *CondExpr) Span() Span { return n.SpanVal }
func (n *CondExpr) node()      {}
func (n *CondExpr) expr()      {}

// SeqExpr represents a comma sequence (a, b, c); its value is the last
// expression's value.
type SeqExpr struct {
	SpanVal Span
	Exprs   []Expr
}

func (n *SeqExpr) Span() Span { return n.SpanVal }
func (n *SeqExpr) node()      {}
func (n *SeqExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// VarDecl represents a let or const declaration, optionally reified:
// let x = e; const &x = e;
type VarDecl struct {
	SpanVal Span
	Const   bool
	Reified bool // declared with the binding marker
	Name    *Ident
	Init    Expr // nil when omitted
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// ExprStmt represents an expression statement.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt represents a braced statement block.
type BlockStmt struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// IfStmt represents an if statement with an optional else branch; Else is
// nil, a *BlockStmt, or a chained *IfStmt.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *BlockStmt
	Else    Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt represents a while loop.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *BlockStmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// ReturnStmt represents a return statement with an optional value.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil when omitted
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// ClassDecl represents a class declaration.
type ClassDecl struct {
	SpanVal   Span
	Name      *Ident
	SuperName *Ident // nil when the class has no extends clause
	Members   []ClassMember

	Super *ClassDecl // set by resolver
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) stmt()      {}

// ---------------------------------------------------------------------------
// Class members
// ---------------------------------------------------------------------------

// ClassMember is the interface for class body elements.
type ClassMember interface {
	Node
	member() // marker method
}

// FieldDef represents an instance or static field, public or private.
type FieldDef struct {
	SpanVal Span
	Name    string
	Private bool
	Static  bool
	Init    Expr // nil when omitted
}

func (n *FieldDef) Span() Span { return n.SpanVal }
func (n *FieldDef) node()      {}
func (n *FieldDef) member()    {}

// MethodDef represents a method; the constructor is the method named
// "constructor".
type MethodDef struct {
	SpanVal Span
	Name    string
	Static  bool
	Params  []*Ident
	Body    []Stmt
}

func (n *MethodDef) Span() Span { return n.SpanVal }
func (n *MethodDef) node()      {}
func (n *MethodDef) member()    {}

// IsCtor reports whether the method is the class constructor.
func (n *MethodDef) IsCtor() bool { return !n.Static && n.Name == "constructor" }

// StaticBlock represents a static initializer block.
type StaticBlock struct {
	SpanVal Span
	Body    []Stmt
}

func (n *StaticBlock) Span() Span { return n.SpanVal }
func (n *StaticBlock) node()      {}
func (n *StaticBlock) member()    {}

// ExposeDecl represents an 'expose #name;' sharing declaration.
type ExposeDecl struct {
	SpanVal Span
	Name    string
}

func (n *ExposeDecl) Span() Span { return n.SpanVal }
func (n *ExposeDecl) node()      {}
func (n *ExposeDecl) member()    {}

// ImportDecl represents an 'import #name;' sharing declaration.
type ImportDecl struct {
	SpanVal Span
	Name    string

	From *ClassDecl // set by resolver: the exposing ancestor
}

func (n *ImportDecl) Span() Span { return n.SpanVal }
func (n *ImportDecl) node()      {}
func (n *ImportDecl) member()    {}

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// File is the root node of a parsed compilation unit.
type File struct {
	SpanVal Span
	Path    string
	Stmts   []Stmt
}

func (n *File) Span() Span { return n.SpanVal }
func (n *File) node()      {}
