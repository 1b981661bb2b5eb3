package compiler

// ---------------------------------------------------------------------------
// Bindings: what the resolver attaches to identifiers
// ---------------------------------------------------------------------------

// A Binding ties together all identifier occurrences that denote the same
// variable. The resolver creates one Binding per declaration and shares it
// across the declaration's uses.
type Binding struct {
	Scope   BindScope
	Const   bool
	Reified bool   // declared with the binding marker (let &x)
	Name    string
	Decl    *Ident // declaring occurrence; nil for ambient bindings

	// SlotName is the hidden slot identifier backing a reified binding.
	// Set by the rewriter.
	SlotName string

	// Class is the declaration for class-name bindings.
	Class *ClassDecl
}

// BindScope distinguishes the kinds of scope a binding can live in.
type BindScope uint8

const (
	// UndefinedScope is the zero value, present before resolution.
	UndefinedScope BindScope = iota

	// ModuleScope is a top-level binding of the compilation unit.
	ModuleScope

	// LocalScope is a binding declared inside a function or block.
	LocalScope

	// ParamScope is a function parameter.
	ParamScope

	// AmbientScope is an undeclared name assumed provided by the host
	// environment.
	AmbientScope
)

var bindScopeNames = [...]string{
	UndefinedScope: "undefined",
	ModuleScope:    "module",
	LocalScope:     "local",
	ParamScope:     "parameter",
	AmbientScope:   "ambient",
}

func (s BindScope) String() string {
	if int(s) < len(bindScopeNames) {
		return bindScopeNames[s]
	}
	return "BindScope(?)"
}

// Usage classifies how an identifier occurrence touches its location.
type Usage uint8

const (
	// UseRead is a plain read.
	UseRead Usage = iota

	// UseWrite is a plain assignment target.
	UseWrite

	// UseReadWrite is a compound-assignment or increment/decrement target.
	UseReadWrite
)

var usageNames = [...]string{
	UseRead:      "read",
	UseWrite:     "write",
	UseReadWrite: "read-write",
}

func (u Usage) String() string {
	if int(u) < len(usageNames) {
		return usageNames[u]
	}
	return "Usage(?)"
}
