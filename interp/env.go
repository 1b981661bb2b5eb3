package interp

// ---------------------------------------------------------------------------
// Lexical environments
// ---------------------------------------------------------------------------

// Env is one lexical frame with a parent link. Lookups walk parent-ward.
// Mutability is enforced by the resolver before code reaches the evaluator,
// so frames do not track const-ness.
type Env struct {
	parent *Env
	table  map[string]Value
}

// NewEnv creates a frame with the given parent, which may be nil.
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: map[string]Value{}}
}

// Define binds name in this frame, shadowing any outer binding. Redefining
// an existing name replaces it, which is what interactive sessions want.
func (e *Env) Define(name string, v Value) {
	e.table[name] = v
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		if v, ok := f.table[name]; ok {
			return v, true
		}
	}
	return Undefined, false
}

// Set updates the nearest existing binding for name. It reports false when
// no visible frame binds the name; it never defines implicitly.
func (e *Env) Set(name string, v Value) bool {
	for f := e; f != nil; f = f.parent {
		if _, ok := f.table[name]; ok {
			f.table[name] = v
			return true
		}
	}
	return false
}
