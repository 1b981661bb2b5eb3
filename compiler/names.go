package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Temporary name allocation
// ---------------------------------------------------------------------------

// NameAlloc hands out identifiers that cannot collide with user code or
// with each other. Names carry the reserved __ prefix, which the resolver
// rejects in user declarations, and a counter that is never reused within
// a compilation unit, even across kinds.
type NameAlloc struct {
	n int
}

// Fresh returns the next name for the given kind, e.g. Fresh("t") -> "__t7".
func (a *NameAlloc) Fresh(kind string) string {
	a.n++
	return fmt.Sprintf("__%s%d", kind, a.n)
}

// Count returns how many names have been issued.
func (a *NameAlloc) Count() int {
	return a.n
}
