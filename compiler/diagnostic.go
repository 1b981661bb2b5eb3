package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Diagnostics: batched rejection reporting
// ---------------------------------------------------------------------------

// DiagKind classifies a diagnostic.
type DiagKind int

const (
	// BadSyntax reports a lexical or grammatical error.
	BadSyntax DiagKind = iota

	// BadScope reports a name-resolution error: undeclared private names,
	// reserved identifiers, writes to constants, unmatched sharing
	// declarations.
	BadScope

	// MalformedTarget reports a reification marker applied to something
	// that is not an assignable location, or one whose occurrences cannot
	// be statically enumerated.
	MalformedTarget

	// UnsafeExtraction reports an addressing subexpression that cannot be
	// hoisted to the reification point without changing meaning.
	UnsafeExtraction
)

var diagKindNames = [...]string{
	BadSyntax:        "syntax",
	BadScope:         "scope",
	MalformedTarget:  "malformed target",
	UnsafeExtraction: "unsafe extraction",
}

func (k DiagKind) String() string {
	if int(k) < len(diagKindNames) {
		return diagKindNames[k]
	}
	return fmt.Sprintf("DiagKind(%d)", int(k))
}

// Diagnostic is a single rejection with its source position.
type Diagnostic struct {
	Pos  Position
	Kind DiagKind
	Msg  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Pos.Line, d.Pos.Column, d.Kind, d.Msg)
}

// DiagnosticList is a collection of diagnostics ordered by source position.
// A non-empty list reports the whole batch, not just the first failure.
type DiagnosticList []Diagnostic

func (l DiagnosticList) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Sort orders the list by source offset, then by kind.
func (l DiagnosticList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Pos.Offset != l[j].Pos.Offset {
			return l[i].Pos.Offset < l[j].Pos.Offset
		}
		return l[i].Kind < l[j].Kind
	})
}

// Err returns the list as an error, or nil if it is empty.
func (l DiagnosticList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// HasKind reports whether any diagnostic in the list has the given kind.
func (l DiagnosticList) HasKind(k DiagKind) bool {
	for _, d := range l {
		if d.Kind == k {
			return true
		}
	}
	return false
}
