package cache

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/slotlang/slotc/compiler"
)

// Entry is one cached rewrite outcome: the rewritten source text on
// success, the full diagnostic batch on rejection, never both.
type Entry struct {
	Engine string `cbor:"1,keyasint"`           // engine version that produced the entry
	Output string `cbor:"2,keyasint,omitempty"` // rewritten source text
	Diags  []Diag `cbor:"3,keyasint,omitempty"` // rejection batch
}

// Diag is the wire form of a compiler.Diagnostic.
type Diag struct {
	Offset int    `cbor:"1,keyasint"`
	Line   int    `cbor:"2,keyasint"`
	Column int    `cbor:"3,keyasint"`
	Kind   uint8  `cbor:"4,keyasint"`
	Msg    string `cbor:"5,keyasint"`
}

// NewEntry records one unit's rewrite outcome under the current engine
// version.
func NewEntry(output string, diags compiler.DiagnosticList) *Entry {
	e := &Entry{Engine: compiler.EngineVersion, Output: output}
	for _, d := range diags {
		e.Diags = append(e.Diags, Diag{
			Offset: d.Pos.Offset,
			Line:   d.Pos.Line,
			Column: d.Pos.Column,
			Kind:   uint8(d.Kind),
			Msg:    d.Msg,
		})
	}
	return e
}

// Rejected reports whether the cached outcome was a rejection.
func (e *Entry) Rejected() bool { return len(e.Diags) > 0 }

// Diagnostics rebuilds the rejection batch in engine form. A replayed batch
// compares equal to the one the pipeline produced.
func (e *Entry) Diagnostics() compiler.DiagnosticList {
	if len(e.Diags) == 0 {
		return nil
	}
	out := make(compiler.DiagnosticList, len(e.Diags))
	for i, d := range e.Diags {
		out[i] = compiler.Diagnostic{
			Pos:  compiler.Position{Offset: d.Offset, Line: d.Line, Column: d.Column},
			Kind: compiler.DiagKind(d.Kind),
			Msg:  d.Msg,
		}
	}
	return out
}

// Key derives the content address for one source unit. The engine version
// participates, so a new engine misses on every old entry instead of
// replaying stale output.
func Key(src string) [32]byte {
	return sha256.Sum256([]byte(compiler.EngineVersion + "\x00" + src))
}

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalEntry serializes an Entry to CBOR bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEntry deserializes an Entry from CBOR bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cache: unmarshal entry: %w", err)
	}
	return &e, nil
}
