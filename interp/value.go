package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/slotlang/slotc/compiler"
)

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// Tag enumerates the runtime kinds a Value may hold. The tag determines
// which Go type Value.Data carries.
type Tag int

const (
	TagUndefined Tag = iota // no payload
	TagNull                 // no payload
	TagBool                 // bool
	TagNumber               // float64
	TagString               // string
	TagArray                // *Array
	TagObject               // *Object
	TagClass                // *Class
	TagFunc                 // *Fun
)

var tagNames = [...]string{
	TagUndefined: "undefined",
	TagNull:      "null",
	TagBool:      "boolean",
	TagNumber:    "number",
	TagString:    "string",
	TagArray:     "array",
	TagObject:    "object",
	TagClass:     "class",
	TagFunc:      "function",
}

func (t Tag) String() string { return tagNames[t] }

// Value is the universal runtime carrier used by the evaluator.
type Value struct {
	Tag  Tag
	Data any
}

// Undefined and Null are the singleton absent values.
var (
	Undefined = Value{Tag: TagUndefined}
	Null      = Value{Tag: TagNull}
)

// Primitive constructors.
func Boolean(b bool) Value   { return Value{Tag: TagBool, Data: b} }
func Number(f float64) Value { return Value{Tag: TagNumber, Data: f} }
func String(s string) Value  { return Value{Tag: TagString, Data: s} }

// NewArray builds an array value from its elements.
func NewArray(elems ...Value) Value {
	return Value{Tag: TagArray, Data: &Array{Elems: elems}}
}

// NativeFunc wraps a Go function as a callable value. A non-nil error
// return surfaces as a runtime failure at the call site.
func NativeFunc(name string, fn func(args []Value) (Value, error)) Value {
	return Value{Tag: TagFunc, Data: &Fun{Name: name, Native: fn}}
}

// Bool reports the payload of a boolean value.
func (v Value) Bool() bool { return v.Data.(bool) }

// Num reports the payload of a number value.
func (v Value) Num() float64 { return v.Data.(float64) }

// Str reports the payload of a string value.
func (v Value) Str() string { return v.Data.(string) }

// Truthy reports conditional truth: false, 0, NaN, "", null and undefined
// are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Tag {
	case TagUndefined, TagNull:
		return false
	case TagBool:
		return v.Bool()
	case TagNumber:
		n := v.Num()
		return n != 0 && !math.IsNaN(n)
	case TagString:
		return v.Str() != ""
	default:
		return true
	}
}

// strictEquals compares two values without coercion. Numbers, strings and
// booleans compare by payload; arrays, objects, classes and functions by
// identity. NaN is unequal to itself.
func strictEquals(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagUndefined, TagNull:
		return true
	default:
		return a.Data == b.Data
	}
}

// String renders a debug representation: strings are quoted, containers
// print one level of structure.
func (v Value) String() string {
	switch v.Tag {
	case TagUndefined:
		return "undefined"
	case TagNull:
		return "null"
	case TagBool:
		return strconv.FormatBool(v.Bool())
	case TagNumber:
		return numberString(v.Num())
	case TagString:
		return strconv.Quote(v.Str())
	case TagArray:
		a := v.Data.(*Array)
		var sb strings.Builder
		sb.WriteString("[")
		for i, e := range a.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteString("]")
		return sb.String()
	case TagObject:
		o := v.Data.(*Object)
		var sb strings.Builder
		sb.WriteString("{")
		for i, k := range o.Keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(o.Props[k].String())
		}
		sb.WriteString("}")
		return sb.String()
	case TagClass:
		return "class " + v.Data.(*Class).Name
	case TagFunc:
		f := v.Data.(*Fun)
		if f.Name != "" {
			return "<fn " + f.Name + ">"
		}
		return "<fn>"
	default:
		return "<unknown>"
	}
}

// Display renders a value for output and string concatenation: like String,
// but strings appear unquoted.
func (v Value) Display() string {
	if v.Tag == TagString {
		return v.Str()
	}
	return v.String()
}

// numberString renders a number, preferring the integer form.
func numberString(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

// Array is a mutable sequence. Values of array type share the backing
// *Array, so element writes are visible through every reference.
type Array struct {
	Elems []Value
}

// Object is a property bag, optionally branded by the class chain that
// constructed it. Keys preserves insertion order for stable printing.
type Object struct {
	Class *Class
	Props map[string]Value
	Keys  []string

	// Private fields are stored per declaring class; an access resolves
	// #name to the nearest lexically enclosing class declaring it and
	// requires this object to carry that class's brand.
	privates map[*Class]map[string]Value
}

// NewObject builds an empty unbranded object.
func NewObject() *Object {
	return &Object{Props: map[string]Value{}}
}

// Get reports the object's own property, if present.
func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.Props[name]
	return v, ok
}

// Set writes an own property, preserving first-insertion key order.
func (o *Object) Set(name string, v Value) {
	if _, ok := o.Props[name]; !ok {
		o.Keys = append(o.Keys, name)
	}
	o.Props[name] = v
}

// Class is a runtime class: the static side is an ordinary property bag on
// the class value itself, the instance side is a method table plus ordered
// field initializers replayed at construction.
type Class struct {
	Name  string
	Super *Class
	Props map[string]Value
	Keys  []string

	methods map[string]*Fun
	fields  []fieldInit
	env     *Env // definition environment for member bodies

	// outer is the innermost class whose body lexically encloses this
	// declaration; together with privateNames it resolves #name accesses
	// made by nested classes.
	outer        *Class
	privateNames map[string]bool
}

// fieldInit is one instance-field declaration, replayed base-first at new.
type fieldInit struct {
	name    string
	private bool
	init    compiler.Expr // nil when the declaration has no initializer
}

// Set writes a static property, preserving first-insertion key order.
func (c *Class) Set(name string, v Value) {
	if _, ok := c.Props[name]; !ok {
		c.Keys = append(c.Keys, name)
	}
	c.Props[name] = v
}

// staticGet looks a static property up the superclass chain.
func (c *Class) staticGet(name string) (Value, bool) {
	for k := c; k != nil; k = k.Super {
		if v, ok := k.Props[name]; ok {
			return v, true
		}
	}
	return Undefined, false
}

// method looks an instance method up the superclass chain.
func (c *Class) method(name string) *Fun {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.methods[name]; ok {
			return m
		}
	}
	return nil
}

// chain returns the inheritance chain base-first, ending at c.
func (c *Class) chain() []*Class {
	var rev []*Class
	for k := c; k != nil; k = k.Super {
		rev = append(rev, k)
	}
	out := make([]*Class, len(rev))
	for i, k := range rev {
		out[len(rev)-1-i] = k
	}
	return out
}

// Fun is a callable: an arrow closure, a method, or a native Go function.
// Arrows capture this at creation; methods receive it per call.
type Fun struct {
	Name     string
	Params   []string
	Body     []compiler.Stmt
	ExprBody compiler.Expr
	Env      *Env
	Brand    *Class // innermost lexically enclosing class; outer links complete the chain
	This     Value  // captured receiver, meaningful when Arrow
	Arrow    bool
	Native   func(args []Value) (Value, error)
}
