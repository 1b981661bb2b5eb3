// Package interp is a tree-walking evaluator for rewritten source trees.
// It executes the plain dialect only: reification markers, reified
// declarations and sharing declarations are runtime errors, so a successful
// run doubles as a rewrite-completeness check.
package interp

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/slotlang/slotc/compiler"
)

// ---------------------------------------------------------------------------
// Runtime failures
// ---------------------------------------------------------------------------

// EvalError is a runtime failure raised during evaluation.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return e.Msg }

// failf aborts the current evaluation with an EvalError. The panic is
// converted back to an error at the Run/Call boundary.
func failf(format string, args ...any) {
	panic(&EvalError{Msg: fmt.Sprintf(format, args...)})
}

// returnSignal unwinds a return statement to the enclosing invocation.
type returnSignal struct {
	value Value
}

// rescue converts evaluation panics into errors at a public boundary.
func rescue(err *error) {
	if r := recover(); r != nil {
		switch sig := r.(type) {
		case *EvalError:
			*err = sig
		case returnSignal:
			*err = &EvalError{Msg: "return outside a function"}
		default:
			panic(r)
		}
	}
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interp evaluates files against a persistent global environment, so a
// session may feed it successive units REPL-style.
type Interp struct {
	globals *Env
}

// New creates an interpreter with an empty global environment.
func New() *Interp {
	return &Interp{globals: NewEnv(nil)}
}

// Define binds a global, typically a NativeFunc probe or a host value.
func (in *Interp) Define(name string, v Value) {
	in.globals.Define(name, v)
}

// Lookup reports the current global binding for name.
func (in *Interp) Lookup(name string) (Value, bool) {
	return in.globals.Get(name)
}

// Run executes a file's statements in the global environment and returns
// the value of the last expression statement, undefined when there is none.
func (in *Interp) Run(file *compiler.File) (last Value, err error) {
	defer rescue(&err)
	fr := &frame{env: in.globals, this: Undefined}
	last = Undefined
	for _, s := range file.Stmts {
		if es, ok := s.(*compiler.ExprStmt); ok {
			last = in.eval(fr, es.Expr)
			continue
		}
		in.exec(fr, s)
	}
	return last, nil
}

// Call invokes a function value from Go.
func (in *Interp) Call(fn Value, args ...Value) (res Value, err error) {
	defer rescue(&err)
	res = in.call(fn, Undefined, args)
	return res, nil
}

// frame is one activation: the environment chain, the receiver, and the
// brand of the innermost lexically enclosing class.
type frame struct {
	env   *Env
	this  Value
	brand *Class
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (in *Interp) exec(fr *frame, s compiler.Stmt) {
	switch s := s.(type) {
	case *compiler.VarDecl:
		if s.Reified {
			failf("reified declaration in executable code")
		}
		v := Undefined
		if s.Init != nil {
			v = in.eval(fr, s.Init)
		}
		fr.env.Define(s.Name.Name, v)

	case *compiler.ExprStmt:
		in.eval(fr, s.Expr)

	case *compiler.BlockStmt:
		inner := &frame{env: NewEnv(fr.env), this: fr.this, brand: fr.brand}
		for _, st := range s.Stmts {
			in.exec(inner, st)
		}

	case *compiler.IfStmt:
		if in.eval(fr, s.Cond).Truthy() {
			in.exec(fr, s.Then)
		} else if s.Else != nil {
			in.exec(fr, s.Else)
		}

	case *compiler.WhileStmt:
		for in.eval(fr, s.Cond).Truthy() {
			in.exec(fr, s.Body)
		}

	case *compiler.ReturnStmt:
		v := Undefined
		if s.Value != nil {
			v = in.eval(fr, s.Value)
		}
		panic(returnSignal{value: v})

	case *compiler.ClassDecl:
		in.declClass(fr, s)

	default:
		failf("cannot execute %T", s)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (in *Interp) eval(fr *frame, e compiler.Expr) Value {
	switch e := e.(type) {
	case *compiler.NumberLiteral:
		return Number(e.Value)
	case *compiler.StringLiteral:
		return String(e.Value)
	case *compiler.BoolLiteral:
		return Boolean(e.Value)
	case *compiler.NullLiteral:
		return Null
	case *compiler.UndefinedLiteral:
		return Undefined

	case *compiler.ArrayLiteral:
		elems := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = in.eval(fr, el)
		}
		return Value{Tag: TagArray, Data: &Array{Elems: elems}}

	case *compiler.ObjectLiteral:
		obj := NewObject()
		for _, f := range e.Fields {
			obj.Set(f.Key, in.eval(fr, f.Value))
		}
		return Value{Tag: TagObject, Data: obj}

	case *compiler.Ident:
		v, ok := fr.env.Get(e.Name)
		if !ok {
			failf("%s is not defined", e.Name)
		}
		return v

	case *compiler.ThisExpr:
		return fr.this

	case *compiler.ArrowFn:
		return Value{Tag: TagFunc, Data: &Fun{
			Params:   identNames(e.Params),
			Body:     e.Body,
			ExprBody: e.ExprBody,
			Env:      fr.env,
			Brand:    fr.brand,
			This:     fr.this,
			Arrow:    true,
		}}

	case *compiler.CallExpr:
		return in.evalCall(fr, e)

	case *compiler.NewExpr:
		cv := in.eval(fr, e.Callee)
		if cv.Tag != TagClass {
			failf("new requires a class, found %s", cv.Tag)
		}
		return in.instantiate(cv.Data.(*Class), in.evalArgs(fr, e.Args))

	case *compiler.MemberExpr:
		return in.getMember(in.eval(fr, e.Object), e.Name)

	case *compiler.IndexExpr:
		obj := in.eval(fr, e.Object)
		key := in.eval(fr, e.Key)
		return in.getIndex(obj, key)

	case *compiler.PrivateExpr:
		return in.getPrivate(fr, in.eval(fr, e.Object), e.Name)

	case *compiler.UnaryExpr:
		switch e.Op {
		case "!":
			return Boolean(!in.eval(fr, e.Operand).Truthy())
		case "-":
			return Number(-numOf(in.eval(fr, e.Operand), e.Op))
		case "await", "yield":
			failf("%s is not executable in this evaluator", e.Op)
		}
		failf("unknown operator %s", e.Op)

	case *compiler.ReifyExpr:
		failf("reification marker in executable code")

	case *compiler.AssignExpr:
		return in.assign(fr, e)

	case *compiler.IncDecExpr:
		return in.incDec(fr, e)

	case *compiler.BinaryExpr:
		switch e.Op {
		case "&&":
			l := in.eval(fr, e.Left)
			if !l.Truthy() {
				return l
			}
			return in.eval(fr, e.Right)
		case "||":
			l := in.eval(fr, e.Left)
			if l.Truthy() {
				return l
			}
			return in.eval(fr, e.Right)
		}
		return binop(e.Op, in.eval(fr, e.Left), in.eval(fr, e.Right))

	case *compiler.CondExpr:
		if in.eval(fr, e.Cond).Truthy() {
			return in.eval(fr, e.Then)
		}
		return in.eval(fr, e.Else)

	case *compiler.SeqExpr:
		var v Value
		for _, sub := range e.Exprs {
			v = in.eval(fr, sub)
		}
		return v
	}
	failf("cannot evaluate %T", e)
	return Undefined
}

func (in *Interp) evalArgs(fr *frame, args []compiler.Expr) []Value {
	out := make([]Value, len(args))
	for i, a := range args {
		out[i] = in.eval(fr, a)
	}
	return out
}

func identNames(ids []*compiler.Ident) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	return names
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// evalCall binds the receiver the way member calls do: o.f(x) calls f with
// this = o, a bare f(x) calls with this undefined.
func (in *Interp) evalCall(fr *frame, e *compiler.CallExpr) Value {
	switch callee := e.Callee.(type) {
	case *compiler.MemberExpr:
		recv := in.eval(fr, callee.Object)
		fn := in.getMember(recv, callee.Name)
		return in.call(fn, recv, in.evalArgs(fr, e.Args))
	case *compiler.IndexExpr:
		recv := in.eval(fr, callee.Object)
		key := in.eval(fr, callee.Key)
		fn := in.getIndex(recv, key)
		return in.call(fn, recv, in.evalArgs(fr, e.Args))
	case *compiler.PrivateExpr:
		recv := in.eval(fr, callee.Object)
		fn := in.getPrivate(fr, recv, callee.Name)
		return in.call(fn, recv, in.evalArgs(fr, e.Args))
	default:
		fn := in.eval(fr, e.Callee)
		return in.call(fn, Undefined, in.evalArgs(fr, e.Args))
	}
}

func (in *Interp) call(fn Value, this Value, args []Value) Value {
	if fn.Tag != TagFunc {
		failf("%s is not a function", fn.Tag)
	}
	return in.invoke(fn.Data.(*Fun), this, args)
}

// invoke runs a function body. Arrows use their captured receiver; methods
// take the call-site receiver. Missing arguments bind as undefined, extra
// arguments are dropped.
func (in *Interp) invoke(fn *Fun, this Value, args []Value) (result Value) {
	if fn.Native != nil {
		v, err := fn.Native(args)
		if err != nil {
			failf("%s: %s", fn.Name, err)
		}
		return v
	}

	env := NewEnv(fn.Env)
	for i, p := range fn.Params {
		if i < len(args) {
			env.Define(p, args[i])
		} else {
			env.Define(p, Undefined)
		}
	}
	if fn.Arrow {
		this = fn.This
	}
	fr := &frame{env: env, this: this, brand: fn.Brand}

	if fn.ExprBody != nil {
		return in.eval(fr, fn.ExprBody)
	}
	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(returnSignal)
			if !ok {
				panic(r)
			}
			result = sig.value
		}
	}()
	for _, s := range fn.Body {
		in.exec(fr, s)
	}
	return Undefined
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// declClass evaluates a class declaration: the binding is established
// before member evaluation so static blocks can reference the class by
// name, then static members run in declaration order. Instance fields and
// methods are recorded for construction time.
func (in *Interp) declClass(fr *frame, d *compiler.ClassDecl) {
	cls := &Class{
		Name:         d.Name.Name,
		Props:        map[string]Value{},
		methods:      map[string]*Fun{},
		env:          fr.env,
		outer:        fr.brand,
		privateNames: map[string]bool{},
	}
	if d.SuperName != nil {
		sv, ok := fr.env.Get(d.SuperName.Name)
		if !ok || sv.Tag != TagClass {
			failf("superclass %s is not a class", d.SuperName.Name)
		}
		cls.Super = sv.Data.(*Class)
	}
	cv := Value{Tag: TagClass, Data: cls}
	fr.env.Define(cls.Name, cv)

	// Private names are visible to every member body, including bodies of
	// classes nested inside them, so collect them before members run.
	for _, m := range d.Members {
		if f, ok := m.(*compiler.FieldDef); ok && f.Private {
			cls.privateNames[f.Name] = true
		}
	}

	for _, m := range d.Members {
		switch m := m.(type) {
		case *compiler.FieldDef:
			if !m.Static {
				cls.fields = append(cls.fields, fieldInit{name: m.Name, private: m.Private, init: m.Init})
				continue
			}
			v := Undefined
			if m.Init != nil {
				sfr := &frame{env: cls.env, this: cv, brand: cls}
				v = in.eval(sfr, m.Init)
			}
			cls.Set(m.Name, v)

		case *compiler.MethodDef:
			fn := &Fun{
				Name:   m.Name,
				Params: identNames(m.Params),
				Body:   m.Body,
				Env:    cls.env,
				Brand:  cls,
			}
			if m.Static {
				cls.Set(m.Name, Value{Tag: TagFunc, Data: fn})
			} else {
				cls.methods[m.Name] = fn
			}

		case *compiler.StaticBlock:
			bfr := &frame{env: NewEnv(cls.env), this: cv, brand: cls}
			for _, s := range m.Body {
				in.exec(bfr, s)
			}

		case *compiler.ExposeDecl, *compiler.ImportDecl:
			failf("sharing declaration in executable code")
		}
	}
}

// instantiate allocates a branded object, replays field initializers
// base-first along the chain, then runs the nearest constructor body.
func (in *Interp) instantiate(cls *Class, args []Value) Value {
	obj := &Object{
		Class:    cls,
		Props:    map[string]Value{},
		privates: map[*Class]map[string]Value{},
	}
	ov := Value{Tag: TagObject, Data: obj}

	for _, c := range cls.chain() {
		obj.privates[c] = map[string]Value{}
		for _, fd := range c.fields {
			ffr := &frame{env: c.env, this: ov, brand: c}
			v := Undefined
			if fd.init != nil {
				v = in.eval(ffr, fd.init)
			}
			if fd.private {
				obj.privates[c][fd.name] = v
			} else {
				obj.Set(fd.name, v)
			}
		}
	}

	if ctor := cls.method("constructor"); ctor != nil {
		in.invoke(ctor, ov, args)
	}
	return ov
}

// ---------------------------------------------------------------------------
// Property access
// ---------------------------------------------------------------------------

func (in *Interp) getMember(v Value, name string) Value {
	switch v.Tag {
	case TagObject:
		o := v.Data.(*Object)
		if pv, ok := o.Get(name); ok {
			return pv
		}
		if o.Class != nil {
			if m := o.Class.method(name); m != nil {
				return Value{Tag: TagFunc, Data: m}
			}
		}
		return Undefined
	case TagClass:
		if sv, ok := v.Data.(*Class).staticGet(name); ok {
			return sv
		}
		return Undefined
	case TagArray:
		if name == "length" {
			return Number(float64(len(v.Data.(*Array).Elems)))
		}
		return Undefined
	case TagString:
		if name == "length" {
			return Number(float64(utf8.RuneCountInString(v.Str())))
		}
		return Undefined
	case TagUndefined, TagNull:
		failf("cannot read property %s of %s", name, v.Tag)
	}
	return Undefined
}

func (in *Interp) setMember(v Value, name string, val Value) {
	switch v.Tag {
	case TagObject:
		v.Data.(*Object).Set(name, val)
	case TagClass:
		v.Data.(*Class).Set(name, val)
	default:
		failf("cannot set property %s of %s", name, v.Tag)
	}
}

func (in *Interp) getIndex(v, key Value) Value {
	switch v.Tag {
	case TagArray:
		switch key.Tag {
		case TagNumber:
			a := v.Data.(*Array)
			if i, ok := arrayIndex(key); ok && i < len(a.Elems) {
				return a.Elems[i]
			}
			return Undefined
		case TagString:
			return in.getMember(v, key.Str())
		}
		failf("cannot index array with %s", key.Tag)
	case TagString:
		switch key.Tag {
		case TagNumber:
			rs := []rune(v.Str())
			if i, ok := arrayIndex(key); ok && i < len(rs) {
				return String(string(rs[i]))
			}
			return Undefined
		case TagString:
			return in.getMember(v, key.Str())
		}
		failf("cannot index string with %s", key.Tag)
	case TagObject, TagClass:
		return in.getMember(v, propKey(key))
	}
	failf("cannot index %s", v.Tag)
	return Undefined
}

func (in *Interp) setIndex(v, key, val Value) {
	switch v.Tag {
	case TagArray:
		i, ok := arrayIndex(key)
		if !ok {
			failf("array index must be a non-negative integer")
		}
		a := v.Data.(*Array)
		for len(a.Elems) <= i {
			a.Elems = append(a.Elems, Undefined)
		}
		a.Elems[i] = val
	case TagObject, TagClass:
		in.setMember(v, propKey(key), val)
	default:
		failf("cannot index %s", v.Tag)
	}
}

// propKey renders an index key as a property name.
func propKey(key Value) string {
	switch key.Tag {
	case TagString:
		return key.Str()
	case TagNumber:
		return numberString(key.Num())
	}
	failf("cannot use %s as a property key", key.Tag)
	return ""
}

// arrayIndex reports key as an element index when it is an integral
// non-negative number.
func arrayIndex(key Value) (int, bool) {
	if key.Tag != TagNumber {
		return 0, false
	}
	n := key.Num()
	i := int(n)
	if float64(i) != n || i < 0 {
		return 0, false
	}
	return i, true
}

// ---------------------------------------------------------------------------
// Private fields
// ---------------------------------------------------------------------------

// getPrivate reads obj.#name under the frame's brand chain.
func (in *Interp) getPrivate(fr *frame, recv Value, name string) Value {
	m := in.privateSlots(fr, recv, name)
	return m[name]
}

func (in *Interp) setPrivate(fr *frame, recv Value, name string, val Value) {
	m := in.privateSlots(fr, recv, name)
	m[name] = val
}

// privateSlots locates the slot table for recv.#name. The name belongs to
// the nearest lexically enclosing class that declares it, and the receiver
// must carry that class's brand, which instantiation stamped onto it.
func (in *Interp) privateSlots(fr *frame, recv Value, name string) map[string]Value {
	owner := fr.brand
	for owner != nil && !owner.privateNames[name] {
		owner = owner.outer
	}
	if owner == nil {
		failf("private name #%s is not declared by an enclosing class", name)
	}
	if recv.Tag != TagObject {
		failf("cannot read #%s of %s", name, recv.Tag)
	}
	m, ok := recv.Data.(*Object).privates[owner]
	if !ok {
		failf("object has no private field #%s of class %s", name, owner.Name)
	}
	if _, ok := m[name]; !ok {
		failf("object has no private field #%s of class %s", name, owner.Name)
	}
	return m
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// ref is an addressed location: addressing subexpressions are evaluated
// exactly once when the ref is built, then load and store reuse them.
type ref struct {
	load  func() Value
	store func(Value)
}

func (in *Interp) reference(fr *frame, target compiler.Expr) ref {
	switch t := target.(type) {
	case *compiler.Ident:
		return ref{
			load: func() Value {
				v, ok := fr.env.Get(t.Name)
				if !ok {
					failf("%s is not defined", t.Name)
				}
				return v
			},
			store: func(v Value) {
				if !fr.env.Set(t.Name, v) {
					failf("%s is not defined", t.Name)
				}
			},
		}
	case *compiler.MemberExpr:
		obj := in.eval(fr, t.Object)
		return ref{
			load:  func() Value { return in.getMember(obj, t.Name) },
			store: func(v Value) { in.setMember(obj, t.Name, v) },
		}
	case *compiler.IndexExpr:
		obj := in.eval(fr, t.Object)
		key := in.eval(fr, t.Key)
		return ref{
			load:  func() Value { return in.getIndex(obj, key) },
			store: func(v Value) { in.setIndex(obj, key, v) },
		}
	case *compiler.PrivateExpr:
		obj := in.eval(fr, t.Object)
		return ref{
			load:  func() Value { return in.getPrivate(fr, obj, t.Name) },
			store: func(v Value) { in.setPrivate(fr, obj, t.Name, v) },
		}
	}
	failf("cannot assign to this expression")
	return ref{}
}

// assign evaluates the target's addressing before the value, the way
// member assignment does in the source language. Compound forms read the
// old value before evaluating the right-hand side.
func (in *Interp) assign(fr *frame, e *compiler.AssignExpr) Value {
	r := in.reference(fr, e.Target)
	if e.Op == "=" {
		v := in.eval(fr, e.Value)
		r.store(v)
		return v
	}
	op := strings.TrimSuffix(e.Op, "=")
	old := r.load()
	next := binop(op, old, in.eval(fr, e.Value))
	r.store(next)
	return next
}

func (in *Interp) incDec(fr *frame, e *compiler.IncDecExpr) Value {
	r := in.reference(fr, e.Target)
	old := r.load()
	n := numOf(old, e.Op)
	next := Number(n + 1)
	if e.Op == "--" {
		next = Number(n - 1)
	}
	r.store(next)
	if e.Prefix {
		return next
	}
	return old
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func binop(op string, a, b Value) Value {
	switch op {
	case "+":
		if a.Tag == TagString || b.Tag == TagString {
			return String(a.Display() + b.Display())
		}
		return Number(numOf(a, op) + numOf(b, op))
	case "-":
		return Number(numOf(a, op) - numOf(b, op))
	case "*":
		return Number(numOf(a, op) * numOf(b, op))
	case "/":
		return Number(numOf(a, op) / numOf(b, op))
	case "%":
		return Number(math.Mod(numOf(a, op), numOf(b, op)))
	case "<", "<=", ">", ">=":
		return compare(op, a, b)
	case "==":
		return Boolean(strictEquals(a, b))
	case "!=":
		return Boolean(!strictEquals(a, b))
	}
	failf("unknown operator %s", op)
	return Undefined
}

func compare(op string, a, b Value) Value {
	if a.Tag == TagString && b.Tag == TagString {
		x, y := a.Str(), b.Str()
		switch op {
		case "<":
			return Boolean(x < y)
		case "<=":
			return Boolean(x <= y)
		case ">":
			return Boolean(x > y)
		default:
			return Boolean(x >= y)
		}
	}
	x, y := numOf(a, op), numOf(b, op)
	switch op {
	case "<":
		return Boolean(x < y)
	case "<=":
		return Boolean(x <= y)
	case ">":
		return Boolean(x > y)
	default:
		return Boolean(x >= y)
	}
}

func numOf(v Value, op string) float64 {
	if v.Tag != TagNumber {
		failf("%s requires numbers, found %s", op, v.Tag)
	}
	return v.Num()
}
