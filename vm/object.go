package vm

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/rill-lang/rill/compiler"
)

// ---------------------------------------------------------------------------
// Object model: tagged runtime values shared by both execution engines
// ---------------------------------------------------------------------------

// Kind identifies the variant of a runtime value.
type Kind int

const (
	KindInteger Kind = iota
	KindBoolean
	KindNull
	KindString
	KindArray
	KindHash
	KindError
	KindFunction
	KindCompiledFunction
	KindClosure
	KindBuiltin
	KindReturnValue
)

var kindNames = map[Kind]string{
	KindInteger:          "INTEGER",
	KindBoolean:          "BOOLEAN",
	KindNull:             "NULL",
	KindString:           "STRING",
	KindArray:            "ARRAY",
	KindHash:             "HASH",
	KindError:            "ERROR",
	KindFunction:         "FUNCTION",
	KindCompiledFunction: "COMPILED_FUNCTION",
	KindClosure:          "CLOSURE",
	KindBuiltin:          "BUILTIN",
	KindReturnValue:      "RETURN_VALUE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Object is the interface implemented by all runtime values.
type Object interface {
	Kind() Kind
	Inspect() string // display form; part of the observable contract
}

// HashKey uniquely identifies a hashable value. The Kind field doubles as
// the per-kind salt: keys of different kinds never compare equal even when
// their Value payloads collide.
type HashKey struct {
	Kind  Kind
	Value uint64
}

// Hashable is implemented by values usable as hash keys.
// Only Integer, Boolean and String qualify.
type Hashable interface {
	HashKey() HashKey
}

// Canonical singletons. Boolean and null equality is reference equality of
// these instances.
var (
	True  = &Boolean{Value: true}
	False = &Boolean{Value: false}
	Null  = &NullObject{}
)

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// Integer is a signed 64-bit integer. Arithmetic wraps on overflow
// (two's complement).
type Integer struct {
	Value int64
}

func (i *Integer) Kind() Kind      { return KindInteger }
func (i *Integer) Inspect() string { return fmt.Sprintf("%d", i.Value) }
func (i *Integer) HashKey() HashKey {
	return HashKey{Kind: KindInteger, Value: uint64(i.Value)}
}

// Boolean is one of the two canonical truth values.
type Boolean struct {
	Value bool
}

func (b *Boolean) Kind() Kind      { return KindBoolean }
func (b *Boolean) Inspect() string { return fmt.Sprintf("%t", b.Value) }
func (b *Boolean) HashKey() HashKey {
	var v uint64
	if b.Value {
		v = 1
	}
	return HashKey{Kind: KindBoolean, Value: v}
}

// NullObject is the canonical absent value.
type NullObject struct{}

func (n *NullObject) Kind() Kind      { return KindNull }
func (n *NullObject) Inspect() string { return "null" }

// String is an immutable byte sequence.
type String struct {
	Value string
}

func (s *String) Kind() Kind      { return KindString }
func (s *String) Inspect() string { return s.Value }
func (s *String) HashKey() HashKey {
	h := fnv.New64a()
	h.Write([]byte(s.Value))
	return HashKey{Kind: KindString, Value: h.Sum64()}
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// Array is an ordered value sequence. Indexing out of range yields Null.
type Array struct {
	Elements []Object
}

func (a *Array) Kind() Kind { return KindArray }
func (a *Array) Inspect() string {
	elems := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		elems[i] = e.Inspect()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// HashEntry retains the original key alongside the value so Inspect can
// print it.
type HashEntry struct {
	Key   Object
	Value Object
}

// Hash maps hash keys to entries. Lookup miss yields Null.
type Hash struct {
	Entries map[HashKey]HashEntry
}

func (h *Hash) Kind() Kind { return KindHash }
func (h *Hash) Inspect() string {
	pairs := make([]string, 0, len(h.Entries))
	for _, e := range h.Entries {
		pairs = append(pairs, fmt.Sprintf("%s: %s", e.Key.Inspect(), e.Value.Inspect()))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// Function is a tree-walker function value: parameters, body, and the
// defining environment. Only the reference interpreter produces these.
type Function struct {
	Parameters []*compiler.Identifier
	Body       *compiler.BlockStatement
	Env        *Environment
}

func (f *Function) Kind() Kind { return KindFunction }
func (f *Function) Inspect() string {
	params := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) {\n%s\n}", strings.Join(params, ", "), f.Body.String())
}

// CompiledFunction holds a function's instruction stream together with its
// frame layout. It only ever lives in the constants pool; the VM executes
// it through a Closure.
type CompiledFunction struct {
	Instructions  []byte
	NumLocals     int
	NumParameters int
}

func (cf *CompiledFunction) Kind() Kind      { return KindCompiledFunction }
func (cf *CompiledFunction) Inspect() string { return fmt.Sprintf("CompiledFunction[%p]", cf) }

// Closure pairs a compiled function with the values captured for its free
// variables, in capture order.
type Closure struct {
	Fn   *CompiledFunction
	Free []Object
}

func (c *Closure) Kind() Kind      { return KindClosure }
func (c *Closure) Inspect() string { return fmt.Sprintf("Closure[%p]", c) }

// BuiltinFunction is the signature of a native builtin. A nil result is
// promoted to Null by both engines.
type BuiltinFunction func(args ...Object) Object

// Builtin is a named native callable.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Kind() Kind      { return KindBuiltin }
func (b *Builtin) Inspect() string { return "builtin function" }

// ---------------------------------------------------------------------------
// Control objects
// ---------------------------------------------------------------------------

// ReturnValue wraps a value unwinding out of nested blocks in the
// reference interpreter. It never escapes an evaluation.
type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Kind() Kind      { return KindReturnValue }
func (rv *ReturnValue) Inspect() string { return rv.Value.Inspect() }

// Error carries a runtime error message. Builtins return it to signal
// failure; the VM promotes it to a Go error.
type Error struct {
	Message string
}

func (e *Error) Kind() Kind      { return KindError }
func (e *Error) Inspect() string { return "ERROR: " + e.Message }

// Errorf constructs an Error from a format string.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether obj is an Error.
func IsError(obj Object) bool {
	if obj == nil {
		return false
	}
	return obj.Kind() == KindError
}

// BoolValue returns the canonical Boolean for b.
func BoolValue(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

// IsTruthy reports conditional truth: everything except Null and False is
// truthy, including integer 0.
func IsTruthy(obj Object) bool {
	switch obj {
	case Null, False:
		return false
	default:
		return true
	}
}
