package machine

import "fmt"

// Value is the interface implemented by every runtime value the machine
// manipulates. Unlike a general-purpose embeddable language, Lua's value set
// is closed: a fixed handful of concrete types below are the only
// implementations that will ever exist, so code that type-switches on Value
// never needs a default case guarding against an unknown implementation.
type Value interface {
	// String returns the value's default string form (used by tostring and
	// by Concat's numeric-to-string canonicalization).
	String() string

	// Type returns the Lua type name: "nil", "boolean", "number", "string",
	// "table", or "function".
	Type() string
}

// NilType is the type of Nil, the sole value reported by Type() as "nil".
type NilType struct{}

// Nil is the unique value of NilType.
var Nil = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Bool is a Lua boolean.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "boolean" }

// Int is a Lua integer, wrapping on overflow per Lua's two's-complement
// arithmetic.
type Int int64

func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }
func (Int) Type() string     { return "number" }

// Float is a Lua float.
type Float float64

func (f Float) String() string {
	// Lua's canonical float form always shows a fractional part, even for a
	// whole-valued float, so 2.0 prints as "2.0" rather than as the integer
	// "2" (spec §4.4's Concat canonicalization).
	if float64(f) == float64(int64(f)) {
		return fmt.Sprintf("%d.0", int64(f))
	}
	return fmt.Sprintf("%g", float64(f))
}
func (Float) Type() string { return "number" }

// String is a Lua string. The spec's data model distinguishes an inline
// ShortString from a shared-heap LongString purely as a small-string
// optimization of the host representation; a Go string already stores short
// values inline (in the string header up to reallocation) and shares the
// backing array for long ones, so both variants collapse to this one type —
// recorded as a deliberate simplification in DESIGN.md.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// Truthy reports whether v is considered true in a boolean context: every
// value except Nil and Bool(false) is truthy.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// NativeFn is a function implemented in Go and exposed to Lua code, such as
// the standard library's print or type.
type NativeFn struct {
	Name string
	Fn   func(th *Thread, args []Value) ([]Value, error)
}

func (f *NativeFn) String() string { return fmt.Sprintf("function: builtin: %s", f.Name) }
func (*NativeFn) Type() string     { return "function" }
