package machine

import (
	"math"
	"strings"
)

// toFloat widens an Int or Float to a float64; ok is false for any other
// type.
func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Float:
		return float64(v), true
	}
	return 0, false
}

// arith implements spec §4.4's arithmetic table for Add/Sub/Mul/Mod/Pow/
// Div/IDiv: int op int yields int (wrapping); any float operand yields
// float; anything else is a TypeError.
func arith(op string, l, r Value) (Value, error) {
	li, lIsInt := l.(Int)
	ri, rIsInt := r.(Int)

	switch op {
	case "div":
		lf, lok := toFloat(l)
		rf, rok := toFloat(r)
		if !lok {
			return nil, typeError("div", l.Type(), "number")
		}
		if !rok {
			return nil, typeError("div", r.Type(), "number")
		}
		return Float(lf / rf), nil
	case "pow":
		lf, lok := toFloat(l)
		rf, rok := toFloat(r)
		if !lok {
			return nil, typeError("pow", l.Type(), "number")
		}
		if !rok {
			return nil, typeError("pow", r.Type(), "number")
		}
		return Float(math.Pow(lf, rf)), nil
	}

	if lIsInt && rIsInt {
		switch op {
		case "add":
			return Int(int64(li) + int64(ri)), nil
		case "sub":
			return Int(int64(li) - int64(ri)), nil
		case "mul":
			return Int(int64(li) * int64(ri)), nil
		case "idiv":
			if ri == 0 {
				return nil, forZeroStepError()
			}
			return Int(floorDiv(int64(li), int64(ri))), nil
		case "mod":
			if ri == 0 {
				return nil, forZeroStepError()
			}
			return Int(int64(li) - floorDiv(int64(li), int64(ri))*int64(ri)), nil
		}
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok {
		return nil, typeError(op, l.Type(), "number")
	}
	if !rok {
		return nil, typeError(op, r.Type(), "number")
	}
	switch op {
	case "add":
		return Float(lf + rf), nil
	case "sub":
		return Float(lf - rf), nil
	case "mul":
		return Float(lf * rf), nil
	case "idiv":
		return Float(math.Floor(lf / rf)), nil
	case "mod":
		return Float(lf - math.Floor(lf/rf)*rf), nil
	}
	return nil, typeError(op, l.Type(), "number")
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// toInt converts v to an int64 for a bitwise operation: integers pass
// through; floats with a zero fractional part convert; anything else is an
// IntegerConversion error (spec §7).
func toInt(v Value) (int64, error) {
	switch v := v.(type) {
	case Int:
		return int64(v), nil
	case Float:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, integerConversionError("number has no integer representation")
		}
		return int64(v), nil
	}
	return 0, integerConversionError("attempt to perform bitwise operation on a " + v.Type() + " value")
}

func bitwise(op string, l, r Value) (Value, error) {
	li, err := toInt(l)
	if err != nil {
		return nil, err
	}
	ri, err := toInt(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "and":
		return Int(li & ri), nil
	case "or":
		return Int(li | ri), nil
	case "xor":
		return Int(li ^ ri), nil
	case "shl":
		return Int(shiftLeft(li, ri)), nil
	case "shr":
		return Int(shiftLeft(li, -ri)), nil
	}
	panic("machine: unknown bitwise op " + op)
}

// shiftLeft implements Lua's shift semantics: a shift by >= 64 (in either
// direction) yields 0, and a negative shift amount shifts the other way.
func shiftLeft(v, n int64) int64 {
	switch {
	case n <= -64 || n >= 64:
		return 0
	case n >= 0:
		return int64(uint64(v) << uint(n))
	default:
		return int64(uint64(v) >> uint(-n))
	}
}

// numEqual implements cross-type numeric equality (1 == 1.0).
func numEqual(l, r Value) bool {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return false
	}
	return lf == rf
}

// valuesEqual implements spec §3/§4.4's Equal semantics: numbers compare
// across int/float, strings structurally, everything else only within its
// own kind (tables/closures/native functions by identity, booleans and nil
// by value).
func valuesEqual(l, r Value) bool {
	switch l := l.(type) {
	case NilType:
		_, ok := r.(NilType)
		return ok
	case Bool:
		rb, ok := r.(Bool)
		return ok && l == rb
	case Int, Float:
		switch r.(type) {
		case Int, Float:
			return numEqual(l, r)
		}
		return false
	case String:
		rs, ok := r.(String)
		return ok && l == rs
	case *Table:
		rt, ok := r.(*Table)
		return ok && l == rt
	case *Closure:
		rc, ok := r.(*Closure)
		return ok && l == rc
	case *NativeFn:
		rn, ok := r.(*NativeFn)
		return ok && l == rn
	}
	return false
}

// lessThan implements ordering: numbers by value across int/float, strings
// byte-lexicographically; any other pairing is an OrderingError.
func lessThan(l, r Value) (bool, error) {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf < rf, nil
		}
		return false, orderingError(l.Type(), r.Type())
	}
	if ls, ok := l.(String); ok {
		if rs, ok := r.(String); ok {
			return ls < rs, nil
		}
		return false, orderingError(l.Type(), r.Type())
	}
	return false, orderingError(l.Type(), r.Type())
}

func lessEqual(l, r Value) (bool, error) {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf <= rf, nil
		}
		return false, orderingError(l.Type(), r.Type())
	}
	if ls, ok := l.(String); ok {
		if rs, ok := r.(String); ok {
			return ls <= rs, nil
		}
		return false, orderingError(l.Type(), r.Type())
	}
	return false, orderingError(l.Type(), r.Type())
}

// concatString renders v in Concat's canonical form: numbers via their
// String method (which already distinguishes integer from whole-float
// forms), strings as themselves; anything else is a ConcatError.
func concatString(v Value) (string, error) {
	switch v := v.(type) {
	case String:
		return string(v), nil
	case Int, Float:
		return v.String(), nil
	}
	return "", concatError(v.Type())
}

func concat(vals []Value) (Value, error) {
	var b strings.Builder
	for _, v := range vals {
		s, err := concatString(v)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return String(b.String()), nil
}
