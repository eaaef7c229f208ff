// Package stdlib installs kowhai's minimal standard library globals into a
// machine.Thread, following the teacher's convention of a single
// installation entry point (mirroring how the teacher's now-removed
// universe.go populated Starlark's builtin namespace) rather than letting
// each command wire its own ad hoc globals.
package stdlib

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kowhai-lang/kowhai/lang/machine"
)

// Install populates th.Globals with the builtins spec.md §9's glossary and
// SPEC_FULL §0's stdlib line name: print, type, assert, warn, pairs,
// ipairs, tostring, tonumber, pcall, plus a small string.* and math.*
// table.
func Install(th *machine.Thread) error {
	globals := th.Globals
	fns := map[string]func(*machine.Thread, []machine.Value) ([]machine.Value, error){
		"print":    builtinPrint,
		"type":     builtinType,
		"assert":   builtinAssert,
		"warn":     builtinWarn,
		"pairs":    builtinPairs,
		"ipairs":   builtinIpairs,
		"tostring": builtinToString,
		"tonumber": builtinToNumber,
		"pcall":    builtinPcall,
	}
	for name, fn := range fns {
		if err := globals.Set(machine.String(name), &machine.NativeFn{Name: name, Fn: fn}); err != nil {
			return err
		}
	}
	if err := globals.Set(machine.String("string"), stringLibrary()); err != nil {
		return err
	}
	if err := globals.Set(machine.String("math"), mathLibrary()); err != nil {
		return err
	}
	return nil
}

func arg(args []machine.Value, i int) machine.Value {
	if i < len(args) {
		return args[i]
	}
	return machine.Nil
}

func builtinPrint(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(th.Out(), strings.Join(parts, "\t"))
	return nil, nil
}

func builtinType(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	return []machine.Value{machine.String(arg(args, 0).Type())}, nil
}

func builtinAssert(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	v := arg(args, 0)
	if !machine.Truthy(v) {
		msg := "assertion failed!"
		if len(args) > 1 {
			msg = args[1].String()
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return args, nil
}

func builtinWarn(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(th.Err(), strings.Join(parts, " "))
	return nil, nil
}

// builtinPairs returns the (next, t, nil) triple the generic-for compiler
// emits a Call against on every iteration (`compileGenericForStmt`).
func builtinPairs(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	t, ok := arg(args, 0).(*machine.Table)
	if !ok {
		return nil, fmt.Errorf("bad argument #1 to 'pairs' (table expected, got %s)", arg(args, 0).Type())
	}
	next := &machine.NativeFn{Name: "next", Fn: func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		k, v, ok, err := t.Next(arg(args, 1))
		if err != nil {
			return nil, err
		}
		if !ok {
			return []machine.Value{machine.Nil}, nil
		}
		return []machine.Value{k, v}, nil
	}}
	return []machine.Value{next, t, machine.Nil}, nil
}

// builtinIpairs returns an iterator closure over the array part specifically,
// stopping at the first nil hole (Lua's ipairs contract).
func builtinIpairs(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	t, ok := arg(args, 0).(*machine.Table)
	if !ok {
		return nil, fmt.Errorf("bad argument #1 to 'ipairs' (table expected, got %s)", arg(args, 0).Type())
	}
	iter := &machine.NativeFn{Name: "inext", Fn: func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		i, _ := arg(args, 1).(machine.Int)
		next := i + 1
		v, err := t.Get(next)
		if err != nil {
			return nil, err
		}
		if _, isNil := v.(machine.NilType); isNil {
			return []machine.Value{machine.Nil}, nil
		}
		return []machine.Value{next, v}, nil
	}}
	return []machine.Value{iter, t, machine.Int(0)}, nil
}

func builtinToString(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	return []machine.Value{machine.String(arg(args, 0).String())}, nil
}

func builtinToNumber(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	v := arg(args, 0)
	switch v := v.(type) {
	case machine.Int, machine.Float:
		return []machine.Value{v}, nil
	case machine.String:
		s := strings.TrimSpace(string(v))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return []machine.Value{machine.Int(i)}, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return []machine.Value{machine.Float(f)}, nil
		}
	}
	return []machine.Value{machine.Nil}, nil
}

// builtinPcall runs fn via th.CallValue, translating a returned error into
// Lua's (false, message) convention instead of propagating it.
func builtinPcall(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("bad argument #1 to 'pcall' (value expected)")
	}
	results, err := th.CallValue(args[0], args[1:])
	if err != nil {
		return []machine.Value{machine.Bool(false), machine.String(err.Error())}, nil
	}
	return append([]machine.Value{machine.Bool(true)}, results...), nil
}

func stringLibrary() *machine.Table {
	t := machine.NewTable(0, 8)
	set := func(name string, fn func(*machine.Thread, []machine.Value) ([]machine.Value, error)) {
		t.Set(machine.String(name), &machine.NativeFn{Name: "string." + name, Fn: fn})
	}
	set("len", func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		s, ok := arg(args, 0).(machine.String)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'len' (string expected)")
		}
		return []machine.Value{machine.Int(len(s))}, nil
	})
	set("upper", func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		s, ok := arg(args, 0).(machine.String)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'upper' (string expected)")
		}
		return []machine.Value{machine.String(strings.ToUpper(string(s)))}, nil
	})
	set("lower", func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		s, ok := arg(args, 0).(machine.String)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'lower' (string expected)")
		}
		return []machine.Value{machine.String(strings.ToLower(string(s)))}, nil
	})
	set("sub", func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		s, ok := arg(args, 0).(machine.String)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'sub' (string expected)")
		}
		i := luaIndexArg(args, 1, 1)
		j := luaIndexArg(args, 2, -1)
		start, end := subRange(len(s), i, j)
		if start > end {
			return []machine.Value{machine.String("")}, nil
		}
		return []machine.Value{machine.String(s[start:end])}, nil
	})
	set("format", func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		f, ok := arg(args, 0).(machine.String)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'format' (string expected)")
		}
		return []machine.Value{machine.String(luaFormat(string(f), args[1:]))}, nil
	})
	return t
}

func luaIndexArg(args []machine.Value, i int, def int64) int64 {
	v := arg(args, i)
	if n, ok := v.(machine.Int); ok {
		return int64(n)
	}
	return def
}

// subRange converts Lua's 1-based, possibly-negative string.sub indices
// into a 0-based [start,end) Go slice range clamped to [0,length].
func subRange(length int, i, j int64) (int, int) {
	norm := func(k int64) int64 {
		if k < 0 {
			k = int64(length) + k + 1
		}
		return k
	}
	i, j = norm(i), norm(j)
	if i < 1 {
		i = 1
	}
	if j > int64(length) {
		j = int64(length)
	}
	return int(i - 1), int(j)
}

// luaFormat implements the minimal %s/%d/%g/%% subset of string.format this
// module supports (SPEC_FULL's stated stdlib scope), delegating to Go's own
// fmt verbs since Lua's format directives and Go's coincide for these.
func luaFormat(f string, args []machine.Value) string {
	var b strings.Builder
	argi := 0
	next := func() machine.Value {
		v := arg(args, argi)
		argi++
		return v
	}
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c != '%' || i+1 >= len(f) {
			b.WriteByte(c)
			continue
		}
		i++
		switch f[i] {
		case '%':
			b.WriteByte('%')
		case 's':
			b.WriteString(next().String())
		case 'd':
			v := next()
			n, _ := toInt64(v)
			fmt.Fprintf(&b, "%d", n)
		case 'g':
			v := next()
			fl, _ := toFloat64(v)
			fmt.Fprintf(&b, "%g", fl)
		default:
			b.WriteByte('%')
			b.WriteByte(f[i])
		}
	}
	return b.String()
}

func toInt64(v machine.Value) (int64, bool) {
	switch v := v.(type) {
	case machine.Int:
		return int64(v), true
	case machine.Float:
		return int64(v), true
	}
	return 0, false
}

func toFloat64(v machine.Value) (float64, bool) {
	switch v := v.(type) {
	case machine.Int:
		return float64(v), true
	case machine.Float:
		return float64(v), true
	}
	return 0, false
}

func mathLibrary() *machine.Table {
	t := machine.NewTable(0, 8)
	t.Set(machine.String("huge"), machine.Float(math.Inf(1)))
	t.Set(machine.String("maxinteger"), machine.Int(math.MaxInt64))
	t.Set(machine.String("mininteger"), machine.Int(math.MinInt64))
	t.Set(machine.String("floor"), &machine.NativeFn{Name: "math.floor", Fn: func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		f, ok := toFloat64(arg(args, 0))
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'floor' (number expected)")
		}
		return []machine.Value{machine.Int(int64(math.Floor(f)))}, nil
	}})
	t.Set(machine.String("abs"), &machine.NativeFn{Name: "math.abs", Fn: func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
		switch v := arg(args, 0).(type) {
		case machine.Int:
			if v < 0 {
				v = -v
			}
			return []machine.Value{v}, nil
		case machine.Float:
			return []machine.Value{machine.Float(math.Abs(float64(v)))}, nil
		}
		return nil, fmt.Errorf("bad argument #1 to 'abs' (number expected)")
	}})
	return t
}
