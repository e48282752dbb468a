package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Sort returns a copy of v whose mapping keys are in ascending byte order at
// every depth. Lists are copied as they are: their elements are never
// reordered and mappings inside lists keep their key order.
func Sort(v Value) Value {
	m, ok := v.(*Mapping)
	if !ok {
		return Clone(v)
	}
	keys := m.Keys()
	sort.Strings(keys)
	out := NewMapping(len(keys))
	for _, k := range keys {
		child, _ := m.Get(k)
		out.Set(k, Sort(child))
	}
	return out
}

// IsSorted reports whether every mapping reachable from v without crossing a
// list has its keys in ascending order.
func IsSorted(v Value) bool {
	m, ok := v.(*Mapping)
	if !ok || m == nil {
		return true
	}
	if !sort.StringsAreSorted(m.keys) {
		return false
	}
	sorted := true
	m.Range(func(_ string, child Value) bool {
		sorted = IsSorted(child)
		return sorted
	})
	return sorted
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// Walk calls fn for every value that is not a mapping, with the key path
// leading to it. Mappings are descended in key order; lists are reported as
// a single value. Walk stops when fn returns false.
func Walk(v Value, fn func(path []string, v Value) bool) {
	walk(v, nil, fn)
}

func walk(v Value, path []string, fn func([]string, Value) bool) bool {
	m, ok := v.(*Mapping)
	if !ok {
		return fn(path, v)
	}
	cont := true
	m.Range(func(k string, child Value) bool {
		p := make([]string, len(path)+1)
		copy(p, path)
		p[len(path)] = k
		cont = walk(child, p, fn)
		return cont
	})
	return cont
}

// Lookup returns the value at path.
func Lookup(v Value, path []string) (Value, bool) {
	cur := v
	for _, k := range path {
		m, ok := cur.(*Mapping)
		if !ok {
			return nil, false
		}
		if cur, ok = m.Get(k); !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath stores leaf at path inside m, creating intermediate mappings.
// An intermediate value that is not a mapping is replaced.
func SetPath(m *Mapping, path []string, v Value) {
	if len(path) == 0 {
		return
	}
	cur := m
	for _, k := range path[:len(path)-1] {
		next, ok := cur.Get(k)
		nm, isMap := next.(*Mapping)
		if !ok || !isMap {
			nm = NewMapping(1)
			cur.Set(k, nm)
		}
		cur = nm
	}
	cur.Set(path[len(path)-1], v)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Pointer renders path as an RFC 6901 JSON pointer.
func Pointer(path []string) string {
	var b strings.Builder
	for _, k := range path {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(k))
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Conversion from and to plain Go values
// ---------------------------------------------------------------------------

// From converts a plain Go value as produced by encoding/json or yaml.v3
// into a Value. Keys of Go maps have no order, so they are inserted sorted.
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return Clone(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("number %v is not representable in JSON", t)
		}
		return Number(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), nil
	case []any:
		out := make(List, 0, len(t))
		for i, e := range t {
			ev, err := From(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, ev)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMapping(len(keys))
		for _, k := range keys {
			ev, err := From(t[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out.Set(k, ev)
		}
		return out, nil
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMapping(len(keys))
		for _, k := range keys {
			out.Set(k, String(t[k]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %T", x)
}

// MustFrom is like From but panics on error. Intended for literals in tests
// and package-level variables.
func MustFrom(x any) Value {
	v, err := From(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ToAny converts v into plain Go values: map[string]any, []any, string,
// json.Number, bool or nil.
func ToAny(v Value) any {
	switch t := v.(type) {
	case *Mapping:
		out := make(map[string]any, t.Len())
		t.Range(func(k string, child Value) bool {
			out[k] = ToAny(child)
			return true
		})
		return out
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToAny(e)
		}
		return out
	case Leaf:
		return t.v
	}
	return nil
}
