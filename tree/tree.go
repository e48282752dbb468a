// Package tree implements the in-memory model for translation stores.
//
// A translation store is a JSON document. Every value is classified as
// exactly one of three kinds:
//
//   - Mapping: a JSON object. Key order is preserved.
//   - List:    a JSON array. Lists are opaque; nothing traverses into them.
//   - Leaf:    a string, number, boolean or null.
//
// All operations in this package and in the packages built on it return
// new values and never mutate their arguments.
package tree

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind classifies a Value.
type Kind int

const (
	KindLeaf Kind = iota
	KindMapping
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindMapping:
		return "mapping"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a node of a translation tree: *Mapping, List or Leaf.
type Value interface {
	Kind() Kind
}

// KindOf returns the kind of v. A nil Value is a null leaf.
func KindOf(v Value) Kind {
	if v == nil {
		return KindLeaf
	}
	return v.Kind()
}

// IsMapping reports whether v is a non-nil mapping.
func IsMapping(v Value) bool {
	m, ok := v.(*Mapping)
	return ok && m != nil
}

// AsMapping returns v as a mapping, or nil if v is not one.
func AsMapping(v Value) *Mapping {
	if m, ok := v.(*Mapping); ok {
		return m
	}
	return nil
}

// ---------------------------------------------------------------------------
// Leaf
// ---------------------------------------------------------------------------

// Leaf is a JSON scalar. The zero Leaf is null.
type Leaf struct {
	v any // string, json.Number, bool or nil
}

func (Leaf) Kind() Kind { return KindLeaf }

// String returns a string leaf.
func String(s string) Leaf { return Leaf{v: s} }

// Number returns a number leaf holding the literal text n.
func Number(n json.Number) Leaf { return Leaf{v: n} }

// Int returns a number leaf for an integer.
func Int(i int64) Leaf { return Leaf{v: json.Number(strconv.FormatInt(i, 10))} }

// Bool returns a boolean leaf.
func Bool(b bool) Leaf { return Leaf{v: b} }

// Null returns the null leaf.
func Null() Leaf { return Leaf{} }

// Scalar returns the underlying Go value: string, json.Number, bool or nil.
func (l Leaf) Scalar() any { return l.v }

// IsNull reports whether the leaf is null.
func (l Leaf) IsNull() bool { return l.v == nil }

// Str returns the string content and whether the leaf is a string.
func (l Leaf) Str() (string, bool) {
	s, ok := l.v.(string)
	return s, ok
}

func (l Leaf) String() string {
	switch v := l.v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case json.Number:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(l.v)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is a JSON array.
type List []Value

func (List) Kind() Kind { return KindList }

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

// Mapping is a JSON object that remembers key insertion order.
// The zero value is an empty mapping ready to use.
type Mapping struct {
	keys   []string
	values map[string]Value
}

func (*Mapping) Kind() Kind { return KindMapping }

// NewMapping returns an empty mapping with room for n keys.
func NewMapping(n int) *Mapping {
	return &Mapping{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. A new key is appended to the key order; an
// existing key keeps its position.
func (m *Mapping) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key. Missing keys are ignored.
func (m *Mapping) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for every entry in key order until fn returns false.
func (m *Mapping) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Structural helpers
// ---------------------------------------------------------------------------

// Clone returns a structurally independent deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Mapping:
		if t == nil {
			return NewMapping(0)
		}
		out := NewMapping(t.Len())
		for _, k := range t.keys {
			out.Set(k, Clone(t.values[k]))
		}
		return out
	case List:
		if t == nil {
			return List(nil)
		}
		out := make(List, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case Leaf:
		return t
	case nil:
		return Null()
	}
	return v
}

// Equal reports whether a and b are structurally equal. Mapping key order
// is ignored; list order is not.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch ta := a.(type) {
	case *Mapping:
		tb := b.(*Mapping)
		if ta.Len() != tb.Len() {
			return false
		}
		equal := true
		ta.Range(func(k string, va Value) bool {
			vb, ok := tb.Get(k)
			if !ok || !Equal(va, vb) {
				equal = false
			}
			return equal
		})
		return equal
	case List:
		tb := b.(List)
		if len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return leafOf(a) == leafOf(b)
}

func leafOf(v Value) Leaf {
	if l, ok := v.(Leaf); ok {
		return l
	}
	return Null()
}
