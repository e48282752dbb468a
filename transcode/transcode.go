// Package transcode converts translation stores between the named-key shape
// used in repositories and the key/value list shape used by the translation
// server.
//
// Named-key:
//
//	{"base": {"en": {"hello": "Hello"}}, "12": {"en": {"hello": "Hi"}}}
//
// Key/value list:
//
//	{"specific": {"12": {"en": [{"key": "hello", "value": "Hi"}]}},
//	 "base": {"en": [{"key": "hello", "value": "Hello"}]}}
package transcode

import (
	"fmt"

	"github.com/garbanzo-i18n/garbanzo/partition"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

const (
	// Specific is the wrapper holding every non-base partition in the
	// key/value list shape.
	Specific = "specific"
	// Timestamp is server metadata that is never sent back.
	Timestamp = "timestamp"

	recordKey   = "key"
	recordValue = "value"
)

// MalformedInputError reports a store that cannot be converted at all.
type MalformedInputError struct {
	Partition string
	Reason    string
}

func (e *MalformedInputError) Error() string {
	if e.Partition == "" {
		return "malformed translation store: " + e.Reason
	}
	return fmt.Sprintf("malformed translation store: partition %q: %s", e.Partition, e.Reason)
}

// ToNamedKey converts a key/value list store into the named-key shape. The
// store must hold both "base" and "specific"; the children of "specific" are
// hoisted next to "base" in the result. Any other top-level key is dropped.
//
// Within a partition every language list becomes a mapping from record key
// to record value; a repeated key keeps the last value. Number, boolean and
// null keys are used in their JSON text form ({"key": 5} becomes "5").
// Records without a scalar key or without a value are skipped. A language
// value that is not a list is copied unchanged, and a partition that is not
// a mapping becomes empty.
func ToNamedKey(store tree.Value) (*tree.Mapping, error) {
	m, ok := store.(*tree.Mapping)
	if !ok {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("expected a mapping, got a %s", tree.KindOf(store))}
	}
	base, ok := m.Get(partition.Base)
	if !ok {
		return nil, &MalformedInputError{Partition: partition.Base, Reason: "missing"}
	}
	specific, ok := m.Get(Specific)
	if !ok {
		return nil, &MalformedInputError{Partition: Specific, Reason: "missing"}
	}

	out := tree.NewMapping(1 + tree.AsMapping(specific).Len())
	out.Set(partition.Base, namedKeyPartition(base))

	// A child named "base" replaces the base partition in place.
	tree.AsMapping(specific).Range(func(name string, v tree.Value) bool {
		out.Set(name, namedKeyPartition(v))
		return true
	})
	return out, nil
}

func namedKeyPartition(v tree.Value) *tree.Mapping {
	langs, ok := v.(*tree.Mapping)
	if !ok {
		return tree.NewMapping(0)
	}
	out := tree.NewMapping(langs.Len())
	langs.Range(func(lang string, lv tree.Value) bool {
		records, ok := lv.(tree.List)
		if !ok {
			out.Set(lang, tree.Clone(lv))
			return true
		}
		entries := tree.NewMapping(len(records))
		for _, r := range records {
			key, value, ok := record(r)
			if !ok {
				continue
			}
			entries.Set(key, tree.Clone(value))
		}
		out.Set(lang, entries)
		return true
	})
	return out
}

func record(v tree.Value) (key string, value tree.Value, ok bool) {
	r, isMap := v.(*tree.Mapping)
	if !isMap {
		return "", nil, false
	}
	k, hasKey := r.Get(recordKey)
	value, hasValue := r.Get(recordValue)
	if !hasKey || !hasValue {
		return "", nil, false
	}
	leaf, isLeaf := k.(tree.Leaf)
	if !isLeaf {
		return "", nil, false
	}
	if key, ok = leaf.Str(); ok {
		return key, value, true
	}
	return leaf.String(), value, true
}

// ToKeyValue converts a named-key store into the key/value list shape.
// Every top-level key other than "base" and "timestamp" is placed under
// "specific"; "timestamp" is dropped. A missing or non-mapping "base"
// becomes an empty partition.
//
// Within a partition every language mapping becomes a list of
// {"key", "value"} records in key order. A language value that is not a
// mapping is copied unchanged.
func ToKeyValue(named tree.Value) *tree.Mapping {
	m := tree.AsMapping(named)

	specific := tree.NewMapping(0)
	m.Range(func(key string, v tree.Value) bool {
		if key != partition.Base && key != Timestamp {
			specific.Set(key, keyValuePartition(v))
		}
		return true
	})

	base, _ := m.Get(partition.Base)

	out := tree.NewMapping(2)
	out.Set(Specific, specific)
	out.Set(partition.Base, keyValuePartition(base))
	return out
}

func keyValuePartition(v tree.Value) *tree.Mapping {
	langs, ok := v.(*tree.Mapping)
	if !ok {
		return tree.NewMapping(0)
	}
	out := tree.NewMapping(langs.Len())
	langs.Range(func(lang string, lv tree.Value) bool {
		entries, ok := lv.(*tree.Mapping)
		if !ok {
			out.Set(lang, tree.Clone(lv))
			return true
		}
		records := make(tree.List, 0, entries.Len())
		entries.Range(func(key string, value tree.Value) bool {
			r := tree.NewMapping(2)
			r.Set(recordKey, tree.String(key))
			r.Set(recordValue, tree.Clone(value))
			records = append(records, r)
			return true
		})
		out.Set(lang, records)
		return true
	})
	return out
}
