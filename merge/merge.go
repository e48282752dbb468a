// Package merge reconciles the key sets of translation trees.
//
// Merge fills a target with the keys it is missing from a source, without
// touching values the target already has. Diff returns the part of a source
// the target lacks. Both operate on key presence only: differing leaf values
// are never reported or overwritten.
package merge

import (
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Merge returns a new tree that holds every key path of source that target
// is missing, added next to the values target already has.
//   - Keys absent from target are deep-copied from source and appended after
//     target's own keys, in source order.
//   - Keys present in both are merged recursively.
//   - An existing target value is never replaced, even when its kind differs
//     from the source value.
//
// A source that is not a mapping leaves target unchanged. A nil target is
// treated as absent and yields a copy of source. Neither argument is
// modified.
func Merge(source, target tree.Value) tree.Value {
	if target == nil {
		return tree.Clone(source)
	}
	src, ok := source.(*tree.Mapping)
	if !ok {
		return tree.Clone(target)
	}
	dst, ok := target.(*tree.Mapping)
	if !ok {
		return tree.Clone(target)
	}
	return mergeMappings(src, dst)
}

func mergeMappings(src, dst *tree.Mapping) *tree.Mapping {
	out := tree.NewMapping(dst.Len() + src.Len())

	// Existing entries keep their position.
	dst.Range(func(k string, dv tree.Value) bool {
		if sv, ok := src.Get(k); ok {
			out.Set(k, Merge(sv, dv))
		} else {
			out.Set(k, tree.Clone(dv))
		}
		return true
	})

	src.Range(func(k string, sv tree.Value) bool {
		if !dst.Has(k) {
			out.Set(k, tree.Clone(sv))
		}
		return true
	})
	return out
}

// Diff returns the subset of source whose key paths are absent from target.
// A key missing from target is included with its whole subtree. A key present
// in both contributes only its nested missing keys, and is dropped entirely
// when there are none. When target is not a mapping, every key of source
// counts as missing.
//
// The result is always a mapping; a source that is not a mapping yields an
// empty one. Neither argument is modified.
func Diff(source, target tree.Value) *tree.Mapping {
	src, ok := source.(*tree.Mapping)
	if !ok {
		return tree.NewMapping(0)
	}
	dst, _ := target.(*tree.Mapping)

	out := tree.NewMapping(0)
	src.Range(func(k string, sv tree.Value) bool {
		dv, ok := dst.Get(k)
		if !ok {
			out.Set(k, tree.Clone(sv))
			return true
		}
		if !tree.IsMapping(sv) {
			return true
		}
		if sub := Diff(sv, dv); sub.Len() > 0 {
			out.Set(k, sub)
		}
		return true
	})
	return out
}

// IsEmpty reports whether a diff result carries no keys.
func IsEmpty(diff *tree.Mapping) bool {
	return diff.Len() == 0
}
