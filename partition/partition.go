// Package partition classifies the top-level keys of a translation store and
// filters its language partitions.
//
// A store groups its languages under partitions: "base" holds the shared
// strings and every key that parses as a finite number names a variant.
// Any other top-level key (for example "timestamp") is metadata and is
// never filtered.
package partition

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Base is the name of the shared partition.
const Base = "base"

// Class is the classification of a top-level key.
type Class int

const (
	// Passthrough keys are left alone by every partition-aware operation.
	Passthrough Class = iota
	// Shared is the "base" partition.
	Shared
	// Variant is a numeric partition.
	Variant
)

func (c Class) String() string {
	switch c {
	case Shared:
		return "base"
	case Variant:
		return "variant"
	default:
		return "passthrough"
	}
}

// Classify returns the class of a top-level store key. A key is a variant
// when, after trimming surrounding whitespace, it is a non-empty finite
// number: a decimal such as "7", "-2" or "1.5", or an unsigned hexadecimal,
// binary or octal integer such as "0x1A", "0b1" or "0o7".
func Classify(key string) Class {
	if key == Base {
		return Shared
	}
	s := strings.TrimSpace(key)
	if s == "" {
		return Passthrough
	}
	if len(s) > 1 && s[0] == '0' && strings.ContainsRune("xXbBoO", rune(s[1])) {
		if isPrefixedInteger(s) {
			return Variant
		}
		return Passthrough
	}
	// ParseFloat also takes hex floats, underscores and "inf".
	if strings.Trim(s, "0123456789+-.eE") != "" {
		return Passthrough
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Passthrough
	}
	return Variant
}

func isPrefixedInteger(s string) bool {
	if len(s) < 3 {
		return false
	}
	var digits string
	switch s[1] {
	case 'x', 'X':
		digits = "0123456789abcdefABCDEF"
	case 'b', 'B':
		digits = "01"
	case 'o', 'O':
		digits = "01234567"
	default:
		return false
	}
	for _, c := range s[2:] {
		if !strings.ContainsRune(digits, c) {
			return false
		}
	}
	return true
}

// IsLanguagePartition reports whether key names a partition that holds
// languages.
func IsLanguagePartition(key string) bool {
	return Classify(key) != Passthrough
}

// TypeMismatchError reports a language partition whose value is not a
// mapping. The partition is left as it was.
type TypeMismatchError struct {
	Partition string
	Kind      tree.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("partition %q is a %s, expected a mapping", e.Partition, e.Kind)
}

// FilterLanguages returns a copy of store in which every language partition
// keeps only the languages listed in allowed. Passthrough keys are copied
// unchanged. A language partition that is not a mapping is copied unchanged
// and reported in the returned slice; filtering carries on with the other
// partitions. A store that is not a mapping is returned as a copy.
func FilterLanguages(store tree.Value, allowed []string) (tree.Value, []*TypeMismatchError) {
	m, ok := store.(*tree.Mapping)
	if !ok {
		return tree.Clone(store), nil
	}

	keep := make(map[string]bool, len(allowed))
	for _, l := range allowed {
		keep[l] = true
	}

	var mismatches []*TypeMismatchError
	out := tree.NewMapping(m.Len())
	m.Range(func(key string, v tree.Value) bool {
		if !IsLanguagePartition(key) {
			out.Set(key, tree.Clone(v))
			return true
		}
		langs, ok := v.(*tree.Mapping)
		if !ok {
			mismatches = append(mismatches, &TypeMismatchError{Partition: key, Kind: tree.KindOf(v)})
			out.Set(key, tree.Clone(v))
			return true
		}
		filtered := tree.NewMapping(0)
		langs.Range(func(lang string, lv tree.Value) bool {
			if keep[lang] {
				filtered.Set(lang, tree.Clone(lv))
			}
			return true
		})
		out.Set(key, filtered)
		return true
	})
	return out, mismatches
}

// Languages returns the distinct language keys found in the language
// partitions of store, in first-seen order.
func Languages(store tree.Value) []string {
	m, ok := store.(*tree.Mapping)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	m.Range(func(key string, v tree.Value) bool {
		if !IsLanguagePartition(key) {
			return true
		}
		for _, lang := range tree.AsMapping(v).Keys() {
			if !seen[lang] {
				seen[lang] = true
				out = append(out, lang)
			}
		}
		return true
	})
	return out
}

// CheckLanguageCodes returns the entries of codes that are not well-formed
// BCP 47 language tags. Callers use it to warn about allow-lists that can
// never match anything; it does not affect filtering.
func CheckLanguageCodes(codes []string) []string {
	var bad []string
	for _, c := range codes {
		if _, err := language.Parse(c); err != nil {
			bad = append(bad, c)
		}
	}
	return bad
}
