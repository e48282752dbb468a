package partition

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/garbanzo-i18n/garbanzo/tree"
)

func parse(t *testing.T, s string) tree.Value {
	t.Helper()
	v, err := tree.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return v
}

func compact(t *testing.T, v tree.Value) string {
	t.Helper()
	data, err := tree.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(data)
}

func TestClassify(t *testing.T) {
	cases := map[string]Class{
		"base":      Shared,
		"0":         Variant,
		"12":        Variant,
		"-3":        Variant,
		"1.5":       Variant,
		" 7 ":       Variant,
		"1e3":       Variant,
		"timestamp": Passthrough,
		"":          Passthrough,
		"  ":        Passthrough,
		"Infinity":  Passthrough,
		"NaN":       Passthrough,
		"12abc":     Passthrough,
		"Base":      Passthrough,
		"0x1A":      Variant,
		"0XfF":      Variant,
		"0b101":     Variant,
		"0o17":      Variant,
		"0x":        Passthrough,
		"0b2":       Passthrough,
		"0o8":       Passthrough,
		"-0x1A":     Passthrough,
		"0x1p4":     Passthrough,
		"1_000":     Passthrough,
		"inf":       Passthrough,
		"+5":        Variant,
		".5":        Variant,
	}
	for key, want := range cases {
		if got := Classify(key); got != want {
			t.Errorf("Classify(%q) = %s, want %s", key, got, want)
		}
	}
}

func TestFilterLanguagesKeepsTimestamp(t *testing.T) {
	store := parse(t, `{"base":{"en":"x","fr":"y"},"timestamp":123}`)

	got, errs := FilterLanguages(store, []string{"en"})
	if len(errs) != 0 {
		t.Fatalf("unexpected mismatches: %v", errs)
	}
	if want := `{"base":{"en":"x"},"timestamp":123}`; compact(t, got) != want {
		t.Fatalf("FilterLanguages = %s, want %s", compact(t, got), want)
	}
}

func TestFilterLanguagesVariants(t *testing.T) {
	store := parse(t, `{
		"base":{"en":{"a":"1"},"de":{"a":"2"},"fr":{"a":"3"}},
		"42":{"fr":{"b":"1"},"it":{"b":"2"}},
		"meta":{"en":"untouched","it":"untouched"}
	}`)

	got, errs := FilterLanguages(store, []string{"en", "fr"})
	if len(errs) != 0 {
		t.Fatalf("unexpected mismatches: %v", errs)
	}
	want := `{"base":{"en":{"a":"1"},"fr":{"a":"3"}},"42":{"fr":{"b":"1"}},"meta":{"en":"untouched","it":"untouched"}}`
	if diff := cmp.Diff(want, compact(t, got)); diff != "" {
		t.Fatalf("FilterLanguages mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterLanguagesEmptyAllowList(t *testing.T) {
	store := parse(t, `{"base":{"en":"x"},"3":{"de":"y"}}`)
	got, _ := FilterLanguages(store, nil)
	if want := `{"base":{},"3":{}}`; compact(t, got) != want {
		t.Fatalf("FilterLanguages = %s, want %s", compact(t, got), want)
	}
}

func TestFilterLanguagesTypeMismatch(t *testing.T) {
	store := parse(t, `{"base":"oops","5":[1],"7":{"en":"ok","de":"no"}}`)

	got, errs := FilterLanguages(store, []string{"en"})
	if len(errs) != 2 {
		t.Fatalf("mismatches = %d, want 2", len(errs))
	}
	if errs[0].Partition != "base" || errs[0].Kind != tree.KindLeaf {
		t.Fatalf("first mismatch = %+v", errs[0])
	}
	if errs[1].Partition != "5" || errs[1].Kind != tree.KindList {
		t.Fatalf("second mismatch = %+v", errs[1])
	}

	var tm *TypeMismatchError
	if !errors.As(error(errs[0]), &tm) {
		t.Fatal("TypeMismatchError does not satisfy errors.As")
	}

	if want := `{"base":"oops","5":[1],"7":{"en":"ok"}}`; compact(t, got) != want {
		t.Fatalf("FilterLanguages = %s, want %s", compact(t, got), want)
	}
}

func TestFilterLanguagesIdempotentAndPure(t *testing.T) {
	store := parse(t, `{"base":{"en":"x","fr":"y"},"1":{"fr":"z"},"timestamp":1}`)
	before := compact(t, store)

	once, _ := FilterLanguages(store, []string{"fr"})
	twice, _ := FilterLanguages(once, []string{"fr"})

	if compact(t, once) != compact(t, twice) {
		t.Fatalf("filter not idempotent: %s vs %s", compact(t, once), compact(t, twice))
	}
	if compact(t, store) != before {
		t.Fatal("FilterLanguages mutated its input")
	}
}

func TestFilterLanguagesNonMapping(t *testing.T) {
	got, errs := FilterLanguages(tree.String("x"), []string{"en"})
	if errs != nil || !tree.Equal(got, tree.String("x")) {
		t.Fatalf("FilterLanguages(leaf) = %v, %v", got, errs)
	}
}

func TestLanguages(t *testing.T) {
	store := parse(t, `{"base":{"en":{},"fr":{}},"2":{"de":{},"en":{}},"timestamp":1,"meta":{"xx":1}}`)
	if diff := cmp.Diff([]string{"en", "fr", "de"}, Languages(store)); diff != "" {
		t.Fatalf("Languages mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckLanguageCodes(t *testing.T) {
	bad := CheckLanguageCodes([]string{"en", "pt-BR", "fr", "!!", "en US"})
	if diff := cmp.Diff([]string{"!!", "en US"}, bad); diff != "" {
		t.Fatalf("CheckLanguageCodes mismatch (-want +got):\n%s", diff)
	}
}
