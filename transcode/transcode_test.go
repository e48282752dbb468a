package transcode

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

func TestToNamedKeyHoistsSpecific(t *testing.T) {
	in := parse(t, `{"base":{"en":[{"key":"a","value":"1"}]},"specific":{"app1":{"en":[{"key":"b","value":"2"}]}}}`)

	got, err := ToNamedKey(in)
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	want := `{"base":{"en":{"a":"1"}},"app1":{"en":{"b":"2"}}}`
	if compact(t, got) != want {
		t.Fatalf("ToNamedKey = %s, want %s", compact(t, got), want)
	}
}

func TestToNamedKeyMissingPartitions(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		partition string
	}{
		{"no base", `{"specific":{}}`, "base"},
		{"no specific", `{"base":{}}`, "specific"},
		{"not a mapping", `[]`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToNamedKey(parse(t, tc.in))
			if err == nil {
				t.Fatalf("ToNamedKey succeeded with %s", compact(t, got))
			}
			if got != nil {
				t.Fatal("partial output returned with error")
			}
			var mi *MalformedInputError
			if !errors.As(err, &mi) {
				t.Fatalf("error %T is not a MalformedInputError", err)
			}
			if mi.Partition != tc.partition {
				t.Fatalf("Partition = %q, want %q", mi.Partition, tc.partition)
			}
		})
	}
}

func TestToNamedKeyTolerance(t *testing.T) {
	in := parse(t, `{
		"base":{
			"en":[
				{"key":"a","value":"1"},
				{"key":"a","value":"2"},
				{"key":5,"value":"x"},
				{"value":"no key"},
				{"key":"nv"},
				"junk",
				{"key":"b","value":{"nested":true}}
			],
			"fr":"opaque"
		},
		"specific":{"9":"not a mapping"},
		"timestamp":123
	}`)

	got, err := ToNamedKey(in)
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	want := `{"base":{"en":{"a":"2","5":"x","b":{"nested":true}},"fr":"opaque"},"9":{}}`
	if diff := cmp.Diff(want, compact(t, got)); diff != "" {
		t.Fatalf("ToNamedKey mismatch (-want +got):\n%s", diff)
	}
}

func TestToNamedKeyScalarRecordKeys(t *testing.T) {
	in := parse(t, `{"base":{"en":[
		{"key":5,"value":"five"},
		{"key":1.5,"value":"x"},
		{"key":true,"value":"yes"},
		{"key":null,"value":"nil"},
		{"key":["a"],"value":"skipped"},
		{"key":{"k":1},"value":"skipped"}
	]},"specific":{}}`)

	got, err := ToNamedKey(in)
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	want := `{"base":{"en":{"5":"five","1.5":"x","true":"yes","null":"nil"}}}`
	if diff := cmp.Diff(want, compact(t, got)); diff != "" {
		t.Fatalf("ToNamedKey mismatch (-want +got):\n%s", diff)
	}
}

func TestToNamedKeyReservedSpecificChildren(t *testing.T) {
	in := parse(t, `{
		"base":{"en":[{"key":"a","value":"base"}]},
		"specific":{
			"3":{"en":[{"key":"a","value":"three"}]},
			"base":{"en":[{"key":"a","value":"override"}]},
			"timestamp":{}
		}
	}`)

	got, err := ToNamedKey(in)
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	want := `{"base":{"en":{"a":"override"}},"3":{"en":{"a":"three"}},"timestamp":{}}`
	if diff := cmp.Diff(want, compact(t, got)); diff != "" {
		t.Fatalf("ToNamedKey mismatch (-want +got):\n%s", diff)
	}
}

func TestToNamedKeyNonMappingSpecific(t *testing.T) {
	got, err := ToNamedKey(parse(t, `{"base":{"en":[]},"specific":null}`))
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	if want := `{"base":{"en":{}}}`; compact(t, got) != want {
		t.Fatalf("ToNamedKey = %s, want %s", compact(t, got), want)
	}
}

func TestToKeyValue(t *testing.T) {
	in := parse(t, `{"timestamp":99,"base":{"en":{"a":"1","b":"2"}},"7":{"de":{"c":"3"}},"extra":"leaf"}`)

	got := ToKeyValue(in)
	want := `{"specific":{"7":{"de":[{"key":"c","value":"3"}]},"extra":{}},"base":{"en":[{"key":"a","value":"1"},{"key":"b","value":"2"}]}}`
	if diff := cmp.Diff(want, compact(t, got)); diff != "" {
		t.Fatalf("ToKeyValue mismatch (-want +got):\n%s", diff)
	}
}

func TestToKeyValueMissingBase(t *testing.T) {
	got := ToKeyValue(parse(t, `{"3":{"en":{}}}`))
	if want := `{"specific":{"3":{"en":[]}},"base":{}}`; compact(t, got) != want {
		t.Fatalf("ToKeyValue = %s, want %s", compact(t, got), want)
	}
	if got := ToKeyValue(tree.String("x")); compact(t, got) != `{"specific":{},"base":{}}` {
		t.Fatalf("ToKeyValue(leaf) = %s", compact(t, got))
	}
}

func TestRoundTrip(t *testing.T) {
	stores := []string{
		`{"base":{"en":[{"key":"a","value":"1"},{"key":"b","value":"2"}],"fr":[]},"specific":{"12":{"en":[{"key":"c","value":"3"}]}}}`,
		`{"specific":{},"base":{}}`,
		`{"base":{"en":[{"key":"x","value":null}]},"specific":{"1":{},"2":{"it":[{"key":"y","value":"z"}]}}}`,
	}
	for _, s := range stores {
		in := parse(t, s)
		named, err := ToNamedKey(in)
		if err != nil {
			t.Fatalf("ToNamedKey(%s): %v", s, err)
		}
		back := ToKeyValue(named)
		if !tree.Equal(in, back) {
			t.Errorf("round trip changed store:\n in: %s\nout: %s", s, compact(t, back))
		}
	}
}

func TestNamedRoundTrip(t *testing.T) {
	named := parse(t, `{"base":{"en":{"a":"1"}},"4":{"de":{"b":"2"}}}`)
	back, err := ToNamedKey(ToKeyValue(named))
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	if !tree.Equal(named, back) {
		t.Fatalf("named round trip = %s", compact(t, back))
	}
}

func TestTranscodeDoesNotMutateInput(t *testing.T) {
	in := parse(t, `{"base":{"en":[{"key":"a","value":{"deep":"1"}}]},"specific":{}}`)
	before := compact(t, in)

	named, err := ToNamedKey(in)
	if err != nil {
		t.Fatalf("ToNamedKey: %v", err)
	}
	base, _ := named.Get("base")
	en, _ := base.(*tree.Mapping).Get("en")
	a, _ := en.(*tree.Mapping).Get("a")
	a.(*tree.Mapping).Set("deep", tree.String("changed"))

	if compact(t, in) != before {
		t.Fatal("mutating the result changed the input")
	}
}
