package record

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecode_KeepsLargeIDs(t *testing.T) {
	r, err := Decode([]byte(`{"_id": 9007199254740993, "sec_c/cd_age": "31"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	id, ok := r.ID()
	if !ok || id != 9007199254740993 {
		t.Errorf("got id %d ok=%v, want 9007199254740993", id, ok)
	}
	if age, ok := r.Int(KeyAge); !ok || age != 31 {
		t.Errorf("got age %d ok=%v, want 31", age, ok)
	}
}

func TestDecodeBatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `[{"_id": 1}, {"_id": 2}]`, 2},
		{"envelope", `{"results": [{"_id": 1}], "next": null}`, 1},
		{"empty array", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := DecodeBatch(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("DecodeBatch: %v", err)
			}
			if len(recs) != tt.want {
				t.Errorf("got %d records, want %d", len(recs), tt.want)
			}
		})
	}

	if _, err := DecodeBatch(strings.NewReader(`{"results": 5}`)); err == nil {
		t.Error("expected an error for a malformed envelope")
	}
}

func TestAccessors(t *testing.T) {
	r := Record{
		string(KeyClientName): "  Amina  ",
		string(KeyAge):        json.Number("40.0"),
		string(KeyDependents): "2.5",
		string(KeyTags):       []any{"a", "b"},
		string(KeyNotes):      nil,
	}

	if got := r.String(KeyClientName); got != "Amina" {
		t.Errorf("String: got %q", got)
	}
	if got := r.StringOr(KeyRegion, "n/a"); got != "n/a" {
		t.Errorf("StringOr: got %q", got)
	}
	if got, ok := r.Int(KeyAge); !ok || got != 40 {
		t.Errorf("Int(40.0): got %d ok=%v", got, ok)
	}
	if _, ok := r.Int(KeyDependents); ok {
		t.Error("Int(2.5) should not be integral")
	}
	if got := r.String(KeyTags); got != `["a","b"]` {
		t.Errorf("String(list): got %q", got)
	}
	if r.Has(KeyNotes) {
		t.Error("Has should be false for null")
	}
	if got := r.JSON(KeyNotes, "[]"); got != "[]" {
		t.Errorf("JSON default: got %q", got)
	}
}

func TestResponseKeysAndUnknown(t *testing.T) {
	r := Record{
		string(KeyID):           1,
		string(KeyGender):       "male",
		string(KeyCountry):      "Kenya",
		"group_mx5fl16/extra":   "x",
		"_attachments":          []any{},
		"legacy_question":       "y",
		string(KeySurveyorName): "Jane",
	}

	keys := r.ResponseKeys()
	want := []Key{"group_mx5fl16/extra", KeyCountry, KeySurveyorName, KeyGender}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("ResponseKeys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if got := r.Unknown(); len(got) != 1 || got[0] != "legacy_question" {
		t.Errorf("Unknown: got %v", got)
	}
}

func TestCatalogueIsKnown(t *testing.T) {
	for _, k := range Catalogue() {
		if !Known(k) {
			t.Errorf("%s not known", k)
		}
	}
	if Known("sec_z/anything") {
		t.Error("uncatalogued key reported known")
	}
}
