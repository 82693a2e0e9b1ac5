package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func rawRecord() record.Record {
	return record.Record{
		string(record.KeyID):                json.Number("7001"),
		string(record.KeyStartTime):         "2024-02-10T09:00:00.000+03:00",
		string(record.KeyEndTime):           "2024-02-10T09:45:00.000+03:00",
		string(record.KeySurveyDate):        "2024-02-10",
		string(record.KeySubmissionTime):    "2024-02-10T07:00:00",
		string(record.KeyUniqueID):          "U-7001",
		string(record.KeyCountry):           "Uganda",
		string(record.KeyRegion):            "Central",
		string(record.KeyLocation):          "Kampala",
		string(record.KeySurveyorName):      "Okello",
		string(record.KeyClientManifestID):  "M-7001",
		string(record.KeyGender):            "Femme",
		string(record.KeyPhoneType):         "Smart Phone",
		string(record.KeyAge):               json.Number("27"),
		string(record.KeyBusinessStatus):    "New Business",
		string(record.KeyBusinessOperating): "Oui",
		string(record.KeyGeolocation):       []any{json.Number("0.31"), json.Number("32.58")},
	}
}

func TestFoldToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Smart Phone ", "smart_phone"},
		{"Non-Binary", "non_binary"},
		{"Féminin", "feminin"},
		{"don't know", "dont_know"},
		{"new / business", "new_business"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FoldToken(tt.in); got != tt.want {
			t.Errorf("FoldToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		raw     string
		want    model.Gender
		wantErr bool
	}{
		{"Male", model.GenderMale, false},
		{"F", model.GenderFemale, false},
		{"femme", model.GenderFemale, false},
		{"", model.GenderUnknown, false},
		{"Unknown", model.GenderUnknown, true},
		{"robot", model.GenderUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseGender(tt.raw)
		if got != tt.want {
			t.Errorf("ParseGender(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGender(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		var enumErr *EnumError
		if err != nil && !errors.As(err, &enumErr) {
			t.Errorf("ParseGender(%q) err is %T, want *EnumError", tt.raw, err)
		}
	}
}

func TestEnumClosure(t *testing.T) {
	inputs := []string{"", "yes", "No", "garbage", "существующий", "1", "closed", "feature"}
	for _, in := range inputs {
		if s, _ := ParseBusinessStatus(in); s.String() == "" {
			t.Errorf("business status %q mapped outside the closed set", in)
		}
		if o, _ := ParseOperating(in); o.String() == "" {
			t.Errorf("operating %q mapped outside the closed set", in)
		}
		if p, _ := ParsePhoneType(in); p.String() == "" {
			t.Errorf("phone type %q mapped outside the closed set", in)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"2024-02-10T09:00:00.000+03:00", "2024-02-10 06:00:00", false},
		{"2024-02-10T07:00:00", "2024-02-10 07:00:00", false},
		{"2024-02-10 07:00:00.75", "2024-02-10 07:00:00", false},
		{"2024-02-10T07:00:00Z", "2024-02-10 07:00:00", false},
		{"", "", false},
		{"yesterday", "", true},
	}
	for _, tt := range tests {
		ts, err := ParseTimestamp(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got := FormatTimestamp(ts); got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-10T23:30:00-02:00")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := FormatDate(d); got != "2024-02-11" {
		t.Errorf("got %q, want 2024-02-11", got)
	}
	if _, err := ParseDate("10/02/2024"); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}

func TestKeys_Deterministic(t *testing.T) {
	a := rawRecord()
	b := rawRecord()
	if LocationKey(a) != LocationKey(b) {
		t.Error("location key differs for identical records")
	}

	b[string(record.KeyLocation)] = "Entebbe"
	if LocationKey(a) == LocationKey(b) {
		t.Error("location key ignores specific location")
	}

	if JoinKey("a|b", "c") == JoinKey("a", "b|c") {
		t.Error("JoinKey collides on embedded delimiters")
	}
	if ResponseKey(1, "u", "q") != ResponseKey(1, "u", "q") {
		t.Error("response key not deterministic")
	}
}

func TestMapClient(t *testing.T) {
	c, diags, ok := New(testNow).MapClient(rawRecord())
	if !ok {
		t.Fatal("client not produced")
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics %v", diags)
	}
	if c.Gender != model.GenderFemale || c.PhoneType != model.PhoneTypeSmart {
		t.Errorf("got gender=%v phone_type=%v", c.Gender, c.PhoneType)
	}
	if !c.Age.Valid || c.Age.Int32 != 27 {
		t.Errorf("got age %+v, want 27", c.Age)
	}
	if !c.LastUpdated.Equal(testNow) {
		t.Errorf("got last_updated %v, want %v", c.LastUpdated, testNow)
	}
}

func TestMapClient_DegradesWithDiagnostics(t *testing.T) {
	r := rawRecord()
	r[string(record.KeyGender)] = "robot"
	r[string(record.KeyAge)] = "twenty"

	c, diags, ok := New(testNow).MapClient(r)
	if !ok {
		t.Fatal("client not produced")
	}
	if c.Gender != model.GenderUnknown || c.Age.Valid {
		t.Errorf("got gender=%v age=%+v, want unknown and absent", c.Gender, c.Age)
	}
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(diags), diags)
	}
	if diags[0].Field != record.KeyGender || diags[0].RecordID != "7001" {
		t.Errorf("unexpected diagnostic %+v", diags[0])
	}
}

func TestMapSurvey(t *testing.T) {
	s, diags, ok := New(testNow).MapSurvey(rawRecord())
	if !ok {
		t.Fatal("survey not produced")
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics %v", diags)
	}
	if s.ID != 7001 {
		t.Errorf("got id %d, want 7001", s.ID)
	}
	if s.BusinessStatus != model.BusinessNew || s.BusinessOperating != model.OperatingYes {
		t.Errorf("got status=%v operating=%v", s.BusinessStatus, s.BusinessOperating)
	}
	if s.Geolocation != "0.31,32.58" || !s.Latitude.Valid {
		t.Errorf("got geolocation %q lat %+v", s.Geolocation, s.Latitude)
	}
	if s.Tags != "[]" || s.ValidationStatus != "{}" {
		t.Errorf("got tags=%q validation=%q", s.Tags, s.ValidationStatus)
	}
	if got := FormatTimestamp(s.SubmissionTime); got != "2024-02-10 07:00:00" {
		t.Errorf("got submission %q", got)
	}
}

func TestMapSurvey_UnparseableTimestamp(t *testing.T) {
	r := rawRecord()
	r[string(record.KeyEndTime)] = "half past nine"

	s, diags, ok := New(testNow).MapSurvey(r)
	if !ok {
		t.Fatal("survey not produced")
	}
	if s.EndTime.Valid {
		t.Error("end time should be absent")
	}
	if len(diags) != 1 || diags[0].Field != record.KeyEndTime {
		t.Errorf("got diagnostics %v, want one for end time", diags)
	}
}

func TestMapSurvey_AbsentFragmentsLeaveKeysEmpty(t *testing.T) {
	r := rawRecord()
	for _, k := range []record.Key{
		record.KeyCountry, record.KeyRegion, record.KeyLocation,
		record.KeySurveyorName, record.KeyClientManifestID,
	} {
		delete(r, string(k))
	}

	s, _, ok := New(testNow).MapSurvey(r)
	if !ok {
		t.Fatal("survey not produced")
	}
	if s.LocationID != "" || s.SurveyorID != "" || s.ClientID != "" {
		t.Errorf("got location=%q surveyor=%q client=%q, want all empty", s.LocationID, s.SurveyorID, s.ClientID)
	}

	r[string(record.KeyRegion)] = "Central"
	s, _, _ = New(testNow).MapSurvey(r)
	if want := JoinKey("", "Central", ""); s.LocationID != want {
		t.Errorf("got location %q, want %q", s.LocationID, want)
	}
}

func TestMapLocation_AbsentWhenBlank(t *testing.T) {
	if _, ok := New(testNow).MapLocation(record.Record{}); ok {
		t.Error("blank record produced a location")
	}
}

func TestMapResponses(t *testing.T) {
	r := rawRecord()
	r["sec_c/cd_notes"] = nil

	out := New(testNow).MapResponses(r)
	byKey := map[string]model.Response{}
	for _, resp := range out {
		byKey[resp.QuestionKey] = resp
	}
	if _, ok := byKey["sec_c/cd_notes"]; ok {
		t.Error("null answer produced a response")
	}
	age, ok := byKey[string(record.KeyAge)]
	if !ok {
		t.Fatal("age response missing")
	}
	if age.Value != "27" || age.Type != model.ResponseNumber || age.SurveyID != 7001 {
		t.Errorf("got %+v", age)
	}
	if _, ok := byKey[string(record.KeyStartTime)]; ok {
		t.Error("metadata key became a response")
	}
}

func TestInferResponseType(t *testing.T) {
	tests := []struct {
		v    any
		want model.ResponseType
	}{
		{"hello", model.ResponseText},
		{"42", model.ResponseNumber},
		{json.Number("4.5"), model.ResponseNumber},
		{"Yes", model.ResponseChoice},
		{true, model.ResponseChoice},
		{"2024-02-10", model.ResponseDate},
		{[]any{"a", "b"}, model.ResponseMultipleChoice},
	}
	for _, tt := range tests {
		if got := InferResponseType(tt.v); got != tt.want {
			t.Errorf("InferResponseType(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestMapBatch(t *testing.T) {
	a := rawRecord()
	b := rawRecord()
	b[string(record.KeyID)] = json.Number("7002")
	b[string(record.KeyGender)] = "robot"

	res, err := New(testNow).MapBatch(context.Background(), []record.Record{a, b})
	if err != nil {
		t.Fatalf("MapBatch: %v", err)
	}
	if len(res.Batch.Locations) != 2 || len(res.Batch.Surveys) != 2 || len(res.Batch.Clients) != 2 {
		t.Errorf("got %d locations %d surveys %d clients",
			len(res.Batch.Locations), len(res.Batch.Surveys), len(res.Batch.Clients))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].RecordID != "7002" {
		t.Errorf("got diagnostics %v", res.Diagnostics)
	}
}
