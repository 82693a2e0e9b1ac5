package quality

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func validRecord() record.Record {
	return record.Record{
		string(record.KeyID):                int64(501),
		string(record.KeyFormhubUUID):       "7f0c7b2e1d4a4c559f0e2b8d1f7c9a10",
		string(record.KeyStartTime):         "2024-02-10T09:00:00.000+03:00",
		string(record.KeyEndTime):           "2024-02-10T09:45:00.000+03:00",
		string(record.KeySurveyDate):        "2024-02-10",
		string(record.KeySubmissionTime):    "2024-02-10T07:00:00",
		string(record.KeyUniqueID):          "U-501",
		string(record.KeyCountry):           "Kenya",
		string(record.KeyRegion):            "Mombasa",
		string(record.KeyLocation):          "Likoni",
		string(record.KeySurveyorName):      "Amina",
		string(record.KeyCohort):            "C2",
		string(record.KeyProgram):           "Agri",
		string(record.KeyClientManifestID):  "M-501",
		string(record.KeyClientName):        "Juma",
		string(record.KeyPhone):             "0712 345 678",
		string(record.KeyPhoneType):         "Feature Phone",
		string(record.KeyGender):            "Male",
		string(record.KeyAge):               "41",
		string(record.KeyNationality):       "Kenyan",
		string(record.KeyDependents):        "3",
		string(record.KeyBusinessStatus):    "existing_business",
		string(record.KeyBusinessOperating): "yes",
		string(record.KeyGeolocation):       []any{-4.05, 39.66},
	}
}

func issueTypes(issues []model.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = string(is.Type)
	}
	sort.Strings(out)
	return out
}

func equalTypes(got []string, want ...string) bool {
	sort.Strings(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestValidRecordHasNoIssues(t *testing.T) {
	report, err := NewValidator(testNow).CheckBatch(context.Background(), []record.Record{validRecord()})
	if err != nil {
		t.Fatalf("CheckBatch: %v", err)
	}
	if report.Summary.TotalIssues != 0 {
		t.Errorf("got issues %v, want none", issueTypes(report.Issues))
	}
}

func TestSurveys_TimeRangeAndFutureDate(t *testing.T) {
	r := validRecord()
	r[string(record.KeyStartTime)] = "2024-02-10T11:00:00.000+03:00"
	r[string(record.KeyEndTime)] = "2024-02-10T10:00:00.000+03:00"
	r[string(record.KeySurveyDate)] = "2024-04-01"

	got := issueTypes(NewValidator(testNow).Surveys([]record.Record{r}))
	if !equalTypes(got, string(InvalidTimeRange), string(FutureSurveyDate)) {
		t.Errorf("got %v, want [future_survey_date invalid_time_range]", got)
	}
}

func TestClients_AgeAndGender(t *testing.T) {
	r := validRecord()
	r[string(record.KeyAge)] = int64(-5)
	r[string(record.KeyGender)] = "Unknown"

	issues := NewValidator(testNow).Clients([]record.Record{r})
	got := issueTypes(issues)
	if !equalTypes(got, string(InvalidAge), string(InvalidGender)) {
		t.Errorf("got %v, want [invalid_age invalid_gender]", got)
	}
	for _, is := range issues {
		if is.EntityID != "M-501" {
			t.Errorf("got entity id %q, want M-501", is.EntityID)
		}
		if is.EntityType != model.EntityClient {
			t.Errorf("got entity type %q, want client", is.EntityType)
		}
	}
}

func TestClients_MissingFieldsDoNotSuppressSiblings(t *testing.T) {
	r := validRecord()
	delete(r, string(record.KeyClientName))
	delete(r, string(record.KeyNationality))
	r[string(record.KeyAge)] = "abc"
	r[string(record.KeyPhone)] = "12"

	got := issueTypes(NewValidator(testNow).Clients([]record.Record{r}))
	want := []string{string(MissingName), string(MissingNationality), string(InvalidAge), string(InvalidPhoneNumber)}
	if !equalTypes(got, want...) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSurveys_BusinessOperatingOnlyYesOrNo(t *testing.T) {
	tests := []struct {
		raw  any
		want []string
	}{
		{"yes", nil},
		{"No", nil},
		{"unknown", []string{string(InvalidBusinessOperating)}},
		{"maybe", []string{string(InvalidBusinessOperating)}},
		{"", []string{string(InvalidBusinessOperating)}},
	}
	for _, tt := range tests {
		r := validRecord()
		r[string(record.KeyBusinessOperating)] = tt.raw

		got := issueTypes(NewValidator(testNow).Surveys([]record.Record{r}))
		if !equalTypes(got, tt.want...) {
			t.Errorf("operating %q: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSurveys_MissingReferences(t *testing.T) {
	r := validRecord()
	for _, k := range []record.Key{
		record.KeyCountry, record.KeyRegion, record.KeyLocation,
		record.KeySurveyorName, record.KeyClientManifestID,
	} {
		delete(r, string(k))
	}

	got := issueTypes(NewValidator(testNow).Surveys([]record.Record{r}))
	want := []string{string(MissingLocationID), string(MissingSurveyorID), string(MissingClientIDManifest)}
	if !equalTypes(got, want...) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSurveys_Coordinates(t *testing.T) {
	tests := []struct {
		name string
		geo  any
		want []string
	}{
		{"in range", []any{-1.29, 36.82}, nil},
		{"latitude out of range", []any{91.0, 36.82}, []string{string(InvalidLatitude)}},
		{"longitude out of range", []any{-1.29, -181.0}, []string{string(InvalidLongitude)}},
		{"missing pair", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			r[string(record.KeyGeolocation)] = tt.geo
			got := issueTypes(NewValidator(testNow).Surveys([]record.Record{r}))
			if !equalTypes(got, tt.want...) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocations_EvaluatedOncePerKey(t *testing.T) {
	a := validRecord()
	delete(a, string(record.KeyRegion))
	b := validRecord()
	b[string(record.KeyID)] = int64(502)
	delete(b, string(record.KeyRegion))

	issues := NewValidator(testNow).Locations([]record.Record{a, b})
	if len(issues) != 1 || issues[0].Type != MissingRegion {
		t.Errorf("got %v, want one missing_region", issueTypes(issues))
	}
}

func TestEvaluate_PanickingRuleBecomesProcessingError(t *testing.T) {
	rules := []rule[model.Surveyor]{
		{MissingCohort, func(s subject[model.Surveyor]) (any, bool) {
			panic(errors.New("boom"))
		}},
		{MissingProgram, blank(func(v model.Surveyor) string { return v.Program })},
	}
	s := subject[model.Surveyor]{v: model.Surveyor{Name: "Amina"}, now: testNow}

	issues := evaluate(model.EntitySurveyor, "Amina", s, rules)
	got := issueTypes(issues)
	if !equalTypes(got, string(ProcessingError), string(MissingProgram)) {
		t.Fatalf("got %v, want processing_error and missing_program", got)
	}
	for _, is := range issues {
		if is.Type == ProcessingError && is.Details["error"] == nil {
			t.Error("processing_error carries no error detail")
		}
	}
}

func TestGuardRecord_RecoversPerRecord(t *testing.T) {
	issues := guardRecord(model.EntitySurvey, "9", testNow, func() []model.Issue {
		panic("mapping exploded")
	})
	if len(issues) != 1 || issues[0].Type != ProcessingError || issues[0].EntityID != "9" {
		t.Errorf("got %+v, want one processing_error for 9", issues)
	}
}

func TestSummarize(t *testing.T) {
	issues := []model.Issue{
		{EntityType: model.EntityClient, Type: InvalidAge},
		{EntityType: model.EntityClient, Type: InvalidGender},
		{EntityType: model.EntitySurvey, Type: InvalidAge},
	}
	s := Summarize(issues)
	if s.TotalIssues != 3 {
		t.Errorf("got total %d, want 3", s.TotalIssues)
	}
	if s.IssuesByType["invalid_age"] != 2 {
		t.Errorf("got %d invalid_age, want 2", s.IssuesByType["invalid_age"])
	}
	if s.IssuesByEntity["client"] != 2 {
		t.Errorf("got %d client issues, want 2", s.IssuesByEntity["client"])
	}
}

func TestCheckBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewValidator(testNow).CheckBatch(ctx, []record.Record{validRecord()}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
