package store

import (
	"encoding/json"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// Table names.
const (
	LocationsTable = "locations"
	SurveyorsTable = "surveyors"
	ClientsTable   = "clients"
	SurveysTable   = "surveys"
	ResponsesTable = "survey_responses"
	IssuesTable    = "data_quality_issues"
)

var (
	Locations = &Table{
		Name:   LocationsTable,
		Entity: model.EntityLocation,
		Mode:   InsertOnce,
		Key:    []string{"location_id"},
		Columns: []Column{
			{"location_id", TypeText},
			{"country", TypeText},
			{"region", TypeText},
			{"specific_location", TypeText},
		},
	}

	Surveyors = &Table{
		Name:   SurveyorsTable,
		Entity: model.EntitySurveyor,
		Mode:   InsertOnce,
		Key:    []string{"name"},
		Columns: []Column{
			{"name", TypeText},
			{"cohort", TypeText},
			{"program", TypeText},
		},
	}

	Clients = &Table{
		Name:   ClientsTable,
		Entity: model.EntityClient,
		Mode:   Mutable,
		Key:    []string{"client_id_manifest"},
		Columns: []Column{
			{"client_id_manifest", TypeText},
			{"unique_id", TypeText},
			{"name", TypeText},
			{"phone", TypeText},
			{"alternate_phone", TypeText},
			{"phone_type", TypeText},
			{"gender", TypeText},
			{"age", TypeInteger},
			{"nationality", TypeText},
			{"strata", TypeText},
			{"disability", TypeText},
			{"education", TypeText},
			{"status", TypeText},
			{"sole_income_earner", TypeText},
			{"dependents", TypeInteger},
			{"last_updated", TypeTimestamp},
			{"version", TypeBigInt},
		},
	}

	Surveys = &Table{
		Name:      SurveysTable,
		Entity:    model.EntitySurvey,
		Mode:      Mutable,
		Key:       []string{"_id"},
		Immutable: []string{"submission_time", "client_id_manifest"},
		Columns: []Column{
			{"_id", TypeBigInt},
			{"formhub_uuid", TypeText},
			{"start_time", TypeTimestamp},
			{"end_time", TypeTimestamp},
			{"survey_date", TypeDate},
			{"instance_id", TypeText},
			{"xform_id_string", TypeText},
			{"uuid", TypeText},
			{"submission_time", TypeTimestamp},
			{"form_version", TypeText},
			{"unique_id", TypeText},
			{"location_id", TypeText},
			{"surveyor_id", TypeText},
			{"client_id_manifest", TypeText},
			{"business_status", TypeText},
			{"business_operating", TypeText},
			{"geolocation", TypeText},
			{"latitude", TypeDouble},
			{"longitude", TypeDouble},
			{"tags", TypeText},
			{"notes", TypeText},
			{"validation_status", TypeText},
			{"submitted_by", TypeText},
			{"last_updated", TypeTimestamp},
			{"version", TypeBigInt},
		},
		Indexes: []Index{
			{Name: "idx_surveys_submission_time", Columns: []string{"submission_time"}},
			{Name: "idx_surveys_client", Columns: []string{"client_id_manifest"}},
		},
	}

	Responses = &Table{
		Name:   ResponsesTable,
		Entity: model.EntityResponse,
		Mode:   Mutable,
		Key:    []string{"_id", "unique_id", "question_key"},
		Columns: []Column{
			{"_id", TypeBigInt},
			{"unique_id", TypeText},
			{"question_key", TypeText},
			{"response", TypeText},
			{"response_type", TypeText},
			{"last_updated", TypeTimestamp},
			{"version", TypeBigInt},
		},
	}

	Issues = &Table{
		Name: IssuesTable,
		Mode: AppendOnly,
		Key:  []string{"id"},
		Columns: []Column{
			{"id", TypeText},
			{"entity_type", TypeText},
			{"issue_type", TypeText},
			{"entity_id", TypeText},
			{"details", TypeText},
			{"created_at", TypeTimestamp},
		},
		Indexes: []Index{
			{Name: "idx_issues_entity_issue", Columns: []string{"entity_type", "issue_type"}},
			{Name: "idx_issues_created_at", Columns: []string{"created_at"}},
		},
	}
)

func init() {
	for _, t := range []*Table{Locations, Surveyors, Clients, Surveys, Responses, Issues} {
		Register(t)
	}
}

// LocationRow orders l by Locations.Columns.
func LocationRow(l model.Location) []any {
	return []any{l.ID, l.Country, l.Region, l.SpecificLocation}
}

// SurveyorRow orders s by Surveyors.Columns.
func SurveyorRow(s model.Surveyor) []any {
	return []any{s.Name, s.Cohort, s.Program}
}

// ClientRow orders c by Clients.Columns.
func ClientRow(c model.Client) []any {
	return []any{
		c.ManifestID, c.UniqueID, c.Name, c.Phone, c.AlternatePhone,
		c.PhoneType.String(), c.Gender.String(), c.Age, c.Nationality, c.Strata,
		c.Disability.String(), c.Education, c.Status, c.SoleIncomeEarner.String(),
		c.Dependents, c.LastUpdated, c.Version,
	}
}

// SurveyRow orders s by Surveys.Columns.
func SurveyRow(s model.Survey) []any {
	return []any{
		s.ID, s.FormhubUUID, s.StartTime, s.EndTime, s.SurveyDate,
		s.InstanceID, s.XFormID, s.UUID, s.SubmissionTime, s.FormVersion,
		s.UniqueID, s.LocationID, s.SurveyorID, s.ClientID,
		s.BusinessStatus.String(), s.BusinessOperating.String(),
		s.Geolocation, s.Latitude, s.Longitude,
		s.Tags, s.Notes, s.ValidationStatus, s.SubmittedBy,
		s.LastUpdated, s.Version,
	}
}

// ResponseRow orders r by Responses.Columns.
func ResponseRow(r model.Response) []any {
	return []any{r.SurveyID, r.UniqueID, r.QuestionKey, r.Value, r.Type.String(), r.LastUpdated, r.Version}
}

// IssueRow orders i by Issues.Columns. The details payload is stored as
// JSON text.
func IssueRow(i model.Issue) ([]any, error) {
	details, err := json.Marshal(i.DetailsPayload())
	if err != nil {
		return nil, err
	}
	return []any{i.ID, string(i.EntityType), string(i.Type), i.EntityID, string(details), i.CreatedAt}, nil
}
