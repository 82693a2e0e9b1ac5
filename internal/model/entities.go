// Package model holds the normalized entities written by the sync engine and
// the issue records produced by the validator.
//
// Nullable scalars use pgtype so the same structs bind directly to pgx and,
// through driver.Valuer, to database/sql drivers.
package model

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// EntityType names an entity category.
type EntityType string

const (
	EntitySurvey   EntityType = "survey"
	EntityLocation EntityType = "location"
	EntityClient   EntityType = "client"
	EntitySurveyor EntityType = "surveyor"
	EntityResponse EntityType = "response"
)

// EntityTypes lists every category in dependency order.
var EntityTypes = []EntityType{EntityLocation, EntitySurveyor, EntityClient, EntitySurvey, EntityResponse}

// Location is where the surveyed business operates. Insert-once.
type Location struct {
	ID               string `json:"location_id"`
	Country          string `json:"country"`
	Region           string `json:"region"`
	SpecificLocation string `json:"specific_location"`
}

// Surveyor is the field agent who captured a submission. Insert-once.
type Surveyor struct {
	Name    string `json:"name"`
	Cohort  string `json:"cohort"`
	Program string `json:"program"`
}

// Client is the person being surveyed, keyed by manifest id.
type Client struct {
	ManifestID       string      `json:"client_id_manifest"`
	UniqueID         string      `json:"unique_id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone"`
	AlternatePhone   string      `json:"alternate_phone"`
	PhoneType        PhoneType   `json:"phone_type"`
	Gender           Gender      `json:"gender"`
	Age              pgtype.Int4 `json:"age"`
	Nationality      string      `json:"nationality"`
	Strata           string      `json:"strata"`
	Disability       YesNo       `json:"disability"`
	Education        string      `json:"education"`
	Status           string      `json:"status"`
	SoleIncomeEarner YesNo       `json:"sole_income_earner"`
	Dependents       pgtype.Int4 `json:"dependents"`
	LastUpdated      time.Time   `json:"last_updated"`
	Version          int64       `json:"version"`
}

// Survey is one submission's header row.
type Survey struct {
	ID                int64              `json:"_id"`
	FormhubUUID       string             `json:"formhub_uuid"`
	StartTime         pgtype.Timestamptz `json:"start_time"`
	EndTime           pgtype.Timestamptz `json:"end_time"`
	SurveyDate        pgtype.Date        `json:"survey_date"`
	InstanceID        string             `json:"instance_id"`
	XFormID           string             `json:"xform_id_string"`
	UUID              string             `json:"uuid"`
	SubmissionTime    pgtype.Timestamptz `json:"submission_time"`
	FormVersion       string             `json:"form_version"`
	UniqueID          string             `json:"unique_id"`
	LocationID        string             `json:"location_id"`
	SurveyorID        string             `json:"surveyor_id"`
	ClientID          string             `json:"client_id_manifest"`
	BusinessStatus    BusinessStatus     `json:"business_status"`
	BusinessOperating Operating          `json:"business_operating"`
	Geolocation       string             `json:"geolocation"`
	Latitude          pgtype.Float8      `json:"latitude"`
	Longitude         pgtype.Float8      `json:"longitude"`
	Tags              string             `json:"tags"`
	Notes             string             `json:"notes"`
	ValidationStatus  string             `json:"validation_status"`
	SubmittedBy       string             `json:"submitted_by"`
	LastUpdated       time.Time          `json:"last_updated"`
	Version           int64              `json:"version"`
}

// Response is one answered question within a submission.
type Response struct {
	SurveyID    int64        `json:"_id"`
	UniqueID    string       `json:"unique_id"`
	QuestionKey string       `json:"question_key"`
	Value       string       `json:"response"`
	Type        ResponseType `json:"response_type"`
	LastUpdated time.Time    `json:"last_updated"`
	Version     int64        `json:"version"`
}

// Batch is the normalized projection of a set of raw records, grouped by
// entity category.
type Batch struct {
	Locations []Location
	Surveyors []Surveyor
	Clients   []Client
	Surveys   []Survey
	Responses []Response
}

// Len returns the total number of fragments in b.
func (b Batch) Len() int {
	return len(b.Locations) + len(b.Surveyors) + len(b.Clients) + len(b.Surveys) + len(b.Responses)
}
