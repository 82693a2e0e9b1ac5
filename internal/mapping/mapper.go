// Package mapping converts raw submissions into normalized entity fragments.
//
// Every function here is pure: the same record and clock always produce the
// same fragments. Nothing is rejected at this stage. Unrecognized enum
// values fall back to the enum's unknown sentinel and unparseable
// timestamps become absent values; each such degradation is reported as a
// Diagnostic so the caller can log it, and the validator flags it as an
// issue later.
package mapping

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

// Diagnostic describes one field that could not be mapped faithfully.
type Diagnostic struct {
	RecordID string     `json:"record_id"`
	Field    record.Key `json:"field"`
	Raw      string     `json:"raw"`
	Reason   string     `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("record %s: %s: %s", d.RecordID, d.Field, d.Reason)
}

// Mapper holds the pass clock used for last_updated stamps.
type Mapper struct {
	Now time.Time
}

// New returns a Mapper stamping rows with now, truncated to the second.
func New(now time.Time) Mapper {
	return Mapper{Now: now.UTC().Truncate(time.Second)}
}

type diags struct {
	id  string
	out []Diagnostic
}

func (d *diags) add(field record.Key, raw string, err error) {
	d.out = append(d.out, Diagnostic{RecordID: d.id, Field: field, Raw: raw, Reason: err.Error()})
}

// MapLocation projects the business location. The key is always produced;
// the fragment is absent only when all three components are blank.
func (m Mapper) MapLocation(r record.Record) (model.Location, bool) {
	loc := model.Location{
		ID:               LocationKey(r),
		Country:          r.String(record.KeyCountry),
		Region:           r.String(record.KeyRegion),
		SpecificLocation: r.String(record.KeyLocation),
	}
	if loc.Country == "" && loc.Region == "" && loc.SpecificLocation == "" {
		return loc, false
	}
	return loc, true
}

// MapSurveyor projects the surveyor. Absent when the name is blank.
func (m Mapper) MapSurveyor(r record.Record) (model.Surveyor, bool) {
	s := model.Surveyor{
		Name:    SurveyorKey(r),
		Cohort:  r.String(record.KeyCohort),
		Program: r.String(record.KeyProgram),
	}
	return s, s.Name != ""
}

// MapClient projects the client. Absent when the manifest id is blank.
func (m Mapper) MapClient(r record.Record) (model.Client, []Diagnostic, bool) {
	d := diags{id: SurveyKey(r)}

	c := model.Client{
		ManifestID:     ClientKey(r),
		UniqueID:       r.String(record.KeyUniqueID),
		Name:           r.String(record.KeyClientName),
		Phone:          r.String(record.KeyPhone),
		AlternatePhone: r.String(record.KeyAlternatePhone),
		Nationality:    r.String(record.KeyNationality),
		Strata:         r.String(record.KeyStrata),
		Education:      r.String(record.KeyEducation),
		Status:         r.String(record.KeyClientStatus),
		LastUpdated:    m.Now,
	}

	var err error
	if c.PhoneType, err = ParsePhoneType(r.String(record.KeyPhoneType)); err != nil {
		d.add(record.KeyPhoneType, r.String(record.KeyPhoneType), err)
	}
	if c.Gender, err = ParseGender(r.String(record.KeyGender)); err != nil {
		d.add(record.KeyGender, r.String(record.KeyGender), err)
	}
	if c.Disability, err = ParseYesNo(r.String(record.KeyDisability)); err != nil {
		d.add(record.KeyDisability, r.String(record.KeyDisability), err)
	}
	if c.SoleIncomeEarner, err = ParseYesNo(r.String(record.KeySoleIncomeEarner)); err != nil {
		d.add(record.KeySoleIncomeEarner, r.String(record.KeySoleIncomeEarner), err)
	}
	c.Age = m.int4(r, record.KeyAge, &d)
	c.Dependents = m.int4(r, record.KeyDependents, &d)

	return c, d.out, c.ManifestID != ""
}

// MapSurvey projects the submission header. Absent when the record has no
// usable id. Reference keys are left empty when the referenced fragment is
// absent, so a survey never points at a row that was not written.
func (m Mapper) MapSurvey(r record.Record) (model.Survey, []Diagnostic, bool) {
	d := diags{id: SurveyKey(r)}

	id, ok := r.ID()
	if !ok && r.Has(record.KeyID) {
		d.add(record.KeyID, r.String(record.KeyID), fmt.Errorf("non-integer id"))
	}

	s := model.Survey{
		ID:               id,
		FormhubUUID:      r.String(record.KeyFormhubUUID),
		InstanceID:       r.String(record.KeyInstanceID),
		XFormID:          r.String(record.KeyXFormID),
		UUID:             r.String(record.KeyUUID),
		FormVersion:      r.String(record.KeyFormVersion),
		UniqueID:         r.String(record.KeyUniqueID),
		SurveyorID:       SurveyorKey(r),
		ClientID:         ClientKey(r),
		Tags:             r.JSON(record.KeyTags, "[]"),
		Notes:            r.JSON(record.KeyNotes, "[]"),
		ValidationStatus: r.JSON(record.KeyValidationStatus, "{}"),
		SubmittedBy:      r.String(record.KeySubmittedBy),
		LastUpdated:      m.Now,
	}

	if _, present := m.MapLocation(r); present {
		s.LocationID = LocationKey(r)
	}

	s.StartTime = m.timestamp(r, record.KeyStartTime, &d)
	s.EndTime = m.timestamp(r, record.KeyEndTime, &d)
	s.SubmissionTime = m.timestamp(r, record.KeySubmissionTime, &d)

	var err error
	if s.SurveyDate, err = ParseDate(r.String(record.KeySurveyDate)); err != nil {
		d.add(record.KeySurveyDate, r.String(record.KeySurveyDate), err)
	}
	if s.BusinessStatus, err = ParseBusinessStatus(r.String(record.KeyBusinessStatus)); err != nil {
		d.add(record.KeyBusinessStatus, r.String(record.KeyBusinessStatus), err)
	}
	if s.BusinessOperating, err = ParseOperating(r.String(record.KeyBusinessOperating)); err != nil {
		d.add(record.KeyBusinessOperating, r.String(record.KeyBusinessOperating), err)
	}

	s.Latitude, s.Longitude, s.Geolocation = geolocation(r)

	return s, d.out, ok
}

// MapResponses projects one response per answered question. Null answers
// are skipped.
func (m Mapper) MapResponses(r record.Record) []model.Response {
	id, _ := r.ID()
	uniqueID := r.String(record.KeyUniqueID)

	keys := r.ResponseKeys()
	out := make([]model.Response, 0, len(keys))
	for _, k := range keys {
		v := r.Value(k)
		if v == nil {
			continue
		}
		out = append(out, model.Response{
			SurveyID:    id,
			UniqueID:    uniqueID,
			QuestionKey: string(k),
			Value:       ResponseValue(v),
			Type:        InferResponseType(v),
			LastUpdated: m.Now,
		})
	}
	return out
}

func (m Mapper) timestamp(r record.Record, k record.Key, d *diags) pgtype.Timestamptz {
	raw := r.String(k)
	ts, err := ParseTimestamp(raw)
	if err != nil {
		d.add(k, raw, err)
	}
	return ts
}

func (m Mapper) int4(r record.Record, k record.Key, d *diags) pgtype.Int4 {
	if !r.Has(k) || r.String(k) == "" {
		return pgtype.Int4{}
	}
	i, ok := r.Int(k)
	if !ok || i < -1<<31 || i > 1<<31-1 {
		d.add(k, r.String(k), fmt.Errorf("not an integer"))
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// geolocation reads the [lat, lon] pair. A pair with either member missing
// yields absent coordinates.
func geolocation(r record.Record) (lat, lon pgtype.Float8, text string) {
	pair := r.List(record.KeyGeolocation)
	if len(pair) != 2 {
		return
	}
	la, okLat := toFloat(pair[0])
	lo, okLon := toFloat(pair[1])
	if !okLat || !okLon {
		return
	}
	lat = pgtype.Float8{Float64: la, Valid: true}
	lon = pgtype.Float8{Float64: lo, Valid: true}
	text = strconv.FormatFloat(la, 'f', -1, 64) + "," + strconv.FormatFloat(lo, 'f', -1, 64)
	return
}

func toFloat(v any) (float64, bool) {
	return record.Record{"v": v}.Float("v")
}
