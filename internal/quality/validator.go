// Package quality evaluates data-quality rules over raw submissions and
// aggregates the resulting issues.
//
// Rules run against the normalized fragments produced by the mapping
// package, with the raw record alongside for issue payloads. Evaluation has
// no side effects; persisting issues is the caller's job.
package quality

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/kobosync/internal/mapping"
	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

var surveyRules = []rule[model.Survey]{
	{MissingID, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeyID), s.v.ID == 0
	}},
	{InvalidFormhubUUID, func(s subject[model.Survey]) (any, bool) {
		return s.v.FormhubUUID, !isUUID(s.v.FormhubUUID)
	}},
	{MissingUniqueID, blank(func(v model.Survey) string { return v.UniqueID })},
	{MissingLocationID, blank(func(v model.Survey) string { return v.LocationID })},
	{MissingSurveyorID, blank(func(v model.Survey) string { return v.SurveyorID })},
	{MissingClientIDManifest, blank(func(v model.Survey) string { return v.ClientID })},
	{InvalidStartTime, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeyStartTime), !s.v.StartTime.Valid
	}},
	{InvalidEndTime, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeyEndTime), !s.v.EndTime.Valid
	}},
	{InvalidTimeRange, func(s subject[model.Survey]) (any, bool) {
		if !s.v.StartTime.Valid || !s.v.EndTime.Valid {
			return nil, false
		}
		value := map[string]string{
			"start_time": mapping.FormatTimestamp(s.v.StartTime),
			"end_time":   mapping.FormatTimestamp(s.v.EndTime),
		}
		return value, s.v.StartTime.Time.After(s.v.EndTime.Time)
	}},
	{InvalidSurveyDate, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeySurveyDate), !s.v.SurveyDate.Valid
	}},
	{FutureSurveyDate, func(s subject[model.Survey]) (any, bool) {
		if !s.v.SurveyDate.Valid {
			return nil, false
		}
		y, m, d := s.now.UTC().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return mapping.FormatDate(s.v.SurveyDate), s.v.SurveyDate.Time.After(today)
	}},
	{InvalidSubmissionTime, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeySubmissionTime), !s.v.SubmissionTime.Valid
	}},
	{InvalidBusinessStatus, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeyBusinessStatus), !s.v.BusinessStatus.Valid()
	}},
	{InvalidBusinessOperating, func(s subject[model.Survey]) (any, bool) {
		return rawValue(s.raw, record.KeyBusinessOperating), !s.v.BusinessOperating.Valid()
	}},
	{InvalidLatitude, func(s subject[model.Survey]) (any, bool) {
		if !s.v.Latitude.Valid {
			return nil, false
		}
		return s.v.Latitude.Float64, !passes(s.v.Latitude.Float64, "gte=-90,lte=90")
	}},
	{InvalidLongitude, func(s subject[model.Survey]) (any, bool) {
		if !s.v.Longitude.Valid {
			return nil, false
		}
		return s.v.Longitude.Float64, !passes(s.v.Longitude.Float64, "gte=-180,lte=180")
	}},
}

var locationRules = []rule[model.Location]{
	{MissingCountry, blank(func(v model.Location) string { return v.Country })},
	{MissingRegion, blank(func(v model.Location) string { return v.Region })},
	{MissingSpecificLocation, blank(func(v model.Location) string { return v.SpecificLocation })},
}

var clientRules = []rule[model.Client]{
	{MissingClientIDManifest, blank(func(v model.Client) string { return v.ManifestID })},
	{MissingName, blank(func(v model.Client) string { return v.Name })},
	{InvalidAge, func(s subject[model.Client]) (any, bool) {
		if !s.v.Age.Valid {
			return rawValue(s.raw, record.KeyAge), true
		}
		return s.v.Age.Int32, !passes(s.v.Age.Int32, "gte=0,lte=120")
	}},
	{InvalidGender, func(s subject[model.Client]) (any, bool) {
		return rawValue(s.raw, record.KeyGender), !s.v.Gender.Valid()
	}},
	{InvalidPhoneNumber, func(s subject[model.Client]) (any, bool) {
		return s.v.Phone, !isPhone(s.v.Phone)
	}},
	{InvalidAlternatePhoneNumber, func(s subject[model.Client]) (any, bool) {
		if s.v.AlternatePhone == "" {
			return nil, false
		}
		return s.v.AlternatePhone, !isPhone(s.v.AlternatePhone)
	}},
	{InvalidPhoneType, func(s subject[model.Client]) (any, bool) {
		return rawValue(s.raw, record.KeyPhoneType), !s.v.PhoneType.Valid()
	}},
	{MissingNationality, blank(func(v model.Client) string { return v.Nationality })},
	{InvalidDependents, func(s subject[model.Client]) (any, bool) {
		raw := rawValue(s.raw, record.KeyDependents)
		if !s.v.Dependents.Valid {
			return raw, raw != nil
		}
		return s.v.Dependents.Int32, s.v.Dependents.Int32 < 0
	}},
}

var surveyorRules = []rule[model.Surveyor]{
	{MissingName, blank(func(v model.Surveyor) string { return v.Name })},
	{MissingCohort, blank(func(v model.Surveyor) string { return v.Cohort })},
	{MissingProgram, blank(func(v model.Surveyor) string { return v.Program })},
}

var responseRules = []rule[model.Response]{
	{MissingID, func(s subject[model.Response]) (any, bool) {
		return nil, s.v.SurveyID == 0
	}},
	{MissingUniqueID, blank(func(v model.Response) string { return v.UniqueID })},
	{MissingQuestionKey, blank(func(v model.Response) string { return v.QuestionKey })},
	{MissingResponse, blank(func(v model.Response) string { return v.Value })},
	{InvalidResponseType, func(s subject[model.Response]) (any, bool) {
		return s.v.Type.String(), !s.v.Type.Valid()
	}},
}

// Validator evaluates the rule catalogue. Now anchors temporal rules such
// as future_survey_date.
type Validator struct {
	Mapper mapping.Mapper
	Now    time.Time
}

// NewValidator returns a Validator evaluating against now.
func NewValidator(now time.Time) Validator {
	return Validator{Mapper: mapping.New(now), Now: now}
}

// Surveys evaluates the survey rules for every record.
func (v Validator) Surveys(recs []record.Record) []model.Issue {
	var out []model.Issue
	for _, r := range recs {
		id := mapping.SurveyKey(r)
		out = append(out, guardRecord(model.EntitySurvey, id, v.Now, func() []model.Issue {
			s, _, _ := v.Mapper.MapSurvey(r)
			return evaluate(model.EntitySurvey, id, subject[model.Survey]{s, r, v.Now}, surveyRules)
		})...)
	}
	return out
}

// Locations evaluates the location rules once per distinct location key.
func (v Validator) Locations(recs []record.Record) []model.Issue {
	var out []model.Issue
	seen := make(map[string]bool)
	for _, r := range recs {
		id := mapping.LocationKey(r)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, guardRecord(model.EntityLocation, id, v.Now, func() []model.Issue {
			loc, _ := v.Mapper.MapLocation(r)
			return evaluate(model.EntityLocation, id, subject[model.Location]{loc, r, v.Now}, locationRules)
		})...)
	}
	return out
}

// Clients evaluates the client rules for every record.
func (v Validator) Clients(recs []record.Record) []model.Issue {
	var out []model.Issue
	for _, r := range recs {
		id := mapping.ClientKey(r)
		if id == "" {
			id = mapping.SurveyKey(r)
		}
		out = append(out, guardRecord(model.EntityClient, id, v.Now, func() []model.Issue {
			c, _, _ := v.Mapper.MapClient(r)
			return evaluate(model.EntityClient, id, subject[model.Client]{c, r, v.Now}, clientRules)
		})...)
	}
	return out
}

// Surveyors evaluates the surveyor rules once per distinct surveyor key.
func (v Validator) Surveyors(recs []record.Record) []model.Issue {
	var out []model.Issue
	seen := make(map[string]bool)
	for _, r := range recs {
		id := mapping.SurveyorKey(r)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, guardRecord(model.EntitySurveyor, id, v.Now, func() []model.Issue {
			s, _ := v.Mapper.MapSurveyor(r)
			return evaluate(model.EntitySurveyor, id, subject[model.Surveyor]{s, r, v.Now}, surveyorRules)
		})...)
	}
	return out
}

// Responses evaluates the response rules for every answered question.
func (v Validator) Responses(recs []record.Record) []model.Issue {
	var out []model.Issue
	for _, r := range recs {
		out = append(out, guardRecord(model.EntityResponse, mapping.SurveyKey(r), v.Now, func() []model.Issue {
			var issues []model.Issue
			for _, resp := range v.Mapper.MapResponses(r) {
				id := mapping.ResponseKey(resp.SurveyID, resp.UniqueID, resp.QuestionKey)
				issues = append(issues, evaluate(model.EntityResponse, id, subject[model.Response]{resp, r, v.Now}, responseRules)...)
			}
			return issues
		})...)
	}
	return out
}

// guardRecord runs fn for one record. A panic outside the per-rule guards,
// for example while mapping, becomes a single processing_error issue for
// that record and evaluation moves on to the next one.
func guardRecord(entity model.EntityType, id string, now time.Time, fn func() []model.Issue) (out []model.Issue) {
	defer func() {
		if p := recover(); p != nil {
			out = []model.Issue{processingError(entity, id, fmt.Errorf("%v", p), now)}
		}
	}()
	return fn()
}
