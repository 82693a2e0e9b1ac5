package model

import "time"

// IssueType names one data-quality rule, e.g. "invalid_age".
type IssueType string

// Issue is one detected data-quality violation.
type Issue struct {
	ID         string         `json:"id,omitempty"`
	EntityType EntityType     `json:"entity_type"`
	Type       IssueType      `json:"issue_type"`
	EntityID   string         `json:"entity_id"`
	Value      any            `json:"value,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DetailsPayload returns the structured payload persisted with an issue.
// The offending value is folded in under "value".
func (i Issue) DetailsPayload() map[string]any {
	out := make(map[string]any, len(i.Details)+1)
	for k, v := range i.Details {
		out[k] = v
	}
	if i.Value != nil {
		out["value"] = i.Value
	}
	return out
}

// IssueSummary aggregates issues by type and by entity category.
type IssueSummary struct {
	TotalIssues    int            `json:"total_issues"`
	IssuesByType   map[string]int `json:"issues_by_type"`
	IssuesByEntity map[string]int `json:"issues_by_entity"`
}

// NewIssueSummary returns an empty summary with initialized maps.
func NewIssueSummary() IssueSummary {
	return IssueSummary{
		IssuesByType:   map[string]int{},
		IssuesByEntity: map[string]int{},
	}
}

// Add counts one issue.
func (s *IssueSummary) Add(entity EntityType, typ IssueType) {
	s.AddN(entity, typ, 1)
}

// AddN counts n issues of the same entity and type.
func (s *IssueSummary) AddN(entity EntityType, typ IssueType, n int) {
	if s.IssuesByType == nil {
		s.IssuesByType = map[string]int{}
	}
	if s.IssuesByEntity == nil {
		s.IssuesByEntity = map[string]int{}
	}
	s.TotalIssues += n
	s.IssuesByType[string(typ)] += n
	s.IssuesByEntity[string(entity)] += n
}

// DailyCount is the number of surveys captured on one survey date.
type DailyCount struct {
	SurveyDate string `json:"survey_date"`
	Surveys    int64  `json:"surveys"`
}

// Demographic is one client rollup bucket. AgeGroup is the lower bound of a
// ten-year band, or -1 when age is unknown.
type Demographic struct {
	Gender      string `json:"gender"`
	AgeGroup    int    `json:"age_group"`
	Nationality string `json:"nationality"`
	Clients     int64  `json:"clients"`
}

// AgeGroup returns the ten-year band an age falls into.
func AgeGroup(age int) int {
	if age < 0 {
		return -1
	}
	return age / 10 * 10
}
