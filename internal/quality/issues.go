package quality

import "github.com/JonMunkholm/kobosync/internal/model"

// Issue types, grouped by the entity they are raised for.
const (
	// Survey
	MissingID                model.IssueType = "missing_id"
	InvalidFormhubUUID       model.IssueType = "invalid_formhub_uuid"
	MissingUniqueID          model.IssueType = "missing_unique_id"
	MissingLocationID        model.IssueType = "missing_location_id"
	MissingSurveyorID        model.IssueType = "missing_surveyor_id"
	MissingClientIDManifest  model.IssueType = "missing_client_id_manifest"
	InvalidStartTime         model.IssueType = "invalid_start_time"
	InvalidEndTime           model.IssueType = "invalid_end_time"
	InvalidTimeRange         model.IssueType = "invalid_time_range"
	InvalidSurveyDate        model.IssueType = "invalid_survey_date"
	FutureSurveyDate         model.IssueType = "future_survey_date"
	InvalidSubmissionTime    model.IssueType = "invalid_submission_time"
	InvalidBusinessStatus    model.IssueType = "invalid_business_status"
	InvalidBusinessOperating model.IssueType = "invalid_business_operating"
	InvalidLatitude          model.IssueType = "invalid_latitude"
	InvalidLongitude         model.IssueType = "invalid_longitude"

	// Location
	MissingCountry          model.IssueType = "missing_country"
	MissingRegion           model.IssueType = "missing_region"
	MissingSpecificLocation model.IssueType = "missing_specific_location"

	// Client
	MissingName                 model.IssueType = "missing_name"
	InvalidAge                  model.IssueType = "invalid_age"
	InvalidGender               model.IssueType = "invalid_gender"
	InvalidPhoneNumber          model.IssueType = "invalid_phone_number"
	InvalidAlternatePhoneNumber model.IssueType = "invalid_alternate_phone_number"
	InvalidPhoneType            model.IssueType = "invalid_phone_type"
	MissingNationality          model.IssueType = "missing_nationality"
	InvalidDependents           model.IssueType = "invalid_dependents"

	// Surveyor
	MissingCohort  model.IssueType = "missing_cohort"
	MissingProgram model.IssueType = "missing_program"

	// Response
	MissingQuestionKey  model.IssueType = "missing_question_key"
	MissingResponse     model.IssueType = "missing_response"
	InvalidResponseType model.IssueType = "invalid_response_type"

	// ProcessingError records a rule or record that could not be evaluated.
	ProcessingError model.IssueType = "processing_error"
)
