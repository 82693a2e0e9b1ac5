package record

import "strings"

// Key names a field in a raw submission. Keys are the source's own
// slash-separated question paths.
type Key string

// SchemaVersion identifies the catalogue of raw keys below. Bump it when a
// form revision renames or drops a key the mappers depend on.
const SchemaVersion = "v1"

// Submission metadata.
const (
	KeyID               Key = "_id"
	KeyFormhubUUID      Key = "formhub/uuid"
	KeyStartTime        Key = "starttime"
	KeyEndTime          Key = "endtime"
	KeySurveyDate       Key = "cd_survey_date"
	KeyInstanceID       Key = "meta/instanceID"
	KeyXFormID          Key = "_xform_id_string"
	KeyUUID             Key = "_uuid"
	KeySubmissionTime   Key = "_submission_time"
	KeyFormVersion      Key = "__version__"
	KeyGeolocation      Key = "_geolocation"
	KeyTags             Key = "_tags"
	KeyNotes            Key = "_notes"
	KeyValidationStatus Key = "_validation_status"
	KeySubmittedBy      Key = "_submitted_by"
)

// Section A: business location.
const (
	KeyUniqueID Key = "sec_a/unique_id"
	KeyCountry  Key = "sec_a/cd_biz_country_name"
	KeyRegion   Key = "sec_a/cd_biz_region_name"
)

// Section B: surveyor.
const (
	KeySurveyorName Key = "sec_b/bda_name"
	KeyCohort       Key = "sec_b/cd_cohort"
	KeyProgram      Key = "sec_b/cd_program"
)

// Section C: client.
const (
	KeyLocation         Key = "sec_c/cd_location"
	KeyClientManifestID Key = "sec_c/cd_client_id_manifest"
	KeyClientName       Key = "sec_c/cd_client_name"
	KeyPhone            Key = "sec_c/cd_clients_phone"
	KeyAlternatePhone   Key = "sec_c/cd_phoneno_alt_number"
	KeyPhoneType        Key = "sec_c/cd_clients_phone_smart_feature"
	KeyGender           Key = "sec_c/cd_gender"
	KeyAge              Key = "sec_c/cd_age"
	KeyNationality      Key = "sec_c/cd_nationality"
	KeyStrata           Key = "sec_c/cd_strata"
	KeyDisability       Key = "sec_c/cd_disability"
	KeyEducation        Key = "sec_c/cd_education"
	KeyClientStatus     Key = "sec_c/cd_client_status"
	KeySoleIncomeEarner Key = "sec_c/cd_sole_income_earner"
	KeyDependents       Key = "sec_c/cd_howrespble_pple"
)

// Business status group.
const (
	KeyBusinessStatus    Key = "group_mx5fl16/cd_biz_status"
	KeyBusinessOperating Key = "group_mx5fl16/bd_biz_operating"
)

// ResponsePrefixes lists the question groups whose answers are stored as
// individual responses.
var ResponsePrefixes = []string{"sec_a/", "sec_b/", "sec_c/", "group_mx5fl16/"}

var catalogue = map[Key]struct{}{}

func init() {
	for _, k := range Catalogue() {
		catalogue[k] = struct{}{}
	}
}

// Catalogue returns every key known to SchemaVersion.
func Catalogue() []Key {
	return []Key{
		KeyID, KeyFormhubUUID, KeyStartTime, KeyEndTime, KeySurveyDate,
		KeyInstanceID, KeyXFormID, KeyUUID, KeySubmissionTime, KeyFormVersion,
		KeyGeolocation, KeyTags, KeyNotes, KeyValidationStatus, KeySubmittedBy,
		KeyUniqueID, KeyCountry, KeyRegion,
		KeySurveyorName, KeyCohort, KeyProgram,
		KeyLocation, KeyClientManifestID, KeyClientName, KeyPhone, KeyAlternatePhone,
		KeyPhoneType, KeyGender, KeyAge, KeyNationality, KeyStrata, KeyDisability,
		KeyEducation, KeyClientStatus, KeySoleIncomeEarner, KeyDependents,
		KeyBusinessStatus, KeyBusinessOperating,
	}
}

// Known reports whether k belongs to the catalogue.
func Known(k Key) bool {
	_, ok := catalogue[k]
	return ok
}

// IsResponseKey reports whether k is a question answer that becomes a
// response row.
func IsResponseKey(k Key) bool {
	for _, p := range ResponsePrefixes {
		if strings.HasPrefix(string(k), p) {
			return true
		}
	}
	return false
}
