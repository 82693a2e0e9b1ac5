package mapping

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/kobosync/internal/record"
)

// KeyDelimiter joins the parts of a composite key.
const KeyDelimiter = "|"

var keyEscaper = strings.NewReplacer(`\`, `\\`, KeyDelimiter, `\`+KeyDelimiter)

// JoinKey builds a composite key. Parts are escaped so that distinct part
// lists never produce the same key. Absent parts are passed as "".
func JoinKey(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, KeyDelimiter)
}

// LocationKey derives the Location key: country, region and specific
// location.
func LocationKey(r record.Record) string {
	return JoinKey(
		r.String(record.KeyCountry),
		r.String(record.KeyRegion),
		r.String(record.KeyLocation),
	)
}

// SurveyorKey derives the Surveyor key, which is the name as given.
func SurveyorKey(r record.Record) string {
	return r.String(record.KeySurveyorName)
}

// ClientKey derives the Client key, the manifest id.
func ClientKey(r record.Record) string {
	return r.String(record.KeyClientManifestID)
}

// SurveyKey derives the Survey key as text for logs and issues. The stored
// key is the numeric id itself.
func SurveyKey(r record.Record) string {
	if id, ok := r.ID(); ok {
		return strconv.FormatInt(id, 10)
	}
	return r.String(record.KeyID)
}

// ResponseKey derives a Response key: submission id, unique id and
// question key.
func ResponseKey(surveyID int64, uniqueID, question string) string {
	return JoinKey(strconv.FormatInt(surveyID, 10), uniqueID, question)
}
