package mapping

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

var dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var choiceTokens = map[string]bool{
	"yes": true, "no": true, "true": true, "false": true,
}

// InferResponseType classifies an answer by its native shape. It is a
// heuristic over the decoded JSON value, not a lookup in the form schema.
func InferResponseType(v any) model.ResponseType {
	switch t := v.(type) {
	case bool:
		return model.ResponseChoice
	case json.Number, float64, int, int64:
		return model.ResponseNumber
	case []any:
		return model.ResponseMultipleChoice
	case string:
		return inferFromText(t)
	default:
		return model.ResponseText
	}
}

func inferFromText(s string) model.ResponseType {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.ResponseText
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return model.ResponseNumber
	}
	if choiceTokens[strings.ToLower(s)] {
		return model.ResponseChoice
	}
	if dateShape.MatchString(s) {
		if _, err := time.Parse(CanonicalDate, s); err == nil {
			return model.ResponseDate
		}
	}
	return model.ResponseText
}

// ResponseValue renders an answer as the stored raw string.
func ResponseValue(v any) string {
	return record.Stringify(v)
}
