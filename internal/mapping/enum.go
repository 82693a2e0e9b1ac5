package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// EnumError reports a raw value that is not in an enum's lookup table.
type EnumError struct {
	Enum string
	Raw  string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("unrecognized %s value %q", e.Enum, e.Raw)
}

// FoldToken canonicalizes free text for enum lookup: lower-cased, accents
// stripped, apostrophes dropped, runs of whitespace, hyphens and slashes
// collapsed to a single underscore.
func FoldToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r), r == '\'', r == '’':
			continue
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var genderLookup = map[string]model.Gender{
	"male":       model.GenderMale,
	"m":          model.GenderMale,
	"man":        model.GenderMale,
	"masculin":   model.GenderMale,
	"homme":      model.GenderMale,
	"female":     model.GenderFemale,
	"f":          model.GenderFemale,
	"woman":      model.GenderFemale,
	"feminin":    model.GenderFemale,
	"femme":      model.GenderFemale,
	"other":      model.GenderOther,
	"autre":      model.GenderOther,
	"non_binary": model.GenderOther,
}

var phoneTypeLookup = map[string]model.PhoneType{
	"smart_phone":   model.PhoneTypeSmart,
	"smartphone":    model.PhoneTypeSmart,
	"smart":         model.PhoneTypeSmart,
	"feature_phone": model.PhoneTypeFeature,
	"featurephone":  model.PhoneTypeFeature,
	"feature":       model.PhoneTypeFeature,
	"basic_phone":   model.PhoneTypeFeature,
	"basic":         model.PhoneTypeFeature,
}

var yesNoLookup = map[string]model.YesNo{
	"yes":   model.Yes,
	"y":     model.Yes,
	"true":  model.Yes,
	"1":     model.Yes,
	"oui":   model.Yes,
	"no":    model.No,
	"n":     model.No,
	"false": model.No,
	"0":     model.No,
	"non":   model.No,
}

var operatingLookup = map[string]model.Operating{
	"yes":       model.OperatingYes,
	"y":         model.OperatingYes,
	"true":      model.OperatingYes,
	"1":         model.OperatingYes,
	"oui":       model.OperatingYes,
	"no":        model.OperatingNo,
	"n":         model.OperatingNo,
	"false":     model.OperatingNo,
	"0":         model.OperatingNo,
	"non":       model.OperatingNo,
	"unknown":   model.OperatingUnknown,
	"dont_know": model.OperatingUnknown,
	"not_sure":  model.OperatingUnknown,
}

var businessStatusLookup = map[string]model.BusinessStatus{
	"existing_business": model.BusinessExisting,
	"existing":          model.BusinessExisting,
	"new_business":      model.BusinessNew,
	"new":               model.BusinessNew,
	"not_operating":     model.BusinessNotOperating,
	"closed":            model.BusinessNotOperating,
	"non_operational":   model.BusinessNotOperating,
}

// lookup folds raw and resolves it in table. A blank raw value resolves to
// the zero value without error; anything else that misses returns the zero
// value and an *EnumError.
func lookup[T ~uint8](name string, table map[string]T, raw string) (T, error) {
	key := FoldToken(raw)
	if key == "" {
		var zero T
		return zero, nil
	}
	if v, ok := table[key]; ok {
		return v, nil
	}
	var zero T
	return zero, &EnumError{Enum: name, Raw: raw}
}

// ParseGender resolves a raw gender answer.
func ParseGender(raw string) (model.Gender, error) {
	return lookup("gender", genderLookup, raw)
}

// ParsePhoneType resolves a raw phone type answer.
func ParsePhoneType(raw string) (model.PhoneType, error) {
	return lookup("phone_type", phoneTypeLookup, raw)
}

// ParseYesNo resolves a raw yes/no answer.
func ParseYesNo(raw string) (model.YesNo, error) {
	return lookup("yes_no", yesNoLookup, raw)
}

// ParseOperating resolves the tri-state business operating answer.
func ParseOperating(raw string) (model.Operating, error) {
	return lookup("business_operating", operatingLookup, raw)
}

// ParseBusinessStatus resolves a raw business status answer.
func ParseBusinessStatus(raw string) (model.BusinessStatus, error) {
	return lookup("business_status", businessStatusLookup, raw)
}
