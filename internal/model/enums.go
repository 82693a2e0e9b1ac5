package model

import (
	"database/sql/driver"
	"fmt"
)

// Every enum below is a closed set whose zero value is the explicit
// "unknown" sentinel. Canonical names are what gets stored.

// Gender of the client.
type Gender uint8

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
	GenderOther
)

var genderNames = []string{"unknown", "male", "female", "other"}

func (g Gender) String() string { return enumName(genderNames, int(g)) }
func (g Gender) MarshalText() ([]byte, error) { return []byte(g.String()), nil }
func (g Gender) Value() (driver.Value, error) { return g.String(), nil }
func (g *Gender) UnmarshalText(b []byte) error { return enumParse(genderNames, string(b), (*uint8)(g)) }
func (g Gender) Valid() bool { return g != GenderUnknown && int(g) < len(genderNames) }

// PhoneType distinguishes smart phones from feature phones.
type PhoneType uint8

const (
	PhoneTypeUnknown PhoneType = iota
	PhoneTypeSmart
	PhoneTypeFeature
)

var phoneTypeNames = []string{"unknown", "smart_phone", "feature_phone"}

func (p PhoneType) String() string { return enumName(phoneTypeNames, int(p)) }
func (p PhoneType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
func (p PhoneType) Value() (driver.Value, error) { return p.String(), nil }
func (p *PhoneType) UnmarshalText(b []byte) error { return enumParse(phoneTypeNames, string(b), (*uint8)(p)) }
func (p PhoneType) Valid() bool { return p != PhoneTypeUnknown && int(p) < len(phoneTypeNames) }

// YesNo is a two-valued answer. Unknown means unanswered or unrecognized.
type YesNo uint8

const (
	YesNoUnknown YesNo = iota
	Yes
	No
)

var yesNoNames = []string{"unknown", "yes", "no"}

func (y YesNo) String() string { return enumName(yesNoNames, int(y)) }
func (y YesNo) MarshalText() ([]byte, error) { return []byte(y.String()), nil }
func (y YesNo) Value() (driver.Value, error) { return y.String(), nil }
func (y *YesNo) UnmarshalText(b []byte) error { return enumParse(yesNoNames, string(b), (*uint8)(y)) }
func (y YesNo) Valid() bool { return y != YesNoUnknown && int(y) < len(yesNoNames) }

// Operating is the tri-state "is the business operating" column. Only yes
// and no are valid answers; unknown is stored when the raw value was missing
// or unrecognized, and the validator flags it as invalid_business_operating.
type Operating uint8

const (
	OperatingUnknown Operating = iota
	OperatingYes
	OperatingNo
)

var operatingNames = []string{"unknown", "yes", "no"}

func (o Operating) String() string { return enumName(operatingNames, int(o)) }
func (o Operating) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o Operating) Value() (driver.Value, error) { return o.String(), nil }
func (o *Operating) UnmarshalText(b []byte) error { return enumParse(operatingNames, string(b), (*uint8)(o)) }
func (o Operating) Valid() bool { return o != OperatingUnknown && int(o) < len(operatingNames) }

// BusinessStatus classifies the surveyed business.
type BusinessStatus uint8

const (
	BusinessStatusUnknown BusinessStatus = iota
	BusinessExisting
	BusinessNew
	BusinessNotOperating
)

var businessStatusNames = []string{"unknown", "existing_business", "new_business", "not_operating"}

func (b BusinessStatus) String() string { return enumName(businessStatusNames, int(b)) }
func (b BusinessStatus) MarshalText() ([]byte, error) { return []byte(b.String()), nil }
func (b BusinessStatus) Value() (driver.Value, error) { return b.String(), nil }
func (b *BusinessStatus) UnmarshalText(t []byte) error {
	return enumParse(businessStatusNames, string(t), (*uint8)(b))
}
func (b BusinessStatus) Valid() bool {
	return b != BusinessStatusUnknown && int(b) < len(businessStatusNames)
}

// ResponseType is the inferred shape of an answer.
type ResponseType uint8

const (
	ResponseUnknown ResponseType = iota
	ResponseText
	ResponseNumber
	ResponseChoice
	ResponseMultipleChoice
	ResponseDate
)

var responseTypeNames = []string{"unknown", "text", "number", "choice", "multiple_choice", "date"}

func (r ResponseType) String() string { return enumName(responseTypeNames, int(r)) }
func (r ResponseType) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
func (r ResponseType) Value() (driver.Value, error) { return r.String(), nil }
func (r *ResponseType) UnmarshalText(b []byte) error {
	return enumParse(responseTypeNames, string(b), (*uint8)(r))
}
func (r ResponseType) Valid() bool { return r != ResponseUnknown && int(r) < len(responseTypeNames) }

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return names[0]
	}
	return names[i]
}

func enumParse(names []string, s string, dst *uint8) error {
	for i, n := range names {
		if n == s {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("unknown enum value %q", s)
}
