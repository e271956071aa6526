package metadata

import (
	"fmt"
	"strings"
)

// OwnerType tags which kind of entity a label belongs to.
type OwnerType string

const (
	OwnerVariable OwnerType = "variable"
	OwnerCategory OwnerType = "category"
)

// Valid reports whether o is a recognized owner type.
func (o OwnerType) Valid() bool {
	return o == OwnerVariable || o == OwnerCategory
}

// Purpose distinguishes short display labels from long descriptive ones.
// The empty purpose means unspecified.
type Purpose string

const (
	PurposeNone  Purpose = ""
	PurposeShort Purpose = "short"
	PurposeLong  Purpose = "long"
)

// ParsePurpose normalizes a purpose string. Input is case-insensitive;
// anything other than "", "short" or "long" is an error.
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PurposeNone, nil
	case "short":
		return PurposeShort, nil
	case "long":
		return PurposeLong, nil
	default:
		return PurposeNone, fmt.Errorf("purpose must be 'short' or 'long', got %q", s)
	}
}

// Label is a multilingual text attached to a variable or a category.
// At most one label exists per (owner, language code, purpose).
type Label struct {
	ID           int64     `json:"id,omitempty"`
	OwnerType    OwnerType `json:"entity_type,omitempty"`
	OwnerID      int64     `json:"entity_id,omitempty"`
	LanguageCode string    `json:"language_code"`
	Purpose      Purpose   `json:"purpose,omitempty"`
	Text         string    `json:"text"`
}
