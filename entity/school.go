package entity

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// School types accepted by validation.
const (
	SchoolPublic  = "public"
	SchoolPrivate = "private"
	SchoolCharter = "charter"
	SchoolMagnet  = "magnet"
	SchoolOther   = "other"
)

// School is a reference record for a school that programs may fund.
type School struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	StateCode   string         `json:"state_code"`
	District    string         `json:"district,omitempty"`
	Type        string         `json:"type,omitempty"`
	Enrollment  int            `json:"enrollment,omitempty"`
	ContactInfo *ContactInfo   `json:"contact_info,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewSchool builds a school record with a generated id. The type, if
// given, is lower-cased to match the stored vocabulary.
func NewSchool(name, stateCode, schoolType string) School {
	now := nowUTC()
	return School{
		ID:        NewID(),
		Name:      strings.TrimSpace(name),
		StateCode: NormalizeStateCode(stateCode),
		Type:      strings.ToLower(strings.TrimSpace(schoolType)),
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EntityID implements Entity.
func (s School) EntityID() string { return s.ID }

// Validate implements Entity.
func (s School) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Name, requiredName...),
		validation.Field(&s.StateCode, append([]validation.Rule{validation.Required}, stateCodeRules...)...),
		validation.Field(&s.District, validation.Length(0, 100)),
		validation.Field(&s.Type, validation.In(SchoolPublic, SchoolPrivate, SchoolCharter, SchoolMagnet, SchoolOther)),
		validation.Field(&s.Enrollment, validation.Min(0)),
		validation.Field(&s.ContactInfo),
	)
}

// Touch refreshes the update timestamp.
func (s *School) Touch() { s.UpdatedAt = nowUTC() }
