package entity

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// State is a reference record for a US state. Unlike the other entities
// it is keyed by its state code rather than a generated id.
type State struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Region     string         `json:"region,omitempty"`
	Population int64          `json:"population,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewState builds a state record with normalized code and name.
func NewState(code, name string) State {
	now := nowUTC()
	return State{
		Code:      NormalizeStateCode(code),
		Name:      strings.TrimSpace(name),
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EntityID implements Entity; the state code is the identifier.
func (s State) EntityID() string { return s.Code }

// Validate implements Entity.
func (s State) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Code, append([]validation.Rule{validation.Required}, stateCodeRules...)...),
		validation.Field(&s.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&s.Population, validation.Min(int64(0))),
	)
}

// Touch refreshes the update timestamp.
func (s *State) Touch() { s.UpdatedAt = nowUTC() }
