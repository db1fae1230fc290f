package entity

import (
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Funder statuses accepted by validation.
const (
	FunderActive   = "active"
	FunderInactive = "inactive"
	FunderPending  = "pending"
	FunderArchived = "archived"
)

// Funder is an organization or individual that contributes funding.
type Funder struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	ContactInfo         *ContactInfo   `json:"contact_info,omitempty"`
	ContributionHistory []string       `json:"contribution_history"`
	Preferences         map[string]any `json:"preferences"`
	Tags                []string       `json:"tags"`
	Status              string         `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// NewFunder builds a funder with a generated id, active status and fresh
// timestamps. The result is normalized but not yet validated; callers that
// accept external input should still call Validate.
func NewFunder(name string) Funder {
	now := nowUTC()
	f := Funder{
		ID:                  NewID(),
		Name:                strings.TrimSpace(name),
		ContributionHistory: []string{},
		Preferences:         map[string]any{},
		Tags:                []string{},
		Status:              FunderActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return f
}

// EntityID implements Entity.
func (f Funder) EntityID() string { return f.ID }

// Validate implements Entity.
func (f Funder) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.Name, requiredName...),
		validation.Field(&f.Status, validation.Required,
			validation.In(FunderActive, FunderInactive, FunderPending, FunderArchived)),
		validation.Field(&f.ContactInfo),
	)
}

// Touch refreshes the update timestamp.
func (f *Funder) Touch() { f.UpdatedAt = nowUTC() }

// AddContribution records a contribution id once.
func (f *Funder) AddContribution(contributionID string) {
	if !slices.Contains(f.ContributionHistory, contributionID) {
		f.ContributionHistory = append(f.ContributionHistory, contributionID)
		f.Touch()
	}
}

// RemoveContribution drops a contribution id if present.
func (f *Funder) RemoveContribution(contributionID string) {
	if i := slices.Index(f.ContributionHistory, contributionID); i >= 0 {
		f.ContributionHistory = slices.Delete(f.ContributionHistory, i, i+1)
		f.Touch()
	}
}

// HasTag reports whether the funder carries the given tag.
func (f Funder) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}
