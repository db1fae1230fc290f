package entity

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// ContributionStatus tracks the lifecycle of a contribution. Only
// confirmed and received contributions count toward funding totals.
type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionConfirmed ContributionStatus = "confirmed"
	ContributionReceived  ContributionStatus = "received"
	ContributionCancelled ContributionStatus = "cancelled"
)

// ContributionStatuses lists every valid status value.
func ContributionStatuses() []ContributionStatus {
	return []ContributionStatus{
		ContributionPending,
		ContributionConfirmed,
		ContributionReceived,
		ContributionCancelled,
	}
}

// ParseContributionStatus maps a stored cell value back to a status.
func ParseContributionStatus(s string) (ContributionStatus, error) {
	switch ContributionStatus(s) {
	case ContributionPending, ContributionConfirmed, ContributionReceived, ContributionCancelled:
		return ContributionStatus(s), nil
	}
	return "", fmt.Errorf("unknown contribution status %q", s)
}

// CountsTowardTotals reports whether the status is included in funding
// aggregations. Pending and cancelled contributions are excluded.
func (s ContributionStatus) CountsTowardTotals() bool {
	return s == ContributionConfirmed || s == ContributionReceived
}

// Contribution is a single funding commitment from a funder to a state.
type Contribution struct {
	ID          string             `json:"id"`
	FunderID    string             `json:"funder_id"`
	StateCode   string             `json:"state_code"`
	FiscalYear  string             `json:"fiscal_year"`
	Amount      decimal.Decimal    `json:"amount"`
	Date        *time.Time         `json:"date,omitempty"`
	Status      ContributionStatus `json:"status"`
	Description string             `json:"description,omitempty"`
	Metadata    map[string]any     `json:"metadata"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewContribution builds a pending contribution with a generated id and
// normalized fields.
func NewContribution(funderID, stateCode, fiscalYear string, amount decimal.Decimal) Contribution {
	now := nowUTC()
	return Contribution{
		ID:         NewID(),
		FunderID:   funderID,
		StateCode:  NormalizeStateCode(stateCode),
		FiscalYear: fiscalYear,
		Amount:     roundMoney(amount),
		Status:     ContributionPending,
		Metadata:   map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EntityID implements Entity.
func (c Contribution) EntityID() string { return c.ID }

// Validate implements Entity.
func (c Contribution) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.FunderID, validation.Required),
		validation.Field(&c.StateCode, append([]validation.Rule{validation.Required}, stateCodeRules...)...),
		validation.Field(&c.FiscalYear, validation.Required, validation.By(fiscalYearRule)),
		validation.Field(&c.Amount, validation.By(positiveAmountRule)),
		validation.Field(&c.Status, validation.Required, validation.By(contributionStatusRule)),
		validation.Field(&c.Description, validation.Length(0, 500)),
	)
}

func contributionStatusRule(value any) error {
	s, _ := value.(ContributionStatus)
	_, err := ParseContributionStatus(string(s))
	return err
}

// WithStatus returns a copy with the status changed and the update
// timestamp refreshed.
func (c Contribution) WithStatus(status ContributionStatus) Contribution {
	c.Status = status
	c.UpdatedAt = nowUTC()
	return c
}
