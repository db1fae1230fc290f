package entity

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// StateTarget is a fundraising goal for one state in one fiscal year.
// The (state code, fiscal year) pair is unique per table; the repository
// enforces this on the upsert path.
type StateTarget struct {
	ID           string          `json:"id"`
	StateCode    string          `json:"state_code"`
	FiscalYear   string          `json:"fiscal_year"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Description  string          `json:"description,omitempty"`
	Priority     int             `json:"priority"`
	Metadata     map[string]any  `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewStateTarget builds a priority-1 target with a generated id.
func NewStateTarget(stateCode, fiscalYear string, amount decimal.Decimal) StateTarget {
	now := nowUTC()
	return StateTarget{
		ID:           NewID(),
		StateCode:    NormalizeStateCode(stateCode),
		FiscalYear:   fiscalYear,
		TargetAmount: roundMoney(amount),
		Priority:     1,
		Metadata:     map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EntityID implements Entity.
func (t StateTarget) EntityID() string { return t.ID }

// Validate implements Entity.
func (t StateTarget) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.StateCode, append([]validation.Rule{validation.Required}, stateCodeRules...)...),
		validation.Field(&t.FiscalYear, validation.Required, validation.By(fiscalYearRule)),
		validation.Field(&t.TargetAmount, validation.By(positiveAmountRule)),
		validation.Field(&t.Priority, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&t.Description, validation.Length(0, 500)),
	)
}

// Touch refreshes the update timestamp.
func (t *StateTarget) Touch() { t.UpdatedAt = nowUTC() }
