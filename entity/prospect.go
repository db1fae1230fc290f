package entity

import (
	"fmt"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// ProspectStage is a pipeline position for a prospective funder.
type ProspectStage string

const (
	StageInitial     ProspectStage = "initial"
	StageQualified   ProspectStage = "qualified"
	StageProposal    ProspectStage = "proposal"
	StageNegotiation ProspectStage = "negotiation"
	StageClosedWon   ProspectStage = "closed_won"
	StageClosedLost  ProspectStage = "closed_lost"
)

// ProspectStages lists every valid pipeline stage in order.
func ProspectStages() []ProspectStage {
	return []ProspectStage{
		StageInitial, StageQualified, StageProposal,
		StageNegotiation, StageClosedWon, StageClosedLost,
	}
}

// ParseProspectStage maps a stored cell value back to a stage.
func ParseProspectStage(s string) (ProspectStage, error) {
	switch ProspectStage(s) {
	case StageInitial, StageQualified, StageProposal, StageNegotiation, StageClosedWon, StageClosedLost:
		return ProspectStage(s), nil
	}
	return "", fmt.Errorf("unknown prospect stage %q", s)
}

// Closed reports whether the stage is terminal.
func (s ProspectStage) Closed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Prospect is a potential funder moving through the pipeline.
type Prospect struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	StateCode         string          `json:"state_code,omitempty"`
	Stage             ProspectStage   `json:"stage"`
	EstimatedAmount   decimal.Decimal `json:"estimated_amount"`
	Probability       float64         `json:"probability"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	ContactInfo       *ContactInfo    `json:"contact_info,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Tags              []string        `json:"tags"`
	Metadata          map[string]any  `json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewProspect builds an initial-stage prospect with a generated id.
func NewProspect(name string, estimated decimal.Decimal, probability float64) Prospect {
	now := nowUTC()
	return Prospect{
		ID:              NewID(),
		Name:            strings.TrimSpace(name),
		Stage:           StageInitial,
		EstimatedAmount: roundMoney(estimated),
		Probability:     math.Round(probability*100) / 100,
		Tags:            []string{},
		Metadata:        map[string]any{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// EntityID implements Entity.
func (p Prospect) EntityID() string { return p.ID }

// Validate implements Entity.
func (p Prospect) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Name, requiredName...),
		validation.Field(&p.StateCode, stateCodeRules...),
		validation.Field(&p.Stage, validation.Required, validation.By(prospectStageRule)),
		validation.Field(&p.EstimatedAmount, validation.By(positiveAmountRule)),
		validation.Field(&p.Probability, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&p.Notes, validation.Length(0, 1000)),
		validation.Field(&p.ContactInfo),
	)
}

func prospectStageRule(value any) error {
	s, _ := value.(ProspectStage)
	_, err := ParseProspectStage(string(s))
	return err
}

// WeightedValue is the estimated amount scaled by close probability.
func (p Prospect) WeightedValue() decimal.Decimal {
	return p.EstimatedAmount.Mul(decimal.NewFromFloat(p.Probability)).Round(2)
}

// WithStage returns a copy moved to the given stage.
func (p Prospect) WithStage(stage ProspectStage) Prospect {
	p.Stage = stage
	p.UpdatedAt = nowUTC()
	return p
}
