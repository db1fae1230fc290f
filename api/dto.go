package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/service"
)

// createTargetRequest is the POST /targets payload. A nil target amount
// asks the planner to default from the previous year's funding.
type createTargetRequest struct {
	StateCode    string   `json:"state_code"`
	FiscalYear   string   `json:"fiscal_year"`
	TargetAmount *float64 `json:"target_amount,omitempty"`
	Description  string   `json:"description,omitempty"`
	Priority     int      `json:"priority,omitempty"`
}

// updateTargetRequest carries a partial update. Only present fields are
// applied.
type updateTargetRequest struct {
	TargetAmount *float64 `json:"target_amount,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
}

type initializeRequest struct {
	FiscalYear string `json:"fiscal_year"`
	Force      bool   `json:"force,omitempty"`
}

type targetResponse struct {
	ID           string    `json:"id"`
	StateCode    string    `json:"state_code"`
	FiscalYear   string    `json:"fiscal_year"`
	TargetAmount float64   `json:"target_amount"`
	Description  string    `json:"description,omitempty"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTargetResponse(t entity.StateTarget) targetResponse {
	return targetResponse{
		ID:           t.ID,
		StateCode:    t.StateCode,
		FiscalYear:   t.FiscalYear,
		TargetAmount: toFloat(t.TargetAmount),
		Description:  t.Description,
		Priority:     t.Priority,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toTargetResponses(targets []entity.StateTarget) []targetResponse {
	out := make([]targetResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, toTargetResponse(t))
	}
	return out
}

type comparisonResponse struct {
	StateCode       string  `json:"state_code"`
	FiscalYear      string  `json:"fiscal_year"`
	TargetAmount    float64 `json:"target_amount"`
	ActualAmount    float64 `json:"actual_amount"`
	Difference      float64 `json:"difference"`
	PercentAchieved float64 `json:"percent_achieved"`
	Status          string  `json:"status"`
	Priority        int     `json:"priority"`
	Description     string  `json:"description,omitempty"`
}

func toComparisonResponses(items []service.TargetComparison) []comparisonResponse {
	out := make([]comparisonResponse, 0, len(items))
	for _, c := range items {
		out = append(out, comparisonResponse{
			StateCode:       c.StateCode,
			FiscalYear:      c.FiscalYear,
			TargetAmount:    toFloat(c.TargetAmount),
			ActualAmount:    toFloat(c.ActualAmount),
			Difference:      toFloat(c.Difference),
			PercentAchieved: c.PercentAchieved,
			Status:          c.Status,
			Priority:        c.Priority,
			Description:     c.Description,
		})
	}
	return out
}

type attentionResponse struct {
	StateCode       string  `json:"state_code"`
	PercentAchieved float64 `json:"percent_achieved"`
	TargetAmount    float64 `json:"target_amount"`
	ActualAmount    float64 `json:"actual_amount"`
	Shortfall       float64 `json:"shortfall"`
	Priority        int     `json:"priority"`
}

func toAttentionResponses(items []service.AttentionItem) []attentionResponse {
	out := make([]attentionResponse, 0, len(items))
	for _, a := range items {
		out = append(out, attentionResponse{
			StateCode:       a.StateCode,
			PercentAchieved: a.PercentAchieved,
			TargetAmount:    toFloat(a.TargetAmount),
			ActualAmount:    toFloat(a.ActualAmount),
			Shortfall:       toFloat(a.Shortfall),
			Priority:        a.Priority,
		})
	}
	return out
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
