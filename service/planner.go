// Package service holds the planning logic that spans more than one
// repository. It consumes the container rather than individual stores so
// every call shares the same cache.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/di"
	"github.com/fundwise/fundsheet/repository"
)

// DefaultTargetAmount seeds a target when the state had no confirmed or
// received funding in the previous year. Zero targets are rejected by
// validation, so brand-new states start from this floor instead.
var DefaultTargetAmount = decimal.NewFromInt(10000)

// AttentionThreshold is the default achieved ratio below which a state
// is flagged for attention.
const AttentionThreshold = 0.5

// Comparison statuses, keyed off the percent of target achieved.
const (
	StatusAhead   = "ahead"    // at or above 100%
	StatusOnTrack = "on_track" // at or above 75%
	StatusBehind  = "behind"
)

// TargetComparison pairs one state's target with the funding actually
// counted for the same fiscal year.
type TargetComparison struct {
	StateCode       string          `json:"state_code"`
	FiscalYear      string          `json:"fiscal_year"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	Difference      decimal.Decimal `json:"difference"`
	PercentAchieved float64         `json:"percent_achieved"`
	Status          string          `json:"status"`
	Priority        int             `json:"priority"`
	Description     string          `json:"description,omitempty"`
}

// AttentionItem is a state running below the attention threshold.
type AttentionItem struct {
	StateCode       string          `json:"state_code"`
	PercentAchieved float64         `json:"percent_achieved"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	Shortfall       decimal.Decimal `json:"shortfall"`
	Priority        int             `json:"priority"`
}

// TargetPlanner derives fiscal-year targets from prior-year funding and
// reports progress against them.
type TargetPlanner struct {
	targets       *repository.StateTargetRepository
	contributions *repository.ContributionRepository
	states        *repository.StateRepository
	log           *zap.Logger
}

// NewTargetPlanner builds a planner over the container's repositories.
func NewTargetPlanner(c *di.Container, log *zap.Logger) *TargetPlanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &TargetPlanner{
		targets:       c.StateTargets(),
		contributions: c.Contributions(),
		states:        c.States(),
		log:           log,
	}
}

// PreviousYearFunding totals the confirmed and received contributions
// for the state in the fiscal year before the one given.
func (p *TargetPlanner) PreviousYearFunding(ctx context.Context, stateCode, fiscalYear string) (decimal.Decimal, error) {
	previous, err := entity.PreviousFiscalYear(fiscalYear)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := p.contributions.TotalByState(ctx, stateCode, previous)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug("previous year funding",
		zap.String("state", stateCode),
		zap.String("fiscal_year", previous),
		zap.String("total", total.String()))
	return total, nil
}

// EnsureTarget returns the existing target for the state and year, or
// creates one. A nil custom amount means "default from the previous
// year's funding", falling back to DefaultTargetAmount when that is
// zero.
func (p *TargetPlanner) EnsureTarget(ctx context.Context, stateCode, fiscalYear string, custom *decimal.Decimal, description string, priority int) (entity.StateTarget, error) {
	existing, err := p.targets.FindByStateAndYear(ctx, stateCode, fiscalYear)
	if err == nil {
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return entity.StateTarget{}, err
	}

	var amount decimal.Decimal
	switch {
	case custom != nil:
		amount = *custom
		if description == "" {
			description = fmt.Sprintf("Custom target for %s in FY %s", entity.NormalizeStateCode(stateCode), fiscalYear)
		}
	default:
		amount, err = p.PreviousYearFunding(ctx, stateCode, fiscalYear)
		if err != nil {
			return entity.StateTarget{}, err
		}
		if amount.IsZero() {
			amount = DefaultTargetAmount
		}
		if description == "" {
			description = fmt.Sprintf("Target from previous year funding for %s in FY %s", entity.NormalizeStateCode(stateCode), fiscalYear)
		}
	}

	target := entity.NewStateTarget(stateCode, fiscalYear, amount)
	target.Description = description
	if priority > 0 {
		target.Priority = priority
	}
	created, err := p.targets.Create(ctx, target)
	if err != nil {
		return entity.StateTarget{}, err
	}
	p.log.Info("created target",
		zap.String("state", created.StateCode),
		zap.String("fiscal_year", fiscalYear),
		zap.String("amount", created.TargetAmount.String()))
	return created, nil
}

// InitializeTargets ensures one target per known state for the fiscal
// year. With force set, existing targets are overwritten with the
// previous year's funding; otherwise they are kept as they are.
func (p *TargetPlanner) InitializeTargets(ctx context.Context, fiscalYear string, force bool) (map[string]entity.StateTarget, error) {
	if _, err := entity.PreviousFiscalYear(fiscalYear); err != nil {
		return nil, err
	}

	states, err := p.states.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]entity.StateTarget, len(states))
	for _, st := range states {
		existing, err := p.targets.FindByStateAndYear(ctx, st.Code, fiscalYear)
		switch {
		case err == nil && !force:
			results[st.Code] = existing
			continue
		case err != nil && !repository.IsNotFound(err):
			return nil, err
		}

		funding, err := p.PreviousYearFunding(ctx, st.Code, fiscalYear)
		if err != nil {
			return nil, err
		}
		if funding.IsZero() {
			funding = DefaultTargetAmount
		}
		target, err := p.targets.CreateOrUpdateTarget(ctx, st.Code, fiscalYear, funding)
		if err != nil {
			return nil, err
		}
		results[st.Code] = target
	}

	p.log.Info("initialized targets",
		zap.String("fiscal_year", fiscalYear),
		zap.Int("count", len(results)),
		zap.Bool("force", force))
	return results, nil
}

// TargetVsActual compares every target in the fiscal year against the
// funding counted so far, sorted by state code.
func (p *TargetPlanner) TargetVsActual(ctx context.Context, fiscalYear string) ([]TargetComparison, error) {
	targets, err := p.targets.FindByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}

	results := make([]TargetComparison, 0, len(targets))
	for _, target := range targets {
		actual, err := p.contributions.TotalByState(ctx, target.StateCode, fiscalYear)
		if err != nil {
			return nil, err
		}

		var pct float64
		if target.TargetAmount.IsPositive() {
			pct, _ = actual.Div(target.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		}

		results = append(results, TargetComparison{
			StateCode:       target.StateCode,
			FiscalYear:      fiscalYear,
			TargetAmount:    target.TargetAmount,
			ActualAmount:    actual,
			Difference:      actual.Sub(target.TargetAmount),
			PercentAchieved: pct,
			Status:          comparisonStatus(pct),
			Priority:        target.Priority,
			Description:     target.Description,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].StateCode < results[j].StateCode })
	return results, nil
}

func comparisonStatus(pct float64) string {
	switch {
	case pct >= 100:
		return StatusAhead
	case pct >= 75:
		return StatusOnTrack
	default:
		return StatusBehind
	}
}

// StatesNeedingAttention lists states whose achieved ratio fell below
// the threshold, worst first. A non-positive threshold uses
// AttentionThreshold.
func (p *TargetPlanner) StatesNeedingAttention(ctx context.Context, fiscalYear string, threshold float64) ([]AttentionItem, error) {
	if threshold <= 0 {
		threshold = AttentionThreshold
	}

	comparison, err := p.TargetVsActual(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}

	items := make([]AttentionItem, 0)
	for _, c := range comparison {
		if c.PercentAchieved >= threshold*100 {
			continue
		}
		items = append(items, AttentionItem{
			StateCode:       c.StateCode,
			PercentAchieved: c.PercentAchieved,
			TargetAmount:    c.TargetAmount,
			ActualAmount:    c.ActualAmount,
			Shortfall:       c.TargetAmount.Sub(c.ActualAmount),
			Priority:        c.Priority,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].PercentAchieved != items[j].PercentAchieved {
			return items[i].PercentAchieved < items[j].PercentAchieved
		}
		return items[i].StateCode < items[j].StateCode
	})
	return items, nil
}

// ResetTargetsToPreviousYear overwrites every state's target for the
// fiscal year with its previous-year funding.
func (p *TargetPlanner) ResetTargetsToPreviousYear(ctx context.Context, fiscalYear string) (map[string]entity.StateTarget, error) {
	return p.InitializeTargets(ctx, fiscalYear, true)
}
