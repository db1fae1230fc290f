package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundwise/fundsheet/entity"
)

type contributionCodec struct{}

func (contributionCodec) Table() string { return "contributions" }

func (contributionCodec) Headers() []string {
	return []string{
		"id", "funder_id", "state_code", "fiscal_year", "amount",
		"date", "status", "description", "metadata", "created_at", "updated_at",
	}
}

func (contributionCodec) Encode(c entity.Contribution) []string {
	return []string{
		c.ID,
		c.FunderID,
		c.StateCode,
		c.FiscalYear,
		encodeDecimal(c.Amount),
		encodeOptTime(c.Date),
		string(c.Status),
		c.Description,
		encodeJSONMap(c.Metadata),
		encodeTime(c.CreatedAt),
		encodeTime(c.UpdatedAt),
	}
}

func (contributionCodec) Decode(row []string) (entity.Contribution, []ParseIssue, error) {
	var c entity.Contribution
	c.ID = cell(row, 0)
	if c.ID == "" {
		return c, nil, fmt.Errorf("row has no id")
	}
	c.FunderID = cell(row, 1)
	c.StateCode = entity.NormalizeStateCode(cell(row, 2))
	c.FiscalYear = cell(row, 3)

	p := &rowParser{}
	c.Amount = p.Decimal("amount", cell(row, 4))
	c.Date = p.OptTime("date", cell(row, 5))
	status := cell(row, 6)
	if status == "" {
		c.Status = entity.ContributionPending
	} else if parsed, err := entity.ParseContributionStatus(status); err != nil {
		p.fail("status", status, err)
		c.Status = entity.ContributionPending
	} else {
		c.Status = parsed
	}
	c.Description = cell(row, 7)
	c.Metadata = p.JSONMap("metadata", cell(row, 8))
	c.CreatedAt = p.Time("created_at", cell(row, 9))
	c.UpdatedAt = p.Time("updated_at", cell(row, 10))
	return c, p.issues, nil
}

// FiscalYearSummary aggregates one fiscal year's contributions. Total
// and ByState include confirmed and received amounts only; ByStatus
// breaks every status out separately.
type FiscalYearSummary struct {
	FiscalYear string                                        `json:"fiscal_year"`
	Total      decimal.Decimal                               `json:"total"`
	Count      int                                           `json:"count"`
	ByStatus   map[entity.ContributionStatus]decimal.Decimal `json:"by_status"`
	ByState    map[string]decimal.Decimal                    `json:"by_state"`
}

// ContributionRepository adds funding queries and aggregations on top of
// the generic repository surface.
type ContributionRepository struct {
	Repository[entity.Contribution]
}

// NewContributionCodec returns the row codec for the contributions sheet.
func NewContributionCodec() RowCodec[entity.Contribution] { return contributionCodec{} }

// NewContributionRepository wraps base, which is usually a Cached
// repository.
func NewContributionRepository(base Repository[entity.Contribution]) *ContributionRepository {
	return &ContributionRepository{Repository: base}
}

// FindByFunder returns every contribution from one funder.
func (r *ContributionRepository) FindByFunder(ctx context.Context, funderID string) ([]entity.Contribution, error) {
	return r.FindByField(ctx, "funder_id", funderID)
}

// FindByState returns every contribution directed at one state.
func (r *ContributionRepository) FindByState(ctx context.Context, stateCode string) ([]entity.Contribution, error) {
	return r.FindByField(ctx, "state_code", entity.NormalizeStateCode(stateCode))
}

// FindByFiscalYear returns every contribution in one fiscal year.
func (r *ContributionRepository) FindByFiscalYear(ctx context.Context, fiscalYear string) ([]entity.Contribution, error) {
	return r.FindByField(ctx, "fiscal_year", fiscalYear)
}

// FindByStatus returns contributions in one lifecycle status.
func (r *ContributionRepository) FindByStatus(ctx context.Context, status entity.ContributionStatus) ([]entity.Contribution, error) {
	return r.FindByField(ctx, "status", string(status))
}

// FindByStateAndYear returns contributions for one state in one fiscal
// year.
func (r *ContributionRepository) FindByStateAndYear(ctx context.Context, stateCode, fiscalYear string) ([]entity.Contribution, error) {
	byState, err := r.FindByState(ctx, stateCode)
	if err != nil {
		return nil, err
	}
	matched := []entity.Contribution{}
	for _, c := range byState {
		if c.FiscalYear == fiscalYear {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// PendingContributions returns contributions awaiting confirmation.
func (r *ContributionRepository) PendingContributions(ctx context.Context) ([]entity.Contribution, error) {
	return r.FindByStatus(ctx, entity.ContributionPending)
}

// ConfirmedContributions returns confirmed but not yet received
// contributions.
func (r *ContributionRepository) ConfirmedContributions(ctx context.Context) ([]entity.Contribution, error) {
	return r.FindByStatus(ctx, entity.ContributionConfirmed)
}

// ReceivedContributions returns contributions whose funds arrived.
func (r *ContributionRepository) ReceivedContributions(ctx context.Context) ([]entity.Contribution, error) {
	return r.FindByStatus(ctx, entity.ContributionReceived)
}

// ByDateRange returns contributions dated within [from, to] inclusive.
// Undated contributions never match.
func (r *ContributionRepository) ByDateRange(ctx context.Context, from, to time.Time) ([]entity.Contribution, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.Contribution{}
	for _, c := range all {
		if c.Date == nil {
			continue
		}
		if !c.Date.Before(from) && !c.Date.After(to) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// TotalByState sums confirmed and received contributions for one state,
// optionally restricted to one fiscal year (empty means all years).
func (r *ContributionRepository) TotalByState(ctx context.Context, stateCode, fiscalYear string) (decimal.Decimal, error) {
	matched, err := r.FindByState(ctx, stateCode)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range matched {
		if fiscalYear != "" && c.FiscalYear != fiscalYear {
			continue
		}
		if c.Status.CountsTowardTotals() {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

// TotalByFunder sums a funder's confirmed and received contributions,
// optionally restricted to one fiscal year (empty means all years).
func (r *ContributionRepository) TotalByFunder(ctx context.Context, funderID, fiscalYear string) (decimal.Decimal, error) {
	matched, err := r.FindByFunder(ctx, funderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range matched {
		if fiscalYear != "" && c.FiscalYear != fiscalYear {
			continue
		}
		if c.Status.CountsTowardTotals() {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

// UpdateStatus moves a contribution to a new lifecycle status.
func (r *ContributionRepository) UpdateStatus(ctx context.Context, id string, status entity.ContributionStatus) (entity.Contribution, error) {
	if _, err := entity.ParseContributionStatus(string(status)); err != nil {
		return entity.Contribution{}, err
	}
	return r.Update(ctx, id, func(c entity.Contribution) (entity.Contribution, error) {
		return c.WithStatus(status), nil
	})
}

// SummaryByFiscalYear aggregates every contribution into per-year
// summaries keyed by fiscal year.
func (r *ContributionRepository) SummaryByFiscalYear(ctx context.Context) (map[string]FiscalYearSummary, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := map[string]FiscalYearSummary{}
	for _, c := range all {
		s, ok := summaries[c.FiscalYear]
		if !ok {
			s = FiscalYearSummary{
				FiscalYear: c.FiscalYear,
				Total:      decimal.Zero,
				ByStatus:   map[entity.ContributionStatus]decimal.Decimal{},
				ByState:    map[string]decimal.Decimal{},
			}
		}
		s.Count++
		s.ByStatus[c.Status] = s.ByStatus[c.Status].Add(c.Amount)
		if c.Status.CountsTowardTotals() {
			s.Total = s.Total.Add(c.Amount)
			s.ByState[c.StateCode] = s.ByState[c.StateCode].Add(c.Amount)
		}
		summaries[c.FiscalYear] = s
	}
	return summaries, nil
}
