package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fundwise/fundsheet/entity"
)

// Priorities at or below this value count as high priority.
const highPriorityCutoff = 2

type stateTargetCodec struct{}

func (stateTargetCodec) Table() string { return "state_targets" }

func (stateTargetCodec) Headers() []string {
	return []string{
		"id", "state_code", "fiscal_year", "target_amount",
		"description", "priority", "metadata", "created_at", "updated_at",
	}
}

func (stateTargetCodec) Encode(t entity.StateTarget) []string {
	return []string{
		t.ID,
		t.StateCode,
		t.FiscalYear,
		encodeDecimal(t.TargetAmount),
		t.Description,
		strconv.Itoa(t.Priority),
		encodeJSONMap(t.Metadata),
		encodeTime(t.CreatedAt),
		encodeTime(t.UpdatedAt),
	}
}

func (stateTargetCodec) Decode(row []string) (entity.StateTarget, []ParseIssue, error) {
	var t entity.StateTarget
	t.ID = cell(row, 0)
	if t.ID == "" {
		return t, nil, fmt.Errorf("row has no id")
	}
	t.StateCode = entity.NormalizeStateCode(cell(row, 1))
	t.FiscalYear = cell(row, 2)

	p := &rowParser{}
	t.TargetAmount = p.Decimal("target_amount", cell(row, 3))
	t.Description = cell(row, 4)
	t.Priority = p.Int("priority", cell(row, 5))
	if t.Priority == 0 {
		t.Priority = 1
	}
	t.Metadata = p.JSONMap("metadata", cell(row, 6))
	t.CreatedAt = p.Time("created_at", cell(row, 7))
	t.UpdatedAt = p.Time("updated_at", cell(row, 8))
	return t, p.issues, nil
}

// TargetsSummary aggregates one fiscal year's targets.
type TargetsSummary struct {
	FiscalYear   string          `json:"fiscal_year"`
	TotalTarget  decimal.Decimal `json:"total_target"`
	Count        int             `json:"count"`
	HighPriority int             `json:"high_priority"`
	StateCodes   []string        `json:"state_codes"`
}

// StateTargetRepository adds goal-tracking queries on top of the generic
// repository surface. The (state code, fiscal year) pair is unique; the
// upsert path enforces it.
type StateTargetRepository struct {
	Repository[entity.StateTarget]
}

// NewStateTargetCodec returns the row codec for the state targets sheet.
func NewStateTargetCodec() RowCodec[entity.StateTarget] { return stateTargetCodec{} }

// NewStateTargetRepository wraps base, which is usually a Cached
// repository.
func NewStateTargetRepository(base Repository[entity.StateTarget]) *StateTargetRepository {
	return &StateTargetRepository{Repository: base}
}

// FindByState returns every target for one state across fiscal years.
func (r *StateTargetRepository) FindByState(ctx context.Context, stateCode string) ([]entity.StateTarget, error) {
	return r.FindByField(ctx, "state_code", entity.NormalizeStateCode(stateCode))
}

// FindByFiscalYear returns every target in one fiscal year.
func (r *StateTargetRepository) FindByFiscalYear(ctx context.Context, fiscalYear string) ([]entity.StateTarget, error) {
	return r.FindByField(ctx, "fiscal_year", fiscalYear)
}

// FindByPriority returns targets with one exact priority value.
func (r *StateTargetRepository) FindByPriority(ctx context.Context, priority int) ([]entity.StateTarget, error) {
	return r.FindByField(ctx, "priority", strconv.Itoa(priority))
}

// FindByStateAndYear returns the unique target for a (state, year) pair.
func (r *StateTargetRepository) FindByStateAndYear(ctx context.Context, stateCode, fiscalYear string) (entity.StateTarget, error) {
	matched, err := r.FindByState(ctx, stateCode)
	if err != nil {
		return entity.StateTarget{}, err
	}
	for _, t := range matched {
		if t.FiscalYear == fiscalYear {
			return t, nil
		}
	}
	return entity.StateTarget{}, &NotFoundError{
		Table: r.Table(),
		ID:    fmt.Sprintf("%s/%s", entity.NormalizeStateCode(stateCode), fiscalYear),
	}
}

// HighPriorityTargets returns one fiscal year's targets at priority 1
// or 2, most urgent first.
func (r *StateTargetRepository) HighPriorityTargets(ctx context.Context, fiscalYear string) ([]entity.StateTarget, error) {
	targets, err := r.FindByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	urgent := []entity.StateTarget{}
	for _, t := range targets {
		if t.Priority <= highPriorityCutoff {
			urgent = append(urgent, t)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].Priority < urgent[j].Priority })
	return urgent, nil
}

// TotalTargetByFiscalYear sums every target amount in one fiscal year.
func (r *StateTargetRepository) TotalTargetByFiscalYear(ctx context.Context, fiscalYear string) (decimal.Decimal, error) {
	targets, err := r.FindByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range targets {
		total = total.Add(t.TargetAmount)
	}
	return total, nil
}

// Summary aggregates one fiscal year's targets.
func (r *StateTargetRepository) Summary(ctx context.Context, fiscalYear string) (TargetsSummary, error) {
	targets, err := r.FindByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return TargetsSummary{}, err
	}
	s := TargetsSummary{FiscalYear: fiscalYear, TotalTarget: decimal.Zero, StateCodes: []string{}}
	for _, t := range targets {
		s.Count++
		s.TotalTarget = s.TotalTarget.Add(t.TargetAmount)
		if t.Priority <= highPriorityCutoff {
			s.HighPriority++
		}
		s.StateCodes = append(s.StateCodes, t.StateCode)
	}
	sort.Strings(s.StateCodes)
	return s, nil
}

// UpdateTargetAmount changes the goal amount for one target.
func (r *StateTargetRepository) UpdateTargetAmount(ctx context.Context, id string, amount decimal.Decimal) (entity.StateTarget, error) {
	return r.Update(ctx, id, func(t entity.StateTarget) (entity.StateTarget, error) {
		t.TargetAmount = amount.Round(2)
		t.Touch()
		return t, nil
	})
}

// UpdatePriority changes the priority for one target.
func (r *StateTargetRepository) UpdatePriority(ctx context.Context, id string, priority int) (entity.StateTarget, error) {
	return r.Update(ctx, id, func(t entity.StateTarget) (entity.StateTarget, error) {
		t.Priority = priority
		t.Touch()
		return t, nil
	})
}

// StatesWithoutTargets returns the subset of stateCodes that have no
// target in the given fiscal year, sorted.
func (r *StateTargetRepository) StatesWithoutTargets(ctx context.Context, fiscalYear string, stateCodes []string) ([]string, error) {
	targets, err := r.FindByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	covered := map[string]bool{}
	for _, t := range targets {
		covered[t.StateCode] = true
	}
	missing := []string{}
	for _, code := range stateCodes {
		if code = entity.NormalizeStateCode(code); !covered[code] {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// CreateOrUpdateTarget upserts on the (state, fiscal year) pair: an
// existing target gets the new amount, otherwise a fresh one is created.
func (r *StateTargetRepository) CreateOrUpdateTarget(ctx context.Context, stateCode, fiscalYear string, amount decimal.Decimal) (entity.StateTarget, error) {
	existing, err := r.FindByStateAndYear(ctx, stateCode, fiscalYear)
	if err == nil {
		return r.UpdateTargetAmount(ctx, existing.ID, amount)
	}
	if !IsNotFound(err) {
		return entity.StateTarget{}, err
	}
	target := entity.NewStateTarget(stateCode, fiscalYear, amount)
	return r.Create(ctx, target)
}
