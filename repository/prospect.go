package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundwise/fundsheet/entity"
)

type prospectCodec struct{}

func (prospectCodec) Table() string { return "prospects" }

func (prospectCodec) Headers() []string {
	return []string{
		"id", "name", "state_code", "stage", "estimated_amount", "probability",
		"expected_close_date", "contact_info", "notes", "tags", "metadata",
		"created_at", "updated_at",
	}
}

func (prospectCodec) Encode(p entity.Prospect) []string {
	return []string{
		p.ID,
		p.Name,
		p.StateCode,
		string(p.Stage),
		encodeDecimal(p.EstimatedAmount),
		encodeFloat(p.Probability),
		encodeOptTime(p.ExpectedCloseDate),
		encodeContact(p.ContactInfo),
		p.Notes,
		encodeList(p.Tags),
		encodeJSONMap(p.Metadata),
		encodeTime(p.CreatedAt),
		encodeTime(p.UpdatedAt),
	}
}

func (prospectCodec) Decode(row []string) (entity.Prospect, []ParseIssue, error) {
	var p entity.Prospect
	p.ID = cell(row, 0)
	if p.ID == "" {
		return p, nil, fmt.Errorf("row has no id")
	}
	p.Name = cell(row, 1)
	p.StateCode = entity.NormalizeStateCode(cell(row, 2))

	rp := &rowParser{}
	stage := cell(row, 3)
	if stage == "" {
		p.Stage = entity.StageInitial
	} else if parsed, err := entity.ParseProspectStage(stage); err != nil {
		rp.fail("stage", stage, err)
		p.Stage = entity.StageInitial
	} else {
		p.Stage = parsed
	}
	p.EstimatedAmount = rp.Decimal("estimated_amount", cell(row, 4))
	p.Probability = rp.Float("probability", cell(row, 5))
	p.ExpectedCloseDate = rp.OptTime("expected_close_date", cell(row, 6))
	p.ContactInfo = rp.Contact("contact_info", cell(row, 7))
	p.Notes = cell(row, 8)
	p.Tags = decodeList(cell(row, 9))
	p.Metadata = rp.JSONMap("metadata", cell(row, 10))
	p.CreatedAt = rp.Time("created_at", cell(row, 11))
	p.UpdatedAt = rp.Time("updated_at", cell(row, 12))
	return p, rp.issues, nil
}

// StageSummary aggregates one pipeline stage.
type StageSummary struct {
	Count          int             `json:"count"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
	WeightedTotal  decimal.Decimal `json:"weighted_total"`
}

// PipelineSummary aggregates the whole prospect pipeline. Open totals
// exclude closed stages; the weighted total scales each open prospect's
// estimate by its close probability.
type PipelineSummary struct {
	TotalProspects int                                   `json:"total_prospects"`
	OpenValue      decimal.Decimal                       `json:"open_value"`
	WeightedValue  decimal.Decimal                       `json:"weighted_value"`
	ByStage        map[entity.ProspectStage]StageSummary `json:"by_stage"`
}

// ProspectRepository adds pipeline queries on top of the generic
// repository surface.
type ProspectRepository struct {
	Repository[entity.Prospect]
}

// NewProspectCodec returns the row codec for the prospects sheet.
func NewProspectCodec() RowCodec[entity.Prospect] { return prospectCodec{} }

// NewProspectRepository wraps base, which is usually a Cached repository.
func NewProspectRepository(base Repository[entity.Prospect]) *ProspectRepository {
	return &ProspectRepository{Repository: base}
}

// FindByStage returns prospects at one pipeline stage.
func (r *ProspectRepository) FindByStage(ctx context.Context, stage entity.ProspectStage) ([]entity.Prospect, error) {
	return r.FindByField(ctx, "stage", string(stage))
}

// FindByState returns prospects tied to one state.
func (r *ProspectRepository) FindByState(ctx context.Context, stateCode string) ([]entity.Prospect, error) {
	return r.FindByField(ctx, "state_code", entity.NormalizeStateCode(stateCode))
}

// FindByName matches prospect names case-insensitively on substring.
func (r *ProspectRepository) FindByName(ctx context.Context, name string) ([]entity.Prospect, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	matched := []entity.Prospect{}
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// FindByTag returns prospects carrying the given tag.
func (r *ProspectRepository) FindByTag(ctx context.Context, tag string) ([]entity.Prospect, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.Prospect{}
	for _, p := range all {
		if slices.Contains(p.Tags, tag) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// ActiveProspects returns prospects in a non-terminal stage.
func (r *ProspectRepository) ActiveProspects(ctx context.Context) ([]entity.Prospect, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	open := []entity.Prospect{}
	for _, p := range all {
		if !p.Stage.Closed() {
			open = append(open, p)
		}
	}
	return open, nil
}

// WonProspects returns prospects closed as won.
func (r *ProspectRepository) WonProspects(ctx context.Context) ([]entity.Prospect, error) {
	return r.FindByStage(ctx, entity.StageClosedWon)
}

// LostProspects returns prospects closed as lost.
func (r *ProspectRepository) LostProspects(ctx context.Context) ([]entity.Prospect, error) {
	return r.FindByStage(ctx, entity.StageClosedLost)
}

// ByProbabilityRange returns prospects with probability in [min, max].
func (r *ProspectRepository) ByProbabilityRange(ctx context.Context, min, max float64) ([]entity.Prospect, error) {
	if min > max {
		return nil, fmt.Errorf("probability range %v..%v is inverted", min, max)
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.Prospect{}
	for _, p := range all {
		if p.Probability >= min && p.Probability <= max {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// ClosingSoon returns open prospects whose expected close date falls
// within the next given number of days.
func (r *ProspectRepository) ClosingSoon(ctx context.Context, days int) ([]entity.Prospect, error) {
	open, err := r.ActiveProspects(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	horizon := now.AddDate(0, 0, days)
	matched := []entity.Prospect{}
	for _, p := range open {
		if p.ExpectedCloseDate == nil {
			continue
		}
		if !p.ExpectedCloseDate.Before(now) && !p.ExpectedCloseDate.After(horizon) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// UpdateStage moves a prospect to a new pipeline stage.
func (r *ProspectRepository) UpdateStage(ctx context.Context, id string, stage entity.ProspectStage) (entity.Prospect, error) {
	if _, err := entity.ParseProspectStage(string(stage)); err != nil {
		return entity.Prospect{}, err
	}
	return r.Update(ctx, id, func(p entity.Prospect) (entity.Prospect, error) {
		return p.WithStage(stage), nil
	})
}

// UpdateProbability changes a prospect's close probability.
func (r *ProspectRepository) UpdateProbability(ctx context.Context, id string, probability float64) (entity.Prospect, error) {
	return r.Update(ctx, id, func(p entity.Prospect) (entity.Prospect, error) {
		p.Probability = probability
		p.UpdatedAt = time.Now().UTC()
		return p, nil
	})
}

// AddTag adds a tag once.
func (r *ProspectRepository) AddTag(ctx context.Context, id, tag string) (entity.Prospect, error) {
	return r.Update(ctx, id, func(p entity.Prospect) (entity.Prospect, error) {
		if !slices.Contains(p.Tags, tag) {
			p.Tags = append(p.Tags, tag)
			p.UpdatedAt = time.Now().UTC()
		}
		return p, nil
	})
}

// RemoveTag drops a tag if present.
func (r *ProspectRepository) RemoveTag(ctx context.Context, id, tag string) (entity.Prospect, error) {
	return r.Update(ctx, id, func(p entity.Prospect) (entity.Prospect, error) {
		if i := slices.Index(p.Tags, tag); i >= 0 {
			p.Tags = slices.Delete(p.Tags, i, i+1)
			p.UpdatedAt = time.Now().UTC()
		}
		return p, nil
	})
}

// PipelineSummary aggregates the current pipeline.
func (r *ProspectRepository) PipelineSummary(ctx context.Context) (PipelineSummary, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return PipelineSummary{}, err
	}
	s := PipelineSummary{
		OpenValue:     decimal.Zero,
		WeightedValue: decimal.Zero,
		ByStage:       map[entity.ProspectStage]StageSummary{},
	}
	for _, p := range all {
		s.TotalProspects++
		stage := s.ByStage[p.Stage]
		stage.Count++
		stage.EstimatedTotal = stage.EstimatedTotal.Add(p.EstimatedAmount)
		stage.WeightedTotal = stage.WeightedTotal.Add(p.WeightedValue())
		s.ByStage[p.Stage] = stage

		if !p.Stage.Closed() {
			s.OpenValue = s.OpenValue.Add(p.EstimatedAmount)
			s.WeightedValue = s.WeightedValue.Add(p.WeightedValue())
		}
	}
	return s, nil
}
