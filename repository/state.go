package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fundwise/fundsheet/entity"
)

type stateCodec struct{}

func (stateCodec) Table() string { return "states" }

func (stateCodec) Headers() []string {
	return []string{
		"code", "name", "region", "population", "metadata", "created_at", "updated_at",
	}
}

func (stateCodec) Encode(s entity.State) []string {
	return []string{
		s.Code,
		s.Name,
		s.Region,
		encodeInt64(s.Population),
		encodeJSONMap(s.Metadata),
		encodeTime(s.CreatedAt),
		encodeTime(s.UpdatedAt),
	}
}

func (stateCodec) Decode(row []string) (entity.State, []ParseIssue, error) {
	var s entity.State
	s.Code = entity.NormalizeStateCode(cell(row, 0))
	if s.Code == "" {
		return s, nil, fmt.Errorf("row has no state code")
	}
	s.Name = cell(row, 1)
	s.Region = cell(row, 2)

	p := &rowParser{}
	s.Population = p.Int64("population", cell(row, 3))
	s.Metadata = p.JSONMap("metadata", cell(row, 4))
	s.CreatedAt = p.Time("created_at", cell(row, 5))
	s.UpdatedAt = p.Time("updated_at", cell(row, 6))
	return s, p.issues, nil
}

// RegionSummary aggregates the states of one region.
type RegionSummary struct {
	Region     string   `json:"region"`
	States     []string `json:"states"`
	Population int64    `json:"population"`
}

// StateRepository serves the state reference table. Records are keyed by
// state code rather than a generated id.
type StateRepository struct {
	Repository[entity.State]
}

// NewStateCodec returns the row codec for the states sheet.
func NewStateCodec() RowCodec[entity.State] { return stateCodec{} }

// NewStateRepository wraps base, which is usually a Cached repository.
func NewStateRepository(base Repository[entity.State]) *StateRepository {
	return &StateRepository{Repository: base}
}

// ByCode returns the state with the given code.
func (r *StateRepository) ByCode(ctx context.Context, code string) (entity.State, error) {
	return r.GetByID(ctx, entity.NormalizeStateCode(code))
}

// ValidateStateCode reports whether the code exists in the table.
func (r *StateRepository) ValidateStateCode(ctx context.Context, code string) (bool, error) {
	return r.Exists(ctx, entity.NormalizeStateCode(code))
}

// StateName returns the display name for a code, or the code itself when
// the table has no entry for it.
func (r *StateRepository) StateName(ctx context.Context, code string) (string, error) {
	s, err := r.ByCode(ctx, code)
	if err != nil {
		if IsNotFound(err) {
			return entity.NormalizeStateCode(code), nil
		}
		return "", err
	}
	return s.Name, nil
}

// FindByRegion returns the states of one region, matched
// case-insensitively.
func (r *StateRepository) FindByRegion(ctx context.Context, region string) ([]entity.State, error) {
	return r.FindByField(ctx, "region", region)
}

// FindByName matches state names case-insensitively on substring.
func (r *StateRepository) FindByName(ctx context.Context, name string) ([]entity.State, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	matched := []entity.State{}
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// AllStateCodes returns every known state code, sorted.
func (r *StateRepository) AllStateCodes(ctx context.Context) ([]string, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(all))
	for _, s := range all {
		codes = append(codes, s.Code)
	}
	sort.Strings(codes)
	return codes, nil
}

// ByPopulationRange returns states with population in [min, max].
func (r *StateRepository) ByPopulationRange(ctx context.Context, min, max int64) ([]entity.State, error) {
	if min > max {
		return nil, fmt.Errorf("population range %d..%d is inverted", min, max)
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.State{}
	for _, s := range all {
		if s.Population >= min && s.Population <= max {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// LargestStates returns the n most populous states, descending.
func (r *StateRepository) LargestStates(ctx context.Context, n int) ([]entity.State, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Population > all[j].Population })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// RegionsSummary groups states by region.
func (r *StateRepository) RegionsSummary(ctx context.Context) (map[string]RegionSummary, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	regions := map[string]RegionSummary{}
	for _, s := range all {
		region := s.Region
		if region == "" {
			region = "unassigned"
		}
		summary, ok := regions[region]
		if !ok {
			summary = RegionSummary{Region: region, States: []string{}}
		}
		summary.States = append(summary.States, s.Code)
		summary.Population += s.Population
		regions[region] = summary
	}
	for region, summary := range regions {
		sort.Strings(summary.States)
		regions[region] = summary
	}
	return regions, nil
}

// UpdatePopulation changes one state's population figure.
func (r *StateRepository) UpdatePopulation(ctx context.Context, code string, population int64) (entity.State, error) {
	return r.Update(ctx, entity.NormalizeStateCode(code), func(s entity.State) (entity.State, error) {
		s.Population = population
		s.Touch()
		return s, nil
	})
}

// UpdateRegion moves one state to a different region.
func (r *StateRepository) UpdateRegion(ctx context.Context, code, region string) (entity.State, error) {
	return r.Update(ctx, entity.NormalizeStateCode(code), func(s entity.State) (entity.State, error) {
		s.Region = region
		s.Touch()
		return s, nil
	})
}

// CreateOrUpdateState upserts a state reference record by code.
func (r *StateRepository) CreateOrUpdateState(ctx context.Context, state entity.State) (entity.State, error) {
	state.Code = entity.NormalizeStateCode(state.Code)
	exists, err := r.Exists(ctx, state.Code)
	if err != nil {
		return entity.State{}, err
	}
	if !exists {
		return r.Create(ctx, state)
	}
	return r.Update(ctx, state.Code, func(existing entity.State) (entity.State, error) {
		state.CreatedAt = existing.CreatedAt
		state.Touch()
		return state, nil
	})
}
