package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fundwise/fundsheet/entity"
)

type schoolCodec struct{}

func (schoolCodec) Table() string { return "schools" }

func (schoolCodec) Headers() []string {
	return []string{
		"id", "name", "state_code", "district", "type", "enrollment",
		"contact_info", "metadata", "created_at", "updated_at",
	}
}

func (schoolCodec) Encode(s entity.School) []string {
	return []string{
		s.ID,
		s.Name,
		s.StateCode,
		s.District,
		s.Type,
		encodeInt(s.Enrollment),
		encodeContact(s.ContactInfo),
		encodeJSONMap(s.Metadata),
		encodeTime(s.CreatedAt),
		encodeTime(s.UpdatedAt),
	}
}

func (schoolCodec) Decode(row []string) (entity.School, []ParseIssue, error) {
	var s entity.School
	s.ID = cell(row, 0)
	if s.ID == "" {
		return s, nil, fmt.Errorf("row has no id")
	}
	s.Name = cell(row, 1)
	s.StateCode = entity.NormalizeStateCode(cell(row, 2))
	s.District = cell(row, 3)
	s.Type = strings.ToLower(cell(row, 4))

	p := &rowParser{}
	s.Enrollment = p.Int("enrollment", cell(row, 5))
	s.ContactInfo = p.Contact("contact_info", cell(row, 6))
	s.Metadata = p.JSONMap("metadata", cell(row, 7))
	s.CreatedAt = p.Time("created_at", cell(row, 8))
	s.UpdatedAt = p.Time("updated_at", cell(row, 9))
	return s, p.issues, nil
}

// SchoolsSummary aggregates one state's schools.
type SchoolsSummary struct {
	StateCode       string         `json:"state_code"`
	Count           int            `json:"count"`
	TotalEnrollment int            `json:"total_enrollment"`
	ByType          map[string]int `json:"by_type"`
	Districts       []string       `json:"districts"`
}

// SchoolRepository serves the school reference table.
type SchoolRepository struct {
	Repository[entity.School]
}

// NewSchoolCodec returns the row codec for the schools sheet.
func NewSchoolCodec() RowCodec[entity.School] { return schoolCodec{} }

// NewSchoolRepository wraps base, which is usually a Cached repository.
func NewSchoolRepository(base Repository[entity.School]) *SchoolRepository {
	return &SchoolRepository{Repository: base}
}

// FindByState returns every school in one state.
func (r *SchoolRepository) FindByState(ctx context.Context, stateCode string) ([]entity.School, error) {
	return r.FindByField(ctx, "state_code", entity.NormalizeStateCode(stateCode))
}

// FindByDistrict matches districts case-insensitively.
func (r *SchoolRepository) FindByDistrict(ctx context.Context, district string) ([]entity.School, error) {
	return r.FindByField(ctx, "district", district)
}

// FindByType returns schools of one type.
func (r *SchoolRepository) FindByType(ctx context.Context, schoolType string) ([]entity.School, error) {
	return r.FindByField(ctx, "type", strings.ToLower(schoolType))
}

// FindByName matches school names case-insensitively on substring.
func (r *SchoolRepository) FindByName(ctx context.Context, name string) ([]entity.School, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	matched := []entity.School{}
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// FindByStateAndDistrict returns one district's schools in one state.
func (r *SchoolRepository) FindByStateAndDistrict(ctx context.Context, stateCode, district string) ([]entity.School, error) {
	byState, err := r.FindByState(ctx, stateCode)
	if err != nil {
		return nil, err
	}
	matched := []entity.School{}
	for _, s := range byState {
		if strings.EqualFold(s.District, district) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// ByEnrollmentRange returns schools with enrollment in [min, max].
func (r *SchoolRepository) ByEnrollmentRange(ctx context.Context, min, max int) ([]entity.School, error) {
	if min > max {
		return nil, fmt.Errorf("enrollment range %d..%d is inverted", min, max)
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.School{}
	for _, s := range all {
		if s.Enrollment >= min && s.Enrollment <= max {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// LargestSchools returns the n largest schools by enrollment, descending.
func (r *SchoolRepository) LargestSchools(ctx context.Context, n int) ([]entity.School, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Enrollment > all[j].Enrollment })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// Summary aggregates one state's schools.
func (r *SchoolRepository) Summary(ctx context.Context, stateCode string) (SchoolsSummary, error) {
	schools, err := r.FindByState(ctx, stateCode)
	if err != nil {
		return SchoolsSummary{}, err
	}
	s := SchoolsSummary{
		StateCode: entity.NormalizeStateCode(stateCode),
		ByType:    map[string]int{},
		Districts: []string{},
	}
	districts := map[string]bool{}
	for _, school := range schools {
		s.Count++
		s.TotalEnrollment += school.Enrollment
		if school.Type != "" {
			s.ByType[school.Type]++
		}
		if school.District != "" && !districts[school.District] {
			districts[school.District] = true
			s.Districts = append(s.Districts, school.District)
		}
	}
	sort.Strings(s.Districts)
	return s, nil
}

// DistrictsInState returns the distinct districts of one state, sorted.
func (r *SchoolRepository) DistrictsInState(ctx context.Context, stateCode string) ([]string, error) {
	summary, err := r.Summary(ctx, stateCode)
	if err != nil {
		return nil, err
	}
	return summary.Districts, nil
}

// SchoolTypesInState returns the distinct school types of one state,
// sorted.
func (r *SchoolRepository) SchoolTypesInState(ctx context.Context, stateCode string) ([]string, error) {
	summary, err := r.Summary(ctx, stateCode)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(summary.ByType))
	for t := range summary.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

// UpdateEnrollment changes one school's enrollment figure.
func (r *SchoolRepository) UpdateEnrollment(ctx context.Context, id string, enrollment int) (entity.School, error) {
	return r.Update(ctx, id, func(s entity.School) (entity.School, error) {
		s.Enrollment = enrollment
		s.Touch()
		return s, nil
	})
}

// UpdateContactInfo replaces one school's contact details.
func (r *SchoolRepository) UpdateContactInfo(ctx context.Context, id string, contact *entity.ContactInfo) (entity.School, error) {
	contact.Normalize()
	return r.Update(ctx, id, func(s entity.School) (entity.School, error) {
		s.ContactInfo = contact
		s.Touch()
		return s, nil
	})
}
