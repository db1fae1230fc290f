package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fundwise/fundsheet/entity"
)

type funderCodec struct{}

func (funderCodec) Table() string { return "funders" }

func (funderCodec) Headers() []string {
	return []string{
		"id", "name", "contact_info", "contribution_history",
		"preferences", "tags", "status", "created_at", "updated_at",
	}
}

func (funderCodec) Encode(f entity.Funder) []string {
	return []string{
		f.ID,
		f.Name,
		encodeContact(f.ContactInfo),
		encodeList(f.ContributionHistory),
		encodeJSONMap(f.Preferences),
		encodeList(f.Tags),
		f.Status,
		encodeTime(f.CreatedAt),
		encodeTime(f.UpdatedAt),
	}
}

func (funderCodec) Decode(row []string) (entity.Funder, []ParseIssue, error) {
	var f entity.Funder
	f.ID = cell(row, 0)
	if f.ID == "" {
		return f, nil, fmt.Errorf("row has no id")
	}
	f.Name = cell(row, 1)

	p := &rowParser{}
	f.ContactInfo = p.Contact("contact_info", cell(row, 2))
	f.ContributionHistory = decodeList(cell(row, 3))
	f.Preferences = p.JSONMap("preferences", cell(row, 4))
	f.Tags = decodeList(cell(row, 5))
	f.Status = cell(row, 6)
	if f.Status == "" {
		f.Status = entity.FunderActive
	}
	f.CreatedAt = p.Time("created_at", cell(row, 7))
	f.UpdatedAt = p.Time("updated_at", cell(row, 8))
	return f, p.issues, nil
}

// FunderRepository adds funder-specific queries on top of the generic
// repository surface.
type FunderRepository struct {
	Repository[entity.Funder]
}

// NewFunderCodec returns the row codec for the funders sheet.
func NewFunderCodec() RowCodec[entity.Funder] { return funderCodec{} }

// NewFunderRepository wraps base, which is usually a Cached repository.
func NewFunderRepository(base Repository[entity.Funder]) *FunderRepository {
	return &FunderRepository{Repository: base}
}

// FindByName matches funder names case-insensitively on substring.
func (r *FunderRepository) FindByName(ctx context.Context, name string) ([]entity.Funder, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	matched := []entity.Funder{}
	for _, f := range all {
		if strings.Contains(strings.ToLower(f.Name), needle) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// FindByStatus returns funders in the given lifecycle status.
func (r *FunderRepository) FindByStatus(ctx context.Context, status string) ([]entity.Funder, error) {
	return r.FindByField(ctx, "status", status)
}

// ActiveFunders returns funders with active status.
func (r *FunderRepository) ActiveFunders(ctx context.Context) ([]entity.Funder, error) {
	return r.FindByStatus(ctx, entity.FunderActive)
}

// FindByTag returns funders carrying the given tag.
func (r *FunderRepository) FindByTag(ctx context.Context, tag string) ([]entity.Funder, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := []entity.Funder{}
	for _, f := range all {
		if f.HasTag(tag) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// AddContribution links a contribution id to the funder's history.
func (r *FunderRepository) AddContribution(ctx context.Context, funderID, contributionID string) (entity.Funder, error) {
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		f.AddContribution(contributionID)
		return f, nil
	})
}

// RemoveContribution unlinks a contribution id from the funder's history.
func (r *FunderRepository) RemoveContribution(ctx context.Context, funderID, contributionID string) (entity.Funder, error) {
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		f.RemoveContribution(contributionID)
		return f, nil
	})
}

// AddTag adds a tag once.
func (r *FunderRepository) AddTag(ctx context.Context, funderID, tag string) (entity.Funder, error) {
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		if !f.HasTag(tag) {
			f.Tags = append(f.Tags, tag)
			f.Touch()
		}
		return f, nil
	})
}

// RemoveTag drops a tag if present.
func (r *FunderRepository) RemoveTag(ctx context.Context, funderID, tag string) (entity.Funder, error) {
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		if i := slices.Index(f.Tags, tag); i >= 0 {
			f.Tags = slices.Delete(f.Tags, i, i+1)
			f.Touch()
		}
		return f, nil
	})
}

// UpdateContactInfo replaces the funder's contact details.
func (r *FunderRepository) UpdateContactInfo(ctx context.Context, funderID string, contact *entity.ContactInfo) (entity.Funder, error) {
	contact.Normalize()
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		f.ContactInfo = contact
		f.Touch()
		return f, nil
	})
}

// UpdateStatus moves the funder to a new lifecycle status.
func (r *FunderRepository) UpdateStatus(ctx context.Context, funderID, status string) (entity.Funder, error) {
	return r.Update(ctx, funderID, func(f entity.Funder) (entity.Funder, error) {
		f.Status = status
		f.Touch()
		return f, nil
	})
}
