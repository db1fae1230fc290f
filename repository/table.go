package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/store"
)

// Repository is the typed data-access surface shared by the base table
// implementation and the caching decorator.
type Repository[T entity.Entity] interface {
	Table() string
	Create(ctx context.Context, record T) (T, error)
	BatchCreate(ctx context.Context, records []T) ([]T, error)
	GetAll(ctx context.Context) ([]T, error)
	GetByID(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, id string, mutate func(T) (T, error)) (T, error)
	Delete(ctx context.Context, id string) error
	FindByField(ctx context.Context, field, value string) ([]T, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
	HealthCheck(ctx context.Context) bool
}

// Table is the base Repository implementation over one sheet. Row 1
// holds the codec's headers; data rows start at row 2. Deleted rows are
// cleared in place so the row numbers of later records never shift.
type Table[T entity.Entity] struct {
	store   store.TableStore
	tableID string
	codec   RowCodec[T]
	log     *zap.Logger
}

var _ Repository[entity.Funder] = (*Table[entity.Funder])(nil)

// NewTable builds a base repository for one sheet.
func NewTable[T entity.Entity](ts store.TableStore, tableID string, codec RowCodec[T], log *zap.Logger) *Table[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table[T]{
		store:   ts,
		tableID: tableID,
		codec:   codec,
		log:     log.With(zap.String("table", codec.Table())),
	}
}

// Table implements Repository.
func (t *Table[T]) Table() string { return t.codec.Table() }

// dataRange addresses the whole sheet including the header row.
func (t *Table[T]) dataRange() string {
	endCol := columnLetter(len(t.codec.Headers()))
	return fmt.Sprintf("%s!A1:%s", t.codec.Table(), endCol)
}

// rowRange addresses one data row. n is 1-based and includes the header
// row, so the first data row is 2.
func (t *Table[T]) rowRange(n int) string {
	endCol := columnLetter(len(t.codec.Headers()))
	return fmt.Sprintf("%s!A%d:%s%d", t.codec.Table(), n, endCol, n)
}

// readRows fetches the raw sheet and decodes data rows, keeping their
// 1-based row numbers. Blank rows left by deletions are skipped, as are
// rows the codec rejects outright; cells that fail to parse keep the
// row, with the field default substituted and a warning logged.
func (t *Table[T]) readRows(ctx context.Context) ([]T, []int, error) {
	raw, err := t.store.ReadRange(ctx, t.tableID, t.dataRange())
	if err != nil {
		return nil, nil, err
	}

	var records []T
	var rowNums []int
	for i, row := range raw {
		if i == 0 || isBlankRow(row) {
			continue
		}
		record, issues, err := t.codec.Decode(row)
		if err != nil {
			t.log.Warn("skipping malformed row", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		for _, issue := range issues {
			t.log.Warn("substituted default for unparseable cell",
				zap.Int("row", i+1),
				zap.String("field", issue.Field),
				zap.String("value", issue.Value),
				zap.Error(issue.Err))
		}
		records = append(records, record)
		rowNums = append(rowNums, i+1)
	}
	return records, rowNums, nil
}

// Create implements Repository. The record is validated and appended;
// identifier uniqueness is the caller's responsibility (the caching
// decorator guards it against its snapshot).
func (t *Table[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	if err := record.Validate(); err != nil {
		return zero, &ValidationError{Table: t.Table(), Err: err}
	}
	if err := t.store.AppendRows(ctx, t.tableID, t.dataRange(), [][]string{t.codec.Encode(record)}); err != nil {
		return zero, err
	}
	t.log.Debug("created record", zap.String("id", record.EntityID()))
	return record, nil
}

// BatchCreate implements Repository. All records are validated and
// checked for in-batch id collisions before anything is written; the
// append itself is a single call.
func (t *Table[T]) BatchCreate(ctx context.Context, records []T) ([]T, error) {
	if len(records) == 0 {
		return []T{}, nil
	}

	seen := map[string]bool{}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, &ValidationError{Table: t.Table(), Err: err}
		}
		if seen[r.EntityID()] {
			return nil, &DuplicateError{Table: t.Table(), ID: r.EntityID()}
		}
		seen[r.EntityID()] = true
		rows = append(rows, t.codec.Encode(r))
	}

	if err := t.store.AppendRows(ctx, t.tableID, t.dataRange(), rows); err != nil {
		return nil, err
	}
	t.log.Debug("created records", zap.Int("count", len(records)))
	return records, nil
}

// GetAll implements Repository.
func (t *Table[T]) GetAll(ctx context.Context) ([]T, error) {
	records, _, err := t.readRows(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// GetByID implements Repository.
func (t *Table[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	records, _, err := t.readRows(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if r.EntityID() == id {
			return r, nil
		}
	}
	return zero, &NotFoundError{Table: t.Table(), ID: id}
}

// Update implements Repository. The stored record is decoded, passed to
// mutate, revalidated and written back to its row.
func (t *Table[T]) Update(ctx context.Context, id string, mutate func(T) (T, error)) (T, error) {
	var zero T
	records, rowNums, err := t.readRows(ctx)
	if err != nil {
		return zero, err
	}
	for i, r := range records {
		if r.EntityID() != id {
			continue
		}
		updated, err := mutate(r)
		if err != nil {
			return zero, err
		}
		if updated.EntityID() != id {
			return zero, fmt.Errorf("%s: update may not change the record id", t.Table())
		}
		if err := updated.Validate(); err != nil {
			return zero, &ValidationError{Table: t.Table(), Err: err}
		}
		rng := t.rowRange(rowNums[i])
		if err := t.store.WriteRange(ctx, t.tableID, rng, [][]string{t.codec.Encode(updated)}); err != nil {
			return zero, err
		}
		t.log.Debug("updated record", zap.String("id", id), zap.Int("row", rowNums[i]))
		return updated, nil
	}
	return zero, &NotFoundError{Table: t.Table(), ID: id}
}

// Delete implements Repository. The record's row is cleared rather than
// removed so later rows keep their positions.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	records, rowNums, err := t.readRows(ctx)
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.EntityID() != id {
			continue
		}
		rng := t.rowRange(rowNums[i])
		if err := t.store.ClearRange(ctx, t.tableID, rng); err != nil {
			return err
		}
		t.log.Debug("deleted record", zap.String("id", id), zap.Int("row", rowNums[i]))
		return nil
	}
	return &NotFoundError{Table: t.Table(), ID: id}
}

// FindByField implements Repository. field matches a struct field by its
// json tag or name, case-insensitively; values are compared by their
// string rendering.
func (t *Table[T]) FindByField(ctx context.Context, field, value string) ([]T, error) {
	records, _, err := t.readRows(ctx)
	if err != nil {
		return nil, err
	}
	matched := []T{}
	for _, r := range records {
		fv, ok := fieldValue(r, field)
		if !ok {
			return nil, fmt.Errorf("%s: unknown field %q", t.Table(), field)
		}
		if strings.EqualFold(fmt.Sprintf("%v", fv), value) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// Count implements Repository.
func (t *Table[T]) Count(ctx context.Context) (int, error) {
	records, _, err := t.readRows(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Exists implements Repository.
func (t *Table[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := t.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// HealthCheck implements Repository. The store must respond and, when a
// table is configured, its metadata must be readable.
func (t *Table[T]) HealthCheck(ctx context.Context) bool {
	if !t.store.HealthCheck(ctx) {
		return false
	}
	if t.tableID == "" {
		return true
	}
	if _, err := t.store.Metadata(ctx, t.tableID); err != nil {
		t.log.Warn("table metadata unavailable", zap.String("table", t.Table()), zap.Error(err))
		return false
	}
	return true
}

// fieldValue resolves a field on a record by json tag or Go name.
func fieldValue(record any, field string) (any, bool) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	rt := v.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if strings.EqualFold(field, f.Name) || (tag != "" && strings.EqualFold(field, tag)) {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}
