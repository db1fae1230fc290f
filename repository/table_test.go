package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/testsupport"
)

const testTableID = "sheet-1"

func seedFunders(f *testsupport.FakeTableStore, funders ...entity.Funder) {
	codec := funderCodec{}
	rows := [][]string{codec.Headers()}
	for _, fd := range funders {
		rows = append(rows, codec.Encode(fd))
	}
	f.Seed(codec.Table(), rows)
}

func newFunderTable(f *testsupport.FakeTableStore) *Table[entity.Funder] {
	return NewTable[entity.Funder](f, testTableID, funderCodec{}, nil)
}

func TestTableCreateAndGet(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake)
	repo := newFunderTable(fake)
	ctx := context.Background()

	funder := entity.NewFunder("Alpha Foundation")
	created, err := repo.Create(ctx, funder)
	require.NoError(t, err)
	assert.Equal(t, funder.ID, created.ID)

	got, err := repo.GetByID(ctx, funder.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Foundation", got.Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTableCreateRejectsInvalid(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake)
	repo := newFunderTable(fake)

	funder := entity.NewFunder("")
	_, err := repo.Create(context.Background(), funder)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, fake.Appends, "invalid records never reach the store")
}

func TestTableCreateIsAppendOnly(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake, entity.NewFunder("Alpha Foundation"))
	repo := newFunderTable(fake)

	_, err := repo.Create(context.Background(), entity.NewFunder("Beta Trust"))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Appends)
	assert.Equal(t, 0, fake.Reads, "create never scans the table")
}

func TestTableGetByIDNotFound(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake, entity.NewFunder("Alpha Foundation"))
	repo := newFunderTable(fake)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestTableUpdateWritesCorrectRow(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	first := entity.NewFunder("Alpha Foundation")
	second := entity.NewFunder("Beta Trust")
	third := entity.NewFunder("Gamma Fund")
	seedFunders(fake, first, second, third)
	repo := newFunderTable(fake)

	updated, err := repo.Update(context.Background(), second.ID, func(f entity.Funder) (entity.Funder, error) {
		f.Name = "Beta Charitable Trust"
		f.Touch()
		return f, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Beta Charitable Trust", updated.Name)

	rows := fake.Rows("funders")
	assert.Equal(t, second.ID, rows[2][0], "middle row was rewritten in place")
	assert.Equal(t, "Beta Charitable Trust", rows[2][1])
	assert.Equal(t, "Alpha Foundation", rows[1][1], "neighboring rows untouched")
	assert.Equal(t, "Gamma Fund", rows[3][1])
}

func TestTableUpdateRejectsIDChange(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	funder := entity.NewFunder("Alpha Foundation")
	seedFunders(fake, funder)
	repo := newFunderTable(fake)

	_, err := repo.Update(context.Background(), funder.ID, func(f entity.Funder) (entity.Funder, error) {
		f.ID = "other"
		return f, nil
	})
	assert.ErrorContains(t, err, "may not change")
}

func TestTableDeleteClearsCorrectRow(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	first := entity.NewFunder("Alpha Foundation")
	second := entity.NewFunder("Beta Trust")
	third := entity.NewFunder("Gamma Fund")
	seedFunders(fake, first, second, third)
	repo := newFunderTable(fake)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, second.ID))

	rows := fake.Rows("funders")
	assert.Empty(t, rows[2], "row 3 cleared, not removed")
	assert.Equal(t, first.ID, rows[1][0])
	assert.Equal(t, third.ID, rows[3][0], "later rows keep their positions")

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2, "blank row is skipped on read")

	_, err = repo.GetByID(ctx, second.ID)
	assert.True(t, IsNotFound(err))
}

func TestTableDeleteThenCreateReusesAppend(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	first := entity.NewFunder("Alpha Foundation")
	seedFunders(fake, first)
	repo := newFunderTable(fake)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, first.ID))

	replacement := entity.NewFunder("Delta Fund")
	_, err := repo.Create(ctx, replacement)
	require.NoError(t, err)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Delta Fund", all[0].Name)
}

func TestTableToleratesMalformedRows(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	good := entity.NewFunder("Alpha Foundation")
	codec := funderCodec{}
	fake.Seed("funders", [][]string{
		codec.Headers(),
		codec.Encode(good),
		{"", "row without id"},
		{"bad-json", "Broken", "", "", "{not json", "", "active", "", ""},
	})
	repo := newFunderTable(fake)

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2, "id-less rows are skipped, bad cells only lose the cell")
	assert.Equal(t, good.ID, all[0].ID)
	assert.Equal(t, "bad-json", all[1].ID)
	assert.Equal(t, map[string]any{}, all[1].Preferences, "unparseable cell falls back to its default")
}

func TestTableUpdateMissingIDNoWrite(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake, entity.NewFunder("Alpha Foundation"))
	repo := newFunderTable(fake)

	_, err := repo.Update(context.Background(), "missing", func(f entity.Funder) (entity.Funder, error) {
		f.Name = "Renamed"
		return f, nil
	})
	assert.True(t, IsNotFound(err))
	assert.Zero(t, fake.Writes, "no write is issued for an unknown id")
}

func TestTableBatchCreate(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake)
	repo := newFunderTable(fake)
	ctx := context.Background()

	batch := []entity.Funder{
		entity.NewFunder("Alpha Foundation"),
		entity.NewFunder("Beta Trust"),
		entity.NewFunder("Gamma Fund"),
	}
	created, err := repo.BatchCreate(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Equal(t, 1, fake.Appends, "batch is one append call")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTableBatchCreateRejectsDuplicateInBatch(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedFunders(fake)
	repo := newFunderTable(fake)

	funder := entity.NewFunder("Alpha Foundation")
	_, err := repo.BatchCreate(context.Background(), []entity.Funder{funder, funder})
	var dErr *DuplicateError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, 0, fake.Appends)
}

func TestTableFindByField(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	active := entity.NewFunder("Alpha Foundation")
	inactive := entity.NewFunder("Beta Trust")
	inactive.Status = entity.FunderInactive
	seedFunders(fake, active, inactive)
	repo := newFunderTable(fake)
	ctx := context.Background()

	matched, err := repo.FindByField(ctx, "status", "active")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, active.ID, matched[0].ID)

	// Go field names work as well as json tags.
	matched, err = repo.FindByField(ctx, "Status", "inactive")
	require.NoError(t, err)
	require.Len(t, matched, 1)

	_, err = repo.FindByField(ctx, "no_such_field", "x")
	assert.ErrorContains(t, err, "unknown field")
}

func TestTableHealthCheck(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	repo := newFunderTable(fake)
	assert.True(t, repo.HealthCheck(context.Background()))

	fake.Unhealthy = true
	assert.False(t, repo.HealthCheck(context.Background()))
}

func TestTableHealthCheckRequiresMetadata(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	repo := newFunderTable(fake)

	fake.MetaErr = errors.New("document not accessible")
	assert.False(t, repo.HealthCheck(context.Background()),
		"a reachable store with an inaccessible document is not healthy")

	fake.MetaErr = nil
	assert.True(t, repo.HealthCheck(context.Background()))
}
