package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/testsupport"
)

func seedTargets(f *testsupport.FakeTableStore, targets ...entity.StateTarget) {
	codec := stateTargetCodec{}
	rows := [][]string{codec.Headers()}
	for _, t := range targets {
		rows = append(rows, codec.Encode(t))
	}
	f.Seed(codec.Table(), rows)
}

func newTargetRepo(fake *testsupport.FakeTableStore) *StateTargetRepository {
	return NewStateTargetRepository(NewTable[entity.StateTarget](fake, testTableID, stateTargetCodec{}, nil))
}

func TestFindByStateAndYearUnique(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	ca := entity.NewStateTarget("CA", "2024-25", money(100000))
	caPrior := entity.NewStateTarget("CA", "2023-24", money(80000))
	tx := entity.NewStateTarget("TX", "2024-25", money(60000))
	seedTargets(fake, ca, caPrior, tx)
	repo := newTargetRepo(fake)
	ctx := context.Background()

	got, err := repo.FindByStateAndYear(ctx, "ca", "2024-25")
	require.NoError(t, err)
	assert.Equal(t, ca.ID, got.ID)

	_, err = repo.FindByStateAndYear(ctx, "NY", "2024-25")
	assert.True(t, IsNotFound(err))
}

func TestHighPriorityTargetsSorted(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	low := entity.NewStateTarget("CA", "2024-25", money(1))
	low.Priority = 4
	urgent := entity.NewStateTarget("TX", "2024-25", money(2))
	urgent.Priority = 1
	second := entity.NewStateTarget("NY", "2024-25", money(3))
	second.Priority = 2
	seedTargets(fake, low, urgent, second)
	repo := newTargetRepo(fake)

	got, err := repo.HighPriorityTargets(context.Background(), "2024-25")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TX", got[0].StateCode)
	assert.Equal(t, "NY", got[1].StateCode)
}

func TestTotalTargetByFiscalYearAndSummary(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	ca := entity.NewStateTarget("CA", "2024-25", money(100000))
	tx := entity.NewStateTarget("TX", "2024-25", money(50000))
	tx.Priority = 3
	prior := entity.NewStateTarget("CA", "2023-24", money(77000))
	seedTargets(fake, ca, tx, prior)
	repo := newTargetRepo(fake)
	ctx := context.Background()

	total, err := repo.TotalTargetByFiscalYear(ctx, "2024-25")
	require.NoError(t, err)
	assert.True(t, money(150000).Equal(total))

	summary, err := repo.Summary(ctx, "2024-25")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 1, summary.HighPriority)
	assert.Equal(t, []string{"CA", "TX"}, summary.StateCodes)
}

func TestStatesWithoutTargets(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedTargets(fake, entity.NewStateTarget("CA", "2024-25", money(1)))
	repo := newTargetRepo(fake)

	missing, err := repo.StatesWithoutTargets(context.Background(), "2024-25", []string{"tx", "CA", "NY"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NY", "TX"}, missing)
}

func TestCreateOrUpdateTarget(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedTargets(fake)
	repo := newTargetRepo(fake)
	ctx := context.Background()

	created, err := repo.CreateOrUpdateTarget(ctx, "CA", "2024-25", money(100000))
	require.NoError(t, err)
	assert.Equal(t, "CA", created.StateCode)

	updated, err := repo.CreateOrUpdateTarget(ctx, "CA", "2024-25", money(120000))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID, "same (state, year) pair updates in place")
	assert.True(t, money(120000).Equal(updated.TargetAmount))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdatePriorityValidatesBounds(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	target := entity.NewStateTarget("CA", "2024-25", money(1000))
	seedTargets(fake, target)
	repo := newTargetRepo(fake)
	ctx := context.Background()

	updated, err := repo.UpdatePriority(ctx, target.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Priority)

	_, err = repo.UpdatePriority(ctx, target.ID, 9)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
