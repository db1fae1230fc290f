package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/di"
	"github.com/fundwise/fundsheet/pkg/testsupport"
	"github.com/fundwise/fundsheet/repository"
)

func newTestPlanner(t *testing.T) (*TargetPlanner, *di.Container) {
	t.Helper()
	fake := testsupport.NewFakeTableStore()
	fake.Seed("states", [][]string{repository.NewStateCodec().Headers()})
	fake.Seed("state_targets", [][]string{repository.NewStateTargetCodec().Headers()})
	fake.Seed("contributions", [][]string{repository.NewContributionCodec().Headers()})
	fake.Seed("funders", [][]string{repository.NewFunderCodec().Headers()})

	c, err := di.NewContainerWithDefaults(fake, "sheet-1", nil)
	require.NoError(t, err)
	return NewTargetPlanner(c, nil), c
}

func seedState(t *testing.T, c *di.Container, code, name string) {
	t.Helper()
	_, err := c.States().Create(context.Background(), entity.NewState(code, name))
	require.NoError(t, err)
}

func seedContribution(t *testing.T, c *di.Container, state, year string, amount int64, status entity.ContributionStatus) {
	t.Helper()
	contrib := entity.NewContribution("funder-1", state, year, decimal.NewFromInt(amount))
	contrib.Status = status
	_, err := c.Contributions().Create(context.Background(), contrib)
	require.NoError(t, err)
}

func TestPreviousYearFunding(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedContribution(t, c, "CA", "2024-25", 50000, entity.ContributionConfirmed)
	seedContribution(t, c, "CA", "2024-25", 30000, entity.ContributionReceived)
	seedContribution(t, c, "CA", "2024-25", 20000, entity.ContributionPending)
	seedContribution(t, c, "CA", "2025-26", 99999, entity.ContributionConfirmed)
	seedContribution(t, c, "TX", "2024-25", 11111, entity.ContributionConfirmed)

	total, err := planner.PreviousYearFunding(ctx, "CA", "2025-26")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(80000)), "got %s", total)
}

func TestPreviousYearFundingRejectsBadYear(t *testing.T) {
	planner, _ := newTestPlanner(t)
	_, err := planner.PreviousYearFunding(context.Background(), "CA", "FY26")
	assert.Error(t, err)
}

func TestEnsureTargetUsesPreviousYearDefault(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedContribution(t, c, "CA", "2024-25", 75000, entity.ContributionConfirmed)

	target, err := planner.EnsureTarget(ctx, "ca", "2025-26", nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "CA", target.StateCode)
	assert.Equal(t, "2025-26", target.FiscalYear)
	assert.True(t, target.TargetAmount.Equal(decimal.NewFromInt(75000)))
	assert.Equal(t, 1, target.Priority)
	assert.Contains(t, target.Description, "previous year funding")
}

func TestEnsureTargetFallsBackWhenNoHistory(t *testing.T) {
	planner, _ := newTestPlanner(t)

	target, err := planner.EnsureTarget(context.Background(), "WY", "2025-26", nil, "", 2)
	require.NoError(t, err)
	assert.True(t, target.TargetAmount.Equal(DefaultTargetAmount))
	assert.Equal(t, 2, target.Priority)
}

func TestEnsureTargetHonorsCustomAmount(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedContribution(t, c, "CA", "2024-25", 75000, entity.ContributionConfirmed)

	custom := decimal.NewFromInt(120000)
	target, err := planner.EnsureTarget(ctx, "CA", "2025-26", &custom, "", 0)
	require.NoError(t, err)
	assert.True(t, target.TargetAmount.Equal(custom))
	assert.Contains(t, target.Description, "Custom target")
}

func TestEnsureTargetReturnsExisting(t *testing.T) {
	planner, _ := newTestPlanner(t)
	ctx := context.Background()

	first, err := planner.EnsureTarget(ctx, "CA", "2025-26", nil, "", 0)
	require.NoError(t, err)

	custom := decimal.NewFromInt(999)
	second, err := planner.EnsureTarget(ctx, "CA", "2025-26", &custom, "", 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.TargetAmount.Equal(first.TargetAmount))
}

func TestInitializeTargets(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedState(t, c, "CA", "California")
	seedState(t, c, "TX", "Texas")
	seedContribution(t, c, "CA", "2024-25", 60000, entity.ContributionReceived)

	results, err := planner.InitializeTargets(ctx, "2025-26", false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results["CA"].TargetAmount.Equal(decimal.NewFromInt(60000)))
	assert.True(t, results["TX"].TargetAmount.Equal(DefaultTargetAmount))
}

func TestInitializeTargetsKeepsExistingWithoutForce(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedState(t, c, "CA", "California")
	custom := decimal.NewFromInt(500000)
	_, err := planner.EnsureTarget(ctx, "CA", "2025-26", &custom, "", 0)
	require.NoError(t, err)

	results, err := planner.InitializeTargets(ctx, "2025-26", false)
	require.NoError(t, err)
	assert.True(t, results["CA"].TargetAmount.Equal(custom))

	seedContribution(t, c, "CA", "2024-25", 60000, entity.ContributionConfirmed)
	results, err = planner.InitializeTargets(ctx, "2025-26", true)
	require.NoError(t, err)
	assert.True(t, results["CA"].TargetAmount.Equal(decimal.NewFromInt(60000)))
}

func TestTargetVsActual(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	ca := decimal.NewFromInt(100000)
	tx := decimal.NewFromInt(50000)
	ny := decimal.NewFromInt(80000)
	_, err := planner.EnsureTarget(ctx, "CA", "2025-26", &ca, "", 0)
	require.NoError(t, err)
	_, err = planner.EnsureTarget(ctx, "TX", "2025-26", &tx, "", 0)
	require.NoError(t, err)
	_, err = planner.EnsureTarget(ctx, "NY", "2025-26", &ny, "", 0)
	require.NoError(t, err)

	seedContribution(t, c, "CA", "2025-26", 110000, entity.ContributionConfirmed)
	seedContribution(t, c, "TX", "2025-26", 40000, entity.ContributionReceived)
	seedContribution(t, c, "NY", "2025-26", 20000, entity.ContributionConfirmed)
	seedContribution(t, c, "NY", "2025-26", 99999, entity.ContributionPending)

	results, err := planner.TargetVsActual(ctx, "2025-26")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Sorted by state code: CA, NY, TX.
	assert.Equal(t, "CA", results[0].StateCode)
	assert.Equal(t, StatusAhead, results[0].Status)
	assert.InDelta(t, 110.0, results[0].PercentAchieved, 0.001)
	assert.True(t, results[0].Difference.Equal(decimal.NewFromInt(10000)))

	assert.Equal(t, "NY", results[1].StateCode)
	assert.Equal(t, StatusBehind, results[1].Status)
	assert.InDelta(t, 25.0, results[1].PercentAchieved, 0.001)

	assert.Equal(t, "TX", results[2].StateCode)
	assert.Equal(t, StatusOnTrack, results[2].Status)
	assert.InDelta(t, 80.0, results[2].PercentAchieved, 0.001)
}

func TestStatesNeedingAttention(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	amt := decimal.NewFromInt(100000)
	for _, code := range []string{"CA", "TX", "NY"} {
		_, err := planner.EnsureTarget(ctx, code, "2025-26", &amt, "", 0)
		require.NoError(t, err)
	}
	seedContribution(t, c, "CA", "2025-26", 90000, entity.ContributionConfirmed)
	seedContribution(t, c, "TX", "2025-26", 40000, entity.ContributionConfirmed)
	seedContribution(t, c, "NY", "2025-26", 10000, entity.ContributionConfirmed)

	items, err := planner.StatesNeedingAttention(ctx, "2025-26", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Worst first.
	assert.Equal(t, "NY", items[0].StateCode)
	assert.True(t, items[0].Shortfall.Equal(decimal.NewFromInt(90000)))
	assert.Equal(t, "TX", items[1].StateCode)

	// A looser threshold pulls CA in too.
	items, err = planner.StatesNeedingAttention(ctx, "2025-26", 0.95)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestResetTargetsToPreviousYear(t *testing.T) {
	planner, c := newTestPlanner(t)
	ctx := context.Background()

	seedState(t, c, "CA", "California")
	custom := decimal.NewFromInt(999999)
	_, err := planner.EnsureTarget(ctx, "CA", "2025-26", &custom, "", 0)
	require.NoError(t, err)

	seedContribution(t, c, "CA", "2024-25", 45000, entity.ContributionConfirmed)

	results, err := planner.ResetTargetsToPreviousYear(ctx, "2025-26")
	require.NoError(t, err)
	assert.True(t, results["CA"].TargetAmount.Equal(decimal.NewFromInt(45000)))
}
