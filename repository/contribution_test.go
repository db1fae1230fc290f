package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/testsupport"
)

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func seedContributions(f *testsupport.FakeTableStore, contributions ...entity.Contribution) {
	codec := contributionCodec{}
	rows := [][]string{codec.Headers()}
	for _, c := range contributions {
		rows = append(rows, codec.Encode(c))
	}
	f.Seed(codec.Table(), rows)
}

func newContributionRepo(fake *testsupport.FakeTableStore) *ContributionRepository {
	return NewContributionRepository(NewTable[entity.Contribution](fake, testTableID, contributionCodec{}, nil))
}

func withStatus(c entity.Contribution, status entity.ContributionStatus) entity.Contribution {
	return c.WithStatus(status)
}

func TestTotalByStateCountsConfirmedAndReceivedOnly(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedContributions(fake,
		withStatus(entity.NewContribution("f-1", "CA", "2024-25", money(50000)), entity.ContributionConfirmed),
		withStatus(entity.NewContribution("f-2", "CA", "2024-25", money(30000)), entity.ContributionReceived),
		entity.NewContribution("f-3", "CA", "2024-25", money(20000)), // pending
		withStatus(entity.NewContribution("f-4", "CA", "2024-25", money(10000)), entity.ContributionCancelled),
		withStatus(entity.NewContribution("f-5", "TX", "2024-25", money(99999)), entity.ContributionConfirmed),
		withStatus(entity.NewContribution("f-6", "CA", "2023-24", money(11111)), entity.ContributionConfirmed),
	)
	repo := newContributionRepo(fake)

	total, err := repo.TotalByState(context.Background(), "CA", "2024-25")
	require.NoError(t, err)
	assert.True(t, money(80000).Equal(total), "want 80000, got %s", total)
}

func TestTotalByStateAllYearsWhenFiscalYearEmpty(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedContributions(fake,
		withStatus(entity.NewContribution("f-1", "CA", "2024-25", money(50000)), entity.ContributionConfirmed),
		withStatus(entity.NewContribution("f-2", "CA", "2023-24", money(11111)), entity.ContributionReceived),
		entity.NewContribution("f-3", "CA", "2023-24", money(20000)), // pending
		withStatus(entity.NewContribution("f-4", "TX", "2024-25", money(99999)), entity.ContributionConfirmed),
	)
	repo := newContributionRepo(fake)

	total, err := repo.TotalByState(context.Background(), "CA", "")
	require.NoError(t, err)
	assert.True(t, money(61111).Equal(total), "empty fiscal year sums every year, got %s", total)
}

func TestTotalByFunder(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedContributions(fake,
		withStatus(entity.NewContribution("f-1", "CA", "2024-25", money(5000)), entity.ContributionConfirmed),
		withStatus(entity.NewContribution("f-1", "TX", "2024-25", money(2500)), entity.ContributionReceived),
		withStatus(entity.NewContribution("f-1", "TX", "2023-24", money(4000)), entity.ContributionReceived),
		entity.NewContribution("f-1", "NY", "2024-25", money(1000)),
		withStatus(entity.NewContribution("f-2", "CA", "2024-25", money(7000)), entity.ContributionConfirmed),
	)
	repo := newContributionRepo(fake)
	ctx := context.Background()

	total, err := repo.TotalByFunder(ctx, "f-1", "2024-25")
	require.NoError(t, err)
	assert.True(t, money(7500).Equal(total))

	allYears, err := repo.TotalByFunder(ctx, "f-1", "")
	require.NoError(t, err)
	assert.True(t, money(11500).Equal(allYears))
}

func TestContributionFinders(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	confirmed := withStatus(entity.NewContribution("f-1", "CA", "2024-25", money(100)), entity.ContributionConfirmed)
	pending := entity.NewContribution("f-2", "tx", "2024-25", money(200))
	seedContributions(fake, confirmed, pending)
	repo := newContributionRepo(fake)
	ctx := context.Background()

	byFunder, err := repo.FindByFunder(ctx, "f-1")
	require.NoError(t, err)
	require.Len(t, byFunder, 1)
	assert.Equal(t, confirmed.ID, byFunder[0].ID)

	// State codes are normalized on write and on query.
	byState, err := repo.FindByState(ctx, "tx")
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, "TX", byState[0].StateCode)

	pendingList, err := repo.PendingContributions(ctx)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	assert.Equal(t, pending.ID, pendingList[0].ID)

	confirmedList, err := repo.ConfirmedContributions(ctx)
	require.NoError(t, err)
	assert.Len(t, confirmedList, 1)
}

func TestByDateRange(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	inRange := entity.NewContribution("f-1", "CA", "2024-25", money(100))
	inRange.Date = &jan
	outOfRange := entity.NewContribution("f-2", "CA", "2024-25", money(200))
	outOfRange.Date = &jun
	undated := entity.NewContribution("f-3", "CA", "2024-25", money(300))
	seedContributions(fake, inRange, outOfRange, undated)
	repo := newContributionRepo(fake)

	matched, err := repo.ByDateRange(context.Background(),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, inRange.ID, matched[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	c := entity.NewContribution("f-1", "CA", "2024-25", money(100))
	seedContributions(fake, c)
	repo := newContributionRepo(fake)
	ctx := context.Background()

	updated, err := repo.UpdateStatus(ctx, c.ID, entity.ContributionConfirmed)
	require.NoError(t, err)
	assert.Equal(t, entity.ContributionConfirmed, updated.Status)

	_, err = repo.UpdateStatus(ctx, c.ID, entity.ContributionStatus("bogus"))
	assert.Error(t, err)
	assert.Equal(t, 1, fake.Writes, "invalid status never reaches the store")
}

func TestSummaryByFiscalYear(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedContributions(fake,
		withStatus(entity.NewContribution("f-1", "CA", "2024-25", money(1000)), entity.ContributionConfirmed),
		entity.NewContribution("f-2", "CA", "2024-25", money(500)),
		withStatus(entity.NewContribution("f-3", "TX", "2023-24", money(750)), entity.ContributionReceived),
	)
	repo := newContributionRepo(fake)

	summaries, err := repo.SummaryByFiscalYear(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	current := summaries["2024-25"]
	assert.Equal(t, 2, current.Count)
	assert.True(t, money(1000).Equal(current.Total), "pending amounts stay out of the total")
	assert.True(t, money(500).Equal(current.ByStatus[entity.ContributionPending]))
	assert.True(t, money(1000).Equal(current.ByState["CA"]))

	prior := summaries["2023-24"]
	assert.Equal(t, 1, prior.Count)
	assert.True(t, money(750).Equal(prior.Total))
}

func TestContributionRowRoundTrip(t *testing.T) {
	codec := contributionCodec{}
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	original := entity.NewContribution("f-1", "CA", "2024-25", decimal.NewFromFloat(1234.56))
	original.Date = &date
	original.Description = "Spring grant"
	original.Metadata = map[string]any{"source": "gala"}

	decoded, issues, err := codec.Decode(codec.Encode(original))
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, original.ID, decoded.ID)
	assert.True(t, original.Amount.Equal(decoded.Amount))
	assert.Equal(t, original.StateCode, decoded.StateCode)
	assert.Equal(t, "Spring grant", decoded.Description)
	require.NotNil(t, decoded.Date)
	assert.True(t, date.Equal(*decoded.Date))
	assert.Equal(t, "gala", decoded.Metadata["source"])
}

func TestContributionDecodeTolerantOfCurrencyFormatting(t *testing.T) {
	codec := contributionCodec{}
	row := []string{"c-1", "f-1", "CA", "2024-25", "$12,500.00", "", "confirmed"}

	decoded, issues, err := codec.Decode(row)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.True(t, decimal.NewFromFloat(12500).Equal(decoded.Amount))
	assert.Equal(t, entity.ContributionConfirmed, decoded.Status)
	assert.Equal(t, map[string]any{}, decoded.Metadata, "short rows default trailing columns")
}

func TestContributionDecodeReportsFieldIssues(t *testing.T) {
	codec := contributionCodec{}
	row := []string{"c-1", "f-1", "CA", "2024-25", "not-a-number", "", "confirmed", "", "{bad json"}

	decoded, issues, err := codec.Decode(row)
	require.NoError(t, err, "unparseable cells keep the row")
	require.Len(t, issues, 2)
	assert.Equal(t, "amount", issues[0].Field)
	assert.Equal(t, "not-a-number", issues[0].Value)
	assert.Equal(t, "metadata", issues[1].Field)
	assert.True(t, decoded.Amount.IsZero())
	assert.Equal(t, map[string]any{}, decoded.Metadata)
	assert.Equal(t, entity.ContributionConfirmed, decoded.Status, "clean cells decode normally")
}
