package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
)

var _ AnalyticsService = (*BasicAnalyticsService)(nil)

func newAnalyticsFixture(t *testing.T) (*BasicAnalyticsService, *MemoryItemService, *MemoryUserService) {
	t.Helper()

	items := NewMemoryItemService()
	users := NewMemoryUserService()
	items.SetNotifier(users)
	return NewBasicAnalyticsService(items, users), items, users
}

func TestTimeBucketKey(t *testing.T) {
	ts := time.Date(2024, 3, 7, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-07", TimeBucketKey(ts, BucketDay))
	assert.Equal(t, "2024-W10", TimeBucketKey(ts, BucketWeek))
	assert.Equal(t, "2024-03", TimeBucketKey(ts, BucketMonth))

	// ISO weeks at year boundaries belong to the neighboring ISO year.
	newYear := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W53", TimeBucketKey(newYear, BucketWeek))
}

func TestOverviewCounts(t *testing.T) {
	analytics, items, users := newAnalyticsFixture(t)
	ctx := context.Background()

	finder := registerTestUser(t, users, "Finn", "finn@campus.edu", "U1")
	claimant := registerTestUser(t, users, "Clara", "clara@campus.edu", "U2")

	found, err := items.ReportItem(ctx, finder, &models.ReportItemRequest{
		Type: models.ItemFound, Name: "Backpack", Category: "Bags", Location: "Library",
	})
	require.NoError(t, err)
	_, err = items.ReportItem(ctx, finder, &models.ReportItemRequest{
		Type: models.ItemLost, Name: "Umbrella", Category: "Other", Location: "Bus Stop",
	})
	require.NoError(t, err)

	claim, err := items.SubmitClaim(ctx, claimant, found.ID, &models.SubmitClaimRequest{Message: "mine"})
	require.NoError(t, err)
	_, err = items.ApproveClaim(ctx, finder, claim.ID)
	require.NoError(t, err)

	report, err := analytics.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.TotalItems)
	assert.Equal(t, int64(1), report.FoundItems)
	assert.Equal(t, int64(1), report.LostItems)
	assert.Equal(t, int64(1), report.ReturnedItems)
	assert.Equal(t, int64(1), report.TotalClaims)
	assert.Equal(t, int64(1), report.ApprovedClaims)
	assert.Equal(t, int64(0), report.PendingClaims)
	assert.Equal(t, int64(2), report.TotalUsers)
}

func TestGroupingsAndTopLists(t *testing.T) {
	analytics, items, users := newAnalyticsFixture(t)
	ctx := context.Background()

	finder := registerTestUser(t, users, "Finn", "finn@campus.edu", "U1")
	other := registerTestUser(t, users, "Olga", "olga@campus.edu", "U2")
	claimant := registerTestUser(t, users, "Clara", "clara@campus.edu", "U3")

	var popular *models.Item
	for i := 0; i < 3; i++ {
		item, err := items.ReportItem(ctx, finder, &models.ReportItemRequest{
			Type: models.ItemFound, Name: "Backpack blue", Category: "Bags", Location: "Library",
		})
		require.NoError(t, err)
		popular = item
	}
	_, err := items.ReportItem(ctx, other, &models.ReportItemRequest{
		Type: models.ItemLost, Name: "Umbrella red", Category: "Other", Location: "Bus Stop",
	})
	require.NoError(t, err)

	_, err = items.SubmitClaim(ctx, claimant, popular.ID, &models.SubmitClaimRequest{Message: "mine"})
	require.NoError(t, err)

	byType, err := analytics.ItemsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.BucketCount{{Key: "found", Count: 3}, {Key: "lost", Count: 1}}, byType)

	byCategory, err := analytics.ItemsByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.BucketCount{{Key: "Bags", Count: 3}, {Key: "Other", Count: 1}}, byCategory)

	claimsByStatus, err := analytics.ClaimsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.BucketCount{{Key: "pending", Count: 1}}, claimsByStatus)

	reporters, err := analytics.TopReporters(ctx, 5)
	require.NoError(t, err)
	require.Len(t, reporters, 2)
	assert.Equal(t, finder.ID, reporters[0].UserID)
	assert.Equal(t, int64(3), reporters[0].ItemCount)

	claimed, err := analytics.MostClaimedItems(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, popular.ID, claimed[0].ItemID)

	tags, err := analytics.PopularTags(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, models.TagCount{Tag: "backpack", Count: 3}, tags[0])

	_, err = analytics.ItemsOverTime(ctx, "year")
	assert.ErrorIs(t, err, ErrBadBucket)

	overTime, err := analytics.ItemsOverTime(ctx, BucketDay)
	require.NoError(t, err)
	require.Len(t, overTime, 1)
	assert.Equal(t, int64(4), overTime[0].Count)
}
