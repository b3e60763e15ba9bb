package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
)

func newLifecycleFixture(t *testing.T) (*MemoryItemService, *MemoryUserService, *models.User, *models.User, *models.User) {
	t.Helper()

	users := NewMemoryUserService()
	items := NewMemoryItemService()
	items.SetNotifier(users)

	finder := registerTestUser(t, users, "Finn Finder", "finder@campus.edu", "U100")
	claimant := registerTestUser(t, users, "Clara Claimant", "clara@campus.edu", "U200")
	admin := registerTestUser(t, users, "Ada Admin", "admin@campus.edu", "U900")
	admin.Role = models.RoleAdmin

	return items, users, finder, claimant, admin
}

func registerTestUser(t *testing.T, users *MemoryUserService, name, email, universityID string) *models.User {
	t.Helper()
	user, err := users.Register(context.Background(), &models.RegisterRequest{
		Name:         name,
		Email:        email,
		UniversityID: universityID,
		Password:     "hunter22",
	})
	require.NoError(t, err)
	return user
}

func reportFoundItem(t *testing.T, items *MemoryItemService, reporter *models.User) *models.Item {
	t.Helper()
	item, err := items.ReportItem(context.Background(), reporter, &models.ReportItemRequest{
		Type:        models.ItemFound,
		Name:        "Blue Backpack",
		Description: "Found near the library entrance",
		Category:    "Bags",
		Location:    "Main Library",
	})
	require.NoError(t, err)
	return item
}

func submitClaim(t *testing.T, items *MemoryItemService, claimant *models.User, itemID string) *models.Claim {
	t.Helper()
	claim, err := items.SubmitClaim(context.Background(), claimant, itemID, &models.SubmitClaimRequest{
		Message: "That is my backpack, it has my chemistry notes inside",
	})
	require.NoError(t, err)
	return claim
}

func TestSubmitClaimMarksItemClaimPending(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	assert.Equal(t, models.StatusAvailable, item.Status)

	claim := submitClaim(t, items, claimant, item.ID)
	assert.Equal(t, models.ClaimPending, claim.Status)
	assert.Equal(t, finder.ID, claim.OwnerID)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimPending, got.Status)
	assert.Equal(t, 1, got.Stats.TotalClaims)
	assert.Equal(t, 1, got.Stats.PendingClaims)
	require.NotNil(t, got.LastClaim)
	assert.Equal(t, claim.ID, got.LastClaim.ClaimID)
}

func TestSubmitClaimNotifiesReporter(t *testing.T) {
	items, users, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	submitClaim(t, items, claimant, item.ID)

	notifications, err := users.ListNotifications(ctx, finder.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotifyNewClaim, notifications[0].Kind)
	assert.Equal(t, item.ID, notifications[0].ItemID)
}

func TestSubmitClaimAllowedWhileClaimPending(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	users := NewMemoryUserService()
	second := registerTestUser(t, users, "Sam Second", "sam@campus.edu", "U300")

	item := reportFoundItem(t, items, finder)
	submitClaim(t, items, claimant, item.ID)
	submitClaim(t, items, second, item.ID)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimPending, got.Status)
	assert.Equal(t, 2, got.Stats.PendingClaims)
}

func TestSubmitClaimRejectsLostItems(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	lost, err := items.ReportItem(ctx, finder, &models.ReportItemRequest{
		Type:     models.ItemLost,
		Name:     "Silver Watch",
		Category: "Jewelry",
		Location: "Gym",
	})
	require.NoError(t, err)

	_, err = items.SubmitClaim(ctx, claimant, lost.ID, &models.SubmitClaimRequest{Message: "mine"})
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestSubmitClaimRejectsSelfClaim(t *testing.T) {
	items, _, finder, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	_, err := items.SubmitClaim(ctx, finder, item.ID, &models.SubmitClaimRequest{Message: "mine"})
	assert.ErrorIs(t, err, ErrSelfClaim)
}

func TestSubmitClaimRejectsDuplicatePending(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	submitClaim(t, items, claimant, item.ID)

	_, err := items.SubmitClaim(ctx, claimant, item.ID, &models.SubmitClaimRequest{Message: "still mine"})
	assert.ErrorIs(t, err, ErrDuplicateClaim)
}

func TestSubmitClaimAllowedAfterRejection(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	_, err := items.RejectClaim(ctx, finder, claim.ID, "Not enough proof")
	require.NoError(t, err)

	// A rejected claimant may try again.
	again := submitClaim(t, items, claimant, item.ID)
	assert.Equal(t, models.ClaimPending, again.Status)
}

func TestApproveClaimRejectsSiblingsAndReturnsItem(t *testing.T) {
	items, users, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	second := registerTestUser(t, users, "Sam Second", "sam@campus.edu", "U300")

	item := reportFoundItem(t, items, finder)
	winner := submitClaim(t, items, claimant, item.ID)
	loser := submitClaim(t, items, second, item.ID)

	approved, err := items.ApproveClaim(ctx, finder, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, approved.Status)
	assert.Equal(t, finder.ID, approved.ResolvedBy)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, got.Status)
	assert.Equal(t, claimant.ID, got.ClaimedBy)
	require.NotNil(t, got.ResolvedDate)
	assert.Equal(t, 0, got.Stats.PendingClaims)
	assert.Equal(t, 1, got.Stats.ApprovedClaims)

	rejected, err := items.GetClaim(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	assert.Equal(t, RejectedSiblingReason, rejected.Response)

	// Winner gets an approval notification, loser a rejection.
	winnerNotes, err := users.ListNotifications(ctx, claimant.ID)
	require.NoError(t, err)
	require.NotEmpty(t, winnerNotes)
	assert.Equal(t, models.NotifyClaimApproved, winnerNotes[0].Kind)

	loserNotes, err := users.ListNotifications(ctx, second.ID)
	require.NoError(t, err)
	require.NotEmpty(t, loserNotes)
	assert.Equal(t, models.NotifyClaimRejected, loserNotes[0].Kind)
}

func TestApproveClaimTwiceFails(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	_, err := items.ApproveClaim(ctx, finder, claim.ID)
	require.NoError(t, err)

	_, err = items.ApproveClaim(ctx, finder, claim.ID)
	assert.ErrorIs(t, err, ErrClaimResolved)
}

func TestRejectLastClaimRevertsItemToAvailable(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	rejected, err := items.RejectClaim(ctx, finder, claim.ID, "Wrong color described")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	assert.Equal(t, "Wrong color described", rejected.Response)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, got.Status)
	assert.Equal(t, 0, got.Stats.PendingClaims)
}

func TestRejectKeepsItemClaimPendingWhileOthersRemain(t *testing.T) {
	items, users, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	second := registerTestUser(t, users, "Sam Second", "sam@campus.edu", "U300")

	item := reportFoundItem(t, items, finder)
	first := submitClaim(t, items, claimant, item.ID)
	submitClaim(t, items, second, item.ID)

	_, err := items.RejectClaim(ctx, finder, first.ID, "no proof")
	require.NoError(t, err)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimPending, got.Status)
	assert.Equal(t, 1, got.Stats.PendingClaims)
}

func TestClaimResolutionRequiresReporterOrAdmin(t *testing.T) {
	items, users, finder, claimant, admin := newLifecycleFixture(t)
	ctx := context.Background()

	stranger := registerTestUser(t, users, "Eve Else", "eve@campus.edu", "U400")

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	_, err := items.ApproveClaim(ctx, stranger, claim.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = items.RejectClaim(ctx, claimant, claim.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// No state change from the denied attempts.
	got, err := items.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPending, got.Status)

	// Admin can resolve anyone's item.
	_, err = items.ApproveClaim(ctx, admin, claim.ID)
	assert.NoError(t, err)
}

func TestMarkReturnedVerifiesClaimBelongsToItem(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	itemA := reportFoundItem(t, items, finder)
	itemB := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, itemA.ID)

	_, err := items.MarkReturned(ctx, finder, itemB.ID, claim.ID)
	assert.ErrorIs(t, err, ErrClaimNotFound)

	resolved, err := items.MarkReturned(ctx, finder, itemA.ID, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, resolved.Status)
}

func TestContactClaimantAppendsHistoryAndNotifies(t *testing.T) {
	items, users, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	updated, err := items.ContactClaimant(ctx, finder, claim.ID, "Pick it up at the front desk")
	require.NoError(t, err)
	require.Len(t, updated.ContactHistory, 1)
	assert.Equal(t, "Pick it up at the front desk", updated.ContactHistory[0].Message)
	assert.Equal(t, finder.ID, updated.ContactHistory[0].SenderID)
	// No mailer configured, so the entry records a failed delivery.
	assert.False(t, updated.ContactHistory[0].Delivered)

	notes, err := users.ListNotifications(ctx, claimant.ID)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotifyMessageReceived, notes[0].Kind)
}

func TestRecomputeItemStatsIsIdempotent(t *testing.T) {
	items, users, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	second := registerTestUser(t, users, "Sam Second", "sam@campus.edu", "U300")

	item := reportFoundItem(t, items, finder)
	winner := submitClaim(t, items, claimant, item.ID)
	submitClaim(t, items, second, item.ID)
	_, err := items.ApproveClaim(ctx, finder, winner.ID)
	require.NoError(t, err)

	before, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, items.RecomputeItemStats(ctx, item.ID))
	}

	after, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Stats.TotalClaims, after.Stats.TotalClaims)
	assert.Equal(t, before.Stats.PendingClaims, after.Stats.PendingClaims)
	assert.Equal(t, before.Stats.ApprovedClaims, after.Stats.ApprovedClaims)
	assert.Equal(t, 2, after.Stats.TotalClaims)
	assert.Equal(t, 1, after.Stats.ApprovedClaims)
}

func TestClearReporterDetachesItems(t *testing.T) {
	items, _, finder, claimant, admin := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)

	n, err := items.ClearReporter(ctx, finder.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ReporterID)
	assert.Equal(t, models.StatusOwnerDeleted, got.Status)

	// owner_deleted items accept no new claims.
	_, err = items.SubmitClaim(ctx, claimant, item.ID, &models.SubmitClaimRequest{Message: "mine"})
	assert.ErrorIs(t, err, ErrItemNotAvailable)

	// Only admins can still manage the orphaned item.
	_, err = items.UpdateItem(ctx, finder, item.ID, &models.UpdateItemRequest{Name: "x", Category: "Bags"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = items.UpdateItem(ctx, admin, item.ID, &models.UpdateItemRequest{Name: "Blue Backpack", Category: "Bags"})
	assert.NoError(t, err)
}

func TestInFlightClaimResolvableAfterOwnerDeleted(t *testing.T) {
	items, _, finder, claimant, admin := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	_, err := items.ClearReporter(ctx, finder.ID)
	require.NoError(t, err)

	resolved, err := items.ApproveClaim(ctx, admin, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, resolved.Status)
}

func TestListItemsFilters(t *testing.T) {
	items, _, finder, _, _ := newLifecycleFixture(t)
	ctx := context.Background()

	reportFoundItem(t, items, finder)
	_, err := items.ReportItem(ctx, finder, &models.ReportItemRequest{
		Type:        models.ItemLost,
		Name:        "Red Umbrella",
		Description: "Lost during the storm",
		Category:    "Other",
		Location:    "Bus Stop",
	})
	require.NoError(t, err)

	lost, err := items.ListItems(ctx, ItemFilter{Type: models.ItemLost})
	require.NoError(t, err)
	require.Len(t, lost, 1)
	assert.Equal(t, "Red Umbrella", lost[0].Name)

	byTag, err := items.ListItems(ctx, ItemFilter{Query: "umbrella"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)

	byCategory, err := items.ListItems(ctx, ItemFilter{Category: "Bags"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Blue Backpack", byCategory[0].Name)
}

func TestDeleteItemRemovesItsClaims(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	_, err := items.DeleteItem(ctx, finder, item.ID)
	require.NoError(t, err)

	_, err = items.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = items.GetClaim(ctx, claim.ID)
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestRecomputeItemStatsClearsStaleSummary(t *testing.T) {
	items, _, finder, claimant, _ := newLifecycleFixture(t)
	ctx := context.Background()

	item := reportFoundItem(t, items, finder)
	claim := submitClaim(t, items, claimant, item.ID)

	// Seed the state a crash could leave behind: an item carrying a
	// claim summary whose claim no longer exists.
	snapItems, _ := items.Snapshot()
	for _, it := range snapItems {
		if it.ID == item.ID {
			it.LastClaim = claim.Summarize()
		}
	}
	items.Restore(snapItems, nil)

	require.NoError(t, items.RecomputeItemStats(ctx, item.ID))

	got, err := items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastClaim)
	assert.Equal(t, 0, got.Stats.TotalClaims)
}
