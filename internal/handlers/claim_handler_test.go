package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
)

func TestSubmitClaimEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claimantToken, claimant := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")

	claim := env.submitClaim(t, claimantToken, item.ID)
	assert.Equal(t, models.ClaimPending, claim.Status)
	assert.Equal(t, claimant.ID, claim.ClaimantID)

	rec, resp := env.do(t, http.MethodGet, "/api/items/"+item.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusClaimPending, got.Status)

	// Empty message fails validation.
	rec, resp = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/claims", claimantToken, models.SubmitClaimRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "message")

	// Duplicate pending claim from the same user.
	rec, _ = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/claims", claimantToken, models.SubmitClaimRequest{Message: "still mine"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Reporters cannot claim their own items.
	rec, _ = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/claims", ownerToken, models.SubmitClaimRequest{Message: "mine"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Lost items are not claimable.
	lost := env.reportItem(t, ownerToken, models.ItemLost, "Red Umbrella")
	rec, _ = env.do(t, http.MethodPost, "/api/items/"+lost.ID+"/claims", claimantToken, models.SubmitClaimRequest{Message: "found it"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClaimVisibility(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claimantToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")
	strangerToken, _ := env.signUp(t, "Sam", "sam@campus.edu", "U3")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	claim := env.submitClaim(t, claimantToken, item.ID)

	// Only the reporter (or an admin) may list an item's claims.
	rec, _ := env.do(t, http.MethodGet, "/api/items/"+item.ID+"/claims", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := env.do(t, http.MethodGet, "/api/items/"+item.ID+"/claims", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var claims []*models.Claim
	decodeData(t, resp, &claims)
	require.Len(t, claims, 1)
	assert.Equal(t, claim.ID, claims[0].ID)

	rec, resp = env.do(t, http.MethodGet, "/api/claims/mine", claimantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &claims)
	require.Len(t, claims, 1)

	rec, resp = env.do(t, http.MethodGet, "/api/claims/mine", strangerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &claims)
	assert.Empty(t, claims)
}

func TestApproveRejectEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claraToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")
	samToken, _ := env.signUp(t, "Sam", "sam@campus.edu", "U3")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	claraClaim := env.submitClaim(t, claraToken, item.ID)
	samClaim := env.submitClaim(t, samToken, item.ID)

	// Claimants cannot resolve claims on someone else's item.
	rec, _ := env.do(t, http.MethodPost, "/api/claims/"+claraClaim.ID+"/approve", claraToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/api/claims/"+claraClaim.ID+"/approve", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var approved models.Claim
	decodeData(t, resp, &approved)
	assert.Equal(t, models.ClaimApproved, approved.Status)

	// Approval resolves siblings and retires the item.
	rec, resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusReturned, got.Status)

	rec, _ = env.do(t, http.MethodPost, "/api/claims/"+samClaim.ID+"/approve", ownerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/claims/"+claraClaim.ID+"/reject", ownerToken, models.ResolveClaimRequest{Reason: "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRejectRevertsItem(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claraToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	claim := env.submitClaim(t, claraToken, item.ID)

	rec, resp := env.do(t, http.MethodPost, "/api/claims/"+claim.ID+"/reject", ownerToken, models.ResolveClaimRequest{Reason: "no proof"})
	require.Equal(t, http.StatusOK, rec.Code)
	var rejected models.Claim
	decodeData(t, resp, &rejected)
	assert.Equal(t, models.ClaimRejected, rejected.Status)
	assert.Equal(t, "no proof", rejected.Response)

	rec, resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusAvailable, got.Status)
}

func TestMarkReturnedEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claraToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	other := env.reportItem(t, ownerToken, models.ItemFound, "Red Umbrella")
	claim := env.submitClaim(t, claraToken, item.ID)

	// The claim must belong to the item in the URL.
	rec, _ := env.do(t, http.MethodPost, "/api/items/"+other.ID+"/claims/"+claim.ID+"/returned", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/items/"+item.ID+"/claims/"+claim.ID+"/returned", claraToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/api/items/"+item.ID+"/claims/"+claim.ID+"/returned", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var returned models.Claim
	decodeData(t, resp, &returned)
	assert.Equal(t, models.ClaimApproved, returned.Status)

	rec, resp = env.do(t, http.MethodGet, "/api/items/"+item.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusReturned, got.Status)
}

func TestContactClaimantEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claraToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	claim := env.submitClaim(t, claraToken, item.ID)

	rec, resp := env.do(t, http.MethodPost, "/api/claims/"+claim.ID+"/contact", ownerToken, models.ContactClaimantRequest{
		Message: "Come by the front desk before Friday.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var contacted models.Claim
	decodeData(t, resp, &contacted)
	require.Len(t, contacted.ContactHistory, 1)
	assert.Equal(t, "Come by the front desk before Friday.", contacted.ContactHistory[0].Message)

	// The claimant gets an in-app notification.
	rec, resp = env.do(t, http.MethodGet, "/api/notifications", claraToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []models.Notification
	decodeData(t, resp, &notifications)
	require.NotEmpty(t, notifications)

	rec, _ = env.do(t, http.MethodPost, "/api/claims/"+claim.ID+"/contact", claraToken, models.ContactClaimantRequest{
		Message: "When can I come?",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
