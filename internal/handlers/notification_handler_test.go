package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
)

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claimantToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, ownerToken, models.ItemFound, "Blue Backpack")
	env.submitClaim(t, claimantToken, item.ID)

	// The claim notified the reporter.
	rec, resp := env.do(t, http.MethodGet, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []models.Notification
	decodeData(t, resp, &notifications)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].Read)

	rec, _ = env.do(t, http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &notifications)
	require.Len(t, notifications, 1)
	assert.True(t, notifications[0].Read)

	rec, _ = env.do(t, http.MethodPost, "/api/notifications/no-such-id/read", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/notifications/read-all", ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &notifications)
	assert.Empty(t, notifications)
}
