package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	studentToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodPost, "/api/categories"},
		{http.MethodGet, "/api/admin/analytics/overview"},
		{http.MethodGet, "/api/admin/export/items"},
	}
	for _, p := range paths {
		rec, _ := env.do(t, p.method, p.path, studentToken, nil)
		assert.Equalf(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestAdminUserModeration(t *testing.T) {
	env := newTestEnv(t)
	adminToken, admin := env.signUpAdmin(t)
	_, user := env.signUp(t, "Finn", "finn@campus.edu", "U1")

	rec, resp := env.do(t, http.MethodPost, "/api/admin/users/"+user.ID+"/suspend", adminToken, map[string]string{"reason": "under review"})
	require.Equal(t, http.StatusOK, rec.Code)
	var moderated models.User
	decodeData(t, resp, &moderated)
	assert.True(t, moderated.Suspended)
	assert.Equal(t, "under review", moderated.ModReason)

	rec, resp = env.do(t, http.MethodPost, "/api/admin/users/"+user.ID+"/unsuspend", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &moderated)
	assert.False(t, moderated.Suspended)

	// Admins cannot moderate themselves.
	rec, _ = env.do(t, http.MethodPost, "/api/admin/users/"+admin.ID+"/ban", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/users/no-such-user/ban", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/api/admin/users/"+user.ID+"/role", adminToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &moderated)
	assert.Equal(t, models.RoleAdmin, moderated.Role)

	rec, _ = env.do(t, http.MethodPut, "/api/admin/users/"+user.ID+"/role", adminToken, map[string]string{"role": "professor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRemoveItemStrikesReporter(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signUpAdmin(t)
	reporterToken, reporter := env.signUp(t, "Finn", "finn@campus.edu", "U1")

	item := env.reportItem(t, reporterToken, models.ItemFound, "Suspicious Listing")

	rec, _ := env.do(t, http.MethodDelete, "/api/admin/items/"+item.ID, adminToken, map[string]string{"reason": "prohibited content"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/items/"+item.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored, err := env.users.GetByID(context.Background(), reporter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Strikes)
	require.NotEmpty(t, stored.AuditLog)
	assert.Equal(t, "item_removed", stored.AuditLog[0].Action)
}

func TestAdminSetItemStatus(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signUpAdmin(t)
	reporterToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")

	item := env.reportItem(t, reporterToken, models.ItemFound, "Backpack")

	rec, _ := env.do(t, http.MethodPut, "/api/admin/items/"+item.ID+"/status", adminToken, map[string]string{"status": "vanished"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := env.do(t, http.MethodPut, "/api/admin/items/"+item.ID+"/status", adminToken, map[string]string{"status": models.StatusReturned})
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusReturned, got.Status)
}

func TestAdminDeleteUserDetachesItems(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signUpAdmin(t)
	reporterToken, reporter := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	watcherToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, reporterToken, models.ItemFound, "Backpack")
	rec, _ := env.do(t, http.MethodPost, "/api/items/"+item.ID+"/watch", watcherToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/admin/users/"+reporter.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The item survives, detached from its reporter.
	rec, resp := env.do(t, http.MethodGet, "/api/items/"+item.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Item
	decodeData(t, resp, &got)
	assert.Equal(t, models.StatusOwnerDeleted, got.Status)
	assert.Empty(t, got.ReporterID)

	// The deleted account's token stops working.
	rec, _ = env.do(t, http.MethodGet, "/api/auth/me", reporterToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signUpAdmin(t)
	reporterToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")

	env.reportItem(t, reporterToken, models.ItemFound, "Blue Backpack")
	env.reportItem(t, reporterToken, models.ItemLost, "Red Umbrella")

	rec, resp := env.do(t, http.MethodGet, "/api/admin/analytics/overview", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview models.OverviewReport
	decodeData(t, resp, &overview)
	assert.Equal(t, int64(2), overview.TotalItems)

	rec, resp = env.do(t, http.MethodGet, "/api/admin/analytics/items-by-type", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var buckets []models.BucketCount
	decodeData(t, resp, &buckets)
	assert.Len(t, buckets, 2)

	rec, _ = env.do(t, http.MethodGet, "/api/admin/analytics/items-over-time?bucket=year", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/admin/analytics/popular-tags?limit=1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []models.TagCount
	decodeData(t, resp, &tags)
	assert.Len(t, tags, 1)
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signUpAdmin(t)
	reporterToken, _ := env.signUp(t, "Finn", "finn@campus.edu", "U1")
	claimantToken, _ := env.signUp(t, "Clara", "clara@campus.edu", "U2")

	item := env.reportItem(t, reporterToken, models.ItemFound, "Blue Backpack")
	env.submitClaim(t, claimantToken, item.ID)

	rec, _ := env.do(t, http.MethodGet, "/api/admin/export/items", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,type,name"))
	assert.Contains(t, lines[1], "Blue Backpack")

	rec, _ = env.do(t, http.MethodGet, "/api/admin/export/claims", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines = strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], item.ID)

	rec, _ = env.do(t, http.MethodGet, "/api/admin/export/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines = strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4)
}
