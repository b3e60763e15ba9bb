package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID string, expiresIn time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(expiresIn).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func probeHandler(gotUserID *string, gotActor **models.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserID = GetUserID(r.Context())
		*gotActor = GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth(t *testing.T) {
	var gotUserID string
	var gotActor *models.User
	handler := JWTAuth(testSecret)(probeHandler(&gotUserID, &gotActor))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "u1", time.Hour), http.StatusUnauthorized},
		{"expired token", "Bearer " + signToken(t, testSecret, "u1", -time.Hour), http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, testSecret, "u1", time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u1", gotUserID)
			} else {
				assert.Empty(t, gotUserID)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestLoadActorGatesAccountState(t *testing.T) {
	users := services.NewMemoryUserService()
	users.SetAdminEmail("admin@campus.edu")
	ctx := context.Background()

	admin, err := users.Register(ctx, &models.RegisterRequest{
		Name: "Ada", Email: "admin@campus.edu", UniversityID: "A1", Password: "hunter22",
	})
	require.NoError(t, err)

	register := func(name, email, uid string) *models.User {
		u, err := users.Register(ctx, &models.RegisterRequest{
			Name: name, Email: email, UniversityID: uid, Password: "hunter22",
		})
		require.NoError(t, err)
		return u
	}
	active := register("Finn", "finn@campus.edu", "U1")
	banned := register("Bea", "bea@campus.edu", "U2")
	suspended := register("Sam", "sam@campus.edu", "U3")
	deleted := register("Dee", "dee@campus.edu", "U4")
	unverified := register("Uma", "uma@campus.edu", "U5")

	_, err = users.SetBanned(ctx, admin, banned.ID, true, "spam")
	require.NoError(t, err)
	_, err = users.SetSuspended(ctx, admin, suspended.ID, true, "under review")
	require.NoError(t, err)
	require.NoError(t, users.DeleteUser(ctx, admin, deleted.ID))

	// Registration auto-verifies, so seed the unverified account the way
	// a restored legacy record would arrive.
	snap := users.Snapshot()
	for _, u := range snap {
		if u.ID == unverified.ID {
			u.Verified = false
		}
	}
	users.Restore(snap)

	var gotUserID string
	var gotActor *models.User
	handler := LoadActor(users)(probeHandler(&gotUserID, &gotActor))

	serve := func(userID string) *httptest.ResponseRecorder {
		gotActor = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(active.ID)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotActor)
	assert.Equal(t, active.ID, gotActor.ID)

	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("no-such-user").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(deleted.ID).Code)
	assert.Equal(t, http.StatusForbidden, serve(banned.ID).Code)
	assert.Equal(t, http.StatusForbidden, serve(suspended.ID).Code)
	assert.Equal(t, http.StatusForbidden, serve(unverified.ID).Code)
}

func TestRequireAdmin(t *testing.T) {
	var gotUserID string
	var gotActor *models.User
	handler := RequireAdmin(probeHandler(&gotUserID, &gotActor))

	serve := func(actor *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor != nil {
			req = req.WithContext(context.WithValue(req.Context(), ActorKey, actor))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, serve(nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(&models.User{ID: "u1", Role: models.RoleStudent}).Code)
	assert.Equal(t, http.StatusOK, serve(&models.User{ID: "a1", Role: models.RoleAdmin}).Code)
}
