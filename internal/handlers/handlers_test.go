package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

const (
	testJWTSecret  = "handler-test-secret"
	testAdminEmail = "admin@campus.edu"
	testPassword   = "hunter22"
)

// testEnv wires the memory services into the same route tree the server
// builds, minus the outer logging and CORS middleware.
type testEnv struct {
	router     chi.Router
	users      *services.MemoryUserService
	items      *services.MemoryItemService
	categories *services.MemoryCategoryService
	watches    *services.MemoryWatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	items := services.NewMemoryItemService()
	users := services.NewMemoryUserService()
	categories := services.NewMemoryCategoryService()
	watches := services.NewMemoryWatchService()

	users.SetAdminEmail(testAdminEmail)
	items.SetNotifier(users)
	categories.SetItemService(items)
	watches.SetItemService(items)

	analytics := services.NewBasicAnalyticsService(items, users)
	captcha := services.NewCaptchaVerifier("")

	authHandler := NewAuthHandler(users, captcha, testJWTSecret, time.Hour)
	itemHandler := NewItemHandler(items, watches)
	claimHandler := NewClaimHandler(items)
	notificationHandler := NewNotificationHandler(users)
	categoryHandler := NewCategoryHandler(categories)
	watchHandler := NewWatchHandler(watches)
	adminHandler := NewAdminHandler(users, items, watches)
	analyticsHandler := NewAnalyticsHandler(analytics)
	exportHandler := NewExportHandler(items, users)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(testJWTSecret))
			r.Use(middleware.LoadActor(users))

			r.Get("/auth/me", authHandler.GetProfile)
			r.Put("/auth/me", authHandler.UpdateProfile)

			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemHandler.ListItems)
				r.Post("/", itemHandler.ReportItem)
				r.Get("/mine", itemHandler.MyItems)

				r.Route("/{itemID}", func(r chi.Router) {
					r.Get("/", itemHandler.GetItem)
					r.Put("/", itemHandler.UpdateItem)
					r.Delete("/", itemHandler.DeleteItem)

					r.Post("/claims", claimHandler.SubmitClaim)
					r.Get("/claims", claimHandler.ListClaimsForItem)
					r.Post("/claims/{claimID}/returned", claimHandler.MarkReturned)

					r.Post("/watch", watchHandler.Add)
					r.Delete("/watch", watchHandler.Remove)
				})
			})

			r.Route("/claims", func(r chi.Router) {
				r.Get("/mine", claimHandler.MyClaims)
				r.Post("/{claimID}/approve", claimHandler.ApproveClaim)
				r.Post("/{claimID}/reject", claimHandler.RejectClaim)
				r.Post("/{claimID}/contact", claimHandler.ContactClaimant)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Post("/{notificationID}/read", notificationHandler.MarkRead)
				r.Delete("/", notificationHandler.Clear)
			})

			r.Get("/categories", categoryHandler.List)
			r.Get("/watchlist", watchHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Post("/categories", categoryHandler.Create)
				r.Put("/categories/{categoryID}", categoryHandler.Update)
				r.Delete("/categories/{categoryID}", categoryHandler.Delete)

				r.Route("/admin", func(r chi.Router) {
					r.Get("/users", adminHandler.ListUsers)
					r.Get("/users/{userID}", adminHandler.GetUser)
					r.Put("/users/{userID}/role", adminHandler.SetRole)
					r.Post("/users/{userID}/suspend", adminHandler.Suspend)
					r.Post("/users/{userID}/unsuspend", adminHandler.Unsuspend)
					r.Post("/users/{userID}/ban", adminHandler.Ban)
					r.Post("/users/{userID}/unban", adminHandler.Unban)
					r.Delete("/users/{userID}", adminHandler.DeleteUser)

					r.Delete("/items/{itemID}", adminHandler.RemoveItem)
					r.Put("/items/{itemID}/status", adminHandler.SetItemStatus)

					r.Route("/analytics", func(r chi.Router) {
						r.Get("/overview", analyticsHandler.Overview)
						r.Get("/items-by-type", analyticsHandler.ItemsByType)
						r.Get("/items-over-time", analyticsHandler.ItemsOverTime)
						r.Get("/popular-tags", analyticsHandler.PopularTags)
					})

					r.Route("/export", func(r chi.Router) {
						r.Get("/items", exportHandler.Items)
						r.Get("/claims", exportHandler.Claims)
						r.Get("/users", exportHandler.Users)
					})
				})
			})
		})
	})

	return &testEnv{
		router:     r,
		users:      users,
		items:      items,
		categories: categories,
		watches:    watches,
	}
}

// envelope mirrors models.APIResponse with a raw data payload so tests
// can decode it into the type each endpoint returns.
type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, &env
}

func decodeData(t *testing.T, env *envelope, out interface{}) {
	t.Helper()
	require.NotEmpty(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// signUp registers an account through the API and returns the token and
// user record. Registering testAdminEmail yields an admin.
func (e *testEnv) signUp(t *testing.T, name, email, universityID string) (string, models.User) {
	t.Helper()

	rec, env := e.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Name:         name,
		Email:        email,
		UniversityID: universityID,
		Password:     testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var auth models.AuthResponse
	decodeData(t, env, &auth)
	require.NotEmpty(t, auth.Token)
	return auth.Token, auth.User
}

func (e *testEnv) signUpAdmin(t *testing.T) (string, models.User) {
	t.Helper()
	return e.signUp(t, "Ada", testAdminEmail, "ADMIN-1")
}

func (e *testEnv) reportItem(t *testing.T, token, itemType, name string) models.Item {
	t.Helper()

	rec, env := e.do(t, http.MethodPost, "/api/items", token, models.ReportItemRequest{
		Type:     itemType,
		Name:     name,
		Category: "Bags",
		Location: "Library",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var item models.Item
	decodeData(t, env, &item)
	return item
}

func (e *testEnv) submitClaim(t *testing.T, token, itemID string) models.Claim {
	t.Helper()

	rec, env := e.do(t, http.MethodPost, "/api/items/"+itemID+"/claims", token, models.SubmitClaimRequest{
		Message: "That one is mine, it has my initials inside.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var claim models.Claim
	decodeData(t, env, &claim)
	return claim
}
