package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	ActorKey  contextKey = "actor"
)

// JWTAuth validates the bearer token and stores the user id in the
// request context.
func JWTAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid token claims"))
				return
			}
			userID, ok := claims["user_id"].(string)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid user ID in token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadActor resolves the authenticated user and gates suspended, banned,
// unverified and deleted accounts. Must run after JWTAuth.
func LoadActor(users services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
				return
			}

			actor, err := users.GetByID(r.Context(), userID)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Account not found"))
				return
			}
			if actor.Deleted {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Account not found"))
				return
			}
			if actor.Banned {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Account is banned"))
				return
			}
			if actor.Suspended {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Account is suspended"))
				return
			}
			if !actor.Verified {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Account is not verified"))
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin-only routes. Must run after LoadActor.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := GetActor(r.Context())
		if actor == nil || actor.Role != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetActor extracts the resolved user record from context.
func GetActor(ctx context.Context) *models.User {
	actor, ok := ctx.Value(ActorKey).(*models.User)
	if !ok {
		return nil
	}
	return actor
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
