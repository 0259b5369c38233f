package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
)

type contextKey string

const (
	UserKey   contextKey = "user"
	ClaimsKey contextKey = "claims"
)

// Authenticator resolves a bearer token to a live user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, *auth.Claims, error)
}

type errorBody struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Required string `json:"required,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth requires a valid access token belonging to an active user. Every
// failure answers 401 with the same message; the code tells an expired
// token apart from any other rejection.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, errorBody{Error: "Invalid token", Code: "invalid_token"})
				return
			}

			user, claims, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				code := "invalid_token"
				if errors.Is(err, auth.ErrExpiredToken) {
					code = "token_expired"
				}
				writeError(w, http.StatusUnauthorized, errorBody{Error: "Invalid token", Code: code})
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions to extract values from context
func GetUser(ctx context.Context) *models.User {
	if u, ok := ctx.Value(UserKey).(*models.User); ok {
		return u
	}
	return nil
}

func GetClaims(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsKey).(*auth.Claims); ok {
		return c
	}
	return nil
}

func GetUserID(ctx context.Context) uuid.UUID {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}

func GetUserRole(ctx context.Context) permission.Role {
	if u := GetUser(ctx); u != nil {
		return u.Role.Normalize()
	}
	return ""
}

// RequirePermission lets the request through only when the authenticated
// user holds the named capability.
func RequirePermission(name permission.Name) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, errorBody{Error: "Invalid token", Code: "invalid_token"})
				return
			}
			if allowed, _ := user.Permissions.Has(name); !allowed {
				writeError(w, http.StatusForbidden, errorBody{
					Error:    "Insufficient permissions",
					Code:     "forbidden",
					Required: string(name),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole middleware ensures user has specific role
func RequireRole(roles ...permission.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, errorBody{Error: "Forbidden", Code: "forbidden"})
		})
	}
}
