package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	users map[string]*models.User
	err   error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, *auth.Claims, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	u, ok := s.users[token]
	if !ok {
		return nil, nil, auth.ErrInvalidToken
	}
	return u, &auth.Claims{UserID: u.ID, Role: u.Role, Type: "access"}, nil
}

func newUser(role permission.Role) *models.User {
	return &models.User{
		Base:        models.Base{ID: uuid.New()},
		Role:        role,
		Permissions: permission.For(role),
		Status:      models.UserStatusActive,
		IsActive:    true,
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	chef := newUser(permission.RoleHeadChef)
	authn := &stubAuthenticator{users: map[string]*models.User{"good": chef}}

	var seen *models.User
	var claims *auth.Claims
	h := Auth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		claims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "invalid_token"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "invalid_token"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"valid token", "Bearer good", http.StatusOK, ""},
		{"case-insensitive scheme", "bearer good", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.code != "" {
				var body errorBody
				testutil.ParseJSONResponse(t, rr, &body)
				assert.Equal(t, "Invalid token", body.Error)
				assert.Equal(t, tt.code, body.Code)
			}
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, chef.ID, seen.ID)
	require.NotNil(t, claims)
	assert.Equal(t, chef.ID, claims.UserID)
}

func TestAuth_ExpiredToken(t *testing.T) {
	authn := &stubAuthenticator{err: fmt.Errorf("validating: %w", auth.ErrExpiredToken)}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	Auth(authn)(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"token_expired"`)
}

func withUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserKey, u))
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(permission.CanManageTeam)(okHandler)

	t.Run("no user", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("team member", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), newUser(permission.RoleTeamMember)))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		var body errorBody
		testutil.ParseJSONResponse(t, rr, &body)
		assert.Equal(t, "Insufficient permissions", body.Error)
		assert.Equal(t, "canManageTeam", body.Required)
	})

	t.Run("head chef", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), newUser(permission.RoleHeadChef)))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("granted by patch", func(t *testing.T) {
		member := newUser(permission.RoleTeamMember)
		member.Permissions = member.Permissions.Apply(permission.Patch{permission.CanManageTeam: true})

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), member))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(permission.RoleSuperAdmin)(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), newUser(permission.RoleHeadChef)))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), newUser(permission.RoleSuperAdmin)))
	assert.Equal(t, http.StatusOK, rr.Code)

	legacy := newUser(permission.RoleTeamMember)
	legacy.Role = "user"
	rr = httptest.NewRecorder()
	RequireRole(permission.RoleTeamMember)(okHandler).ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/", nil), legacy))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func newTestLimiter(requests, windowSeconds int) (*RateLimiter, *testutil.Clock) {
	clock := testutil.NewClock()
	rl := NewRateLimiter(requests, windowSeconds)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(3, 60)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := rl.Allow("10.0.0.1")
		require.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, reset := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), reset)

	allowed, _, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed, "keys are counted separately")

	clock.Advance(61 * time.Second)
	allowed, _, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, clock := newTestLimiter(1, 30)
	defer rl.Stop()
	h := rl.Middleware(okHandler)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(10 * time.Second)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "21", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate_limited")
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl, clock := newTestLimiter(5, 10)
	defer rl.Stop()

	rl.Allow("a")
	clock.Advance(21 * time.Second)
	rl.Allow("b")
	rl.evictIdle()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}

func TestClientIP(t *testing.T) {
	trust, err := NewProxyTrust([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trust   *ProxyTrust
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer ignores forwarded", nil, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "198.51.100.1:4242", "198.51.100.1"},
		{"untrusted peer ignores real ip", trust, map[string]string{"X-Real-IP": "203.0.113.6"}, "198.51.100.1:4242", "198.51.100.1"},
		{"trusted peer", trust, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:80", "203.0.113.5"},
		{"right-most untrusted hop wins", trust, map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5, 10.1.1.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"exact proxy address", trust, map[string]string{"X-Forwarded-For": "203.0.113.9"}, "192.168.1.1:80", "203.0.113.9"},
		{"garbage hop falls back to peer", trust, map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1:80", "10.0.0.1"},
		{"real ip behind trusted peer", trust, map[string]string{"X-Real-IP": " 203.0.113.6 "}, "10.0.0.1:80", "203.0.113.6"},
		{"all hops trusted", trust, map[string]string{"X-Forwarded-For": "10.2.2.2"}, "10.0.0.1:80", "10.0.0.1"},
		{"remote without port", nil, nil, "198.51.100.2", "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			var got string
			ClientAddress(tt.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			})).ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.3:1000"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	assert.Equal(t, "198.51.100.3", ClientIP(req))
}

func TestNewProxyTrust_Invalid(t *testing.T) {
	_, err := NewProxyTrust([]string{"10.0.0.0/99"})
	assert.Error(t, err)

	_, err = NewProxyTrust([]string{"proxy.local"})
	assert.Error(t, err)

	trust, err := NewProxyTrust([]string{" ", "::1"})
	require.NoError(t, err)
	assert.True(t, trust.trusted(net.ParseIP("::1")))
}

func TestRecovery(t *testing.T) {
	h := Recovery(testutil.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "server_error")
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery(testutil.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}

type countingObserver struct {
	calls map[string]int
}

func (o *countingObserver) Response(method string, status int) {
	o.calls[fmt.Sprintf("%s %d", method, status)]++
}

func TestLogging(t *testing.T) {
	obs := &countingObserver{calls: map[string]int{}}
	h := Logging(testutil.DiscardLogger(), obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, obs.calls["POST 201"])

	Logging(testutil.DiscardLogger(), nil)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
