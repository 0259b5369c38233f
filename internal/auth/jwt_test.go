package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTService() (*auth.JWTService, *testutil.Clock) {
	clock := testutil.NewClock()
	s := auth.NewJWTService(testutil.TokenConfig())
	s.SetClock(clock.Now)
	return s, clock
}

func TestJWTService_IssuePair(t *testing.T) {
	jwtService, _ := newJWTService()
	userID := uuid.New()

	t.Run("access and refresh carry the same token id", func(t *testing.T) {
		pair, err := jwtService.IssuePair(userID, permission.RoleHeadChef)
		require.NoError(t, err)

		access, err := jwtService.ValidateAccess(pair.AccessToken)
		require.NoError(t, err)
		refresh, err := jwtService.ValidateRefresh(pair.RefreshToken)
		require.NoError(t, err)

		assert.Equal(t, userID, access.UserID)
		assert.Equal(t, auth.TokenTypeAccess, access.Type)
		assert.Equal(t, auth.TokenTypeRefresh, refresh.Type)
		assert.Equal(t, access.TokenID, refresh.TokenID)
		assert.Equal(t, pair.TokenID, access.TokenID)
		assert.Equal(t, "chefenplace", access.Issuer)
		assert.Equal(t, userID.String(), access.Subject)
	})

	t.Run("expiresIn follows the role", func(t *testing.T) {
		staff, err := jwtService.IssuePair(userID, permission.RoleHeadChef)
		require.NoError(t, err)
		team, err := jwtService.IssuePair(userID, permission.RoleTeamMember)
		require.NoError(t, err)

		assert.Equal(t, int64(30*60), staff.ExpiresIn)
		assert.Equal(t, int64(12*60*60), team.ExpiresIn)
	})

	t.Run("legacy role is normalized", func(t *testing.T) {
		pair, err := jwtService.IssuePair(userID, permission.Role("user"))
		require.NoError(t, err)

		claims, err := jwtService.ValidateAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, permission.RoleTeamMember, claims.Role)
	})
}

func TestJWTService_Validate(t *testing.T) {
	userID := uuid.New()

	t.Run("rejects expired token", func(t *testing.T) {
		jwtService, clock := newJWTService()
		pair, err := jwtService.IssuePair(userID, permission.RoleHeadChef)
		require.NoError(t, err)

		clock.Advance(30*time.Minute + time.Second)

		_, err = jwtService.ValidateAccess(pair.AccessToken)
		assert.Equal(t, auth.ErrExpiredToken, err)

		_, err = jwtService.ValidateRefresh(pair.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("team member access outlives staff access", func(t *testing.T) {
		jwtService, clock := newJWTService()
		pair, err := jwtService.IssuePair(userID, permission.RoleTeamMember)
		require.NoError(t, err)

		clock.Advance(11 * time.Hour)
		_, err = jwtService.ValidateAccess(pair.AccessToken)
		assert.NoError(t, err)

		clock.Advance(2 * time.Hour)
		_, err = jwtService.ValidateAccess(pair.AccessToken)
		assert.Equal(t, auth.ErrExpiredToken, err)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		jwtService, _ := newJWTService()
		pair, err := jwtService.IssuePair(userID, permission.RoleHeadChef)
		require.NoError(t, err)

		_, err = jwtService.ValidateAccess(pair.RefreshToken)
		assert.Equal(t, auth.ErrInvalidToken, err)
		_, err = jwtService.ValidateRefresh(pair.AccessToken)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("role claim cannot be swapped", func(t *testing.T) {
		jwtService, _ := newJWTService()
		pair, err := jwtService.IssuePair(userID, permission.RoleTeamMember)
		require.NoError(t, err)

		claims, err := jwtService.ValidateAccess(pair.AccessToken)
		require.NoError(t, err)

		// Re-sign the team claims as head chef using the team secret.
		claims.Role = permission.RoleHeadChef
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(testutil.TokenConfig().TeamAccessSecret))
		require.NoError(t, err)

		_, err = jwtService.ValidateAccess(forged)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects token signed with different secret", func(t *testing.T) {
		jwtService, _ := newJWTService()
		cfg := testutil.TokenConfig()
		cfg.AccessSecret = "another-secret"
		other := auth.NewJWTService(cfg)

		pair, err := other.IssuePair(userID, permission.RoleHeadChef)
		require.NoError(t, err)

		_, err = jwtService.ValidateAccess(pair.AccessToken)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects none algorithm", func(t *testing.T) {
		jwtService, clock := newJWTService()
		claims := auth.Claims{
			UserID: userID,
			Type:   auth.TokenTypeAccess,
			Role:   permission.RoleSuperAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "chefenplace",
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = jwtService.ValidateAccess(unsigned)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects malformed and empty tokens", func(t *testing.T) {
		jwtService, _ := newJWTService()
		for _, tok := range []string{"", "not-a-valid-jwt", "a.b.c"} {
			_, err := jwtService.ValidateAccess(tok)
			assert.Equal(t, auth.ErrInvalidToken, err, tok)
		}
	})
}

func TestJWTService_Invite(t *testing.T) {
	headChefID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		jwtService, clock := newJWTService()
		token, expires, err := jwtService.IssueInvite(headChefID, "joes-pizza")
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(7*24*time.Hour), expires)

		claims, err := jwtService.ValidateInvite(token)
		require.NoError(t, err)
		assert.Equal(t, headChefID, claims.HeadChefID)
		assert.Equal(t, "joes-pizza", claims.Organization)
	})

	t.Run("expires after seven days", func(t *testing.T) {
		jwtService, clock := newJWTService()
		token, _, err := jwtService.IssueInvite(headChefID, "joes-pizza")
		require.NoError(t, err)

		clock.Advance(7*24*time.Hour + time.Second)
		_, err = jwtService.ValidateInvite(token)
		assert.Equal(t, auth.ErrExpiredToken, err)
	})

	t.Run("session token is not an invite", func(t *testing.T) {
		cfg := testutil.TokenConfig()
		cfg.InviteSecret = cfg.AccessSecret
		jwtService := auth.NewJWTService(cfg)

		pair, err := jwtService.IssuePair(headChefID, permission.RoleHeadChef)
		require.NoError(t, err)

		_, err = jwtService.ValidateInvite(pair.AccessToken)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})
}
