package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/pkg/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	tokenTypeInvite  = "chef-invite"

	issuer = "chefenplace"
)

// TokenConfig holds the secrets and lifetimes for every token kind.
// Team-member tokens are signed with their own secrets so a leaked kiosk
// secret cannot mint staff sessions.
type TokenConfig struct {
	AccessSecret      string
	RefreshSecret     string
	TeamAccessSecret  string
	TeamRefreshSecret string
	InviteSecret      string

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	TeamAccessTTL  time.Duration
	TeamRefreshTTL time.Duration
	InviteTTL      time.Duration
}

// TokenConfigFrom fills unset team and invite secrets from the staff ones.
func TokenConfigFrom(c config.JWTConfig) TokenConfig {
	tc := TokenConfig{
		AccessSecret:      c.AccessSecret,
		RefreshSecret:     c.RefreshSecret,
		TeamAccessSecret:  c.TeamAccessSecret,
		TeamRefreshSecret: c.TeamRefreshSecret,
		InviteSecret:      c.InviteSecret,
		AccessTTL:         c.AccessTTL(),
		RefreshTTL:        c.RefreshTTL(),
		TeamAccessTTL:     c.TeamAccessTTL(),
		TeamRefreshTTL:    c.TeamRefreshTTL(),
		InviteTTL:         c.InviteTTL(),
	}
	if tc.TeamAccessSecret == "" {
		tc.TeamAccessSecret = tc.AccessSecret
	}
	if tc.TeamRefreshSecret == "" {
		tc.TeamRefreshSecret = tc.RefreshSecret
	}
	if tc.InviteSecret == "" {
		tc.InviteSecret = tc.AccessSecret
	}
	return tc
}

type Claims struct {
	UserID  uuid.UUID       `json:"userId"`
	TokenID string          `json:"tokenId"`
	Type    string          `json:"type"`
	Role    permission.Role `json:"role"`
	jwt.RegisteredClaims
}

// InviteClaims identify the head chef a new team member will report to.
type InviteClaims struct {
	HeadChefID   uuid.UUID `json:"headChefId"`
	Organization string    `json:"organization"`
	Type         string    `json:"type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenID      string `json:"-"`
}

type JWTService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewJWTService(cfg TokenConfig) *JWTService {
	return &JWTService{cfg: cfg, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *JWTService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *JWTService) InviteTTL() time.Duration {
	return s.cfg.InviteTTL
}

func (s *JWTService) secret(role permission.Role, typ string) []byte {
	team := role.Normalize() == permission.RoleTeamMember
	switch {
	case typ == TokenTypeRefresh && team:
		return []byte(s.cfg.TeamRefreshSecret)
	case typ == TokenTypeRefresh:
		return []byte(s.cfg.RefreshSecret)
	case team:
		return []byte(s.cfg.TeamAccessSecret)
	default:
		return []byte(s.cfg.AccessSecret)
	}
}

func (s *JWTService) ttl(role permission.Role, typ string) time.Duration {
	team := role.Normalize() == permission.RoleTeamMember
	switch {
	case typ == TokenTypeRefresh && team:
		return s.cfg.TeamRefreshTTL
	case typ == TokenTypeRefresh:
		return s.cfg.RefreshTTL
	case team:
		return s.cfg.TeamAccessTTL
	default:
		return s.cfg.AccessTTL
	}
}

// IssuePair signs an access and a refresh token sharing one token id.
func (s *JWTService) IssuePair(userID uuid.UUID, role permission.Role) (*TokenPair, error) {
	role = role.Normalize()
	tokenID := uuid.NewString()

	access, err := s.sign(userID, role, tokenID, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, role, tokenID, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.ttl(role, TokenTypeAccess) / time.Second),
		TokenID:      tokenID,
	}, nil
}

func (s *JWTService) sign(userID uuid.UUID, role permission.Role, tokenID, typ string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:  userID,
		TokenID: tokenID,
		Type:    typ,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl(role, typ))),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
			ID:        tokenID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret(role, typ))
}

func (s *JWTService) ValidateAccess(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeAccess)
}

func (s *JWTService) ValidateRefresh(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeRefresh)
}

// validate picks the secret from the role claim; the signature check then
// fails for any role the token was not actually issued for.
func (s *JWTService) validate(tokenString, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		claims, ok := token.Claims.(*Claims)
		if !ok || claims.Type != typ {
			return nil, ErrInvalidToken
		}
		return s.secret(claims.Role, typ), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *JWTService) IssueInvite(headChefID uuid.UUID, organization string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.InviteTTL)
	claims := InviteClaims{
		HeadChefID:   headChefID,
		Organization: organization,
		Type:         tokenTypeInvite,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.InviteSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (s *JWTService) ValidateInvite(tokenString string) (*InviteClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InviteClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.InviteSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*InviteClaims)
	if !ok || !token.Valid || claims.Type != tokenTypeInvite || claims.HeadChefID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
