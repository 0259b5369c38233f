package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/guard"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/internal/validation"
	"github.com/hugh/chefenplace/pkg/crypto"
	"github.com/hugh/chefenplace/pkg/util"
	"gorm.io/gorm"
)

const (
	StrategyEmail    = "email"
	StrategyName     = "name"
	StrategyMemberID = "member_id"
	StrategyRefresh  = "refresh"
)

// LoginMetrics counts login outcomes per strategy; see internal/metrics.
type LoginMetrics interface {
	LoginResult(strategy, outcome string)
}

// Notifier hands account emails to the delivery pipeline.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, user *models.User, token string) error
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationEmail(context.Context, *models.User, string) error { return nil }
func (noopNotifier) SendPasswordReset(context.Context, *models.User, string) error     { return nil }

type Options struct {
	DB          *gorm.DB
	Users       *UserStore
	Tenants     *tenant.Registry
	Tokens      *JWTService
	Guard       *guard.Guard
	Metrics     LoginMetrics
	Notifier    Notifier
	Logger      *slog.Logger
	FrontendURL string

	ResetTokenTTL  time.Duration
	VerifyTokenTTL time.Duration
}

// Engine runs every login strategy through one pipeline and owns the
// account, approval and team workflows built on the same stores.
type Engine struct {
	db          *gorm.DB
	users       *UserStore
	tenants     *tenant.Registry
	tokens      *JWTService
	guard       *guard.Guard
	metrics     LoginMetrics
	notifier    Notifier
	logger      *slog.Logger
	frontendURL string

	resetTTL  time.Duration
	verifyTTL time.Duration
	now       func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	if opts.VerifyTokenTTL <= 0 {
		opts.VerifyTokenTTL = 24 * time.Hour
	}
	return &Engine{
		db:          opts.DB,
		users:       opts.Users,
		tenants:     opts.Tenants,
		tokens:      opts.Tokens,
		guard:       opts.Guard,
		metrics:     opts.Metrics,
		notifier:    opts.Notifier,
		logger:      util.Component(opts.Logger, "auth"),
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		resetTTL:    opts.ResetTokenTTL,
		verifyTTL:   opts.VerifyTokenTTL,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// LoginResult is what every successful strategy returns.
type LoginResult struct {
	User       *models.User
	Restaurant *models.Restaurant
	Tokens     *TokenPair
}

// principal is what a strategy's lookup step resolves.
type principal struct {
	user       *models.User
	restaurant *models.Restaurant
}

type strategy struct {
	name   string
	input  interface{}
	target string
	org    string
	viaQR  bool

	// lookup resolves the tenant and the person; it returns one of the
	// not-found errors when either is missing.
	lookup func(ctx context.Context) (*principal, error)

	// credential is nil for strategies where identity is the credential.
	credential func(ctx context.Context, user *models.User) error
}

// run applies the shared order: address gate, input shape, principal,
// tenant status, account status, credential, then issuance.
func (e *Engine) run(ctx context.Context, ip string, s strategy) (*LoginResult, error) {
	if e.guard != nil {
		if err := e.guard.Check(ctx, ip); err != nil {
			e.observe(s.name, "rate_limited")
			return nil, err
		}
	}

	attempt := guard.Attempt{IP: ip, Strategy: s.name, Organization: s.org, Target: s.target}

	if s.input != nil {
		if err := invalid(validation.Struct(s.input)); err != nil {
			return nil, e.fail(ctx, attempt, err)
		}
	}

	p, err := s.lookup(ctx)
	if err != nil {
		return nil, e.fail(ctx, attempt, err)
	}
	attempt.UserID = &p.user.ID
	if p.restaurant != nil {
		attempt.Organization = p.restaurant.Slug
	}

	if p.restaurant != nil && !p.restaurant.AcceptsLogins() {
		return nil, e.fail(ctx, attempt, ErrRestaurantSuspended)
	}

	if err := accountStatus(p.user); err != nil {
		return nil, e.fail(ctx, attempt, err)
	}

	if s.credential != nil {
		if err := s.credential(ctx, p.user); err != nil {
			return nil, e.fail(ctx, attempt, err)
		}
	}

	result, err := e.issue(ctx, p, s.viaQR)
	if err != nil {
		e.observe(s.name, "server_error")
		return nil, err
	}

	if e.guard != nil {
		e.guard.RecordSuccess(ctx, attempt)
	}
	e.observe(s.name, "success")
	e.logger.Info("login succeeded", "strategy", s.name, "user_id", p.user.ID, "organization", p.user.Organization)
	return result, nil
}

// accountStatus checks deactivation before the approval state.
func accountStatus(u *models.User) error {
	if !u.IsActive {
		return ErrAccountDeactivated
	}
	switch u.Status {
	case models.UserStatusPending:
		return ErrPendingApproval
	case models.UserStatusRejected:
		return ErrAccessRejected
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, a guard.Attempt, err error) error {
	code := Code(err)
	if code == "server_error" {
		e.logger.Error("login failed", "strategy", a.Strategy, "error", err)
		e.observe(a.Strategy, code)
		return err
	}

	a.Reason = code
	if e.guard != nil {
		e.guard.RecordFailure(ctx, a)
	}
	e.observe(a.Strategy, code)
	return err
}

func (e *Engine) observe(strategy, outcome string) {
	if e.metrics != nil {
		e.metrics.LoginResult(strategy, outcome)
	}
}

func (e *Engine) issue(ctx context.Context, p *principal, viaQR bool) (*LoginResult, error) {
	if err := e.users.TouchLogin(ctx, p.user, e.now().UTC(), viaQR); err != nil {
		return nil, err
	}

	pair, err := e.tokens.IssuePair(p.user.ID, p.user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}

	return &LoginResult{User: p.user, Restaurant: p.restaurant, Tokens: pair}, nil
}

// tenantOf returns the restaurant a user belongs to, or nil when the user
// has no organization yet.
func (e *Engine) tenantOf(ctx context.Context, u *models.User) (*models.Restaurant, error) {
	if u.Organization == "" {
		return nil, nil
	}
	restaurant, err := e.tenants.Resolve(ctx, u.Organization)
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, ErrRestaurantNotFound
	}
	return restaurant, err
}

func (e *Engine) resolveTenant(ctx context.Context, key string) (*models.Restaurant, error) {
	restaurant, err := e.tenants.Resolve(ctx, key)
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, ErrRestaurantNotFound
	}
	return restaurant, err
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates any role by email and password. An unknown email
// and a wrong password are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, ip string, in LoginInput) (*LoginResult, error) {
	return e.run(ctx, ip, strategy{
		name:   StrategyEmail,
		input:  in,
		target: normalizeEmail(in.Email),
		lookup: func(ctx context.Context) (*principal, error) {
			user, err := e.users.FindByEmail(ctx, in.Email)
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrInvalidCredentials
			}
			if err != nil {
				return nil, err
			}
			restaurant, err := e.tenantOf(ctx, user)
			if err != nil {
				return nil, err
			}
			return &principal{user: user, restaurant: restaurant}, nil
		},
		credential: func(ctx context.Context, user *models.User) error {
			ok, err := e.users.VerifyPassword(ctx, user, in.Password)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidCredentials
			}
			return nil
		},
	})
}

type NameLoginInput struct {
	RestaurantName string `json:"restaurantName" validate:"notblank,max=100"`
	FirstName      string `json:"firstName" validate:"notblank,max=50"`
	LastName       string `json:"lastName" validate:"notblank,max=50"`
}

// TeamLoginInput is the username/password framing of the kiosk login:
// the username is the first name and the password the last name.
type TeamLoginInput struct {
	RestaurantName string `json:"restaurantName" validate:"notblank,max=100"`
	Username       string `json:"username" validate:"notblank,max=50"`
	Password       string `json:"password" validate:"notblank,max=50"`
}

func (in TeamLoginInput) NameLogin() NameLoginInput {
	return NameLoginInput{RestaurantName: in.RestaurantName, FirstName: in.Username, LastName: in.Password}
}

// LoginByName is the kiosk login: the name within a known restaurant is
// the credential. Restaurant existence and member existence are both
// reported, separately.
func (e *Engine) LoginByName(ctx context.Context, ip string, in NameLoginInput) (*LoginResult, error) {
	slug := tenant.Slugify(in.RestaurantName)
	return e.run(ctx, ip, strategy{
		name:   StrategyName,
		input:  in,
		org:    slug,
		target: strings.TrimSpace(in.FirstName + " " + in.LastName),
		lookup: func(ctx context.Context) (*principal, error) {
			if slug == "" {
				return nil, ErrRestaurantNotFound
			}
			restaurant, err := e.resolveTenant(ctx, slug)
			if err != nil {
				return nil, err
			}
			user, err := e.users.findMemberByName(ctx, in.FirstName, in.LastName, restaurant.Slug, false)
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrTeamMemberNotFound
			}
			if err != nil {
				return nil, err
			}
			return &principal{user: user, restaurant: restaurant}, nil
		},
	})
}

type memberIDInput struct {
	OrganizationID string `json:"organizationId" validate:"notblank"`
	MemberID       string `json:"memberId" validate:"required,uuid"`
}

// LoginWithMemberID serves QR deep links. Holding both ids is the
// credential, so the member must belong to that organization and report
// to its head chef.
func (e *Engine) LoginWithMemberID(ctx context.Context, ip, organizationID, memberID string) (*LoginResult, error) {
	in := memberIDInput{OrganizationID: strings.TrimSpace(organizationID), MemberID: strings.TrimSpace(memberID)}
	return e.run(ctx, ip, strategy{
		name:   StrategyMemberID,
		input:  in,
		org:    in.OrganizationID,
		target: in.MemberID,
		viaQR:  true,
		lookup: func(ctx context.Context) (*principal, error) {
			restaurant, err := e.resolveTenant(ctx, in.OrganizationID)
			if err != nil {
				return nil, err
			}
			id, err := uuid.Parse(in.MemberID)
			if err != nil {
				return nil, ErrTeamMemberNotFound
			}
			user, err := e.users.FindMember(ctx, id, restaurant.Slug)
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrTeamMemberNotFound
			}
			if err != nil {
				return nil, err
			}
			if user.HeadChefID == nil || *user.HeadChefID != restaurant.HeadChefID {
				return nil, ErrTeamMemberNotFound
			}
			return &principal{user: user, restaurant: restaurant}, nil
		},
	})
}

// Refresh exchanges a refresh token for a new pair. The user must still
// pass the tenant and account checks.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := e.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		e.logger.Debug("refresh rejected", "error", err)
		e.observe(StrategyRefresh, Code(err))
		return nil, err
	}

	user, err := e.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		e.observe(StrategyRefresh, "invalid_token")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	restaurant, err := e.tenantOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if restaurant != nil && !restaurant.AcceptsLogins() {
		e.observe(StrategyRefresh, "restaurant_suspended")
		return nil, ErrRestaurantSuspended
	}
	if err := accountStatus(user); err != nil {
		e.observe(StrategyRefresh, Code(err))
		return nil, err
	}

	pair, err := e.tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}
	e.observe(StrategyRefresh, "success")
	return &LoginResult{User: user, Restaurant: restaurant, Tokens: pair}, nil
}

// QREntry is the first step of the kiosk flow. It authenticates nobody;
// it only points the device at the restaurant's login page.
type QREntry struct {
	LoginURL       string `json:"loginUrl"`
	RestaurantName string `json:"restaurantName"`
}

func (e *Engine) QREntry(ctx context.Context, organizationID string) (*QREntry, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, &ValidationError{Fields: map[string]string{"orgId": "Restaurant identifier is required"}}
	}

	restaurant, err := e.resolveTenant(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if !restaurant.AcceptsLogins() {
		return nil, ErrRestaurantSuspended
	}

	return &QREntry{
		LoginURL:       e.KioskURL(restaurant),
		RestaurantName: restaurant.Name,
	}, nil
}

// KioskURL is the restaurant's name-login page.
func (e *Engine) KioskURL(r *models.Restaurant) string {
	return e.frontendURL + "/login/" + r.Slug
}

// Authenticate resolves an access token to a live, active user.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*models.User, *Claims, error) {
	claims, err := e.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrAccountDeactivated
	}
	return user, claims, nil
}

type RequestAccessInput struct {
	HeadChefID string `json:"headChefId" validate:"required,uuid"`
	FirstName  string `json:"firstName" validate:"notblank,max=50"`
	LastName   string `json:"lastName" validate:"notblank,max=50"`
}

// RequestAccess creates a pending team member under a head chef.
func (e *Engine) RequestAccess(ctx context.Context, in RequestAccessInput) (*models.User, error) {
	if err := invalid(validation.Struct(in)); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(in.HeadChefID)
	if err != nil {
		return nil, ErrHeadChefNotFound
	}
	headChef, err := e.users.FindHeadChef(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrHeadChefNotFound
	}
	if err != nil {
		return nil, err
	}

	return e.createPendingMember(ctx, headChef, in.FirstName, in.LastName)
}

type AcceptInviteInput struct {
	FirstName string `json:"firstName" validate:"notblank,max=50"`
	LastName  string `json:"lastName" validate:"notblank,max=50"`
}

// AcceptInvite turns a signed invite into a pending team member. It does
// not log anyone in.
func (e *Engine) AcceptInvite(ctx context.Context, inviteToken string, in AcceptInviteInput) (*models.User, error) {
	claims, err := e.tokens.ValidateInvite(inviteToken)
	if err != nil {
		return nil, err
	}
	if err := invalid(validation.Struct(in)); err != nil {
		return nil, err
	}

	headChef, err := e.users.FindHeadChef(ctx, claims.HeadChefID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrHeadChefNotFound
	}
	if err != nil {
		return nil, err
	}
	if headChef.Organization != claims.Organization {
		return nil, ErrInvalidToken
	}

	return e.createPendingMember(ctx, headChef, in.FirstName, in.LastName)
}

func (e *Engine) createPendingMember(ctx context.Context, headChef *models.User, firstName, lastName string) (*models.User, error) {
	if !headChef.IsActive {
		return nil, ErrHeadChefNotFound
	}
	if headChef.Organization == "" {
		return nil, ErrRestaurantNotFound
	}

	restaurant, err := e.resolveTenant(ctx, headChef.Organization)
	if err != nil {
		return nil, err
	}
	if !restaurant.AcceptsLogins() {
		return nil, ErrRestaurantSuspended
	}

	firstName = validation.SanitizeString(firstName)
	lastName = validation.SanitizeString(lastName)

	var member *models.User
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := e.users.WithTx(tx)

		taken, err := users.MemberNameTaken(ctx, firstName, lastName, restaurant.Slug)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateMember
		}

		count, err := users.CountTeamMembers(ctx, restaurant.Slug)
		if err != nil {
			return err
		}
		if !restaurant.HasTeamCapacity(count) {
			return ErrTeamLimitReached
		}

		secret, err := crypto.GenerateToken(24)
		if err != nil {
			return err
		}

		member = &models.User{
			Email:        memberEmail(firstName, lastName),
			Password:     secret,
			FirstName:    firstName,
			LastName:     lastName,
			Role:         permission.RoleTeamMember,
			Organization: restaurant.Slug,
			RestaurantID: &restaurant.ID,
			HeadChefID:   &headChef.ID,
			Status:       models.UserStatusPending,
			IsActive:     true,
		}
		return users.Create(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("team member requested access",
		"user_id", member.ID, "organization", member.Organization, "head_chef_id", headChef.ID)
	return member, nil
}

// memberEmail synthesizes a unique placeholder address; team members log
// in by name and never receive mail.
func memberEmail(firstName, lastName string) string {
	local := strings.Trim(tenant.Slugify(firstName)+"."+tenant.Slugify(lastName), ".")
	if local == "" {
		local = "member"
	}
	return local + "." + uuid.NewString()[:8] + "@chef.local"
}
