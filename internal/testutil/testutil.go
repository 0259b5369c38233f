package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/guard"
	"github.com/hugh/chefenplace/internal/metrics"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/pkg/crypto"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing. The pool
// is pinned to one connection because each :memory: connection is its own
// database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewHasher uses the minimum bcrypt cost so tests stay fast.
func NewHasher() *auth.Hasher {
	return auth.NewHasher(bcrypt.MinCost, 5*time.Second)
}

func TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:      "test-access-secret",
		RefreshSecret:     "test-refresh-secret",
		TeamAccessSecret:  "test-team-access-secret",
		TeamRefreshSecret: "test-team-refresh-secret",
		InviteSecret:      "test-invite-secret",
		AccessTTL:         30 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		TeamAccessTTL:     12 * time.Hour,
		TeamRefreshTTL:    30 * 24 * time.Hour,
		InviteTTL:         7 * 24 * time.Hour,
	}
}

// Clock is a settable time source shared by the components under test.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// RecordingNotifier captures the tokens the engine would have mailed.
type RecordingNotifier struct {
	mu            sync.Mutex
	Verifications map[string]string
	Resets        map[string]string
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Verifications: map[string]string{}, Resets: map[string]string{}}
}

func (n *RecordingNotifier) SendVerificationEmail(_ context.Context, u *models.User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Verifications[u.Email] = token
	return nil
}

func (n *RecordingNotifier) SendPasswordReset(_ context.Context, u *models.User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Resets[u.Email] = token
	return nil
}

func (n *RecordingNotifier) ResetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Resets[email]
}

func (n *RecordingNotifier) VerificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Verifications[email]
}

const (
	HeadChefEmail    = "joe@x.com"
	HeadChefPassword = "secret123"
	RestaurantName   = "Joe's Pizza"
)

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	Clock      *Clock
	Users      *auth.UserStore
	Tenants    *tenant.Registry
	JWTService *auth.JWTService
	Store      *guard.MemoryStore
	Guard      *guard.Guard
	Metrics    *metrics.Collector
	Notifier   *RecordingNotifier
	Engine     *auth.Engine
	Logger     *slog.Logger

	HeadChef   *models.User
	Restaurant *models.Restaurant
	Token      string
}

// NewTestContext wires the engine against SQLite and signs up "Joe's
// Pizza" with its head chef.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	ts := NewBareContext(t)
	res, err := ts.Engine.SignupRestaurant(context.Background(), auth.SignupInput{
		RestaurantName: RestaurantName,
		Email:          HeadChefEmail,
		Password:       HeadChefPassword,
		FirstName:      "Joe",
		LastName:       "Rossi",
	})
	if err != nil {
		t.Fatalf("failed to sign up test restaurant: %v", err)
	}

	ts.HeadChef = res.User
	ts.Restaurant = res.Restaurant
	ts.Token = res.Tokens.AccessToken
	return ts
}

// NewBareContext wires the engine without creating any records.
func NewBareContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })

	log := DiscardLogger()
	clock := NewClock()

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	tenants := tenant.NewRegistry(db, enc, log)
	tenants.SetClock(clock.Now)

	tokens := auth.NewJWTService(TokenConfig())
	tokens.SetClock(clock.Now)

	store := guard.NewMemoryStore(15*time.Minute, 0)
	t.Cleanup(store.Close)

	collector := metrics.New()
	g := guard.New(guard.Config{}, store, guard.NewDBSink(db, log), collector, log)
	g.SetClock(clock.Now)

	users := auth.NewUserStore(db, NewHasher())
	notifier := NewRecordingNotifier()

	engine := auth.NewEngine(auth.Options{
		DB:          db,
		Users:       users,
		Tenants:     tenants,
		Tokens:      tokens,
		Guard:       g,
		Metrics:     collector,
		Notifier:    notifier,
		Logger:      log,
		FrontendURL: "https://app.test",
	})
	engine.SetClock(clock.Now)

	return &TestSetup{
		DB:         db,
		Clock:      clock,
		Users:      users,
		Tenants:    tenants,
		JWTService: tokens,
		Store:      store,
		Guard:      g,
		Metrics:    collector,
		Notifier:   notifier,
		Engine:     engine,
		Logger:     log,
	}
}

// CreateTeamMember inserts a member of the test restaurant directly.
func (ts *TestSetup) CreateTeamMember(t *testing.T, firstName, lastName string, status models.UserStatus) *models.User {
	t.Helper()

	member := &models.User{
		Email:        firstName + "." + lastName + "." + uuid.NewString()[:8] + "@chef.local",
		Password:     uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         permission.RoleTeamMember,
		Organization: ts.Restaurant.Slug,
		RestaurantID: &ts.Restaurant.ID,
		HeadChefID:   &ts.HeadChef.ID,
		Status:       status,
		IsActive:     true,
	}
	if err := ts.Users.Create(context.Background(), member); err != nil {
		t.Fatalf("failed to create team member: %v", err)
	}
	return member
}

// CreateSuperAdmin inserts an active platform administrator.
func (ts *TestSetup) CreateSuperAdmin(t *testing.T, email, password string) *models.User {
	t.Helper()

	admin := &models.User{
		Email:    email,
		Password: password,
		Name:     "Platform Admin",
		Role:     permission.RoleSuperAdmin,
		Status:   models.UserStatusActive,
		IsActive: true,
	}
	if err := ts.Users.Create(context.Background(), admin); err != nil {
		t.Fatalf("failed to create super admin: %v", err)
	}
	return admin
}

// GenerateTestToken generates a valid access token for the given user
func (ts *TestSetup) GenerateTestToken(t *testing.T, user *models.User) string {
	t.Helper()

	pair, err := ts.JWTService.IssuePair(user.ID, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return pair.AccessToken
}

// Reload reads a user back from the database.
func (ts *TestSetup) Reload(t *testing.T, user *models.User) *models.User {
	t.Helper()

	fresh, err := ts.Users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return fresh
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
