package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"gorm.io/gorm"
)

// teamRoles matches team members stored under either role spelling.
var teamRoles = []string{string(permission.RoleTeamMember), "user"}

// UserStore is the credential store. Every write path hashes a pending
// plaintext password first; the model hook keeps permissions in step with
// the role.
type UserStore struct {
	db     *gorm.DB
	hasher *Hasher
}

func NewUserStore(db *gorm.DB, hasher *Hasher) *UserStore {
	return &UserStore{db: db, hasher: hasher}
}

// WithTx returns a store bound to an open transaction.
func (s *UserStore) WithTx(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx, hasher: s.hasher}
}

func (s *UserStore) Hasher() *Hasher {
	return s.hasher
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStore) hashPending(ctx context.Context, user *models.User) error {
	if user.Password == "" {
		return nil
	}
	hash, err := s.hasher.Hash(ctx, user.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}

// Create inserts user, failing with ErrDuplicateEmail when the email is
// already registered in any letter case.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)

	taken, err := s.emailTaken(ctx, user.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateEmail
	}

	if err := s.hashPending(ctx, user); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// A concurrent insert can win between the check and the create.
		if taken, checkErr := s.emailTaken(ctx, user.Email); checkErr == nil && taken {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *UserStore) emailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().
		Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

// Save persists every field of user.
func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	if err := s.hashPending(ctx, user); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *UserStore) VerifyPassword(ctx context.Context, user *models.User, candidate string) (bool, error) {
	return s.hasher.Verify(ctx, user.PasswordHash, candidate)
}

func (s *UserStore) first(ctx context.Context, q *gorm.DB) (*models.User, error) {
	var user models.User
	if err := q.WithContext(ctx).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, s.db.Where("email = ?", normalizeEmail(email)))
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(ctx, s.db.Where("id = ?", id))
}

// FindByNameAndOrg matches both name parts case-insensitively among the
// active team members of one organization.
func (s *UserStore) FindByNameAndOrg(ctx context.Context, firstName, lastName, organization string) (*models.User, error) {
	return s.findMemberByName(ctx, firstName, lastName, organization, true)
}

// findMemberByName prefers active records and then the oldest, so the
// first member created under a name wins.
func (s *UserStore) findMemberByName(ctx context.Context, firstName, lastName, organization string, activeOnly bool) (*models.User, error) {
	q := s.db.Where("organization = ? AND role IN ?", organization, teamRoles).
		Where("LOWER(first_name) = ? AND LOWER(last_name) = ?",
			strings.ToLower(strings.TrimSpace(firstName)),
			strings.ToLower(strings.TrimSpace(lastName)))
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	return s.first(ctx, q.Order("is_active DESC").Order("created_at ASC"))
}

// FindMember loads a team member by id within one organization.
func (s *UserStore) FindMember(ctx context.Context, id uuid.UUID, organization string) (*models.User, error) {
	return s.first(ctx, s.db.Where("id = ? AND organization = ? AND role IN ?", id, organization, teamRoles))
}

func (s *UserStore) FindHeadChef(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(ctx, s.db.Where("id = ? AND role = ?", id, permission.RoleHeadChef))
}

// MemberNameTaken reports whether a non-rejected team member with this
// name already exists in the organization.
func (s *UserStore) MemberNameTaken(ctx context.Context, firstName, lastName, organization string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("organization = ? AND role IN ? AND status <> ?", organization, teamRoles, models.UserStatusRejected).
		Where("LOWER(first_name) = ? AND LOWER(last_name) = ?",
			strings.ToLower(strings.TrimSpace(firstName)),
			strings.ToLower(strings.TrimSpace(lastName))).
		Count(&count).Error
	return count > 0, err
}

// CountTeamMembers counts the members that occupy a plan seat: active
// records that are not rejected.
func (s *UserStore) CountTeamMembers(ctx context.Context, organization string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("organization = ? AND role IN ? AND is_active = ? AND status <> ?",
			organization, teamRoles, true, models.UserStatusRejected).
		Count(&count).Error
	return count, err
}

// ListTeam returns the team members of an organization, optionally only
// those in one status.
func (s *UserStore) ListTeam(ctx context.Context, organization string, status models.UserStatus) ([]models.User, error) {
	q := s.db.WithContext(ctx).Where("organization = ? AND role IN ?", organization, teamRoles)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var users []models.User
	if err := q.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.first(ctx, s.db.Where("reset_password_token = ? AND reset_password_expires > ?", tokenHash, now))
}

func (s *UserStore) FindByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.first(ctx, s.db.Where("email_verification_token = ? AND email_verification_expires > ?", tokenHash, now))
}

// TouchLogin stamps a successful login without running save hooks.
func (s *UserStore) TouchLogin(ctx context.Context, user *models.User, now time.Time, viaQR bool) error {
	cols := map[string]interface{}{"last_login": now}
	if viaQR {
		cols["qr_access"] = true
		cols["qr_access_date"] = now
	}
	if err := s.db.WithContext(ctx).Model(user).UpdateColumns(cols).Error; err != nil {
		return fmt.Errorf("recording login: %w", err)
	}

	user.LastLogin = &now
	if viaQR {
		user.QRAccess = true
		user.QRAccessDate = &now
	}
	return nil
}
