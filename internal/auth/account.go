package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/internal/validation"
	"github.com/hugh/chefenplace/pkg/crypto"
	"gorm.io/gorm"
)

const tokenBytes = 32

type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"omitempty,max=50"`
	LastName  string `json:"lastName" validate:"omitempty,max=50"`
	Name      string `json:"name" validate:"required_without_all=FirstName LastName,max=100"`
}

// RegisterHeadChef creates an active head chef without a restaurant; the
// organization is attached later by signup.
func (e *Engine) RegisterHeadChef(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if err := invalid(validation.Struct(in)); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: validation.SanitizeString(in.FirstName),
		LastName:  validation.SanitizeString(in.LastName),
		Name:      validation.SanitizeString(in.Name),
		Role:      permission.RoleHeadChef,
		Status:    models.UserStatusActive,
		IsActive:  true,
	}
	if err := e.users.Create(ctx, user); err != nil {
		return nil, err
	}

	e.logger.Info("head chef registered", "user_id", user.ID)
	return e.issue(ctx, &principal{user: user}, false)
}

type SignupInput struct {
	RestaurantName string          `json:"restaurantName" validate:"notblank,max=100"`
	Type           string          `json:"type" validate:"omitempty,oneof=fast-casual fine-dining cafe bakery food-truck catering other"`
	Location       models.Location `json:"location"`
	Email          string          `json:"email" validate:"required,email,max=254"`
	Password       string          `json:"password" validate:"required,min=8,max=72"`
	FirstName      string          `json:"firstName" validate:"notblank,max=50"`
	LastName       string          `json:"lastName" validate:"notblank,max=50"`
}

type SignupResult struct {
	LoginResult
	VerificationSent bool
}

// SignupRestaurant creates the head chef and the restaurant together and
// queues the verification email once both are committed.
func (e *Engine) SignupRestaurant(ctx context.Context, in SignupInput) (*SignupResult, error) {
	if err := invalid(validation.Struct(in)); err != nil {
		return nil, err
	}
	if tenant.Slugify(in.RestaurantName) == "" {
		return nil, &ValidationError{Fields: map[string]string{"restaurantName": "Restaurant name must contain letters or digits"}}
	}

	rawToken, err := crypto.GenerateToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	expires := e.now().UTC().Add(e.verifyTTL)

	var (
		user       *models.User
		restaurant *models.Restaurant
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := e.users.WithTx(tx)

		user = &models.User{
			Email:                    in.Email,
			Password:                 in.Password,
			FirstName:                validation.SanitizeString(in.FirstName),
			LastName:                 validation.SanitizeString(in.LastName),
			Role:                     permission.RoleHeadChef,
			Status:                   models.UserStatusActive,
			IsActive:                 true,
			EmailVerificationToken:   crypto.HashToken(rawToken),
			EmailVerificationExpires: &expires,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}

		var err error
		restaurant, err = e.tenants.WithTx(tx).Create(ctx, tenant.CreateInput{
			Name:       in.RestaurantName,
			HeadChefID: user.ID,
			Type:       in.Type,
			Location:   in.Location,
		})
		if err != nil {
			return err
		}

		user.Organization = restaurant.Slug
		user.RestaurantID = &restaurant.ID
		return users.Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	result := &SignupResult{}
	if err := e.notifier.SendVerificationEmail(ctx, user, rawToken); err != nil {
		e.logger.Error("queueing verification email failed", "user_id", user.ID, "error", err)
	} else {
		result.VerificationSent = true
	}

	login, err := e.issue(ctx, &principal{user: user, restaurant: restaurant}, false)
	if err != nil {
		return nil, err
	}
	result.LoginResult = *login

	e.logger.Info("restaurant signup completed", "slug", restaurant.Slug, "user_id", user.ID)
	return result, nil
}

// VerifyEmail consumes a verification token.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	user, err := e.users.FindByVerificationToken(ctx, crypto.HashToken(token), e.now().UTC())
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidVerificationToken
	}
	if err != nil {
		return nil, err
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	user.EmailVerificationExpires = nil
	if err := e.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword answers the same way whether or not the email exists.
// Only malformed input and store failures are reported.
func (e *Engine) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	if err := invalid(validation.Struct(in)); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		e.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive || user.IsTeamMember() {
		return nil
	}

	rawToken, err := crypto.GenerateToken(tokenBytes)
	if err != nil {
		return err
	}
	expires := e.now().UTC().Add(e.resetTTL)
	user.ResetPasswordToken = crypto.HashToken(rawToken)
	user.ResetPasswordExpires = &expires
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}

	if err := e.notifier.SendPasswordReset(ctx, user, rawToken); err != nil {
		e.logger.Error("queueing password reset failed", "user_id", user.ID, "error", err)
	}
	return nil
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (e *Engine) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := invalid(validation.Struct(in)); err != nil {
		return err
	}

	user, err := e.users.FindByResetToken(ctx, crypto.HashToken(strings.TrimSpace(in.Token)), e.now().UTC())
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	user.Password = in.Password
	user.ResetPasswordToken = ""
	user.ResetPasswordExpires = nil
	if err := e.users.Save(ctx, user); err != nil {
		return err
	}

	e.logger.Info("password reset", "user_id", user.ID)
	return nil
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

func (e *Engine) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	if err := invalid(validation.Struct(in)); err != nil {
		return err
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.users.VerifyPassword(ctx, user, in.CurrentPassword)
	if err != nil {
		return fmt.Errorf("verifying current password: %w", err)
	}
	if !ok {
		return ErrIncorrectPassword
	}

	user.Password = in.NewPassword
	return e.users.Save(ctx, user)
}

// Profile returns the user with their restaurant, if any.
func (e *Engine) Profile(ctx context.Context, userID uuid.UUID) (*models.User, *models.Restaurant, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	restaurant, err := e.tenantOf(ctx, user)
	if errors.Is(err, ErrRestaurantNotFound) {
		return user, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return user, restaurant, nil
}

// ApprovalStatus exposes only the approval state of a user, for kiosks
// polling while a request is pending.
func (e *Engine) ApprovalStatus(ctx context.Context, userID uuid.UUID) (models.UserStatus, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}
