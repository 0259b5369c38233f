package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrDuplicateEmail           = errors.New("email already registered")
	ErrUserNotFound             = errors.New("user not found")
	ErrRestaurantNotFound       = errors.New("restaurant not found")
	ErrTeamMemberNotFound       = errors.New("team member not found")
	ErrHeadChefNotFound         = errors.New("head chef not found")
	ErrRestaurantSuspended      = errors.New("restaurant access is suspended")
	ErrAccountDeactivated       = errors.New("account is deactivated")
	ErrPendingApproval          = errors.New("access pending approval")
	ErrAccessRejected           = errors.New("access rejected")
	ErrDuplicateMember          = errors.New("a team member with this name already exists")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrTeamLimitReached         = errors.New("team member limit reached for plan")
	ErrHashTimeout              = errors.New("password hashing timed out")
	ErrMalformedHash            = errors.New("stored password hash is malformed")
	ErrIncorrectPassword        = errors.New("current password is incorrect")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrNotRestaurantOwner       = errors.New("user does not own a restaurant")
	ErrCannotModifySelf         = errors.New("cannot change your own team record")
)

// ValidationError carries per-field messages keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrDuplicateEmail, "email_taken"},
	{ErrUserNotFound, "user_not_found"},
	{ErrRestaurantNotFound, "restaurant_not_found"},
	{ErrTeamMemberNotFound, "team_member_not_found"},
	{ErrHeadChefNotFound, "head_chef_not_found"},
	{ErrRestaurantSuspended, "restaurant_suspended"},
	{ErrAccountDeactivated, "account_deactivated"},
	{ErrPendingApproval, "pending_approval"},
	{ErrAccessRejected, "access_rejected"},
	{ErrDuplicateMember, "duplicate_team_member"},
	{ErrInvalidTransition, "invalid_status_transition"},
	{ErrTeamLimitReached, "plan_limit_reached"},
	{ErrIncorrectPassword, "incorrect_password"},
	{ErrInvalidResetToken, "invalid_reset_token"},
	{ErrInvalidVerificationToken, "invalid_verification_token"},
	{ErrNotRestaurantOwner, "restaurant_not_found"},
	{ErrCannotModifySelf, "cannot_modify_self"},
	{ErrExpiredToken, "token_expired"},
	{ErrInvalidToken, "invalid_token"},
}

// Code returns the machine-readable reason for err, or "server_error"
// when err is not one of this package's errors.
func Code(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "validation_failed"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "server_error"
}
