package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHeadChef(t *testing.T) {
	ts := testutil.NewBareContext(t)
	ctx := context.Background()

	res, err := ts.Engine.RegisterHeadChef(ctx, auth.RegisterInput{
		Email:    "Chef@Example.COM",
		Password: "longenough",
		Name:     "Chef Solo",
	})
	require.NoError(t, err)
	assert.Equal(t, "chef@example.com", res.User.Email)
	assert.Equal(t, permission.RoleHeadChef, res.User.Role)
	assert.Empty(t, res.User.Organization)
	assert.Nil(t, res.Restaurant)
	assert.NotEqual(t, "longenough", res.User.Password)

	_, err = ts.Engine.RegisterHeadChef(ctx, auth.RegisterInput{Email: "chef@example.com", Password: "longenough", Name: "Again"})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	tests := []struct {
		name  string
		in    auth.RegisterInput
		field string
	}{
		{"short password", auth.RegisterInput{Email: "a@b.com", Password: "short", Name: "A"}, "password"},
		{"bad email", auth.RegisterInput{Email: "nope", Password: "longenough", Name: "A"}, "email"},
		{"no name at all", auth.RegisterInput{Email: "a@b.com", Password: "longenough"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Engine.RegisterHeadChef(ctx, tt.in)
			var verr *auth.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestSignup_Validation(t *testing.T) {
	ts := testutil.NewBareContext(t)
	ctx := context.Background()

	_, err := ts.Engine.SignupRestaurant(ctx, auth.SignupInput{
		RestaurantName: "!!!",
		Email:          "a@b.com",
		Password:       "longenough",
		FirstName:      "A",
		LastName:       "B",
	})
	var verr *auth.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "restaurantName")

	_, err = ts.Engine.SignupRestaurant(ctx, auth.SignupInput{
		RestaurantName: "Taco Stand",
		Type:           "spaceship",
		Email:          "a@b.com",
		Password:       "longenough",
		FirstName:      "A",
		LastName:       "B",
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "type")

	var count int64
	ts.DB.Model(&models.Restaurant{}).Count(&count)
	assert.Zero(t, count)
}

func TestSignup_DuplicateEmailLeavesNoRestaurant(t *testing.T) {
	ts := testutil.NewTestContext(t)

	_, err := ts.Engine.SignupRestaurant(context.Background(), auth.SignupInput{
		RestaurantName: "Second Place",
		Email:          testutil.HeadChefEmail,
		Password:       "longenough",
		FirstName:      "Dup",
		LastName:       "Licate",
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	_, err = ts.Tenants.FindBySlug(context.Background(), "second-place")
	assert.Error(t, err)
}

func TestVerifyEmail(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	token := ts.Notifier.VerificationToken(testutil.HeadChefEmail)
	require.NotEmpty(t, token)

	t.Run("unknown token", func(t *testing.T) {
		_, err := ts.Engine.VerifyEmail(ctx, "deadbeef")
		assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)
	})

	t.Run("consumes the token", func(t *testing.T) {
		user, err := ts.Engine.VerifyEmail(ctx, token)
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)

		_, err = ts.Engine.VerifyEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)
	})
}

func TestVerifyEmail_Expired(t *testing.T) {
	ts := testutil.NewTestContext(t)
	token := ts.Notifier.VerificationToken(testutil.HeadChefEmail)

	ts.Clock.Advance(25 * time.Hour)
	_, err := ts.Engine.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)
}

func TestPasswordReset(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	t.Run("unknown email is silent", func(t *testing.T) {
		require.NoError(t, ts.Engine.ForgotPassword(ctx, auth.ForgotPasswordInput{Email: "ghost@x.com"}))
		assert.Empty(t, ts.Notifier.ResetToken("ghost@x.com"))
	})

	t.Run("team members get no reset mail", func(t *testing.T) {
		m := ts.CreateTeamMember(t, "No", "Mail", models.UserStatusActive)
		require.NoError(t, ts.Engine.ForgotPassword(ctx, auth.ForgotPasswordInput{Email: m.Email}))
		assert.Empty(t, ts.Notifier.ResetToken(m.Email))
	})

	t.Run("reset then login with the new password", func(t *testing.T) {
		require.NoError(t, ts.Engine.ForgotPassword(ctx, auth.ForgotPasswordInput{Email: testutil.HeadChefEmail}))
		token := ts.Notifier.ResetToken(testutil.HeadChefEmail)
		require.NotEmpty(t, token)

		err := ts.Engine.ResetPassword(ctx, auth.ResetPasswordInput{Token: token, Password: "brand-new-pass"})
		require.NoError(t, err)

		_, err = ts.Engine.Login(ctx, ip, auth.LoginInput{Email: testutil.HeadChefEmail, Password: testutil.HeadChefPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = ts.Engine.Login(ctx, ip, auth.LoginInput{Email: testutil.HeadChefEmail, Password: "brand-new-pass"})
		assert.NoError(t, err)

		err = ts.Engine.ResetPassword(ctx, auth.ResetPasswordInput{Token: token, Password: "another-pass"})
		assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
	})

	t.Run("expired token", func(t *testing.T) {
		require.NoError(t, ts.Engine.ForgotPassword(ctx, auth.ForgotPasswordInput{Email: testutil.HeadChefEmail}))
		token := ts.Notifier.ResetToken(testutil.HeadChefEmail)

		ts.Clock.Advance(2 * time.Hour)
		err := ts.Engine.ResetPassword(ctx, auth.ResetPasswordInput{Token: token, Password: "too-late-pass"})
		assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
	})
}

func TestChangePassword(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	err := ts.Engine.ChangePassword(ctx, ts.HeadChef.ID, auth.ChangePasswordInput{
		CurrentPassword: "wrong-password",
		NewPassword:     "changed-pass",
	})
	assert.ErrorIs(t, err, auth.ErrIncorrectPassword)

	err = ts.Engine.ChangePassword(ctx, ts.HeadChef.ID, auth.ChangePasswordInput{
		CurrentPassword: testutil.HeadChefPassword,
		NewPassword:     testutil.HeadChefPassword,
	})
	var verr *auth.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "newPassword")

	err = ts.Engine.ChangePassword(ctx, ts.HeadChef.ID, auth.ChangePasswordInput{
		CurrentPassword: testutil.HeadChefPassword,
		NewPassword:     "changed-pass",
	})
	require.NoError(t, err)

	ok, err := ts.Users.VerifyPassword(ctx, ts.Reload(t, ts.HeadChef), "changed-pass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProfileAndApprovalStatus(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	user, restaurant, err := ts.Engine.Profile(ctx, ts.HeadChef.ID)
	require.NoError(t, err)
	assert.Equal(t, ts.HeadChef.ID, user.ID)
	require.NotNil(t, restaurant)
	assert.Equal(t, "joes-pizza", restaurant.Slug)

	m := ts.CreateTeamMember(t, "Pat", "Pending", models.UserStatusPending)
	status, err := ts.Engine.ApprovalStatus(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPending, status)
}
