package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproval_Transitions(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	t.Run("approve pending", func(t *testing.T) {
		m := ts.CreateTeamMember(t, "Ann", "Approve", models.UserStatusPending)
		got, err := ts.Engine.Approve(ctx, ts.HeadChef, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UserStatusActive, got.Status)
		assert.Equal(t, models.UserStatusActive, ts.Reload(t, m).Status)
	})

	t.Run("reject pending", func(t *testing.T) {
		m := ts.CreateTeamMember(t, "Rob", "Reject", models.UserStatusPending)
		got, err := ts.Engine.Reject(ctx, ts.HeadChef, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UserStatusRejected, got.Status)
	})

	t.Run("active and rejected are terminal", func(t *testing.T) {
		active := ts.CreateTeamMember(t, "Act", "Ive", models.UserStatusActive)
		rejected := ts.CreateTeamMember(t, "Rej", "Ected", models.UserStatusRejected)

		_, err := ts.Engine.Reject(ctx, ts.HeadChef, active.ID)
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
		_, err = ts.Engine.Approve(ctx, ts.HeadChef, rejected.ID)
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
		_, err = ts.Engine.Approve(ctx, ts.HeadChef, active.ID)
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	})

	t.Run("approve and issue tokens", func(t *testing.T) {
		m := ts.CreateTeamMember(t, "Tok", "En", models.UserStatusPending)
		res, err := ts.Engine.ApproveAndIssueTokens(ctx, ts.HeadChef, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UserStatusActive, res.User.Status)

		claims, err := ts.JWTService.ValidateAccess(res.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, m.ID, claims.UserID)
	})

	t.Run("list pending", func(t *testing.T) {
		m := ts.CreateTeamMember(t, "Still", "Waiting", models.UserStatusPending)
		pending, err := ts.Engine.ListPending(ctx, ts.HeadChef)
		require.NoError(t, err)

		var ids []uuid.UUID
		for _, p := range pending {
			ids = append(ids, p.ID)
			assert.Equal(t, models.UserStatusPending, p.Status)
		}
		assert.Contains(t, ids, m.ID)
	})
}

func TestApproval_DoubleScoped(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()
	member := ts.CreateTeamMember(t, "John", "Doe", models.UserStatusPending)

	signup, err := ts.Engine.SignupRestaurant(ctx, auth.SignupInput{
		RestaurantName: "Rival Kitchen",
		Email:          "rival@x.com",
		Password:       "secret123",
		FirstName:      "Riv",
		LastName:       "Al",
	})
	require.NoError(t, err)
	rival := signup.User

	t.Run("other tenant's head chef", func(t *testing.T) {
		_, err := ts.Engine.Approve(ctx, rival, member.ID)
		assert.ErrorIs(t, err, auth.ErrTeamMemberNotFound)
	})

	t.Run("same organization, not the owner", func(t *testing.T) {
		sous := &models.User{
			Email:        "sous@x.com",
			Password:     "secret123",
			Name:         "Sous Chef",
			Role:         permission.RoleHeadChef,
			Organization: ts.Restaurant.Slug,
			Status:       models.UserStatusActive,
			IsActive:     true,
		}
		require.NoError(t, ts.Users.Create(ctx, sous))

		_, err := ts.Engine.Approve(ctx, sous, member.ID)
		assert.ErrorIs(t, err, auth.ErrTeamMemberNotFound)
	})

	t.Run("owner id with a forged organization", func(t *testing.T) {
		forged := *ts.HeadChef
		forged.Organization = rival.Organization

		_, err := ts.Engine.Approve(ctx, &forged, member.ID)
		assert.ErrorIs(t, err, auth.ErrTeamMemberNotFound)
	})

	assert.Equal(t, models.UserStatusPending, ts.Reload(t, member).Status)
}
