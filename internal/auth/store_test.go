package auth_test

import (
	"context"
	"testing"

	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_Create(t *testing.T) {
	ts := testutil.NewBareContext(t)
	ctx := context.Background()

	t.Run("hashes the password", func(t *testing.T) {
		u := &models.User{
			Email:    "Chef@Example.com",
			Password: "secret123",
			Name:     "Chef",
			Role:     permission.RoleHeadChef,
			Status:   models.UserStatusActive,
			IsActive: true,
		}
		require.NoError(t, ts.Users.Create(ctx, u))

		assert.Empty(t, u.Password)
		assert.NotEqual(t, "secret123", u.PasswordHash)
		assert.Equal(t, "chef@example.com", u.Email)

		stored, err := ts.Users.FindByEmail(ctx, "CHEF@example.com")
		require.NoError(t, err)
		ok, err := ts.Users.VerifyPassword(ctx, stored, "secret123")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects duplicate email in any case", func(t *testing.T) {
		u := &models.User{
			Email:    "  CHEF@example.COM ",
			Password: "another123",
			Role:     permission.RoleHeadChef,
			Status:   models.UserStatusActive,
			IsActive: true,
		}
		err := ts.Users.Create(ctx, u)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})
}

func TestUserStore_SaveRehashesAndRederives(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()
	member := ts.CreateTeamMember(t, "John", "Doe", models.UserStatusActive)
	oldHash := member.PasswordHash

	member.Password = "brand-new-pass"
	member.Role = permission.RoleHeadChef
	require.NoError(t, ts.Users.Save(ctx, member))

	stored := ts.Reload(t, member)
	assert.NotEqual(t, oldHash, stored.PasswordHash)
	ok, err := ts.Users.VerifyPassword(ctx, stored, "brand-new-pass")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, permission.For(permission.RoleHeadChef), stored.Permissions)
}

func TestUserStore_FindByNameAndOrg(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	john := ts.CreateTeamMember(t, "John", "Doe", models.UserStatusActive)

	t.Run("case insensitive on both parts", func(t *testing.T) {
		found, err := ts.Users.FindByNameAndOrg(ctx, " jOHN", "DOE ", ts.Restaurant.Slug)
		require.NoError(t, err)
		assert.Equal(t, john.ID, found.ID)
	})

	t.Run("exact match only", func(t *testing.T) {
		_, err := ts.Users.FindByNameAndOrg(ctx, "Joh", "Doe", ts.Restaurant.Slug)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("skips head chefs", func(t *testing.T) {
		_, err := ts.Users.FindByNameAndOrg(ctx, "Joe", "Rossi", ts.Restaurant.Slug)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("skips deactivated members", func(t *testing.T) {
		jane := ts.CreateTeamMember(t, "Jane", "Roe", models.UserStatusActive)
		jane.IsActive = false
		require.NoError(t, ts.Users.Save(ctx, jane))

		_, err := ts.Users.FindByNameAndOrg(ctx, "Jane", "Roe", ts.Restaurant.Slug)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("never crosses tenants", func(t *testing.T) {
		other, err := ts.Tenants.Create(ctx, tenant.CreateInput{Name: "Other Place", HeadChefID: ts.HeadChef.ID})
		require.NoError(t, err)

		_, err = ts.Users.FindByNameAndOrg(ctx, "John", "Doe", other.Slug)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)

		twin := &models.User{
			Email:        "john.doe.twin@chef.local",
			Password:     "irrelevant",
			FirstName:    "John",
			LastName:     "Doe",
			Role:         permission.RoleTeamMember,
			Organization: other.Slug,
			Status:       models.UserStatusActive,
			IsActive:     true,
		}
		require.NoError(t, ts.Users.Create(ctx, twin))

		inA, err := ts.Users.FindByNameAndOrg(ctx, "John", "Doe", ts.Restaurant.Slug)
		require.NoError(t, err)
		inB, err := ts.Users.FindByNameAndOrg(ctx, "John", "Doe", other.Slug)
		require.NoError(t, err)

		assert.Equal(t, john.ID, inA.ID)
		assert.Equal(t, twin.ID, inB.ID)
	})
}

func TestUserStore_CountTeamMembers(t *testing.T) {
	ts := testutil.NewTestContext(t)
	ctx := context.Background()

	ts.CreateTeamMember(t, "A", "One", models.UserStatusActive)
	ts.CreateTeamMember(t, "B", "Two", models.UserStatusPending)
	ts.CreateTeamMember(t, "C", "Three", models.UserStatusRejected)

	count, err := ts.Users.CountTeamMembers(ctx, ts.Restaurant.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
