package permission_test

import (
	"testing"

	"github.com/hugh/chefenplace/internal/permission"
	"github.com/stretchr/testify/assert"
)

func countTrue(s permission.Set) int {
	n := 0
	for _, name := range permission.Names() {
		if ok, _ := s.Has(name); ok {
			n++
		}
	}
	return n
}

func TestFor(t *testing.T) {
	t.Run("head chef gets everything", func(t *testing.T) {
		s := permission.For(permission.RoleHeadChef)
		assert.Equal(t, 18, countTrue(s))
	})

	t.Run("super admin matches head chef", func(t *testing.T) {
		assert.Equal(t, permission.For(permission.RoleHeadChef), permission.For(permission.RoleSuperAdmin))
	})

	t.Run("team member is view only", func(t *testing.T) {
		s := permission.For(permission.RoleTeamMember)
		assert.Equal(t, 4, countTrue(s))
		assert.True(t, s.CanViewRecipes)
		assert.True(t, s.CanViewPlateups)
		assert.True(t, s.CanViewNotifications)
		assert.True(t, s.CanViewPanels)
		assert.False(t, s.CanManageTeam)
		assert.False(t, s.CanEditRecipes)
	})

	t.Run("legacy user role is a team member", func(t *testing.T) {
		assert.Equal(t, permission.For(permission.RoleTeamMember), permission.For("user"))
	})

	t.Run("unknown role gets nothing", func(t *testing.T) {
		assert.Equal(t, 0, countTrue(permission.For("sous-chef")))
	})
}

func TestFor_Deterministic(t *testing.T) {
	roles := []permission.Role{permission.RoleSuperAdmin, permission.RoleHeadChef, permission.RoleTeamMember}
	for _, role := range roles {
		t.Run(string(role), func(t *testing.T) {
			assert.Equal(t, permission.For(role), permission.For(role))
		})
	}

	original := permission.For(permission.RoleTeamMember)
	promoted := permission.For(permission.RoleHeadChef)
	restored := permission.For(permission.RoleTeamMember)
	assert.NotEqual(t, original, promoted)
	assert.Equal(t, original, restored)
}

func TestApply(t *testing.T) {
	base := permission.For(permission.RoleTeamMember)

	patched := base.Apply(permission.Patch{
		permission.CanEditRecipes: true,
		permission.CanViewPanels:  false,
		"canFly":                  true,
	})

	assert.True(t, patched.CanEditRecipes)
	assert.False(t, patched.CanViewPanels)
	assert.True(t, patched.CanViewRecipes, "untouched flags keep their value")
	assert.True(t, base.CanViewPanels, "base set is not mutated")
}

func TestPatch_Unknown(t *testing.T) {
	p := permission.Patch{permission.CanManageTeam: true, "canFly": true, "canSwim": false}
	assert.Equal(t, []string{"canFly", "canSwim"}, p.Unknown())
	assert.Empty(t, permission.Patch{permission.CanManageTeam: true}.Unknown())
}

func TestHas(t *testing.T) {
	s := permission.For(permission.RoleTeamMember)

	allowed, known := s.Has(permission.CanViewRecipes)
	assert.True(t, allowed)
	assert.True(t, known)

	allowed, known = s.Has(permission.CanManageTeam)
	assert.False(t, allowed)
	assert.True(t, known)

	_, known = s.Has("canFly")
	assert.False(t, known)
}

func TestRole_Normalize(t *testing.T) {
	tests := []struct {
		in   permission.Role
		want permission.Role
	}{
		{"user", permission.RoleTeamMember},
		{"team-member", permission.RoleTeamMember},
		{"Head-Chef", permission.RoleHeadChef},
		{"super-admin", permission.RoleSuperAdmin},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
			assert.True(t, tt.in.Valid())
		})
	}
	assert.False(t, permission.Role("owner").Valid())
	assert.True(t, permission.RoleHeadChef.IsStaff())
	assert.False(t, permission.Role("user").IsStaff())
}
