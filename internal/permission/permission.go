// Package permission holds the role enum and the capability set attached to
// every user. The set for a role is a pure function of the role; admins may
// overlay a partial patch on top of it.
package permission

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleHeadChef   Role = "head-chef"
	RoleTeamMember Role = "team-member"

	// legacy name for team members, still present in old records
	roleLegacyUser Role = "user"
)

// Normalize maps legacy spellings onto the canonical enum.
func (r Role) Normalize() Role {
	switch Role(strings.ToLower(strings.TrimSpace(string(r)))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleHeadChef:
		return RoleHeadChef
	case RoleTeamMember, roleLegacyUser:
		return RoleTeamMember
	}
	return r
}

func (r Role) Valid() bool {
	switch r.Normalize() {
	case RoleSuperAdmin, RoleHeadChef, RoleTeamMember:
		return true
	}
	return false
}

// IsStaff reports whether the role authenticates with email and password
// and receives staff token lifetimes.
func (r Role) IsStaff() bool {
	n := r.Normalize()
	return n == RoleSuperAdmin || n == RoleHeadChef
}

type Name string

const (
	CanViewRecipes         Name = "canViewRecipes"
	CanEditRecipes         Name = "canEditRecipes"
	CanDeleteRecipes       Name = "canDeleteRecipes"
	CanUpdateRecipes       Name = "canUpdateRecipes"
	CanViewPlateups        Name = "canViewPlateups"
	CanCreatePlateups      Name = "canCreatePlateups"
	CanDeletePlateups      Name = "canDeletePlateups"
	CanUpdatePlateups      Name = "canUpdatePlateups"
	CanViewNotifications   Name = "canViewNotifications"
	CanCreateNotifications Name = "canCreateNotifications"
	CanDeleteNotifications Name = "canDeleteNotifications"
	CanUpdateNotifications Name = "canUpdateNotifications"
	CanViewPanels          Name = "canViewPanels"
	CanCreatePanels        Name = "canCreatePanels"
	CanDeletePanels        Name = "canDeletePanels"
	CanUpdatePanels        Name = "canUpdatePanels"
	CanManageTeam          Name = "canManageTeam"
	CanAccessAdmin         Name = "canAccessAdmin"
)

// Set is persisted as one boolean column per capability.
type Set struct {
	CanViewRecipes         bool `json:"canViewRecipes"`
	CanEditRecipes         bool `json:"canEditRecipes"`
	CanDeleteRecipes       bool `json:"canDeleteRecipes"`
	CanUpdateRecipes       bool `json:"canUpdateRecipes"`
	CanViewPlateups        bool `json:"canViewPlateups"`
	CanCreatePlateups      bool `json:"canCreatePlateups"`
	CanDeletePlateups      bool `json:"canDeletePlateups"`
	CanUpdatePlateups      bool `json:"canUpdatePlateups"`
	CanViewNotifications   bool `json:"canViewNotifications"`
	CanCreateNotifications bool `json:"canCreateNotifications"`
	CanDeleteNotifications bool `json:"canDeleteNotifications"`
	CanUpdateNotifications bool `json:"canUpdateNotifications"`
	CanViewPanels          bool `json:"canViewPanels"`
	CanCreatePanels        bool `json:"canCreatePanels"`
	CanDeletePanels        bool `json:"canDeletePanels"`
	CanUpdatePanels        bool `json:"canUpdatePanels"`
	CanManageTeam          bool `json:"canManageTeam"`
	CanAccessAdmin         bool `json:"canAccessAdmin"`
}

func (s *Set) fields() map[Name]*bool {
	return map[Name]*bool{
		CanViewRecipes:         &s.CanViewRecipes,
		CanEditRecipes:         &s.CanEditRecipes,
		CanDeleteRecipes:       &s.CanDeleteRecipes,
		CanUpdateRecipes:       &s.CanUpdateRecipes,
		CanViewPlateups:        &s.CanViewPlateups,
		CanCreatePlateups:      &s.CanCreatePlateups,
		CanDeletePlateups:      &s.CanDeletePlateups,
		CanUpdatePlateups:      &s.CanUpdatePlateups,
		CanViewNotifications:   &s.CanViewNotifications,
		CanCreateNotifications: &s.CanCreateNotifications,
		CanDeleteNotifications: &s.CanDeleteNotifications,
		CanUpdateNotifications: &s.CanUpdateNotifications,
		CanViewPanels:          &s.CanViewPanels,
		CanCreatePanels:        &s.CanCreatePanels,
		CanDeletePanels:        &s.CanDeletePanels,
		CanUpdatePanels:        &s.CanUpdatePanels,
		CanManageTeam:          &s.CanManageTeam,
		CanAccessAdmin:         &s.CanAccessAdmin,
	}
}

// Has returns the value of a capability and whether the name is known.
func (s Set) Has(name Name) (allowed bool, known bool) {
	p, ok := s.fields()[name]
	if !ok {
		return false, false
	}
	return *p, true
}

// Known reports whether name is a capability.
func Known(name Name) bool {
	_, ok := (&Set{}).fields()[name]
	return ok
}

// Names lists every capability in a stable order.
func Names() []Name {
	fields := (&Set{}).fields()
	names := make([]Name, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

var viewOnly = []Name{CanViewRecipes, CanViewPlateups, CanViewNotifications, CanViewPanels}

// For derives the capability set of a role. Unknown roles get nothing.
func For(role Role) Set {
	var s Set
	fields := s.fields()

	switch role.Normalize() {
	case RoleSuperAdmin, RoleHeadChef:
		for _, p := range fields {
			*p = true
		}
	case RoleTeamMember:
		for _, n := range viewOnly {
			*fields[n] = true
		}
	}
	return s
}

// Patch is a partial override keyed by capability name.
type Patch map[Name]bool

// Unknown returns the names in the patch that are not capabilities.
func (p Patch) Unknown() []string {
	var bad []string
	for n := range p {
		if !Known(n) {
			bad = append(bad, string(n))
		}
	}
	sort.Strings(bad)
	return bad
}

// Apply merges the patch over s. Names not in the patch keep their value;
// unknown names are ignored.
func (s Set) Apply(p Patch) Set {
	out := s
	fields := out.fields()
	for n, v := range p {
		if f, ok := fields[n]; ok {
			*f = v
		}
	}
	return out
}
