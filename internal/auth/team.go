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
)

// TeamUpdate is a partial update of one team member. Nil fields are left
// alone; Permissions is overlaid on the role's base set.
type TeamUpdate struct {
	Role        *permission.Role
	IsActive    *bool
	Status      *models.UserStatus
	Permissions permission.Patch

	// IssueTokens signs the member in when this update approves them.
	IssueTokens bool
}

type TeamUpdateResult struct {
	Member   *models.User
	LoginURL string
	Login    *LoginResult
}

func (e *Engine) teamMember(ctx context.Context, actor *models.User, memberID uuid.UUID) (*models.User, error) {
	if actor.Organization == "" {
		return nil, ErrNotRestaurantOwner
	}
	if actor.ID == memberID {
		return nil, ErrCannotModifySelf
	}
	member, err := e.users.FindMember(ctx, memberID, actor.Organization)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrTeamMemberNotFound
	}
	return member, err
}

// UpdateTeamMember changes a member of the actor's organization. A status
// change additionally requires that the member reports to the actor.
func (e *Engine) UpdateTeamMember(ctx context.Context, actor *models.User, memberID uuid.UUID, upd TeamUpdate) (*TeamUpdateResult, error) {
	fields := map[string]string{}
	if upd.Role != nil {
		r := upd.Role.Normalize()
		if !r.Valid() || r == permission.RoleSuperAdmin {
			fields["role"] = "Role must be one of: head-chef, team-member"
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		fields["status"] = "Status must be one of: pending, active, rejected"
	}
	if unknown := upd.Permissions.Unknown(); len(unknown) > 0 {
		fields["permissions"] = "Unknown permissions: " + strings.Join(unknown, ", ")
	}
	if err := invalid(fields); err != nil {
		return nil, err
	}

	member, err := e.teamMember(ctx, actor, memberID)
	if err != nil {
		return nil, err
	}

	approved := false
	if upd.Status != nil && *upd.Status != member.Status {
		if member.HeadChefID == nil || *member.HeadChefID != actor.ID {
			return nil, ErrTeamMemberNotFound
		}
		if err := checkTransition(member.Status, *upd.Status); err != nil {
			return nil, err
		}
		member.Status = *upd.Status
		approved = member.Status == models.UserStatusActive
	}

	if upd.Role != nil {
		role := upd.Role.Normalize()
		if role != member.Role {
			member.Role = role
			member.Permissions = permission.For(role)
			member.PermissionsRole = role
		}
	}
	if len(upd.Permissions) > 0 {
		member.Permissions = member.Permissions.Apply(upd.Permissions)
	}
	if upd.IsActive != nil {
		member.IsActive = *upd.IsActive
	}

	if err := e.users.Save(ctx, member); err != nil {
		return nil, err
	}

	e.logger.Info("team member updated", "user_id", member.ID, "by", actor.ID, "organization", actor.Organization)

	result := &TeamUpdateResult{Member: member}
	if !approved {
		return result, nil
	}

	restaurant, err := e.tenantOf(ctx, member)
	if err != nil {
		return nil, err
	}
	if restaurant != nil {
		result.LoginURL = e.KioskURL(restaurant)
	}
	if upd.IssueTokens {
		login, err := e.issue(ctx, &principal{user: member, restaurant: restaurant}, false)
		if err != nil {
			return nil, err
		}
		result.Login = login
	}
	return result, nil
}

func (e *Engine) ListTeam(ctx context.Context, actor *models.User, status models.UserStatus) ([]models.User, error) {
	if actor.Organization == "" {
		return nil, ErrNotRestaurantOwner
	}
	return e.users.ListTeam(ctx, actor.Organization, status)
}

// RemoveTeamMember deactivates the member; records are never deleted.
func (e *Engine) RemoveTeamMember(ctx context.Context, actor *models.User, memberID uuid.UUID) error {
	member, err := e.teamMember(ctx, actor, memberID)
	if err != nil {
		return err
	}

	member.IsActive = false
	if err := e.users.Save(ctx, member); err != nil {
		return err
	}

	e.logger.Info("team member deactivated", "user_id", member.ID, "by", actor.ID)
	return nil
}

type InviteLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InviteLink signs an invite for new members of the head chef's team.
func (e *Engine) InviteLink(ctx context.Context, actor *models.User) (*InviteLink, error) {
	if actor.Role.Normalize() != permission.RoleHeadChef || actor.Organization == "" {
		return nil, ErrNotRestaurantOwner
	}
	if _, err := e.resolveTenant(ctx, actor.Organization); err != nil {
		return nil, err
	}

	token, expires, err := e.tokens.IssueInvite(actor.ID, actor.Organization)
	if err != nil {
		return nil, fmt.Errorf("signing invite: %w", err)
	}
	return &InviteLink{URL: e.frontendURL + "/chef-invite/" + token, ExpiresAt: expires}, nil
}

type MemberLink struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	LoginURL string    `json:"loginUrl"`
}

type LoginLinks struct {
	OrganizationID string       `json:"organizationId"`
	RestaurantName string       `json:"restaurantName"`
	LoginLink      string       `json:"loginLink"`
	QRCodeURL      string       `json:"qrCodeUrl"`
	TeamMembers    []MemberLink `json:"teamMembers"`
}

// LoginLinks lists the kiosk page and a deep link per active member.
func (e *Engine) LoginLinks(ctx context.Context, actor *models.User) (*LoginLinks, error) {
	if actor.Organization == "" {
		return nil, ErrNotRestaurantOwner
	}
	restaurant, err := e.resolveTenant(ctx, actor.Organization)
	if err != nil {
		return nil, err
	}

	members, err := e.users.ListTeam(ctx, restaurant.Slug, models.UserStatusActive)
	if err != nil {
		return nil, err
	}

	kiosk := e.KioskURL(restaurant)
	links := &LoginLinks{
		OrganizationID: restaurant.OrganizationID,
		RestaurantName: restaurant.Name,
		LoginLink:      kiosk,
		QRCodeURL:      e.frontendURL + "/restaurant/" + restaurant.OrganizationID,
		TeamMembers:    make([]MemberLink, 0, len(members)),
	}
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		links.TeamMembers = append(links.TeamMembers, MemberLink{
			ID:       m.ID,
			Name:     m.DisplayName(),
			LoginURL: kiosk + "/" + m.ID.String(),
		})
	}
	return links, nil
}
