package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
)

// ownedMember loads a team member the actor may transition: the member
// must report to the actor and sit in the actor's organization. Anything
// else looks like a missing member so other tenants stay invisible.
func (e *Engine) ownedMember(ctx context.Context, actor *models.User, memberID uuid.UUID) (*models.User, error) {
	if actor.Organization == "" {
		return nil, ErrTeamMemberNotFound
	}
	member, err := e.users.FindMember(ctx, memberID, actor.Organization)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrTeamMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	if member.HeadChefID == nil || *member.HeadChefID != actor.ID {
		return nil, ErrTeamMemberNotFound
	}
	return member, nil
}

// checkTransition allows only pending -> active and pending -> rejected.
func checkTransition(from, to models.UserStatus) error {
	if !to.Valid() || from != models.UserStatusPending || to == models.UserStatusPending {
		return ErrInvalidTransition
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, actor *models.User, memberID uuid.UUID, to models.UserStatus) (*models.User, error) {
	member, err := e.ownedMember(ctx, actor, memberID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(member.Status, to); err != nil {
		return nil, err
	}

	member.Status = to
	if err := e.users.Save(ctx, member); err != nil {
		return nil, err
	}

	e.logger.Info("team member status changed",
		"user_id", member.ID, "status", to, "by", actor.ID, "organization", actor.Organization)
	return member, nil
}

// ListPending returns the actor's members awaiting approval.
func (e *Engine) ListPending(ctx context.Context, actor *models.User) ([]models.User, error) {
	members, err := e.users.ListTeam(ctx, actor.Organization, models.UserStatusPending)
	if err != nil {
		return nil, err
	}

	owned := members[:0]
	for _, m := range members {
		if m.HeadChefID != nil && *m.HeadChefID == actor.ID {
			owned = append(owned, m)
		}
	}
	return owned, nil
}

func (e *Engine) Approve(ctx context.Context, actor *models.User, memberID uuid.UUID) (*models.User, error) {
	return e.transition(ctx, actor, memberID, models.UserStatusActive)
}

func (e *Engine) Reject(ctx context.Context, actor *models.User, memberID uuid.UUID) (*models.User, error) {
	return e.transition(ctx, actor, memberID, models.UserStatusRejected)
}

// ApproveAndIssueTokens approves the member and signs them in at once.
func (e *Engine) ApproveAndIssueTokens(ctx context.Context, actor *models.User, memberID uuid.UUID) (*LoginResult, error) {
	member, err := e.Approve(ctx, actor, memberID)
	if err != nil {
		return nil, err
	}

	restaurant, err := e.tenantOf(ctx, member)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, &principal{user: member, restaurant: restaurant}, false)
}
