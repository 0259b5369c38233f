package dto

import (
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/internal/validation"
)

// UpdateTeamMemberRequest is a partial update; absent fields are unchanged.
type UpdateTeamMemberRequest struct {
	Role        *string         `json:"role,omitempty" validate:"omitempty,oneof=head-chef team-member user"`
	IsActive    *bool           `json:"isActive,omitempty"`
	Status      *string         `json:"status,omitempty" validate:"omitempty,oneof=pending active rejected"`
	Permissions map[string]bool `json:"permissions,omitempty"`
	IssueTokens bool            `json:"issueTokens,omitempty"`
}

func (r UpdateTeamMemberRequest) Validate() map[string]string {
	return validation.Struct(r)
}

func (r UpdateTeamMemberRequest) Update() auth.TeamUpdate {
	upd := auth.TeamUpdate{IsActive: r.IsActive, IssueTokens: r.IssueTokens}
	if r.Role != nil {
		role := permission.Role(*r.Role)
		upd.Role = &role
	}
	if r.Status != nil {
		status := models.UserStatus(*r.Status)
		upd.Status = &status
	}
	if len(r.Permissions) > 0 {
		upd.Permissions = make(permission.Patch, len(r.Permissions))
		for k, v := range r.Permissions {
			upd.Permissions[permission.Name(k)] = v
		}
	}
	return upd
}

type TeamMemberResponse struct {
	Member    UserDTO       `json:"member"`
	LoginURL  string        `json:"loginUrl,omitempty"`
	LoginData *AuthResponse `json:"loginData,omitempty"`
}

func NewTeamMemberResponse(res *auth.TeamUpdateResult) TeamMemberResponse {
	resp := TeamMemberResponse{Member: NewUser(res.Member), LoginURL: res.LoginURL}
	if res.Login != nil {
		login := NewAuthResponse(res.Login)
		resp.LoginData = &login
	}
	return resp
}

const (
	DecisionApprove               = "approve"
	DecisionReject                = "reject"
	DecisionApproveAndIssueTokens = "approveAndIssueTokens"
)

type PendingDecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject approveAndIssueTokens"`
}

func (r PendingDecisionRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// RequestAccessResponse answers both access requests and accepted invites.
// ID and UserID both carry the new member's id.
type RequestAccessResponse struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	UserID  string  `json:"userId"`
	Message string  `json:"message,omitempty"`
	User    UserDTO `json:"user"`
}

func NewRequestAccessResponse(member *models.User, message string) RequestAccessResponse {
	return RequestAccessResponse{
		ID:      member.ID.String(),
		Status:  string(member.Status),
		UserID:  member.ID.String(),
		Message: message,
		User:    NewUser(member),
	}
}
