package handlers

import (
	"net/http"

	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
)

// TeamHandler serves the head chef's team management routes. Routes are
// mounted behind the canManageTeam permission.
type TeamHandler struct {
	engine *auth.Engine
	errs   *Errors
}

func NewTeamHandler(engine *auth.Engine, errs *Errors) *TeamHandler {
	return &TeamHandler{engine: engine, errs: errs}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.UserStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.errs.Invalid(w, map[string]string{"status": "Status must be one of: pending, active, rejected"})
		return
	}

	members, err := h.engine.ListTeam(r.Context(), middleware.GetUser(r.Context()), status)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUsers(members))
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateTeamMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		h.errs.Invalid(w, fields)
		return
	}

	res, err := h.engine.UpdateTeamMember(r.Context(), middleware.GetUser(r.Context()), id, req.Update())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTeamMemberResponse(res))
}

func (h *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engine.RemoveTeamMember(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Team member deactivated"})
}

func (h *TeamHandler) Pending(w http.ResponseWriter, r *http.Request) {
	members, err := h.engine.ListPending(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUsers(members))
}

func (h *TeamHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req dto.PendingDecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		h.errs.Invalid(w, fields)
		return
	}

	actor := middleware.GetUser(r.Context())
	var (
		member *models.User
		err    error
	)
	switch req.Action {
	case dto.DecisionApproveAndIssueTokens:
		res, err := h.engine.ApproveAndIssueTokens(r.Context(), actor, id)
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		login := dto.NewAuthResponse(res)
		writeJSON(w, http.StatusOK, dto.TeamMemberResponse{Member: login.User, LoginData: &login})
		return
	case dto.DecisionApprove:
		member, err = h.engine.Approve(r.Context(), actor, id)
	default:
		member, err = h.engine.Reject(r.Context(), actor, id)
	}
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TeamMemberResponse{Member: dto.NewUser(member)})
}

func (h *TeamHandler) InviteLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.engine.InviteLink(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *TeamHandler) LoginLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.engine.LoginLinks(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}
