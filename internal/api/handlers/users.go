package handlers

import (
	"net/http"

	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
)

type UserHandler struct {
	engine *auth.Engine
	errs   *Errors
}

func NewUserHandler(engine *auth.Engine, errs *Errors) *UserHandler {
	return &UserHandler{engine: engine, errs: errs}
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ChangePasswordInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password updated"})
}

// Status is public so a kiosk can poll while an access request is pending.
// It reveals nothing but the approval state.
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.engine.ApprovalStatus(r.Context(), id)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: string(status)})
}
