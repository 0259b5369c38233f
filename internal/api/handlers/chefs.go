package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/auth"
)

// ChefHandler serves the public routes that create pending team members.
type ChefHandler struct {
	engine *auth.Engine
	errs   *Errors
}

func NewChefHandler(engine *auth.Engine, errs *Errors) *ChefHandler {
	return &ChefHandler{engine: engine, errs: errs}
}

func (h *ChefHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestAccessInput
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.engine.RequestAccess(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewRequestAccessResponse(member,
		"Access request submitted. Your head chef needs to approve it."))
}

func (h *ChefHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req auth.AcceptInviteInput
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.engine.AcceptInvite(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewRequestAccessResponse(member,
		"Invite accepted. Your head chef needs to approve your access."))
}
