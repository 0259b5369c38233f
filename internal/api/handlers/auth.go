package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
)

type AuthHandler struct {
	engine *auth.Engine
	errs   *Errors
}

func NewAuthHandler(engine *auth.Engine, errs *Errors) *AuthHandler {
	return &AuthHandler{engine: engine, errs: errs}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.RegisterHeadChef(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewAuthResponse(res))
}

// Login, LoginByName and TeamLogin do not validate up front: the engine
// gates the address before looking at the body.

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r)(h.engine.Login(r.Context(), middleware.ClientIP(r), req))
}

func (h *AuthHandler) LoginByName(w http.ResponseWriter, r *http.Request) {
	var req auth.NameLoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r)(h.engine.LoginByName(r.Context(), middleware.ClientIP(r), req))
}

func (h *AuthHandler) TeamLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.TeamLoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r)(h.engine.LoginByName(r.Context(), middleware.ClientIP(r), req.NameLogin()))
}

func (h *AuthHandler) LoginWithMemberID(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.engine.LoginWithMemberID(r.Context(), middleware.ClientIP(r),
		chi.URLParam(r, "organizationId"), chi.URLParam(r, "memberId")))
}

func (h *AuthHandler) QREntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.QREntry(r.Context(), chi.URLParam(r, "orgId"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		h.errs.Invalid(w, map[string]string{"refreshToken": "Refresh token is required"})
		return
	}
	h.respond(w, r)(h.engine.Refresh(r.Context(), req.RefreshToken))
}

// Logout is an acknowledgement; tokens are stateless and expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.ForgotPassword(r.Context(), req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{
		Message: "If an account exists for that email, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.ResetPassword(r.Context(), req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password has been reset"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, restaurant, err := h.engine.Profile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	resp := dto.ProfileResponse{User: dto.NewUser(user)}
	if restaurant != nil {
		rd := dto.NewRestaurant(restaurant)
		resp.Restaurant = &rd
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request) func(*auth.LoginResult, error) {
	return func(res *auth.LoginResult, err error) {
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewAuthResponse(res))
	}
}
