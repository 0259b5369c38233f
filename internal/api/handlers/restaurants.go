package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/api/middleware"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/tenant"
)

type RestaurantHandler struct {
	engine  *auth.Engine
	tenants *tenant.Registry
	errs    *Errors
}

func NewRestaurantHandler(engine *auth.Engine, tenants *tenant.Registry, errs *Errors) *RestaurantHandler {
	return &RestaurantHandler{engine: engine, tenants: tenants, errs: errs}
}

func (h *RestaurantHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.SignupRestaurant(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.SignupResponse{
		AuthResponse:     dto.NewAuthResponse(&res.LoginResult),
		VerificationSent: res.VerificationSent,
	})
}

func (h *RestaurantHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Email verified"})
}

func (h *RestaurantHandler) mine(w http.ResponseWriter, r *http.Request) (*models.Restaurant, bool) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.Organization == "" {
		h.errs.Write(w, r, auth.ErrRestaurantNotFound)
		return nil, false
	}
	restaurant, err := h.tenants.Resolve(r.Context(), user.Organization)
	if err != nil {
		h.errs.Write(w, r, err)
		return nil, false
	}
	return restaurant, true
}

func (h *RestaurantHandler) Mine(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.mine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRestaurant(restaurant))
}

// UpdateMine changes descriptive fields of the caller's restaurant. Only
// the owning head chef may do this.
func (h *RestaurantHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateRestaurantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		h.errs.Invalid(w, fields)
		return
	}

	restaurant, ok := h.mine(w, r)
	if !ok {
		return
	}
	if restaurant.HeadChefID != middleware.GetUserID(r.Context()) {
		h.errs.Write(w, r, auth.ErrNotRestaurantOwner)
		return
	}

	updated, err := h.tenants.Update(r.Context(), restaurant.ID, req.Input())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRestaurant(updated))
}

// AdminHandler serves platform administration of every restaurant.
type AdminHandler struct {
	tenants *tenant.Registry
	errs    *Errors
}

func NewAdminHandler(tenants *tenant.Registry, errs *Errors) *AdminHandler {
	return &AdminHandler{tenants: tenants, errs: errs}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	status := models.RestaurantStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		h.errs.Invalid(w, map[string]string{"status": "Status must be one of: trial, active, suspended, cancelled"})
		return
	}

	restaurants, total, err := h.tenants.List(r.Context(), tenant.ListFilter{
		Status:  status,
		Search:  q.Get("search"),
		Page:    params.Page,
		PerPage: params.PerPage,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       dto.NewRestaurants(restaurants),
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: params.TotalPages(total),
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tenants.Stats(r.Context())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.RestaurantStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		h.errs.Invalid(w, fields)
		return
	}

	restaurant, err := h.tenants.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	updated, err := h.tenants.SetStatus(r.Context(), restaurant.ID, models.RestaurantStatus(req.Status))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRestaurant(updated))
}

func (h *AdminHandler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
	var req dto.RestaurantPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		h.errs.Invalid(w, fields)
		return
	}

	restaurant, err := h.tenants.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	updated, err := h.tenants.ApplyPlan(r.Context(), restaurant.ID, models.PlanType(req.PlanType), req.BillingReference)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	billingRef, err := h.tenants.BillingReference(updated)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAdminRestaurant(updated, billingRef))
}
