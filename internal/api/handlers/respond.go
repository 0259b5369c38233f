package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/api/dto"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/guard"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/pkg/util"
)

const maxBodyBytes = 1 << 20

type outcome struct {
	status  int
	message string
	account string
}

var outcomes = map[string]outcome{
	"validation_failed":          {http.StatusBadRequest, "Validation failed", ""},
	"duplicate_team_member":      {http.StatusBadRequest, "A team member with this name already exists", ""},
	"incorrect_password":         {http.StatusBadRequest, "Current password is incorrect", ""},
	"invalid_reset_token":        {http.StatusBadRequest, "Invalid or expired reset token", ""},
	"invalid_verification_token": {http.StatusBadRequest, "Invalid or expired verification token", ""},
	"cannot_modify_self":         {http.StatusBadRequest, "You cannot change your own team record", ""},
	"invalid_credentials":        {http.StatusUnauthorized, "Invalid credentials", ""},
	"invalid_token":              {http.StatusUnauthorized, "Invalid token", ""},
	"token_expired":              {http.StatusUnauthorized, "Token expired", ""},
	"restaurant_suspended":       {http.StatusForbidden, "Restaurant access is suspended", ""},
	"plan_limit_reached":         {http.StatusForbidden, "Team member limit reached for the current plan", ""},
	"account_deactivated":        {http.StatusForbidden, "Account is deactivated", "inactive"},
	"pending_approval":           {http.StatusForbidden, "Access pending approval", "pending"},
	"access_rejected":            {http.StatusForbidden, "Access has been rejected", "rejected"},
	"user_not_found":             {http.StatusNotFound, "User not found", ""},
	"restaurant_not_found":       {http.StatusNotFound, "Restaurant not found", ""},
	"team_member_not_found":      {http.StatusNotFound, "Team member not found", ""},
	"head_chef_not_found":        {http.StatusNotFound, "Head chef not found", ""},
	"email_taken":                {http.StatusConflict, "Email already registered", ""},
	"invalid_status_transition":  {http.StatusConflict, "Invalid status transition", ""},
}

// Errors turns domain errors into HTTP answers. Unknown errors are logged
// in full and answered generically unless running in development.
type Errors struct {
	logger *slog.Logger
	dev    bool
}

func NewErrors(logger *slog.Logger, development bool) *Errors {
	return &Errors{logger: util.Component(logger, "api"), dev: development}
}

func (e *Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	var limit *guard.LimitError
	if errors.As(err, &limit) {
		w.Header().Set("Retry-After", strconv.FormatInt(limit.RetryAfterSeconds(), 10))
		writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
			Error: "Too many failed attempts. Try again later.",
			Code:  "rate_limited",
		})
		return
	}

	switch {
	case errors.Is(err, tenant.ErrNotFound):
		err = auth.ErrRestaurantNotFound
	case errors.Is(err, tenant.ErrInvalidName), errors.Is(err, tenant.ErrInvalidType),
		errors.Is(err, tenant.ErrInvalidStatus), errors.Is(err, tenant.ErrInvalidPlan):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation_failed"})
		return
	}

	code := auth.Code(err)
	if o, ok := outcomes[code]; ok {
		resp := dto.ErrorResponse{Error: o.message, Code: code, Status: o.account}
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Fields
		}
		writeJSON(w, o.status, resp)
		return
	}

	e.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	resp := dto.ErrorResponse{Error: "Internal server error", Code: "server_error"}
	if e.dev {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// Invalid answers 400 with per-field details from a request's Validate.
func (e *Errors) Invalid(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_failed",
		Details: fields,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: "invalid_body"})
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_failed",
			Details: map[string]string{param: "Must be a valid id"},
		})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
