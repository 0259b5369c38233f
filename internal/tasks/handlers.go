package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/pkg/util"
)

type Handler struct {
	tenants     *tenant.Registry
	mailer      Mailer
	frontendURL string
	logger      *slog.Logger
}

func NewHandler(tenants *tenant.Registry, mailer Mailer, frontendURL string, logger *slog.Logger) *Handler {
	return &Handler{
		tenants:     tenants,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      util.Component(logger, "worker"),
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVerificationEmail, h.HandleVerificationEmail)
	mux.HandleFunc(TypePasswordResetEmail, h.HandlePasswordResetEmail)
	mux.HandleFunc(TypeTrialSweep, h.HandleTrialSweep)
}

func decodeEmail(t *asynq.Task) (EmailPayload, error) {
	var payload EmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.Token == "" {
		return payload, fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}
	return payload, nil
}

func (h *Handler) link(path, token string) string {
	return h.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (h *Handler) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeEmail(t)
	if err != nil {
		return err
	}

	msg := Message{
		To:      payload.Email,
		Subject: "Confirm your Chef en Place account",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish setting up your restaurant:\n%s\n",
			payload.Name, h.link("/verify-email", payload.Token)),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending verification email: %w", err)
	}

	h.logger.Info("verification email sent", "user_id", payload.UserID)
	return nil
}

func (h *Handler) HandlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeEmail(t)
	if err != nil {
		return err
	}

	msg := Message{
		To:      payload.Email,
		Subject: "Reset your Chef en Place password",
		Body: fmt.Sprintf("Hi %s,\n\nUse this link to choose a new password:\n%s\n\nIf you did not ask for this, ignore this email.\n",
			payload.Name, h.link("/reset-password", payload.Token)),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending password reset email: %w", err)
	}

	h.logger.Info("password reset email sent", "user_id", payload.UserID)
	return nil
}

// HandleTrialSweep suspends restaurants whose trial has ended.
func (h *Handler) HandleTrialSweep(ctx context.Context, _ *asynq.Task) error {
	expired, err := h.tenants.ExpireTrials(ctx)
	if err != nil {
		return err
	}

	h.logger.Info("trial sweep completed", "suspended", len(expired))
	return nil
}
