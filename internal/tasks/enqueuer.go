package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/internal/database/models"
)

// TaskClient is the part of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands account emails to the worker. It satisfies auth.Notifier.
type Enqueuer struct {
	client TaskClient
	logger *slog.Logger
}

func NewEnqueuer(client TaskClient, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

func emailPayload(u *models.User, token string) EmailPayload {
	return EmailPayload{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.DisplayName(),
		Token:  token,
	}
}

func (e *Enqueuer) SendVerificationEmail(ctx context.Context, u *models.User, token string) error {
	task, err := NewVerificationEmailTask(emailPayload(u, token))
	if err != nil {
		return fmt.Errorf("creating verification task: %w", err)
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) SendPasswordReset(ctx context.Context, u *models.User, token string) error {
	task, err := NewPasswordResetEmailTask(emailPayload(u, token))
	if err != nil {
		return fmt.Errorf("creating password reset task: %w", err)
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s: %w", task.Type(), err)
	}
	e.logger.Debug("task enqueued", "type", task.Type(), "task_id", info.ID)
	return nil
}

// InlineNotifier runs the email handlers in the calling goroutine. The
// server falls back to it when no queue is reachable.
type InlineNotifier struct {
	handler *Handler
}

func NewInlineNotifier(handler *Handler) *InlineNotifier {
	return &InlineNotifier{handler: handler}
}

func (n *InlineNotifier) SendVerificationEmail(ctx context.Context, u *models.User, token string) error {
	task, err := NewVerificationEmailTask(emailPayload(u, token))
	if err != nil {
		return err
	}
	return n.handler.HandleVerificationEmail(ctx, task)
}

func (n *InlineNotifier) SendPasswordReset(ctx context.Context, u *models.User, token string) error {
	task, err := NewPasswordResetEmailTask(emailPayload(u, token))
	if err != nil {
		return err
	}
	return n.handler.HandlePasswordResetEmail(ctx, task)
}
