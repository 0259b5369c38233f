package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeVerificationEmail  = "email:verification"
	TypePasswordResetEmail = "email:password_reset"
	TypeTrialSweep         = "tenant:trial_sweep"
)

// EmailPayload carries a one-time token to a single recipient. The token is
// the raw value; only its hash is stored with the user.
type EmailPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Token  string    `json:"token"`
}

func NewVerificationEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVerificationEmail, data), nil
}

func NewPasswordResetEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePasswordResetEmail, data), nil
}

// TrialSweepPayload is empty - the sweep checks every restaurant
type TrialSweepPayload struct{}

func NewTrialSweepTask() *asynq.Task {
	return asynq.NewTask(TypeTrialSweep, nil)
}
