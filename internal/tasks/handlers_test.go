package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newHandler(t *testing.T) (*Handler, *recordingMailer, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	mailer := &recordingMailer{}
	return NewHandler(ts.Tenants, mailer, "https://app.test/", ts.Logger), mailer, ts
}

func emailTask(t *testing.T, typ string, payload EmailPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestHandleVerificationEmail(t *testing.T) {
	handler, mailer, _ := newHandler(t)

	task := emailTask(t, TypeVerificationEmail, EmailPayload{
		UserID: uuid.New(),
		Email:  "joe@x.com",
		Name:   "Joe Rossi",
		Token:  "abc123",
	})
	require.NoError(t, handler.HandleVerificationEmail(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "joe@x.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "https://app.test/verify-email?token=abc123")
	assert.Contains(t, mailer.sent[0].Body, "Joe Rossi")
}

func TestHandlePasswordResetEmail(t *testing.T) {
	handler, mailer, _ := newHandler(t)

	task := emailTask(t, TypePasswordResetEmail, EmailPayload{Email: "joe@x.com", Name: "Joe", Token: "a+b"})
	require.NoError(t, handler.HandlePasswordResetEmail(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].Body, "https://app.test/reset-password?token=a%2Bb")
}

func TestHandleEmail_BadPayloadSkipsRetry(t *testing.T) {
	handler, mailer, _ := newHandler(t)

	err := handler.HandleVerificationEmail(context.Background(), asynq.NewTask(TypeVerificationEmail, []byte("invalid json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = handler.HandlePasswordResetEmail(context.Background(), emailTask(t, TypePasswordResetEmail, EmailPayload{Email: "joe@x.com"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, mailer.sent)
}

func TestHandleEmail_MailerFailureRetries(t *testing.T) {
	handler, mailer, _ := newHandler(t)
	mailer.err = errors.New("smtp down")

	err := handler.HandleVerificationEmail(context.Background(),
		emailTask(t, TypeVerificationEmail, EmailPayload{Email: "joe@x.com", Token: "abc"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleTrialSweep(t *testing.T) {
	handler, _, ts := newHandler(t)
	ctx := context.Background()

	task := NewTrialSweepTask()
	require.NoError(t, handler.HandleTrialSweep(ctx, task))

	restaurant, err := ts.Tenants.FindBySlug(ctx, ts.Restaurant.Slug)
	require.NoError(t, err)
	assert.Equal(t, models.RestaurantStatusTrial, restaurant.Status)

	ts.Clock.Advance(15 * 24 * time.Hour)
	require.NoError(t, handler.HandleTrialSweep(ctx, task))

	restaurant, err = ts.Tenants.FindBySlug(ctx, ts.Restaurant.Slug)
	require.NoError(t, err)
	assert.Equal(t, models.RestaurantStatusSuspended, restaurant.Status)
}

func TestRegisterHandlers(t *testing.T) {
	handler, _, _ := newHandler(t)
	mux := asynq.NewServeMux()

	assert.NotPanics(t, func() {
		handler.RegisterHandlers(mux)
	})
}
