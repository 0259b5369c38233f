package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func TestEnqueuer_QueuesEmails(t *testing.T) {
	client := &fakeClient{}
	enq := NewEnqueuer(client, testutil.DiscardLogger())
	user := &models.User{FirstName: "Joe", LastName: "Rossi", Email: "joe@x.com"}
	user.ID = uuid.New()

	require.NoError(t, enq.SendVerificationEmail(context.Background(), user, "verify-token"))
	require.NoError(t, enq.SendPasswordReset(context.Background(), user, "reset-token"))

	require.Len(t, client.tasks, 2)
	assert.Equal(t, TypeVerificationEmail, client.tasks[0].Type())
	assert.Equal(t, TypePasswordResetEmail, client.tasks[1].Type())

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(client.tasks[1].Payload(), &payload))
	assert.Equal(t, user.ID, payload.UserID)
	assert.Equal(t, "Joe Rossi", payload.Name)
	assert.Equal(t, "reset-token", payload.Token)
}

func TestEnqueuer_ClientError(t *testing.T) {
	enq := NewEnqueuer(&fakeClient{err: errors.New("redis unavailable")}, testutil.DiscardLogger())

	err := enq.SendVerificationEmail(context.Background(), &models.User{Email: "joe@x.com"}, "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeVerificationEmail)
}

type fakeScheduler struct {
	specs []string
	types []string
}

func (s *fakeScheduler) Register(spec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	s.specs = append(s.specs, spec)
	s.types = append(s.types, task.Type())
	return "entry-1", nil
}

func TestRegisterPeriodic(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("valid cron", func(t *testing.T) {
		s := &fakeScheduler{}
		id, err := RegisterPeriodic(s, "0 * * * *", now)
		require.NoError(t, err)
		assert.Equal(t, "entry-1", id)
		assert.Equal(t, []string{TypeTrialSweep}, s.types)
	})

	t.Run("invalid cron", func(t *testing.T) {
		s := &fakeScheduler{}
		_, err := RegisterPeriodic(s, "every hour", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cron expression")
		assert.Empty(t, s.specs)
	})
}

func TestInlineNotifier(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewInlineNotifier(NewHandler(nil, mailer, "https://app.test", testutil.DiscardLogger()))
	user := &models.User{Name: "Joe", Email: "joe@x.com"}
	user.ID = uuid.New()

	require.NoError(t, n.SendVerificationEmail(context.Background(), user, "v-1"))
	require.NoError(t, n.SendPasswordReset(context.Background(), user, "r-1"))

	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[0].Body, "https://app.test/verify-email?token=v-1")
	assert.Contains(t, mailer.sent[1].Body, "https://app.test/reset-password?token=r-1")

	mailer.err = errors.New("smtp down")
	assert.Error(t, n.SendPasswordReset(context.Background(), user, "r-2"))
}
