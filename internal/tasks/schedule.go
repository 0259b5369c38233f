package tasks

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/chefenplace/pkg/util"
)

// Scheduler is the part of *asynq.Scheduler used to register periodic work.
type Scheduler interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterPeriodic schedules the trial sweep. Overlapping runs are
// collapsed to one per period.
func RegisterPeriodic(s Scheduler, trialSweepCron string, now time.Time) (string, error) {
	if err := util.ValidateCronExpr(trialSweepCron); err != nil {
		return "", fmt.Errorf("trial sweep: %w", err)
	}
	period, err := util.CronPeriod(trialSweepCron, now)
	if err != nil {
		return "", err
	}

	id, err := s.Register(trialSweepCron, NewTrialSweepTask(),
		asynq.Queue("low"),
		asynq.MaxRetry(3),
		asynq.Unique(period),
	)
	if err != nil {
		return "", fmt.Errorf("registering trial sweep: %w", err)
	}
	return id, nil
}
