package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard five-field format (minute, hour, day, month, weekday), the same
// one the asynq scheduler accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextCronTime returns the next occurrence after from, in UTC.
func NextCronTime(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()), nil
}

func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// CronPeriod estimates the gap between two consecutive runs. Used to size
// the lookback of periodic sweeps.
func CronPeriod(cronExpr string, from time.Time) (time.Duration, error) {
	first, err := NextCronTime(cronExpr, from)
	if err != nil {
		return 0, err
	}
	second, err := NextCronTime(cronExpr, first)
	if err != nil {
		return 0, err
	}
	return second.Sub(first), nil
}
