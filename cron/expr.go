package cron

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/courier"
)

// parser accepts standard 5-field expressions and descriptors like
// "@every 30s".
var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", courier.ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}

// Daily returns an expression firing every day at the "HH:MM" time at.
func Daily(at string) (string, error) {
	h, m, err := clock(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Weekly returns an expression firing on day at the "HH:MM" time at.
func Weekly(day time.Weekday, at string) (string, error) {
	if day < time.Sunday || day > time.Saturday {
		return "", fmt.Errorf("%w: weekday %d", courier.ErrInvalidSchedule, day)
	}
	h, m, err := clock(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * %d", m, h, day), nil
}

// Hourly returns an expression firing at minute 0 of every hour.
func Hourly() string { return "@hourly" }

// Every returns an expression firing every d, counted from Start. The
// cron library rounds d down to whole seconds, with a one second minimum.
func Every(d time.Duration) string { return "@every " + d.String() }

func clock(at string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time of day %q, want HH:MM", courier.ErrInvalidSchedule, at)
	}
	return t.Hour(), t.Minute(), nil
}
