package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Templates use 6-field cron expressions with seconds resolution
// (second minute hour day-of-month month day-of-week).
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// CronSchedule wraps a parsed cron expression and walks its firing instants.
type CronSchedule struct {
	expression string
	schedule   cron.Schedule
}

// ParseCron normalizes and parses a template cron expression. A 5-field
// expression gets a "0" seconds field prefixed; Quartz-style "?" day fields
// are treated as "*".
func ParseCron(expression string) (*CronSchedule, error) {
	fields := strings.Fields(expression)
	if len(fields) == 5 {
		fields = append([]string{"0"}, fields...)
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("cron expression %q must have 5 or 6 fields, got %d", expression, len(fields))
	}
	for i, field := range fields {
		if field == "?" {
			fields[i] = "*"
		}
	}

	normalized := strings.Join(fields, " ")
	schedule, err := cronParser.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return &CronSchedule{expression: normalized, schedule: schedule}, nil
}

// Next returns the first firing instant strictly after t, or the zero time
// when the schedule can never fire again.
func (c *CronSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

func (c *CronSchedule) String() string {
	return c.expression
}
