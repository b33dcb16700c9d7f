package models

import "time"

// ReminderTemplate is a recurring reminder definition. The template itself is
// never fired; its cron expression is expanded into Reminder rows ahead of time.
type ReminderTemplate struct {
	ID             int64      `db:"id"`
	OwnerID        int64      `db:"owner_id"`
	RecipientID    int64      `db:"recipient_id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	CronExpression string     `db:"cron_expression"`
	Channel        Channel    `db:"channel"`
	ValidFrom      *time.Time `db:"valid_from"`
	ValidUntil     *time.Time `db:"valid_until"`
	MaxExecutions  *int       `db:"max_executions"`
	// LastGeneratedYM records, as YYYYMM, the calendar month through which
	// reminders have been generated. Nil means never generated.
	LastGeneratedYM *int      `db:"last_generated_ym"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
