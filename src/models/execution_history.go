package models

import "time"

const (
	ExecutionStatusSuccess = "SUCCESS"
	ExecutionStatusFailure = "FAILURE"
)

// ExecutionHistory is the append-only audit record of one dispatch attempt.
// User-facing fields are denormalized so the record stays readable even after
// the originating reminder or template is deleted. Rows are never updated;
// the only delete path is the retention cleanup job.
type ExecutionHistory struct {
	ID                 int64      `db:"id"`
	ExecutedAt         time.Time  `db:"executed_at"`
	TriggeringKind     string     `db:"triggering_kind"`
	ReminderID         *int64     `db:"triggering_reminder_id"`
	OwnerID            int64      `db:"owner_id"`
	RecipientID        int64      `db:"recipient_id"`
	Title              string     `db:"title"`
	Description        string     `db:"description"`
	ScheduledEventTime *time.Time `db:"scheduled_event_time"`
	Channel            Channel    `db:"channel"`
	Status             string     `db:"status"`
	Details            string     `db:"details"`
}
