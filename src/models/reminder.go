package models

import "time"

type Channel string

const (
	ChannelEmail      Channel = "EMAIL"
	ChannelSMS        Channel = "SMS"
	ChannelWechatMini Channel = "WECHAT_MINI"
)

// Reminder is one concrete, timestamped reminder instance. It is either
// generated from a ReminderTemplate (TemplateID set) or created standalone.
// Title, description and channel are snapshots taken at generation time;
// later template edits do not change rows that already exist.
type Reminder struct {
	ID          int64     `db:"id"`
	OwnerID     int64     `db:"owner_id"`
	RecipientID int64     `db:"recipient_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	EventTime   time.Time `db:"event_time"`
	Channel     Channel   `db:"channel"`
	TemplateID  *int64    `db:"originating_template_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
