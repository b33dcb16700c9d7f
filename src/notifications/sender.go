package notifications

import (
	"context"

	"reminder/src/models"
)

// Sender delivers one notification over a single channel. Implementations must
// be safe for concurrent use; the delivery poller fans dispatches out across a
// worker pool.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, address, title, body string) error
}

// SenderFactory selects a sender by the channel tag stored on a reminder.
type SenderFactory struct {
	senders map[models.Channel]Sender
}

func NewSenderFactory(senders ...Sender) *SenderFactory {
	byChannel := make(map[models.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &SenderFactory{senders: byChannel}
}

func (f *SenderFactory) ForChannel(channel models.Channel) (Sender, bool) {
	s, ok := f.senders[channel]
	return s, ok
}

// MaskAddress hides the middle of a contact address for log lines and audit
// details.
func MaskAddress(address string) string {
	if len(address) <= 6 {
		return "***"
	}
	return address[:3] + "***" + address[len(address)-3:]
}
