package models

// UserNotificationProfile carries the contact addresses needed to deliver a
// reminder. The reminder tables hold plain user ids with no foreign key; this
// profile is resolved at dispatch time from the user store.
type UserNotificationProfile struct {
	UserID       int64  `db:"id"`
	Email        string `db:"email"`
	PhoneNumber  string `db:"phone_number"`
	WechatOpenID string `db:"wechat_openid"`
}

// AddressFor returns the contact address matching a channel, or "" when the
// user has none stored for it.
func (p *UserNotificationProfile) AddressFor(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return p.Email
	case ChannelSMS:
		return p.PhoneNumber
	case ChannelWechatMini:
		return p.WechatOpenID
	default:
		return ""
	}
}
