package notifications

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"reminder/src/config"
	"reminder/src/models"
	"reminder/src/utils/requests"
)

// WechatSender delivers reminders as WeChat mini-program template messages
// through the notification gateway.
type WechatSender struct {
	api        *requests.ExternalAPIService
	baseURL    string
	templateID string
	apiKey     string
}

func NewWechatSender(cfg config.WechatConfig) *WechatSender {
	return &WechatSender{
		api:        requests.NewExternalAPIService(),
		baseURL:    cfg.BaseURL,
		templateID: cfg.TemplateID,
		apiKey:     cfg.APIKey,
	}
}

func (s *WechatSender) Channel() models.Channel {
	return models.ChannelWechatMini
}

type wechatTemplateMessage struct {
	ToUser     string                    `json:"touser"`
	TemplateID string                    `json:"template_id"`
	Data       map[string]wechatDataItem `json:"data"`
}

type wechatDataItem struct {
	Value string `json:"value"`
}

func (s *WechatSender) Send(ctx context.Context, address, title, body string) error {
	// Template field names follow the registered mini-program template.
	msg := wechatTemplateMessage{
		ToUser:     address,
		TemplateID: s.templateID,
		Data: map[string]wechatDataItem{
			"thing2":  {Value: title},
			"thing11": {Value: body},
			"date4":   {Value: time.Now().Format("2006-01-02 15:04")},
		},
	}

	resp, err := s.api.Post(ctx, s.baseURL+"/message/subscribe/send", s.apiKey, nil, msg)
	if err != nil {
		return fmt.Errorf("wechat send to %s failed: %w", MaskAddress(address), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > http.StatusCreated {
		return fmt.Errorf("wechat gateway returned %s for %s", resp.Status, MaskAddress(address))
	}
	return nil
}
