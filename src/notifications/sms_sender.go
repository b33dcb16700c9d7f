package notifications

import (
	"context"
	"fmt"
	"net/http"

	"reminder/src/config"
	"reminder/src/models"
	"reminder/src/utils/requests"
)

// SMSSender delivers reminder notifications through an HTTP SMS provider.
type SMSSender struct {
	api     *requests.ExternalAPIService
	baseURL string
	apiKey  string
}

func NewSMSSender(cfg config.SMSConfig) *SMSSender {
	return &SMSSender{
		api:     requests.NewExternalAPIService(),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (s *SMSSender) Channel() models.Channel {
	return models.ChannelSMS
}

type smsMessage struct {
	PhoneNumber string `json:"phoneNumber"`
	Content     string `json:"content"`
}

func (s *SMSSender) Send(ctx context.Context, address, title, body string) error {
	content := title
	if body != "" {
		content = title + ": " + body
	}

	resp, err := s.api.Post(ctx, s.baseURL+"/messages", s.apiKey, nil, smsMessage{
		PhoneNumber: address,
		Content:     content,
	})
	if err != nil {
		return fmt.Errorf("sms send to %s failed: %w", MaskAddress(address), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > http.StatusCreated {
		return fmt.Errorf("sms provider returned %s for %s", resp.Status, MaskAddress(address))
	}
	return nil
}
