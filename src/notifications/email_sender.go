package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"reminder/src/config"
	"reminder/src/models"
)

// EmailSender delivers reminder notifications over SES.
type EmailSender struct {
	svc  *ses.SES
	from string
}

func NewEmailSender(cfg config.EmailConfig) (*EmailSender, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, err
	}
	return &EmailSender{svc: ses.New(sess), from: cfg.FromAddress}, nil
}

func (s *EmailSender) Channel() models.Channel {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, address, title, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(address)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(title),
			},
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(htmlBody(title, body)),
				},
			},
		},
	}

	if _, err := s.svc.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s failed: %w", MaskAddress(address), err)
	}
	return nil
}

func htmlBody(title, body string) string {
	return fmt.Sprintf(
		`<html><body><h2>%s</h2><p>%s</p><p style="color:#888;font-size:12px">This reminder was sent automatically.</p></body></html>`,
		title, body)
}
