package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridSender(key, from string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(key), from: from}
}

// build construit le message v3; séparé de Send pour les tests.
func (s *SendGridSender) build(msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("", s.from))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))

	for _, a := range msg.Attachments {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		att.SetType(a.ContentType)
		att.SetFilename(a.Name)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != 202 {
		return "", fmt.Errorf("failed to send email, status code: %d", resp.StatusCode)
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
