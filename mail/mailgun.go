package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunSender(domain, key, from string) *MailgunSender {
	return &MailgunSender{mg: mailgun.NewMailgun(domain, key), from: from}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	m := s.mg.NewMessage(s.from, msg.Subject, "", msg.To...)
	m.SetHtml(msg.HTML)
	for _, a := range msg.Attachments {
		m.AddBufferAttachment(a.Name, a.Data)
	}
	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return id, nil
}
