// Package mail envoie les emails de synthèse via le fournisseur configuré.
// L'envoi est sans accusé de livraison.
package mail

import (
	"context"
	"errors"
	"fmt"

	"usage-reports/config"

	"github.com/sirupsen/logrus"
)

var ErrNoRecipients = errors.New("mail: no recipients")

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Sender retourne l'identifiant du message chez le fournisseur, si disponible.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New instancie le fournisseur configuré.
func New(cfg config.MailConfig, logger logrus.FieldLogger) (Sender, error) {
	switch cfg.Provider {
	case "mailgun":
		if cfg.Mailgun.Domain == "" || cfg.Mailgun.Key == "" || cfg.From == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return NewMailgunSender(cfg.Mailgun.Domain, cfg.Mailgun.Key, cfg.From), nil
	case "sendgrid":
		if cfg.SendGrid.Key == "" || cfg.From == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return NewSendGridSender(cfg.SendGrid.Key, cfg.From), nil
	case "log", "":
		return &LogSender{Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

// LogSender journalise le message au lieu de l'envoyer (développement, tests).
type LogSender struct {
	Logger logrus.FieldLogger
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	s.Logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"html_bytes":  len(msg.HTML),
		"attachments": names,
	}).Info("mail not sent (log provider)")
	return "", nil
}
