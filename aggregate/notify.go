package aggregate

import (
	"context"
	"fmt"
	"time"

	"usage-reports/billing"
	"usage-reports/config"
	"usage-reports/mail"
	"usage-reports/utils"

	"github.com/sirupsen/logrus"
)

// ViewReader lit les deux vues agrégées.
type ViewReader interface {
	ReadMTD(ctx context.Context) ([]MTDRecord, error)
	ReadFY(ctx context.Context) ([]FYRecord, error)
}

type ProfileSource interface {
	Profiles(ctx context.Context) (map[string]billing.Profile, error)
}

type RecipientSource interface {
	DistributionList(ctx context.Context, key string) ([]string, error)
}

// Notifier construit et envoie la synthèse quotidienne. Aucune relance dans un même
// passage: le passage suivant recalcule tout.
type Notifier struct {
	Views      ViewReader
	Profiles   ProfileSource
	Refresher  billing.Refresher
	Recipients RecipientSource
	Mailer     mail.Sender
	Config     config.SummaryConfig
	Logger     logrus.FieldLogger

	now func() time.Time
}

func (n *Notifier) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}

// Run journalise l'échec ("daily summary failed") et le retourne au planificateur.
func (n *Notifier) Run(ctx context.Context) error {
	if err := n.run(ctx); err != nil {
		n.Logger.WithError(err).Error("daily summary failed")
		return err
	}
	return nil
}

func (n *Notifier) run(ctx context.Context) error {
	fy, err := n.Views.ReadFY(ctx)
	if err != nil {
		return err
	}
	mtd, err := n.Views.ReadMTD(ctx)
	if err != nil {
		return err
	}
	profiles, err := n.Profiles.Profiles(ctx)
	if err != nil {
		return err
	}

	rows := Merge(fy, mtd)
	refreshed := 0
	for _, r := range rows {
		p, ok := profiles[r.CustomerID]
		if !ok || !p.Prepaid() {
			continue
		}
		if err := n.Refresher.Refresh(ctx, r.CustomerID); err != nil {
			n.Logger.WithField("customer", r.CustomerID).WithError(err).Warn("wallet refresh failed")
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		if profiles, err = n.Profiles.Profiles(ctx); err != nil {
			return err
		}
	}

	Annotate(rows, profiles)
	SortByTotal(rows)

	day := n.clock().In(utils.ReportZone).Format(utils.DateLayout)
	title := fmt.Sprintf("%s - %s", n.Config.Subject, day)
	html, err := RenderHTML(title, rows)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	workbook, err := RenderWorkbook(rows)
	if err != nil {
		return err
	}
	to, err := n.Recipients.DistributionList(ctx, n.Config.DistributionListKey)
	if err != nil {
		return err
	}
	id, err := n.Mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: title,
		HTML:    html,
		Attachments: []mail.Attachment{{
			Name:        fmt.Sprintf("api_usage_summary_%s.xlsx", day),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        workbook,
		}},
	})
	if err != nil {
		return err
	}
	n.Logger.WithFields(logrus.Fields{
		"rows":       len(rows),
		"recipients": len(to),
		"prepaid":    refreshed,
		"message_id": id,
	}).Info("daily summary sent")
	return nil
}
