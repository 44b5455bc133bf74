// Package retention supprime les rapports plus anciens que la fenêtre de rétention.
package retention

import (
	"context"
	"time"

	"usage-reports/artifact"
	"usage-reports/ledger"

	"github.com/sirupsen/logrus"
)

// Rows est l'accès au ledger dont le sweeper a besoin.
type Rows interface {
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*ledger.Request, error)
	Delete(ctx context.Context, id string) error
}

type Result struct {
	Deleted          int
	ArtifactFailures int
}

type Sweeper struct {
	rows      Rows
	artifacts artifact.Store
	window    time.Duration
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewSweeper(rows Rows, artifacts artifact.Store, window time.Duration, logger logrus.FieldLogger) *Sweeper {
	return &Sweeper{rows: rows, artifacts: artifacts, window: window, logger: logger, now: time.Now}
}

// Sweep supprime chaque demande créée avant now-window. L'échec de suppression de
// l'artefact est journalisé et n'empêche pas la suppression de la ligne.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	cutoff := s.now().Add(-s.window)
	candidates, err := s.rows.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}
	for _, req := range candidates {
		log := s.logger.WithField("request_id", req.RequestID)
		if req.ArtifactPath != "" {
			if err := s.artifacts.Delete(ctx, req.ArtifactPath); err != nil {
				res.ArtifactFailures++
				log.WithField("artifact", req.ArtifactPath).WithError(err).Warn("retention cleanup warning")
			}
		}
		if err := s.rows.Delete(ctx, req.RequestID); err != nil {
			log.WithError(err).Error("retention row delete failed")
			continue
		}
		res.Deleted++
	}
	s.logger.WithFields(logrus.Fields{
		"cutoff":            cutoff.UTC().Format(time.RFC3339),
		"deleted":           res.Deleted,
		"artifact_failures": res.ArtifactFailures,
	}).Info("retention sweep done")
	return res, nil
}
