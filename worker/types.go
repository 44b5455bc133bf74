package worker

import (
	"context"
	"fmt"
	"time"

	"usage-reports/logstore"
)

// Job est un export à générer en arrière-plan.
type Job struct {
	RequestID   string
	RequesterID string
	Columns     logstore.ColumnSet
	Filter      logstore.Filter
	DisplayName string
}

// Étapes d'un export, reportées dans ExportFailure.
const (
	StageRead     = "read"
	StageWrite    = "write"
	StageUpload   = "upload"
	StageComplete = "complete"
)

// ExportFailure est l'erreur terminale d'un job; la demande est marquée failed.
type ExportFailure struct {
	RequestID string
	Stage     string
	Err       error
}

func (e *ExportFailure) Error() string {
	return fmt.Sprintf("export %s failed at %s: %v", e.RequestID, e.Stage, e.Err)
}

func (e *ExportFailure) Unwrap() error { return e.Err }

// PageReader lit les logs page par page.
type PageReader interface {
	Page(ctx context.Context, f logstore.Filter, page, pageSize int) ([]logstore.Record, error)
}

// StatusRecorder applique les transitions terminales du ledger.
type StatusRecorder interface {
	MarkCompleted(ctx context.Context, id, artifactPath, displayName string, at time.Time) error
	MarkFailed(ctx context.Context, id string, at time.Time) error
}

// JobRunner exécute un job; implémenté par Runner.
type JobRunner interface {
	Run(ctx context.Context, job Job) error
}
