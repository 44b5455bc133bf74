// Package ledger enregistre l'état durable de chaque demande de rapport
// (pending -> completed|failed, completed -> downloaded).
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"usage-reports/database"
)

var (
	ErrNotFound          = errors.New("report request not found")
	ErrInvalidTransition = errors.New("invalid report status transition")
	ErrReportFailed      = errors.New("report generation failed, please resubmit")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDownloaded Status = "downloaded"
)

// Request est une ligne de report_requests.
type Request struct {
	RequestID           string
	RequesterID         string
	RequesterRole       string
	Status              Status
	Filters             string // JSON des paramètres soumis
	FromDate            string
	UptoDate            string
	ArtifactPath        string
	ArtifactDisplayName string
	CreatedAt           time.Time
	CompletedAt         *time.Time
	DownloadedAt        *time.Time
}

// Store est l'accès SQL au ledger. Les instants sont toujours écrits en UTC.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

const requestColumns = `request_id, requester_id, requester_role, status, filters, from_date, upto_date,
	artifact_path, artifact_display_name, created_at, completed_at, downloaded_at`

func (s *Store) Create(ctx context.Context, r *Request) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.CreatedAt = r.CreatedAt.UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO report_requests
		(request_id, requester_id, requester_role, status, filters, from_date, upto_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RequestID, r.RequesterID, r.RequesterRole, string(r.Status), r.Filters,
		nullString(r.FromDate), nullString(r.UptoDate), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create report request %s: %w", r.RequestID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+requestColumns+" FROM report_requests WHERE request_id = ?"), id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report request %s: %w", id, err)
	}
	return r, nil
}

// MarkCompleted fait passer une demande pending à completed avec son artefact.
func (s *Store) MarkCompleted(ctx context.Context, id, artifactPath, displayName string, at time.Time) error {
	return s.transition(ctx, id,
		"status = ?, artifact_path = ?, artifact_display_name = ?, completed_at = ?",
		[]interface{}{string(StatusCompleted), artifactPath, displayName, at.UTC()},
		StatusPending)
}

// MarkFailed fait passer une demande pending à failed.
func (s *Store) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, "status = ?, completed_at = ?",
		[]interface{}{string(StatusFailed), at.UTC()}, StatusPending)
}

// MarkDownloaded est idempotent: un rapport déjà téléchargé reste downloaded.
func (s *Store) MarkDownloaded(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, "status = ?, downloaded_at = ?",
		[]interface{}{string(StatusDownloaded), at.UTC()}, StatusCompleted, StatusDownloaded)
}

func (s *Store) transition(ctx context.Context, id, set string, args []interface{}, from ...Status) error {
	query := fmt.Sprintf("UPDATE report_requests SET %s WHERE request_id = ? AND status IN (%s)",
		set, database.Placeholders(len(from)))
	args = append(args, id)
	for _, st := range from {
		args = append(args, string(st))
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update report request %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, current.Status)
}

// ListByRequester retourne les demandes d'un utilisateur, les plus récentes d'abord.
func (s *Store) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind("SELECT "+requestColumns+
		" FROM report_requests WHERE requester_id = ? ORDER BY created_at DESC, request_id DESC LIMIT ? OFFSET ?"),
		requesterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list report requests: %w", err)
	}
	return collect(rows)
}

func (s *Store) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT COUNT(*) FROM report_requests WHERE requester_id = ?"), requesterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count report requests: %w", err)
	}
	return n, nil
}

// ListCreatedBefore retourne les demandes créées strictement avant cutoff, toutes statuts confondus.
func (s *Store) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind("SELECT "+requestColumns+
		" FROM report_requests WHERE created_at < ? ORDER BY created_at"), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired report requests: %w", err)
	}
	return collect(rows)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM report_requests WHERE request_id = ?"), id); err != nil {
		return fmt.Errorf("delete report request %s: %w", id, err)
	}
	return nil
}

// FailStalePending marque failed les demandes restées pending depuis avant `before`
// (jobs perdus lors d'un arrêt du processus). Retourne le nombre de lignes touchées.
func (s *Store) FailStalePending(ctx context.Context, before, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"UPDATE report_requests SET status = ?, completed_at = ? WHERE status = ? AND created_at < ?"),
		string(StatusFailed), at.UTC(), string(StatusPending), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("fail stale report requests: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row scanner) (*Request, error) {
	var (
		r                         Request
		status                    string
		from, upto, path, display sql.NullString
		completedAt, downloadedAt sql.NullTime
	)
	if err := row.Scan(&r.RequestID, &r.RequesterID, &r.RequesterRole, &status, &r.Filters, &from, &upto,
		&path, &display, &r.CreatedAt, &completedAt, &downloadedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.FromDate, r.UptoDate = from.String, upto.String
	r.ArtifactPath, r.ArtifactDisplayName = path.String, display.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if downloadedAt.Valid {
		t := downloadedAt.Time
		r.DownloadedAt = &t
	}
	return &r, nil
}

func collect(rows *sql.Rows) ([]*Request, error) {
	defer rows.Close()
	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
