package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usage-reports/database"
)

var ErrUnknownEnvironment = errors.New("unknown environment")

// Record est une ligne du log d'appels API.
type Record struct {
	ID                int64
	RequestAt         time.Time
	CustomerID        string
	ProductID         int64
	Host              string
	Method            string
	Path              string
	StatusCode        int
	ClientIP          string
	ResponseTimeMs    int64
	UpstreamLatencyMs int64
	GatewayLatencyMs  int64
}

// Success: tout code HTTP inférieur à 400.
func (r Record) Success() bool {
	return r.StatusCode > 0 && r.StatusCode < 400
}

const recordColumns = `id, request_at, customer_id, product_id, host, method, path, status_code,
	client_ip, response_time_ms, upstream_latency_ms, gateway_latency_ms`

// Reader lit les logs d'un environnement (une table par environnement).
type Reader struct {
	db           *database.DB
	environments map[string]string
}

func NewReader(db *database.DB, environments map[string]string) (*Reader, error) {
	for env, table := range environments {
		if !database.ValidIdentifier(table) {
			return nil, fmt.Errorf("environment %s: invalid table name %q", env, table)
		}
	}
	return &Reader{db: db, environments: environments}, nil
}

// Table retourne la table associée au sélecteur d'environnement.
func (r *Reader) Table(env string) (string, error) {
	table, ok := r.environments[env]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
	return table, nil
}

// Page retourne la page n (à partir de 1), triée par id décroissant.
// Une page vide signale la fin des données.
func (r *Reader) Page(ctx context.Context, f Filter, page, pageSize int) ([]Record, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page %d / size %d", page, pageSize)
	}
	table, err := r.Table(f.Environment)
	if err != nil {
		return nil, err
	}
	pred := BuildPredicate(f)
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY id DESC LIMIT ? OFFSET ?", recordColumns, table, pred.Where)
	args := append(append([]interface{}{}, pred.Args...), pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s page %d: %w", table, page, err)
	}
	defer rows.Close()

	out := make([]Record, 0, pageSize)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.RequestAt, &rec.CustomerID, &rec.ProductID, &rec.Host, &rec.Method,
			&rec.Path, &rec.StatusCode, &rec.ClientIP, &rec.ResponseTimeMs, &rec.UpstreamLatencyMs, &rec.GatewayLatencyMs); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count compte les lignes du filtre (liste interactive uniquement; l'export n'en a pas besoin).
func (r *Reader) Count(ctx context.Context, f Filter) (int64, error) {
	table, err := r.Table(f.Environment)
	if err != nil {
		return 0, err
	}
	pred := BuildPredicate(f)
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", table, pred.Where)
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), pred.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Insert ajoute un log; utilisé par les outils de dev et les tests.
func (r *Reader) Insert(ctx context.Context, env string, rec Record) error {
	table, err := r.Table(env)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (request_at, customer_id, product_id, host, method, path, status_code,
		client_ip, response_time_ms, upstream_latency_ms, gateway_latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), rec.RequestAt.UTC(), rec.CustomerID, rec.ProductID, rec.Host,
		rec.Method, rec.Path, rec.StatusCode, rec.ClientIP, rec.ResponseTimeMs, rec.UpstreamLatencyMs, rec.GatewayLatencyMs)
	return err
}
