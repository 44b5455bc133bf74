package database

import (
	"context"
	"fmt"
	"strings"
)

// Tables possédées par le service.
var ownedSchema = []string{
	`CREATE TABLE IF NOT EXISTS report_requests (
		request_id VARCHAR(26) PRIMARY KEY,
		requester_id VARCHAR(255) NOT NULL,
		requester_role VARCHAR(32) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		filters TEXT NOT NULL,
		from_date VARCHAR(10) NULL,
		upto_date VARCHAR(10) NULL,
		artifact_path VARCHAR(512) NULL,
		artifact_display_name VARCHAR(255) NULL,
		created_at {{timestamp}} NOT NULL,
		completed_at {{timestamp}} NULL,
		downloaded_at {{timestamp}} NULL
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_mtd (
		customer_id VARCHAR(255) PRIMARY KEY,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0,
		total_count BIGINT NOT NULL DEFAULT 0,
		week_1 BIGINT NOT NULL DEFAULT 0,
		week_2 BIGINT NOT NULL DEFAULT 0,
		week_3 BIGINT NOT NULL DEFAULT 0,
		week_4 BIGINT NOT NULL DEFAULT 0,
		week_5 BIGINT NOT NULL DEFAULT 0,
		refreshed_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_fy (
		customer_id VARCHAR(255) PRIMARY KEY,
		success_count_fy BIGINT NOT NULL DEFAULT 0,
		failure_count_fy BIGINT NOT NULL DEFAULT 0,
		total_count_fy BIGINT NOT NULL DEFAULT 0,
		refreshed_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key VARCHAR(128) PRIMARY KEY,
		setting_value TEXT NOT NULL
	)`,
}

var ownedIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_report_requests_requester ON report_requests (requester_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_report_requests_created ON report_requests (created_at)`,
}

// Tables alimentées par d'autres systèmes (logs, clients, wallets); créées seulement
// pour le développement local et les tests.
var sourceSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		billing_type VARCHAR(16) NOT NULL DEFAULT 'postpaid',
		contact_email VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		customer_id VARCHAR(255) PRIMARY KEY,
		balance DECIMAL(18,2) NOT NULL DEFAULT 0,
		updated_at {{timestamp}} NULL
	)`,
}

const logTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
		id {{serial}},
		request_at {{timestamp}} NOT NULL,
		customer_id VARCHAR(255) NOT NULL,
		product_id BIGINT NOT NULL DEFAULT 0,
		host VARCHAR(255) NOT NULL DEFAULT '',
		method VARCHAR(16) NOT NULL DEFAULT '',
		path VARCHAR(1024) NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		client_ip VARCHAR(64) NOT NULL DEFAULT '',
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		upstream_latency_ms BIGINT NOT NULL DEFAULT 0,
		gateway_latency_ms BIGINT NOT NULL DEFAULT 0
	)`

// Migrate crée les tables du service. Avec logTables non vide, crée aussi les tables
// sources (logs par environnement, clients, wallets).
func (db *DB) Migrate(ctx context.Context, logTables ...string) error {
	stmts := append([]string{}, ownedSchema...)
	if db.Dialect != DialectMySQL {
		stmts = append(stmts, ownedIndexes...)
	}
	if len(logTables) > 0 {
		stmts = append(stmts, sourceSchema...)
		for _, table := range logTables {
			if !ValidIdentifier(table) {
				return fmt.Errorf("invalid log table name %q", table)
			}
			stmts = append(stmts, fmt.Sprintf(logTableTemplate, table))
		}
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, db.render(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (db *DB) render(stmt string) string {
	var ts, serial string
	switch db.Dialect {
	case DialectPostgres:
		ts, serial = "TIMESTAMPTZ", "BIGSERIAL PRIMARY KEY"
	case DialectMySQL:
		ts, serial = "DATETIME(3)", "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		ts, serial = "TIMESTAMP", "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return strings.NewReplacer("{{timestamp}}", ts, "{{serial}}", serial).Replace(stmt)
}

// ValidIdentifier accepte les noms de tables simples ([a-z0-9_], sans chiffre en tête).
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
