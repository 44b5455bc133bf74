// Package dbtest ouvre une base SQLite migrée pour les tests des autres paquets.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"usage-reports/database"
)

// Environments correspond à la configuration par défaut.
var Environments = map[string]string{"production": "api_logs", "sandbox": "sandbox_api_logs"}

// Open crée une base dans t.TempDir() avec les tables du service et les tables sources.
func Open(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "reports.db"), 0)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx, "api_logs", "sandbox_api_logs"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
