package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b LIKE '%?%' AND c IN (?, ?)"
	assert.Equal(t, q, Rebind(DialectSQLite, q))
	assert.Equal(t, q, Rebind(DialectMySQL, q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b LIKE '%?%' AND c IN ($2, $3)", Rebind(DialectPostgres, q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)
	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("api_logs"))
	assert.True(t, ValidIdentifier("logs_2025"))
	assert.False(t, ValidIdentifier("2025_logs"))
	assert.False(t, ValidIdentifier("api_logs; DROP TABLE x"))
	assert.False(t, ValidIdentifier(""))
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "reports.db"), 0)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx, "api_logs"))
	require.NoError(t, db.Migrate(ctx, "api_logs"))

	for _, table := range []string{"report_requests", "aggregate_mtd", "aggregate_fy", "settings", "customers", "wallets", "api_logs"} {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		require.NoError(t, err, table)
	}
	assert.Error(t, db.Migrate(ctx, "bad-name"))
}
