package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: sqlite3
  dsn: file:test.db
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, DefaultExportPageSize, cfg.Reports.ExportPageSize)
	assert.Equal(t, DefaultInteractivePageSize, cfg.Reports.InteractivePageSize)
	assert.Equal(t, DefaultSheetRowCeiling, cfg.Reports.SheetRowCeiling)
	assert.Equal(t, DefaultRetentionDays, cfg.Reports.RetentionDays)
	assert.Equal(t, 5*24*time.Hour, cfg.Reports.RetentionWindow())
	assert.Equal(t, time.Hour, cfg.Reports.SignedURLExpiry)
	assert.Equal(t, "api_logs", cfg.Reports.Environments["production"])
	assert.Equal(t, "filesystem", cfg.Artifacts.Provider)
	assert.Equal(t, "log", cfg.Mail.Provider)
	assert.Equal(t, "0 1 * * *", cfg.Schedule.RetentionSweep)
}

func TestParseReadsDurationsAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: postgres
  dsn: postgres://localhost/reports
reports:
  export_page_size: 5000
  retention_days: 3
  signed_url_expiry: 15m
  environments:
    live: live_logs
  default_environment: live
artifacts:
  provider: minio
  bucket: reports
`))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Reports.ExportPageSize)
	assert.Equal(t, 3*24*time.Hour, cfg.Reports.RetentionWindow())
	assert.Equal(t, 15*time.Minute, cfg.Reports.SignedURLExpiry)
	assert.Equal(t, "live", cfg.Summary.Environment)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := map[string]string{
		"missing database": `reports: {}`,
		"unknown env": `
database: {driver: sqlite3, dsn: x}
reports: {default_environment: nope}`,
		"bucket required": `
database: {driver: sqlite3, dsn: x}
artifacts: {provider: s3}`,
		"unknown mail": `
database: {driver: sqlite3, dsn: x}
mail: {provider: pigeon}`,
	}
	for name, doc := range tests {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}
