package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"usage-reports/config"
	"usage-reports/database/dbtest"
	"usage-reports/ledger"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyArtifacts struct {
	broken  map[string]bool
	deleted []string
}

func (f *flakyArtifacts) Upload(ctx context.Context, localPath, key string, public bool) (string, error) {
	return key, nil
}

func (f *flakyArtifacts) Delete(ctx context.Context, ref string) error {
	if f.broken[ref] {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *flakyArtifacts) SignedURL(ctx context.Context, ref string, ttl time.Duration, name string) (string, error) {
	return "", nil
}

func TestSweepDeletesExpiredRowsEvenWhenArtifactDeleteFails(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewStore(dbtest.Open(t))
	now := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	window := 5 * 24 * time.Hour

	add := func(id string, age time.Duration, artifactPath string) {
		require.NoError(t, store.Create(ctx, &ledger.Request{RequestID: id, RequesterID: "u", Filters: "{}", CreatedAt: now.Add(-age)}))
		if artifactPath != "" {
			require.NoError(t, store.MarkCompleted(ctx, id, artifactPath, "f.xlsx", now))
		}
	}
	add("OLD_OK", 6*24*time.Hour, "reports/OLD_OK/f.xlsx")
	add("OLD_BROKEN", 10*24*time.Hour, "reports/OLD_BROKEN/f.xlsx")
	add("OLD_PENDING", 7*24*time.Hour, "")
	add("FRESH", 24*time.Hour, "reports/FRESH/f.xlsx")

	arts := &flakyArtifacts{broken: map[string]bool{"reports/OLD_BROKEN/f.xlsx": true}}
	logger, hook := test.NewNullLogger()
	s := NewSweeper(store, arts, window, logger)
	s.now = func() time.Time { return now }

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 3, ArtifactFailures: 1}, res)
	assert.Equal(t, []string{"reports/OLD_OK/f.xlsx"}, arts.deleted)

	for _, id := range []string{"OLD_OK", "OLD_BROKEN", "OLD_PENDING"} {
		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ledger.ErrNotFound, id)
	}
	_, err = store.Get(ctx, "FRESH")
	assert.NoError(t, err)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, "retention cleanup warning", e.Message)
			assert.Equal(t, "OLD_BROKEN", e.Data["request_id"])
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestSweepUsesConfiguredWindow(t *testing.T) {
	var cfg config.ReportsConfig
	cfg.RetentionDays = config.DefaultRetentionDays
	assert.Equal(t, 5*24*time.Hour, cfg.RetentionWindow())

	ctx := context.Background()
	store := ledger.NewStore(dbtest.Open(t))
	now := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, &ledger.Request{RequestID: "EDGE", RequesterID: "u", Filters: "{}",
		CreatedAt: now.Add(-cfg.RetentionWindow() + time.Minute)}))

	logger, _ := test.NewNullLogger()
	s := NewSweeper(store, &flakyArtifacts{}, cfg.RetentionWindow(), logger)
	s.now = func() time.Time { return now }
	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
}
