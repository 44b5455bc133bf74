package aggregate

import (
	"context"
	"testing"
	"time"

	"usage-reports/database/dbtest"
	"usage-reports/logstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLogs(t *testing.T, r *logstore.Reader) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range []logstore.Record{
		{CustomerID: "a@x.com", RequestAt: time.Date(2025, 6, 30, 19, 0, 0, 0, time.UTC), StatusCode: 200}, // 1er juillet 00:30 IST
		{CustomerID: "a@x.com", RequestAt: time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC), StatusCode: 201},
		{CustomerID: "a@x.com", RequestAt: time.Date(2025, 7, 9, 6, 0, 0, 0, time.UTC), StatusCode: 500},
		{CustomerID: "b@x.com", RequestAt: time.Date(2025, 7, 15, 6, 0, 0, 0, time.UTC), StatusCode: 200},
		{CustomerID: "c@x.com", RequestAt: time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC), StatusCode: 404},
		{CustomerID: "d@x.com", RequestAt: time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC), StatusCode: 200},
	} {
		require.NoError(t, r.Insert(ctx, "production", rec))
	}
}

func TestRefreshViews(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	reader, err := logstore.NewReader(db, dbtest.Environments)
	require.NoError(t, err)
	seedLogs(t, reader)

	v, err := NewViews(db, "api_logs")
	require.NoError(t, err)
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)

	n, err := v.RefreshMTD(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = v.RefreshFY(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	mtd, err := v.ReadMTD(ctx)
	require.NoError(t, err)
	require.Len(t, mtd, 2)
	assert.Equal(t, MTDRecord{CustomerID: "a@x.com", SuccessCount: 2, FailureCount: 1, TotalCount: 3, Week: [Weeks]int64{2, 1, 0, 0, 0}}, mtd[0])
	assert.Equal(t, MTDRecord{CustomerID: "b@x.com", SuccessCount: 1, TotalCount: 1, Week: [Weeks]int64{0, 0, 1, 0, 0}}, mtd[1])

	fy, err := v.ReadFY(ctx)
	require.NoError(t, err)
	require.Len(t, fy, 3)
	assert.Equal(t, FYRecord{CustomerID: "c@x.com", FailureCountFY: 1, TotalCountFY: 1}, fy[2])

	// un second rafraîchissement remplace la vue
	_, err = v.RefreshMTD(ctx, now)
	require.NoError(t, err)
	mtd, err = v.ReadMTD(ctx)
	require.NoError(t, err)
	assert.Len(t, mtd, 2)

	_, err = NewViews(db, "api_logs; DROP TABLE x")
	assert.Error(t, err)
}

func TestDistributionList(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(dbtest.Open(t))

	_, err := s.DistributionList(ctx, "daily_usage_summary")
	assert.Error(t, err)

	require.NoError(t, s.Set(ctx, "daily_usage_summary", "ops@x.com; finance@x.com,\n cto@x.com "))
	to, err := s.DistributionList(ctx, "daily_usage_summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@x.com", "finance@x.com", "cto@x.com"}, to)

	require.NoError(t, s.Set(ctx, "daily_usage_summary", " , "))
	_, err = s.DistributionList(ctx, "daily_usage_summary")
	assert.Error(t, err)
}
