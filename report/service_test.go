package report

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"usage-reports/config"
	"usage-reports/database/dbtest"
	"usage-reports/ledger"
	"usage-reports/logging"
	"usage-reports/logstore"
	"usage-reports/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queue struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (q *queue) Submit(job worker.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type nullArtifacts struct{}

func (nullArtifacts) Upload(ctx context.Context, localPath, key string, public bool) (string, error) {
	return key, nil
}
func (nullArtifacts) Delete(ctx context.Context, ref string) error { return nil }
func (nullArtifacts) SignedURL(ctx context.Context, ref string, ttl time.Duration, name string) (string, error) {
	return "https://signed.example/" + ref, nil
}

type fixture struct {
	svc    *Service
	ledger *ledger.Ledger
	reader *logstore.Reader
	queue  *queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	reader, err := logstore.NewReader(db, dbtest.Environments)
	require.NoError(t, err)
	l := ledger.New(ledger.NewStore(db), nullArtifacts{}, time.Hour)
	q := &queue{}
	cfg := config.ReportsConfig{InteractivePageSize: 2, DefaultEnvironment: "production", Environments: dbtest.Environments}
	return &fixture{svc: NewService(l, reader, q, cfg, logging.Discard()), ledger: l, reader: reader, queue: q}
}

var me = Requester{ID: "a@x.com", Role: "user"}

func TestSubmitCreatesPendingRowAndQueuesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Submit(ctx, me, Input{FromDate: "2025-07-01", UptoDate: "2025-07-02", Environment: "sandbox"})
	require.NoError(t, err)
	require.Len(t, id, 26)

	r, err := fx.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, r.Status)
	assert.Equal(t, "2025-07-01", r.FromDate)
	assert.Contains(t, r.Filters, `"environment":"sandbox"`)

	require.Len(t, fx.queue.jobs, 1)
	job := fx.queue.jobs[0]
	assert.Equal(t, id, job.RequestID)
	assert.Equal(t, logstore.ColumnsDefault, job.Columns)
	assert.Equal(t, "api_logs_sandbox_2025-07-01_to_2025-07-02.xlsx", job.DisplayName)
}

func TestSubmitValidationNeverCreatesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, me, Input{FromDate: "2025-07-01", UptoDate: "2025-08-10"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Date range should not be greater than 31 days.", verr.Message)

	_, err = fx.svc.Submit(ctx, me, Input{FromDate: "2025-07-01", UptoDate: "2025-07-02", Environment: "staging"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "environment", verr.Field)

	assert.Empty(t, fx.queue.jobs)
	n, err := fx.ledger.CountByRequester(ctx, me.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitMarksFailedWhenQueueRefuses(t *testing.T) {
	fx := newFixture(t)
	fx.queue.err = worker.ErrPoolStopped
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, me, Input{CustomerID: "a@x.com"})
	require.ErrorIs(t, err, worker.ErrPoolStopped)

	page, err := fx.svc.List(ctx, me, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "failed", page.Items[0].Status)
}

type blockingRunner struct{ release chan struct{} }

func (b blockingRunner) Run(ctx context.Context, job worker.Job) error {
	<-b.release
	return nil
}

func TestSubmitReturnsBeforeExportCompletes(t *testing.T) {
	fx := newFixture(t)
	runner := blockingRunner{release: make(chan struct{})}
	pool := worker.NewPool(runner, 1, logging.Discard())
	pool.Start(context.Background())
	fx.svc.jobs = pool

	id, err := fx.svc.Submit(context.Background(), me, Input{FromDate: "2025-07-01", UptoDate: "2025-07-02"})
	require.NoError(t, err)

	// Scénario C: téléchargement demandé pendant la génération
	d, err := fx.svc.Download(context.Background(), me, id)
	require.NoError(t, err)
	assert.False(t, d.Ready)

	close(runner.release)
	pool.Stop()
}

func TestStatusAndDownloadVisibility(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id, err := fx.svc.Submit(ctx, me, Input{CustomerID: "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, fx.ledger.MarkCompleted(ctx, id, "reports/"+id+"/f.xlsx", "f.xlsx", time.Now()))

	v, err := fx.svc.Status(ctx, me, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", v.Status)
	assert.Equal(t, "f.xlsx", v.FileName)
	assert.NotEmpty(t, v.CompletedAt)

	_, err = fx.svc.Status(ctx, Requester{ID: "b@x.com"}, id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	d, err := fx.svc.Download(ctx, Requester{ID: "ops", Role: "Admin"}, id)
	require.NoError(t, err)
	assert.True(t, d.Ready)
	assert.Equal(t, "https://signed.example/reports/"+id+"/f.xlsx", d.URL)
}

func TestListNewestFirstWithDisplayTimes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		fx.svc.now = func() time.Time { return at }
		_, err := fx.svc.Submit(ctx, me, Input{CustomerID: "a@x.com"})
		require.NoError(t, err)
	}

	page, err := fx.svc.List(ctx, me, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Items, 2)
	// 22:00 UTC = 03:30 le lendemain en UTC+05:30
	assert.Equal(t, "2025-07-02 03:30:00", page.Items[0].CreatedAt)
	assert.Equal(t, "2025-07-02 02:30:00", page.Items[1].CreatedAt)

	page, err = fx.svc.List(ctx, me, 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2025-07-02 01:30:00", page.Items[0].CreatedAt)
}

func TestLogsInteractivePage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, fx.reader.Insert(ctx, "production", logstore.Record{
			RequestAt: at, CustomerID: "a@x.com", Host: fmt.Sprintf("h%d", i), StatusCode: 200 + i*100,
		}))
	}

	page, err := fx.svc.Logs(ctx, me, Input{FromDate: "2025-07-01", UptoDate: "2025-07-01"}, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, logstore.ColumnsDefault.Headers(), page.Headers)
	assert.Equal(t, "h4", page.Rows[0][3])

	admin, err := fx.svc.Logs(ctx, Requester{ID: "ops", Role: "superadmin"}, Input{CustomerID: "a@x.com"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, logstore.ColumnsExtended.Headers(), admin.Headers)
	assert.Len(t, admin.Rows, 5)
}
