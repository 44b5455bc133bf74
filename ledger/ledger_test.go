package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"usage-reports/database/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArtifacts struct {
	signed []string
	err    error
}

func (f *fakeArtifacts) Upload(ctx context.Context, localPath, key string, public bool) (string, error) {
	return key, nil
}

func (f *fakeArtifacts) Delete(ctx context.Context, ref string) error { return nil }

func (f *fakeArtifacts) SignedURL(ctx context.Context, ref string, ttl time.Duration, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.signed = append(f.signed, ref)
	return fmt.Sprintf("https://signed.example/%s?ttl=%d&n=%d", ref, int(ttl.Seconds()), len(f.signed)), nil
}

var t0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*Ledger, *fakeArtifacts) {
	t.Helper()
	arts := &fakeArtifacts{}
	l := New(NewStore(dbtest.Open(t)), arts, time.Hour)
	l.now = func() time.Time { return t0.Add(time.Hour) }
	return l, arts
}

func seed(t *testing.T, l *Ledger, id, requester string, created time.Time) {
	t.Helper()
	require.NoError(t, l.Create(context.Background(), &Request{
		RequestID:   id,
		RequesterID: requester,
		Filters:     `{"environment":"production"}`,
		FromDate:    "2024-03-01",
		UptoDate:    "2024-03-05",
		CreatedAt:   created,
	}))
}

func TestCreateAndGet(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	seed(t, l, "R1", "u1", t0)

	r, err := l.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "u1", r.RequesterID)
	assert.Equal(t, "2024-03-01", r.FromDate)
	assert.True(t, r.CreatedAt.Equal(t0))
	assert.Nil(t, r.CompletedAt)
	assert.Empty(t, r.ArtifactPath)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitions(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	seed(t, l, "R1", "u1", t0)
	seed(t, l, "R2", "u1", t0)

	require.NoError(t, l.MarkCompleted(ctx, "R1", "reports/R1/usage.xlsx", "usage.xlsx", t0.Add(time.Minute)))
	r, err := l.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "reports/R1/usage.xlsx", r.ArtifactPath)
	require.NotNil(t, r.CompletedAt)

	// completed ne redevient jamais failed ni pending
	assert.ErrorIs(t, l.MarkFailed(ctx, "R1", t0), ErrInvalidTransition)
	assert.ErrorIs(t, l.MarkCompleted(ctx, "R1", "x", "x", t0), ErrInvalidTransition)

	require.NoError(t, l.MarkFailed(ctx, "R2", t0))
	assert.ErrorIs(t, l.MarkDownloaded(ctx, "R2", t0), ErrInvalidTransition)
	assert.ErrorIs(t, l.MarkFailed(ctx, "nope", t0), ErrNotFound)
}

func TestIssueDownload(t *testing.T) {
	l, arts := newLedger(t)
	ctx := context.Background()
	me := Requester{ID: "u1"}
	seed(t, l, "R1", "u1", t0)

	d, err := l.IssueDownload(ctx, "R1", me)
	require.NoError(t, err)
	assert.False(t, d.Ready)
	assert.Equal(t, StatusPending, d.Status)

	require.NoError(t, l.MarkCompleted(ctx, "R1", "reports/R1/usage.xlsx", "usage.xlsx", t0))

	first, err := l.IssueDownload(ctx, "R1", me)
	require.NoError(t, err)
	assert.True(t, first.Ready)
	assert.Equal(t, "usage.xlsx", first.FileName)
	assert.Equal(t, time.Hour, first.ExpiresIn)

	// un second téléchargement émet un nouveau lien et reste downloaded
	second, err := l.IssueDownload(ctx, "R1", me)
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, second.URL)
	assert.Len(t, arts.signed, 2)

	r, err := l.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, r.Status)
	require.NotNil(t, r.DownloadedAt)
}

func TestIssueDownloadErrors(t *testing.T) {
	l, arts := newLedger(t)
	ctx := context.Background()
	seed(t, l, "R1", "u1", t0)
	seed(t, l, "R2", "u1", t0)
	require.NoError(t, l.MarkFailed(ctx, "R1", t0))
	require.NoError(t, l.MarkCompleted(ctx, "R2", "reports/R2/a.xlsx", "a.xlsx", t0))

	_, err := l.IssueDownload(ctx, "R1", Requester{ID: "u1"})
	assert.ErrorIs(t, err, ErrReportFailed)

	_, err = l.IssueDownload(ctx, "R2", Requester{ID: "someone-else"})
	assert.ErrorIs(t, err, ErrNotFound)

	d, err := l.IssueDownload(ctx, "R2", Requester{ID: "admin-1", Elevated: true})
	require.NoError(t, err)
	assert.True(t, d.Ready)

	_, err = l.IssueDownload(ctx, "unknown", Requester{ID: "u1"})
	assert.ErrorIs(t, err, ErrNotFound)

	arts.err = errors.New("storage down")
	seed(t, l, "R3", "u1", t0)
	require.NoError(t, l.MarkCompleted(ctx, "R3", "reports/R3/a.xlsx", "a.xlsx", t0))
	_, err = l.IssueDownload(ctx, "R3", Requester{ID: "u1"})
	require.Error(t, err)
	r, err := l.Get(ctx, "R3")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestListingAndRetentionQueries(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seed(t, l, fmt.Sprintf("R%d", i), "u1", t0.Add(time.Duration(i)*24*time.Hour))
	}
	seed(t, l, "OTHER", "u2", t0)

	n, err := l.CountByRequester(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	page, err := l.ListByRequester(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "R4", page[0].RequestID)
	assert.Equal(t, "R3", page[1].RequestID)

	old, err := l.ListCreatedBefore(ctx, t0.Add(48*time.Hour))
	require.NoError(t, err)
	var ids []string
	for _, r := range old {
		ids = append(ids, r.RequestID)
	}
	assert.ElementsMatch(t, []string{"R0", "R1", "OTHER"}, ids)

	require.NoError(t, l.Delete(ctx, "R0"))
	_, err = l.Get(ctx, "R0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailStalePending(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	seed(t, l, "OLD", "u1", t0)
	seed(t, l, "NEW", "u1", t0.Add(2*time.Hour))
	seed(t, l, "DONE", "u1", t0)
	require.NoError(t, l.MarkCompleted(ctx, "DONE", "k", "n.xlsx", t0))

	n, err := l.FailStalePending(ctx, t0.Add(time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	r, _ := l.Get(ctx, "OLD")
	assert.Equal(t, StatusFailed, r.Status)
	r, _ = l.Get(ctx, "NEW")
	assert.Equal(t, StatusPending, r.Status)
	r, _ = l.Get(ctx, "DONE")
	assert.Equal(t, StatusCompleted, r.Status)
}
