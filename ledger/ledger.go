package ledger

import (
	"context"
	"fmt"
	"time"

	"usage-reports/artifact"
)

// Requester est l'identité qui interroge le ledger. Un demandeur élevé voit les
// demandes des autres utilisateurs.
type Requester struct {
	ID       string
	Elevated bool
}

func (r Requester) owns(req *Request) bool {
	return r.Elevated || req.RequesterID == r.ID
}

// Download est la réponse à une demande de téléchargement. Ready=false signifie
// que le rapport est encore en génération.
type Download struct {
	Ready     bool
	Status    Status
	URL       string
	FileName  string
	ExpiresIn time.Duration
}

// Ledger combine le store SQL et le stockage des artefacts pour émettre les liens signés.
type Ledger struct {
	*Store
	artifacts artifact.Store
	ttl       time.Duration
	now       func() time.Time
}

func New(store *Store, artifacts artifact.Store, ttl time.Duration) *Ledger {
	return &Ledger{Store: store, artifacts: artifacts, ttl: ttl, now: time.Now}
}

// Lookup retourne la demande si elle est visible par le demandeur.
func (l *Ledger) Lookup(ctx context.Context, id string, who Requester) (*Request, error) {
	req, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.owns(req) {
		return nil, ErrNotFound
	}
	return req, nil
}

// IssueDownload produit un lien signé neuf à chaque appel et passe la demande à downloaded.
func (l *Ledger) IssueDownload(ctx context.Context, id string, who Requester) (*Download, error) {
	req, err := l.Lookup(ctx, id, who)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case StatusPending:
		return &Download{Ready: false, Status: req.Status}, nil
	case StatusFailed:
		return nil, ErrReportFailed
	case StatusCompleted, StatusDownloaded:
	default:
		return nil, fmt.Errorf("report request %s: unexpected status %q", id, req.Status)
	}
	url, err := l.artifacts.SignedURL(ctx, req.ArtifactPath, l.ttl, req.ArtifactDisplayName)
	if err != nil {
		return nil, fmt.Errorf("sign artifact %s: %w", req.ArtifactPath, err)
	}
	if err := l.MarkDownloaded(ctx, id, l.now()); err != nil {
		return nil, err
	}
	return &Download{
		Ready:     true,
		Status:    StatusDownloaded,
		URL:       url,
		FileName:  req.ArtifactDisplayName,
		ExpiresIn: l.ttl,
	}, nil
}
