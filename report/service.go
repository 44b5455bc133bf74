// Package report est la surface métier des exports: dépôt d'une demande, statut,
// téléchargement, historique du demandeur et liste interactive des logs.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"usage-reports/config"
	"usage-reports/ledger"
	"usage-reports/logstore"
	"usage-reports/utils"
	"usage-reports/worker"

	"github.com/sirupsen/logrus"
)

// Requester est l'identité authentifiée qui appelle le service.
type Requester struct {
	ID   string
	Role string
}

func (r Requester) view() ledger.Requester {
	return ledger.Requester{ID: r.ID, Elevated: logstore.IsElevated(r.Role)}
}

// LogSource est la partie du lecteur de logs utilisée par le service.
type LogSource interface {
	Table(env string) (string, error)
	Page(ctx context.Context, f logstore.Filter, page, pageSize int) ([]logstore.Record, error)
	Count(ctx context.Context, f logstore.Filter) (int64, error)
}

// Submitter planifie un job sans attendre son exécution.
type Submitter interface {
	Submit(job worker.Job) error
}

type Service struct {
	ledger *ledger.Ledger
	logs   LogSource
	jobs   Submitter
	cfg    config.ReportsConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewService(l *ledger.Ledger, logs LogSource, jobs Submitter, cfg config.ReportsConfig, logger logrus.FieldLogger) *Service {
	return &Service{ledger: l, logs: logs, jobs: jobs, cfg: cfg, logger: logger, now: time.Now}
}

func (s *Service) filter(in Input) (logstore.Filter, error) {
	f, err := in.Filter(s.cfg.DefaultEnvironment)
	if err != nil {
		return f, err
	}
	if _, err := s.logs.Table(f.Environment); err != nil {
		return f, &ValidationError{Field: "environment", Message: fmt.Sprintf("Unknown environment '%s'.", f.Environment)}
	}
	return f, nil
}

// Submit enregistre une demande pending, la met en file et retourne son identifiant.
func (s *Service) Submit(ctx context.Context, who Requester, in Input) (string, error) {
	f, err := s.filter(in)
	if err != nil {
		return "", err
	}
	filters, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	now := s.now()
	id := utils.NewRequestID(now)
	req := &ledger.Request{
		RequestID:     id,
		RequesterID:   who.ID,
		RequesterRole: who.Role,
		Status:        ledger.StatusPending,
		Filters:       string(filters),
		CreatedAt:     now,
	}
	if f.From != nil {
		req.FromDate = f.From.Format(utils.DateLayout)
		req.UptoDate = f.Upto.Format(utils.DateLayout)
	}
	if err := s.ledger.Create(ctx, req); err != nil {
		return "", err
	}

	job := worker.Job{
		RequestID:   id,
		RequesterID: who.ID,
		Columns:     logstore.ColumnsFor(who.Role),
		Filter:      f,
		DisplayName: displayName(f, id),
	}
	if err := s.jobs.Submit(job); err != nil {
		// la demande ne restera pas pending sans job
		if merr := s.ledger.MarkFailed(context.WithoutCancel(ctx), id, s.now()); merr != nil {
			s.logger.WithField("request_id", id).WithError(merr).Error("cannot mark unscheduled request failed")
		}
		return "", fmt.Errorf("schedule export %s: %w", id, err)
	}
	s.logger.WithFields(logrus.Fields{
		"request_id":  id,
		"requester":   who.ID,
		"environment": f.Environment,
		"from":        req.FromDate,
		"upto":        req.UptoDate,
	}).Info("report request accepted")
	return id, nil
}

func displayName(f logstore.Filter, id string) string {
	if f.From != nil && f.Upto != nil {
		return fmt.Sprintf("api_logs_%s_%s_to_%s.xlsx", f.Environment,
			f.From.Format(utils.DateLayout), f.Upto.Format(utils.DateLayout))
	}
	return fmt.Sprintf("api_logs_%s_%s.xlsx", f.Environment, id)
}

// RequestView est la représentation d'une demande pour l'appelant.
type RequestView struct {
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	FromDate     string `json:"from_date,omitempty"`
	UptoDate     string `json:"upto_date,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
}

func toView(r *ledger.Request) RequestView {
	v := RequestView{
		RequestID: r.RequestID,
		Status:    string(r.Status),
		FromDate:  r.FromDate,
		UptoDate:  r.UptoDate,
		FileName:  r.ArtifactDisplayName,
		CreatedAt: utils.FormatDisplay(r.CreatedAt),
	}
	if r.CompletedAt != nil {
		v.CompletedAt = utils.FormatDisplay(*r.CompletedAt)
	}
	if r.DownloadedAt != nil {
		v.DownloadedAt = utils.FormatDisplay(*r.DownloadedAt)
	}
	return v
}

func (s *Service) Status(ctx context.Context, who Requester, id string) (*RequestView, error) {
	r, err := s.ledger.Lookup(ctx, id, who.view())
	if err != nil {
		return nil, err
	}
	v := toView(r)
	return &v, nil
}

// Download émet un lien signé neuf; Ready=false tant que le rapport est en génération.
func (s *Service) Download(ctx context.Context, who Requester, id string) (*ledger.Download, error) {
	d, err := s.ledger.IssueDownload(ctx, id, who.view())
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrReportFailed) {
			s.logger.WithField("request_id", id).WithError(err).Error("download link failed")
		}
		return nil, err
	}
	if d.Ready {
		s.logger.WithFields(logrus.Fields{"request_id": id, "requester": who.ID}).Info("download link issued")
	}
	return d, nil
}

// RequestPage est une page de l'historique du demandeur.
type RequestPage struct {
	Items    []RequestView `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// List retourne les demandes du demandeur, les plus récentes d'abord.
func (s *Service) List(ctx context.Context, who Requester, page, pageSize int) (*RequestPage, error) {
	page, pageSize = s.paging(page, pageSize)
	rows, err := s.ledger.ListByRequester(ctx, who.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.ledger.CountByRequester(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	out := &RequestPage{Items: make([]RequestView, 0, len(rows)), Total: total, Page: page, PageSize: pageSize}
	for _, r := range rows {
		out.Items = append(out.Items, toView(r))
	}
	return out, nil
}

// LogPage est une page de la liste interactive des logs.
type LogPage struct {
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Logs sert la liste interactive: mêmes filtres que l'export, avec un total pour la pagination.
func (s *Service) Logs(ctx context.Context, who Requester, in Input, page, pageSize int) (*LogPage, error) {
	f, err := s.filter(in)
	if err != nil {
		return nil, err
	}
	page, pageSize = s.paging(page, pageSize)
	records, err := s.logs.Page(ctx, f, page, pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.logs.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	cols := logstore.ColumnsFor(who.Role)
	out := &LogPage{Headers: cols.Headers(), Rows: make([][]string, 0, len(records)), Total: total, Page: page, PageSize: pageSize}
	for _, rec := range records {
		out.Rows = append(out.Rows, cols.Project(rec))
	}
	return out, nil
}

func (s *Service) paging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.cfg.InteractivePageSize
	}
	if pageSize < 1 {
		pageSize = config.DefaultInteractivePageSize
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
