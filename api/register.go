package api

import (
	"net/http"

	"usage-reports/artifact"
	"usage-reports/report"
	"usage-reports/worker"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Deps regroupe ce dont les handlers ont besoin.
type Deps struct {
	Secret       string
	Reports      *report.Service
	Files        *artifact.FileSystemStore // nil sauf avec le stockage local
	Pool         *worker.Pool
	AccessLogger logrus.FieldLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverMiddleware(d.AccessLogger))
	r.Use(accessLogMiddleware(d.AccessLogger))

	r.Get("/healthz", HealthHandler(d.Pool))
	if d.Files != nil {
		r.Get("/artifacts/*", ArtifactHandler(d.Files, d.AccessLogger))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(d.Secret, d.AccessLogger))
		r.Post("/reports", SubmitReportHandler(d.Reports, d.AccessLogger))
		r.Get("/reports", ListReportsHandler(d.Reports))
		r.Get("/reports/{id}", ReportStatusHandler(d.Reports))
		r.Get("/reports/{id}/download", DownloadReportHandler(d.Reports, d.AccessLogger))
		r.Get("/logs", LogsHandler(d.Reports))
	})
	return r
}

func HealthHandler(pool *worker.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]interface{}{"status": "ok"}
		if pool != nil {
			out["queue"] = pool.Stats()
		}
		writeJSON(w, http.StatusOK, out)
	}
}
