package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"usage-reports/artifact"
	"usage-reports/report"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// DownloadReportHandler retourne un lien signé neuf (200), ou 202 tant que le
// rapport est en génération.
func DownloadReportHandler(svc *report.Service, accessLogger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		id := chi.URLParam(r, "id")
		d, err := svc.Download(r.Context(), who, id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !d.Ready {
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  string(d.Status),
				"message": "Report is still being generated, please retry later.",
			})
			return
		}
		accessLogger.WithFields(logrus.Fields{"user": who.ID, "request_id": id}).Info("DOWNLOAD")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"url":        d.URL,
			"file_name":  d.FileName,
			"expires_in": int(d.ExpiresIn.Seconds()),
		})
	}
}

// ArtifactHandler sert les fichiers du stockage local sur présentation d'une URL signée.
func ArtifactHandler(files *artifact.FileSystemStore, accessLogger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if err := files.Verify(key, r.URL.Query()); err != nil {
			status := http.StatusForbidden
			if errors.Is(err, artifact.ErrExpiredURL) {
				status = http.StatusGone
			}
			accessLogger.WithField("artifact", key).WithError(err).Warn("ARTIFACT_DENIED")
			http.Error(w, err.Error(), status)
			return
		}
		path, err := files.Path(key)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		name := r.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", strings.ReplaceAll(name, "\"", "")))
		http.ServeFile(w, r, path)
	}
}
