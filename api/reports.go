package api

import (
	"io"
	"net/http"
	"strconv"

	"usage-reports/report"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 64 << 10

func SubmitReportHandler(svc *report.Service, accessLogger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
			return
		}
		in, err := report.DecodeInput(body)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := svc.Submit(r.Context(), who, in)
		if err != nil {
			accessLogger.WithField("user", who.ID).WithError(err).Warn("EXECUTE_FAIL")
			writeError(w, err)
			return
		}
		accessLogger.WithFields(logrus.Fields{"user": who.ID, "request_id": id}).Info("EXECUTE")
		writeJSON(w, http.StatusAccepted, map[string]string{"request_id": id})
	}
}

func ReportStatusHandler(svc *report.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Status(r.Context(), requester(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func ListReportsHandler(svc *report.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := paging(r)
		out, err := svc.List(r.Context(), requester(r), page, size)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func LogsHandler(svc *report.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := report.Input{
			CustomerID:  q.Get("customer_id"),
			ProductID:   report.ParseFlexInt(q.Get("product_id")),
			Search:      q.Get("search"),
			FromDate:    q.Get("from_date"),
			UptoDate:    q.Get("upto_date"),
			Environment: q.Get("environment"),
		}
		page, size := paging(r)
		out, err := svc.Logs(r.Context(), requester(r), in, page, size)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func paging(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, size
}
