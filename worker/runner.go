package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"usage-reports/artifact"
	"usage-reports/sheetwriter"

	"github.com/sirupsen/logrus"
)

// Runner produit le classeur d'un job: pages lues dans l'ordre jusqu'à une page vide,
// écriture en streaming, dépôt dans le stockage puis mise à jour du ledger.
type Runner struct {
	Reader    PageReader
	Ledger    StatusRecorder
	Artifacts artifact.Store
	Logger    logrus.FieldLogger

	WorkDir   string
	PageSize  int
	Ceiling   int
	KeyPrefix string

	now func() time.Time
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Run exporte un job. Toute erreur, panique comprise, passe la demande en failed.
func (r *Runner) Run(ctx context.Context, job Job) (err error) {
	log := r.Logger.WithFields(logrus.Fields{"request_id": job.RequestID, "requester": job.RequesterID})
	log.WithField("columns", job.Columns.String()).Info("[START] export")

	stage := StageWrite
	var w *sheetwriter.Writer
	defer func() {
		if rec := recover(); rec != nil {
			if w != nil {
				w.Abort()
			}
			err = r.fail(ctx, log, job, stage, fmt.Errorf("panic: %v", rec))
		}
	}()

	localPath := filepath.Join(r.WorkDir, job.RequestID, job.DisplayName)
	w, err = sheetwriter.New(localPath, job.Columns.Headers(),
		sheetwriter.WithCeiling(r.Ceiling), sheetwriter.WithSheetName("Logs"))
	if err != nil {
		return r.fail(ctx, log, job, StageWrite, err)
	}

	for page := 1; ; page++ {
		stage = StageRead
		records, err := r.Reader.Page(ctx, job.Filter, page, r.PageSize)
		if err != nil {
			w.Abort()
			return r.fail(ctx, log, job, StageRead, err)
		}
		if len(records) == 0 {
			break
		}
		stage = StageWrite
		for _, rec := range records {
			if err := w.Append(job.Columns.Project(rec)); err != nil {
				w.Abort()
				return r.fail(ctx, log, job, StageWrite, err)
			}
		}
		log.WithFields(logrus.Fields{"page": page, "rows": w.Rows()}).Debug("page written")
	}

	art, err := w.Finalize()
	if err != nil {
		return r.fail(ctx, log, job, StageWrite, err)
	}
	log = log.WithFields(logrus.Fields{"rows": art.Rows, "sheets": len(art.Sheets)})

	stage = StageUpload
	ref, err := r.Artifacts.Upload(ctx, art.Path, artifact.Key(r.KeyPrefix, job.RequestID, job.DisplayName), false)
	if err != nil {
		return r.fail(ctx, log, job, StageUpload, err)
	}
	// le fichier local n'est supprimé qu'après un dépôt réussi
	os.Remove(art.Path)
	os.Remove(filepath.Dir(art.Path))

	stage = StageComplete
	if err := r.Ledger.MarkCompleted(ctx, job.RequestID, ref, job.DisplayName, r.clock()); err != nil {
		return r.fail(ctx, log, job, StageComplete, err)
	}
	log.WithField("artifact", ref).Info("[COMPLETE] export")
	return nil
}

func (r *Runner) fail(ctx context.Context, log logrus.FieldLogger, job Job, stage string, err error) error {
	failure := &ExportFailure{RequestID: job.RequestID, Stage: stage, Err: err}
	log.WithField("stage", stage).WithError(err).Error("[FAIL] export")
	// la demande doit sortir de pending même si le job a été annulé
	if merr := r.Ledger.MarkFailed(context.WithoutCancel(ctx), job.RequestID, r.clock()); merr != nil {
		log.WithError(merr).Error("[FAIL] cannot mark request failed")
	}
	return failure
}
