// Package app assemble les composants du service à partir de la configuration.
// Partagé par le serveur et par reportctl.
package app

import (
	"context"
	"fmt"
	"time"

	"usage-reports/aggregate"
	"usage-reports/artifact"
	"usage-reports/billing"
	"usage-reports/config"
	"usage-reports/database"
	"usage-reports/ledger"
	"usage-reports/logstore"
	"usage-reports/mail"
	"usage-reports/report"
	"usage-reports/retention"
	"usage-reports/schedule"
	"usage-reports/utils"
	"usage-reports/worker"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Noms des tâches planifiées.
const (
	TaskRetentionSweep = "retention_sweep"
	TaskMTDRefresh     = "mtd_refresh"
	TaskFYRefresh      = "fy_refresh"
	TaskDailySummary   = "daily_summary"
)

type Loggers struct {
	Access  logrus.FieldLogger
	Report  logrus.FieldLogger
	Summary logrus.FieldLogger
}

type App struct {
	Config    *config.Config
	DB        *database.DB
	Artifacts artifact.Store
	Files     *artifact.FileSystemStore // nil sauf provider filesystem
	Ledger    *ledger.Ledger
	Reader    *logstore.Reader
	Pool      *worker.Pool
	Reports   *report.Service
	Sweeper   *retention.Sweeper
	Views     *aggregate.Views
	Settings  *aggregate.Settings
	Notifier  *aggregate.Notifier
	Scheduler *schedule.Scheduler
	Loggers   Loggers
}

// Build ouvre la base et construit tous les composants, sans rien démarrer.
func Build(ctx context.Context, cfg *config.Config, logs Loggers) (*App, error) {
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, db, logs, clockwork.NewRealClock())
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *database.DB, logs Loggers, clock clockwork.Clock) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	store, err := artifact.New(ctx, cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	files, _ := store.(*artifact.FileSystemStore)

	reader, err := logstore.NewReader(db, cfg.Reports.Environments)
	if err != nil {
		return nil, err
	}
	l := ledger.New(ledger.NewStore(db), store, cfg.Reports.SignedURLExpiry)

	runner := &worker.Runner{
		Reader:    reader,
		Ledger:    l,
		Artifacts: store,
		Logger:    logs.Report,
		WorkDir:   utils.ResolvePath(cfg.Reports.WorkDir),
		PageSize:  cfg.Reports.ExportPageSize,
		Ceiling:   cfg.Reports.SheetRowCeiling,
		KeyPrefix: cfg.Artifacts.Prefix,
	}
	pool := worker.NewPool(runner, cfg.Reports.Workers, logs.Report)

	views, err := aggregate.NewViews(db, cfg.Reports.Environments[cfg.Summary.Environment])
	if err != nil {
		return nil, err
	}
	mailer, err := mail.New(cfg.Mail, logs.Summary)
	if err != nil {
		return nil, err
	}
	var refresher billing.Refresher = billing.NoopRefresher{}
	if cfg.Billing.WalletRefreshURL != "" {
		refresher = billing.NewHTTPRefresher(cfg.Billing.WalletRefreshURL, cfg.Billing.Timeout)
	}
	settings := aggregate.NewSettings(db)

	a := &App{
		Config:    cfg,
		DB:        db,
		Artifacts: store,
		Files:     files,
		Ledger:    l,
		Reader:    reader,
		Pool:      pool,
		Reports:   report.NewService(l, reader, pool, cfg.Reports, logs.Access),
		Sweeper:   retention.NewSweeper(l, store, cfg.Reports.RetentionWindow(), logs.Report),
		Views:     views,
		Settings:  settings,
		Notifier: &aggregate.Notifier{
			Views:      views,
			Profiles:   billing.NewDirectory(db),
			Refresher:  refresher,
			Recipients: settings,
			Mailer:     mailer,
			Config:     cfg.Summary,
			Logger:     logs.Summary,
		},
		Scheduler: schedule.New(clock, utils.ReportZone, logs.Report),
		Loggers:   logs,
	}
	if err := a.registerTasks(clock); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) registerTasks(clock clockwork.Clock) error {
	s := a.Config.Schedule
	tasks := []struct {
		name, spec string
		fn         schedule.TaskFunc
	}{
		{TaskRetentionSweep, s.RetentionSweep, func(ctx context.Context) error {
			_, err := a.Sweeper.Sweep(ctx)
			return err
		}},
		{TaskMTDRefresh, s.MTDRefresh, func(ctx context.Context) error {
			n, err := a.Views.RefreshMTD(ctx, clock.Now())
			if err == nil {
				a.Loggers.Summary.WithField("rows", n).Info("mtd view refreshed")
			}
			return err
		}},
		{TaskFYRefresh, s.FYRefresh, func(ctx context.Context) error {
			n, err := a.Views.RefreshFY(ctx, clock.Now())
			if err == nil {
				a.Loggers.Summary.WithField("rows", n).Info("fy view refreshed")
			}
			return err
		}},
		{TaskDailySummary, s.DailySummary, a.Notifier.Run},
	}
	for _, t := range tasks {
		if err := a.Scheduler.Register(t.name, t.spec, t.fn); err != nil {
			return err
		}
	}
	return nil
}

// Recover passe en failed les demandes restées pending avant startedAt (arrêt ou crash).
func (a *App) Recover(ctx context.Context, startedAt time.Time) (int64, error) {
	n, err := a.Ledger.FailStalePending(ctx, startedAt, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.Loggers.Report.WithField("count", n).Warn("stale pending requests marked failed")
	}
	return n, nil
}

// Start lance la pool d'export et le planificateur.
func (a *App) Start(ctx context.Context) {
	a.Pool.Start(ctx)
	a.Scheduler.Start(ctx)
}

// Stop arrête le planificateur, attend les exports en cours puis ferme la base.
func (a *App) Stop() {
	a.Scheduler.Stop()
	a.Pool.Stop()
	a.DB.Close()
}
