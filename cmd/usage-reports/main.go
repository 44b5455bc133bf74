package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usage-reports/api"
	"usage-reports/app"
	"usage-reports/config"
	"usage-reports/logging"
	"usage-reports/utils"
)

var (
	cfg     *config.Config
	loggers []*logging.Logger
)

func main() {
	utils.LogToFile("api.log")
	startedAt := time.Now()
	loadEverything()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Loggers{Access: loggers[0], Report: loggers[1], Summary: loggers[2]})
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	if _, err := a.Recover(ctx, startedAt); err != nil {
		log.Printf("Failed to recover pending requests: %v", err)
	}
	a.Start(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: api.NewRouter(api.Deps{
			Secret:       cfg.JWT.Secret,
			Reports:      a.Reports,
			Files:        a.Files,
			Pool:         a.Pool,
			AccessLogger: loggers[0],
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SIGHUP: relecture du format des logs
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go func() {
		for range sigs {
			log.Println("Reloading configs...")
			next, err := config.Load("config.yaml")
			if err != nil {
				log.Printf("Reload failed, keeping current config: %v", err)
				continue
			}
			for _, l := range loggers {
				l.SetFormat(next.Server.LogFormat)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Printf("Server started listening on %s ...", cfg.Server.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	a.Stop()
	for _, l := range loggers {
		l.Close()
	}
}

func loadEverything() {
	var err error
	cfg, err = config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed config.yaml: %v", err)
	}
	logDir := utils.ResolvePath(cfg.Server.LogDir)
	os.MkdirAll(logDir, 0755)
	loggers = []*logging.Logger{
		logging.NewLoggerOrDie(logDir, "access.log"),
		logging.NewLoggerOrDie(logDir, "report.log"),
		logging.NewLoggerOrDie(logDir, "summary.log"),
	}
	for _, l := range loggers {
		l.SetFormat(cfg.Server.LogFormat)
	}
}
