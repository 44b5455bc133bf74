package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"usage-reports/app"
	"usage-reports/auth"
	"usage-reports/config"
	"usage-reports/database"
	"usage-reports/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", configFile, err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return app.Build(ctx, cfg, app.Loggers{Access: l, Report: l, Summary: l})
}

func migrateCmd() *cobra.Command {
	var withSources bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Crée les tables du service (et les tables sources avec --with-sources)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			var tables []string
			if withSources {
				for _, t := range cfg.Reports.Environments {
					tables = append(tables, t)
				}
				sort.Strings(tables)
			}
			if err := db.Migrate(ctx, tables...); err != nil {
				return err
			}
			fmt.Println("Schema up to date.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSources, "with-sources", false, "also create log, customer and wallet tables (local development)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var role string
	var minutes int
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Émet un JWT pour un demandeur",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := ""
			if cfg, err := config.Load(configFile); err == nil {
				secret = cfg.JWT.Secret
			}
			if secret == "" {
				s, err := utils.PromptSecret("JWT secret")
				if err != nil {
					return err
				}
				secret = s
			}
			tok, err := auth.GenerateJWT(secret, args[0], role, minutes)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "requester role (user, admin, superadmin)")
	cmd.Flags().IntVar(&minutes, "minutes", 60, "token lifetime in minutes")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Supprime maintenant les rapports hors rétention",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.DB.Close()
			res, err := a.Sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d request(s), %d artifact failure(s)\n", res.Deleted, res.ArtifactFailures)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	var skipRefresh bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Rafraîchit les vues agrégées et envoie la synthèse quotidienne",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.DB.Close()
			if !skipRefresh {
				for _, task := range []string{app.TaskMTDRefresh, app.TaskFYRefresh} {
					if err := a.Scheduler.RunNow(ctx, task); err != nil {
						return err
					}
				}
			}
			return a.Scheduler.RunNow(ctx, app.TaskDailySummary)
		},
	}
	cmd.Flags().BoolVar(&skipRefresh, "skip-refresh", false, "send from the current views without refreshing them")
	return cmd
}

func recipientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recipients [address...]",
		Short: "Affiche ou remplace la liste de diffusion de la synthèse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.DB.Close()
			key := a.Config.Summary.DistributionListKey
			if len(args) > 0 {
				if err := a.Settings.Set(ctx, key, strings.Join(args, ",")); err != nil {
					return err
				}
			}
			list, err := a.Settings.DistributionList(ctx, key)
			if err != nil {
				return err
			}
			for _, r := range list {
				fmt.Println(r)
			}
			return nil
		},
	}
}
