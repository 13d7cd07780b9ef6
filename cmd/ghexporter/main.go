package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/neox5/ghexporter/internal/app"
	"github.com/neox5/ghexporter/internal/config"
	"github.com/neox5/ghexporter/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "ghexporter",
		Usage:   "Export GitHub repository, Actions and billing metrics to Prometheus",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file (optional)",
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "GitHub API token",
				Sources: cli.EnvVars("GH_TOKEN"),
			},
			&cli.StringSliceFlag{
				Name:    "github-repos",
				Usage:   "repositories to export, as owner/name",
				Sources: cli.EnvVars("GH_REPOS"),
			},
			&cli.StringSliceFlag{
				Name:    "github-orgs",
				Usage:   "organizations to export billing for",
				Sources: cli.EnvVars("GH_ORGS"),
			},
			&cli.StringFlag{
				Name:    "github-base-url",
				Usage:   "GitHub API base URL",
				Sources: cli.EnvVars("GH_API_BASEURL"),
			},
			&cli.StringFlag{
				Name:    "github-poll-interval",
				Usage:   "poll interval, as a duration or in seconds",
				Sources: cli.EnvVars("GH_POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "github-workflows-refresh",
				Usage:   "workflow list refresh interval per repository, as a duration or in seconds",
				Sources: cli.EnvVars("GH_WORKFLOWS_REFRESH"),
			},
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Usage:   "listen address of the Prometheus endpoint, as host:port",
				Sources: cli.EnvVars("GH_EXPORTER_BIND"),
			},
			&cli.IntFlag{
				Name:  "bind-port",
				Usage: "port of the Prometheus endpoint",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	logLevel := slog.LevelInfo
	if cmd.Bool("debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting ghexporter", "version", version.String(), "config", configPath)

	cfg, err := config.Load(configPath, config.Overrides{
		Token:         cmd.String("github-token"),
		BaseURL:       cmd.String("github-base-url"),
		Repositories:  cmd.StringSlice("github-repos"),
		Organizations: cmd.StringSlice("github-orgs"),
		Port:          int(cmd.Int("bind-port")),

		Bind:             cmd.String("bind"),
		PollInterval:     cmd.String("github-poll-interval"),
		WorkflowsRefresh: cmd.String("github-workflows-refresh"),
	})
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded",
		"repositories", len(cfg.GitHub.Repositories),
		"organizations", len(cfg.GitHub.Organizations),
		"interval", cfg.Collection.Interval)

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(shutdownCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	application.Monitor.Run(shutdownCtx)
	defer application.Monitor.Wait()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// Run returns once in-flight fetches finished or were abandoned.
	wg.Go(func() {
		application.Scheduler.Run(shutdownCtx)
	})

	if application.PrometheusExporter != nil {
		wg.Go(func() {
			if err := application.PrometheusExporter.Start(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("prometheus exporter: %w", err)
			}
		})
	}

	if application.OTELExporter != nil {
		wg.Go(func() {
			if err := application.OTELExporter.Start(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("otel exporter: %w", err)
			}
		})
	}

	var runErr error
	select {
	case runErr = <-errChan:
		slog.Error("exporter error", "error", runErr)
		stop()
	case <-shutdownCtx.Done():
	}

	slog.Debug("shutting down")
	wg.Wait()

	slog.Info("shutdown complete")
	return runErr
}
