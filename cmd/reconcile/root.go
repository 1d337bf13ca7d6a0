package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/menuwatch/internal/adapters/report"
	"github.com/samirrijal/menuwatch/internal/bootstrap"
	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/workflows"
)

type runFlags struct {
	dryRun      bool
	reportPath  string
	introspect  bool
	viaTemporal bool
}

func newRootCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:           "reconcile <REGION>",
		Short:         "Resolve provisional location IDs in a region to canonical gateway IDs",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			region := normalizeRegion(args[0])
			if region == "" {
				return errors.New("region is required")
			}

			cfg, err := config.Load("menuwatch-reconcile")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			bootstrap.Logging(cfg.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown := bootstrap.Tracing(ctx, cfg.Telemetry)
			defer func() { _ = shutdown(context.Background()) }()

			lock := flock.New(cfg.Reconcile.LockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another reconciliation run holds %s", cfg.Reconcile.LockPath)
			}
			defer func() { _ = lock.Unlock() }()

			var summary *domain.RunSummary
			if flags.viaTemporal {
				summary, err = runViaTemporal(ctx, cfg, region, flags.dryRun)
			} else {
				summary, err = runLocal(ctx, cfg, region, flags)
			}
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
				if flags.reportPath != "" {
					var reporter ports.OutcomeReporter = report.NewXLSX(flags.reportPath)
					if rerr := reporter.WriteSummary(summary); rerr != nil {
						slog.Error("write report failed", "path", flags.reportPath, "error", rerr)
					} else {
						slog.Info("report written", "path", flags.reportPath)
					}
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Resolve and report without changing the store")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write per-location outcomes to this .xlsx file")
	cmd.Flags().BoolVar(&flags.introspect, "introspect", false, "Log gateway schema hints before the run")
	cmd.Flags().BoolVar(&flags.viaTemporal, "via-temporal", false, "Run as a Temporal workflow on the reconcile worker")

	return cmd
}

func normalizeRegion(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func runLocal(ctx context.Context, cfg *config.Config, region string, flags runFlags) (*domain.RunSummary, error) {
	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	publisher, closePublisher := bootstrap.Publisher(cfg.NATS)
	defer closePublisher()
	cache, closeCache := bootstrap.Cache(ctx, cfg.Valkey)
	defer closeCache()

	svc, gw, err := bootstrap.Reconciler(cfg, store, bootstrap.CacheService(cache), publisher)
	if err != nil {
		return nil, err
	}

	if flags.introspect {
		hints, err := gw.Introspect(ctx)
		if err != nil {
			slog.Warn("introspection failed", "error", err)
		} else {
			slog.Info("gateway query fields", "total", hints.Total, "first", hints.Fields, "candidates", hints.Candidates)
		}
	}

	return svc.Run(ctx, region, usecases.ReconcileOptions{DryRun: flags.dryRun})
}

func runViaTemporal(ctx context.Context, cfg *config.Config, region string, dryRun bool) (*domain.RunSummary, error) {
	c, err := client.Dial(client.Options{
		HostPort: cfg.Reconcile.TemporalHost,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "reconcile-" + region,
		TaskQueue: cfg.Reconcile.TaskQueue,
	}, workflows.ReconcileWorkflowName, workflows.ReconcileInput{Region: region, DryRun: dryRun})
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("reconcile workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var summary domain.RunSummary
	if err := run.Get(ctx, &summary); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	return &summary, nil
}
