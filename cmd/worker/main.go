package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/menuwatch/internal/bootstrap"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/workflows"
)

func main() {
	cfg, err := config.Load("menuwatch-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.Logging(cfg.Log)

	ctx := context.Background()
	shutdown := bootstrap.Tracing(ctx, cfg.Telemetry)
	defer func() { _ = shutdown(context.Background()) }()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	publisher, closePublisher := bootstrap.Publisher(cfg.NATS)
	defer closePublisher()
	cache, closeCache := bootstrap.Cache(ctx, cfg.Valkey)
	defer closeCache()

	reconciler, _, err := bootstrap.Reconciler(cfg, store, bootstrap.CacheService(cache), publisher)
	if err != nil {
		log.Fatalf("reconciler: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort: cfg.Reconcile.TemporalHost,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Reconcile.TaskQueue, worker.Options{
		// one run at a time; merges are not safe to interleave across runs
		MaxConcurrentActivityExecutionSize: 1,
	})

	w.RegisterWorkflowWithOptions(workflows.ReconcileWorkflow, workflow.RegisterOptions{Name: workflows.ReconcileWorkflowName})
	acts := &workflows.ReconcileActivities{Reconciler: reconciler}
	w.RegisterActivityWithOptions(acts.ReconcileRegion, activity.RegisterOptions{Name: workflows.ReconcileActivityName})

	slog.Info("reconcile worker started", "task_queue", cfg.Reconcile.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
