package app

import (
	"context"
	"log"

	"github.com/ent0n29/taskboard/internal/config"
	"github.com/ent0n29/taskboard/internal/httpapi"
	"github.com/ent0n29/taskboard/internal/observability"
	"github.com/ent0n29/taskboard/internal/tasks"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Tasks   *tasks.Manager
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown, after the HTTP server has drained.
	Cleanup func() error
}

func Build(_ context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	manager := tasks.NewManager(
		tasks.NewMemoryStore(),
		tasks.WithSubscriberBuffer(cfg.TaskEventBuffer),
		tasks.WithDropHook(func(tasks.Event) {
			metrics.StreamEventsDropped.Inc()
		}),
	)
	metrics.SetTasksStored(manager.Count())

	api := httpapi.New(cfg, manager, metrics)

	// Nothing is persisted; cleanup only records what is being discarded.
	cleanup := func() error {
		log.Printf("discarding %d in-memory task(s)", manager.Count())
		return nil
	}

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Tasks:   manager,
		Metrics: metrics,
		Cleanup: cleanup,
	}, nil
}
