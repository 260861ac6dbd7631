package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/service"
	"github.com/fitcoach/fitcoach-server/internal/watcher"
)

// AnalyticsCleanupJob periodically prunes every profile's history and analytics.
type AnalyticsCleanupJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *AnalyticsCleanupJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideAnalyticsCleanupJob provides the periodic cleanup job. A zero
// interval disables it.
func ProvideAnalyticsCleanupJob(i do.Injector) (*AnalyticsCleanupJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	history := do.MustInvoke[*service.SearchHistoryService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &AnalyticsCleanupJob{cancel: cancel, done: make(chan struct{})}

	interval := cfg.Analytics.CleanupInterval
	if interval <= 0 {
		close(job.done)
		log.Info("Analytics cleanup job disabled")
		return job, nil
	}

	go func() {
		defer close(job.done)
		runAnalyticsCleanup(ctx, history, log, interval)
	}()

	log.Info("Analytics cleanup job started", "interval", interval)

	return job, nil
}

func runAnalyticsCleanup(ctx context.Context, history *service.SearchHistoryService, log *logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cleanup := func() {
		start := time.Now()
		count, err := history.CleanupAll(ctx)
		if err != nil {
			log.Warn("Analytics cleanup failed", "profiles", count, "error", err)
			return
		}
		log.Debug("Analytics cleanup completed", "profiles", count, "took", time.Since(start))
	}

	// Initial cleanup on startup
	cleanup()

	for {
		select {
		case <-ticker.C:
			cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// CatalogWatcherHandle re-imports the catalog file when it changes.
// Watcher is nil when watching is disabled.
type CatalogWatcherHandle struct {
	Watcher *watcher.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *CatalogWatcherHandle) Shutdown() error {
	h.cancel()
	if h.Watcher == nil {
		return nil
	}
	return h.Watcher.Stop()
}

// ProvideCatalogWatcher provides the catalog file watcher.
func ProvideCatalogWatcher(i do.Injector) (*CatalogWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalogService := do.MustInvoke[*service.CatalogService](i)

	ctx, cancel := context.WithCancel(context.Background())
	if !cfg.Catalog.Watch || cfg.Catalog.Path == "" {
		return &CatalogWatcherHandle{cancel: cancel}, nil
	}

	w, err := watcher.New(cfg.Catalog.Path, log.Logger, watcher.Options{})
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Catalog watcher error", "error", err)
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-w.Events():
				if !ok {
					return
				}
				if event.Type == watcher.EventRemoved {
					log.Warn("Catalog file removed; keeping current catalog", "path", event.Path)
					continue
				}
				if _, err := catalogService.Import(ctx, event.Path); err != nil {
					log.Warn("Catalog re-import failed", "path", event.Path, "error", err)
				}
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				log.Warn("Catalog watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Catalog watcher started", "path", w.Path())

	return &CatalogWatcherHandle{Watcher: w, cancel: cancel}, nil
}
