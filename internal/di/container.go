// Package di provides dependency injection configuration for the FitCoach server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/di/providers"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Business services
	do.Provide(injector, providers.ProvideSearchHistoryService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideExerciseService)

	// Workers
	do.Provide(injector, providers.ProvideAnalyticsCleanupJob)
	do.Provide(injector, providers.ProvideCatalogWatcher)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is listening.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*service.SearchHistoryService](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.ExerciseService](injector)

	// Populate the index before serving searches.
	providers.LoadCatalog(context.Background(), injector)

	// Workers
	_ = do.MustInvoke[*providers.AnalyticsCleanupJob](injector)
	if _, err := do.Invoke[*providers.CatalogWatcherHandle](injector); err != nil {
		return err
	}

	// Server
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
