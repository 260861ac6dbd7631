package providers

import (
	"github.com/samber/do/v2"

	"github.com/fitcoach/fitcoach-server/internal/analytics"
	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/service"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

// ProvideSearchHistoryService provides the per-profile search history service.
func ProvideSearchHistoryService(i do.Injector) (*service.SearchHistoryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	matcher, err := analytics.NewMatcher(cfg.Analytics.SuggestionMode)
	if err != nil {
		return nil, err
	}

	policy := analytics.DefaultPolicy()
	policy.HistoryTTL = cfg.Analytics.HistoryTTL
	policy.MaxHistoryEntries = cfg.Analytics.MaxHistoryEntries
	policy.AnalyticsTTL = cfg.Analytics.AnalyticsTTL
	policy.MinAnalyticsCount = cfg.Analytics.MinAnalyticsCount
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return service.NewSearchHistoryService(storeHandle.Store, service.HistoryOptions{
		Policy:  policy,
		Matcher: matcher,
	}, log.Logger), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	history := do.MustInvoke[*service.SearchHistoryService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Store, history, log.Logger), nil
}

// ProvideCatalogService provides the exercise catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, indexHandle.SearchIndex, validation.New(), log.Logger), nil
}

// ProvideExerciseService provides exercise search.
func ProvideExerciseService(i do.Injector) (*service.ExerciseService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	history := do.MustInvoke[*service.SearchHistoryService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewExerciseService(indexHandle.SearchIndex, history, log.Logger), nil
}
