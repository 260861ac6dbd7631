package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/search"
	"github.com/fitcoach/fitcoach-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve exercise index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.SearchIndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// LoadCatalog imports the configured catalog file, or rebuilds an empty
// index from the stored catalog when no file is configured.
// Should be called after all services are wired.
func LoadCatalog(ctx context.Context, i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalogService := do.MustInvoke[*service.CatalogService](i)

	if cfg.Catalog.Path != "" {
		if _, err := catalogService.Import(ctx, cfg.Catalog.Path); err != nil {
			log.Error("Catalog import failed", "path", cfg.Catalog.Path, "error", err)
		}
		return
	}

	rebuilt, err := catalogService.ReindexIfEmpty(ctx)
	if err != nil {
		log.Warn("Search reindex failed", "error", err)
		return
	}
	if rebuilt {
		log.Info("Search index rebuilt from stored catalog")
	}
}
