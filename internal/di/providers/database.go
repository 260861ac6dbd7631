package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/store"
	"github.com/fitcoach/fitcoach-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured KV engine and wraps it in a store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	kv, err := OpenKV(cfg, log)
	if err != nil {
		return nil, err
	}

	st := store.New(kv, log.Logger,
		store.WithQueryKeyer(normalize.QueryKeyer{Trim: cfg.Analytics.TrimQueryKeys}),
	)

	log.Info("Database initialized",
		"backend", cfg.Storage.Backend,
		"path", cfg.DatabasePath(),
	)

	return &StoreHandle{Store: st}, nil
}

// OpenKV opens the engine selected by cfg.Storage.Backend.
func OpenKV(cfg *config.Config, log *logger.Logger) (store.KV, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		return store.OpenBadger(store.BadgerOptions{
			Path:   cfg.DatabasePath(),
			Logger: log.Logger,
		})
	case config.BackendSQLite:
		return sqlite.Open(cfg.DatabasePath(), log.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
