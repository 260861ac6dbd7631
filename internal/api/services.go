package api

import (
	"github.com/fitcoach/fitcoach-server/internal/search"
	"github.com/fitcoach/fitcoach-server/internal/service"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// Services groups the business logic used by the API server.
type Services struct {
	Profiles  *service.ProfileService
	History   *service.SearchHistoryService
	Catalog   *service.CatalogService
	Exercises *service.ExerciseService
}

// Backends are the components the health check probes.
type Backends struct {
	Store *store.Store
	Index *search.SearchIndex
}
