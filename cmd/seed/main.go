// Package main seeds the database with profiles and realistic search history.
// When a catalog path is configured the catalog is imported first.
//
// Searches are backdated across the retention windows so that cleanup,
// popularity and suggestions have something to work with.
//
// Usage:
//
//	go run ./cmd/seed -data-path ~/FitCoach/data
//	SEED_PROFILES=5 SEED_SEARCHES=200 go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/analytics"
	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/di/providers"
	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/search"
	"github.com/fitcoach/fitcoach-server/internal/service"
	"github.com/fitcoach/fitcoach-server/internal/store"
	"github.com/fitcoach/fitcoach-server/internal/validation"
)

var queries = []string{
	"squat", "back squat", "front squat", "goblet squat",
	"deadlift", "romanian deadlift", "sumo deadlift",
	"bench press", "incline bench", "push up", "dips",
	"pull up", "chin up", "barbell row", "lat pulldown",
	"plank", "side plank", "hanging leg raise",
	"lunges", "hip thrust", "calf raise", "face pull",
}

var equipment = []string{"barbell", "dumbbell", "kettlebell", "bodyweight", "cable"}

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	profiles := envInt("SEED_PROFILES", 3)
	searches := envInt("SEED_SEARCHES", 60)

	lg := logger.New(logger.Config{Level: logger.ParseLevel("warn")})
	kv, err := providers.OpenKV(cfg, lg)
	if err != nil {
		lg.Fatalf("Failed to open store: %v", err)
	}
	st := store.New(kv, lg.Logger, store.WithQueryKeyer(normalize.QueryKeyer{Trim: cfg.Analytics.TrimQueryKeys}))
	defer st.Close()

	// Searches are spread over the last 90 days, oldest first.
	now := time.Now()
	clock := now.Add(-90 * 24 * time.Hour)
	step := 90 * 24 * time.Hour / time.Duration(max(searches, 1))

	policy := analytics.DefaultPolicy()
	policy.HistoryTTL = cfg.Analytics.HistoryTTL
	policy.MaxHistoryEntries = cfg.Analytics.MaxHistoryEntries
	policy.AnalyticsTTL = cfg.Analytics.AnalyticsTTL
	policy.MinAnalyticsCount = cfg.Analytics.MinAnalyticsCount
	history := service.NewSearchHistoryService(st, service.HistoryOptions{
		Policy: policy,
		Now:    func() time.Time { return clock },
	}, lg.Logger)
	profileService := service.NewProfileService(st, history, lg.Logger)

	ctx := context.Background()
	fmt.Printf("Opening %s database at: %s\n", cfg.Storage.Backend, cfg.DatabasePath())

	if cfg.Catalog.Path != "" {
		index, err := search.NewSearchIndex(search.Options{DataPath: cfg.SearchIndexPath(), Logger: lg.Logger})
		if err != nil {
			lg.Fatal("Failed to open search index", "error", err, "path", cfg.SearchIndexPath())
		}
		defer index.Close()

		result, err := service.NewCatalogService(st, index, validation.New(), lg.Logger).Import(ctx, cfg.Catalog.Path)
		if err != nil {
			lg.Fatal("Failed to import catalog", "error", err, "path", cfg.Catalog.Path)
		}
		fmt.Printf("Imported %d exercises from %s\n", result.Imported, cfg.Catalog.Path)
	}

	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), 42))

	for p := range profiles {
		profile, err := profileService.Create(ctx, fmt.Sprintf("Seed Athlete %d", p+1))
		if err != nil {
			lg.Fatalf("Failed to create profile: %v", err)
		}
		fmt.Printf("\nSeeding searches for profile: %s (%s)\n", profile.Name, profile.ID)

		clock = now.Add(-90 * 24 * time.Hour)
		recorded := 0
		for range searches {
			clock = clock.Add(step)
			ns := domain.NewSearch{Query: pick(rng, queries)}
			if rng.IntN(3) == 0 {
				ns.Filters = &domain.SearchFilters{Equipment: []string{pick(rng, equipment)}}
			}
			if _, err := history.Record(ctx, profile.ID, ns); err != nil {
				lg.WithError(err).WithField("query", ns.Query).Warn("Failed to record search")
				continue
			}
			recorded++
		}

		popular, err := history.Popular(ctx, profile.ID, 3)
		if err != nil {
			lg.WithError(err).WithField("profile_id", profile.ID).Warn("Failed to read popular searches")
			continue
		}
		fmt.Printf("  recorded %d searches\n", recorded)
		for _, ps := range popular {
			fmt.Printf("  popular: %-20s %d\n", ps.Query, ps.Count)
		}
	}

	fmt.Println("\nDone.")
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
