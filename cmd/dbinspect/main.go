// Package main dumps profiles with their search history and analytics as JSON.
//
// Usage:
//
//	go run ./cmd/dbinspect -data-path ~/FitCoach/data
//	PROFILE_ID=prf-abc go run ./cmd/dbinspect
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/fitcoach/fitcoach-server/internal/config"
	"github.com/fitcoach/fitcoach-server/internal/di/providers"
	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/logger"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

type profileDump struct {
	Profile   *domain.Profile              `json:"profile"`
	History   []*domain.SearchHistoryEntry `json:"history"`
	Analytics []*domain.AnalyticsRecord    `json:"analytics"`
}

type dump struct {
	Backend   string        `json:"backend"`
	Path      string        `json:"path"`
	Exercises int           `json:"exercises"`
	Profiles  []profileDump `json:"profiles"`
}

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(logger.Config{Writer: os.Stderr, Level: logger.ParseLevel("warn")})
	kv, err := providers.OpenKV(cfg, lg)
	if err != nil {
		lg.Fatalf("Failed to open database: %v", err)
	}
	st := store.New(kv, lg.Logger, store.WithQueryKeyer(normalize.QueryKeyer{Trim: cfg.Analytics.TrimQueryKeys}))
	defer st.Close()

	ctx := context.Background()
	out := dump{Backend: cfg.Storage.Backend, Path: cfg.DatabasePath()}

	out.Exercises, err = st.Exercises.Count(ctx)
	if err != nil {
		lg.Fatalf("Failed to count exercises: %v", err)
	}

	profiles, err := st.Profiles.List(ctx)
	if err != nil {
		lg.Fatalf("Failed to list profiles: %v", err)
	}

	only := os.Getenv("PROFILE_ID")
	for _, p := range profiles {
		if only != "" && p.ID != only {
			continue
		}
		d, err := inspectProfile(ctx, st, p)
		if err != nil {
			lg.WithError(err).WithField("profile_id", p.ID).Warn("Failed to read profile")
			continue
		}
		out.Profiles = append(out.Profiles, d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		lg.Fatalf("Failed to write output: %v", err)
	}
}

// inspectProfile reads both partitions of a profile. History is listed
// newest first and analytics by descending count.
func inspectProfile(ctx context.Context, st *store.Store, p *domain.Profile) (profileDump, error) {
	h, err := st.Handle(p.ID)
	if err != nil {
		return profileDump{}, fmt.Errorf("open handle: %w", err)
	}

	entries, err := h.History.List(ctx)
	if err != nil {
		return profileDump{}, fmt.Errorf("list history: %w", err)
	}
	records, err := h.Analytics.List(ctx)
	if err != nil {
		return profileDump{}, fmt.Errorf("list analytics: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	sort.SliceStable(records, func(i, j int) bool { return records[i].Count > records[j].Count })

	return profileDump{Profile: p, History: entries, Analytics: records}, nil
}
