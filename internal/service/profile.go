package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/id"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// ProfileService manages profiles, the owners of search history.
type ProfileService struct {
	store   *store.Store
	history *SearchHistoryService
	now     func() time.Time
	logger  *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(st *store.Store, history *SearchHistoryService, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		store:   st,
		history: history,
		now:     time.Now,
		logger:  logger,
	}
}

// Create stores a new profile with a generated ID.
func (s *ProfileService) Create(ctx context.Context, name string) (*domain.Profile, error) {
	profileID, err := id.Generate(id.PrefixProfile)
	if err != nil {
		return nil, fmt.Errorf("generate profile ID: %w", err)
	}

	p := &domain.Profile{
		ID:        profileID,
		Name:      strings.TrimSpace(name),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Profiles.Put(ctx, p.ID, p); err != nil {
		return nil, translate(err, "")
	}

	s.logger.Info("profile created", "profile_id", p.ID)
	return p, nil
}

// Get returns a profile by ID.
func (s *ProfileService) Get(ctx context.Context, profileID string) (*domain.Profile, error) {
	p, err := s.store.Profiles.Get(ctx, profileID)
	if err != nil {
		return nil, translate(err, "profile not found")
	}
	return p, nil
}

// List returns every profile.
func (s *ProfileService) List(ctx context.Context) ([]*domain.Profile, error) {
	profiles, err := s.store.Profiles.List(ctx)
	if err != nil {
		return nil, translate(err, "")
	}
	return profiles, nil
}

// Delete removes a profile together with its search history and analytics.
func (s *ProfileService) Delete(ctx context.Context, profileID string) error {
	if _, err := s.Get(ctx, profileID); err != nil {
		return err
	}

	if err := s.store.Profiles.Delete(ctx, profileID); err != nil {
		return translate(err, "")
	}
	if err := s.history.drop(ctx, profileID); err != nil {
		return translate(err, "")
	}

	s.logger.Info("profile deleted", "profile_id", profileID)
	return nil
}
