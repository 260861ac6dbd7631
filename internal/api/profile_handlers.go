package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fitcoach/fitcoach-server/internal/color"
	"github.com/fitcoach/fitcoach-server/internal/domain"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createProfile",
		Method:        http.MethodPost,
		Path:          "/api/v1/profiles",
		Summary:       "Create profile",
		Description:   "Creates a profile that owns a search history and analytics",
		Tags:          []string{"Profiles"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "listProfiles",
		Method:      http.MethodGet,
		Path:        "/api/v1/profiles",
		Summary:     "List profiles",
		Tags:        []string{"Profiles"},
	}, s.handleListProfiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/profiles/{profileID}",
		Summary:     "Get profile",
		Tags:        []string{"Profiles"},
	}, s.handleGetProfile)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteProfile",
		Method:        http.MethodDelete,
		Path:          "/api/v1/profiles/{profileID}",
		Summary:       "Delete profile",
		Description:   "Deletes a profile together with its search history and analytics",
		Tags:          []string{"Profiles"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteProfile)
}

// === DTOs ===

// CreateProfileRequest is the body for creating a profile.
type CreateProfileRequest struct {
	Name string `json:"name,omitempty" maxLength:"100" doc:"Display name"`
}

// CreateProfileInput wraps the create request for Huma.
type CreateProfileInput struct {
	Body CreateProfileRequest
}

// ProfilePathInput identifies a profile.
type ProfilePathInput struct {
	ProfileID string `path:"profileID" maxLength:"64" doc:"Profile ID"`
}

// ProfileResponse contains profile data in API responses.
type ProfileResponse struct {
	ID        string    `json:"id" doc:"Profile ID"`
	Name      string    `json:"name,omitempty" doc:"Display name"`
	Color     string    `json:"color" doc:"Stable display color derived from the ID"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
}

// ProfileOutput wraps a profile response for Huma.
type ProfileOutput struct {
	Body ProfileResponse
}

// ListProfilesResponse contains every profile.
type ListProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles" doc:"Profiles"`
}

// ListProfilesOutput wraps the list response for Huma.
type ListProfilesOutput struct {
	Body ListProfilesResponse
}

func toProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Color:     color.ForProfile(p.ID),
		CreatedAt: p.CreatedAt,
	}
}

// === Handlers ===

func (s *Server) handleCreateProfile(ctx context.Context, input *CreateProfileInput) (*ProfileOutput, error) {
	p, err := s.services.Profiles.Create(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: toProfileResponse(p)}, nil
}

func (s *Server) handleListProfiles(ctx context.Context, _ *struct{}) (*ListProfilesOutput, error) {
	profiles, err := s.services.Profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := ListProfilesResponse{Profiles: make([]ProfileResponse, 0, len(profiles))}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, toProfileResponse(p))
	}
	return &ListProfilesOutput{Body: resp}, nil
}

func (s *Server) handleGetProfile(ctx context.Context, input *ProfilePathInput) (*ProfileOutput, error) {
	p, err := s.services.Profiles.Get(ctx, input.ProfileID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: toProfileResponse(p)}, nil
}

func (s *Server) handleDeleteProfile(ctx context.Context, input *ProfilePathInput) (*struct{}, error) {
	if err := s.services.Profiles.Delete(ctx, input.ProfileID); err != nil {
		return nil, err
	}
	return nil, nil
}
