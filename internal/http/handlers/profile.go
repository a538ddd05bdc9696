package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/service"
)

// ProfileHandler handles output profile admin endpoints.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// ProfileRequest is the writable subset of a profile.
type ProfileRequest struct {
	Name       string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
	OutputName string `json:"output_name" minLength:"1" maxLength:"255" doc:"URL path segment for output endpoints"`
	Enabled    *bool  `json:"enabled,omitempty" doc:"Whether this profile publishes a lineup"`
}

// Register registers the profile routes with the API.
func (h *ProfileHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfiles",
		Method:      "GET",
		Path:        "/api/v1/profiles",
		Summary:     "List profiles",
		Tags:        []string{"Profiles"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProfile",
		Method:      "GET",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Get profile",
		Tags:        []string{"Profiles"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID:   "createProfile",
		Method:        "POST",
		Path:          "/api/v1/profiles",
		Summary:       "Create profile",
		Tags:          []string{"Profiles"},
		DefaultStatus: 201,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateProfile",
		Method:      "PUT",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Update profile",
		Tags:        []string{"Profiles"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteProfile",
		Method:      "DELETE",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Delete profile",
		Description: "Deletes a profile with its filters, links and snapshot records.",
		Tags:        []string{"Profiles"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID:   "linkProfile",
		Method:        "POST",
		Path:          "/api/v1/profiles/{id}/links",
		Summary:       "Link profile to provider",
		Tags:          []string{"Profiles"},
		DefaultStatus: 201,
	}, h.Link)
}

// ListProfilesOutput is the output for listing profiles.
type ListProfilesOutput struct {
	Body struct {
		Profiles []*models.Profile `json:"profiles"`
	}
}

// List returns all profiles.
func (h *ProfileHandler) List(ctx context.Context, _ *struct{}) (*ListProfilesOutput, error) {
	profiles, err := h.profiles.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list profiles", err)
	}
	out := &ListProfilesOutput{}
	out.Body.Profiles = profiles
	return out, nil
}

// ProfileByIDInput addresses one profile.
type ProfileByIDInput struct {
	ID string `path:"id" doc:"Profile ID (ULID)"`
}

// ProfileOutput carries one profile.
type ProfileOutput struct {
	Body *models.Profile
}

// GetByID returns a profile by ID.
func (h *ProfileHandler) GetByID(ctx context.Context, input *ProfileByIDInput) (*ProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	profile, err := h.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "profile")
	}
	return &ProfileOutput{Body: profile}, nil
}

// CreateProfileInput is the input for creating a profile.
type CreateProfileInput struct {
	Body ProfileRequest
}

// Create creates a new profile.
func (h *ProfileHandler) Create(ctx context.Context, input *CreateProfileInput) (*ProfileOutput, error) {
	profile := &models.Profile{
		Name:       input.Body.Name,
		OutputName: input.Body.OutputName,
		Enabled:    input.Body.Enabled,
	}
	if err := h.profiles.Create(ctx, profile); err != nil {
		return nil, mapServiceError(err, "profile")
	}
	return &ProfileOutput{Body: profile}, nil
}

// UpdateProfileInput is the input for updating a profile.
type UpdateProfileInput struct {
	ID   string `path:"id" doc:"Profile ID (ULID)"`
	Body ProfileRequest
}

// Update updates an existing profile.
func (h *ProfileHandler) Update(ctx context.Context, input *UpdateProfileInput) (*ProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	current, err := h.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "profile")
	}

	current.Name = input.Body.Name
	current.OutputName = input.Body.OutputName
	if input.Body.Enabled != nil {
		current.Enabled = input.Body.Enabled
	}
	if err := h.profiles.Update(ctx, current); err != nil {
		return nil, mapServiceError(err, "profile")
	}
	return &ProfileOutput{Body: current}, nil
}

// Delete removes a profile.
func (h *ProfileHandler) Delete(ctx context.Context, input *ProfileByIDInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	if err := h.profiles.Delete(ctx, id); err != nil {
		return nil, mapServiceError(err, "profile")
	}
	return &struct{}{}, nil
}

// LinkProfileInput is the input for linking a profile to a provider.
type LinkProfileInput struct {
	ID   string `path:"id" doc:"Profile ID (ULID)"`
	Body struct {
		ProviderID string `json:"provider_id" doc:"Provider ID (ULID)"`
		Priority   int    `json:"priority,omitempty" doc:"Lower wins when picking the build profile"`
		Enabled    *bool  `json:"enabled,omitempty"`
	}
}

// LinkProfileOutput carries the created link.
type LinkProfileOutput struct {
	Body *models.ProfileProvider
}

// Link attaches a provider to the profile.
func (h *ProfileHandler) Link(ctx context.Context, input *LinkProfileInput) (*LinkProfileOutput, error) {
	profileID, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid profile ID format", err)
	}
	providerID, err := models.ParseULID(input.Body.ProviderID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid provider ID format", err)
	}

	link := &models.ProfileProvider{
		ProfileID:  profileID,
		ProviderID: providerID,
		Priority:   input.Body.Priority,
		Enabled:    input.Body.Enabled,
	}
	if err := h.profiles.Link(ctx, link); err != nil {
		return nil, mapServiceError(err, "profile link")
	}
	return &LinkProfileOutput{Body: link}, nil
}
