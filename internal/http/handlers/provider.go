package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/service"
)

// ProviderHandler handles provider admin endpoints.
type ProviderHandler struct {
	providers *service.ProviderService
	preview   *service.PreviewService
}

// NewProviderHandler creates a provider handler.
func NewProviderHandler(providers *service.ProviderService, preview *service.PreviewService) *ProviderHandler {
	return &ProviderHandler{
		providers: providers,
		preview:   preview,
	}
}

// ProviderRequest is the writable subset of a provider.
type ProviderRequest struct {
	Name           string            `json:"name" minLength:"1" maxLength:"255" doc:"Unique provider name"`
	PlaylistURL    string            `json:"playlist_url" minLength:"1" doc:"Playlist location (http, https or file)"`
	GuideURL       string            `json:"guide_url,omitempty" doc:"Optional guide location"`
	Headers        map[string]string `json:"headers,omitempty" doc:"Extra request headers sent upstream"`
	UserAgent      string            `json:"user_agent,omitempty" doc:"User-Agent override for this provider"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" minimum:"0" maximum:"300" doc:"Per-request timeout (default 30)"`
	Enabled        *bool             `json:"enabled,omitempty" doc:"Whether the provider participates in refreshes"`
	IncludeVOD     bool              `json:"include_vod,omitempty" doc:"Publish VOD content"`
	IncludeSeries  bool              `json:"include_series,omitempty" doc:"Publish series content"`
}

func (r *ProviderRequest) toModel() *models.Provider {
	return &models.Provider{
		Name:           r.Name,
		PlaylistURL:    r.PlaylistURL,
		GuideURL:       r.GuideURL,
		Headers:        r.Headers,
		UserAgent:      r.UserAgent,
		TimeoutSeconds: r.TimeoutSeconds,
		Enabled:        r.Enabled,
		IncludeVOD:     r.IncludeVOD,
		IncludeSeries:  r.IncludeSeries,
	}
}

// Register registers the provider routes with the API.
func (h *ProviderHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProviders",
		Method:      "GET",
		Path:        "/api/v1/providers",
		Summary:     "List providers",
		Tags:        []string{"Providers"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProvider",
		Method:      "GET",
		Path:        "/api/v1/providers/{id}",
		Summary:     "Get provider",
		Tags:        []string{"Providers"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID:   "createProvider",
		Method:        "POST",
		Path:          "/api/v1/providers",
		Summary:       "Create provider",
		Description:   "Creates a provider. The first provider also gets a default profile and link. Creation never activates.",
		Tags:          []string{"Providers"},
		DefaultStatus: 201,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateProvider",
		Method:      "PUT",
		Path:        "/api/v1/providers/{id}",
		Summary:     "Update provider",
		Tags:        []string{"Providers"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteProvider",
		Method:      "DELETE",
		Path:        "/api/v1/providers/{id}",
		Summary:     "Delete provider",
		Description: "Deletes a provider and its groups, channels, filters, links and fetch runs.",
		Tags:        []string{"Providers"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "activateProvider",
		Method:      "POST",
		Path:        "/api/v1/providers/{id}/activate",
		Summary:     "Activate provider",
		Description: "Makes this the single active provider. Takes effect on the next refresh.",
		Tags:        []string{"Providers"},
	}, h.Activate)

	huma.Register(api, huma.Operation{
		OperationID: "previewProvider",
		Method:      "POST",
		Path:        "/api/v1/providers/{id}/preview",
		Summary:     "Preview provider playlist",
		Description: "Fetches and summarizes the playlist per group without touching the catalog.",
		Tags:        []string{"Providers"},
	}, h.Preview)
}

// ListProvidersOutput is the output for listing providers.
type ListProvidersOutput struct {
	Body struct {
		Providers []*models.Provider `json:"providers"`
	}
}

// List returns all providers.
func (h *ProviderHandler) List(ctx context.Context, _ *struct{}) (*ListProvidersOutput, error) {
	providers, err := h.providers.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list providers", err)
	}
	out := &ListProvidersOutput{}
	out.Body.Providers = providers
	return out, nil
}

// ProviderByIDInput addresses one provider.
type ProviderByIDInput struct {
	ID string `path:"id" doc:"Provider ID (ULID)"`
}

// ProviderOutput carries one provider.
type ProviderOutput struct {
	Body *models.Provider
}

// GetByID returns a provider by ID.
func (h *ProviderHandler) GetByID(ctx context.Context, input *ProviderByIDInput) (*ProviderOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	provider, err := h.providers.GetByID(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "provider")
	}
	return &ProviderOutput{Body: provider}, nil
}

// CreateProviderInput is the input for creating a provider.
type CreateProviderInput struct {
	Body ProviderRequest
}

// Create creates a new provider.
func (h *ProviderHandler) Create(ctx context.Context, input *CreateProviderInput) (*ProviderOutput, error) {
	provider := input.Body.toModel()
	if err := h.providers.Create(ctx, provider); err != nil {
		return nil, mapServiceError(err, "provider")
	}
	return &ProviderOutput{Body: provider}, nil
}

// UpdateProviderInput is the input for updating a provider.
type UpdateProviderInput struct {
	ID   string `path:"id" doc:"Provider ID (ULID)"`
	Body ProviderRequest
}

// Update updates an existing provider.
func (h *ProviderHandler) Update(ctx context.Context, input *UpdateProviderInput) (*ProviderOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	current, err := h.providers.GetByID(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "provider")
	}

	provider := input.Body.toModel()
	provider.BaseModel = current.BaseModel
	provider.IsActive = current.IsActive
	if err := h.providers.Update(ctx, provider); err != nil {
		return nil, mapServiceError(err, "provider")
	}
	return &ProviderOutput{Body: provider}, nil
}

// Delete removes a provider.
func (h *ProviderHandler) Delete(ctx context.Context, input *ProviderByIDInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	if err := h.providers.Delete(ctx, id); err != nil {
		return nil, mapServiceError(err, "provider")
	}
	return &struct{}{}, nil
}

// Activate makes the provider the single active one.
func (h *ProviderHandler) Activate(ctx context.Context, input *ProviderByIDInput) (*struct{}, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	if err := h.providers.Activate(ctx, id); err != nil {
		return nil, mapServiceError(err, "provider")
	}
	return &struct{}{}, nil
}

// PreviewOutput is the output for a playlist preview.
type PreviewOutput struct {
	Body *service.PreviewResult
}

// Preview fetches and summarizes the provider's playlist.
func (h *ProviderHandler) Preview(ctx context.Context, input *ProviderByIDInput) (*PreviewOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	result, err := h.preview.Preview(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, huma.Error404NotFound("provider not found")
		}
		return nil, huma.Error502BadGateway("playlist fetch failed", err)
	}
	return &PreviewOutput{Body: result}, nil
}

// mapServiceError translates service sentinel errors to HTTP errors.
func mapServiceError(err error, entity string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(entity + " not found")
	case errors.Is(err, service.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case isValidationError(err):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("operation failed", err)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		models.ErrNameRequired,
		models.ErrURLRequired,
		models.ErrInvalidURL,
		models.ErrUnsupportedScheme,
		models.ErrInvalidTimeout,
		models.ErrOutputNameRequired,
		models.ErrInvalidOutputName,
		models.ErrInvalidDecision,
		models.ErrInvalidChannelMode,
		models.ErrInvalidAutoNumRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
