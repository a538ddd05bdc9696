package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/refresh"
	"github.com/m3undle/m3undle/internal/service"
)

// FilterHandler handles group filter admin endpoints. Filter edits trigger a
// build-only refresh so the published lineup follows without an upstream
// fetch.
type FilterHandler struct {
	filters     *service.FilterService
	coordinator *refresh.Coordinator
}

// NewFilterHandler creates a filter handler.
func NewFilterHandler(filters *service.FilterService, coordinator *refresh.Coordinator) *FilterHandler {
	return &FilterHandler{
		filters:     filters,
		coordinator: coordinator,
	}
}

// FilterPatchRequest is the writable subset of a group filter. Absent fields
// stay unchanged.
type FilterPatchRequest struct {
	Decision         *string `json:"decision,omitempty" enum:"pending,include,exclude" doc:"Group decision"`
	ChannelMode      *string `json:"channel_mode,omitempty" enum:"all,select" doc:"Channel selection mode"`
	OutputName       *string `json:"output_name,omitempty" doc:"Rename the group in output (empty keeps the raw name)"`
	AutoNumStart     *int    `json:"auto_num_start,omitempty" doc:"First automatic channel number"`
	AutoNumEnd       *int    `json:"auto_num_end,omitempty" doc:"Numbering stops before exceeding this"`
	ClearAutoNum     bool    `json:"clear_auto_num,omitempty" doc:"Drop both numbering bounds"`
	TrackNewChannels *bool   `json:"track_new_channels,omitempty"`
}

// Register registers the filter routes with the API.
func (h *FilterHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfileFilters",
		Method:      "GET",
		Path:        "/api/v1/profiles/{id}/filters",
		Summary:     "List group filters",
		Description: "Returns the profile's per-group filter state with groups preloaded.",
		Tags:        []string{"Filters"},
	}, h.ListByProfile)

	huma.Register(api, huma.Operation{
		OperationID: "patchFilter",
		Method:      "PATCH",
		Path:        "/api/v1/filters/{id}",
		Summary:     "Update group filter",
		Description: "Applies a partial update and rebuilds the lineup from the current catalog.",
		Tags:        []string{"Filters"},
	}, h.Patch)

	huma.Register(api, huma.Operation{
		OperationID: "listChannelOverrides",
		Method:      "GET",
		Path:        "/api/v1/filters/{id}/channels",
		Summary:     "List channel overrides",
		Tags:        []string{"Filters"},
	}, h.ListOverrides)

	huma.Register(api, huma.Operation{
		OperationID: "setChannelOverride",
		Method:      "PUT",
		Path:        "/api/v1/filters/{id}/channels/{channelId}",
		Summary:     "Set channel override",
		Description: "Creates or updates the override row selecting a channel in select mode.",
		Tags:        []string{"Filters"},
	}, h.SetOverride)

	huma.Register(api, huma.Operation{
		OperationID: "deleteChannelOverride",
		Method:      "DELETE",
		Path:        "/api/v1/filters/{id}/channels/{overrideId}",
		Summary:     "Delete channel override",
		Tags:        []string{"Filters"},
	}, h.DeleteOverride)
}

// ListFiltersOutput is the output for listing filters.
type ListFiltersOutput struct {
	Body struct {
		Filters []*models.ProfileGroupFilter `json:"filters"`
	}
}

// ListByProfile returns the profile's group filters.
func (h *FilterHandler) ListByProfile(ctx context.Context, input *ProfileByIDInput) (*ListFiltersOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	filters, err := h.filters.ListByProfile(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "profile")
	}
	out := &ListFiltersOutput{}
	out.Body.Filters = filters
	return out, nil
}

// PatchFilterInput is the input for patching a filter.
type PatchFilterInput struct {
	ID   string `path:"id" doc:"Filter ID (ULID)"`
	Body FilterPatchRequest
}

// FilterOutput carries one filter.
type FilterOutput struct {
	Body *models.ProfileGroupFilter
}

// Patch applies a partial filter update and triggers a rebuild.
func (h *FilterHandler) Patch(ctx context.Context, input *PatchFilterInput) (*FilterOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	patch := service.FilterPatch{
		OutputName:       input.Body.OutputName,
		AutoNumStart:     input.Body.AutoNumStart,
		AutoNumEnd:       input.Body.AutoNumEnd,
		ClearAutoNum:     input.Body.ClearAutoNum,
		TrackNewChannels: input.Body.TrackNewChannels,
	}
	if input.Body.Decision != nil {
		decision := models.FilterDecision(*input.Body.Decision)
		patch.Decision = &decision
	}
	if input.Body.ChannelMode != nil {
		mode := models.ChannelMode(*input.Body.ChannelMode)
		patch.ChannelMode = &mode
	}

	filter, err := h.filters.Patch(ctx, id, patch)
	if err != nil {
		return nil, mapServiceError(err, "filter")
	}

	h.rebuild()
	return &FilterOutput{Body: filter}, nil
}

// FilterByIDInput addresses one filter.
type FilterByIDInput struct {
	ID string `path:"id" doc:"Filter ID (ULID)"`
}

// ListOverridesOutput is the output for listing channel overrides.
type ListOverridesOutput struct {
	Body struct {
		Overrides []*models.ProfileGroupChannelFilter `json:"overrides"`
	}
}

// ListOverrides returns the filter's channel overrides.
func (h *FilterHandler) ListOverrides(ctx context.Context, input *FilterByIDInput) (*ListOverridesOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	overrides, err := h.filters.ListOverrides(ctx, id)
	if err != nil {
		return nil, mapServiceError(err, "filter")
	}
	out := &ListOverridesOutput{}
	out.Body.Overrides = overrides
	return out, nil
}

// SetOverrideInput is the input for setting a channel override.
type SetOverrideInput struct {
	ID        string `path:"id" doc:"Filter ID (ULID)"`
	ChannelID string `path:"channelId" doc:"Provider channel ID (ULID)"`
	Body      struct {
		OutputGroupName string `json:"output_group_name,omitempty" doc:"Rename the group for this channel"`
		ChannelNumber   *int   `json:"channel_number,omitempty" doc:"Pin an explicit channel number"`
	}
}

// OverrideOutput carries one channel override.
type OverrideOutput struct {
	Body *models.ProfileGroupChannelFilter
}

// SetOverride creates or updates a channel override and triggers a rebuild.
func (h *FilterHandler) SetOverride(ctx context.Context, input *SetOverrideInput) (*OverrideOutput, error) {
	filterID, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid filter ID format", err)
	}
	channelID, err := models.ParseULID(input.ChannelID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid channel ID format", err)
	}

	override, err := h.filters.SetOverride(ctx, filterID, channelID, input.Body.OutputGroupName, input.Body.ChannelNumber)
	if err != nil {
		return nil, mapServiceError(err, "channel override")
	}

	h.rebuild()
	return &OverrideOutput{Body: override}, nil
}

// DeleteOverrideInput is the input for deleting a channel override.
type DeleteOverrideInput struct {
	ID         string `path:"id" doc:"Filter ID (ULID)"`
	OverrideID string `path:"overrideId" doc:"Override ID (ULID)"`
}

// DeleteOverride removes a channel override and triggers a rebuild.
func (h *FilterHandler) DeleteOverride(ctx context.Context, input *DeleteOverrideInput) (*struct{}, error) {
	filterID, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid filter ID format", err)
	}
	overrideID, err := models.ParseULID(input.OverrideID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid override ID format", err)
	}

	if err := h.filters.DeleteOverride(ctx, filterID, overrideID); err != nil {
		return nil, mapServiceError(err, "channel override")
	}

	h.rebuild()
	return &struct{}{}, nil
}

// rebuild queues a build-only refresh. A busy coordinator is fine: the edit
// is persisted and the running build's successor will pick it up.
func (h *FilterHandler) rebuild() {
	if h.coordinator == nil {
		return
	}
	_ = h.coordinator.TriggerBuildOnly()
}
