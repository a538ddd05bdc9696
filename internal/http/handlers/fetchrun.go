package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// FetchRunHandler exposes the fetch audit trail.
type FetchRunHandler struct {
	repos *repository.Repositories
}

// NewFetchRunHandler creates a fetch run handler.
func NewFetchRunHandler(repos *repository.Repositories) *FetchRunHandler {
	return &FetchRunHandler{repos: repos}
}

// Register registers the fetch run routes with the API.
func (h *FetchRunHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFetchRuns",
		Method:      "GET",
		Path:        "/api/v1/fetchruns",
		Summary:     "List fetch runs",
		Description: "Returns recent fetch runs, newest first, optionally filtered by provider.",
		Tags:        []string{"Fetch Runs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getFetchRun",
		Method:      "GET",
		Path:        "/api/v1/fetchruns/{id}",
		Summary:     "Get fetch run",
		Tags:        []string{"Fetch Runs"},
	}, h.GetByID)
}

// ListFetchRunsInput filters the fetch run listing.
type ListFetchRunsInput struct {
	ProviderID string `query:"provider_id" doc:"Filter by provider ID (ULID)"`
	Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum runs returned"`
}

// ListFetchRunsOutput is the output for listing fetch runs.
type ListFetchRunsOutput struct {
	Body struct {
		Runs []*models.FetchRun `json:"runs"`
	}
}

// List returns recent fetch runs.
func (h *FetchRunHandler) List(ctx context.Context, input *ListFetchRunsInput) (*ListFetchRunsOutput, error) {
	var providerID *models.ULID
	if input.ProviderID != "" {
		id, err := models.ParseULID(input.ProviderID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid provider ID format", err)
		}
		providerID = &id
	}

	runs, err := h.repos.FetchRuns.List(ctx, providerID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list fetch runs", err)
	}
	out := &ListFetchRunsOutput{}
	out.Body.Runs = runs
	return out, nil
}

// FetchRunByIDInput addresses one fetch run.
type FetchRunByIDInput struct {
	ID string `path:"id" doc:"Fetch run ID (ULID)"`
}

// FetchRunOutput carries one fetch run.
type FetchRunOutput struct {
	Body *models.FetchRun
}

// GetByID returns a fetch run by ID.
func (h *FetchRunHandler) GetByID(ctx context.Context, input *FetchRunByIDInput) (*FetchRunOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	run, err := h.repos.FetchRuns.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get fetch run", err)
	}
	if run == nil {
		return nil, huma.Error404NotFound("fetch run not found")
	}
	return &FetchRunOutput{Body: run}, nil
}
