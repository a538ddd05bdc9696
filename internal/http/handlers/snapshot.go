package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// SnapshotHandler exposes snapshot metadata for the admin UI.
type SnapshotHandler struct {
	repos *repository.Repositories
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(repos *repository.Repositories) *SnapshotHandler {
	return &SnapshotHandler{repos: repos}
}

// Register registers the snapshot routes with the API.
func (h *SnapshotHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfileSnapshots",
		Method:      "GET",
		Path:        "/api/v1/profiles/{id}/snapshots",
		Summary:     "List snapshots",
		Description: "Returns the profile's snapshots, newest first.",
		Tags:        []string{"Snapshots"},
	}, h.ListByProfile)

	huma.Register(api, huma.Operation{
		OperationID: "getSnapshot",
		Method:      "GET",
		Path:        "/api/v1/snapshots/{id}",
		Summary:     "Get snapshot",
		Tags:        []string{"Snapshots"},
	}, h.GetByID)
}

// ListSnapshotsOutput is the output for listing snapshots.
type ListSnapshotsOutput struct {
	Body struct {
		Snapshots []*models.Snapshot `json:"snapshots"`
	}
}

// ListByProfile returns the profile's snapshots, newest first.
func (h *SnapshotHandler) ListByProfile(ctx context.Context, input *ProfileByIDInput) (*ListSnapshotsOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	snapshots, err := h.repos.Snapshots.ListByProfile(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list snapshots", err)
	}
	out := &ListSnapshotsOutput{}
	out.Body.Snapshots = snapshots
	return out, nil
}

// SnapshotByIDInput addresses one snapshot.
type SnapshotByIDInput struct {
	ID string `path:"id" doc:"Snapshot ID (ULID)"`
}

// SnapshotOutput carries one snapshot.
type SnapshotOutput struct {
	Body *models.Snapshot
}

// GetByID returns a snapshot by ID.
func (h *SnapshotHandler) GetByID(ctx context.Context, input *SnapshotByIDInput) (*SnapshotOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	snap, err := h.repos.Snapshots.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get snapshot", err)
	}
	if snap == nil {
		return nil, huma.Error404NotFound("snapshot not found")
	}
	return &SnapshotOutput{Body: snap}, nil
}
