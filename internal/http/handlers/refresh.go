package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/refresh"
	"github.com/m3undle/m3undle/internal/repository"
)

// RefreshHandler exposes on-demand refresh triggers and run state.
type RefreshHandler struct {
	coordinator *refresh.Coordinator
	repos       *repository.Repositories
}

// NewRefreshHandler creates a refresh handler.
func NewRefreshHandler(coordinator *refresh.Coordinator, repos *repository.Repositories) *RefreshHandler {
	return &RefreshHandler{coordinator: coordinator, repos: repos}
}

// Register registers the refresh routes with the API.
func (h *RefreshHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "triggerRefresh",
		Method:        "POST",
		Path:          "/api/v1/refresh",
		Summary:       "Trigger full refresh",
		Description:   "Queues a fetch-reconcile-build cycle. 409 when one is already running or queued.",
		Tags:          []string{"Refresh"},
		DefaultStatus: 202,
	}, h.TriggerFull)

	huma.Register(api, huma.Operation{
		OperationID:   "triggerRebuild",
		Method:        "POST",
		Path:          "/api/v1/refresh/build",
		Summary:       "Trigger rebuild",
		Description:   "Queues a build-only refresh from the current catalog, without an upstream fetch.",
		Tags:          []string{"Refresh"},
		DefaultStatus: 202,
	}, h.TriggerRebuild)

	huma.Register(api, huma.Operation{
		OperationID: "getRefreshStatus",
		Method:      "GET",
		Path:        "/api/v1/refresh/status",
		Summary:     "Get refresh status",
		Tags:        []string{"Refresh"},
	}, h.Status)
}

// TriggerRefreshOutput acknowledges a queued refresh.
type TriggerRefreshOutput struct {
	Body struct {
		Queued bool   `json:"queued"`
		Mode   string `json:"mode"`
	}
}

// TriggerFull queues a full refresh.
func (h *RefreshHandler) TriggerFull(ctx context.Context, _ *struct{}) (*TriggerRefreshOutput, error) {
	return h.trigger(h.coordinator.TriggerFull, refresh.ModeFull)
}

// TriggerRebuild queues a build-only refresh.
func (h *RefreshHandler) TriggerRebuild(ctx context.Context, _ *struct{}) (*TriggerRefreshOutput, error) {
	return h.trigger(h.coordinator.TriggerBuildOnly, refresh.ModeBuildOnly)
}

func (h *RefreshHandler) trigger(fn func() error, mode refresh.Mode) (*TriggerRefreshOutput, error) {
	if err := fn(); err != nil {
		if errors.Is(err, refresh.ErrBusy) {
			return nil, huma.Error409Conflict("a refresh is already in progress")
		}
		return nil, huma.Error500InternalServerError("failed to queue refresh", err)
	}
	out := &TriggerRefreshOutput{}
	out.Body.Queued = true
	out.Body.Mode = string(mode)
	return out, nil
}

// RefreshStatusOutput is the output for refresh status.
type RefreshStatusOutput struct {
	Body struct {
		Busy    bool             `json:"busy"`
		LastRun *models.FetchRun `json:"lastRun,omitempty"`
	}
}

// Status reports whether a refresh is executing and the most recent run.
func (h *RefreshHandler) Status(ctx context.Context, _ *struct{}) (*RefreshStatusOutput, error) {
	out := &RefreshStatusOutput{}
	out.Body.Busy = h.coordinator.IsBusy()

	runs, err := h.repos.FetchRuns.List(ctx, nil, 1)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load last run", err)
	}
	if len(runs) > 0 {
		out.Body.LastRun = runs[0]
	}
	return out, nil
}
