package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/repository"
)

// StatusProvider identifies the provider the lineup is sourced from.
type StatusProvider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusSnapshot summarizes the lineup's active snapshot.
type StatusSnapshot struct {
	ID                    string    `json:"id"`
	ProfileID             string    `json:"profileId"`
	CreatedUTC            time.Time `json:"createdUtc"`
	ChannelCountPublished int       `json:"channelCountPublished"`
}

// StatusRefresh summarizes the most recent refresh fetch.
type StatusRefresh struct {
	Status           string     `json:"status"`
	StartedUTC       time.Time  `json:"startedUtc"`
	FinishedUTC      *time.Time `json:"finishedUtc,omitempty"`
	ChannelCountSeen int        `json:"channelCountSeen"`
	ErrorSummary     string     `json:"errorSummary,omitempty"`
}

// LineupStatus is one profile's publication state.
type LineupStatus struct {
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	ActiveProvider *StatusProvider `json:"activeProvider"`
	ActiveSnapshot *StatusSnapshot `json:"activeSnapshot"`
	LastRefresh    *StatusRefresh  `json:"lastRefresh"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status  string         `json:"status"` // ok, degraded, no_active_snapshot
	Lineups []LineupStatus `json:"lineups"`
}

// StatusHandler serves the unauthenticated lineup summary.
type StatusHandler struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(repos *repository.Repositories, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		repos:  repos,
		logger: observability.WithComponent(logger, "status"),
	}
}

// RegisterRoutes registers the status route.
func (h *StatusHandler) RegisterRoutes(router chi.Router) {
	router.Get("/status", h.ServeStatus)
}

// ServeStatus reports per-lineup publication state. A lineup is ok when it
// has an active snapshot and the latest refresh fetch succeeded, degraded
// when a snapshot is being served but the latest fetch failed, and
// no_active_snapshot when nothing has been published yet. The top-level
// status is the worst lineup status, with ok requiring every enabled lineup
// to be ok.
func (h *StatusHandler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profiles, err := h.repos.Profiles.GetAll(ctx)
	if err != nil {
		h.logger.Error("listing profiles", slog.String("error", err.Error()))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	var activeProvider *StatusProvider
	var lastRefresh *StatusRefresh
	provider, err := h.repos.Providers.GetActive(ctx)
	if err != nil {
		h.logger.Error("resolving active provider", slog.String("error", err.Error()))
	} else if provider != nil {
		activeProvider = &StatusProvider{ID: provider.ID.String(), Name: provider.Name}
		run, err := h.repos.FetchRuns.GetLatestByProvider(ctx, provider.ID, models.RunTypeSnapshot)
		if err != nil {
			h.logger.Error("resolving last refresh", slog.String("error", err.Error()))
		} else if run != nil {
			lastRefresh = &StatusRefresh{
				Status:           string(run.Status),
				StartedUTC:       run.StartedAt.UTC(),
				ChannelCountSeen: run.ChannelCountSeen,
				ErrorSummary:     run.ErrorSummary,
			}
			if run.FinishedAt != nil {
				finished := run.FinishedAt.UTC()
				lastRefresh.FinishedUTC = &finished
			}
		}
	}

	resp := StatusResponse{Lineups: make([]LineupStatus, 0, len(profiles))}
	okCount, published := 0, 0
	for _, profile := range profiles {
		if !models.BoolVal(profile.Enabled) {
			continue
		}

		lineup := LineupStatus{
			Name:           profile.OutputName,
			Status:         "no_active_snapshot",
			ActiveProvider: activeProvider,
			LastRefresh:    lastRefresh,
		}
		snap, err := h.repos.Snapshots.GetActiveByProfile(ctx, profile.ID)
		if err != nil {
			h.logger.Error("resolving active snapshot",
				slog.String("output_name", profile.OutputName),
				slog.String("error", err.Error()),
			)
		} else if snap != nil {
			published++
			lineup.ActiveSnapshot = &StatusSnapshot{
				ID:                    snap.ID.String(),
				ProfileID:             snap.ProfileID.String(),
				CreatedUTC:            snap.CreatedAt.UTC(),
				ChannelCountPublished: snap.ChannelCountPublished,
			}
			if lastRefresh != nil && lastRefresh.Status == string(models.RunStatusFail) {
				lineup.Status = "degraded"
			} else {
				lineup.Status = "ok"
				okCount++
			}
		}
		resp.Lineups = append(resp.Lineups, lineup)
	}

	switch {
	case len(resp.Lineups) > 0 && okCount == len(resp.Lineups):
		resp.Status = "ok"
	case published > 0:
		resp.Status = "degraded"
	default:
		resp.Status = "no_active_snapshot"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
