package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3undle/m3undle/internal/classify"
	"github.com/m3undle/m3undle/internal/fetch"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// PreviewResult summarizes a provider's playlist without touching the
// catalog: group names in first-appearance order with channel counts and
// content-type labels.
type PreviewResult struct {
	Groups       []repository.GroupPreview `json:"groups"`
	ChannelCount int                       `json:"channelCount"`
	Warnings     int                       `json:"warnings"`
	Bytes        int64                     `json:"bytes"`
}

// PreviewService fetches and summarizes playlists for the admin UI.
type PreviewService struct {
	repos   *repository.Repositories
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// NewPreviewService creates a preview service.
func NewPreviewService(repos *repository.Repositories, fetcher *fetch.Fetcher) *PreviewService {
	return &PreviewService{
		repos:   repos,
		fetcher: fetcher,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *PreviewService) WithLogger(logger *slog.Logger) *PreviewService {
	s.logger = logger
	return s
}

// Preview fetches the provider's playlist and aggregates it per group. The
// fetch is bracketed by a preview-type run row for the audit trail; nothing
// else is written.
func (s *PreviewService) Preview(ctx context.Context, providerID models.ULID) (*PreviewResult, error) {
	provider, err := s.repos.Providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
	}

	run := &models.FetchRun{
		ProviderID: provider.ID,
		Type:       models.RunTypePreview,
		StartedAt:  models.Now(),
		Status:     models.RunStatusRunning,
	}
	if err := s.repos.FetchRuns.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("creating preview run: %w", err)
	}

	playlist, err := s.fetcher.FetchPlaylist(ctx, provider)
	if err != nil {
		run.MarkFail(err)
		if updateErr := s.repos.FetchRuns.Update(context.WithoutCancel(ctx), run); updateErr != nil {
			s.logger.Warn("recording failed preview run", "error", updateErr.Error())
		}
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}

	result := s.aggregate(playlist)

	run.MarkOK(playlist.Bytes, 0, len(playlist.Entries))
	if err := s.repos.FetchRuns.Update(ctx, run); err != nil {
		s.logger.Warn("finalizing preview run", "error", err.Error())
	}

	s.logger.Info("previewed provider playlist",
		"provider", provider.Name,
		"groups", len(result.Groups),
		"channels", result.ChannelCount,
	)
	return result, nil
}

// aggregate folds entries into per-group summaries the same way a refresh
// labels groups: homogeneous type when all entries agree, mixed otherwise.
func (s *PreviewService) aggregate(playlist *fetch.PlaylistResult) *PreviewResult {
	type counts struct {
		total int
		kinds map[models.ContentType]int
	}

	order := make([]string, 0)
	byGroup := make(map[string]*counts)
	for _, entry := range playlist.Entries {
		name := strings.TrimSpace(entry.GroupTitle)
		agg, ok := byGroup[name]
		if !ok {
			agg = &counts{kinds: make(map[models.ContentType]int)}
			byGroup[name] = agg
			order = append(order, name)
		}
		agg.total++
		agg.kinds[classify.Classify(entry.URL)]++
	}

	result := &PreviewResult{
		ChannelCount: len(playlist.Entries),
		Warnings:     playlist.Warnings,
		Bytes:        playlist.Bytes,
	}
	for _, name := range order {
		agg := byGroup[name]
		contentType := models.ContentTypeLive
		switch {
		case len(agg.kinds) > 1:
			contentType = models.ContentTypeMixed
		case agg.kinds[models.ContentTypeVOD] > 0:
			contentType = models.ContentTypeVOD
		case agg.kinds[models.ContentTypeSeries] > 0:
			contentType = models.ContentTypeSeries
		}
		result.Groups = append(result.Groups, repository.GroupPreview{
			Name:         name,
			ChannelCount: agg.total,
			ContentType:  contentType,
		})
	}
	return result
}
