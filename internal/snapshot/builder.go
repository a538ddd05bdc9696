// Package snapshot assembles published lineups and manages their lifecycle:
// staged artifact writes, atomic promotion, and retention. A snapshot is an
// immutable pair of files (channel index JSON, guide XML); the active one per
// profile is what every read endpoint serves.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/m3undle/m3undle/internal/events"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/repository"
)

// Bucket names for vod/series channels whose raw group has no filter row.
const (
	bucketMovies = "Movies"
	bucketSeries = "Series"
)

// Targets is the provider/profile pair a refresh operates on.
type Targets struct {
	Provider *models.Provider
	Profile  *models.Profile
}

// BuildInput carries one build's inputs. Guide == nil means build-only mode:
// the prior active snapshot's guide file is reused byte-for-byte, or the
// empty guide document when there is none.
type BuildInput struct {
	Provider *models.Provider
	Profile  *models.Profile
	Guide    []byte

	// ErrorSummary carries non-fatal diagnostics into the snapshot row,
	// typically a substituted guide after a guide-fetch failure.
	ErrorSummary string
}

// Builder builds, promotes and prunes snapshots.
type Builder struct {
	repos     *repository.Repositories
	store     *Store
	bus       *events.Bus
	retention int
	logger    *slog.Logger
}

// NewBuilder creates a Builder. retention <= 0 falls back to keeping 3.
func NewBuilder(repos *repository.Repositories, store *Store, bus *events.Bus, retention int, logger *slog.Logger) *Builder {
	if retention <= 0 {
		retention = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		repos:     repos,
		store:     store,
		bus:       bus,
		retention: retention,
		logger:    observability.WithComponent(logger, "snapshot"),
	}
}

// SelectTargets picks the unique active enabled provider and the enabled
// profile behind its lowest-priority enabled link. (nil, nil) means a refresh
// has nothing to do.
func (b *Builder) SelectTargets(ctx context.Context) (*Targets, error) {
	provider, err := b.repos.Providers.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving active provider: %w", err)
	}
	if provider == nil || !provider.IsEnabled() {
		return nil, nil
	}

	profile, err := b.repos.Profiles.GetBestProfileForProvider(ctx, provider.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	return &Targets{Provider: provider, Profile: profile}, nil
}

// Build assembles the lineup from the current catalog, writes the artifacts,
// inserts a staged snapshot row, promotes it, and prunes old snapshots.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*models.Snapshot, error) {
	index, err := b.assemble(ctx, in.Provider, in.Profile)
	if err != nil {
		return nil, fmt.Errorf("assembling lineup: %w", err)
	}

	guide, guideNote, err := b.resolveGuide(ctx, in)
	if err != nil {
		return nil, err
	}
	summary := in.ErrorSummary
	if summary == "" {
		summary = guideNote
	}

	snapshotID := models.NewULID()
	indexPath, guidePath, err := b.store.Write(in.Profile.OutputName, snapshotID, index, guide)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot artifacts: %w", err)
	}

	snap := &models.Snapshot{
		BaseModel:             models.BaseModel{ID: snapshotID},
		ProfileID:             in.Profile.ID,
		Status:                models.SnapshotStaged,
		ChannelIndexPath:      indexPath,
		GuidePath:             guidePath,
		ChannelCountPublished: len(index),
		ErrorSummary:          summary,
	}
	if err := b.repos.Snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("creating snapshot row: %w", err)
	}

	if err := b.repos.Snapshots.Promote(ctx, in.Profile.ID, snap.ID); err != nil {
		return nil, fmt.Errorf("promoting snapshot: %w", err)
	}
	snap.Status = models.SnapshotActive

	b.logger.Info("snapshot promoted",
		slog.String("snapshot_id", snap.ID.String()),
		slog.String("profile", in.Profile.Name),
		slog.Int("channels", len(index)),
	)
	if b.bus != nil {
		b.bus.Publish(events.Event{
			Type: events.TypeSnapshotPromoted,
			Data: map[string]any{
				"snapshot_id":        snap.ID.String(),
				"profile_id":         in.Profile.ID.String(),
				"channels_published": len(index),
			},
		})
	}

	b.prune(ctx, in.Profile.ID)
	return snap, nil
}

// published is one channel selected for emission, before final ordering.
type published struct {
	channel     *models.ProviderChannel
	outputGroup string
	number      *int
	filterID    models.ULID
}

// assemble selects and orders the channels the profile publishes.
func (b *Builder) assemble(ctx context.Context, provider *models.Provider, profile *models.Profile) ([]IndexEntry, error) {
	channels, err := b.repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, provider.IncludeVOD, provider.IncludeSeries)
	if err != nil {
		return nil, fmt.Errorf("loading channels: %w", err)
	}

	filters, err := b.repos.GroupFilters.GetByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}

	filterByGroup := make(map[models.ULID]*models.ProfileGroupFilter)
	includeCount := 0
	for _, filter := range filters {
		filterByGroup[filter.ProviderGroupID] = filter
		if filter.Decision == models.DecisionInclude {
			includeCount++
		}
	}
	// With no include decision anywhere, live channels pass through under
	// their raw group names so a freshly configured server publishes
	// something immediately. The first include flips the profile to strict
	// opt-in.
	bootstrap := includeCount == 0

	overrides := make(map[models.ULID]map[models.ULID]*models.ProfileGroupChannelFilter)
	for _, filter := range filters {
		rows, err := b.repos.GroupFilters.GetChannelFilters(ctx, filter.ID)
		if err != nil {
			return nil, fmt.Errorf("loading channel overrides: %w", err)
		}
		if len(rows) == 0 {
			continue
		}
		byChannel := make(map[models.ULID]*models.ProfileGroupChannelFilter, len(rows))
		for _, row := range rows {
			byChannel[row.ProviderChannelID] = row
		}
		overrides[filter.ID] = byChannel
	}

	var selected []published
	for _, channel := range channels {
		filter := filterByGroup[channel.GroupID]

		switch channel.ContentType {
		case models.ContentTypeVOD, models.ContentTypeSeries:
			// Provider-level include flags are the only gate; group
			// decisions do not apply.
			outputGroup := bucketMovies
			if channel.ContentType == models.ContentTypeSeries {
				outputGroup = bucketSeries
			}
			if filter != nil {
				if filter.OutputName != "" {
					outputGroup = filter.OutputName
				} else if channel.GroupName != "" {
					outputGroup = channel.GroupName
				}
			}
			selected = append(selected, published{channel: channel, outputGroup: outputGroup})

		default: // live
			if bootstrap {
				selected = append(selected, published{channel: channel, outputGroup: channel.GroupName})
				continue
			}
			if filter == nil || filter.Decision != models.DecisionInclude {
				continue
			}

			outputGroup := filter.OutputName
			if outputGroup == "" {
				outputGroup = channel.GroupName
			}

			override := overrides[filter.ID][channel.ID]
			if filter.ChannelMode == models.ChannelModeSelect && override == nil {
				continue
			}

			entry := published{channel: channel, outputGroup: outputGroup, filterID: filter.ID}
			if override != nil {
				if override.OutputGroupName != "" {
					entry.outputGroup = override.OutputGroupName
				}
				if override.ChannelNumber != nil {
					n := *override.ChannelNumber
					entry.number = &n
				}
			}
			selected = append(selected, entry)
		}
	}

	assignAutoNumbers(selected, filters)
	orderLineup(selected)

	index := make([]IndexEntry, 0, len(selected))
	for _, item := range selected {
		index = append(index, IndexEntry{
			StreamKey:   StreamKey(item.channel.TvgID, item.channel.DisplayName, item.channel.StreamURL, item.outputGroup, profile.ID),
			DisplayName: item.channel.DisplayName,
			TvgID:       item.channel.TvgID,
			TvgName:     item.channel.TvgName,
			LogoURL:     item.channel.LogoURL,
			GroupTitle:  item.outputGroup,
			TvgChno:     item.number,
			StreamURL:   item.channel.StreamURL,
		})
	}
	return index, nil
}

// assignAutoNumbers hands consecutive numbers to unnumbered channels of
// filters that define auto_num_start, in deterministic order, stopping before
// auto_num_end would be exceeded.
func assignAutoNumbers(selected []published, filters []*models.ProfileGroupFilter) {
	byFilter := make(map[models.ULID][]*published)
	for i := range selected {
		item := &selected[i]
		if item.number == nil && !item.filterID.IsZero() {
			byFilter[item.filterID] = append(byFilter[item.filterID], item)
		}
	}

	for _, filter := range filters {
		if filter.AutoNumStart == nil {
			continue
		}
		items := byFilter[filter.ID]
		sort.Slice(items, func(i, j int) bool {
			if items[i].channel.DisplayName != items[j].channel.DisplayName {
				return items[i].channel.DisplayName < items[j].channel.DisplayName
			}
			return items[i].channel.StreamURL < items[j].channel.StreamURL
		})

		next := *filter.AutoNumStart
		for _, item := range items {
			if filter.AutoNumEnd != nil && next > *filter.AutoNumEnd {
				break
			}
			n := next
			item.number = &n
			next++
		}
	}
}

// orderLineup sorts the emitted list: output groups in byte order, numbered
// channels first ascending, then unnumbered by display name and stream URL.
func orderLineup(selected []published) {
	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.outputGroup != b.outputGroup {
			return a.outputGroup < b.outputGroup
		}
		switch {
		case a.number != nil && b.number != nil:
			return *a.number < *b.number
		case a.number != nil:
			return true
		case b.number != nil:
			return false
		}
		if a.channel.DisplayName != b.channel.DisplayName {
			return a.channel.DisplayName < b.channel.DisplayName
		}
		return a.channel.StreamURL < b.channel.StreamURL
	})
}

// resolveGuide picks the guide payload: the fetched bytes, the prior active
// snapshot's file in build-only mode, or the empty document.
func (b *Builder) resolveGuide(ctx context.Context, in BuildInput) (guide []byte, note string, err error) {
	if in.Guide != nil {
		return in.Guide, "", nil
	}

	prior, err := b.repos.Snapshots.GetActiveByProfile(ctx, in.Profile.ID)
	if err != nil {
		return nil, "", fmt.Errorf("resolving prior snapshot: %w", err)
	}
	if prior != nil {
		data, err := b.store.ReadGuide(prior.GuidePath)
		if err == nil {
			return data, "", nil
		}
		b.logger.Warn("prior guide unreadable, substituting empty guide",
			slog.String("path", prior.GuidePath),
			slog.String("error", err.Error()),
		)
		return []byte(EmptyGuide), "prior guide unreadable; substituted empty guide", nil
	}
	return []byte(EmptyGuide), "", nil
}

// prune enforces retention: the newest retention-count snapshots of the
// profile survive, the rest are removed, directory first, row second. The
// active snapshot is never deleted. Failures are logged and skipped.
func (b *Builder) prune(ctx context.Context, profileID models.ULID) {
	snapshots, err := b.repos.Snapshots.ListByProfile(ctx, profileID)
	if err != nil {
		b.logger.Warn("listing snapshots for retention", slog.String("error", err.Error()))
		return
	}
	if len(snapshots) <= b.retention {
		return
	}

	for _, snap := range snapshots[b.retention:] {
		if snap.IsActive() {
			continue
		}
		if err := b.store.DeleteSnapshotDir(snap.ChannelIndexPath); err != nil {
			b.logger.Warn("deleting snapshot directory",
				slog.String("snapshot_id", snap.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		if err := b.repos.Snapshots.Delete(ctx, snap.ID); err != nil {
			b.logger.Warn("deleting snapshot row",
				slog.String("snapshot_id", snap.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		b.logger.Debug("pruned snapshot", slog.String("snapshot_id", snap.ID.String()))
	}
}
