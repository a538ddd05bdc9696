// Package reconcile folds a fetched playlist into the catalog. Groups and
// channels are upserted under stable identities and deactivated, never
// deleted, when they stop appearing; the whole write runs in one transaction
// so a failed refresh leaves the catalog untouched.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3undle/m3undle/internal/classify"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/internal/urlutil"
	"github.com/m3undle/m3undle/pkg/m3u"
)

// Input carries one fetch's parsed entries into reconciliation.
type Input struct {
	ProviderID models.ULID
	ProfileID  models.ULID
	FetchRunID models.ULID
	Entries    []m3u.Entry
	Now        time.Time
}

// Result summarizes what a reconcile changed.
type Result struct {
	GroupsSeen          int
	GroupsDeactivated   int64
	FiltersCreated      int
	ChannelsUpserted    int
	ChannelsSkipped     int
	ChannelsExcluded    int
	ChannelsDeactivated int64
}

// Reconciler applies parsed playlists to the catalog store.
type Reconciler struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// New creates a Reconciler.
func New(repos *repository.Repositories, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		repos:  repos,
		logger: observability.WithComponent(logger, "reconcile"),
	}
}

// groupAggregate accumulates per-group counts during step 1.
type groupAggregate struct {
	name   string
	total  int
	live   int
	vod    int
	series int
}

// contentType derives the group label: the homogeneous type when all entries
// agree, mixed otherwise, live for a group somehow empty.
func (g *groupAggregate) contentType() models.ContentType {
	kinds := 0
	if g.live > 0 {
		kinds++
	}
	if g.vod > 0 {
		kinds++
	}
	if g.series > 0 {
		kinds++
	}
	switch {
	case kinds > 1:
		return models.ContentTypeMixed
	case g.vod > 0:
		return models.ContentTypeVOD
	case g.series > 0:
		return models.ContentTypeSeries
	default:
		return models.ContentTypeLive
	}
}

// Reconcile runs the five reconcile steps in one transaction: group upsert,
// group deactivation, filter backfill, channel upsert, channel deactivation.
// It is idempotent modulo last_seen and updated_at timestamps.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (*Result, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	result := &Result{}
	err := r.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		groupIDs, err := r.reconcileGroups(ctx, tx, in, result)
		if err != nil {
			return err
		}
		excluded, err := r.backfillFilters(ctx, tx, in, groupIDs, result)
		if err != nil {
			return err
		}
		return r.reconcileChannels(ctx, tx, in, groupIDs, excluded, result)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("reconcile completed",
		slog.String("provider_id", in.ProviderID.String()),
		slog.Int("groups_seen", result.GroupsSeen),
		slog.Int64("groups_deactivated", result.GroupsDeactivated),
		slog.Int("filters_created", result.FiltersCreated),
		slog.Int("channels_upserted", result.ChannelsUpserted),
		slog.Int("channels_skipped", result.ChannelsSkipped),
		slog.Int("channels_excluded", result.ChannelsExcluded),
		slog.Int64("channels_deactivated", result.ChannelsDeactivated),
	)
	return result, nil
}

// reconcileGroups performs steps 1 and 2 and returns raw name -> group id for
// the groups seen in this fetch.
func (r *Reconciler) reconcileGroups(ctx context.Context, tx *repository.Repositories, in Input, result *Result) (map[string]models.ULID, error) {
	// Aggregate in first-appearance order; entries without a group title
	// stay ungrouped and get no group row.
	byName := make(map[string]*groupAggregate)
	var order []string
	for i := range in.Entries {
		entry := &in.Entries[i]
		name := strings.TrimSpace(entry.GroupTitle)
		if name == "" {
			continue
		}
		agg, ok := byName[name]
		if !ok {
			agg = &groupAggregate{name: name}
			byName[name] = agg
			order = append(order, name)
		}
		agg.total++
		switch classify.Classify(entry.URL) {
		case models.ContentTypeVOD:
			agg.vod++
		case models.ContentTypeSeries:
			agg.series++
		default:
			agg.live++
		}
	}

	groupIDs := make(map[string]models.ULID, len(order))
	for _, name := range order {
		agg := byName[name]

		existing, err := tx.ProviderGroups.GetByProviderAndName(ctx, in.ProviderID, name)
		if err != nil {
			return nil, fmt.Errorf("looking up group %q: %w", name, err)
		}
		if existing != nil {
			existing.LastSeenAt = in.Now
			existing.Active = true
			existing.ChannelCount = agg.total
			existing.ContentType = agg.contentType()
			if err := tx.ProviderGroups.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("updating group %q: %w", name, err)
			}
			groupIDs[name] = existing.ID
			continue
		}

		group := &models.ProviderGroup{
			ProviderID:   in.ProviderID,
			Name:         name,
			FirstSeenAt:  in.Now,
			LastSeenAt:   in.Now,
			Active:       true,
			ChannelCount: agg.total,
			ContentType:  agg.contentType(),
		}
		if err := tx.ProviderGroups.Create(ctx, group); err != nil {
			return nil, fmt.Errorf("creating group %q: %w", name, err)
		}
		groupIDs[name] = group.ID
	}
	result.GroupsSeen = len(order)

	deactivated, err := tx.ProviderGroups.DeactivateMissing(ctx, in.ProviderID, order)
	if err != nil {
		return nil, fmt.Errorf("deactivating missing groups: %w", err)
	}
	result.GroupsDeactivated = deactivated

	return groupIDs, nil
}

// backfillFilters performs step 3 and returns the set of group IDs whose
// filter decision is exclude under the target profile.
func (r *Reconciler) backfillFilters(ctx context.Context, tx *repository.Repositories, in Input, groupIDs map[string]models.ULID, result *Result) (map[models.ULID]bool, error) {
	have, err := tx.GroupFilters.GroupIDsWithFilter(ctx, in.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("listing existing filters: %w", err)
	}

	groups, err := tx.ProviderGroups.GetByProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("listing provider groups: %w", err)
	}
	for _, group := range groups {
		if have[group.ID] {
			continue
		}
		filter := &models.ProfileGroupFilter{
			ProfileID:        in.ProfileID,
			ProviderGroupID:  group.ID,
			Decision:         models.DecisionPending,
			ChannelMode:      models.ChannelModeAll,
			TrackNewChannels: false,
		}
		if err := tx.GroupFilters.Create(ctx, filter); err != nil {
			return nil, fmt.Errorf("backfilling filter for group %q: %w", group.Name, err)
		}
		result.FiltersCreated++
	}

	// The exclusion set is read after backfill so the excluded-group skip
	// in the channel pass sees a consistent filter state.
	filters, err := tx.GroupFilters.GetByProfile(ctx, in.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}
	excluded := make(map[models.ULID]bool)
	for _, filter := range filters {
		if filter.Decision == models.DecisionExclude {
			excluded[filter.ProviderGroupID] = true
		}
	}
	return excluded, nil
}

// reconcileChannels performs steps 4 and 5.
func (r *Reconciler) reconcileChannels(ctx context.Context, tx *repository.Repositories, in Input, groupIDs map[string]models.ULID, excluded map[models.ULID]bool, result *Result) error {
	occurrences := make(map[string]int)
	var seenKeys []string

	for i := range in.Entries {
		entry := &in.Entries[i]

		// Port-80 https URLs are normalized before identity derivation
		// so the stable key matches the URL that gets emitted.
		streamURL := urlutil.NormalizeStreamURL(strings.TrimSpace(entry.URL))
		displayName := ResolveDisplayName(entry)
		if streamURL == "" || displayName == "" {
			result.ChannelsSkipped++
			continue
		}

		groupTitle := strings.TrimSpace(entry.GroupTitle)
		identity := StableIdentity(entry.TvgID, displayName, streamURL, groupTitle)
		occurrences[identity]++
		if n := occurrences[identity]; n >= 2 {
			identity = DupIdentity(identity, n)
		}
		key := StableKey(identity)

		groupID := groupIDs[groupTitle]
		if excluded[groupID] && !groupID.IsZero() {
			// Excluded channels are not marked seen; the sweep below
			// deactivates any existing row.
			result.ChannelsExcluded++
			continue
		}

		channel := &models.ProviderChannel{
			ProviderID:     in.ProviderID,
			StableKey:      key,
			DisplayName:    displayName,
			TvgID:          strings.TrimSpace(entry.TvgID),
			TvgName:        strings.TrimSpace(entry.TvgName),
			LogoURL:        strings.TrimSpace(entry.TvgLogo),
			StreamURL:      streamURL,
			GroupName:      groupTitle,
			GroupID:        groupID,
			ContentType:    classify.Classify(streamURL),
			FirstSeenAt:    in.Now,
			LastSeenAt:     in.Now,
			Active:         true,
			LastFetchRunID: in.FetchRunID,
		}
		if err := tx.ProviderChannels.Upsert(ctx, channel); err != nil {
			return fmt.Errorf("upserting channel %q: %w", displayName, err)
		}
		result.ChannelsUpserted++
		seenKeys = append(seenKeys, key)
	}

	deactivated, err := tx.ProviderChannels.DeactivateMissing(ctx, in.ProviderID, seenKeys)
	if err != nil {
		return fmt.Errorf("deactivating missing channels: %w", err)
	}
	result.ChannelsDeactivated = deactivated
	return nil
}
