package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/m3undle/m3undle/internal/database/migrations"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/pkg/m3u"
)

func setupTest(t *testing.T) (*repository.Repositories, *models.Provider, *models.Profile, *models.FetchRun) {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	migrator := migrations.NewMigrator(db, nil)
	migrator.RegisterAll(migrations.AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	repos := repository.New(db)

	provider := &models.Provider{Name: "primary", PlaylistURL: "http://upstream.example/p.m3u"}
	require.NoError(t, repos.Providers.Create(ctx, provider))

	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, repos.Profiles.Create(ctx, profile))

	run := &models.FetchRun{ProviderID: provider.ID}
	require.NoError(t, repos.FetchRuns.Create(ctx, run))

	return repos, provider, profile, run
}

func entry(tvgID, name, group, url string) m3u.Entry {
	return m3u.Entry{Duration: -1, TvgID: tvgID, Title: name, GroupTitle: group, URL: url}
}

func sampleEntries() []m3u.Entry {
	return []m3u.Entry{
		entry("cnn.us", "CNN", "News", "http://up.example/live/cnn.ts"),
		entry("", "ESPN", "Sports", "http://up.example/live/espn.ts"),
		entry("", "Some Movie", "Cinema", "http://up.example/movie/1234.mp4"),
	}
}

func reconcileInput(provider *models.Provider, profile *models.Profile, run *models.FetchRun, entries []m3u.Entry) Input {
	return Input{
		ProviderID: provider.ID,
		ProfileID:  profile.ID,
		FetchRunID: run.ID,
		Entries:    entries,
		Now:        time.Now(),
	}
}

func TestReconcile_FirstFetch(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()

	result, err := New(repos, nil).Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	assert.Equal(t, 3, result.GroupsSeen)
	assert.Equal(t, 3, result.FiltersCreated)
	assert.Equal(t, 3, result.ChannelsUpserted)
	assert.Zero(t, result.GroupsDeactivated)
	assert.Zero(t, result.ChannelsDeactivated)

	groups, err := repos.ProviderGroups.GetByProvider(ctx, provider.ID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.True(t, g.Active)
		assert.Equal(t, 1, g.ChannelCount)
	}

	cinema, err := repos.ProviderGroups.GetByProviderAndName(ctx, provider.ID, "Cinema")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeVOD, cinema.ContentType)

	// Every group got a pending all-mode filter under the profile.
	filters, err := repos.GroupFilters.GetByProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, filters, 3)
	for _, f := range filters {
		assert.Equal(t, models.DecisionPending, f.Decision)
		assert.Equal(t, models.ChannelModeAll, f.ChannelMode)
	}

	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, channels, 3)
	for _, c := range channels {
		assert.Len(t, c.StableKey, 16)
		assert.Equal(t, run.ID, c.LastFetchRunID)
		assert.False(t, c.GroupID.IsZero())
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()
	rec := New(repos, nil)

	_, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	before, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)

	result, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	assert.Zero(t, result.FiltersCreated)
	assert.Zero(t, result.GroupsDeactivated)
	assert.Zero(t, result.ChannelsDeactivated)
	assert.Equal(t, 3, result.ChannelsUpserted)

	after, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	ids := make(map[models.ULID]bool)
	for _, c := range before {
		ids[c.ID] = true
	}
	for _, c := range after {
		assert.True(t, ids[c.ID], "row ids must survive re-reconcile")
	}
}

func TestReconcile_NormalizesPort80StreamURL(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()
	rec := New(repos, nil)

	_, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, []m3u.Entry{
		entry("cnn.us", "CNN", "News", "https://up.example:80/live/cnn.ts"),
	}))
	require.NoError(t, err)

	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "http://up.example:80/live/cnn.ts", channels[0].StreamURL)

	// The identity is derived from the normalized URL, so a later fetch
	// already carrying the http form maps onto the same row.
	_, err = rec.Reconcile(ctx, reconcileInput(provider, profile, run, []m3u.Entry{
		entry("cnn.us", "CNN", "News", "http://up.example:80/live/cnn.ts"),
	}))
	require.NoError(t, err)

	after, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, channels[0].ID, after[0].ID)
	assert.Equal(t, channels[0].StableKey, after[0].StableKey)
}

func TestReconcile_DisappearanceDeactivates(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()
	rec := New(repos, nil)

	_, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	// Second fetch drops Sports and Cinema entirely.
	result, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, []m3u.Entry{
		entry("cnn.us", "CNN", "News", "http://up.example/live/cnn.ts"),
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.GroupsDeactivated)
	assert.Equal(t, int64(2), result.ChannelsDeactivated)

	sports, err := repos.ProviderGroups.GetByProviderAndName(ctx, provider.ID, "Sports")
	require.NoError(t, err)
	assert.False(t, sports.Active)
	assert.Zero(t, sports.ChannelCount)

	// Rows survive deactivation; nothing is deleted.
	var total int64
	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
	total, err = repos.ProviderChannels.CountActive(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestReconcile_ReappearanceKeepsIdentity(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()
	rec := New(repos, nil)

	_, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	original, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)

	_, err = rec.Reconcile(ctx, reconcileInput(provider, profile, run, nil))
	require.NoError(t, err)

	_, err = rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	restored, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, restored, len(original))

	keys := make(map[string]models.ULID)
	for _, c := range original {
		keys[c.StableKey] = c.ID
	}
	for _, c := range restored {
		assert.Equal(t, keys[c.StableKey], c.ID, "reappearing channel keeps its row")
	}
}

func TestReconcile_ExcludedGroupSkipsAndDeactivates(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()
	rec := New(repos, nil)

	_, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	sports, err := repos.ProviderGroups.GetByProviderAndName(ctx, provider.ID, "Sports")
	require.NoError(t, err)
	filter, err := repos.GroupFilters.GetByProfileAndGroup(ctx, profile.ID, sports.ID)
	require.NoError(t, err)
	filter.Decision = models.DecisionExclude
	require.NoError(t, repos.GroupFilters.Update(ctx, filter))

	result, err := rec.Reconcile(ctx, reconcileInput(provider, profile, run, sampleEntries()))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChannelsExcluded)
	assert.Equal(t, 2, result.ChannelsUpserted)
	assert.Equal(t, int64(1), result.ChannelsDeactivated, "excluded channel is swept inactive")

	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	for _, c := range channels {
		assert.NotEqual(t, "ESPN", c.DisplayName)
	}
}

func TestReconcile_DuplicateEntriesSurvive(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()

	dup := entry("cnn.us", "CNN", "News", "http://up.example/live/cnn.ts")
	result, err := New(repos, nil).Reconcile(ctx, reconcileInput(provider, profile, run, []m3u.Entry{dup, dup, dup}))
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChannelsUpserted)

	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, channels, 3)

	keys := make(map[string]bool)
	for _, c := range channels {
		keys[c.StableKey] = true
	}
	assert.Len(t, keys, 3, "duplicate lines must map to distinct keys")
}

func TestReconcile_SkipsEntriesWithoutURL(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()

	entries := []m3u.Entry{
		entry("", "Broken", "News", ""),
		entry("", "OK", "News", "http://up.example/live/ok.ts"),
	}
	result, err := New(repos, nil).Reconcile(ctx, reconcileInput(provider, profile, run, entries))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChannelsSkipped)
	assert.Equal(t, 1, result.ChannelsUpserted)
}

func TestReconcile_UnnamedChannelFallback(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()

	entries := []m3u.Entry{
		{Duration: -1, GroupTitle: "News", URL: "http://up.example/live/mystery.ts"},
	}
	_, err := New(repos, nil).Reconcile(ctx, reconcileInput(provider, profile, run, entries))
	require.NoError(t, err)

	channels, err := repos.ProviderChannels.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, UnnamedChannel, channels[0].DisplayName)
}

func TestReconcile_MixedGroupLabel(t *testing.T) {
	repos, provider, profile, run := setupTest(t)
	ctx := context.Background()

	entries := []m3u.Entry{
		entry("", "Channel", "Stuff", "http://up.example/live/a.ts"),
		entry("", "Movie", "Stuff", "http://up.example/movie/b.mp4"),
	}
	_, err := New(repos, nil).Reconcile(ctx, reconcileInput(provider, profile, run, entries))
	require.NoError(t, err)

	group, err := repos.ProviderGroups.GetByProviderAndName(ctx, provider.ID, "Stuff")
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeMixed, group.ContentType)
	assert.Equal(t, 2, group.ChannelCount)
}

func TestStableIdentity_TvgIDSharedAcrossGroups(t *testing.T) {
	a := StableIdentity("cnn.us", "CNN", "http://up.example/live/cnn.ts", "News")
	b := StableIdentity("cnn.us", "CNN", "http://up.example/live/cnn.ts", "US News")
	assert.NotEqual(t, StableKey(a), StableKey(b),
		"same tvg-id in different groups must stay distinct")
}

func TestStableKey_Format(t *testing.T) {
	key := StableKey("some-identity")
	assert.Len(t, key, 16)
	assert.NotContains(t, key, "+")
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, "=")
	assert.Equal(t, key, StableKey("some-identity"), "derivation is deterministic")
}

func TestResolveDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		entry m3u.Entry
		want  string
	}{
		{"label wins", m3u.Entry{Title: "CNN", TvgName: "cnn-alt"}, "CNN"},
		{"tvg-name fallback", m3u.Entry{Title: "  ", TvgName: "cnn-alt"}, "cnn-alt"},
		{"placeholder", m3u.Entry{Title: "", TvgName: " "}, UnnamedChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDisplayName(&tt.entry))
		})
	}
}
