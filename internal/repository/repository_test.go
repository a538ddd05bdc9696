package repository

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
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	migrator := migrations.NewMigrator(db, nil)
	migrator.RegisterAll(migrations.AllMigrations())
	require.NoError(t, migrator.Up(context.Background()))

	return db
}

func createTestProvider(t *testing.T, db *gorm.DB, name string) *models.Provider {
	t.Helper()

	provider := &models.Provider{
		Name:        name,
		PlaylistURL: "http://upstream.example/" + name + ".m3u",
	}
	require.NoError(t, NewProviderRepository(db).Create(context.Background(), provider))
	return provider
}

func createTestChannel(t *testing.T, db *gorm.DB, providerID models.ULID, key, name string) *models.ProviderChannel {
	t.Helper()

	now := models.Now()
	channel := &models.ProviderChannel{
		ProviderID:  providerID,
		StableKey:   key,
		DisplayName: name,
		StreamURL:   "http://upstream.example/stream/" + key,
		ContentType: models.ContentTypeLive,
		FirstSeenAt: now,
		LastSeenAt:  now,
		Active:      true,
	}
	require.NoError(t, NewProviderChannelRepository(db).Upsert(context.Background(), channel))
	return channel
}

func TestProviderRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	require.False(t, provider.ID.IsZero())

	got, err := repo.GetByID(ctx, provider.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "primary", got.Name)
	assert.True(t, got.IsEnabled())

	got, err = repo.GetByName(ctx, "primary")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Absent rows come back (nil, nil).
	got, err = repo.GetByID(ctx, models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)

	provider.GuideURL = "http://upstream.example/guide.xml"
	require.NoError(t, repo.Update(ctx, provider))

	got, err = repo.GetByID(ctx, provider.ID)
	require.NoError(t, err)
	assert.True(t, got.HasGuide())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProviderRepository_Create_DuplicateName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepository(db)

	createTestProvider(t, db, "primary")

	dup := &models.Provider{Name: "primary", PlaylistURL: "http://other.example/p.m3u"}
	assert.Error(t, repo.Create(context.Background(), dup))
}

func TestProviderRepository_Activate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepository(db)
	ctx := context.Background()

	p1 := createTestProvider(t, db, "one")
	p2 := createTestProvider(t, db, "two")

	require.NoError(t, repo.Activate(ctx, p1.ID))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p1.ID, active.ID)

	// Switching demotes the previous active in the same call.
	require.NoError(t, repo.Activate(ctx, p2.ID))

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p2.ID, active.ID)

	old, err := repo.GetByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	// Activating an unknown provider fails without demoting anyone.
	err = repo.Activate(ctx, models.NewULID())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p2.ID, active.ID)
}

func TestProviderRepository_GetActive_NoneActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepository(db)

	createTestProvider(t, db, "idle")

	active, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestProviderRepository_Delete_SweepsDependents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	provider := createTestProvider(t, db, "doomed")
	channel := createTestChannel(t, db, provider.ID, "aaaabbbbccccdddd", "CNN")

	groupRepo := NewProviderGroupRepository(db)
	now := models.Now()
	group := &models.ProviderGroup{
		ProviderID:  provider.ID,
		Name:        "News",
		FirstSeenAt: now,
		LastSeenAt:  now,
		Active:      true,
		ContentType: models.ContentTypeLive,
	}
	require.NoError(t, groupRepo.Create(ctx, group))

	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, NewProfileRepository(db).Create(ctx, profile))

	filterRepo := NewGroupFilterRepository(db)
	filter := &models.ProfileGroupFilter{ProfileID: profile.ID, ProviderGroupID: group.ID}
	require.NoError(t, filterRepo.Create(ctx, filter))
	require.NoError(t, filterRepo.CreateChannelFilter(ctx, &models.ProfileGroupChannelFilter{
		FilterID:          filter.ID,
		ProviderChannelID: channel.ID,
	}))

	runRepo := NewFetchRunRepository(db)
	require.NoError(t, runRepo.Create(ctx, &models.FetchRun{ProviderID: provider.ID}))

	require.NoError(t, NewProviderRepository(db).Delete(ctx, provider.ID))

	for table, want := range map[string]int64{
		"providers":                     0,
		"provider_groups":               0,
		"provider_channels":             0,
		"profile_group_filters":         0,
		"profile_group_channel_filters": 0,
		"fetch_runs":                    0,
		"profiles":                      1, // profiles survive provider deletion
	} {
		var count int64
		require.NoError(t, db.Table(table).Count(&count).Error)
		assert.Equal(t, want, count, "table %s", table)
	}
}

func TestProfileRepository_GetBestProfileForProvider(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")

	low := &models.Profile{Name: "Low", OutputName: "low"}
	require.NoError(t, repo.Create(ctx, low))
	high := &models.Profile{Name: "High", OutputName: "high"}
	require.NoError(t, repo.Create(ctx, high))
	disabled := &models.Profile{Name: "Off", OutputName: "off", Enabled: models.BoolPtr(false)}
	require.NoError(t, repo.Create(ctx, disabled))

	require.NoError(t, repo.CreateLink(ctx, &models.ProfileProvider{
		ProfileID: disabled.ID, ProviderID: provider.ID, Priority: 0,
	}))
	require.NoError(t, repo.CreateLink(ctx, &models.ProfileProvider{
		ProfileID: low.ID, ProviderID: provider.ID, Priority: 1,
	}))
	require.NoError(t, repo.CreateLink(ctx, &models.ProfileProvider{
		ProfileID: high.ID, ProviderID: provider.ID, Priority: 2,
	}))

	// Disabled profile is skipped even though its link has the lowest priority.
	best, err := repo.GetBestProfileForProvider(ctx, provider.ID)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, low.ID, best.ID)

	// No links at all yields (nil, nil).
	other := createTestProvider(t, db, "orphan")
	best, err = repo.GetBestProfileForProvider(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestProfileRepository_GetByOutputName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &models.Profile{Name: "Living Room", OutputName: "living-room"}
	require.NoError(t, repo.Create(ctx, profile))

	got, err := repo.GetByOutputName(ctx, "living-room")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, profile.ID, got.ID)

	got, err = repo.GetByOutputName(ctx, "bedroom")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProviderGroupRepository_DeactivateMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderGroupRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	now := models.Now()
	for _, name := range []string{"News", "Sports", "Movies"} {
		require.NoError(t, repo.Create(ctx, &models.ProviderGroup{
			ProviderID:   provider.ID,
			Name:         name,
			FirstSeenAt:  now,
			LastSeenAt:   now,
			Active:       true,
			ChannelCount: 5,
			ContentType:  models.ContentTypeLive,
		}))
	}

	affected, err := repo.DeactivateMissing(ctx, provider.ID, []string{"News"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	news, err := repo.GetByProviderAndName(ctx, provider.ID, "News")
	require.NoError(t, err)
	assert.True(t, news.Active)
	assert.Equal(t, 5, news.ChannelCount)

	sports, err := repo.GetByProviderAndName(ctx, provider.ID, "Sports")
	require.NoError(t, err)
	assert.False(t, sports.Active)
	assert.Equal(t, 0, sports.ChannelCount)

	// An empty fetch deactivates everything left.
	affected, err = repo.DeactivateMissing(ctx, provider.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestProviderChannelRepository_Upsert_PreservesIdentity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderChannelRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	original := createTestChannel(t, db, provider.ID, "aaaabbbbccccdddd", "CNN")

	later := models.Now()
	update := &models.ProviderChannel{
		ProviderID:  provider.ID,
		StableKey:   "aaaabbbbccccdddd",
		DisplayName: "CNN HD",
		TvgID:       "cnn.us",
		StreamURL:   "http://upstream.example/stream/new",
		ContentType: models.ContentTypeLive,
		FirstSeenAt: later,
		LastSeenAt:  later,
		Active:      true,
	}
	require.NoError(t, repo.Upsert(ctx, update))

	got, err := repo.GetByStableKey(ctx, provider.ID, "aaaabbbbccccdddd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.ID, got.ID, "upsert must keep the original row id")
	assert.Equal(t, "CNN HD", got.DisplayName)
	assert.Equal(t, "cnn.us", got.TvgID)
	assert.Equal(t, "http://upstream.example/stream/new", got.StreamURL)
	assert.WithinDuration(t, original.FirstSeenAt, got.FirstSeenAt, 0,
		"upsert must keep first_seen_at")

	var count int64
	require.NoError(t, db.Model(&models.ProviderChannel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProviderChannelRepository_Upsert_ReactivatesReturningChannel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderChannelRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	channel := createTestChannel(t, db, provider.ID, "aaaabbbbccccdddd", "CNN")

	_, err := repo.DeactivateMissing(ctx, provider.ID, nil)
	require.NoError(t, err)

	got, err := repo.GetByStableKey(ctx, provider.ID, channel.StableKey)
	require.NoError(t, err)
	require.False(t, got.Active)

	createTestChannel(t, db, provider.ID, "aaaabbbbccccdddd", "CNN")

	got, err = repo.GetByStableKey(ctx, provider.ID, channel.StableKey)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, channel.ID, got.ID)
}

func TestProviderChannelRepository_GetActiveByProvider_ContentTypes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderChannelRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	now := models.Now()
	for key, ct := range map[string]models.ContentType{
		"live000000000001": models.ContentTypeLive,
		"vod0000000000001": models.ContentTypeVOD,
		"series0000000001": models.ContentTypeSeries,
	} {
		require.NoError(t, repo.Upsert(ctx, &models.ProviderChannel{
			ProviderID:  provider.ID,
			StableKey:   key,
			DisplayName: key,
			StreamURL:   "http://upstream.example/" + key,
			ContentType: ct,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Active:      true,
		}))
	}

	channels, err := repo.GetActiveByProvider(ctx, provider.ID, false, false)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
	assert.Equal(t, models.ContentTypeLive, channels[0].ContentType)

	channels, err = repo.GetActiveByProvider(ctx, provider.ID, true, true)
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	count, err := repo.CountActive(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGroupFilterRepository_BackfillHelpers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupFilterRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, NewProfileRepository(db).Create(ctx, profile))

	groupRepo := NewProviderGroupRepository(db)
	now := models.Now()
	g1 := &models.ProviderGroup{ProviderID: provider.ID, Name: "News", FirstSeenAt: now, LastSeenAt: now, Active: true, ContentType: models.ContentTypeLive}
	require.NoError(t, groupRepo.Create(ctx, g1))
	g2 := &models.ProviderGroup{ProviderID: provider.ID, Name: "Sports", FirstSeenAt: now, LastSeenAt: now, Active: true, ContentType: models.ContentTypeLive}
	require.NoError(t, groupRepo.Create(ctx, g2))

	require.NoError(t, repo.Create(ctx, &models.ProfileGroupFilter{
		ProfileID:       profile.ID,
		ProviderGroupID: g1.ID,
		Decision:        models.DecisionInclude,
	}))

	have, err := repo.GroupIDsWithFilter(ctx, profile.ID)
	require.NoError(t, err)
	assert.True(t, have[g1.ID])
	assert.False(t, have[g2.ID])

	// New rows default to pending.
	require.NoError(t, repo.Create(ctx, &models.ProfileGroupFilter{
		ProfileID:       profile.ID,
		ProviderGroupID: g2.ID,
	}))

	pending, err := repo.CountByDecision(ctx, profile.ID, models.DecisionPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	included, err := repo.CountByDecision(ctx, profile.ID, models.DecisionInclude)
	require.NoError(t, err)
	assert.Equal(t, int64(1), included)

	filters, err := repo.GetByProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	for _, f := range filters {
		require.NotNil(t, f.ProviderGroup, "groups must be preloaded")
	}
}

func TestGroupFilterRepository_ChannelOverrides(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupFilterRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")
	channel := createTestChannel(t, db, provider.ID, "aaaabbbbccccdddd", "CNN")

	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, NewProfileRepository(db).Create(ctx, profile))

	now := models.Now()
	group := &models.ProviderGroup{ProviderID: provider.ID, Name: "News", FirstSeenAt: now, LastSeenAt: now, Active: true, ContentType: models.ContentTypeLive}
	require.NoError(t, NewProviderGroupRepository(db).Create(ctx, group))

	filter := &models.ProfileGroupFilter{
		ProfileID:       profile.ID,
		ProviderGroupID: group.ID,
		Decision:        models.DecisionInclude,
		ChannelMode:     models.ChannelModeSelect,
	}
	require.NoError(t, repo.Create(ctx, filter))

	number := 101
	override := &models.ProfileGroupChannelFilter{
		FilterID:          filter.ID,
		ProviderChannelID: channel.ID,
		ChannelNumber:     &number,
	}
	require.NoError(t, repo.CreateChannelFilter(ctx, override))

	overrides, err := repo.GetChannelFilters(ctx, filter.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	require.NotNil(t, overrides[0].ChannelNumber)
	assert.Equal(t, 101, *overrides[0].ChannelNumber)

	override.OutputGroupName = "US News"
	require.NoError(t, repo.UpdateChannelFilter(ctx, override))

	require.NoError(t, repo.DeleteChannelFilter(ctx, override.ID))
	overrides, err = repo.GetChannelFilters(ctx, filter.ID)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestFetchRunRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFetchRunRepository(db)
	ctx := context.Background()

	provider := createTestProvider(t, db, "primary")

	run := &models.FetchRun{ProviderID: provider.ID, Type: models.RunTypeSnapshot}
	require.NoError(t, repo.Create(ctx, run))
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	run.MarkOK(1024, 2048, 42)
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusOK, got.Status)
	assert.Equal(t, int64(1024), got.PlaylistBytes)
	assert.Equal(t, 42, got.ChannelCountSeen)
	require.NotNil(t, got.FinishedAt)

	latest, err := repo.GetLatestByProvider(ctx, provider.ID, models.RunTypeSnapshot)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)

	latest, err = repo.GetLatestByProvider(ctx, provider.ID, models.RunTypePreview)
	require.NoError(t, err)
	assert.Nil(t, latest)

	runs, err := repo.List(ctx, &provider.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSnapshotRepository_Promote(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, NewProfileRepository(db).Create(ctx, profile))

	s1 := &models.Snapshot{ProfileID: profile.ID, ChannelIndexPath: "/s1/channel_index.json", GuidePath: "/s1/guide.xml"}
	require.NoError(t, repo.Create(ctx, s1))
	assert.Equal(t, models.SnapshotStaged, s1.Status)

	require.NoError(t, repo.Promote(ctx, profile.ID, s1.ID))

	active, err := repo.GetActiveByProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, s1.ID, active.ID)

	// Promoting a newer snapshot archives the previous active.
	s2 := &models.Snapshot{ProfileID: profile.ID, ChannelIndexPath: "/s2/channel_index.json", GuidePath: "/s2/guide.xml"}
	require.NoError(t, repo.Create(ctx, s2))
	require.NoError(t, repo.Promote(ctx, profile.ID, s2.ID))

	active, err = repo.GetActiveByProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, active.ID)

	old, err := repo.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotArchived, old.Status)

	var activeCount int64
	require.NoError(t, db.Model(&models.Snapshot{}).
		Where("profile_id = ? AND status = ?", profile.ID, models.SnapshotActive).
		Count(&activeCount).Error)
	assert.Equal(t, int64(1), activeCount)

	// Promoting an unknown snapshot rolls the archive back.
	err = repo.Promote(ctx, profile.ID, models.NewULID())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	active, err = repo.GetActiveByProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, s2.ID, active.ID)
}

func TestSnapshotRepository_ListByProfile_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	profile := &models.Profile{Name: "Default", OutputName: "default"}
	require.NoError(t, NewProfileRepository(db).Create(ctx, profile))

	var ids []models.ULID
	for i := 0; i < 3; i++ {
		s := &models.Snapshot{ProfileID: profile.ID, ChannelIndexPath: "/x/channel_index.json", GuidePath: "/x/guide.xml"}
		require.NoError(t, repo.Create(ctx, s))
		ids = append(ids, s.ID)
		// ULID ordering is only guaranteed across distinct timestamps.
		time.Sleep(2 * time.Millisecond)
	}

	snapshots, err := repo.ListByProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, ids[2], snapshots[0].ID)
	assert.Equal(t, ids[0], snapshots[2].ID)
}

func TestRepositories_Transaction_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	repos := New(db)
	ctx := context.Background()

	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if err := tx.Providers.Create(ctx, &models.Provider{
			Name:        "doomed",
			PlaylistURL: "http://upstream.example/p.m3u",
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	count, err := repos.Providers.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "rolled-back create must not persist")
}
