package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/m3undle/m3undle/internal/database/migrations"
	"github.com/m3undle/m3undle/internal/events"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

func setupServiceTest(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	migrator := migrations.NewMigrator(db, nil)
	migrator.RegisterAll(migrations.AllMigrations())
	require.NoError(t, migrator.Up(context.Background()))

	return repository.New(db)
}

func TestProviderService_Create_FirstProviderBootstrapsProfile(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProviderService(repos, nil, "m3undle")
	ctx := context.Background()

	provider := &models.Provider{Name: "primary", PlaylistURL: "http://up.example/p.m3u"}
	require.NoError(t, svc.Create(ctx, provider))

	profile, err := repos.Profiles.GetByOutputName(ctx, "m3undle")
	require.NoError(t, err)
	require.NotNil(t, profile, "first provider must get a default profile")
	assert.Equal(t, "Default", profile.Name)

	links, err := repos.Profiles.GetLinksByProvider(ctx, provider.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, profile.ID, links[0].ProfileID)
	assert.Equal(t, 0, links[0].Priority)

	// Creation never activates.
	created, err := repos.Providers.GetByID(ctx, provider.ID)
	require.NoError(t, err)
	assert.False(t, created.IsActive)
}

func TestProviderService_Create_SecondProviderNoBootstrap(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProviderService(repos, nil, "m3undle")
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, &models.Provider{Name: "first", PlaylistURL: "http://a.example/p.m3u"}))
	second := &models.Provider{Name: "second", PlaylistURL: "http://b.example/p.m3u"}
	require.NoError(t, svc.Create(ctx, second))

	links, err := repos.Profiles.GetLinksByProvider(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, links, "only the first provider is auto-linked")
}

func TestProviderService_Create_DuplicateName(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProviderService(repos, nil, "m3undle")
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, &models.Provider{Name: "primary", PlaylistURL: "http://a.example/p.m3u"}))
	err := svc.Create(ctx, &models.Provider{Name: "primary", PlaylistURL: "http://b.example/p.m3u"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestProviderService_Activate(t *testing.T) {
	repos := setupServiceTest(t)
	bus := events.NewBus(0, nil)
	svc := NewProviderService(repos, bus, "m3undle")
	ctx := context.Background()

	sub := bus.Subscribe("test")
	defer bus.Unsubscribe("test")

	a := &models.Provider{Name: "a", PlaylistURL: "http://a.example/p.m3u"}
	b := &models.Provider{Name: "b", PlaylistURL: "http://b.example/p.m3u"}
	require.NoError(t, svc.Create(ctx, a))
	require.NoError(t, svc.Create(ctx, b))

	require.NoError(t, svc.Activate(ctx, a.ID))
	require.NoError(t, svc.Activate(ctx, b.ID))

	active, err := repos.Providers.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)

	event := <-sub.C
	assert.Equal(t, events.TypeProviderActivated, event.Type)
	assert.Equal(t, a.ID.String(), event.Data["provider_id"])
}

func TestProviderService_Activate_Unknown(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProviderService(repos, nil, "m3undle")

	err := svc.Activate(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProviderService_Delete(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProviderService(repos, nil, "m3undle")
	ctx := context.Background()

	provider := &models.Provider{Name: "primary", PlaylistURL: "http://up.example/p.m3u"}
	require.NoError(t, svc.Create(ctx, provider))
	require.NoError(t, svc.Delete(ctx, provider.ID))

	_, err := svc.GetByID(ctx, provider.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The auto-created profile survives provider deletion.
	profile, err := repos.Profiles.GetByOutputName(ctx, "m3undle")
	require.NoError(t, err)
	assert.NotNil(t, profile)
}

func TestProfileService_Create_DuplicateOutputName(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProfileService(repos)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, &models.Profile{Name: "One", OutputName: "tv"}))
	err := svc.Create(ctx, &models.Profile{Name: "Two", OutputName: "tv"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestProfileService_Link_UnknownProvider(t *testing.T) {
	repos := setupServiceTest(t)
	svc := NewProfileService(repos)
	ctx := context.Background()

	profile := &models.Profile{Name: "One", OutputName: "tv"}
	require.NoError(t, svc.Create(ctx, profile))

	err := svc.Link(ctx, &models.ProfileProvider{
		ProfileID:  profile.ID,
		ProviderID: models.NewULID(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
