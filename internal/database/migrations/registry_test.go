package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/m3undle/m3undle/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func TestAllMigrations_ReturnsExpectedCount(t *testing.T) {
	migrations := AllMigrations()

	// Migrations:
	// 001: Create all database tables (schema)
	// 002: Add partial unique indexes (single-active provider, channel key)
	assert.Len(t, migrations, 2)
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate version: %s", m.Version)
		versions[m.Version] = true
	}
}

func TestAllMigrations_VersionsAreOrdered(t *testing.T) {
	migrations := AllMigrations()

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version,
			"migrations should be in ascending version order")
	}
}

func TestMigrator_Up_AllMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	// Verify all tables exist
	assert.True(t, db.Migrator().HasTable("providers"))
	assert.True(t, db.Migrator().HasTable("profiles"))
	assert.True(t, db.Migrator().HasTable("profile_providers"))
	assert.True(t, db.Migrator().HasTable("provider_groups"))
	assert.True(t, db.Migrator().HasTable("provider_channels"))
	assert.True(t, db.Migrator().HasTable("profile_group_filters"))
	assert.True(t, db.Migrator().HasTable("profile_group_channel_filters"))
	assert.True(t, db.Migrator().HasTable("fetch_runs"))
	assert.True(t, db.Migrator().HasTable("snapshots"))
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	// Run migrations twice - should not error
	err := migrator.Up(ctx)
	require.NoError(t, err)

	err = migrator.Up(ctx)
	require.NoError(t, err)
}

func TestMigrator_Status(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	require.NoError(t, migrator.Up(ctx))

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotNil(t, s.AppliedAt)
	}
}

func TestMigrator_Down_RollsBackSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	// Roll back 002 (indexes) then 001 (schema)
	require.NoError(t, migrator.Down(ctx))
	require.NoError(t, migrator.Down(ctx))

	assert.False(t, db.Migrator().HasTable("providers"))
	assert.False(t, db.Migrator().HasTable("snapshots"))
}

func TestMigration_SingleActiveProviderIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	p1 := &models.Provider{Name: "p1", PlaylistURL: "http://x/p.m3u", IsActive: true}
	require.NoError(t, db.Create(p1).Error)

	p2 := &models.Provider{Name: "p2", PlaylistURL: "http://x/p2.m3u", IsActive: true}
	err := db.Create(p2).Error
	assert.Error(t, err, "second active provider must violate the partial unique index")

	// Inactive providers are unconstrained.
	p3 := &models.Provider{Name: "p3", PlaylistURL: "http://x/p3.m3u"}
	assert.NoError(t, db.Create(p3).Error)
}

func TestMigration_StableKeyPartialIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	provider := &models.Provider{Name: "p1", PlaylistURL: "http://x/p.m3u"}
	require.NoError(t, db.Create(provider).Error)

	now := models.Now()
	base := models.ProviderChannel{
		ProviderID:  provider.ID,
		DisplayName: "CNN",
		StreamURL:   "http://x/s/1",
		ContentType: models.ContentTypeLive,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}

	c1 := base
	c1.StableKey = "abcdef0123456789"
	require.NoError(t, db.Create(&c1).Error)

	c2 := base
	c2.StableKey = "abcdef0123456789"
	assert.Error(t, db.Create(&c2).Error, "duplicate stable key per provider must conflict")

	// Empty keys do not participate in the unique index.
	c3 := base
	require.NoError(t, db.Create(&c3).Error)
	c4 := base
	assert.NoError(t, db.Create(&c4).Error)
}
