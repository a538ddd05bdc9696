// Package migrations provides database migration management for m3undle.
package migrations

import (
	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002PartialIndexes(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			// AutoMigrate all models in dependency order
			return tx.AutoMigrate(
				// Catalog roots
				&models.Provider{},
				&models.Profile{},
				&models.ProfileProvider{},

				// Reconciler-owned rows
				&models.ProviderGroup{},
				&models.ProviderChannel{},

				// Operator filter state
				&models.ProfileGroupFilter{},
				&models.ProfileGroupChannelFilter{},

				// Refresh bookkeeping
				&models.FetchRun{},
				&models.Snapshot{},
			)
		},
		Down: func(tx *gorm.DB) error {
			// Drop tables in reverse dependency order
			tables := []string{
				"snapshots",
				"fetch_runs",
				"profile_group_channel_filters",
				"profile_group_filters",
				"provider_channels",
				"provider_groups",
				"profile_providers",
				"profiles",
				"providers",
			}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002PartialIndexes adds the partial unique indexes GORM tags cannot
// express: at most one active provider, and per-provider channel key
// uniqueness only when the key is non-empty.
//
// MySQL has no partial indexes; there the single-active invariant rests on
// the two-step clear-then-set activation write, which is the write pattern
// used on every engine anyway.
func migration002PartialIndexes() Migration {
	return Migration{
		Version:     "002",
		Description: "Add partial unique indexes",
		Up: func(tx *gorm.DB) error {
			if tx.Dialector.Name() == "mysql" {
				return nil
			}
			if err := tx.Exec(
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_single_active
				 ON providers (is_active) WHERE is_active`,
			).Error; err != nil {
				return err
			}
			return tx.Exec(
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_channels_stable_key
				 ON provider_channels (provider_id, stable_key)
				 WHERE stable_key IS NOT NULL AND stable_key != ''`,
			).Error
		},
		Down: func(tx *gorm.DB) error {
			if tx.Dialector.Name() == "mysql" {
				return nil
			}
			if err := tx.Exec(`DROP INDEX IF EXISTS idx_provider_channels_stable_key`).Error; err != nil {
				return err
			}
			return tx.Exec(`DROP INDEX IF EXISTS idx_providers_single_active`).Error
		},
	}
}
