package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over one *gorm.DB handle. The
// reconciler runs its whole catalog write through Transaction so a partial
// reconcile never becomes visible.
type Repositories struct {
	Providers        ProviderRepository
	Profiles         ProfileRepository
	ProviderGroups   ProviderGroupRepository
	ProviderChannels ProviderChannelRepository
	GroupFilters     GroupFilterRepository
	FetchRuns        FetchRunRepository
	Snapshots        SnapshotRepository

	db *gorm.DB
}

// New creates a Repositories bundle over the given database handle.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Providers:        NewProviderRepository(db),
		Profiles:         NewProfileRepository(db),
		ProviderGroups:   NewProviderGroupRepository(db),
		ProviderChannels: NewProviderChannelRepository(db),
		GroupFilters:     NewGroupFilterRepository(db),
		FetchRuns:        NewFetchRunRepository(db),
		Snapshots:        NewSnapshotRepository(db),
		db:               db,
	}
}

// Transaction runs fn with a Repositories bundle bound to a single database
// transaction. Returning an error rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
