package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// groupFilterRepository implements GroupFilterRepository using GORM.
type groupFilterRepository struct {
	db *gorm.DB
}

// NewGroupFilterRepository creates a new GroupFilterRepository.
func NewGroupFilterRepository(db *gorm.DB) GroupFilterRepository {
	return &groupFilterRepository{db: db}
}

var _ GroupFilterRepository = (*groupFilterRepository)(nil)

// Create creates a new group filter.
func (r *groupFilterRepository) Create(ctx context.Context, filter *models.ProfileGroupFilter) error {
	if err := filter.Validate(); err != nil {
		return fmt.Errorf("validating group filter: %w", err)
	}
	return r.db.WithContext(ctx).Create(filter).Error
}

// GetByID retrieves a filter by ID.
func (r *groupFilterRepository) GetByID(ctx context.Context, id models.ULID) (*models.ProfileGroupFilter, error) {
	var filter models.ProfileGroupFilter
	if err := r.db.WithContext(ctx).First(&filter, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &filter, nil
}

// GetByProfile retrieves all filters of a profile with their groups preloaded,
// ordered by the raw group name.
func (r *groupFilterRepository) GetByProfile(ctx context.Context, profileID models.ULID) ([]*models.ProfileGroupFilter, error) {
	var filters []*models.ProfileGroupFilter
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Preload("ProviderGroup").
		Find(&filters).Error; err != nil {
		return nil, err
	}
	return filters, nil
}

// GetByProfileAndGroup retrieves the filter for one provider group.
func (r *groupFilterRepository) GetByProfileAndGroup(ctx context.Context, profileID, groupID models.ULID) (*models.ProfileGroupFilter, error) {
	var filter models.ProfileGroupFilter
	if err := r.db.WithContext(ctx).
		First(&filter, "profile_id = ? AND provider_group_id = ?", profileID, groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &filter, nil
}

// Update updates an existing filter.
func (r *groupFilterRepository) Update(ctx context.Context, filter *models.ProfileGroupFilter) error {
	if err := filter.Validate(); err != nil {
		return fmt.Errorf("validating group filter: %w", err)
	}
	return r.db.WithContext(ctx).Save(filter).Error
}

// GroupIDsWithFilter returns the set of provider-group IDs that already have
// a filter row under the profile. The reconciler uses this to backfill only
// genuinely new groups.
func (r *groupFilterRepository) GroupIDsWithFilter(ctx context.Context, profileID models.ULID) (map[models.ULID]bool, error) {
	var ids []models.ULID
	if err := r.db.WithContext(ctx).Model(&models.ProfileGroupFilter{}).
		Where("profile_id = ?", profileID).
		Pluck("provider_group_id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[models.ULID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// CountByDecision returns how many filters of the profile carry the decision.
func (r *groupFilterRepository) CountByDecision(ctx context.Context, profileID models.ULID, decision models.FilterDecision) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProfileGroupFilter{}).
		Where("profile_id = ? AND decision = ?", profileID, decision).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateChannelFilter creates a per-channel override.
func (r *groupFilterRepository) CreateChannelFilter(ctx context.Context, override *models.ProfileGroupChannelFilter) error {
	if err := override.Validate(); err != nil {
		return fmt.Errorf("validating channel override: %w", err)
	}
	return r.db.WithContext(ctx).Create(override).Error
}

// GetChannelFilters retrieves the overrides under a filter.
func (r *groupFilterRepository) GetChannelFilters(ctx context.Context, filterID models.ULID) ([]*models.ProfileGroupChannelFilter, error) {
	var overrides []*models.ProfileGroupChannelFilter
	if err := r.db.WithContext(ctx).
		Where("filter_id = ?", filterID).
		Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}

// UpdateChannelFilter updates a per-channel override.
func (r *groupFilterRepository) UpdateChannelFilter(ctx context.Context, override *models.ProfileGroupChannelFilter) error {
	if err := override.Validate(); err != nil {
		return fmt.Errorf("validating channel override: %w", err)
	}
	return r.db.WithContext(ctx).Save(override).Error
}

// DeleteChannelFilter deletes a per-channel override.
func (r *groupFilterRepository) DeleteChannelFilter(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.ProfileGroupChannelFilter{}, "id = ?", id).Error
}
