package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// providerGroupRepository implements ProviderGroupRepository using GORM.
type providerGroupRepository struct {
	db *gorm.DB
}

// NewProviderGroupRepository creates a new ProviderGroupRepository.
func NewProviderGroupRepository(db *gorm.DB) ProviderGroupRepository {
	return &providerGroupRepository{db: db}
}

var _ ProviderGroupRepository = (*providerGroupRepository)(nil)

// Create creates a new group row.
func (r *providerGroupRepository) Create(ctx context.Context, group *models.ProviderGroup) error {
	if err := group.Validate(); err != nil {
		return fmt.Errorf("validating group: %w", err)
	}
	return r.db.WithContext(ctx).Create(group).Error
}

// GetByID retrieves a group by ID.
func (r *providerGroupRepository) GetByID(ctx context.Context, id models.ULID) (*models.ProviderGroup, error) {
	var group models.ProviderGroup
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// GetByProviderAndName retrieves a group by its raw playlist name.
func (r *providerGroupRepository) GetByProviderAndName(ctx context.Context, providerID models.ULID, name string) (*models.ProviderGroup, error) {
	var group models.ProviderGroup
	if err := r.db.WithContext(ctx).
		First(&group, "provider_id = ? AND name = ?", providerID, name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// GetByProvider retrieves all groups of a provider ordered by name.
func (r *providerGroupRepository) GetByProvider(ctx context.Context, providerID models.ULID) ([]*models.ProviderGroup, error) {
	var groups []*models.ProviderGroup
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("name ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// Update updates an existing group row.
func (r *providerGroupRepository) Update(ctx context.Context, group *models.ProviderGroup) error {
	if err := group.Validate(); err != nil {
		return fmt.Errorf("validating group: %w", err)
	}
	return r.db.WithContext(ctx).Save(group).Error
}

// DeactivateMissing marks active groups of the provider whose raw name is not
// in seen as inactive with a zero channel count. An empty fetch deactivates
// every group.
func (r *providerGroupRepository) DeactivateMissing(ctx context.Context, providerID models.ULID, seen []string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProviderGroup{}).
		Where("provider_id = ? AND active = ?", providerID, true)
	if len(seen) > 0 {
		query = query.Where("name NOT IN ?", seen)
	}
	res := query.Updates(map[string]interface{}{
		"active":        false,
		"channel_count": 0,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
