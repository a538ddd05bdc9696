// Package repository provides data access implementations.
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// providerRepository implements ProviderRepository using GORM.
type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a new ProviderRepository.
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

var _ ProviderRepository = (*providerRepository)(nil)

// Create creates a new provider.
func (r *providerRepository) Create(ctx context.Context, provider *models.Provider) error {
	if err := provider.Validate(); err != nil {
		return fmt.Errorf("validating provider: %w", err)
	}
	return r.db.WithContext(ctx).Create(provider).Error
}

// GetByID retrieves a provider by ID.
func (r *providerRepository) GetByID(ctx context.Context, id models.ULID) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).First(&provider, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

// GetByName retrieves a provider by name.
func (r *providerRepository) GetByName(ctx context.Context, name string) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).First(&provider, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

// GetAll retrieves all providers ordered by name.
func (r *providerRepository) GetAll(ctx context.Context) ([]*models.Provider, error) {
	var providers []*models.Provider
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// GetActive retrieves the single active provider.
func (r *providerRepository) GetActive(ctx context.Context) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.WithContext(ctx).First(&provider, "is_active = ?", true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

// Update updates an existing provider.
func (r *providerRepository) Update(ctx context.Context, provider *models.Provider) error {
	if err := provider.Validate(); err != nil {
		return fmt.Errorf("validating provider: %w", err)
	}
	return r.db.WithContext(ctx).Save(provider).Error
}

// Delete deletes a provider and every row hanging off it. SQLite foreign key
// enforcement depends on the connection PRAGMA, so the dependent sweeps are
// explicit rather than trusting ON DELETE CASCADE.
func (r *providerRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Channel overrides under filters that reference this provider's groups.
		if err := tx.Exec(
			`DELETE FROM profile_group_channel_filters WHERE filter_id IN (
				SELECT f.id FROM profile_group_filters f
				JOIN provider_groups g ON g.id = f.provider_group_id
				WHERE g.provider_id = ?)`, id,
		).Error; err != nil {
			return fmt.Errorf("deleting channel overrides: %w", err)
		}
		if err := tx.Exec(
			`DELETE FROM profile_group_filters WHERE provider_group_id IN (
				SELECT id FROM provider_groups WHERE provider_id = ?)`, id,
		).Error; err != nil {
			return fmt.Errorf("deleting group filters: %w", err)
		}
		if err := tx.Where("provider_id = ?", id).Delete(&models.ProviderChannel{}).Error; err != nil {
			return fmt.Errorf("deleting channels: %w", err)
		}
		if err := tx.Where("provider_id = ?", id).Delete(&models.ProviderGroup{}).Error; err != nil {
			return fmt.Errorf("deleting groups: %w", err)
		}
		if err := tx.Where("provider_id = ?", id).Delete(&models.FetchRun{}).Error; err != nil {
			return fmt.Errorf("deleting fetch runs: %w", err)
		}
		if err := tx.Where("provider_id = ?", id).Delete(&models.ProfileProvider{}).Error; err != nil {
			return fmt.Errorf("deleting profile links: %w", err)
		}
		return tx.Delete(&models.Provider{}, "id = ?", id).Error
	})
}

// Activate makes the given provider the single active one. Clearing the old
// flag and setting the new one are separate statements so the write never
// trips the single-active partial unique index mid-transition.
func (r *providerRepository) Activate(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Provider{}).
			Where("is_active = ? AND id != ?", true, id).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("clearing active provider: %w", err)
		}

		res := tx.Model(&models.Provider{}).
			Where("id = ?", id).
			Update("is_active", true)
		if res.Error != nil {
			return fmt.Errorf("setting active provider: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Count returns the total number of providers.
func (r *providerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Provider{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
