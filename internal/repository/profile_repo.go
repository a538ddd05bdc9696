package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// profileRepository implements ProfileRepository using GORM.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

// Create creates a new profile.
func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves a profile by ID.
func (r *profileRepository) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByOutputName retrieves a profile by the name its endpoints publish under.
func (r *profileRepository) GetByOutputName(ctx context.Context, outputName string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "output_name = ?", outputName).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetAll retrieves all profiles ordered by name.
func (r *profileRepository) GetAll(ctx context.Context) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Update updates an existing profile.
func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete deletes a profile. Filters, overrides, links and snapshot rows under
// it are swept explicitly for the same reason the provider delete does.
func (r *profileRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM profile_group_channel_filters WHERE filter_id IN (
				SELECT id FROM profile_group_filters WHERE profile_id = ?)`, id,
		).Error; err != nil {
			return fmt.Errorf("deleting channel overrides: %w", err)
		}
		if err := tx.Where("profile_id = ?", id).Delete(&models.ProfileGroupFilter{}).Error; err != nil {
			return fmt.Errorf("deleting group filters: %w", err)
		}
		if err := tx.Where("profile_id = ?", id).Delete(&models.ProfileProvider{}).Error; err != nil {
			return fmt.Errorf("deleting provider links: %w", err)
		}
		if err := tx.Where("profile_id = ?", id).Delete(&models.Snapshot{}).Error; err != nil {
			return fmt.Errorf("deleting snapshot rows: %w", err)
		}
		return tx.Delete(&models.Profile{}, "id = ?", id).Error
	})
}

// CreateLink associates a profile with a provider.
func (r *profileRepository) CreateLink(ctx context.Context, link *models.ProfileProvider) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("validating profile-provider link: %w", err)
	}
	return r.db.WithContext(ctx).Create(link).Error
}

// GetLinksByProvider retrieves all links for a provider ordered by priority.
func (r *profileRepository) GetLinksByProvider(ctx context.Context, providerID models.ULID) ([]*models.ProfileProvider, error) {
	var links []*models.ProfileProvider
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("priority ASC, created_at ASC").
		Preload("Profile").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// GetBestProfileForProvider returns the enabled profile behind the enabled
// link with the lowest priority, or (nil, nil) when the provider has none.
func (r *profileRepository) GetBestProfileForProvider(ctx context.Context, providerID models.ULID) (*models.Profile, error) {
	links, err := r.GetLinksByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("listing provider links: %w", err)
	}
	for _, link := range links {
		if !link.IsEnabled() || link.Profile == nil {
			continue
		}
		if link.Profile.IsEnabled() {
			return link.Profile, nil
		}
	}
	return nil, nil
}
