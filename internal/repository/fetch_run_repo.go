package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// fetchRunRepository implements FetchRunRepository using GORM.
type fetchRunRepository struct {
	db *gorm.DB
}

// NewFetchRunRepository creates a new FetchRunRepository.
func NewFetchRunRepository(db *gorm.DB) FetchRunRepository {
	return &fetchRunRepository{db: db}
}

var _ FetchRunRepository = (*fetchRunRepository)(nil)

// Create creates a new fetch run.
func (r *fetchRunRepository) Create(ctx context.Context, run *models.FetchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validating fetch run: %w", err)
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a run by ID.
func (r *fetchRunRepository) GetByID(ctx context.Context, id models.ULID) (*models.FetchRun, error) {
	var run models.FetchRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// Update updates an existing run.
func (r *fetchRunRepository) Update(ctx context.Context, run *models.FetchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validating fetch run: %w", err)
	}
	return r.db.WithContext(ctx).Save(run).Error
}

// GetLatestByProvider retrieves the most recently started run of the given
// type for a provider.
func (r *fetchRunRepository) GetLatestByProvider(ctx context.Context, providerID models.ULID, runType models.FetchRunType) (*models.FetchRun, error) {
	var run models.FetchRun
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND type = ?", providerID, runType).
		Order("started_at DESC").
		First(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List retrieves runs ordered by started_at descending.
func (r *fetchRunRepository) List(ctx context.Context, providerID *models.ULID, limit int) ([]*models.FetchRun, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if providerID != nil {
		query = query.Where("provider_id = ?", providerID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []*models.FetchRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
