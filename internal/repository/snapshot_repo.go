package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/m3undle/m3undle/internal/models"
)

// snapshotRepository implements SnapshotRepository using GORM.
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

var _ SnapshotRepository = (*snapshotRepository)(nil)

// Create creates a new snapshot row.
func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("validating snapshot: %w", err)
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// GetByID retrieves a snapshot by ID.
func (r *snapshotRepository) GetByID(ctx context.Context, id models.ULID) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.WithContext(ctx).First(&snapshot, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// GetActiveByProfile retrieves the profile's active snapshot.
func (r *snapshotRepository) GetActiveByProfile(ctx context.Context, profileID models.ULID) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.WithContext(ctx).
		First(&snapshot, "profile_id = ? AND status = ?", profileID, models.SnapshotActive).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// ListByProfile retrieves the profile's snapshots, newest first. ULIDs sort
// by creation time, so id order is creation order.
func (r *snapshotRepository) ListByProfile(ctx context.Context, profileID models.ULID) ([]*models.Snapshot, error) {
	var snapshots []*models.Snapshot
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("id DESC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Promote archives every active snapshot of the profile and activates the
// given one inside a single transaction, so readers always observe exactly
// one active snapshot once the first promotion has happened.
func (r *snapshotRepository) Promote(ctx context.Context, profileID, snapshotID models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Snapshot{}).
			Where("profile_id = ? AND status = ? AND id != ?", profileID, models.SnapshotActive, snapshotID).
			Update("status", models.SnapshotArchived).Error; err != nil {
			return fmt.Errorf("archiving active snapshot: %w", err)
		}

		res := tx.Model(&models.Snapshot{}).
			Where("id = ? AND profile_id = ?", snapshotID, profileID).
			Update("status", models.SnapshotActive)
		if res.Error != nil {
			return fmt.Errorf("activating snapshot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Delete deletes a snapshot row.
func (r *snapshotRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Delete(&models.Snapshot{}, "id = ?", id).Error
}
