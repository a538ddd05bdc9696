package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/m3undle/m3undle/internal/models"
)

// providerChannelRepository implements ProviderChannelRepository using GORM.
type providerChannelRepository struct {
	db *gorm.DB
}

// NewProviderChannelRepository creates a new ProviderChannelRepository.
func NewProviderChannelRepository(db *gorm.DB) ProviderChannelRepository {
	return &providerChannelRepository{db: db}
}

var _ ProviderChannelRepository = (*providerChannelRepository)(nil)

// GetByID retrieves a channel by ID.
func (r *providerChannelRepository) GetByID(ctx context.Context, id models.ULID) (*models.ProviderChannel, error) {
	var channel models.ProviderChannel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// GetByStableKey retrieves a channel by provider and stable key.
func (r *providerChannelRepository) GetByStableKey(ctx context.Context, providerID models.ULID, key string) (*models.ProviderChannel, error) {
	var channel models.ProviderChannel
	if err := r.db.WithContext(ctx).
		First(&channel, "provider_id = ? AND stable_key = ?", providerID, key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// Upsert creates or updates a channel keyed on (provider_id, stable_key).
// Conflicting rows keep their id and first_seen_at; everything observable in
// the current fetch is refreshed, including reactivation.
func (r *providerChannelRepository) Upsert(ctx context.Context, channel *models.ProviderChannel) error {
	if err := channel.Validate(); err != nil {
		return fmt.Errorf("validating channel: %w", err)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "stable_key"}},
		// The unique index is partial; the conflict target has to carry the
		// same predicate or SQLite and Postgres refuse to match it.
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("stable_key IS NOT NULL AND stable_key != ''"),
		}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name",
			"tvg_id",
			"tvg_name",
			"logo_url",
			"stream_url",
			"group_name",
			"group_id",
			"content_type",
			"last_seen_at",
			"active",
			"last_fetch_run_id",
			"updated_at",
		}),
	}).Create(channel).Error
}

// GetActiveByProvider retrieves active channels of a provider. Live channels
// always qualify; vod and series rows only when the caller opts in.
func (r *providerChannelRepository) GetActiveByProvider(ctx context.Context, providerID models.ULID, includeVOD, includeSeries bool) ([]*models.ProviderChannel, error) {
	types := []models.ContentType{models.ContentTypeLive}
	if includeVOD {
		types = append(types, models.ContentTypeVOD)
	}
	if includeSeries {
		types = append(types, models.ContentTypeSeries)
	}

	var channels []*models.ProviderChannel
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND active = ? AND content_type IN ?", providerID, true, types).
		Order("display_name ASC, stream_url ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// GetByGroup retrieves all channels of a provider group.
func (r *providerChannelRepository) GetByGroup(ctx context.Context, groupID models.ULID) ([]*models.ProviderChannel, error) {
	var channels []*models.ProviderChannel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("display_name ASC, stream_url ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// DeactivateMissing marks active channels of the provider whose stable key is
// not in seen as inactive. Rows keep their stable key so a channel that
// reappears maps back to the same identity.
func (r *providerChannelRepository) DeactivateMissing(ctx context.Context, providerID models.ULID, seen []string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProviderChannel{}).
		Where("provider_id = ? AND active = ?", providerID, true)
	if len(seen) > 0 {
		query = query.Where("stable_key NOT IN ?", seen)
	}
	res := query.Update("active", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CountActive returns the number of active channels for a provider.
func (r *providerChannelRepository) CountActive(ctx context.Context, providerID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProviderChannel{}).
		Where("provider_id = ? AND active = ?", providerID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
