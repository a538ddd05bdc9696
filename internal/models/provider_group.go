package models

import (
	"gorm.io/gorm"
)

// ProviderGroup is a distinct group-title observed in a provider's playlist.
// The raw name is the stable identity within a provider: rows are upserted by
// (provider_id, name) during reconcile and deactivated, never deleted, when
// the name stops appearing.
type ProviderGroup struct {
	BaseModel

	ProviderID ULID `gorm:"not null;uniqueIndex:idx_provider_group_name;type:varchar(26)" json:"provider_id"`

	// Name is the raw group-title as it appeared upstream.
	Name string `gorm:"not null;uniqueIndex:idx_provider_group_name;size:512" json:"name"`

	// FirstSeenAt is when this group first appeared in a fetch.
	FirstSeenAt Time `gorm:"not null" json:"first_seen_at"`

	// LastSeenAt is when this group last appeared in a fetch.
	LastSeenAt Time `gorm:"not null" json:"last_seen_at"`

	// Active is false once a fetch omits the group entirely.
	Active bool `gorm:"default:true" json:"active"`

	// ChannelCount is the number of channels the group carried in the
	// last fetch that contained it.
	ChannelCount int `gorm:"default:0" json:"channel_count"`

	// ContentType is live/vod/series when the group is homogeneous,
	// mixed otherwise.
	ContentType ContentType `gorm:"not null;default:'live';size:10" json:"content_type"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName returns the table name for ProviderGroup.
func (ProviderGroup) TableName() string {
	return "provider_groups"
}

// Validate performs basic validation on the group.
func (g *ProviderGroup) Validate() error {
	if g.ProviderID.IsZero() {
		return ErrProviderIDRequired
	}
	if g.Name == "" {
		return ErrNameRequired
	}
	if !g.ContentType.ValidForGroup() {
		return ErrInvalidContentType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the group and generates ULID.
func (g *ProviderGroup) BeforeCreate(tx *gorm.DB) error {
	if err := g.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return g.Validate()
}
