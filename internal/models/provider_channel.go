package models

import (
	"gorm.io/gorm"
)

// ProviderChannel is a single playlist entry under its stable identity.
// Rows are written only by the reconciler: upserted by (provider_id,
// stable_key), refreshed on every fetch that contains them and deactivated
// when the key stops appearing. Deactivated rows keep their key so a channel
// that reappears re-derives the same client-facing stream key.
type ProviderChannel struct {
	BaseModel

	ProviderID ULID `gorm:"not null;index;type:varchar(26)" json:"provider_id"`

	// StableKey is base64url(SHA-256(identity))[:16], unique per provider
	// when non-empty. The partial unique index lives in the initial schema
	// migration; GORM cannot express it in a tag.
	StableKey string `gorm:"size:16;index" json:"stable_key"`

	// DisplayName is the resolved channel label.
	DisplayName string `gorm:"not null;size:512" json:"display_name"`

	// TvgID is the EPG channel identifier (optional).
	TvgID string `gorm:"size:255" json:"tvg_id,omitempty"`

	// TvgName is the tvg-name attribute (optional).
	TvgName string `gorm:"size:512" json:"tvg_name,omitempty"`

	// LogoURL is the channel logo location (optional).
	LogoURL string `gorm:"size:2048" json:"logo_url,omitempty"`

	// StreamURL is the upstream stream location. Never exposed to clients.
	StreamURL string `gorm:"not null;size:2048" json:"stream_url" masq:"secret"`

	// GroupName is the raw group-title the entry carried.
	GroupName string `gorm:"size:512;index" json:"group_name"`

	// GroupID references the ProviderGroup row for GroupName.
	GroupID ULID `gorm:"index;type:varchar(26)" json:"group_id"`

	// ContentType is the classifier's verdict for StreamURL.
	ContentType ContentType `gorm:"not null;default:'live';size:10" json:"content_type"`

	// FirstSeenAt is when this identity first appeared in a fetch.
	FirstSeenAt Time `gorm:"not null" json:"first_seen_at"`

	// LastSeenAt is when this identity last appeared in a fetch.
	LastSeenAt Time `gorm:"not null" json:"last_seen_at"`

	// Active is false once a fetch omits the identity.
	Active bool `gorm:"default:true;index" json:"active"`

	// LastFetchRunID is the fetch run that last observed this channel.
	LastFetchRunID ULID `gorm:"type:varchar(26)" json:"last_fetch_run_id"`

	Provider *Provider      `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
	Group    *ProviderGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// TableName returns the table name for ProviderChannel.
func (ProviderChannel) TableName() string {
	return "provider_channels"
}

// Validate performs basic validation on the channel.
func (c *ProviderChannel) Validate() error {
	if c.ProviderID.IsZero() {
		return ErrProviderIDRequired
	}
	if c.DisplayName == "" {
		return ErrNameRequired
	}
	if c.StreamURL == "" {
		return ErrStreamURLRequired
	}
	if !c.ContentType.Valid() {
		return ErrInvalidContentType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the channel and generates ULID.
func (c *ProviderChannel) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}
