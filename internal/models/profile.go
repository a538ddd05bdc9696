package models

import (
	"strings"

	"gorm.io/gorm"
)

// Profile represents a published lineup: the shaped view of a provider's
// catalog that clients consume. Snapshots, filters and the output endpoints
// all hang off a profile.
type Profile struct {
	BaseModel

	// Name is a user-friendly name for the profile.
	// Must be unique across all profiles.
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`

	// OutputName is the URL-safe name the read endpoints publish under
	// (<output_name>.m3u, <output_name>.xml). Unique.
	OutputName string `gorm:"uniqueIndex;not null;size:255" json:"output_name"`

	// Enabled indicates whether this profile is eligible for snapshot builds.
	Enabled *bool `gorm:"default:true" json:"enabled"`
}

// TableName returns the table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// IsEnabled returns whether the profile is enabled (nil means enabled).
func (p *Profile) IsEnabled() bool {
	return BoolVal(p.Enabled)
}

// Sanitize trims whitespace from user-provided fields.
func (p *Profile) Sanitize() {
	p.Name = strings.TrimSpace(p.Name)
	p.OutputName = strings.TrimSpace(p.OutputName)
}

// Validate performs basic validation on the profile.
func (p *Profile) Validate() error {
	p.Sanitize()

	if p.Name == "" {
		return ErrNameRequired
	}
	if p.OutputName == "" {
		return ErrOutputNameRequired
	}
	if strings.ContainsAny(p.OutputName, "/\\ \t?#") {
		return ErrInvalidOutputName
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates ULID.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the profile before update.
func (p *Profile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}

// ProfileProvider associates a profile with a provider. The association is
// ordered: when the builder picks "the" profile for the active provider, the
// enabled link with the lowest priority wins.
type ProfileProvider struct {
	BaseModel

	ProfileID  ULID `gorm:"not null;uniqueIndex:idx_profile_provider;type:varchar(26)" json:"profile_id"`
	ProviderID ULID `gorm:"not null;uniqueIndex:idx_profile_provider;type:varchar(26)" json:"provider_id"`

	// Priority orders links when a provider is associated with several
	// profiles; lowest wins.
	Priority int `gorm:"default:0" json:"priority"`

	// Enabled gates this link without deleting it.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	Profile  *Profile  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName returns the table name for ProfileProvider.
func (ProfileProvider) TableName() string {
	return "profile_providers"
}

// IsEnabled returns whether the link is enabled (nil means enabled).
func (pp *ProfileProvider) IsEnabled() bool {
	return BoolVal(pp.Enabled)
}

// Validate performs basic validation on the association.
func (pp *ProfileProvider) Validate() error {
	if pp.ProfileID.IsZero() {
		return ErrProfileIDRequired
	}
	if pp.ProviderID.IsZero() {
		return ErrProviderIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the link and generates ULID.
func (pp *ProfileProvider) BeforeCreate(tx *gorm.DB) error {
	if err := pp.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return pp.Validate()
}
