package models

import (
	"strings"

	"gorm.io/gorm"
)

// FilterDecision is the operator's verdict on a provider group.
type FilterDecision string

const (
	// DecisionPending means no verdict yet; pending groups stay out of
	// strict-mode output until an operator decides.
	DecisionPending FilterDecision = "pending"
	// DecisionInclude publishes the group's channels.
	DecisionInclude FilterDecision = "include"
	// DecisionExclude suppresses the group's channels.
	DecisionExclude FilterDecision = "exclude"
)

// Valid reports whether the decision is a known value.
func (d FilterDecision) Valid() bool {
	switch d {
	case DecisionPending, DecisionInclude, DecisionExclude:
		return true
	}
	return false
}

// ChannelMode selects how an included group picks its channels.
type ChannelMode string

const (
	// ChannelModeAll emits every active channel of the group.
	ChannelModeAll ChannelMode = "all"
	// ChannelModeSelect emits only channels with an explicit override row.
	ChannelModeSelect ChannelMode = "select"
)

// Valid reports whether the channel mode is a known value.
func (m ChannelMode) Valid() bool {
	return m == ChannelModeAll || m == ChannelModeSelect
}

// ProfileGroupFilter is the per-profile decision state for one provider
// group. The reconciler backfills a pending row for every newly seen group;
// operators flip decisions from the admin surface.
type ProfileGroupFilter struct {
	BaseModel

	ProfileID       ULID `gorm:"not null;uniqueIndex:idx_profile_group;type:varchar(26)" json:"profile_id"`
	ProviderGroupID ULID `gorm:"not null;uniqueIndex:idx_profile_group;type:varchar(26)" json:"provider_group_id"`

	// Decision is pending until an operator includes or excludes the group.
	Decision FilterDecision `gorm:"not null;default:'pending';size:10" json:"decision"`

	// ChannelMode picks all channels or only the overridden selection.
	ChannelMode ChannelMode `gorm:"not null;default:'all';size:10" json:"channel_mode"`

	// OutputName renames the group in published output (optional;
	// empty keeps the raw name).
	OutputName string `gorm:"size:512" json:"output_name,omitempty"`

	// AutoNumStart assigns consecutive channel numbers to unnumbered
	// channels starting here (optional).
	AutoNumStart *int `json:"auto_num_start,omitempty"`

	// AutoNumEnd stops automatic numbering once it would be exceeded
	// (optional).
	AutoNumEnd *int `json:"auto_num_end,omitempty"`

	// TrackNewChannels auto-selects newly seen channels in select mode.
	TrackNewChannels bool `gorm:"default:false" json:"track_new_channels"`

	Profile       *Profile       `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	ProviderGroup *ProviderGroup `gorm:"foreignKey:ProviderGroupID;constraint:OnDelete:CASCADE" json:"provider_group,omitempty"`

	ChannelFilters []ProfileGroupChannelFilter `gorm:"foreignKey:FilterID;constraint:OnDelete:CASCADE" json:"channel_filters,omitempty"`
}

// TableName returns the table name for ProfileGroupFilter.
func (ProfileGroupFilter) TableName() string {
	return "profile_group_filters"
}

// Sanitize trims whitespace from user-provided fields.
func (f *ProfileGroupFilter) Sanitize() {
	f.OutputName = strings.TrimSpace(f.OutputName)
}

// Validate performs basic validation on the filter.
func (f *ProfileGroupFilter) Validate() error {
	f.Sanitize()

	if f.ProfileID.IsZero() {
		return ErrProfileIDRequired
	}
	if f.ProviderGroupID.IsZero() {
		return ErrGroupIDRequired
	}
	if f.Decision == "" {
		f.Decision = DecisionPending
	}
	if !f.Decision.Valid() {
		return ErrInvalidDecision
	}
	if f.ChannelMode == "" {
		f.ChannelMode = ChannelModeAll
	}
	if !f.ChannelMode.Valid() {
		return ErrInvalidChannelMode
	}
	if f.AutoNumStart != nil && f.AutoNumEnd != nil && *f.AutoNumEnd < *f.AutoNumStart {
		return ErrInvalidAutoNumRange
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the filter and generates ULID.
func (f *ProfileGroupFilter) BeforeCreate(tx *gorm.DB) error {
	if err := f.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return f.Validate()
}

// BeforeUpdate is a GORM hook that validates the filter before update.
func (f *ProfileGroupFilter) BeforeUpdate(tx *gorm.DB) error {
	return f.Validate()
}

// ProfileGroupChannelFilter is a per-channel override under a select-mode
// group filter: its presence selects the channel, and it may rename the
// output group or pin a channel number.
type ProfileGroupChannelFilter struct {
	BaseModel

	FilterID          ULID `gorm:"not null;uniqueIndex:idx_filter_channel;type:varchar(26)" json:"filter_id"`
	ProviderChannelID ULID `gorm:"not null;uniqueIndex:idx_filter_channel;type:varchar(26)" json:"provider_channel_id"`

	// OutputGroupName overrides the group name for this channel (optional).
	OutputGroupName string `gorm:"size:512" json:"output_group_name,omitempty"`

	// ChannelNumber pins an explicit channel number (optional).
	ChannelNumber *int `json:"channel_number,omitempty"`

	Filter          *ProfileGroupFilter `gorm:"foreignKey:FilterID;constraint:OnDelete:CASCADE" json:"filter,omitempty"`
	ProviderChannel *ProviderChannel    `gorm:"foreignKey:ProviderChannelID;constraint:OnDelete:CASCADE" json:"provider_channel,omitempty"`
}

// TableName returns the table name for ProfileGroupChannelFilter.
func (ProfileGroupChannelFilter) TableName() string {
	return "profile_group_channel_filters"
}

// Sanitize trims whitespace from user-provided fields.
func (f *ProfileGroupChannelFilter) Sanitize() {
	f.OutputGroupName = strings.TrimSpace(f.OutputGroupName)
}

// Validate performs basic validation on the override.
func (f *ProfileGroupChannelFilter) Validate() error {
	f.Sanitize()

	if f.FilterID.IsZero() {
		return ErrFilterIDRequired
	}
	if f.ProviderChannelID.IsZero() {
		return ErrChannelIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the override and generates ULID.
func (f *ProfileGroupChannelFilter) BeforeCreate(tx *gorm.DB) error {
	if err := f.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return f.Validate()
}
