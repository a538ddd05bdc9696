package models

import (
	"gorm.io/gorm"
)

// SnapshotStatus is the lifecycle state of a published snapshot.
// The order is fixed: staged precedes active precedes archived.
type SnapshotStatus string

const (
	// SnapshotStaged is a fully written snapshot awaiting promotion.
	SnapshotStaged SnapshotStatus = "staged"
	// SnapshotActive is the unique snapshot per profile that read
	// endpoints serve.
	SnapshotActive SnapshotStatus = "active"
	// SnapshotArchived is a previously active snapshot kept as
	// last-known-good history until the retention sweep removes it.
	SnapshotArchived SnapshotStatus = "archived"
)

// Valid reports whether the snapshot status is a known value.
func (s SnapshotStatus) Valid() bool {
	switch s {
	case SnapshotStaged, SnapshotActive, SnapshotArchived:
		return true
	}
	return false
}

// Snapshot is the metadata row for one immutable published artifact set:
// a channel index JSON plus a guide XML on disk. Artifact files are fully
// written before the row turns active, and retention never deletes an
// active row.
type Snapshot struct {
	BaseModel

	ProfileID ULID `gorm:"not null;index;type:varchar(26)" json:"profile_id"`

	// Status transitions staged -> active -> archived. At most one
	// active snapshot per profile; the promote transaction enforces it.
	Status SnapshotStatus `gorm:"not null;default:'staged';size:10;index" json:"status"`

	// ChannelIndexPath is the on-disk location of channel_index.json.
	ChannelIndexPath string `gorm:"not null;size:1024" json:"channel_index_path"`

	// GuidePath is the on-disk location of guide.xml.
	GuidePath string `gorm:"not null;size:1024" json:"guide_path"`

	// ChannelCountPublished is the number of entries in the channel index.
	ChannelCountPublished int `gorm:"default:0" json:"channel_count_published"`

	// ErrorSummary carries non-fatal build diagnostics (for example a
	// substituted empty guide after a guide fetch failure).
	ErrorSummary string `gorm:"size:4096" json:"error_summary,omitempty"`

	Profile *Profile `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// TableName returns the table name for Snapshot.
func (Snapshot) TableName() string {
	return "snapshots"
}

// IsActive reports whether this snapshot is currently served.
func (s *Snapshot) IsActive() bool {
	return s.Status == SnapshotActive
}

// Validate performs basic validation on the snapshot.
func (s *Snapshot) Validate() error {
	if s.ProfileID.IsZero() {
		return ErrProfileIDRequired
	}
	if s.Status == "" {
		s.Status = SnapshotStaged
	}
	if !s.Status.Valid() {
		return ErrInvalidSnapshotStatus
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the snapshot and generates ULID.
func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}
