package models

import (
	"gorm.io/gorm"
)

// FetchRunType distinguishes refresh-driving fetches from preview-only ones.
type FetchRunType string

const (
	// RunTypeSnapshot is a fetch performed as part of a refresh cycle.
	RunTypeSnapshot FetchRunType = "snapshot"
	// RunTypePreview is a fetch that never touches the catalog.
	RunTypePreview FetchRunType = "preview"
)

// Valid reports whether the run type is a known value.
func (t FetchRunType) Valid() bool {
	return t == RunTypeSnapshot || t == RunTypePreview
}

// FetchRunStatus is the lifecycle state of a fetch run.
type FetchRunStatus string

const (
	// RunStatusRunning marks an in-flight run. A crash leaves the row
	// here as an operator-visible trace; there is no startup recovery.
	RunStatusRunning FetchRunStatus = "running"
	// RunStatusOK marks a completed run.
	RunStatusOK FetchRunStatus = "ok"
	// RunStatusFail marks a failed run.
	RunStatusFail FetchRunStatus = "fail"
)

// Valid reports whether the run status is a known value.
func (s FetchRunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusOK, RunStatusFail:
		return true
	}
	return false
}

// FetchRun is the audit record bracketing one upstream fetch. It is created
// as running before any I/O and finalized ok or fail; a run that stays
// running indicates a crash mid-fetch.
type FetchRun struct {
	BaseModel

	ProviderID ULID `gorm:"not null;index;type:varchar(26)" json:"provider_id"`

	// Type distinguishes refresh fetches from preview fetches.
	Type FetchRunType `gorm:"not null;default:'snapshot';size:10" json:"type"`

	// StartedAt is when the fetch began.
	StartedAt Time `gorm:"not null;index" json:"started_at"`

	// FinishedAt is when the run was finalized (nil while running).
	FinishedAt *Time `json:"finished_at,omitempty"`

	// Status is running until the run is finalized.
	Status FetchRunStatus `gorm:"not null;default:'running';size:10" json:"status"`

	// PlaylistBytes is the playlist payload size in bytes.
	PlaylistBytes int64 `gorm:"default:0" json:"playlist_bytes"`

	// GuideBytes is the guide payload size in bytes.
	GuideBytes int64 `gorm:"default:0" json:"guide_bytes"`

	// ChannelCountSeen is the number of parsed playlist entries.
	ChannelCountSeen int `gorm:"default:0" json:"channel_count_seen"`

	// ErrorSummary carries the failure message for failed runs.
	ErrorSummary string `gorm:"size:4096" json:"error_summary,omitempty"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName returns the table name for FetchRun.
func (FetchRun) TableName() string {
	return "fetch_runs"
}

// MarkOK finalizes the run as successful.
func (r *FetchRun) MarkOK(playlistBytes, guideBytes int64, channelCount int) {
	now := Now()
	r.FinishedAt = &now
	r.Status = RunStatusOK
	r.PlaylistBytes = playlistBytes
	r.GuideBytes = guideBytes
	r.ChannelCountSeen = channelCount
	r.ErrorSummary = ""
}

// MarkFail finalizes the run as failed with an error summary.
func (r *FetchRun) MarkFail(err error) {
	now := Now()
	r.FinishedAt = &now
	r.Status = RunStatusFail
	if err != nil {
		r.ErrorSummary = err.Error()
	}
}

// Validate performs basic validation on the run.
func (r *FetchRun) Validate() error {
	if r.ProviderID.IsZero() {
		return ErrProviderIDRequired
	}
	if r.Type == "" {
		r.Type = RunTypeSnapshot
	}
	if !r.Type.Valid() {
		return ErrInvalidRunType
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	if !r.Status.Valid() {
		return ErrInvalidRunStatus
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the run and generates ULID.
func (r *FetchRun) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = Now()
	}
	return r.Validate()
}
