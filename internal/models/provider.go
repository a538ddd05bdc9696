package models

import (
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Provider timeout bounds in seconds.
const (
	ProviderTimeoutMin     = 1
	ProviderTimeoutMax     = 300
	ProviderTimeoutDefault = 30
)

// Provider represents an upstream IPTV provider: a playlist location plus an
// optional guide location and the request options needed to fetch them.
// At most one provider is active at a time; the partial unique index on
// is_active enforces this at the store level.
type Provider struct {
	BaseModel

	// Name is a user-friendly name for the provider.
	// Must be unique across all providers.
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`

	// PlaylistURL is the upstream playlist location (http(s) or file URI).
	// It may contain ${VAR} placeholders resolved against the process
	// environment at fetch time.
	PlaylistURL string `gorm:"not null;size:2048" json:"playlist_url"`

	// GuideURL is the optional upstream guide document location.
	GuideURL string `gorm:"size:2048" json:"guide_url,omitempty"`

	// Headers are extra request headers sent on every upstream request.
	// Providers commonly carry tokens here, so the map is redacted in logs.
	Headers map[string]string `gorm:"serializer:json" json:"headers,omitempty" masq:"secret"`

	// UserAgent overrides the default user agent on upstream requests (optional).
	UserAgent string `gorm:"size:512" json:"user_agent,omitempty"`

	// TimeoutSeconds is the per-request hard deadline (1-300s).
	TimeoutSeconds int `gorm:"not null;default:30" json:"timeout_seconds"`

	// Enabled indicates whether this provider participates in refreshes.
	// Pointer to distinguish "not set" (nil->default true) from "explicitly false".
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// IsActive marks the single provider refreshes fetch from.
	IsActive bool `gorm:"default:false" json:"is_active"`

	// IncludeVOD publishes this provider's VOD entries in snapshots.
	IncludeVOD bool `gorm:"default:false" json:"include_vod"`

	// IncludeSeries publishes this provider's series entries in snapshots.
	IncludeSeries bool `gorm:"default:false" json:"include_series"`
}

// TableName returns the table name for Provider.
func (Provider) TableName() string {
	return "providers"
}

// IsEnabled returns whether the provider is enabled (nil means enabled).
func (p *Provider) IsEnabled() bool {
	return BoolVal(p.Enabled)
}

// EffectiveTimeout returns the per-request deadline, clamped into range.
func (p *Provider) EffectiveTimeout() time.Duration {
	secs := p.TimeoutSeconds
	if secs < ProviderTimeoutMin || secs > ProviderTimeoutMax {
		secs = ProviderTimeoutDefault
	}
	return time.Duration(secs) * time.Second
}

// HasGuide reports whether a guide location is configured.
func (p *Provider) HasGuide() bool {
	return strings.TrimSpace(p.GuideURL) != ""
}

// Sanitize trims whitespace from user-provided fields.
func (p *Provider) Sanitize() {
	p.Name = strings.TrimSpace(p.Name)
	p.PlaylistURL = strings.TrimSpace(p.PlaylistURL)
	p.GuideURL = strings.TrimSpace(p.GuideURL)
	p.UserAgent = strings.TrimSpace(p.UserAgent)
}

// Validate performs basic validation on the provider.
func (p *Provider) Validate() error {
	p.Sanitize()

	if p.Name == "" {
		return ErrNameRequired
	}
	if p.PlaylistURL == "" {
		return ErrURLRequired
	}
	if err := validateLocation(p.PlaylistURL); err != nil {
		return err
	}
	if p.GuideURL != "" {
		if err := validateLocation(p.GuideURL); err != nil {
			return err
		}
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = ProviderTimeoutDefault
	}
	if p.TimeoutSeconds < ProviderTimeoutMin || p.TimeoutSeconds > ProviderTimeoutMax {
		return ErrInvalidTimeout
	}
	return nil
}

// validateLocation checks that a provider location parses and carries a
// supported scheme. ${VAR} placeholders are tolerated; they resolve at fetch
// time.
func validateLocation(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "file":
		return nil
	default:
		return ErrUnsupportedScheme
	}
}

// BeforeCreate is a GORM hook that validates the provider and generates ULID.
func (p *Provider) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the provider before update.
func (p *Provider) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
