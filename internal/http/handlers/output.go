// Package handlers provides the HTTP handlers for m3undle: the client-facing
// output endpoints and the admin API operations.
package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m3undle/m3undle/internal/config"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/internal/snapshot"
	"github.com/m3undle/m3undle/pkg/m3u"
)

// OutputHandler serves the published lineup: the M3U playlist and the XMLTV
// guide of a profile's active snapshot.
type OutputHandler struct {
	repos  *repository.Repositories
	store  *snapshot.Store
	cfg    config.ServerConfig
	logger *slog.Logger
}

// NewOutputHandler creates an output handler.
func NewOutputHandler(repos *repository.Repositories, store *snapshot.Store, cfg config.ServerConfig, logger *slog.Logger) *OutputHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputHandler{
		repos:  repos,
		store:  store,
		cfg:    cfg,
		logger: observability.WithComponent(logger, "output"),
	}
}

// RegisterRoutes registers the output endpoints. Extension-style paths are
// what players expect; the prefixed aliases keep URLs unambiguous when an
// output name contains dots.
func (h *OutputHandler) RegisterRoutes(router chi.Router) {
	router.Get("/{outputName}.m3u", h.ServePlaylist)
	router.Get("/m3u/{outputName}", h.ServePlaylist)
	router.Get("/{outputName}.xml", h.ServeGuide)
	router.Get("/xmltv/{outputName}", h.ServeGuide)
}

// ServePlaylist renders the active snapshot as an M3U playlist. Stream URLs
// point back at this server; upstream URLs never appear.
func (h *OutputHandler) ServePlaylist(w http.ResponseWriter, r *http.Request) {
	// The alias route passes the extension through (/m3u/tv.m3u).
	outputName := strings.TrimSuffix(chi.URLParam(r, "outputName"), ".m3u")
	snap, ok := h.activeSnapshot(w, r, outputName)
	if !ok {
		return
	}

	index, err := h.store.ReadIndex(snap.ChannelIndexPath)
	if err != nil {
		h.logger.Error("reading channel index",
			slog.String("output_name", outputName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	base := h.baseURL(r)

	var buf bytes.Buffer
	writer := m3u.NewWriter(&buf)
	if err := writer.WriteHeaderWithGuide(base + "/xmltv/" + outputName); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, entry := range index {
		channelNumber := 0
		if entry.TvgChno != nil {
			channelNumber = *entry.TvgChno
		}
		tvgName := entry.TvgName
		if tvgName == "" {
			tvgName = entry.DisplayName
		}
		if err := writer.WriteEntry(&m3u.Entry{
			Duration:      -1,
			TvgID:         entry.TvgID,
			TvgName:       tvgName,
			TvgLogo:       entry.LogoURL,
			GroupTitle:    entry.GroupTitle,
			ChannelNumber: channelNumber,
			Title:         entry.DisplayName,
			URL:           base + "/stream/" + entry.StreamKey,
		}); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/x-mpegurl; charset=utf-8")
	w.Write(buf.Bytes())
}

// ServeGuide serves the snapshot's guide document verbatim.
func (h *OutputHandler) ServeGuide(w http.ResponseWriter, r *http.Request) {
	outputName := strings.TrimSuffix(chi.URLParam(r, "outputName"), ".xml")
	snap, ok := h.activeSnapshot(w, r, outputName)
	if !ok {
		return
	}

	guide, err := h.store.ReadGuide(snap.GuidePath)
	if err != nil {
		h.logger.Error("reading guide",
			slog.String("output_name", outputName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(guide)
}

// activeSnapshot resolves the profile and its active snapshot, writing the
// error response itself when either is missing.
func (h *OutputHandler) activeSnapshot(w http.ResponseWriter, r *http.Request, outputName string) (*models.Snapshot, bool) {
	profile, err := h.repos.Profiles.GetByOutputName(r.Context(), outputName)
	if err != nil {
		h.logger.Error("resolving profile",
			slog.String("output_name", outputName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	if profile == nil {
		http.Error(w, "unknown output", http.StatusNotFound)
		return nil, false
	}

	snap, err := h.repos.Snapshots.GetActiveByProfile(r.Context(), profile.ID)
	if err != nil {
		h.logger.Error("resolving active snapshot",
			slog.String("output_name", outputName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	if snap == nil {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "no active lineup yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

// baseURL resolves the absolute URL base for generated links: configuration
// first, then proxy headers, then the request host.
func (h *OutputHandler) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return trimTrailingSlash(h.cfg.BaseURL)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}

	return scheme + "://" + host
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
