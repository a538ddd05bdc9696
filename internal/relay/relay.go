// Package relay proxies stream bytes between clients and the upstream
// provider. Clients only ever hold opaque stream keys; the credentialed
// upstream URL stays server-side, resolved per request from the active
// snapshot's channel index.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/internal/snapshot"
	"github.com/m3undle/m3undle/internal/urlutil"
)

// Lookup failure modes the HTTP layer maps onto status codes.
var (
	// ErrNoSnapshot means no profile has an active snapshot yet.
	ErrNoSnapshot = errors.New("no active snapshot")
	// ErrUnknownKey means the stream key matches nothing published.
	ErrUnknownKey = errors.New("unknown stream key")
)

// responseHeaderTimeout bounds how long the upstream may take to start
// responding. There is deliberately no overall timeout: streams stay open for
// as long as the client watches.
const responseHeaderTimeout = 30 * time.Second

// forwarded response headers, mirrored from upstream when present.
var forwardedHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Ranges",
	"Content-Range",
}

// Relay resolves stream keys against active snapshots and proxies upstream
// bytes to clients.
type Relay struct {
	repos  *repository.Repositories
	store  *snapshot.Store
	logger *slog.Logger
	client *http.Client

	mu sync.RWMutex
	// cache maps stream keys to index entries, rebuilt whenever the set of
	// active snapshots changes. hasActive is tracked separately: an active
	// snapshot may legitimately publish zero channels.
	cache       map[string]snapshot.IndexEntry
	fingerprint string
	hasActive   bool
}

// New creates a Relay.
func New(repos *repository.Repositories, store *snapshot.Store, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		repos:  repos,
		store:  store,
		logger: observability.WithComponent(logger, "relay"),
		client: &http.Client{
			// Redirects are followed here so clients never see a
			// credentialed Location header.
			Transport: &http.Transport{
				ResponseHeaderTimeout: responseHeaderTimeout,
				Proxy:                 http.ProxyFromEnvironment,
			},
		},
	}
}

// Resolve maps a stream key to its published index entry.
func (r *Relay) Resolve(ctx context.Context, streamKey string) (*snapshot.IndexEntry, error) {
	if err := r.refreshCache(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasActive {
		return nil, ErrNoSnapshot
	}
	entry, ok := r.cache[streamKey]
	if !ok {
		return nil, ErrUnknownKey
	}
	return &entry, nil
}

// refreshCache rebuilds the key map when the active snapshot set changed.
func (r *Relay) refreshCache(ctx context.Context) error {
	profiles, err := r.repos.Profiles.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	var actives []*models.Snapshot
	fingerprint := ""
	for _, profile := range profiles {
		snap, err := r.repos.Snapshots.GetActiveByProfile(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("resolving active snapshot: %w", err)
		}
		if snap == nil {
			continue
		}
		actives = append(actives, snap)
		fingerprint += snap.ID.String() + ";"
	}

	r.mu.RLock()
	current := r.fingerprint
	r.mu.RUnlock()
	if current == fingerprint {
		return nil
	}

	cache := make(map[string]snapshot.IndexEntry)
	for _, snap := range actives {
		index, err := r.store.ReadIndex(snap.ChannelIndexPath)
		if err != nil {
			return fmt.Errorf("loading channel index: %w", err)
		}
		for _, entry := range index {
			cache[entry.StreamKey] = entry
		}
	}

	r.mu.Lock()
	r.cache = cache
	r.fingerprint = fingerprint
	r.hasActive = len(actives) > 0
	r.mu.Unlock()

	r.logger.Debug("rebuilt stream key cache",
		slog.Int("snapshots", len(actives)),
		slog.Int("keys", len(cache)),
	)
	return nil
}

// ServeStream handles GET /stream/{streamKey}: resolve, connect upstream,
// mirror the response and pump bytes until either side goes away.
func (r *Relay) ServeStream(w http.ResponseWriter, req *http.Request, streamKey string) {
	entry, err := r.Resolve(req.Context(), streamKey)
	if err != nil {
		r.writeLookupError(w, req, streamKey, err)
		return
	}

	provider, err := r.repos.Providers.GetActive(req.Context())
	if err != nil {
		r.logger.Error("resolving active provider", slog.String("error", err.Error()))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	upstreamReq, err := http.NewRequestWithContext(req.Context(), http.MethodGet, entry.StreamURL, nil)
	if err != nil {
		r.logger.Error("building upstream request",
			slog.String("url", urlutil.Obfuscate(entry.StreamURL)),
			slog.String("error", err.Error()),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	if provider != nil {
		for name, value := range provider.Headers {
			upstreamReq.Header.Set(name, value)
		}
		if provider.UserAgent != "" {
			upstreamReq.Header.Set("User-Agent", provider.UserAgent)
		}
	}
	// Range passes through verbatim so seeking in VOD content works.
	if rangeHeader := req.Header.Get("Range"); rangeHeader != "" {
		upstreamReq.Header.Set("Range", rangeHeader)
	}

	resp, err := r.client.Do(upstreamReq)
	if err != nil {
		r.logger.Warn("upstream connect failed",
			slog.String("stream_key", streamKey),
			slog.String("url", urlutil.Obfuscate(entry.StreamURL)),
			slog.String("error", err.Error()),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, name := range forwardedHeaders {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil && !isClientGone(err) {
		r.logger.Warn("stream copy interrupted",
			slog.String("stream_key", streamKey),
			slog.Int64("bytes", written),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("stream finished",
		slog.String("stream_key", streamKey),
		slog.String("channel", entry.DisplayName),
		slog.Int64("bytes", written),
	)
}

func (r *Relay) writeLookupError(w http.ResponseWriter, req *http.Request, streamKey string, err error) {
	switch {
	case errors.Is(err, ErrNoSnapshot):
		w.Header().Set("Retry-After", "60")
		http.Error(w, "no active lineup yet", http.StatusServiceUnavailable)
	case errors.Is(err, ErrUnknownKey):
		r.logger.Warn("unknown stream key requested",
			slog.String("stream_key", streamKey),
			slog.String("remote_addr", clientIP(req)),
		)
		http.Error(w, "unknown stream", http.StatusNotFound)
	default:
		r.logger.Error("stream key lookup failed",
			slog.String("stream_key", streamKey),
			slog.String("error", err.Error()),
		)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}

// isClientGone reports whether a copy error means the client disconnected,
// which is the normal end of a live stream.
func isClientGone(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
