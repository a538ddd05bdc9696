// Package fetch retrieves provider playlists and guide documents. It resolves
// ${VAR} placeholders in provider locations, dispatches on scheme, and keeps
// one named circuit breaker per provider so a flapping upstream cannot consume
// every refresh attempt.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/m3undle/m3undle/internal/config"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/urlutil"
	"github.com/m3undle/m3undle/pkg/format"
	"github.com/m3undle/m3undle/pkg/httpclient"
	"github.com/m3undle/m3undle/pkg/m3u"
)

// PlaylistResult is a parsed provider playlist.
type PlaylistResult struct {
	// Entries are the parsed playlist entries in document order.
	Entries []m3u.Entry

	// Bytes is the playlist payload size after transport decompression.
	Bytes int64

	// Warnings counts recoverable parse errors (skipped lines).
	Warnings int
}

// GuideResult is a fetched guide document. The payload is opaque: guide
// bytes pass through to snapshots unmodified.
type GuideResult struct {
	Data  []byte
	Bytes int64
}

// Fetcher retrieves playlists and guides for providers.
type Fetcher struct {
	cfg      config.IngestConfig
	breakers *httpclient.BreakerManager
	logger   *slog.Logger

	// lookupEnv resolves ${VAR} placeholders; os.LookupEnv outside tests.
	lookupEnv func(string) (string, bool)
}

// NewFetcher creates a Fetcher sharing the given breaker manager.
func NewFetcher(cfg config.IngestConfig, breakers *httpclient.BreakerManager, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if breakers == nil {
		breakers = httpclient.NewBreakerManager(httpclient.BreakerSettings{
			FailureThreshold: cfg.CircuitThreshold,
			ResetTimeout:     cfg.CircuitTimeout,
		})
	}
	return &Fetcher{
		cfg:       cfg,
		breakers:  breakers,
		logger:    observability.WithComponent(logger, "fetch"),
		lookupEnv: os.LookupEnv,
	}
}

// FetchPlaylist retrieves and parses the provider's playlist.
func (f *Fetcher) FetchPlaylist(ctx context.Context, provider *models.Provider) (*PlaylistResult, error) {
	body, err := f.open(ctx, provider, provider.PlaylistURL)
	if err != nil {
		return nil, &Error{Kind: KindFetchFailed, Resource: ResourcePlaylist, Err: err}
	}
	defer body.Close()

	counter := &countingReader{r: body}
	result := &PlaylistResult{}

	parser := &m3u.Parser{
		OnEntry: func(entry *m3u.Entry) error {
			result.Entries = append(result.Entries, *entry)
			return nil
		},
		OnError: func(lineNum int, parseErr error) {
			result.Warnings++
			f.logger.Debug("skipping malformed playlist line",
				slog.Int("line", lineNum),
				slog.String("error", parseErr.Error()),
			)
		},
	}

	stats, err := parser.ParseCompressed(counter)
	if err != nil {
		return nil, &Error{Kind: KindParseFailed, Resource: ResourcePlaylist,
			Err: fmt.Errorf("parsing playlist: %w", err)}
	}
	if !stats.ExtM3U && stats.Entries == 0 {
		return nil, &Error{Kind: KindParseFailed, Resource: ResourcePlaylist,
			Err: fmt.Errorf("payload is not an M3U playlist (%d lines, no #EXTM3U)", stats.Lines)}
	}

	result.Bytes = counter.n
	f.logger.Info("playlist fetched",
		slog.String("provider", provider.Name),
		slog.String("url", urlutil.Obfuscate(provider.PlaylistURL)),
		slog.Int("entries", len(result.Entries)),
		slog.String("size", format.Bytes(result.Bytes)),
		slog.Int("warnings", result.Warnings),
	)
	return result, nil
}

// FetchGuide retrieves the provider's guide document as opaque bytes.
// Calling it without a configured guide location is a programmer error the
// caller guards with provider.HasGuide.
func (f *Fetcher) FetchGuide(ctx context.Context, provider *models.Provider) (*GuideResult, error) {
	body, err := f.open(ctx, provider, provider.GuideURL)
	if err != nil {
		return nil, &Error{Kind: KindFetchFailed, Resource: ResourceGuide, Err: err}
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &Error{Kind: KindFetchFailed, Resource: ResourceGuide,
			Err: fmt.Errorf("reading guide body: %w", err)}
	}

	f.logger.Info("guide fetched",
		slog.String("provider", provider.Name),
		slog.String("url", urlutil.Obfuscate(provider.GuideURL)),
		slog.String("size", format.Bytes(int64(len(data)))),
	)
	return &GuideResult{Data: data, Bytes: int64(len(data))}, nil
}

// open resolves the location and returns its payload stream. Transport-level
// errors, non-2xx statuses, file I/O errors and unresolved placeholders all
// surface here.
func (f *Fetcher) open(ctx context.Context, provider *models.Provider, rawURL string) (io.ReadCloser, error) {
	resolved, err := urlutil.ExpandEnv(rawURL, f.lookupEnv)
	if err != nil {
		return nil, err
	}
	resolved = urlutil.NormalizeStreamURL(resolved)

	if urlutil.IsFileURL(resolved) {
		path, err := urlutil.FilePathFromURL(resolved)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening local playlist: %w", err)
		}
		return file, nil
	}

	client := f.clientFor(provider)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for name, value := range provider.Headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", urlutil.Obfuscate(resolved), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// clientFor builds a client carrying the provider's timeout and user agent,
// bound to the provider's named breaker so failures accumulate across runs.
func (f *Fetcher) clientFor(provider *models.Provider) *httpclient.Client {
	userAgent := provider.UserAgent
	if userAgent == "" {
		userAgent = f.cfg.UserAgent
	}

	clientCfg := httpclient.Config{
		Timeout:             provider.EffectiveTimeout(),
		RetryAttempts:       f.cfg.RetryAttempts,
		RetryDelay:          f.cfg.RetryDelay,
		RetryMaxDelay:       f.cfg.RetryMaxDelay,
		BackoffMultiplier:   httpclient.DefaultBackoffMultiplier,
		UserAgent:           userAgent,
		Logger:              f.logger,
		EnableDecompression: true,
		MaxResponseSize:     int64(f.cfg.MaxResponseSize),
		BaseClient: &http.Client{
			Timeout: provider.EffectiveTimeout(),
		},
	}
	if clientCfg.RetryDelay <= 0 {
		clientCfg.RetryDelay = httpclient.DefaultRetryDelay
	}
	if clientCfg.RetryMaxDelay <= 0 {
		clientCfg.RetryMaxDelay = httpclient.DefaultRetryMaxDelay
	}

	breaker := f.breakers.GetOrCreate("provider:" + provider.ID.String())
	return httpclient.NewWithBreaker(clientCfg, breaker)
}

// countingReader counts bytes as they stream through.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
