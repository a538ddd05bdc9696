// Package refresh drives the periodic catalog refresh cycle: fetch, reconcile,
// build, promote. One run at a time; the scheduler and external triggers feed
// a single-slot queue so a slow upstream cannot pile up work.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3undle/m3undle/internal/config"
	"github.com/m3undle/m3undle/internal/events"
	"github.com/m3undle/m3undle/internal/fetch"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/reconcile"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/internal/snapshot"
	"github.com/m3undle/m3undle/pkg/format"
)

// ErrBusy is returned to external triggers while a run is in progress or
// already queued.
var ErrBusy = errors.New("a refresh is already in progress")

// Mode selects how much of the cycle a run performs.
type Mode string

const (
	// ModeFull fetches upstream, reconciles the catalog, and builds.
	ModeFull Mode = "full"
	// ModeBuildOnly rebuilds the lineup from the current catalog without
	// touching upstream. Filter edits use it to take effect immediately.
	ModeBuildOnly Mode = "build_only"
)

// Coordinator owns the refresh lifecycle: the startup refresh, the periodic
// schedule, and on-demand triggers from the admin API.
type Coordinator struct {
	cfg        config.RefreshConfig
	repos      *repository.Repositories
	fetcher    *fetch.Fetcher
	reconciler *reconcile.Reconciler
	builder    *snapshot.Builder
	bus        *events.Bus
	logger     *slog.Logger

	queue   chan Mode
	running atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Coordinator. Start must be called before triggers do anything.
func New(
	cfg config.RefreshConfig,
	repos *repository.Repositories,
	fetcher *fetch.Fetcher,
	reconciler *reconcile.Reconciler,
	builder *snapshot.Builder,
	bus *events.Bus,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:        cfg,
		repos:      repos,
		fetcher:    fetcher,
		reconciler: reconciler,
		builder:    builder,
		bus:        bus,
		logger:     observability.WithComponent(logger, "refresh"),
		queue:      make(chan Mode, 1),
	}
}

// Start launches the worker and scheduler goroutines. The initial refresh
// runs after the configured startup delay.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.work(ctx)
	go c.schedule(ctx)
}

// Stop cancels in-flight work and waits for the goroutines to exit.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// IsBusy reports whether a run is currently executing.
func (c *Coordinator) IsBusy() bool {
	return c.running.Load()
}

// TriggerFull requests an on-demand full refresh. ErrBusy when a run is in
// progress or one is already queued.
func (c *Coordinator) TriggerFull() error {
	return c.trigger(ModeFull)
}

// TriggerBuildOnly requests a rebuild from the current catalog.
func (c *Coordinator) TriggerBuildOnly() error {
	return c.trigger(ModeBuildOnly)
}

func (c *Coordinator) trigger(mode Mode) error {
	if c.running.Load() {
		return ErrBusy
	}
	select {
	case c.queue <- mode:
		return nil
	default:
		return ErrBusy
	}
}

// scheduledRefresh is the scheduler's entry. A firing while a run executes
// or a trigger is already queued is logged and skipped; the next firing
// covers the missed window.
func (c *Coordinator) scheduledRefresh() {
	if c.running.Load() {
		c.logger.Info("scheduled refresh skipped, run in progress")
		return
	}
	select {
	case c.queue <- ModeFull:
	default:
		c.logger.Info("scheduled refresh skipped, trigger already queued")
	}
}

func (c *Coordinator) work(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case mode := <-c.queue:
			if err := c.RunOnce(ctx, mode); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("refresh failed",
					slog.String("mode", string(mode)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (c *Coordinator) schedule(ctx context.Context) {
	defer c.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.StartupDelay()):
	}
	c.scheduledRefresh()

	if c.cfg.Cron != "" {
		runner := cron.New()
		if _, err := runner.AddFunc(c.cfg.Cron, c.scheduledRefresh); err != nil {
			c.logger.Error("invalid cron expression, falling back to interval",
				slog.String("cron", c.cfg.Cron),
				slog.String("error", err.Error()),
			)
		} else {
			c.logger.Info("refresh schedule",
				slog.String("cron", c.cfg.Cron),
				slog.String("description", format.CronDescription(c.cfg.Cron)),
			)
			runner.Start()
			defer runner.Stop()
			<-ctx.Done()
			return
		}
	}

	ticker := time.NewTicker(c.cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scheduledRefresh()
		}
	}
}

// RunOnce executes a single refresh synchronously under the per-run deadline.
// It is the worker's body and is exported for callers that need the result
// inline rather than through the queue.
func (c *Coordinator) RunOnce(ctx context.Context, mode Mode) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.running.Store(false)

	runCtx := ctx
	if timeout := c.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	targets, err := c.builder.SelectTargets(runCtx)
	if err != nil {
		return fmt.Errorf("selecting refresh targets: %w", err)
	}
	if targets == nil {
		c.logger.Info("refresh skipped: no active provider with an enabled profile")
		return nil
	}

	c.publish(events.TypeRefreshStarted, map[string]any{
		"mode":        string(mode),
		"provider_id": targets.Provider.ID.String(),
		"profile_id":  targets.Profile.ID.String(),
	})

	start := time.Now()
	switch mode {
	case ModeBuildOnly:
		err = c.runBuildOnly(runCtx, targets)
	default:
		err = c.runFull(runCtx, targets)
	}

	data := map[string]any{
		"mode":        string(mode),
		"provider_id": targets.Provider.ID.String(),
		"profile_id":  targets.Profile.ID.String(),
		"duration_ms": time.Since(start).Milliseconds(),
		"status":      "ok",
	}
	if err != nil {
		data["status"] = "fail"
		data["error"] = err.Error()
	}
	c.publish(events.TypeRefreshCompleted, data)
	return err
}

// runFull performs the full cycle: fetch playlist and guide, reconcile the
// catalog, build and promote a snapshot. A playlist failure fails the run and
// leaves catalog and prior snapshot untouched; a guide failure only costs the
// guide, which is substituted with the empty document.
func (c *Coordinator) runFull(ctx context.Context, targets *snapshot.Targets) error {
	provider, profile := targets.Provider, targets.Profile

	run := &models.FetchRun{
		ProviderID: provider.ID,
		Type:       models.RunTypeSnapshot,
		StartedAt:  models.Now(),
		Status:     models.RunStatusRunning,
	}
	if err := c.repos.FetchRuns.Create(ctx, run); err != nil {
		return fmt.Errorf("creating fetch run: %w", err)
	}

	playlist, err := c.fetcher.FetchPlaylist(ctx, provider)
	if err != nil {
		c.finalizeFail(ctx, run, err)
		return fmt.Errorf("fetching playlist: %w", err)
	}

	guide := []byte(snapshot.EmptyGuide)
	var guideBytes int64
	var errorSummary string
	if provider.HasGuide() {
		result, gerr := c.fetcher.FetchGuide(ctx, provider)
		if gerr != nil {
			errorSummary = "guide fetch failed: " + gerr.Error()
			c.logger.Warn("guide fetch failed, substituting empty guide",
				slog.String("provider", provider.Name),
				slog.String("error", gerr.Error()),
			)
		} else {
			guide = result.Data
			guideBytes = result.Bytes
		}
	}

	if _, err := c.reconciler.Reconcile(ctx, reconcile.Input{
		ProviderID: provider.ID,
		ProfileID:  profile.ID,
		FetchRunID: run.ID,
		Entries:    playlist.Entries,
	}); err != nil {
		c.finalizeFail(ctx, run, err)
		return fmt.Errorf("reconciling catalog: %w", err)
	}

	if _, err := c.builder.Build(ctx, snapshot.BuildInput{
		Provider:     provider,
		Profile:      profile,
		Guide:        guide,
		ErrorSummary: errorSummary,
	}); err != nil {
		c.finalizeFail(ctx, run, err)
		return fmt.Errorf("building snapshot: %w", err)
	}

	run.MarkOK(playlist.Bytes, guideBytes, len(playlist.Entries))
	if err := c.repos.FetchRuns.Update(ctx, run); err != nil {
		c.logger.Warn("finalizing fetch run", slog.String("error", err.Error()))
	}
	return nil
}

func (c *Coordinator) runBuildOnly(ctx context.Context, targets *snapshot.Targets) error {
	_, err := c.builder.Build(ctx, snapshot.BuildInput{
		Provider: targets.Provider,
		Profile:  targets.Profile,
	})
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	return nil
}

// finalizeFail records the failure on the run row. It detaches from the run
// context so a deadline-expired run still gets its status written.
func (c *Coordinator) finalizeFail(ctx context.Context, run *models.FetchRun, cause error) {
	run.MarkFail(cause)
	if err := c.repos.FetchRuns.Update(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("recording failed fetch run", slog.String("error", err.Error()))
	}
}

func (c *Coordinator) publish(eventType string, data map[string]any) {
	if c.bus != nil {
		c.bus.Publish(events.Event{Type: eventType, Data: data})
	}
}
