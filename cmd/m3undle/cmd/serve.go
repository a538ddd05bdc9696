package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/m3undle/m3undle/internal/config"
	"github.com/m3undle/m3undle/internal/database"
	"github.com/m3undle/m3undle/internal/database/migrations"
	"github.com/m3undle/m3undle/internal/events"
	"github.com/m3undle/m3undle/internal/fetch"
	internalhttp "github.com/m3undle/m3undle/internal/http"
	"github.com/m3undle/m3undle/internal/http/handlers"
	"github.com/m3undle/m3undle/internal/observability"
	"github.com/m3undle/m3undle/internal/reconcile"
	"github.com/m3undle/m3undle/internal/refresh"
	"github.com/m3undle/m3undle/internal/relay"
	"github.com/m3undle/m3undle/internal/repository"
	"github.com/m3undle/m3undle/internal/service"
	"github.com/m3undle/m3undle/internal/service/logs"
	"github.com/m3undle/m3undle/internal/snapshot"
	"github.com/m3undle/m3undle/internal/version"
	"github.com/m3undle/m3undle/pkg/httpclient"
)

// stagingMaxAge is how old an abandoned staging directory must be before the
// startup sweep removes it.
const stagingMaxAge = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the m3undle server",
	Long: `Start the m3undle HTTP server.

The server provides:
- Output endpoints serving the published M3U playlist and XMLTV guide
- A credential-hiding stream relay at /stream/{key}
- REST API for managing providers, profiles and group filters
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("database", "", "SQLite database file path")
	serveCmd.Flags().String("snapshot-dir", "", "Directory for snapshot artifacts")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd.Flags(), rootCmd.PersistentFlags(), cfg)

	// The logs service tees every slog record into an in-memory ring for the
	// admin API before it reaches the real handler.
	logsService := logs.New(logs.DefaultMaxLogs)
	baseLogger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	logger := slog.New(logsService.WrapHandler(baseLogger.Handler()))
	observability.SetDefault(logger)
	observability.SetRequestLogging(cfg.Logging.LogRequests)

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repos := repository.New(db.DB)
	bus := events.NewBus(0, logger)

	breakers := httpclient.NewBreakerManager(httpclient.BreakerSettings{
		FailureThreshold: cfg.Ingest.CircuitThreshold,
		ResetTimeout:     cfg.Ingest.CircuitTimeout,
	}).WithLogger(logger)
	fetcher := fetch.NewFetcher(cfg.Ingest, breakers, logger)
	reconciler := reconcile.New(repos, logger)

	store := snapshot.NewStore(cfg.Snapshot.Directory, logger)
	store.SweepStaging(stagingMaxAge)

	builder := snapshot.NewBuilder(repos, store, bus, cfg.Snapshot.RetentionCount, logger)
	coordinator := refresh.New(cfg.Refresh, repos, fetcher, reconciler, builder, bus, logger)

	providerService := service.NewProviderService(repos, bus, cfg.Output.DefaultOutputName).WithLogger(logger)
	profileService := service.NewProfileService(repos).WithLogger(logger)
	filterService := service.NewFilterService(repos).WithLogger(logger)
	previewService := service.NewPreviewService(repos, fetcher).WithLogger(logger)

	streamRelay := relay.New(repos, store, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	// Client-facing plain routes.
	handlers.NewOutputHandler(repos, store, cfg.Server, logger).RegisterRoutes(server.Router())
	handlers.NewStreamHandler(streamRelay).RegisterRoutes(server.Router())
	handlers.NewStatusHandler(repos, logger).RegisterRoutes(server.Router())

	// Admin API.
	handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithBreakerManager(breakers).
		Register(server.API())
	handlers.NewProviderHandler(providerService, previewService).Register(server.API())
	handlers.NewProfileHandler(profileService).Register(server.API())
	handlers.NewFilterHandler(filterService, coordinator).Register(server.API())
	handlers.NewRefreshHandler(coordinator, repos).Register(server.API())
	handlers.NewFetchRunHandler(repos).Register(server.API())
	handlers.NewSnapshotHandler(repos).Register(server.API())

	logsHandler := handlers.NewLogsHandler(logsService)
	logsHandler.Register(server.API())
	logsHandler.RegisterSSE(server.Router())

	eventsHandler := handlers.NewEventsHandler(bus)
	eventsHandler.Register(server.API())
	eventsHandler.RegisterSSE(server.Router())

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	coordinator.Start(ctx)
	defer coordinator.Stop()

	logger.Info("starting m3undle server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// applyServeFlags overrides config values with CLI flags, but only when the
// user actually passed them.
func applyServeFlags(flags, persistent *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("database") {
		cfg.Database.Path, _ = flags.GetString("database")
	}
	if flags.Changed("snapshot-dir") {
		cfg.Snapshot.Directory, _ = flags.GetString("snapshot-dir")
	}
	if persistent.Changed("log-level") {
		cfg.Logging.Level, _ = persistent.GetString("log-level")
	}
	if persistent.Changed("log-format") {
		cfg.Logging.Format, _ = persistent.GetString("log-format")
	}
}
