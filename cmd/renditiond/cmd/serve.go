package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vidplat/renditiond/internal/artifact"
	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/database"
	"github.com/vidplat/renditiond/internal/ffmpeg"
	internalhttp "github.com/vidplat/renditiond/internal/http"
	"github.com/vidplat/renditiond/internal/http/handlers"
	"github.com/vidplat/renditiond/internal/janitor"
	"github.com/vidplat/renditiond/internal/jobs"
	"github.com/vidplat/renditiond/internal/observability"
	"github.com/vidplat/renditiond/internal/pipeline"
	"github.com/vidplat/renditiond/internal/repository"
	"github.com/vidplat/renditiond/internal/service"
	"github.com/vidplat/renditiond/internal/transcode"
	"github.com/vidplat/renditiond/internal/version"
	"github.com/vidplat/renditiond/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the renditiond server",
	Long: `Start the renditiond HTTP server and transcode pipeline.

The server provides:
- REST API for creating videos, issuing tickets, and starting uploads
- Background worker pool running per-rendition transcodes
- Health check endpoints and OpenAPI documentation`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("data-dir", "", "Data directory for job workspaces")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	ticketRepo := repository.NewTicketRepository(db.DB)
	videoRepo := repository.NewVideoRepository(db.DB)

	binaries, err := ffmpeg.ResolveBinaries(cfg.FFmpeg)
	if err != nil {
		return fmt.Errorf("resolving encoder binaries: %w", err)
	}
	logger.Info("resolved encoder binaries",
		slog.String("ffmpeg", binaries.FFmpeg),
		slog.String("ffprobe", binaries.FFprobe))

	prober := ffmpeg.NewProber(binaries.FFprobe).WithTimeout(cfg.FFmpeg.ProbeTimeout)
	engine := transcode.NewEngine(binaries.FFmpeg, cfg.Transcode, observability.WithComponent(logger, "transcode"))

	store, err := artifact.NewS3Store(cmd.Context(), cfg.S3)
	if err != nil {
		return fmt.Errorf("initializing artifact store: %w", err)
	}

	workspaces, err := workspace.NewManager(cfg.Storage.WorkPath(), observability.WithComponent(logger, "workspace"))
	if err != nil {
		return fmt.Errorf("initializing workspace manager: %w", err)
	}

	orchestrator := pipeline.New(engine, store, videoRepo, observability.WithComponent(logger, "pipeline")).
		WithPreserveWorkspaces(cfg.Pipeline.PreserveWorkspaces)

	pool := jobs.NewPool(orchestrator).
		WithLogger(observability.WithComponent(logger, "jobs")).
		WithConfig(jobs.PoolConfig{
			WorkerCount: cfg.Pipeline.Workers,
			QueueSize:   cfg.Pipeline.QueueSize,
			JobTimeout:  cfg.Pipeline.JobTimeout,
		})

	admissionService := service.NewAdmissionService(ticketRepo).
		WithLogger(observability.WithComponent(logger, "admission"))
	videoService := service.NewVideoService(videoRepo, store).
		WithLogger(observability.WithComponent(logger, "videos"))
	ingestService := service.NewIngestService(admissionService, videoService, prober, workspaces, pool).
		WithLogger(observability.WithComponent(logger, "ingest"))

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB).WithPool(pool)
	healthHandler.Register(server.API())

	videoHandler := handlers.NewVideoHandler(videoService, admissionService)
	videoHandler.Register(server.API())

	ingestHandler := handlers.NewIngestHandler(ingestService, cfg.Server.MaxUploadSize.Int64(), observability.WithComponent(logger, "ingest"))
	ingestHandler.RegisterRoutes(server.Router())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("starting job pool: %w", err)
	}
	defer pool.Stop()

	if cfg.Janitor.Enabled {
		jan, err := janitor.New(cfg.Janitor, workspaces, ticketRepo, observability.WithComponent(logger, "janitor"))
		if err != nil {
			return fmt.Errorf("initializing janitor: %w", err)
		}

		// Reclaim workspaces left behind by a previous crash before
		// accepting new work.
		jan.Sweep(ctx)

		if err := jan.Start(ctx); err != nil {
			return fmt.Errorf("starting janitor: %w", err)
		}
		defer jan.Stop()
	}

	logger.Info("starting renditiond server",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// loadServeConfig loads configuration and applies explicit CLI flag
// overrides. Flags that were not set on the command line never override
// config or environment values.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		cfg.Logging.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}
