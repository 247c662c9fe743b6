package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/photosync/photosort/internal/config"
	"github.com/photosync/photosort/internal/handlers"
	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
	"github.com/photosync/photosort/internal/repository"
	"github.com/photosync/photosort/internal/services"
)

const serviceName = "photosort"

const (
	exitOK       = 0
	exitPanicked = 1
	exitUsage    = 2
)

type cliFlags struct {
	source     string
	output     string
	logLevel   string
	workers    int
	quality    int
	manifest   string
	statusAddr string
	configPath string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		return exitUsage
	}

	// Errors before the configured logger exists go out at INFO
	bootLog := observability.NewLogger(serviceName, observability.LevelInfo)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		bootLog.Errorf("Failed to load configuration: %v", err)
		return exitUsage
	}
	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		bootLog.Errorf("Invalid configuration: %v", err)
		return exitUsage
	}

	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		bootLog.Errorf("%v", err)
		return exitUsage
	}
	logger := observability.NewLogger(serviceName, level)

	if err := raiseFileLimit(); err != nil {
		logger.Warnf("Could not raise open file limit: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Initialize(ctx, observability.NewConfig(serviceName, handlers.Version), logger)
	if err != nil {
		logger.Warnf("Failed to initialize telemetry: %v", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("Telemetry shutdown: %v", err)
			}
		}()
	}

	// Initialize services
	exifService := services.NewEXIFService()
	storageService, err := services.NewStorageService(cfg.OutputPath)
	if err != nil {
		logger.Errorf("Failed to initialize storage service: %v", err)
		return exitUsage
	}

	sorter := services.NewSorterService(
		logger,
		cfg.Workers,
		services.NewScannerService(logger),
		services.NewDateResolver(exifService),
		storageService,
		services.NewOrientationService(exifService, cfg.JPEGQuality),
		services.NewMetadataService(),
		services.NewHashService(),
	)

	if metrics, err := observability.NewSortMetrics(); err != nil {
		logger.Warnf("Failed to create sort metrics: %v", err)
	} else {
		sorter.SetMetrics(metrics)
	}

	// Initialize manifest
	var manifest repository.ManifestRepo
	if cfg.ManifestEnabled() {
		repo, closeDB, err := openManifest(cfg, logger)
		if err != nil {
			logger.Errorf("Failed to open manifest: %v", err)
			return exitUsage
		}
		defer closeDB()
		manifest = repo
		sorter.SetManifest(repo)
	}

	if cfg.StatusAddr != "" {
		srv := newStatusServer(cfg.StatusAddr, sorter, manifest, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("Status server forced to shutdown: %v", err)
			}
		}()
	}

	logger.WithFields(map[string]interface{}{
		"workers": cfg.Workers,
		"level":   logger.Level(),
	}).Infof("Sorting %s into %s", cfg.SourcePath, cfg.OutputPath)

	if _, err := sorter.Sort(ctx, cfg.SourcePath); err != nil {
		if errors.Is(err, models.ErrTaskPanicked) {
			logger.Criticalf("Sort finished with crashed tasks: %v", err)
			return exitPanicked
		}
		logger.Errorf("Sort failed: %v", err)
		return exitUsage
	}

	return exitOK
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}

	app := kingpin.New(serviceName, "Copy JPEG photos into a year/month/day tree by capture date.")
	app.Version(handlers.BuildInfo().String())
	app.Arg("source_path", "Directory to read photos from").Required().StringVar(&f.source)
	app.Arg("output_path", "Directory to build the dated tree in").Required().StringVar(&f.output)
	app.Flag("log", "Log level: DEBUG, INFO, WARNING, ERROR, CRITICAL").StringVar(&f.logLevel)
	app.Flag("workers", fmt.Sprintf("Number of concurrent workers (default %d)", config.DefaultWorkers)).IntVar(&f.workers)
	app.Flag("quality", fmt.Sprintf("JPEG quality for rotated photos (default %d)", config.DefaultJPEGQuality)).IntVar(&f.quality)
	app.Flag("manifest", "SQLite file to record the run in").StringVar(&f.manifest)
	app.Flag("status-addr", "Serve run status over HTTP on this address").StringVar(&f.statusAddr)
	app.Flag("config", "JSON configuration file").StringVar(&f.configPath)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// applyFlags overlays flags that were given on the command line
func applyFlags(cfg *config.Config, f *cliFlags) {
	cfg.SourcePath = f.source
	cfg.OutputPath = f.output
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.workers != 0 {
		cfg.Workers = f.workers
	}
	if f.quality != 0 {
		cfg.JPEGQuality = f.quality
	}
	if f.manifest != "" {
		cfg.ManifestPath = f.manifest
	}
	if f.statusAddr != "" {
		cfg.StatusAddr = f.statusAddr
	}
}

func openManifest(cfg *config.Config, logger *observability.Logger) (repository.ManifestRepo, func(), error) {
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL manifest")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewManifestRepositoryPostgres(db), func() { db.Close() }, nil
	}

	logger.Infof("Using SQLite manifest at %s", cfg.ManifestPath)
	db, err := repository.NewSQLiteDB(cfg.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewManifestRepository(db), func() { db.Close() }, nil
}

func newStatusServer(addr string, sorter *services.SorterService, manifest repository.ManifestRepo, logger *observability.Logger) *http.Server {
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.Warnf("Failed to create HTTP metrics: %v", err)
		httpMetrics = nil
	}

	router := handlers.NewRouter(
		handlers.NewHealthHandler(),
		handlers.NewStatusHandler(sorter, manifest),
		httpMetrics,
	)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Status server error: %v", err)
		}
	}()

	return srv
}
