package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/brconsult/fichevisite/internal"
	"github.com/brconsult/fichevisite/internal/compose"
	"github.com/brconsult/fichevisite/internal/domain"
	"github.com/brconsult/fichevisite/internal/handler"
	"github.com/brconsult/fichevisite/internal/metrics"
	"github.com/brconsult/fichevisite/internal/middleware"
	"github.com/brconsult/fichevisite/internal/render"
	"github.com/brconsult/fichevisite/internal/service"
	"github.com/brconsult/fichevisite/internal/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fiche editing HTTP API",
	Long: `Serve starts the HTTP server exposing the fiche editing API:
field updates, criterion ratings, attendance-sheet uploads, score
computation, JSON save/load and PDF export.

Configuration comes from the environment (or a .env file): PORT,
LOG_LEVEL, WKHTMLTOPDF_PATH, CATALOG_PATH, LOGO_PATH, STORAGE_PROVIDER
and friends. When wkhtmltopdf is not installed the server still runs,
with PDF export answering 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	composer, err := newComposer(cfg.LogoPath, cfg.IncludeClientName, catalog, logger)
	if err != nil {
		return err
	}

	// A missing wkhtmltopdf disables PDF export but not the rest of the API.
	var converter render.Converter
	if c, convErr := render.NewWKHTMLToPDFConverter(cfg.WKHTMLToPDFPath, logger); convErr != nil {
		if !errors.Is(convErr, render.ErrRendererUnavailable) {
			return fmt.Errorf("renderer initialization failed: %w", convErr)
		}
		logger.Warn("wkhtmltopdf not found, PDF export disabled")
	} else {
		converter = c
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Archive storage ready", "provider", cfg.StorageProvider)

	// Initialize services
	svc := service.NewReportService(catalog, composer, converter, store, logger)
	reportHandler := handler.NewReportHandler(svc, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)

	exportLimiter := middleware.NewRateLimiter(cfg.ExportRateLimit, cfg.ExportRateWindow, logger)
	exportLimitMw := middleware.NewRateLimitMiddleware(exportLimiter, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	reportHandler.Register(mux, exportLimitMw.Limit)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Archived fiches are served directly when stored on the filesystem.
	if cfg.StorageProvider == storage.ProviderFilesystem {
		archiveFS := http.FileServer(http.Dir(cfg.ArchivePath))
		mux.Handle("GET /archives/", http.StripPrefix("/archives/", archiveFS))
	}

	chain := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: chain(mux),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "fiche_id", svc.FicheID())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func loadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return domain.DefaultCatalog(), nil
	}
	catalog, err := domain.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	return catalog, nil
}

func newComposer(logoPath string, includeClientName bool, catalog *domain.Catalog, logger *slog.Logger) (*compose.Composer, error) {
	opts := compose.Options{IncludeClientName: includeClientName}
	if logoPath != "" {
		logo, err := os.ReadFile(logoPath)
		if err != nil {
			return nil, fmt.Errorf("logo read failed: %w", err)
		}
		opts.Logo = logo
	}
	return compose.New(opts, catalog, logger)
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		return storage.NewFilesystemStorage(storage.FilesystemConfig{
			BasePath: cfg.ArchivePath,
			BaseURL:  cfg.ArchiveURL,
		}, logger)
	}
}
