package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Renderer
	WKHTMLToPDFPath string // explicit binary path; auto-discovery when empty

	// Document layout
	CatalogPath       string // optional YAML catalog override
	LogoPath          string // optional branding logo for the client variant
	IncludeClientName bool

	// Export rate limiting (PDF rendering shells out, so it gets a cap)
	ExportRateLimit  int
	ExportRateWindow time.Duration

	// Storage Configuration
	StorageProvider string // "filesystem" or "s3"

	// Filesystem storage (development and single-host deployments)
	ArchivePath string // Base directory for archived fiches
	ArchiveURL  string // Base URL for accessing archived fiches

	// S3-compatible storage
	S3Endpoint        string // custom endpoint for MinIO/R2; empty for AWS
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3PublicURL       string // Optional custom domain URL
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		WKHTMLToPDFPath: getEnv("WKHTMLTOPDF_PATH", ""),

		CatalogPath:       getEnv("CATALOG_PATH", ""),
		LogoPath:          getEnv("LOGO_PATH", ""),
		IncludeClientName: getEnvBool("INCLUDE_CLIENT_NAME", false),

		ExportRateLimit:  getEnvInt("EXPORT_RATE_LIMIT", 10),
		ExportRateWindow: getEnvDuration("EXPORT_RATE_WINDOW", time.Minute),

		// Storage defaults to the local filesystem for development
		StorageProvider: getEnv("STORAGE_PROVIDER", "filesystem"),
		ArchivePath:     getEnv("ARCHIVE_PATH", "./archives"),
		ArchiveURL:      getEnv("ARCHIVE_URL", "http://localhost:8080/archives"),

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),
	}

	// Validate storage configuration
	if cfg.StorageProvider == "s3" {
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != "filesystem" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'filesystem' or 's3', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
