package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultWorkers     = 30
	MaxWorkers         = 256
	DefaultJPEGQuality = 95
	DefaultLogLevel    = "INFO"
	defaultConfigFile  = "photosort.json"
)

// Config holds all application configuration
type Config struct {
	SourcePath   string `json:"sourcePath"`
	OutputPath   string `json:"outputPath"`
	Workers      int    `json:"workers"`
	JPEGQuality  int    `json:"jpegQuality"`
	LogLevel     string `json:"logLevel"`
	ManifestPath string `json:"manifestPath"`
	DatabaseURL  string `json:"databaseUrl"`
	StatusAddr   string `json:"statusAddr"`
}

// UsePostgres returns true if the manifest should go to PostgreSQL
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// ManifestEnabled reports whether a run manifest is recorded at all
func (c *Config) ManifestEnabled() bool {
	return c.ManifestPath != "" || c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Workers:     DefaultWorkers,
		JPEGQuality: DefaultJPEGQuality,
		LogLevel:    DefaultLogLevel,
	}
}

// Load builds the configuration from defaults, an optional JSON file and
// the environment. An explicitly named file must exist; the default
// photosort.json is read only when present.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	explicit := true
	if configPath == "" {
		configPath = os.Getenv("PHOTOSORT_CONFIG")
	}
	if configPath == "" {
		configPath = defaultConfigFile
		explicit = false
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if workers := os.Getenv("PHOTOSORT_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("PHOTOSORT_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if quality := os.Getenv("PHOTOSORT_JPEG_QUALITY"); quality != "" {
		q, err := strconv.Atoi(quality)
		if err != nil {
			return fmt.Errorf("PHOTOSORT_JPEG_QUALITY: %w", err)
		}
		cfg.JPEGQuality = q
	}
	if level := os.Getenv("PHOTOSORT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if path := os.Getenv("PHOTOSORT_MANIFEST_PATH"); path != "" {
		cfg.ManifestPath = path
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if addr := os.Getenv("PHOTOSORT_STATUS_ADDR"); addr != "" {
		cfg.StatusAddr = addr
	}
	return nil
}

// Validate checks the final configuration and makes the paths absolute
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return errors.New("source path is required")
	}
	if c.OutputPath == "" {
		return errors.New("output path is required")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, c.Workers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	src, err := filepath.Abs(c.SourcePath)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path %s is not a directory", src)
	}
	c.SourcePath = src

	out, err := filepath.Abs(c.OutputPath)
	if err != nil {
		return err
	}
	c.OutputPath = out

	return nil
}
