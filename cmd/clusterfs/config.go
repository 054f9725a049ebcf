package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration. Values are loaded from a single YAML file
// named by --config or CLUSTERFS_CONFIG; command-line flags override them.
type Config struct {
	// Container is the path of the container file.
	Container string `yaml:"container"`

	// MinClusterSize must match the size the container was created with.
	// Default: 64
	MinClusterSize int `yaml:"min_cluster_size"`

	// Growth is "quadratic" or "exponential".
	Growth string `yaml:"growth"`

	// CacheSize is the number of cached cluster headers.
	CacheSize int `yaml:"cache_size"`

	// Codec compresses blobs written with --blob: none, lz4 or zstd.
	Codec string `yaml:"codec"`

	// IOLimit caps scan and export reads in bytes per second. 0 is unlimited.
	IOLimit int64 `yaml:"io_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Export configures the export target.
	Export ExportConfig `yaml:"export"`
}

// ExportConfig selects and configures an object store.
type ExportConfig struct {
	// Target is "local", "minio" or "s3".
	Target string `yaml:"target"`

	// Prefix is prepended to every object name.
	Prefix string `yaml:"prefix"`

	// Dir is the destination directory for the local target.
	Dir string `yaml:"dir"`

	// Bucket is the destination bucket for the minio and s3 targets.
	Bucket string `yaml:"bucket"`

	// Endpoint is the MinIO host:port, or an S3-compatible endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// Region is the AWS region for the s3 target.
	Region string `yaml:"region"`

	// AccessKey and SecretKey are MinIO static credentials. S3 uses the
	// default AWS credential chain.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// Secure enables TLS for MinIO.
	Secure bool `yaml:"secure"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		MinClusterSize: 64,
		Growth:         "quadratic",
		CacheSize:      31,
		Codec:          "none",
		LogLevel:       "warn",
		Export: ExportConfig{
			Target: "local",
		},
	}
}

// LoadConfig loads path over the defaults. An empty path falls back to
// CLUSTERFS_CONFIG; with neither set the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CLUSTERFS_CONFIG")
	}
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that do not depend on the command.
func (c *Config) Validate() error {
	var errs []error
	switch c.MinClusterSize {
	case 16, 32, 64, 128, 256:
	default:
		errs = append(errs, fmt.Errorf("min_cluster_size must be 16, 32, 64, 128 or 256, got %d", c.MinClusterSize))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative"))
	}
	if c.IOLimit < 0 {
		errs = append(errs, fmt.Errorf("io_limit must not be negative"))
	}
	switch c.Export.Target {
	case "local", "minio", "s3":
	default:
		errs = append(errs, fmt.Errorf("export.target must be local, minio or s3, got %q", c.Export.Target))
	}
	return errors.Join(errs...)
}
