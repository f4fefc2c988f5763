// Package config loads and validates the docgen service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Events     EventsConfig     `yaml:"events"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	DocumentsDir string `yaml:"documents_dir"` // canonical template bytes
	ArtifactsDir string `yaml:"artifacts_dir"` // generated, expiring outputs
	WorkDir      string `yaml:"work_dir"`      // disposable working copies
	DatabasePath string `yaml:"database_path"` // template metadata (SQLite)
}

// GenerationConfig controls the generation pipeline and artifact lifecycle.
type GenerationConfig struct {
	Retention         time.Duration `yaml:"retention"`          // artifact time-to-live
	SweepInterval     time.Duration `yaml:"sweep_interval"`     // expired-artifact sweep period
	MaxInputSize      int64         `yaml:"max_input_size"`     // bytes; larger templates are rejected
	AllowedExtensions []string      `yaml:"allowed_extensions"` // source package extensions
	ConverterPath     string        `yaml:"converter_path"`     // soffice binary
	ConversionTimeout time.Duration `yaml:"conversion_timeout"` // hard subprocess deadline
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// EventsConfig configures the optional NATS event publisher. Empty URL
// disables publishing.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing process env wins.
	if err := godotenv.Load(".env", ".env.local"); err != nil {
		// Missing .env files are fine; the config file is authoritative.
		if !os.IsNotExist(err) && !strings.Contains(err.Error(), "no such file") {
			fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration populated with defaults only, for use by
// one-shot CLI commands that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = "./data/documents"
	}
	if c.Storage.ArtifactsDir == "" {
		c.Storage.ArtifactsDir = "./data/artifacts"
	}
	if c.Storage.WorkDir == "" {
		c.Storage.WorkDir = "./data/work"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./data/docgen.db"
	}
	if c.Generation.Retention <= 0 {
		c.Generation.Retention = 30 * time.Minute
	}
	if c.Generation.SweepInterval <= 0 {
		c.Generation.SweepInterval = time.Minute
	}
	if c.Generation.MaxInputSize <= 0 {
		c.Generation.MaxInputSize = 25 << 20 // 25 MiB
	}
	if len(c.Generation.AllowedExtensions) == 0 {
		c.Generation.AllowedExtensions = []string{".docx", ".xlsx", ".pptx"}
	}
	if c.Generation.ConverterPath == "" {
		c.Generation.ConverterPath = "soffice"
	}
	if c.Generation.ConversionTimeout <= 0 {
		c.Generation.ConversionTimeout = 2 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "docgen"
	}
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Generation.SweepInterval > c.Generation.Retention {
		return fmt.Errorf("sweep_interval (%s) must not exceed retention (%s)",
			c.Generation.SweepInterval, c.Generation.Retention)
	}
	for _, ext := range c.Generation.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("allowed extension %q must start with a dot", ext)
		}
	}
	return nil
}

// ExtensionAllowed reports whether a source file extension is accepted.
func (c *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.Generation.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}
