package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Processor contains configuration for the batch workflow processor.
type Processor struct {
	BatchSize             int     `toml:"batch_size"`
	MaxIterations         int     `toml:"max_iterations"`
	MaxStateUpdates       int     `toml:"max_state_updates"`
	StateTimeoutSeconds   int     `toml:"state_timeout_seconds"`
	EmptyIterationLimit   int     `toml:"empty_iteration_limit"`
	EmptyIterationDelayMS int     `toml:"empty_iteration_delay_ms"`
	SkippedBatchDelayMS   int     `toml:"skipped_batch_delay_ms"`
	MaxIterationErrors    int     `toml:"max_iteration_errors"`
	MaxErrorRate          float64 `toml:"max_error_rate"`
	ErrorRateMinItems     int     `toml:"error_rate_min_items"`
}

// Clustering contains configuration for near-duplicate clustering.
type Clustering struct {
	// SimilarityThreshold is the minimum similarity a candidate must reach to
	// be considered for joining. Must be within [0, 1].
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	StressIncrement     float64 `toml:"stress_increment"`
	NewClusterPriority  float64 `toml:"new_cluster_priority"`
	ReclusterBatchSize  int     `toml:"recluster_batch_size"`
}

// ML contains configuration for the vectorizer, similarity, and keyword services.
type ML struct {
	Backend                 string `toml:"backend"`
	BaseURL                 string `toml:"base_url"`
	APIKey                  string `toml:"api_key"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	BreakerFailureThreshold int    `toml:"breaker_failure_threshold"`
	BreakerOpenSeconds      int    `toml:"breaker_open_seconds"`
}

// Keywords contains configuration for local keyword extraction.
type Keywords struct {
	MaxKeywords    int `toml:"max_keywords"`
	MinTokenLength int `toml:"min_token_length"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for the prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Config encapsulates all configuration values for contentflow.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Processor: batch sizes, retry bounds, backoff, and error budgets
//   - Clustering: similarity threshold and cluster score tuning
//   - ML: vectorizer/similarity/keyword backend selection
//   - Keywords: local keyword extraction limits
//   - Logging: log format and level
//   - Metrics: prometheus exposition
type Config struct {
	Paths      Paths      `toml:"paths"`
	Processor  Processor  `toml:"processor"`
	Clustering Clustering `toml:"clustering"`
	ML         ML         `toml:"ml"`
	Keywords   Keywords   `toml:"keywords"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/contentflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("contentflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for processor operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the content store database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "content.db")
}

// StateTimeout returns the window during which an in-flight transition is left alone.
func (c *Config) StateTimeout() time.Duration {
	return time.Duration(c.Processor.StateTimeoutSeconds) * time.Second
}

// EmptyIterationDelay returns the base delay of the linear empty-iteration backoff.
func (c *Config) EmptyIterationDelay() time.Duration {
	return time.Duration(c.Processor.EmptyIterationDelayMS) * time.Millisecond
}

// SkippedBatchDelay returns the flat pause taken after a batch that was skipped entirely.
func (c *Config) SkippedBatchDelay() time.Duration {
	return time.Duration(c.Processor.SkippedBatchDelayMS) * time.Millisecond
}

// MLTimeout returns the per-request timeout for remote model calls.
func (c *Config) MLTimeout() time.Duration {
	return time.Duration(c.ML.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
