package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProcessor(); err != nil {
		return err
	}
	if err := c.validateClustering(); err != nil {
		return err
	}
	if err := c.validateML(); err != nil {
		return err
	}
	if err := c.validateKeywords(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProcessor() error {
	p := c.Processor
	switch {
	case p.BatchSize <= 0:
		return errors.New("processor.batch_size must be positive")
	case p.MaxIterations <= 0:
		return errors.New("processor.max_iterations must be positive")
	case p.MaxStateUpdates <= 0:
		return errors.New("processor.max_state_updates must be positive")
	case p.StateTimeoutSeconds < 0:
		return errors.New("processor.state_timeout_seconds must not be negative")
	case p.EmptyIterationLimit < 0:
		return errors.New("processor.empty_iteration_limit must not be negative")
	case p.EmptyIterationDelayMS < 0 || p.SkippedBatchDelayMS < 0:
		return errors.New("processor delays must not be negative")
	case p.MaxIterationErrors <= 0:
		return errors.New("processor.max_iteration_errors must be positive")
	case p.MaxErrorRate <= 0 || p.MaxErrorRate > 1:
		return errors.New("processor.max_error_rate must be within (0, 1]")
	case p.ErrorRateMinItems < 0:
		return errors.New("processor.error_rate_min_items must not be negative")
	}
	return nil
}

func (c *Config) validateClustering() error {
	if c.Clustering.SimilarityThreshold < 0 || c.Clustering.SimilarityThreshold > 1 {
		return errors.New("clustering.similarity_threshold must be between 0 and 1")
	}
	if c.Clustering.StressIncrement < 0 {
		return errors.New("clustering.stress_increment must not be negative")
	}
	if c.Clustering.NewClusterPriority < 0 {
		return errors.New("clustering.new_cluster_priority must not be negative")
	}
	if c.Clustering.ReclusterBatchSize <= 0 {
		return errors.New("clustering.recluster_batch_size must be positive")
	}
	return nil
}

func (c *Config) validateML() error {
	switch c.ML.Backend {
	case MLBackendLocal:
	case MLBackendRemote:
		if c.ML.BaseURL == "" {
			return errors.New("ml.base_url is required when ml.backend is \"remote\"")
		}
	default:
		return fmt.Errorf("ml.backend: unsupported value %q", c.ML.Backend)
	}
	if c.ML.TimeoutSeconds <= 0 {
		return errors.New("ml.timeout_seconds must be positive")
	}
	if c.ML.BreakerFailureThreshold <= 0 {
		return errors.New("ml.breaker_failure_threshold must be positive")
	}
	return nil
}

func (c *Config) validateKeywords() error {
	if c.Keywords.MaxKeywords <= 0 {
		return errors.New("keywords.max_keywords must be positive")
	}
	if c.Keywords.MinTokenLength <= 0 {
		return errors.New("keywords.min_token_length must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
