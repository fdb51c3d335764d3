package testsupport

import (
	"path/filepath"
	"testing"

	"contentflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Delays are zeroed so processor tests never sleep on wall-clock time.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Processor.EmptyIterationDelayMS = 0
	cfgVal.Processor.SkippedBatchDelayMS = 0
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBatchSize overrides the processor batch size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processor.BatchSize = size
	}
}

// WithMaxStateUpdates overrides the per-item retry bound.
func WithMaxStateUpdates(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processor.MaxStateUpdates = limit
	}
}

// WithSimilarityThreshold overrides the clustering similarity threshold.
func WithSimilarityThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Clustering.SimilarityThreshold = threshold
	}
}

// WithProcessor applies an arbitrary mutation to the processor section.
func WithProcessor(mutate func(*config.Processor)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.Processor)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
