package config

const (
	defaultDataDir                 = "~/.local/share/contentflow"
	defaultLogDir                  = "~/.local/share/contentflow/logs"
	defaultBatchSize               = 20
	defaultMaxIterations           = 1000
	defaultMaxStateUpdates         = 20
	defaultStateTimeoutSeconds     = 300
	defaultEmptyIterationLimit     = 3
	defaultEmptyIterationDelayMS   = 1000
	defaultSkippedBatchDelayMS     = 500
	defaultMaxIterationErrors      = 50
	defaultMaxErrorRate            = 0.5
	defaultErrorRateMinItems       = 100
	defaultSimilarityThreshold     = 0.8
	defaultStressIncrement         = 1.0
	defaultNewClusterPriority      = 1.0
	defaultReclusterBatchSize      = 50
	defaultMLBackend               = MLBackendLocal
	defaultMLTimeoutSeconds        = 30
	defaultBreakerFailureThreshold = 5
	defaultBreakerOpenSeconds      = 30
	defaultMaxKeywords             = 5
	defaultMinTokenLength          = 3
	defaultLogFormat               = "auto"
	defaultLogLevel                = "info"
	defaultMetricsBind             = "127.0.0.1:9464"
)

// Supported ML backends.
const (
	MLBackendLocal  = "local"
	MLBackendRemote = "remote"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Processor: Processor{
			BatchSize:             defaultBatchSize,
			MaxIterations:         defaultMaxIterations,
			MaxStateUpdates:       defaultMaxStateUpdates,
			StateTimeoutSeconds:   defaultStateTimeoutSeconds,
			EmptyIterationLimit:   defaultEmptyIterationLimit,
			EmptyIterationDelayMS: defaultEmptyIterationDelayMS,
			SkippedBatchDelayMS:   defaultSkippedBatchDelayMS,
			MaxIterationErrors:    defaultMaxIterationErrors,
			MaxErrorRate:          defaultMaxErrorRate,
			ErrorRateMinItems:     defaultErrorRateMinItems,
		},
		Clustering: Clustering{
			SimilarityThreshold: defaultSimilarityThreshold,
			StressIncrement:     defaultStressIncrement,
			NewClusterPriority:  defaultNewClusterPriority,
			ReclusterBatchSize:  defaultReclusterBatchSize,
		},
		ML: ML{
			Backend:                 defaultMLBackend,
			TimeoutSeconds:          defaultMLTimeoutSeconds,
			BreakerFailureThreshold: defaultBreakerFailureThreshold,
			BreakerOpenSeconds:      defaultBreakerOpenSeconds,
		},
		Keywords: Keywords{
			MaxKeywords:    defaultMaxKeywords,
			MinTokenLength: defaultMinTokenLength,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}
