package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"contentflow/internal/clustering"
	"contentflow/internal/config"
	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/services/mlclient"
	"contentflow/internal/similarity"
	"contentflow/internal/store"
	"contentflow/internal/workflow"
)

// modelBackend is satisfied by both the local and the remote model services.
type modelBackend interface {
	workflow.Vectorizer
	workflow.KeywordExtractor
	clustering.SimilarityService
}

// application bundles the wired services a command needs.
type application struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     *store.Store
	engine    *clustering.Engine
	workflows *workflow.Registry
}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app *application
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// application opens the store and wires services on first use.
func (c *commandContext) application() (*application, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	machines, err := workflow.Machines()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg, machines)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	backend, err := newModelBackend(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	engine := clustering.NewEngine(st, backend, clustering.Options{
		Threshold:          cfg.Clustering.SimilarityThreshold,
		StressIncrement:    cfg.Clustering.StressIncrement,
		NewClusterPriority: cfg.Clustering.NewClusterPriority,
	}, m, logger)
	registry, err := workflow.NewDefaultRegistry(cfg, workflow.Dependencies{
		Store:      st,
		Vectorizer: backend,
		Clusterer:  engine,
		Keywords:   backend,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	c.app = &application{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		store:     st,
		engine:    engine,
		workflows: registry,
	}
	return c.app, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.store.Close()
	c.app = nil
	return err
}

func newModelBackend(cfg *config.Config, st *store.Store, logger *slog.Logger) (modelBackend, error) {
	if cfg.ML.Backend == config.MLBackendRemote {
		client, err := mlclient.New(mlclient.Options{
			BaseURL:          cfg.ML.BaseURL,
			APIKey:           cfg.ML.APIKey,
			Timeout:          cfg.MLTimeout(),
			FailureThreshold: cfg.ML.BreakerFailureThreshold,
			OpenTimeout:      time.Duration(cfg.ML.BreakerOpenSeconds) * time.Second,
			MaxKeywords:      cfg.Keywords.MaxKeywords,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return similarity.NewLocal(st, similarity.Options{
		MaxKeywords:    cfg.Keywords.MaxKeywords,
		MinTokenLength: cfg.Keywords.MinTokenLength,
	}, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireWorkspace(workspace string) (string, error) {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return "", fmt.Errorf("--workspace is required")
	}
	return workspace, nil
}
