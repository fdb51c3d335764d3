package workflow

import (
	"fmt"
	"log/slog"
	"sort"

	"contentflow/internal/config"
	"contentflow/internal/metrics"
	"contentflow/internal/services"
	"contentflow/internal/statemachine"
)

// Definitions returns the state machine definitions of every built-in workflow.
func Definitions() []statemachine.Definition {
	return []statemachine.Definition{ClusterDefinition(), KeywordDefinition()}
}

// Machines builds the state machine registry the store needs to load states.
func Machines() (*statemachine.Registry, error) {
	return statemachine.NewRegistry(Definitions()...)
}

// SettingsFromConfig derives workflow limits from configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		StateTimeout:    cfg.StateTimeout(),
		MaxStateUpdates: cfg.Processor.MaxStateUpdates,
	}
}

// Registry maps workflow ids to workflows.
type Registry struct {
	workflows map[string]Workflow
}

// NewRegistry validates and registers workflows.
func NewRegistry(workflows ...Workflow) (*Registry, error) {
	r := &Registry{workflows: make(map[string]Workflow, len(workflows))}
	for _, wf := range workflows {
		id := wf.ID()
		if _, exists := r.workflows[id]; exists {
			return nil, services.Wrap(services.ErrConfiguration, "workflow", "register", fmt.Sprintf("duplicate workflow %q", id), nil)
		}
		if err := wf.Definition().Validate(); err != nil {
			return nil, fmt.Errorf("workflow %s: %w", id, err)
		}
		r.workflows[id] = wf
	}
	return r, nil
}

// Get returns the workflow registered under id.
func (r *Registry) Get(id string) (Workflow, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "lookup", fmt.Sprintf("unknown workflow %q", id), nil)
	}
	return wf, nil
}

// IDs returns the registered workflow ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies carries the services the built-in workflows call.
type Dependencies struct {
	Store      ItemStore
	Vectorizer Vectorizer
	Clusterer  Clusterer
	Keywords   KeywordExtractor
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// NewDefaultRegistry builds the registry of built-in workflows.
func NewDefaultRegistry(cfg *config.Config, deps Dependencies) (*Registry, error) {
	settings := SettingsFromConfig(cfg)
	return NewRegistry(
		NewClusterWorkflow(settings, deps.Store, deps.Vectorizer, deps.Clusterer, deps.Keywords, deps.Metrics, deps.Logger),
		NewKeywordWorkflow(settings, deps.Store, deps.Keywords, deps.Metrics, deps.Logger),
	)
}
