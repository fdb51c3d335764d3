package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"contentflow/internal/metrics"
	"contentflow/internal/similarity"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
)

const (
	ClusterWorkflowID = "cluster"

	StateVectorized = "vectorized"
	StateClustered  = "clustered"
)

// Vectorizer computes and persists item vectors.
type Vectorizer interface {
	Vectorize(ctx context.Context, items []*store.Item) error
}

// KeywordExtractor ranks keywords for a single item.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, item *store.Item) ([]store.Keyword, error)
}

// Clusterer places an item into its best cluster.
type Clusterer interface {
	AddItemToBestCluster(ctx context.Context, item *store.Item, targetState string, candidates []similarity.Candidate) (*store.Cluster, error)
}

// ClusterDefinition returns ready -> vectorized -> clustered -> completed.
func ClusterDefinition() statemachine.Definition {
	return statemachine.Extend(ClusterWorkflowID, []string{StateVectorized, StateClustered}, statemachine.Table{
		statemachine.StateReady: {StateVectorized, statemachine.StateFailed},
		StateVectorized:         {StateClustered, statemachine.StateFailed},
		StateClustered:          {statemachine.StateCompleted, statemachine.StateFailed},
	})
}

// ClusterWorkflow vectorizes items, clusters near duplicates, and extracts
// keywords.
type ClusterWorkflow struct {
	*Base
	vectorizer Vectorizer
	clusterer  Clusterer
	keywords   KeywordExtractor
}

// NewClusterWorkflow wires the cluster workflow handlers.
func NewClusterWorkflow(settings Settings, st ItemStore, vectorizer Vectorizer, clusterer Clusterer, keywords KeywordExtractor, m *metrics.Metrics, logger *slog.Logger) *ClusterWorkflow {
	w := &ClusterWorkflow{
		Base:       NewBase(ClusterDefinition(), settings, st, m, logger),
		vectorizer: vectorizer,
		clusterer:  clusterer,
		keywords:   keywords,
	}
	w.Handle(statemachine.StateReady, Handler{Batch: true, Run: w.vectorize})
	w.Handle(StateVectorized, Handler{Batch: true, Run: w.cluster})
	w.Handle(StateClustered, Handler{Run: w.extractKeywords})
	return w
}

// vectorize marks usable items in flight, vectorizes them in one call, and
// completes their transitions. On failure the items stay in flight until the
// state timeout lets the processor retry them.
func (w *ClusterWorkflow) vectorize(ctx context.Context, items []*store.Item) error {
	usable, err := w.prepare(ctx, items)
	if err != nil || len(usable) == 0 {
		return err
	}
	for _, item := range usable {
		if _, err := w.store.StartTransitionToState(ctx, item.ID, StateVectorized); err != nil {
			return err
		}
	}
	if err := w.vectorizer.Vectorize(ctx, usable); err != nil {
		return fmt.Errorf("vectorize %d items: %w", len(usable), err)
	}
	for _, item := range usable {
		if _, err := w.store.TransitionItemState(ctx, item.ID, StateVectorized); err != nil {
			return err
		}
	}
	return nil
}

// cluster assigns items one after another since each placement can change
// the candidates of the next.
func (w *ClusterWorkflow) cluster(ctx context.Context, items []*store.Item) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.clusterer.AddItemToBestCluster(ctx, item, StateClustered, nil); err != nil {
			return fmt.Errorf("cluster item %d: %w", item.ID, err)
		}
	}
	return nil
}

func (w *ClusterWorkflow) extractKeywords(ctx context.Context, items []*store.Item) error {
	for _, item := range items {
		if _, err := w.store.StartTransitionToState(ctx, item.ID, statemachine.StateCompleted); err != nil {
			return err
		}
		if err := storeKeywords(ctx, w.store, w.keywords, item); err != nil {
			return err
		}
		if _, err := w.store.TransitionItemState(ctx, item.ID, statemachine.StateCompleted); err != nil {
			return err
		}
	}
	return nil
}

func storeKeywords(ctx context.Context, st ItemStore, extractor KeywordExtractor, item *store.Item) error {
	keywords, err := extractor.ExtractKeywords(ctx, item)
	if err != nil {
		return fmt.Errorf("extract keywords for item %d: %w", item.ID, err)
	}
	return st.ReplaceKeywords(ctx, item.ID, keywords)
}
