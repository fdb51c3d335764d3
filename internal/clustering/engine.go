package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/similarity"
	"contentflow/internal/store"
)

// Store is the subset of the content store the engine mutates.
type Store interface {
	GetItem(ctx context.Context, id int64) (*store.Item, error)
	GetCluster(ctx context.Context, id int64) (*store.Cluster, error)
	ClusterSizeForItem(ctx context.Context, itemID int64) (int, error)
	ClusterItems(ctx context.Context, firstID, secondID int64) (*store.Cluster, error)
	MergeClusters(ctx context.Context, sourceID, targetID int64) (*store.Cluster, error)
	AdjustClusterScores(ctx context.Context, clusterID int64, stressDelta, priorityDelta float64) (*store.Cluster, error)
	UpdateCluster(ctx context.Context, cluster *store.Cluster) error
	GetPriorityClusters(ctx context.Context, workspaceID string, limit int) ([]*store.Cluster, error)
	StartTransitionToState(ctx context.Context, itemID int64, to string) (*store.Item, error)
	TransitionItemState(ctx context.Context, itemID int64, to string) (*store.Item, error)
}

// SimilarityService finds items similar to a given one. Results may be
// unordered and may include the item itself.
type SimilarityService interface {
	RequestSimilar(ctx context.Context, item *store.Item, threshold float64) ([]similarity.Candidate, error)
}

// Options tunes clustering heuristics.
type Options struct {
	Threshold          float64
	StressIncrement    float64
	NewClusterPriority float64
}

// Engine assigns items to clusters and re-evaluates clusters.
type Engine struct {
	store   Store
	similar SimilarityService
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine constructs an engine.
func NewEngine(st Store, similar SimilarityService, opts Options, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:   st,
		similar: similar,
		opts:    opts,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "clustering"),
	}
}

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() float64 {
	return e.opts.Threshold
}

type rankedCandidate struct {
	score       float64
	itemID      int64
	clusterSize int
}

// rank attaches current cluster sizes and orders candidates descending by
// (score, cluster size, id).
func (e *Engine) rank(ctx context.Context, candidates []similarity.Candidate) ([]rankedCandidate, error) {
	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		size, err := e.store.ClusterSizeForItem(ctx, c.ItemID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rankedCandidate{score: c.Score, itemID: c.ItemID, clusterSize: size})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.clusterSize != b.clusterSize {
			return a.clusterSize > b.clusterSize
		}
		return a.itemID > b.itemID
	})
	return ranked, nil
}

// bestMatch returns the first ranked candidate other than itemID that already
// belongs to a cluster.
func bestMatch(ranked []rankedCandidate, itemID int64) (rankedCandidate, bool) {
	for _, c := range ranked {
		if c.itemID == itemID {
			continue
		}
		if c.clusterSize > 0 {
			return c, true
		}
	}
	return rankedCandidate{}, false
}

// AddItemToBestCluster places item into the best matching established
// cluster, or a new singleton when nothing qualifies. A nil candidates slice
// asks the similarity service; an empty one means "no matches". When
// targetState is set the attempt is recorded before the similarity service
// is asked and the item is transitioned to it afterwards.
func (e *Engine) AddItemToBestCluster(ctx context.Context, item *store.Item, targetState string, candidates []similarity.Candidate) (*store.Cluster, error) {
	if item == nil {
		return nil, fmt.Errorf("add item to cluster: item is nil")
	}
	if targetState != "" {
		if _, err := e.store.StartTransitionToState(ctx, item.ID, targetState); err != nil {
			return nil, err
		}
	}
	if candidates == nil {
		found, err := e.similar.RequestSimilar(ctx, item, e.opts.Threshold)
		if err != nil {
			return nil, fmt.Errorf("request similar for item %d: %w", item.ID, err)
		}
		candidates = found
	}
	ranked, err := e.rank(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("rank candidates for item %d: %w", item.ID, err)
	}

	var cluster *store.Cluster
	if match, ok := bestMatch(ranked, item.ID); ok {
		cluster, err = e.store.ClusterItems(ctx, item.ID, match.itemID)
		if err != nil {
			return nil, err
		}
		e.metrics.ClusterAssignment("joined")
		e.logger.Debug("item joined cluster",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int64(logging.FieldClusterID, cluster.ID),
			logging.Int64("match_item_id", match.itemID),
			logging.Float64("score", match.score),
		)
	} else {
		cluster, err = e.store.ClusterItems(ctx, item.ID, 0)
		if err != nil {
			return nil, err
		}
		if !item.Clustered() && cluster.NumItems == 1 && e.opts.NewClusterPriority > 0 {
			cluster, err = e.store.AdjustClusterScores(ctx, cluster.ID, 0, e.opts.NewClusterPriority)
			if err != nil {
				return nil, err
			}
		}
		e.metrics.ClusterAssignment("created")
		e.logger.Debug("item started cluster",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int64(logging.FieldClusterID, cluster.ID),
		)
	}

	if cluster.NumItems > 2 && e.opts.StressIncrement != 0 {
		cluster, err = e.store.AdjustClusterScores(ctx, cluster.ID, e.opts.StressIncrement, e.opts.StressIncrement)
		if err != nil {
			return nil, err
		}
	}

	if targetState != "" {
		if _, err := e.store.TransitionItemState(ctx, item.ID, targetState); err != nil {
			return nil, err
		}
	}
	return cluster, nil
}
