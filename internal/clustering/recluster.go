package clustering

import (
	"context"
	"fmt"

	"contentflow/internal/logging"
	"contentflow/internal/store"
)

// ReclusterSummary reports one re-clustering pass.
type ReclusterSummary struct {
	Examined int
	Merged   int
	Reset    int
}

// ProcessClusters examines up to limit clusters with positive priority,
// highest first. When the exemplar's best clustered match sits in another
// cluster the smaller cluster is merged into the larger one; otherwise the
// cluster's priority is reset to zero.
func (e *Engine) ProcessClusters(ctx context.Context, workspaceID string, limit int) (ReclusterSummary, error) {
	var summary ReclusterSummary
	clusters, err := e.store.GetPriorityClusters(ctx, workspaceID, limit)
	if err != nil {
		return summary, err
	}

	for _, candidate := range clusters {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		cluster, err := e.store.GetCluster(ctx, candidate.ID)
		if err != nil {
			return summary, err
		}
		if cluster == nil {
			continue
		}
		summary.Examined++

		merged, err := e.reconsider(ctx, cluster)
		if err != nil {
			return summary, fmt.Errorf("recluster %d: %w", cluster.ID, err)
		}
		if merged {
			summary.Merged++
			e.metrics.ReclusterResult("merged")
			continue
		}
		cluster.PriorityScore = 0
		if err := e.store.UpdateCluster(ctx, cluster); err != nil {
			return summary, err
		}
		summary.Reset++
		e.metrics.ReclusterResult("reset")
	}

	e.logger.Info("recluster pass complete",
		logging.String(logging.FieldWorkspaceID, workspaceID),
		logging.Int("examined", summary.Examined),
		logging.Int("merged", summary.Merged),
		logging.Int("reset", summary.Reset),
	)
	return summary, nil
}

func (e *Engine) reconsider(ctx context.Context, cluster *store.Cluster) (bool, error) {
	if cluster.ExemplarItemID == 0 {
		return false, nil
	}
	exemplar, err := e.store.GetItem(ctx, cluster.ExemplarItemID)
	if err != nil || exemplar == nil {
		return false, err
	}
	candidates, err := e.similar.RequestSimilar(ctx, exemplar, e.opts.Threshold)
	if err != nil {
		return false, err
	}
	ranked, err := e.rank(ctx, candidates)
	if err != nil {
		return false, err
	}
	match, ok := bestMatch(ranked, exemplar.ID)
	if !ok {
		return false, nil
	}
	matchItem, err := e.store.GetItem(ctx, match.itemID)
	if err != nil || matchItem == nil {
		return false, err
	}
	if matchItem.ClusterID == 0 || matchItem.ClusterID == cluster.ID {
		return false, nil
	}

	other, err := e.store.GetCluster(ctx, matchItem.ClusterID)
	if err != nil || other == nil {
		return false, err
	}
	source, target := cluster, other
	if other.NumItems < cluster.NumItems {
		source, target = other, cluster
	}
	result, err := e.store.MergeClusters(ctx, source.ID, target.ID)
	if err != nil {
		return false, err
	}
	e.logger.Info("merged clusters",
		logging.Int64("source_cluster_id", source.ID),
		logging.Int64(logging.FieldClusterID, result.ID),
		logging.Int("num_items", result.NumItems),
	)
	return true, nil
}
