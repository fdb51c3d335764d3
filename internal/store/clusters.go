package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"contentflow/internal/services"
)

type membership struct {
	itemID      int64
	workspaceID string
	clusterID   int64
}

// ClusterItems is the single primitive every cluster mutation goes through.
//
// With secondID zero (or equal to firstID) it ensures first belongs to a
// cluster, creating a singleton when needed; an item that is already
// clustered is left where it is. Otherwise first is detached from its current
// cluster and attached to second's cluster, creating a cluster holding both
// when second is unclustered. Two items already sharing a cluster is a no-op.
func (s *Store) ClusterItems(ctx context.Context, firstID, secondID int64) (*Cluster, error) {
	var cluster *Cluster
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		clusterID, err := clusterItemsTx(ctx, tx, firstID, secondID, now)
		if err != nil {
			return err
		}
		cluster, err = loadCluster(ctx, tx, clusterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cluster, nil
}

// MergeClusters moves every member of source into target in one transaction.
// The emptied source cluster deletes itself.
func (s *Store) MergeClusters(ctx context.Context, sourceID, targetID int64) (*Cluster, error) {
	var merged *Cluster
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := loadCluster(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if sourceID == targetID {
			merged = target
			return nil
		}
		source, err := loadCluster(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		if source.WorkspaceID != target.WorkspaceID {
			return services.Wrap(services.ErrValidation, "store", "merge clusters",
				fmt.Sprintf("clusters %d and %d belong to different workspaces", sourceID, targetID), nil)
		}
		if target.ExemplarItemID == 0 {
			return fmt.Errorf("merge clusters: target %d has no exemplar", targetID)
		}

		members, err := clusterMemberIDs(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, memberID := range members {
			if _, err := clusterItemsTx(ctx, tx, memberID, target.ExemplarItemID, now); err != nil {
				return err
			}
		}
		merged, err = loadCluster(ctx, tx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func clusterItemsTx(ctx context.Context, tx *sql.Tx, firstID, secondID int64, now time.Time) (int64, error) {
	first, err := loadMembership(ctx, tx, firstID)
	if err != nil {
		return 0, err
	}
	if secondID == 0 || secondID == firstID {
		if first.clusterID != 0 {
			return first.clusterID, nil
		}
		return attachTx(ctx, tx, first, 0, now)
	}

	second, err := loadMembership(ctx, tx, secondID)
	if err != nil {
		return 0, err
	}
	if first.workspaceID != second.workspaceID {
		return 0, services.Wrap(services.ErrValidation, "store", "cluster items",
			fmt.Sprintf("items %d and %d belong to different workspaces", firstID, secondID), nil)
	}
	if first.clusterID != 0 && first.clusterID == second.clusterID {
		return first.clusterID, nil
	}

	if first.clusterID != 0 {
		if err := detachTx(ctx, tx, first.itemID, first.clusterID, now); err != nil {
			return 0, err
		}
	}
	target := second.clusterID
	if target == 0 {
		target, err = attachTx(ctx, tx, second, 0, now)
		if err != nil {
			return 0, err
		}
	}
	return attachTx(ctx, tx, first, target, now)
}

func loadMembership(ctx context.Context, tx *sql.Tx, itemID int64) (membership, error) {
	var (
		m         membership
		clusterID sql.NullInt64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, workspace_id, content_cluster_id FROM content_items WHERE id = ?`, itemID,
	).Scan(&m.itemID, &m.workspaceID, &clusterID)
	if errors.Is(err, sql.ErrNoRows) {
		return membership{}, fmt.Errorf("cluster item %d: %w", itemID, ErrItemNotFound)
	}
	if err != nil {
		return membership{}, fmt.Errorf("load item membership: %w", err)
	}
	m.clusterID = clusterID.Int64
	return m, nil
}

// attachTx adds the item to clusterID, or to a new cluster when clusterID is zero.
func attachTx(ctx context.Context, tx *sql.Tx, m membership, clusterID int64, now time.Time) (int64, error) {
	stamp := formatTime(now)
	if clusterID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO content_clusters (
                workspace_id, num_items, num_items_added, num_items_unique, exemplar_item_id,
                stress_score, priority_score, created_at, updated_at
            ) VALUES (?, 1, 1, 1, ?, 0, 0, ?, ?)`,
			m.workspaceID, m.itemID, stamp, stamp,
		)
		if err != nil {
			return 0, fmt.Errorf("create cluster: %w", err)
		}
		clusterID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE content_items SET content_cluster_id = ?, updated_at = ? WHERE id = ?`,
			clusterID, stamp, m.itemID,
		); err != nil {
			return 0, fmt.Errorf("assign cluster: %w", err)
		}
		return clusterID, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE content_items SET content_cluster_id = ?, updated_at = ? WHERE id = ?`,
		clusterID, stamp, m.itemID,
	); err != nil {
		return 0, fmt.Errorf("assign cluster: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE content_clusters
         SET num_items = num_items + 1,
             num_items_added = num_items_added + 1,
             exemplar_item_id = COALESCE(exemplar_item_id, ?),
             num_items_unique = (SELECT COUNT(DISTINCT content) FROM content_items WHERE content_cluster_id = ?),
             updated_at = ?
         WHERE id = ?`,
		m.itemID, clusterID, stamp, clusterID,
	)
	if err != nil {
		return 0, fmt.Errorf("grow cluster: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return 0, fmt.Errorf("attach item %d: cluster %d: %w", m.itemID, clusterID, ErrClusterNotFound)
	}
	return clusterID, nil
}

// detachTx removes the item from clusterID. A cluster left empty is deleted;
// otherwise a removed exemplar is replaced by the oldest remaining member.
func detachTx(ctx context.Context, tx *sql.Tx, itemID, clusterID int64, now time.Time) error {
	stamp := formatTime(now)
	if _, err := tx.ExecContext(ctx,
		`UPDATE content_items SET content_cluster_id = NULL, updated_at = ? WHERE id = ?`,
		stamp, itemID,
	); err != nil {
		return fmt.Errorf("clear cluster: %w", err)
	}

	var numItems int
	err := tx.QueryRowContext(ctx, `SELECT num_items FROM content_clusters WHERE id = ?`, clusterID).Scan(&numItems)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("detach item %d: cluster %d: %w", itemID, clusterID, ErrClusterNotFound)
	}
	if err != nil {
		return fmt.Errorf("load cluster size: %w", err)
	}

	if numItems <= 1 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM content_clusters WHERE id = ?`, clusterID); err != nil {
			return fmt.Errorf("delete empty cluster: %w", err)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE content_clusters
         SET num_items = num_items - 1,
             exemplar_item_id = CASE
                 WHEN exemplar_item_id IS NULL OR exemplar_item_id = ? THEN
                     (SELECT id FROM content_items WHERE content_cluster_id = ? ORDER BY raw_created_at, id LIMIT 1)
                 ELSE exemplar_item_id
             END,
             num_items_unique = (SELECT COUNT(DISTINCT content) FROM content_items WHERE content_cluster_id = ?),
             updated_at = ?
         WHERE id = ?`,
		itemID, clusterID, clusterID, stamp, clusterID,
	); err != nil {
		return fmt.Errorf("shrink cluster: %w", err)
	}
	return nil
}

func clusterMemberIDs(ctx context.Context, q dbtx, clusterID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM content_items WHERE content_cluster_id = ? ORDER BY id`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("list cluster members: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadCluster(ctx context.Context, q dbtx, id int64) (*Cluster, error) {
	query, args, err := clusterSelect().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster query: %w", err)
	}
	cluster, err := scanCluster(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %d: %w", id, ErrClusterNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load cluster: %w", err)
	}
	return cluster, nil
}

func queryClusters(ctx context.Context, q dbtx, builder sq.SelectBuilder) ([]*Cluster, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var clusters []*Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

// GetCluster fetches a cluster. A missing cluster yields nil, nil.
func (s *Store) GetCluster(ctx context.Context, id int64) (*Cluster, error) {
	cluster, err := loadCluster(ensureContext(ctx), s.db, id)
	if errors.Is(err, ErrClusterNotFound) {
		return nil, nil
	}
	return cluster, err
}

// GetClusterItems returns the current members of a cluster.
func (s *Store) GetClusterItems(ctx context.Context, clusterID int64) ([]*Item, error) {
	return s.ListItems(ctx, ItemFilter{ClusterID: clusterID})
}

// ClusterSizeForItem returns the member count of the item's cluster, or zero
// when the item is unclustered or missing.
func (s *Store) ClusterSizeForItem(ctx context.Context, itemID int64) (int, error) {
	var size int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT c.num_items FROM content_items i
         JOIN content_clusters c ON c.id = i.content_cluster_id
         WHERE i.id = ?`, itemID,
	).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cluster size for item: %w", err)
	}
	return size, nil
}

// UpdateCluster persists the heuristic scores of a cluster. Membership
// bookkeeping is owned by ClusterItems and is not written here.
func (s *Store) UpdateCluster(ctx context.Context, cluster *Cluster) error {
	if cluster == nil {
		return errors.New("cluster is nil")
	}
	cluster.UpdatedAt = s.now()
	res, err := s.execWithRetry(ctx,
		`UPDATE content_clusters SET stress_score = ?, priority_score = ?, updated_at = ? WHERE id = ?`,
		cluster.StressScore, cluster.PriorityScore, formatTime(cluster.UpdatedAt), cluster.ID,
	)
	if err != nil {
		return fmt.Errorf("update cluster: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update cluster %d: %w", cluster.ID, ErrClusterNotFound)
	}
	return nil
}

// AdjustClusterScores adds the deltas to a cluster's scores atomically.
func (s *Store) AdjustClusterScores(ctx context.Context, clusterID int64, stressDelta, priorityDelta float64) (*Cluster, error) {
	var cluster *Cluster
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE content_clusters
             SET stress_score = stress_score + ?, priority_score = priority_score + ?, updated_at = ?
             WHERE id = ?`,
			stressDelta, priorityDelta, formatTime(s.now()), clusterID,
		); err != nil {
			return fmt.Errorf("adjust cluster scores: %w", err)
		}
		var err error
		cluster, err = loadCluster(ctx, tx, clusterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cluster, nil
}

// GetPriorityClusters returns clusters with a positive priority, highest first.
func (s *Store) GetPriorityClusters(ctx context.Context, workspaceID string, limit int) ([]*Cluster, error) {
	builder := clusterSelect().
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Gt{"priority_score": 0}).
		OrderBy("priority_score DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	clusters, err := queryClusters(ensureContext(ctx), s.db, builder)
	if err != nil {
		return nil, fmt.Errorf("priority clusters: %w", err)
	}
	return clusters, nil
}

// ListClusters returns a workspace's clusters, largest first.
func (s *Store) ListClusters(ctx context.Context, workspaceID string, limit int) ([]*Cluster, error) {
	builder := clusterSelect().
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("num_items DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	clusters, err := queryClusters(ensureContext(ctx), s.db, builder)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	return clusters, nil
}
