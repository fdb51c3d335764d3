package store

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// timeLayout is fixed width so text comparison in SQL orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

var itemColumns = []string{
	"i.id", "i.workspace_id", "i.source_id", "i.raw_content_id", "i.source_field",
	"i.content", "i.raw_content", "i.raw_created_at", "i.content_cluster_id",
	"i.created_at", "i.updated_at",
	"s.id", "s.kind", "s.current_state", "s.transition_num",
	"s.transition_start", "s.transition_end", "s.completed_at",
}

func itemSelect() sq.SelectBuilder {
	return sq.Select(itemColumns...).
		From("content_items i").
		Join("content_item_states s ON s.item_id = i.id")
}

type scanner interface{ Scan(dest ...any) error }

func scanItem(row scanner) (*Item, error) {
	var (
		item            Item
		rawCreated      string
		clusterID       sql.NullInt64
		created         string
		updated         string
		transitionStart sql.NullString
		transitionEnd   sql.NullString
		completedAt     sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.WorkspaceID,
		&item.SourceID,
		&item.RawContentID,
		&item.SourceField,
		&item.Content,
		&item.RawContent,
		&rawCreated,
		&clusterID,
		&created,
		&updated,
		&item.State.ID,
		&item.State.Kind,
		&item.State.CurrentState,
		&item.State.TransitionNum,
		&transitionStart,
		&transitionEnd,
		&completedAt,
	); err != nil {
		return nil, err
	}
	item.RawCreatedAt = parseTime(rawCreated)
	item.ClusterID = clusterID.Int64
	item.CreatedAt = parseTime(created)
	item.UpdatedAt = parseTime(updated)
	item.State.ItemID = item.ID
	item.State.TransitionStart = parseTime(transitionStart.String)
	item.State.TransitionEnd = parseTime(transitionEnd.String)
	item.State.CompletedAt = parseTime(completedAt.String)
	return &item, nil
}

var clusterColumns = []string{
	"id", "workspace_id", "num_items", "num_items_added", "num_items_unique",
	"exemplar_item_id", "stress_score", "priority_score", "created_at", "updated_at",
}

func clusterSelect() sq.SelectBuilder {
	return sq.Select(clusterColumns...).From("content_clusters")
}

func scanCluster(row scanner) (*Cluster, error) {
	var (
		cluster  Cluster
		exemplar sql.NullInt64
		created  string
		updated  string
	)
	if err := row.Scan(
		&cluster.ID,
		&cluster.WorkspaceID,
		&cluster.NumItems,
		&cluster.NumItemsAdded,
		&cluster.NumItemsUnique,
		&exemplar,
		&cluster.StressScore,
		&cluster.PriorityScore,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	cluster.ExemplarItemID = exemplar.Int64
	cluster.CreatedAt = parseTime(created)
	cluster.UpdatedAt = parseTime(updated)
	return &cluster, nil
}
