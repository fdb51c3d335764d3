package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"contentflow/internal/services"
	"contentflow/internal/statemachine"
)

// InsertItem persists a new item with a state of the given kind moved to
// ready. When a non-failed item with the same (workspace, raw content id,
// source field) exists and force is false, the existing item is returned with
// ErrDuplicateItem. A failed existing item, or any existing item when force is
// set, is deleted and replaced in the same transaction.
func (s *Store) InsertItem(ctx context.Context, kind string, n NewItem, force bool) (InsertResult, error) {
	if err := validateNewItem(n); err != nil {
		return InsertResult{}, err
	}
	def, err := s.machines.Lookup(kind)
	if err != nil {
		return InsertResult{}, err
	}

	var (
		newID     int64
		duplicate *Item
		replaced  bool
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		newID, duplicate, replaced = 0, nil, false

		existing, err := queryItem(ctx, tx, itemSelect().Where(sq.Eq{
			"i.workspace_id":   n.WorkspaceID,
			"i.raw_content_id": n.RawContentID,
			"i.source_field":   n.SourceField,
		}))
		switch {
		case err == nil:
			if existing.State.CurrentState != statemachine.StateFailed && !force {
				duplicate = existing
				return nil
			}
			if err := deleteItemTx(ctx, tx, existing, s.now()); err != nil {
				return err
			}
			replaced = true
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup existing item: %w", err)
		}

		now := s.now()
		rawCreated := n.RawCreatedAt
		if rawCreated.IsZero() {
			rawCreated = now
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO content_items (
                workspace_id, source_id, raw_content_id, source_field, content, raw_content,
                raw_created_at, content_cluster_id, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			n.WorkspaceID,
			n.SourceID,
			n.RawContentID,
			n.SourceField,
			n.Content,
			n.RawContent,
			formatTime(rawCreated),
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		newID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		model := statemachine.NewModel(def)
		if err := model.TransitionTo(def, statemachine.StateReady, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO content_item_states (
                item_id, workspace_id, kind, current_state, transition_num,
                transition_start, transition_end, completed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newID,
			n.WorkspaceID,
			model.Kind,
			model.CurrentState,
			model.TransitionNum,
			nullableTime(model.TransitionStart),
			nullableTime(model.TransitionEnd),
			nullableTime(model.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert item state: %w", err)
		}
		return nil
	})
	if err != nil {
		return InsertResult{}, err
	}
	if duplicate != nil {
		return InsertResult{Item: duplicate}, ErrDuplicateItem
	}

	item, err := s.GetItem(ctx, newID)
	if err != nil {
		return InsertResult{}, err
	}
	return InsertResult{Item: item, Replaced: replaced}, nil
}

func validateNewItem(n NewItem) error {
	var missing []string
	if strings.TrimSpace(n.WorkspaceID) == "" {
		missing = append(missing, "workspace_id")
	}
	if strings.TrimSpace(n.RawContentID) == "" {
		missing = append(missing, "raw_content_id")
	}
	if strings.TrimSpace(n.SourceField) == "" {
		missing = append(missing, "source_field")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "store", "insert item", "missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// GetItem fetches an item with its state. A missing item yields nil, nil.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	item, err := queryItem(ensureContext(ctx), s.db, itemSelect().Where(sq.Eq{"i.id": id}))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// UpdateItem persists the mutable fields of an item. Raw content is immutable.
func (s *Store) UpdateItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = s.now()
	res, err := s.execWithRetry(ctx,
		`UPDATE content_items SET source_id = ?, content = ?, updated_at = ? WHERE id = ?`,
		item.SourceID,
		item.Content,
		formatTime(item.UpdatedAt),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update item %d: %w", item.ID, ErrItemNotFound)
	}
	return nil
}

// DeleteItem detaches the item from its cluster and removes its state,
// keywords, vector, and row as one unit of work.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := queryItem(ctx, tx, itemSelect().Where(sq.Eq{"i.id": id}))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delete item %d: %w", id, ErrItemNotFound)
		}
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		return deleteItemTx(ctx, tx, item, s.now())
	})
}

func deleteItemTx(ctx context.Context, tx *sql.Tx, item *Item, now time.Time) error {
	if item.ClusterID != 0 {
		if err := detachTx(ctx, tx, item.ID, item.ClusterID, now); err != nil {
			return err
		}
	}
	statements := []struct {
		name  string
		query string
	}{
		{"delete item state", `DELETE FROM content_item_states WHERE item_id = ?`},
		{"delete item keywords", `DELETE FROM content_item_keywords WHERE item_id = ?`},
		{"delete item vector", `DELETE FROM content_item_vectors WHERE item_id = ?`},
		{"delete item", `DELETE FROM content_items WHERE id = ?`},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, item.ID); err != nil {
			return fmt.Errorf("%s: %w", stmt.name, err)
		}
	}
	return nil
}

// GetItemsInBatchState returns up to limit items of kind currently in state.
// Selection is randomized so concurrent processors rarely pick the same rows
// and a poisoned item cannot pin the head of the batch.
func (s *Store) GetItemsInBatchState(ctx context.Context, workspaceID, kind, state string, limit int) ([]*Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	builder := itemSelect().
		Where(sq.Eq{"i.workspace_id": workspaceID, "s.kind": kind, "s.current_state": state}).
		OrderBy("RANDOM()").
		Limit(uint64(limit))
	items, err := queryItems(ensureContext(ctx), s.db, builder)
	if err != nil {
		return nil, fmt.Errorf("items in batch state: %w", err)
	}
	return items, nil
}

// ListItems returns items matching filter ordered by id.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]*Item, error) {
	builder := itemSelect().OrderBy("i.id")
	if filter.WorkspaceID != "" {
		builder = builder.Where(sq.Eq{"i.workspace_id": filter.WorkspaceID})
	}
	if filter.Kind != "" {
		builder = builder.Where(sq.Eq{"s.kind": filter.Kind})
	}
	if len(filter.States) > 0 {
		builder = builder.Where(sq.Eq{"s.current_state": filter.States})
	}
	if filter.ClusterID != 0 {
		builder = builder.Where(sq.Eq{"i.content_cluster_id": filter.ClusterID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	items, err := queryItems(ensureContext(ctx), s.db, builder)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// StateCounts returns item counts grouped by current state. An empty kind
// counts every workflow in the workspace.
func (s *Store) StateCounts(ctx context.Context, workspaceID, kind string) (map[string]int, error) {
	builder := sq.Select("current_state", "COUNT(1)").
		From("content_item_states").
		Where(sq.Eq{"workspace_id": workspaceID}).
		GroupBy("current_state")
	if kind != "" {
		builder = builder.Where(sq.Eq{"kind": kind})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build state counts: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("state counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

func queryItem(ctx context.Context, q dbtx, builder sq.SelectBuilder) (*Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}
	return scanItem(q.QueryRowContext(ctx, query, args...))
}

func queryItems(ctx context.Context, q dbtx, builder sq.SelectBuilder) ([]*Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
