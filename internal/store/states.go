package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"contentflow/internal/statemachine"
)

// GetItemState returns the persisted state of an item.
func (s *Store) GetItemState(ctx context.Context, itemID int64) (*ItemState, error) {
	state, err := loadState(ensureContext(ctx), s.db, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item state %d: %w", itemID, ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item state: %w", err)
	}
	return state, nil
}

// ValidateTransition checks the item's current state may move to to without
// recording an attempt.
func (s *Store) ValidateTransition(ctx context.Context, itemID int64, to string) error {
	state, err := s.GetItemState(ctx, itemID)
	if err != nil {
		return err
	}
	def, err := s.machines.Lookup(state.Kind)
	if err != nil {
		return err
	}
	return def.ValidateTransition(state.CurrentState, to)
}

// TransitionItemState moves an item to to. The attempt counter is persisted
// even when the transition is rejected, so repeated bad attempts still reach
// the retry bound.
func (s *Store) TransitionItemState(ctx context.Context, itemID int64, to string) (*Item, error) {
	return s.applyTransition(ctx, itemID, func(def statemachine.Definition, model *statemachine.Model, now time.Time) error {
		return model.TransitionTo(def, to, now)
	})
}

// StartTransitionToState marks an item as in flight towards to. A later
// TransitionItemState to the same target completes it without counting a
// second attempt.
func (s *Store) StartTransitionToState(ctx context.Context, itemID int64, to string) (*Item, error) {
	return s.applyTransition(ctx, itemID, func(def statemachine.Definition, model *statemachine.Model, now time.Time) error {
		return model.StartTransition(def, to, now)
	})
}

func (s *Store) applyTransition(ctx context.Context, itemID int64, apply func(statemachine.Definition, *statemachine.Model, time.Time) error) (*Item, error) {
	var transitionErr error
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		transitionErr = nil
		state, err := loadState(ctx, tx, itemID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transition item %d: %w", itemID, ErrItemNotFound)
		}
		if err != nil {
			return fmt.Errorf("load item state: %w", err)
		}
		def, err := s.machines.Lookup(state.Kind)
		if err != nil {
			return err
		}
		transitionErr = apply(def, &state.Model, s.now())
		return writeState(ctx, tx, state)
	})
	if err != nil {
		return nil, err
	}
	if transitionErr != nil {
		return nil, transitionErr
	}
	return s.GetItem(ctx, itemID)
}

func loadState(ctx context.Context, q dbtx, itemID int64) (*ItemState, error) {
	query, args, err := sq.Select(
		"id", "kind", "current_state", "transition_num",
		"transition_start", "transition_end", "completed_at",
	).From("content_item_states").Where(sq.Eq{"item_id": itemID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build state query: %w", err)
	}
	var (
		state           ItemState
		transitionStart sql.NullString
		transitionEnd   sql.NullString
		completedAt     sql.NullString
	)
	if err := q.QueryRowContext(ctx, query, args...).Scan(
		&state.ID,
		&state.Kind,
		&state.CurrentState,
		&state.TransitionNum,
		&transitionStart,
		&transitionEnd,
		&completedAt,
	); err != nil {
		return nil, err
	}
	state.ItemID = itemID
	state.TransitionStart = parseTime(transitionStart.String)
	state.TransitionEnd = parseTime(transitionEnd.String)
	state.CompletedAt = parseTime(completedAt.String)
	return &state, nil
}

func writeState(ctx context.Context, q dbtx, state *ItemState) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE content_item_states
         SET current_state = ?, transition_num = ?, transition_start = ?,
             transition_end = ?, completed_at = ?
         WHERE id = ?`,
		state.CurrentState,
		state.TransitionNum,
		nullableTime(state.TransitionStart),
		nullableTime(state.TransitionEnd),
		nullableTime(state.CompletedAt),
		state.ID,
	); err != nil {
		return fmt.Errorf("write item state: %w", err)
	}
	return nil
}
