package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveVector stores the item's term-weight vector, replacing any previous one.
func (s *Store) SaveVector(ctx context.Context, itemID int64, workspaceID string, vector map[string]float64) error {
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO content_item_vectors (item_id, workspace_id, vector_json, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET vector_json = excluded.vector_json, updated_at = excluded.updated_at`,
		itemID, workspaceID, string(payload), formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the stored vector for an item, or nil when none exists.
func (s *Store) GetVector(ctx context.Context, itemID int64) (map[string]float64, error) {
	var payload string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT vector_json FROM content_item_vectors WHERE item_id = ?`, itemID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	var vector map[string]float64
	if err := json.Unmarshal([]byte(payload), &vector); err != nil {
		return nil, fmt.Errorf("decode vector for item %d: %w", itemID, err)
	}
	return vector, nil
}

// WorkspaceVectors returns every stored vector in the workspace keyed by item id.
func (s *Store) WorkspaceVectors(ctx context.Context, workspaceID string) (map[int64]map[string]float64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT item_id, vector_json FROM content_item_vectors WHERE workspace_id = ?`, workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("workspace vectors: %w", err)
	}
	defer rows.Close()

	vectors := make(map[int64]map[string]float64)
	for rows.Next() {
		var (
			itemID  int64
			payload string
		)
		if err := rows.Scan(&itemID, &payload); err != nil {
			return nil, err
		}
		var vector map[string]float64
		if err := json.Unmarshal([]byte(payload), &vector); err != nil {
			return nil, fmt.Errorf("decode vector for item %d: %w", itemID, err)
		}
		vectors[itemID] = vector
	}
	return vectors, rows.Err()
}

// ReplaceKeywords swaps the item's keyword annotations in one transaction.
func (s *Store) ReplaceKeywords(ctx context.Context, itemID int64, keywords []Keyword) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM content_item_keywords WHERE item_id = ?`, itemID); err != nil {
			return fmt.Errorf("clear keywords: %w", err)
		}
		for _, kw := range keywords {
			if kw.Term == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO content_item_keywords (item_id, keyword, score) VALUES (?, ?, ?)
                 ON CONFLICT(item_id, keyword) DO UPDATE SET score = excluded.score`,
				itemID, kw.Term, kw.Score,
			); err != nil {
				return fmt.Errorf("insert keyword: %w", err)
			}
		}
		return nil
	})
}

// ItemKeywords returns the item's keywords, highest score first.
func (s *Store) ItemKeywords(ctx context.Context, itemID int64) ([]Keyword, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT keyword, score FROM content_item_keywords WHERE item_id = ? ORDER BY score DESC, keyword`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("item keywords: %w", err)
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var kw Keyword
		if err := rows.Scan(&kw.Term, &kw.Score); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}
