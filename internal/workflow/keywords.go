package workflow

import (
	"context"
	"log/slog"

	"contentflow/internal/metrics"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
)

const (
	KeywordWorkflowID = "keywords"

	StateKeyworded = "keyworded"
)

// KeywordDefinition returns ready -> keyworded -> completed.
func KeywordDefinition() statemachine.Definition {
	return statemachine.Extend(KeywordWorkflowID, []string{StateKeyworded}, statemachine.Table{
		statemachine.StateReady: {StateKeyworded, statemachine.StateFailed},
		StateKeyworded:          {statemachine.StateCompleted, statemachine.StateFailed},
	})
}

// KeywordWorkflow extracts keywords without clustering. keyworded items are
// completed by the base pass-through handler.
type KeywordWorkflow struct {
	*Base
	keywords KeywordExtractor
}

// NewKeywordWorkflow wires the keyword workflow handlers.
func NewKeywordWorkflow(settings Settings, st ItemStore, keywords KeywordExtractor, m *metrics.Metrics, logger *slog.Logger) *KeywordWorkflow {
	w := &KeywordWorkflow{
		Base:     NewBase(KeywordDefinition(), settings, st, m, logger),
		keywords: keywords,
	}
	w.Handle(statemachine.StateReady, Handler{Run: w.extract})
	return w
}

func (w *KeywordWorkflow) extract(ctx context.Context, items []*store.Item) error {
	usable, err := w.prepare(ctx, items)
	if err != nil {
		return err
	}
	for _, item := range usable {
		if _, err := w.store.StartTransitionToState(ctx, item.ID, StateKeyworded); err != nil {
			return err
		}
		if err := storeKeywords(ctx, w.store, w.keywords, item); err != nil {
			return err
		}
		if _, err := w.store.TransitionItemState(ctx, item.ID, StateKeyworded); err != nil {
			return err
		}
	}
	return nil
}
