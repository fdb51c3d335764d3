package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/services"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
	"contentflow/internal/textutil"
)

// Status is the outcome of one NextState dispatch.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ErrDeferred reports that an action was accepted but completes out of band.
// The items stay in transition and the dispatch counts as skipped.
var ErrDeferred = errors.New("action deferred")

// DefaultSourceFields lists the raw record fields extracted into items.
var DefaultSourceFields = []string{"title", "text"}

// RawRecord is one source record before extraction.
type RawRecord struct {
	WorkspaceID  string
	SourceID     string
	RawContentID string
	CreatedAt    time.Time
	Fields       map[string]string
}

// Workflow is the behaviour the batch processor drives.
type Workflow interface {
	ID() string
	Definition() statemachine.Definition
	ExtractItems(raw RawRecord) []store.NewItem
	NextState(ctx context.Context, items []*store.Item, state string) Status
	IsBatchTransitionFrom(state string) bool
	CheckStateTimeout(state *store.ItemState) bool
	CheckStateUpdatesExceeded(state *store.ItemState) bool
}

// ItemStore is the persistence surface workflow actions use.
type ItemStore interface {
	UpdateItem(ctx context.Context, item *store.Item) error
	TransitionItemState(ctx context.Context, itemID int64, to string) (*store.Item, error)
	StartTransitionToState(ctx context.Context, itemID int64, to string) (*store.Item, error)
	ReplaceKeywords(ctx context.Context, itemID int64, keywords []store.Keyword) error
}

// Handler runs the action for one source state. Batch handlers receive the
// whole batch in one call; others receive one item at a time.
type Handler struct {
	Batch bool
	Run   func(ctx context.Context, items []*store.Item) error
}

// Settings holds the per-workflow limits.
type Settings struct {
	StateTimeout    time.Duration
	MaxStateUpdates int
	SourceFields    []string
}

// Base implements the workflow predicates and handler dispatch.
type Base struct {
	id       string
	def      statemachine.Definition
	settings Settings
	handlers map[string]Handler
	store    ItemStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewBase constructs a Base for the given definition.
func NewBase(def statemachine.Definition, settings Settings, st ItemStore, m *metrics.Metrics, logger *slog.Logger) *Base {
	if len(settings.SourceFields) == 0 {
		settings.SourceFields = DefaultSourceFields
	}
	return &Base{
		id:       def.Kind,
		def:      def,
		settings: settings,
		handlers: make(map[string]Handler),
		store:    st,
		metrics:  m,
		logger:   logging.NewComponentLogger(logger, "workflow").With(logging.String(logging.FieldWorkflow, def.Kind)),
		now:      time.Now,
	}
}

// Handle registers the handler for a source state.
func (b *Base) Handle(state string, h Handler) {
	b.handlers[state] = h
}

// SetClock overrides the time source used for timeout checks.
func (b *Base) SetClock(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

func (b *Base) ID() string { return b.id }

func (b *Base) Definition() statemachine.Definition { return b.def }

// ExtractItems returns one item per configured source field that is present
// and non-blank in the record.
func (b *Base) ExtractItems(raw RawRecord) []store.NewItem {
	var items []store.NewItem
	for _, field := range b.settings.SourceFields {
		value, ok := raw.Fields[field]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		items = append(items, store.NewItem{
			WorkspaceID:  raw.WorkspaceID,
			SourceID:     raw.SourceID,
			RawContentID: raw.RawContentID,
			SourceField:  field,
			Content:      value,
			RawContent:   value,
			RawCreatedAt: raw.CreatedAt,
		})
	}
	return items
}

func (b *Base) IsBatchTransitionFrom(state string) bool {
	h, ok := b.handlerFor(state)
	return ok && h.Batch
}

// CheckStateTimeout reports whether a transition is plausibly still in flight.
func (b *Base) CheckStateTimeout(state *store.ItemState) bool {
	if state == nil || !state.InTransition() {
		return false
	}
	return b.now().Sub(state.TransitionStart) < b.settings.StateTimeout
}

// CheckStateUpdatesExceeded reports whether the item has used up its attempts.
func (b *Base) CheckStateUpdatesExceeded(state *store.ItemState) bool {
	if state == nil || b.settings.MaxStateUpdates <= 0 {
		return false
	}
	return state.TransitionNum > b.settings.MaxStateUpdates
}

// NextState runs the handler registered for state against items.
func (b *Base) NextState(ctx context.Context, items []*store.Item, state string) Status {
	h, ok := b.handlerFor(state)
	if !ok {
		logging.WarnWithContext(b.logger, "no handler for state", "missing_handler",
			logging.String(logging.FieldState, state),
			logging.String(logging.FieldErrorHint, "add a handler or remove the state from the definition"),
		)
		return StatusError
	}
	if len(items) == 0 {
		return StatusSuccess
	}

	err := h.Run(ctx, items)
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrDeferred):
		return StatusSkipped
	default:
		details := services.Details(err)
		logging.WarnWithContext(logging.WithContext(ctx, b.logger), "state action failed", "state_action_failed",
			logging.String(logging.FieldState, state),
			logging.Int("batch_size", len(items)),
			logging.String("error_kind", string(details.Kind)),
			logging.String(logging.FieldErrorHint, "items stay in place and are retried until their attempts run out"),
			logging.Error(err),
		)
		return StatusError
	}
}

func (b *Base) handlerFor(state string) (Handler, bool) {
	if h, ok := b.handlers[state]; ok {
		return h, true
	}
	return b.baseHandler(state)
}

// baseHandler advances items straight to completed from any processing
// state whose table allows it.
func (b *Base) baseHandler(state string) (Handler, bool) {
	if statemachine.IsTerminal(state) || state == statemachine.StateUndefined {
		return Handler{}, false
	}
	if !b.def.IsTransitionAllowed(state, statemachine.StateCompleted) {
		return Handler{}, false
	}
	return Handler{Batch: true, Run: b.advanceAll(statemachine.StateCompleted)}, true
}

func (b *Base) advanceAll(to string) func(context.Context, []*store.Item) error {
	return func(ctx context.Context, items []*store.Item) error {
		for _, item := range items {
			if _, err := b.store.TransitionItemState(ctx, item.ID, to); err != nil {
				return err
			}
		}
		return nil
	}
}

// prepare cleans item content in place and routes unusable items to failed.
// It returns the items that can continue.
func (b *Base) prepare(ctx context.Context, items []*store.Item) ([]*store.Item, error) {
	usable := make([]*store.Item, 0, len(items))
	for _, item := range items {
		cleaned := textutil.Clean(item.Content)
		if cleaned == "" || len(textutil.Tokenize(cleaned)) == 0 {
			if err := b.failUnusable(ctx, item); err != nil {
				return nil, err
			}
			continue
		}
		if cleaned != item.Content {
			item.Content = cleaned
			if err := b.store.UpdateItem(ctx, item); err != nil {
				return nil, err
			}
		}
		usable = append(usable, item)
	}
	return usable, nil
}

func (b *Base) failUnusable(ctx context.Context, item *store.Item) error {
	if _, err := b.store.TransitionItemState(ctx, item.ID, statemachine.StateFailed); err != nil {
		return fmt.Errorf("fail unusable item %d: %w", item.ID, err)
	}
	b.metrics.ItemUnusable(b.id)
	logging.WarnWithContext(b.logger, "content unusable", "unusable_content",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldImpact, "item moved to failed"),
		logging.String(logging.FieldErrorHint, "content is empty after cleaning"),
	)
	return nil
}
