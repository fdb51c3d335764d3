package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"contentflow/internal/config"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
)

// PipelineKind is the kind of the definition returned by PipelineDefinition.
const PipelineKind = "pipeline"

// PipelineDefinition returns a ready -> vectorized -> clustered -> completed
// definition for store-level tests that do not need a full workflow.
func PipelineDefinition() statemachine.Definition {
	return statemachine.Extend(PipelineKind, []string{"vectorized", "clustered"}, statemachine.Table{
		statemachine.StateReady: {"vectorized", statemachine.StateFailed},
		"vectorized":            {"clustered", statemachine.StateFailed},
		"clustered":             {statemachine.StateCompleted, statemachine.StateFailed},
	})
}

// MustOpenStore opens a store.Store for tests and registers cleanup. The
// pipeline definition is always registered alongside defs.
func MustOpenStore(t testing.TB, cfg *config.Config, defs ...statemachine.Definition) *store.Store {
	t.Helper()

	registry, err := statemachine.NewRegistry(append([]statemachine.Definition{PipelineDefinition()}, defs...)...)
	if err != nil {
		t.Fatalf("statemachine.NewRegistry: %v", err)
	}
	st, err := store.Open(cfg, registry)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustInsertItem inserts a pipeline item with the given content.
func MustInsertItem(t testing.TB, st *store.Store, workspace, rawID, content string, createdAt time.Time) *store.Item {
	t.Helper()

	res, err := st.InsertItem(context.Background(), PipelineKind, store.NewItem{
		WorkspaceID:  workspace,
		SourceID:     "test",
		RawContentID: rawID,
		SourceField:  "text",
		Content:      content,
		RawContent:   content,
		RawCreatedAt: createdAt,
	}, false)
	if err != nil {
		t.Fatalf("InsertItem(%s): %v", rawID, err)
	}
	return res.Item
}

// MustInsertItems inserts count pipeline items with distinct content.
func MustInsertItems(t testing.TB, st *store.Store, workspace string, count int) []*store.Item {
	t.Helper()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]*store.Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, MustInsertItem(t, st, workspace, fmt.Sprintf("raw-%d", i), fmt.Sprintf("content number %d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	return items
}
