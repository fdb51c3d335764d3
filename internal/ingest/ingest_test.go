package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contentflow/internal/ingest"
	"contentflow/internal/logging"
	"contentflow/internal/services"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
	"contentflow/internal/testsupport"
	"contentflow/internal/workflow"
)

const workspace = "ws-ingest"

func setup(t *testing.T) (*ingest.Ingester, *store.Store, workflow.Workflow) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t), workflow.Definitions()...)
	wf := workflow.NewKeywordWorkflow(workflow.Settings{}, st, nil, nil, logging.NewNop())
	return ingest.New(st, nil, logging.NewNop()), st, wf
}

func TestIngestFileExtractsEachField(t *testing.T) {
	ctx := context.Background()
	ing, st, wf := setup(t)
	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "records.jsonl")
	testsupport.WriteJSONLines(t, path,
		ingest.Record{RawContentID: "r1", SourceID: "feed", CreatedAt: created, Fields: map[string]string{"title": "Headline", "text": "Body text"}},
		ingest.Record{RawContentID: "r2", SourceID: "feed", CreatedAt: created, Fields: map[string]string{"text": "Only body"}},
		ingest.Record{RawContentID: "r3", SourceID: "feed", CreatedAt: created, Fields: map[string]string{"text": "  "}},
	)

	summary, err := ing.IngestFile(ctx, path, workspace, wf, false)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	want := ingest.Summary{Records: 3, Inserted: 3, Empty: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	items, err := st.ListItems(ctx, store.ItemFilter{WorkspaceID: workspace})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for _, item := range items {
		if item.State.Kind != workflow.KeywordWorkflowID || item.State.CurrentState != statemachine.StateReady {
			t.Fatalf("unexpected state for item %d: %+v", item.ID, item.State.Model)
		}
		if !item.RawCreatedAt.Equal(created) {
			t.Fatalf("RawCreatedAt = %v, want %v", item.RawCreatedAt, created)
		}
	}
}

func TestIngestIsIdempotentAndReplacesFailed(t *testing.T) {
	ctx := context.Background()
	ing, st, wf := setup(t)
	input := `{"raw_content_id":"r1","source_id":"feed","fields":{"text":"first"}}
{"raw_content_id":"r2","source_id":"feed","fields":{"text":"second"}}
`
	if _, err := ing.Ingest(ctx, strings.NewReader(input), workspace, wf, false); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	items, err := st.ListItems(ctx, store.ItemFilter{WorkspaceID: workspace})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if _, err := st.TransitionItemState(ctx, items[0].ID, statemachine.StateFailed); err != nil {
		t.Fatalf("TransitionItemState: %v", err)
	}

	summary, err := ing.Ingest(ctx, strings.NewReader(input), workspace, wf, false)
	if err != nil {
		t.Fatalf("Ingest again: %v", err)
	}
	if summary.Duplicates != 1 || summary.Replaced != 1 || summary.Inserted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	forced, err := ing.Ingest(ctx, strings.NewReader(input), workspace, wf, true)
	if err != nil {
		t.Fatalf("Ingest forced: %v", err)
	}
	if forced.Replaced != 2 {
		t.Fatalf("expected force to replace both items, got %+v", forced)
	}
}

func TestIngestRejectsMalformedLines(t *testing.T) {
	ing, _, wf := setup(t)
	input := "{\"raw_content_id\":\"r1\",\"fields\":{\"text\":\"ok\"}}\n\nnot json\n"

	summary, err := ing.Ingest(context.Background(), strings.NewReader(input), workspace, wf, false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line number in error, got %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("records before the bad line should be stored, got %+v", summary)
	}

	if _, err := ing.Ingest(context.Background(), strings.NewReader(`{"fields":{"text":"x"}}`), workspace, wf, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected missing raw_content_id to be rejected, got %v", err)
	}
	if _, err := ing.Ingest(context.Background(), strings.NewReader(""), " ", wf, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected blank workspace to be rejected, got %v", err)
	}
}
