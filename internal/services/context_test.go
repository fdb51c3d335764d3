package services_test

import (
	"context"
	"testing"

	"contentflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkspace(ctx, "ws-1")
	ctx = services.WithWorkflow(ctx, "cluster")
	ctx = services.WithItemID(ctx, 42)
	ctx = services.WithState(ctx, "vectorized")
	ctx = services.WithRunID(ctx, "run-123")

	if ws, ok := services.WorkspaceFromContext(ctx); !ok || ws != "ws-1" {
		t.Fatalf("unexpected workspace: %v %v", ws, ok)
	}
	if wf, ok := services.WorkflowFromContext(ctx); !ok || wf != "cluster" {
		t.Fatalf("unexpected workflow: %v %v", wf, ok)
	}
	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if state, ok := services.StateFromContext(ctx); !ok || state != "vectorized" {
		t.Fatalf("unexpected state: %v %v", state, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithState(ctx, "")
	ctx = services.WithWorkspace(ctx, "")
	if _, ok := services.StateFromContext(ctx); ok {
		t.Fatal("expected no state value")
	}
	if _, ok := services.WorkspaceFromContext(ctx); ok {
		t.Fatal("expected no workspace value")
	}
}
