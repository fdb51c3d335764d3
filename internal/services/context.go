package services

import "context"

type contextKey string

const (
	workspaceKey contextKey = "workspace_id"
	workflowKey  contextKey = "workflow"
	itemIDKey    contextKey = "item_id"
	stateKey     contextKey = "state"
	runIDKey     contextKey = "run_id"
)

// WithWorkspace annotates context with the workspace identifier.
func WithWorkspace(ctx context.Context, workspace string) context.Context {
	if workspace == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey, workspace)
}

// WorkspaceFromContext returns the workspace identifier if present.
func WorkspaceFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workspaceKey).(string)
	return v, ok && v != ""
}

// WithWorkflow annotates context with the workflow identifier.
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	if workflow == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowKey, workflow)
}

// WorkflowFromContext returns the workflow identifier if present.
func WorkflowFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workflowKey).(string)
	return v, ok && v != ""
}

// WithItemID annotates context with the content item identifier.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the content item identifier if present.
func ItemIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(itemIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithState annotates context with the workflow state being processed.
func WithState(ctx context.Context, state string) context.Context {
	if state == "" {
		return ctx
	}
	return context.WithValue(ctx, stateKey, state)
}

// StateFromContext returns the workflow state if present.
func StateFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stateKey).(string)
	return v, ok && v != ""
}

// WithRunID annotates context with the processor run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the processor run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}
