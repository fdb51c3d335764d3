// Package logging assembles structured slog loggers and formatting helpers used
// across contentflow.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so processor and workflow code automatically
// tag log lines with workspace, workflow, item, state, and run identifiers.
// The package also provides a no-op logger for tests and optional wiring.
package logging
