// Package services defines shared utilities consumed by workflow handlers and
// external model integrations.
//
// Key responsibilities:
//   - Context helpers that stamp workspace, workflow, item, state, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the processor and
//     workflows tell unusable content apart from transient service failures.
//
// Use these helpers when wiring new workflow actions so operational behaviour
// (error classification, observability) stays uniform across the pipeline.
package services
