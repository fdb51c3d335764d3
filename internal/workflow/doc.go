// Package workflow binds state machine definitions to the actions that move
// content items between states.
//
// A Workflow extracts items from raw records and, through NextState, runs the
// side-effecting action for one processing state (vectorize, cluster, extract
// keywords) before advancing or failing the items. Base carries the shared
// predicates the processor consults (batch capability, in-flight timeout,
// retry bound) and an explicit state-to-handler table; states a concrete
// workflow does not handle fall back to the base pass-through handler.
//
// Definitions are available without constructing a workflow so the store can
// be opened before the services workflows depend on exist.
package workflow
