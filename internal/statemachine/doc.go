// Package statemachine defines the generic content item state model.
//
// A Definition is a named, ordered state set plus a transition table. Every
// workflow definition is the base definition (undefined, ready, completed,
// failed) composed with workflow-specific additions, where an addition
// replaces the base entry for the same source state. Models carry the
// persisted per-item state and refuse transitions the table does not declare.
package statemachine
