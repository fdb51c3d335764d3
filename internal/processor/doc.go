// Package processor drives content items through their workflow.
//
// Each Run repeatedly scans every processing state of a workflow for a
// bounded, randomized batch of items, force-fails items that exhausted their
// attempts, skips items whose transition is still in flight, and dispatches
// the rest either as one batch call or through a bounded worker pool. Work is
// derived entirely from persisted state, so a crashed or cancelled run is
// resumed by starting another one.
//
// Runs stop normally once several consecutive iterations find nothing to do
// and abort with a *RunError when an iteration cap or error budget is hit.
package processor
