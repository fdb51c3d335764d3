// Package preflight provides readiness checks for the filesystem paths and
// external services contentflow depends on.
//
// The CLI "contentflow check" command runs RunAll and renders each Result;
// the process command runs it before starting so a run never begins against
// an unwritable data directory or an unreachable model service.
//
// Each check is gated by its config toggle -- the remote model service is
// only checked when the remote backend is selected.
package preflight
