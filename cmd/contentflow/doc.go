// Package main hosts the contentflow CLI entrypoint and command graph.
//
// The Cobra-based command tree ingests raw JSON-lines records, runs the batch
// workflow processor and the re-clustering pass, and reports workspace state
// as tables. It centralizes configuration resolution, logger construction,
// and service wiring so subcommands only parse flags and print results.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
