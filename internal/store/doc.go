// Package store persists content items, their workflow states, clusters,
// vectors, keywords, and processor run records in SQLite.
//
// Every mutation that touches more than one row runs inside a single
// immediate-mode transaction so cluster bookkeeping (membership count,
// unique content count, exemplar) is never observed half-applied. Writers
// retry on SQLITE_BUSY with bounded backoff, which lets several processor
// processes share one database file without distributed locking.
//
// State rows are interpreted through a statemachine.Registry: the persisted
// kind selects the transition table used to validate every transition.
package store
