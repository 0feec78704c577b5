// Package store provides the durable local state for the check-in engine.
//
// Three stores live in one SQLite database per device:
//
//   - credentials: one event's admission snapshot, bulk-replaced on refresh.
//     Used only for offline decisions; staleness is bounded by the refresh
//     time recorded in meta, not tracked per record.
//   - pending_checkins: the durable outbound queue of offline admissions.
//     Each row carries a unique nonce; the nonce is the idempotency key the
//     remote authority deduplicates on. Rows are deleted only after the
//     server acknowledges the nonce.
//   - checkin_log: a bounded, insertion-ordered recent-activity window for
//     display. Write-only from the engine, never read for decisions, never
//     synced.
//
// A fourth table, dead_checkins, holds pending rows abandoned after the
// bounded retry limit so operators can still inspect them.
//
// DURABILITY:
// The pending queue is the only source of truth for offline check-ins until
// reconciliation completes. A persistence failure here is fatal to the
// engine's delivery guarantee and is surfaced loudly rather than swallowed.
//
// CONCURRENCY:
// The store is opened with a single-connection pool. The engine is the only
// writer on a device; readers (status display, CLI) share the same pool.
package store
