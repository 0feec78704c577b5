// Package engine implements the on-site check-in verification and
// synchronization engine.
//
// The engine keeps admitting attendees correctly while venue connectivity
// comes and goes, guaranteeing that no check-in is silently lost and none is
// double-counted once connectivity returns.
//
// ARCHITECTURE:
//
// Scan Lifecycle:
// A scanned payload enters the Scanner state machine
// (SCANNING -> PROCESSING -> COOLDOWN -> SCANNING). At most one decision is
// in flight at a time by construction - scans arriving while PROCESSING or
// COOLDOWN are dropped, not queued. Repeat frames of a badge held in front
// of the camera are suppressed by the last-scanned-token marker.
//
// Decision Paths:
// Online, the token goes to the remote verification endpoint and its verdict
// is interpreted verbatim. Any transport failure falls back to the offline
// path for that single scan - the operator never needs to know which path
// executed. Offline, the token is resolved against the local credential
// snapshot; an admissible token produces a PendingCheckin carrying a fresh
// nonce, appended to the durable queue before the result is shown.
//
// Reconciliation:
// The Reconciler drains the pending queue to the remote authority in one
// batch keyed by nonce. Nonces acknowledged without error are deleted
// locally; error outcomes stay queued for a later drain, up to a bounded
// attempt limit after which the row is dead-lettered. Because acceptance is
// keyed by nonce, drains are idempotent and safe to trigger repeatedly.
//
// CRITICAL PATTERNS:
//
// Nonce discipline: a nonce is generated exactly once, at decision time,
// and never regenerated on retry. The nonce - not the token - is the unit
// of exactly-once delivery.
//
// Failure containment: every per-scan failure is caught at the Scanner
// boundary and converted into a terminal error log entry. The state machine
// is never left stuck in PROCESSING. Only persistence failures are
// escalated, because they undermine the delivery guarantee.
package engine
