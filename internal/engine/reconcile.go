package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"gatecheck/internal/remote"
	"gatecheck/internal/store"
)

// Syncer is the remote batch-sync endpoint (external collaborator).
// Implemented by *remote.Client. The endpoint must be idempotent by nonce:
// safe to call with nonces it has already accepted.
type Syncer interface {
	SyncBatch(ctx context.Context, items []remote.BatchItem) ([]remote.BatchResult, error)
}

// DefaultMaxSyncAttempts is how many error outcomes a pending row survives
// before it is dead-lettered. Bounds queue growth when a check-in becomes
// permanently un-syncable (e.g. the registration was cancelled server-side).
const DefaultMaxSyncAttempts = 10

// DrainReport summarizes one reconciliation pass.
type DrainReport struct {
	// Skipped is true when another drain was already in flight and this
	// trigger coalesced into it.
	Skipped bool

	Submitted int // rows sent in the batch
	Accepted  int // nonces acknowledged and deleted locally
	Failed    int // nonces reported as errors, left queued
	Dead      int // rows moved to the dead letter table this pass
}

// Reconciler drains the pending queue to the remote authority and
// reconciles per-nonce outcomes back into local state.
//
// Drain is safe to invoke repeatedly and from multiple triggers
// (connectivity transition, manual sync): server-side acceptance is keyed
// by nonce, and concurrent triggers coalesce into the in-flight drain.
type Reconciler struct {
	store       *store.Store
	syncer      Syncer
	status      *StatusStore
	clock       Clock
	maxAttempts int

	draining atomic.Bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMaxSyncAttempts overrides the dead-letter threshold.
func WithMaxSyncAttempts(n int) ReconcilerOption {
	return func(r *Reconciler) { r.maxAttempts = n }
}

// NewReconciler creates a reconciler over the local queue and the remote
// batch-sync endpoint.
func NewReconciler(st *store.Store, syncer Syncer, status *StatusStore, clock Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:       st,
		syncer:      syncer,
		status:      status,
		clock:       clock,
		maxAttempts: DefaultMaxSyncAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Drain reads the current pending rows, transmits them as one batch keyed
// by nonce, deletes every acknowledged row, and leaves error outcomes
// queued for a future pass.
//
// A transport failure leaves the queue untouched and returns the error;
// callers surface it only as an unchanged pending count, never as a
// blocking error.
func (r *Reconciler) Drain(ctx context.Context) (DrainReport, error) {
	if !r.draining.CompareAndSwap(false, true) {
		return DrainReport{Skipped: true}, nil
	}
	defer r.draining.Store(false)

	pending, err := r.store.ListPending(ctx)
	if err != nil {
		return DrainReport{}, NewPersistenceError("list pending", err)
	}
	if len(pending) == 0 {
		return DrainReport{}, nil
	}

	items := make([]remote.BatchItem, 0, len(pending))
	for _, p := range pending {
		items = append(items, remote.BatchItem{
			Token:       p.Token,
			CheckinType: p.CheckinType,
			SessionID:   p.SessionID,
			Nonce:       p.Nonce,
			Timestamp:   p.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	slog.Info("draining pending queue", "count", len(items))
	results, err := r.syncer.SyncBatch(ctx, items)
	if err != nil {
		// Sync failure: rows stay queued, not escalated.
		slog.Warn("batch sync failed, rows remain queued", "count", len(items), "error", err)
		return DrainReport{Submitted: len(items)}, err
	}

	report := DrainReport{Submitted: len(items)}
	for _, res := range results {
		if res.Outcome != remote.SyncError {
			// Any non-error outcome means the server durably accepted the
			// nonce; the local row is done.
			if err := r.store.DeletePendingByNonce(ctx, res.Nonce); err != nil {
				return report, NewPersistenceError("delete pending", err)
			}
			report.Accepted++
			continue
		}

		attempts, err := r.store.BumpPendingAttempts(ctx, res.Nonce)
		if err != nil {
			// The row may already be gone (acknowledged by an overlapping
			// earlier drain). Nothing to retry.
			slog.Debug("sync error for unknown nonce", "nonce", res.Nonce, "error", err)
			continue
		}
		if attempts >= r.maxAttempts {
			slog.Warn("dead-lettering check-in after repeated sync errors",
				"nonce", res.Nonce,
				"attempts", attempts,
				"message", res.Message,
			)
			if err := r.store.DeadLetterPending(ctx, res.Nonce, r.clock.Now()); err != nil {
				return report, NewPersistenceError("dead letter pending", err)
			}
			report.Dead++
			continue
		}
		slog.Debug("sync error, row left queued",
			"nonce", res.Nonce,
			"attempts", attempts,
			"message", res.Message,
		)
		report.Failed++
	}

	r.publishCounts(ctx)
	slog.Info("drain complete",
		"submitted", report.Submitted,
		"accepted", report.Accepted,
		"failed", report.Failed,
		"dead", report.Dead,
	)
	return report, nil
}

func (r *Reconciler) publishCounts(ctx context.Context) {
	pn, err := r.store.PendingCount(ctx)
	if err != nil {
		slog.Error("failed to read pending count", "error", err)
		return
	}
	dn, err := r.store.DeadCount(ctx)
	if err != nil {
		slog.Error("failed to read dead count", "error", err)
		return
	}
	r.status.Update(func(st *Status) {
		st.PendingCount = pn
		st.DeadCount = dn
	})
}
