package engine

import (
	"context"
	"log/slog"
	"time"

	"gatecheck/internal/store"
)

// CredentialSource is the credential refresh endpoint (external
// collaborator). Implemented by *remote.Client.
type CredentialSource interface {
	FetchCredentials(ctx context.Context, eventID string) ([]store.Credential, error)
}

// Remote is the full backend surface the engine consumes.
type Remote interface {
	CredentialSource
	Verifier
	Syncer
	Pinger
}

// Engine wires the scanner, reconciler, connectivity monitor, and status
// store over one device's durable state.
type Engine struct {
	Store      *store.Store
	Status     *StatusStore
	Scanner    *Scanner
	Reconciler *Reconciler
	Monitor    *Monitor

	remote Remote
	clock  Clock
}

// Options configures New.
type Options struct {
	// CheckinType is this station's check-in type (MAIN, DINING, SESSION).
	CheckinType string
	// SessionID is required for SESSION stations.
	SessionID string
	// Cooldown overrides the 3s result-display delay. Zero keeps the default.
	Cooldown time.Duration
	// LogCap overrides the bounded log window. Zero keeps the default.
	LogCap int
	// MaxSyncAttempts overrides the dead-letter threshold. Zero keeps the default.
	MaxSyncAttempts int
	// ProbeInterval overrides the connectivity probe cadence. Zero keeps the default.
	ProbeInterval time.Duration
	// Clock defaults to SystemClock.
	Clock Clock
	// Nonces defaults to UUIDGenerator.
	Nonces NonceGenerator
	// Notifier defaults to NopNotifier.
	Notifier Notifier
}

// New assembles an engine for one station.
func New(st *store.Store, rmt Remote, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	nonces := opts.Nonces
	if nonces == nil {
		nonces = UUIDGenerator{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.CheckinType == "" {
		opts.CheckinType = CheckinMain
	}

	status := NewStatusStore(Status{CacheState: CacheNone})
	decider := NewDecider(st, rmt, nonces, clock)

	var recOpts []ReconcilerOption
	if opts.MaxSyncAttempts > 0 {
		recOpts = append(recOpts, WithMaxSyncAttempts(opts.MaxSyncAttempts))
	}
	reconciler := NewReconciler(st, rmt, status, clock, recOpts...)

	monitor := NewMonitor(rmt, status, reconciler, opts.ProbeInterval)

	scanOpts := []ScannerOption{WithNotifier(notifier)}
	if opts.Cooldown > 0 {
		scanOpts = append(scanOpts, WithCooldown(opts.Cooldown))
	}
	if opts.LogCap > 0 {
		scanOpts = append(scanOpts, WithLogCap(opts.LogCap))
	}
	if opts.SessionID != "" {
		scanOpts = append(scanOpts, WithSessionID(opts.SessionID))
	}
	scanner := NewScanner(opts.CheckinType, decider, st, status, clock, monitor.Online, scanOpts...)

	return &Engine{
		Store:      st,
		Status:     status,
		Scanner:    scanner,
		Reconciler: reconciler,
		Monitor:    monitor,
		remote:     rmt,
		clock:      clock,
	}
}

// RestoreStatus seeds the observable state from the durable store - cache
// and queue counts survive restarts, so the badges must too.
func (e *Engine) RestoreStatus(ctx context.Context) error {
	cacheCount, err := e.Store.CredentialCount(ctx)
	if err != nil {
		return NewPersistenceError("credential count", err)
	}
	pendingCount, err := e.Store.PendingCount(ctx)
	if err != nil {
		return NewPersistenceError("pending count", err)
	}
	deadCount, err := e.Store.DeadCount(ctx)
	if err != nil {
		return NewPersistenceError("dead count", err)
	}
	loadedAt, err := e.Store.CacheLoadedAt(ctx)
	if err != nil {
		return NewPersistenceError("cache loaded at", err)
	}
	event, err := e.Store.ActiveEvent(ctx)
	if err != nil {
		return NewPersistenceError("active event", err)
	}

	e.Status.Update(func(st *Status) {
		st.CacheCount = cacheCount
		st.PendingCount = pendingCount
		st.DeadCount = deadCount
		st.CacheLoadedAt = loadedAt
		st.ActiveEvent = event
		if cacheCount > 0 || !loadedAt.IsZero() {
			st.CacheState = CacheReady
		}
	})
	return nil
}

// RefreshCache pulls the full admission snapshot for an event and installs
// it atomically, replacing whatever was loaded before.
//
// On fetch failure the prior snapshot is kept and the cache state flips to
// error: offline admission keeps working from the last good load, but the
// operator can see the refresh did not happen.
func (e *Engine) RefreshCache(ctx context.Context, eventID string) error {
	e.Status.Update(func(st *Status) { st.CacheState = CacheLoading })

	creds, err := e.remote.FetchCredentials(ctx, eventID)
	if err != nil {
		slog.Warn("credential refresh failed, keeping last snapshot", "event", eventID, "error", err)
		e.Status.Update(func(st *Status) { st.CacheState = CacheError })
		return err
	}

	if err := e.Store.ReplaceCredentials(ctx, eventID, creds); err != nil {
		e.Status.Update(func(st *Status) {
			st.CacheState = CacheError
			st.StoreError = err.Error()
		})
		return NewPersistenceError("replace credentials", err)
	}

	loadedAt := e.clock.Now()
	if err := e.Store.SetCacheLoadedAt(ctx, loadedAt); err != nil {
		return NewPersistenceError("set cache loaded at", err)
	}

	e.Status.Update(func(st *Status) {
		st.CacheState = CacheReady
		st.CacheCount = len(creds)
		st.CacheLoadedAt = loadedAt
		st.ActiveEvent = eventID
	})
	slog.Info("credential cache refreshed", "event", eventID, "count", len(creds))
	return nil
}
