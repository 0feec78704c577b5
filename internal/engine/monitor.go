package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pinger probes remote reachability. Implemented by *remote.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultProbeInterval is how often the monitor probes the backend.
const DefaultProbeInterval = 15 * time.Second

// Monitor tracks online/offline transitions and triggers reconciliation on
// the transition to online.
//
// The trigger fires once per offline-to-online transition, not per probe.
// Rapid connectivity flapping therefore produces one drain per recovery;
// overlapping triggers coalesce inside the Reconciler, so a flap can at
// worst cost a redundant network call, never a double count.
type Monitor struct {
	pinger     Pinger
	status     *StatusStore
	reconciler *Reconciler
	interval   time.Duration

	mu     sync.Mutex
	online bool
}

// NewMonitor creates a connectivity monitor. reconciler may be nil when
// reconciliation is triggered elsewhere (tests, status-only tooling).
func NewMonitor(pinger Pinger, status *StatusStore, reconciler *Reconciler, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		pinger:     pinger,
		status:     status,
		reconciler: reconciler,
		interval:   interval,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run probes the backend until the context is cancelled. An immediate
// probe runs before the first tick so a freshly started device learns its
// state without waiting an interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	err := m.pinger.Ping(ctx)
	m.SetOnline(ctx, err == nil)
}

// SetOnline records an observed connectivity state and, on the transition
// to online, triggers one drain if the queue is non-empty. Exposed so the
// runtime's own online/offline signal can feed the monitor directly.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	transitioned := online && !m.online
	changed := online != m.online
	m.online = online
	m.mu.Unlock()

	if changed {
		slog.Info("connectivity changed", "online", online)
		m.status.Update(func(st *Status) { st.Online = online })
	}

	if transitioned && m.reconciler != nil {
		if m.status.Get().PendingCount == 0 {
			return
		}
		report, err := m.reconciler.Drain(ctx)
		if err != nil {
			// Rows stay queued; the next transition or manual sync retries.
			slog.Warn("drain after reconnect failed", "error", err)
			return
		}
		if !report.Skipped {
			slog.Info("drained after reconnect", "accepted", report.Accepted, "failed", report.Failed)
		}
	}
}
