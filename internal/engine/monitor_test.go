package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatecheck/internal/engine"
	"gatecheck/internal/testutil"
)

func TestMonitor_OnlineTransitionTriggersDrain(t *testing.T) {
	st := openTestStore(t)
	backend := testutil.NewFakeBackend()
	backend.SetAvailable(false)
	status := engine.NewStatusStore(engine.Status{})
	r := engine.NewReconciler(st, backend, status, testutil.NewManualClock(testStart))
	m := engine.NewMonitor(backend, status, r, 0)
	ctx := context.Background()

	enqueue(t, st, "N1")
	status.Update(func(s *engine.Status) { s.PendingCount = 1 })

	m.SetOnline(ctx, false)
	assert.False(t, m.Online())
	assert.Equal(t, 0, backend.SyncCalls, "no drain while offline")

	backend.SetAvailable(true)
	m.SetOnline(ctx, true)
	assert.True(t, m.Online())
	assert.Equal(t, 1, backend.SyncCalls, "drain on the transition to online")

	n, err := st.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, status.Get().Online)
}

func TestMonitor_OncePerTransitionNotPerProbe(t *testing.T) {
	st := openTestStore(t)
	backend := testutil.NewFakeBackend()
	backend.SyncOutcomes["N1"] = "error" // keep the queue non-empty
	status := engine.NewStatusStore(engine.Status{})
	r := engine.NewReconciler(st, backend, status, testutil.NewManualClock(testStart))
	m := engine.NewMonitor(backend, status, r, 0)
	ctx := context.Background()

	enqueue(t, st, "N1")
	status.Update(func(s *engine.Status) { s.PendingCount = 1 })

	m.SetOnline(ctx, true)
	assert.Equal(t, 1, backend.SyncCalls)

	// Staying online: repeated probes do not re-trigger.
	m.SetOnline(ctx, true)
	m.SetOnline(ctx, true)
	assert.Equal(t, 1, backend.SyncCalls)

	// Flap: each recovery is one more trigger.
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)
	assert.Equal(t, 2, backend.SyncCalls)
}

func TestMonitor_NoDrainWhenQueueEmpty(t *testing.T) {
	st := openTestStore(t)
	backend := testutil.NewFakeBackend()
	status := engine.NewStatusStore(engine.Status{})
	r := engine.NewReconciler(st, backend, status, testutil.NewManualClock(testStart))
	m := engine.NewMonitor(backend, status, r, 0)

	m.SetOnline(context.Background(), true)
	assert.Equal(t, 0, backend.SyncCalls)
}

func TestMonitor_DrainFailureLeavesQueue(t *testing.T) {
	st := openTestStore(t)
	backend := testutil.NewFakeBackend()
	status := engine.NewStatusStore(engine.Status{})
	r := engine.NewReconciler(st, backend, status, testutil.NewManualClock(testStart))
	m := engine.NewMonitor(backend, status, r, 0)
	ctx := context.Background()

	enqueue(t, st, "N1")
	status.Update(func(s *engine.Status) { s.PendingCount = 1 })

	// The probe said online but the sync endpoint dies mid-drain.
	backend.SetAvailable(false)
	m.SetOnline(ctx, true)

	n, err := st.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "row survives the failed drain")
}
