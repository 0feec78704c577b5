package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatecheck/internal/engine"
	"gatecheck/internal/store"
	"gatecheck/internal/testutil"
)

func newTestEngine(t *testing.T, backend *testutil.FakeBackend, clock *testutil.ManualClock) *engine.Engine {
	t.Helper()
	return engine.New(openTestStore(t), backend, engine.Options{
		CheckinType: engine.CheckinMain,
		Clock:       clock,
		Nonces:      testutil.NewSequenceNonces(),
	})
}

func TestRefreshCache_InstallsSnapshot(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Credentials["event-1"] = []store.Credential{
		{Token: "tokenaaaaaaaaaaaaaaaa", PersonName: "A", ConfirmationCode: "C1", IsActive: true, RegistrationStatus: store.StatusPaid},
		{Token: "tokenbbbbbbbbbbbbbbbb", PersonName: "B", ConfirmationCode: "C2", IsActive: true, RegistrationStatus: store.StatusPaid},
	}
	clock := testutil.NewManualClock(testStart)
	e := newTestEngine(t, backend, clock)
	ctx := context.Background()

	require.NoError(t, e.RefreshCache(ctx, "event-1"))

	st := e.Status.Get()
	assert.Equal(t, engine.CacheReady, st.CacheState)
	assert.Equal(t, 2, st.CacheCount)
	assert.Equal(t, "event-1", st.ActiveEvent)
	assert.Equal(t, testStart, st.CacheLoadedAt)

	_, err := e.Store.LookupCredential(ctx, "tokenaaaaaaaaaaaaaaaa")
	assert.NoError(t, err)
}

func TestRefreshCache_EventIsolation(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Credentials["event-a"] = []store.Credential{
		{Token: "tokenaaaaaaaaaaaaaaaa", PersonName: "A", IsActive: true, RegistrationStatus: store.StatusPaid},
	}
	backend.Credentials["event-b"] = []store.Credential{
		{Token: "tokenbbbbbbbbbbbbbbbb", PersonName: "B", IsActive: true, RegistrationStatus: store.StatusPaid},
	}
	e := newTestEngine(t, backend, testutil.NewManualClock(testStart))
	ctx := context.Background()

	require.NoError(t, e.RefreshCache(ctx, "event-a"))
	require.NoError(t, e.RefreshCache(ctx, "event-b"))

	// Event A credentials must not answer lookups under event B's cache.
	_, err := e.Store.LookupCredential(ctx, "tokenaaaaaaaaaaaaaaaa")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.Store.LookupCredential(ctx, "tokenbbbbbbbbbbbbbbbb")
	assert.NoError(t, err)
	assert.Equal(t, "event-b", e.Status.Get().ActiveEvent)
}

func TestRefreshCache_FailureKeepsLastSnapshot(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Credentials["event-1"] = []store.Credential{
		{Token: "tokenaaaaaaaaaaaaaaaa", PersonName: "A", IsActive: true, RegistrationStatus: store.StatusPaid},
	}
	e := newTestEngine(t, backend, testutil.NewManualClock(testStart))
	ctx := context.Background()

	require.NoError(t, e.RefreshCache(ctx, "event-1"))

	backend.SetAvailable(false)
	err := e.RefreshCache(ctx, "event-1")
	require.Error(t, err)

	// Cache state flips to error, but offline admission still works from
	// the last successful load.
	assert.Equal(t, engine.CacheError, e.Status.Get().CacheState)
	_, lookupErr := e.Store.LookupCredential(ctx, "tokenaaaaaaaaaaaaaaaa")
	assert.NoError(t, lookupErr)
}

func TestRestoreStatus_SeedsCountsFromStore(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Credentials["event-1"] = []store.Credential{
		{Token: "tokenaaaaaaaaaaaaaaaa", PersonName: "A", IsActive: true, RegistrationStatus: store.StatusPaid},
	}
	clock := testutil.NewManualClock(testStart)
	e := newTestEngine(t, backend, clock)
	ctx := context.Background()

	require.NoError(t, e.RefreshCache(ctx, "event-1"))
	enqueue(t, e.Store, "N1")

	// A fresh engine over the same database (device restart).
	restarted := engine.New(e.Store, backend, engine.Options{Clock: clock})
	require.NoError(t, restarted.RestoreStatus(ctx))

	st := restarted.Status.Get()
	assert.Equal(t, engine.CacheReady, st.CacheState)
	assert.Equal(t, 1, st.CacheCount)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, "event-1", st.ActiveEvent)
	assert.Equal(t, testStart, st.CacheLoadedAt)
}

func TestEngine_OfflineScanThenReconnectRoundTrip(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.Credentials["event-1"] = []store.Credential{{
		Token:              paidToken,
		PersonName:         "Minji Kim",
		KoreanName:         "김민지",
		ConfirmationCode:   "R26KIM0001",
		IsActive:           true,
		RegistrationStatus: store.StatusPaid,
	}}
	clock := testutil.NewManualClock(testStart)
	e := newTestEngine(t, backend, clock)
	ctx := context.Background()

	require.NoError(t, e.RefreshCache(ctx, "event-1"))

	// Venue uplink dies; the scan admits offline.
	backend.SetAvailable(false)
	e.Monitor.SetOnline(ctx, false)

	dec, processed := e.Scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	assert.True(t, dec.Admitted())
	assert.True(t, dec.Offline)
	assert.Equal(t, 1, e.Status.Get().PendingCount)

	// Uplink returns; the monitor-triggered drain empties the queue.
	backend.SetAvailable(true)
	e.Monitor.SetOnline(ctx, true)

	assert.Equal(t, 0, e.Status.Get().PendingCount)
	assert.Equal(t, 1, backend.AcceptedCount())

	clock.Advance(engine.DefaultCooldown)
	assert.Equal(t, engine.ModeScanning, e.Scanner.Mode())
}

func TestEngine_DefaultsApplied(t *testing.T) {
	backend := testutil.NewFakeBackend()
	e := engine.New(openTestStore(t), backend, engine.Options{})

	assert.Equal(t, engine.ModeScanning, e.Scanner.Mode())
	assert.Equal(t, engine.CacheNone, e.Status.Get().CacheState)
}
