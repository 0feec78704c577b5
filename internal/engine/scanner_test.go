package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatecheck/internal/engine"
	"gatecheck/internal/remote"
	"gatecheck/internal/store"
	"gatecheck/internal/testutil"
)

const paidToken = "abc123defbest20charstoken"

type scannerFixture struct {
	st      *store.Store
	backend *testutil.FakeBackend
	clock   *testutil.ManualClock
	status  *engine.StatusStore
	scanner *engine.Scanner
	online  bool
}

func newScannerFixture(t *testing.T, online bool) *scannerFixture {
	t.Helper()

	f := &scannerFixture{
		st:      openTestStore(t),
		backend: testutil.NewFakeBackend(),
		clock:   testutil.NewManualClock(testStart),
		status:  engine.NewStatusStore(engine.Status{}),
		online:  online,
	}
	f.backend.SetAvailable(online)

	seedCredential(t, f.st, store.Credential{
		Token:              paidToken,
		PersonName:         "Minji Kim",
		KoreanName:         "김민지",
		ConfirmationCode:   "R26KIM0001",
		IsActive:           true,
		RegistrationStatus: store.StatusPaid,
	})

	decider := engine.NewDecider(f.st, f.backend, testutil.NewSequenceNonces(), f.clock)
	f.scanner = engine.NewScanner(engine.CheckinMain, decider, f.st, f.status, f.clock,
		func() bool { return f.online })
	return f
}

func TestScanner_OfflineAdmitScenario(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	dec, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	require.NotNil(t, dec)
	assert.True(t, dec.Admitted())
	assert.Equal(t, engine.CheckinMain, dec.CheckinType)
	assert.NotEmpty(t, dec.Nonce)

	pending, err := f.st.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, engine.CheckinMain, pending[0].CheckinType)

	entries, err := f.st.RecentLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checked_in", entries[0].Status)
	assert.True(t, entries[0].IsOffline)
	assert.Equal(t, "R26KIM0001", entries[0].ConfirmationCode)

	assert.Equal(t, 1, f.status.Get().PendingCount)
}

func TestScanner_OfflineInactiveScenario(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.st.ReplaceCredentials(ctx, "event-1", []store.Credential{{
		Token: paidToken, PersonName: "Minji Kim", ConfirmationCode: "R26KIM0001",
		IsActive: false, RegistrationStatus: store.StatusPaid,
	}}))

	dec, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	assert.False(t, dec.Admitted())
	assert.Equal(t, "E-Pass is inactive", dec.Reason)

	n, err := f.st.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "no PendingCheckin for a denial")

	entries, err := f.st.RecentLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Status)
	assert.True(t, entries[0].IsOffline)
	assert.Equal(t, "E-Pass is inactive", entries[0].ErrorMessage)
}

func TestScanner_IgnoresUnrecognizedPayloads(t *testing.T) {
	f := newScannerFixture(t, false)

	_, processed := f.scanner.Scan(context.Background(), "WIFI:T:WPA;S:venue;;")
	assert.False(t, processed)
	assert.Equal(t, engine.ModeScanning, f.scanner.Mode(), "noise keeps the camera running")

	n, err := f.st.LogCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "noise is not logged")
}

func TestScanner_DuplicateScanSuppression(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	_, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)

	// Immediate repeat of the same badge: no second decision.
	_, processed = f.scanner.Scan(ctx, paidToken)
	assert.False(t, processed)

	n, err := f.st.LogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one decision, not two")

	// The cooldown cycle clears the marker; the badge may scan again.
	f.clock.Advance(engine.DefaultCooldown)
	_, processed = f.scanner.Scan(ctx, paidToken)
	assert.True(t, processed)
}

func TestScanner_RepeatFramesYieldOneDecision(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	dec, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	require.NotNil(t, dec)

	// While in COOLDOWN every further frame is dropped.
	for i := 0; i < 5; i++ {
		_, processed := f.scanner.Scan(ctx, paidToken)
		assert.False(t, processed)
	}

	n, err := f.st.LogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one decision")
}

func TestScanner_DropsInputWhileProcessing(t *testing.T) {
	f := newScannerFixture(t, true)
	ctx := context.Background()

	// Block the verify call so the first scan sits in PROCESSING.
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.VerifyResults[paidToken] = remote.VerifyResponse{
		Result:     remote.VerifyCheckedIn,
		PersonName: "Minji Kim",
	}
	f.backend.VerifyHook = func(remote.VerifyRequest) {
		close(entered)
		<-release
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstProcessed bool
	go func() {
		defer wg.Done()
		_, firstProcessed = f.scanner.Scan(ctx, paidToken)
	}()

	<-entered
	assert.Equal(t, engine.ModeProcessing, f.scanner.Mode())

	// A different token arrives mid-decision: dropped, not queued.
	_, processed := f.scanner.Scan(ctx, "tokenbbbbbbbbbbbbbbbb")
	assert.False(t, processed)

	close(release)
	wg.Wait()
	assert.True(t, firstProcessed)

	n, err := f.st.LogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "at most one active decision")
}

func TestScanner_CooldownAutoResume(t *testing.T) {
	f := newScannerFixture(t, false)

	_, processed := f.scanner.Scan(context.Background(), paidToken)
	require.True(t, processed)
	assert.Equal(t, engine.ModeCooldown, f.scanner.Mode())

	f.clock.Advance(engine.DefaultCooldown - time.Millisecond)
	assert.Equal(t, engine.ModeCooldown, f.scanner.Mode())

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, engine.ModeScanning, f.scanner.Mode())
}

func TestScanner_ManualPauseSurvivesCooldownTimer(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	_, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)

	f.scanner.Pause()
	f.clock.Advance(engine.DefaultCooldown)

	// The cooldown timer fired but must not override the manual pause.
	assert.True(t, f.scanner.Paused())
	_, processed = f.scanner.Scan(ctx, "tokenbbbbbbbbbbbbbbbb")
	assert.False(t, processed, "paused scanner accepts no input")

	f.scanner.Resume()
	assert.Equal(t, engine.ModeScanning, f.scanner.Mode())
	assert.True(t, f.status.Get().ScannerPaused == false)
}

func TestScanner_ManualResumeShortCircuitsCooldown(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	_, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	require.Equal(t, engine.ModeCooldown, f.scanner.Mode())

	f.scanner.Resume()
	assert.Equal(t, engine.ModeScanning, f.scanner.Mode())

	// The stale timer fires later; it must be a no-op.
	_, processed = f.scanner.Scan(ctx, paidToken)
	require.True(t, processed, "resume cleared the last-scanned marker")
	require.Equal(t, engine.ModeCooldown, f.scanner.Mode())
	f.clock.Advance(engine.DefaultCooldown)
	assert.Equal(t, engine.ModeScanning, f.scanner.Mode())
}

func TestScanner_NeverStuckInProcessing(t *testing.T) {
	f := newScannerFixture(t, false)
	ctx := context.Background()

	// Close the store out from under the decision path to force a
	// persistence failure.
	require.NoError(t, f.st.Close())

	dec, processed := f.scanner.Scan(ctx, paidToken)
	require.True(t, processed)
	assert.Equal(t, engine.OutcomeError, dec.Outcome)
	assert.NotEqual(t, engine.ModeProcessing, f.scanner.Mode(), "state machine must not be stuck in PROCESSING")
	assert.NotEmpty(t, f.status.Get().StoreError, "persistence failure is surfaced loudly")
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []string
}

func (n *recordingNotifier) ScanResult(d engine.Decision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, d.Outcome)
}

func TestScanner_NotifierSeesTerminalOutcomes(t *testing.T) {
	st := openTestStore(t)
	clock := testutil.NewManualClock(testStart)
	status := engine.NewStatusStore(engine.Status{})
	backend := testutil.NewFakeBackend()
	backend.SetAvailable(false)

	seedCredential(t, st, store.Credential{
		Token: paidToken, PersonName: "Minji Kim",
		IsActive: true, RegistrationStatus: store.StatusPaid,
	})

	notifier := &recordingNotifier{}
	decider := engine.NewDecider(st, backend, testutil.NewSequenceNonces(), clock)
	scanner := engine.NewScanner(engine.CheckinMain, decider, st, status, clock,
		func() bool { return false }, engine.WithNotifier(notifier))

	_, processed := scanner.Scan(context.Background(), paidToken)
	require.True(t, processed)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{engine.OutcomeCheckedIn}, notifier.outcomes)
}
