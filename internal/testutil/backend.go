package testutil

import (
	"context"
	"sync"

	"gatecheck/internal/remote"
	"gatecheck/internal/store"
)

// FakeBackend is an in-memory stand-in for the registration backend,
// implementing engine.Remote.
//
// Available toggles simulated connectivity: when false every call fails
// with remote.ErrUnavailable, exactly like a dead venue uplink.
//
// The fake honors the batch-sync contract the engine relies on: acceptance
// is keyed by nonce, and a nonce already accepted is acknowledged again
// without being double-counted.
type FakeBackend struct {
	mu sync.Mutex

	// Available simulates connectivity.
	Available bool

	// Credentials holds the refresh payload per event id.
	Credentials map[string][]store.Credential

	// VerifyResults maps token to a canned verification verdict.
	// Tokens not present verify as not_found.
	VerifyResults map[string]remote.VerifyResponse

	// SyncOutcomes maps nonce to a forced batch outcome ("error" keeps the
	// row queued). Nonces not present succeed.
	SyncOutcomes map[string]string

	// Accepted records every nonce the backend has durably accepted.
	Accepted map[string]remote.BatchItem

	// Call counters.
	FetchCalls  int
	VerifyCalls int
	SyncCalls   int
	PingCalls   int

	// SyncBatches records each submitted batch for ordering assertions.
	SyncBatches [][]remote.BatchItem

	// VerifyHook, when set, runs during Verify outside the fake's lock.
	// Tests use it to hold a decision in flight.
	VerifyHook func(remote.VerifyRequest)

	// SyncHook, when set, runs during SyncBatch outside the fake's lock.
	// Tests use it to hold a drain in flight.
	SyncHook func()
}

// NewFakeBackend creates an online fake with empty state.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Available:     true,
		Credentials:   make(map[string][]store.Credential),
		VerifyResults: make(map[string]remote.VerifyResponse),
		SyncOutcomes:  make(map[string]string),
		Accepted:      make(map[string]remote.BatchItem),
	}
}

// SetAvailable toggles simulated connectivity.
func (f *FakeBackend) SetAvailable(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Available = up
}

// FetchCredentials implements engine.CredentialSource.
func (f *FakeBackend) FetchCredentials(_ context.Context, eventID string) ([]store.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if !f.Available {
		return nil, remote.ErrUnavailable
	}
	return f.Credentials[eventID], nil
}

// Verify implements engine.Verifier.
func (f *FakeBackend) Verify(_ context.Context, req remote.VerifyRequest) (remote.VerifyResponse, error) {
	f.mu.Lock()
	f.VerifyCalls++
	hook := f.VerifyHook
	available := f.Available
	resp, ok := f.VerifyResults[req.Token]
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if !available {
		return remote.VerifyResponse{}, remote.ErrUnavailable
	}
	if ok {
		return resp, nil
	}
	return remote.VerifyResponse{Result: remote.VerifyNotFound}, nil
}

// SyncBatch implements engine.Syncer. Idempotent by nonce.
func (f *FakeBackend) SyncBatch(_ context.Context, items []remote.BatchItem) ([]remote.BatchResult, error) {
	f.mu.Lock()
	hook := f.SyncHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncCalls++
	if !f.Available {
		return nil, remote.ErrUnavailable
	}

	batch := make([]remote.BatchItem, len(items))
	copy(batch, items)
	f.SyncBatches = append(f.SyncBatches, batch)

	results := make([]remote.BatchResult, 0, len(items))
	for _, item := range items {
		if _, seen := f.Accepted[item.Nonce]; seen {
			// Already accepted - acknowledge again, count nothing twice.
			results = append(results, remote.BatchResult{Nonce: item.Nonce, Outcome: remote.SyncSuccess})
			continue
		}
		if outcome, ok := f.SyncOutcomes[item.Nonce]; ok && outcome == remote.SyncError {
			results = append(results, remote.BatchResult{Nonce: item.Nonce, Outcome: remote.SyncError, Message: "forced error"})
			continue
		}
		f.Accepted[item.Nonce] = item
		results = append(results, remote.BatchResult{Nonce: item.Nonce, Outcome: remote.SyncSuccess})
	}
	return results, nil
}

// Ping implements engine.Pinger.
func (f *FakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PingCalls++
	if !f.Available {
		return remote.ErrUnavailable
	}
	return nil
}

// AcceptedCount returns how many distinct nonces the backend has accepted.
func (f *FakeBackend) AcceptedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Accepted)
}
