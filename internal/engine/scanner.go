package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatecheck/internal/store"
)

// Mode is the scan session state.
type Mode int

const (
	// ModeScanning accepts input.
	ModeScanning Mode = iota + 1
	// ModeProcessing has one decision in flight.
	ModeProcessing
	// ModeCooldown shows the result and auto-resumes after a fixed delay.
	ModeCooldown
)

// String returns the mode name for logs and status display.
func (m Mode) String() string {
	switch m {
	case ModeScanning:
		return "SCANNING"
	case ModeProcessing:
		return "PROCESSING"
	case ModeCooldown:
		return "COOLDOWN"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultCooldown is how long a decision stays on screen before the session
// automatically returns to SCANNING.
const DefaultCooldown = 3 * time.Second

// Scanner is the scan state machine for one station.
//
// A station is configured with a check-in type (and session id for SESSION
// stations); every admitted scan is of that type.
//
// Lifecycle per scan: SCANNING -> PROCESSING -> COOLDOWN -> SCANNING.
// Input while PROCESSING or COOLDOWN is dropped - at most one decision is in
// flight by construction, not by locking around the decision itself. The
// last-scanned-token marker suppresses the repeat frames of a badge held in
// front of the camera; it clears when the cooldown cycle completes.
//
// Manual pause/resume is an orthogonal operator control: pause is never
// auto-overridden by the cooldown timer, and resume short-circuits an
// active cooldown.
type Scanner struct {
	checkinType string
	sessionID   string

	decider  *Decider
	store    *store.Store
	status   *StatusStore
	notifier Notifier
	clock    Clock
	online   func() bool

	cooldown time.Duration
	logCap   int

	// Session state. The mutex serializes the short mode transitions; the
	// decision itself runs outside it, guarded by mode == ModeProcessing.
	mu            sync.Mutex
	mode          Mode
	lastToken     string
	paused        bool
	cooldownGen   int
	cooldownTimer Timer
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithCooldown overrides the cooldown delay.
func WithCooldown(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.cooldown = d }
}

// WithLogCap overrides the bounded check-in log window size.
func WithLogCap(n int) ScannerOption {
	return func(s *Scanner) { s.logCap = n }
}

// WithSessionID sets the session id for SESSION stations.
func WithSessionID(id string) ScannerOption {
	return func(s *Scanner) { s.sessionID = id }
}

// WithNotifier sets the feedback hook invoked on terminal outcomes.
func WithNotifier(n Notifier) ScannerOption {
	return func(s *Scanner) { s.notifier = n }
}

// NewScanner creates a scanner for one station.
//
// online reports current connectivity (typically Monitor.Online); it is
// consulted once per scan, at dispatch time.
func NewScanner(
	checkinType string,
	decider *Decider,
	st *store.Store,
	status *StatusStore,
	clock Clock,
	online func() bool,
	opts ...ScannerOption,
) *Scanner {
	s := &Scanner{
		checkinType: checkinType,
		decider:     decider,
		store:       st,
		status:      status,
		notifier:    NopNotifier{},
		clock:       clock,
		online:      online,
		cooldown:    DefaultCooldown,
		logCap:      store.DefaultLogCap,
		mode:        ModeScanning,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the current session mode.
func (s *Scanner) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Paused reports whether the operator has paused the scanner.
func (s *Scanner) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Scan feeds one decoded payload into the state machine.
//
// Returns (nil, false) when the payload was dropped: not a recognized
// credential shape, a repeat of the last-scanned token, operator pause, or
// a decision already in flight. Otherwise returns the terminal decision.
//
// No failure escapes: decision-path errors and panics are converted into a
// terminal error log entry and the session always reaches COOLDOWN.
func (s *Scanner) Scan(ctx context.Context, payload string) (*Decision, bool) {
	token, ok := ExtractToken(payload)
	if !ok {
		// Noise, not an error. Camera keeps running.
		return nil, false
	}

	s.mu.Lock()
	if s.paused || s.mode != ModeScanning {
		s.mu.Unlock()
		return nil, false
	}
	if token == s.lastToken {
		// Same badge still in front of the camera.
		s.mu.Unlock()
		return nil, false
	}
	s.mode = ModeProcessing
	s.lastToken = token
	s.mu.Unlock()

	dec := s.decide(ctx, token)
	s.record(ctx, dec)
	s.notifier.ScanResult(dec)
	s.enterCooldown()

	return &dec, true
}

// decide runs the decision path with full failure containment.
func (s *Scanner) decide(ctx context.Context, token string) (dec Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scan decision panicked", "token", token, "panic", r)
			dec = Decision{
				Outcome:     OutcomeError,
				CheckinType: s.checkinType,
				Reason:      fmt.Sprintf("internal error: %v", r),
				Offline:     !s.online(),
				At:          s.clock.Now(),
			}
		}
	}()

	dec, err := s.decider.Decide(ctx, token, s.checkinType, s.sessionID, s.online())
	if err != nil {
		// Persistence failure: loud. Flag the store error in status and
		// still terminate the scan with an error entry.
		slog.Error("scan decision failed", "token", token, "error", err)
		s.status.Update(func(st *Status) { st.StoreError = err.Error() })
		return Decision{
			Outcome:     OutcomeError,
			CheckinType: s.checkinType,
			Reason:      "local storage failure",
			Offline:     !s.online(),
			At:          s.clock.Now(),
		}
	}

	if dec.Offline && dec.Admitted() {
		s.bumpPendingCount(ctx)
	}
	return dec
}

// record appends the decision to the bounded check-in log.
func (s *Scanner) record(ctx context.Context, dec Decision) {
	err := s.store.AppendLog(ctx, store.LogEntry{
		PersonName:       dec.PersonName,
		KoreanName:       dec.KoreanName,
		ConfirmationCode: dec.ConfirmationCode,
		Status:           dec.LogStatus(),
		CheckinType:      dec.CheckinType,
		RecordedAt:       dec.At,
		IsOffline:        dec.Offline,
		ErrorMessage:     dec.Reason,
	}, s.logCap)
	if err != nil {
		// Display log only - the decision stands, but the store trouble is
		// surfaced.
		slog.Error("failed to append check-in log", "error", err)
		s.status.Update(func(st *Status) { st.StoreError = err.Error() })
	}
}

func (s *Scanner) bumpPendingCount(ctx context.Context) {
	n, err := s.store.PendingCount(ctx)
	if err != nil {
		slog.Error("failed to read pending count", "error", err)
		return
	}
	s.status.Update(func(st *Status) { st.PendingCount = n })
}

// enterCooldown moves the session to COOLDOWN and schedules the automatic
// return to SCANNING. The generation counter makes a stale timer firing
// after a manual pause or resume a no-op.
func (s *Scanner) enterCooldown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = ModeCooldown
	s.cooldownGen++
	gen := s.cooldownGen
	s.cooldownTimer = s.clock.AfterFunc(s.cooldown, func() {
		s.finishCooldown(gen)
	})
}

// finishCooldown is the timed auto-resume. It clears the displayed result
// and the last-scanned marker unless the operator paused in the meantime.
func (s *Scanner) finishCooldown(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.cooldownGen || s.mode != ModeCooldown {
		return
	}
	if s.paused {
		// Manual pause is never auto-overridden. The marker clears so the
		// same badge may be rescanned after resume.
		s.lastToken = ""
		return
	}
	s.mode = ModeScanning
	s.lastToken = ""
}

// Pause stops accepting input until Resume. Orthogonal to the cooldown
// cycle; an in-flight decision still completes.
func (s *Scanner) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.status.Update(func(st *Status) { st.ScannerPaused = true })
}

// Resume re-enables scanning. Short-circuits an active cooldown countdown.
func (s *Scanner) Resume() {
	s.mu.Lock()
	s.paused = false
	if s.mode == ModeCooldown {
		s.cooldownGen++ // Invalidate the outstanding timer.
		if s.cooldownTimer != nil {
			s.cooldownTimer.Stop()
		}
		s.mode = ModeScanning
	}
	s.lastToken = ""
	s.mu.Unlock()
	s.status.Update(func(st *Status) { st.ScannerPaused = false })
}
