package engine

import "time"

// Check-in types. SESSION additionally requires a session id.
const (
	CheckinMain    = "MAIN"
	CheckinDining  = "DINING"
	CheckinSession = "SESSION"
)

// ValidCheckinTypes defines the allowed check-in types.
var ValidCheckinTypes = map[string]bool{
	CheckinMain:    true,
	CheckinDining:  true,
	CheckinSession: true,
}

// Decision outcomes.
const (
	OutcomeCheckedIn        = "checked_in"
	OutcomeAlreadyCheckedIn = "already_checked_in"
	OutcomeInactive         = "inactive"
	OutcomeNotPaid          = "not_paid"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)

// Operator-facing denial messages.
const (
	MsgNotFound         = "token not found in cache"
	MsgInactive         = "E-Pass is inactive"
	MsgNotPaid          = "registration not paid"
	MsgAlreadyCheckedIn = "already checked in"
)

// Decision is the terminal outcome of evaluating one scanned token.
type Decision struct {
	Outcome          string
	PersonName       string
	KoreanName       string
	ConfirmationCode string
	CheckinType      string
	Reason           string // denial message, empty on admission
	Offline          bool   // true when the offline path decided
	Nonce            string // set only for offline admissions
	At               time.Time
}

// Admitted reports whether the person may pass.
func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeCheckedIn
}

// LogStatus maps the outcome onto the two-valued check-in log status.
// Every non-admission is an operator-visible error entry.
func (d Decision) LogStatus() string {
	if d.Admitted() {
		return OutcomeCheckedIn
	}
	return OutcomeError
}

// Notifier receives terminal scan outcomes for side-effect feedback
// (audio, haptics, wake-lock). Implementations must be fast and must never
// gate the decision path; the engine invokes them after the decision is
// durable.
type Notifier interface {
	ScanResult(d Decision)
}

// NopNotifier discards all feedback.
type NopNotifier struct{}

// ScanResult implements Notifier.
func (NopNotifier) ScanResult(Decision) {}
