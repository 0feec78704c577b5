package store

import "time"

// RegistrationStatus values as delivered by the registration backend.
// Only StatusPaid is admissible offline.
const (
	StatusPaid      = "PAID"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

// Credential is one row of the cached admission snapshot for the active
// event. The snapshot is disposable: it is bulk-replaced on refresh and
// never partially mutated.
type Credential struct {
	Token              string
	PersonName         string
	KoreanName         string
	ConfirmationCode   string
	IsActive           bool
	RegistrationStatus string
}

// Admissible reports whether the credential passes the offline admission
// rules (active and paid).
func (c Credential) Admissible() bool {
	return c.IsActive && c.RegistrationStatus == StatusPaid
}

// PendingCheckin is one offline admission awaiting reconciliation.
//
// RecordedAt is the client clock at decision time, not sync time. The nonce
// is generated once, at decision time, and never regenerated on retry -
// this is what makes reconciliation idempotent.
type PendingCheckin struct {
	LocalID     int64
	Token       string
	CheckinType string
	SessionID   string // empty unless CheckinType is SESSION
	RecordedAt  time.Time
	Nonce       string
	Attempts    int
}

// LogEntry is one row of the bounded recent-activity window.
type LogEntry struct {
	ID               int64
	PersonName       string
	KoreanName       string
	ConfirmationCode string
	Status           string // "checked_in" or "error"
	CheckinType      string
	RecordedAt       time.Time
	IsOffline        bool
	ErrorMessage     string
}

// DeadCheckin is a pending check-in abandoned after the bounded retry
// limit. Kept for operator inspection, excluded from future drains.
type DeadCheckin struct {
	LocalID     int64
	Token       string
	CheckinType string
	SessionID   string
	RecordedAt  time.Time
	Nonce       string
	Attempts    int
	DeadAt      time.Time
}
