package engine

import "github.com/google/uuid"

// NonceGenerator produces the unique idempotency marker attached to one
// offline admission decision. A nonce is generated exactly once, at decision
// time, and never regenerated on retry.
//
// Implemented by UUIDGenerator (production) and testutil.SequenceNonces
// (tests).
type NonceGenerator interface {
	Generate() string
}

// UUIDGenerator generates UUIDv7 nonces. V7 is time-ordered, which keeps
// the server-side dedup index append-friendly; uniqueness is all the
// contract requires.
type UUIDGenerator struct{}

// Generate implements NonceGenerator.
func (UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4
		// rather than ever reusing a nonce.
		return uuid.NewString()
	}
	return id.String()
}
