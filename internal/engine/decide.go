package engine

import (
	"context"
	"errors"
	"log/slog"

	"gatecheck/internal/remote"
	"gatecheck/internal/store"
)

// Verifier is the online verification endpoint (external collaborator).
// Implemented by *remote.Client.
type Verifier interface {
	Verify(ctx context.Context, req remote.VerifyRequest) (remote.VerifyResponse, error)
}

// Decider evaluates one token against the admission rules, online when
// possible, offline otherwise.
//
// The offline path is strictly local and side-effect-bounded: its only
// side effect is enqueueing a PendingCheckin, and that enqueue is
// idempotent at reconciliation time via the nonce.
type Decider struct {
	store    *store.Store
	verifier Verifier
	nonces   NonceGenerator
	clock    Clock
}

// NewDecider creates a decider over the local store and the remote
// verification endpoint.
func NewDecider(st *store.Store, verifier Verifier, nonces NonceGenerator, clock Clock) *Decider {
	return &Decider{store: st, verifier: verifier, nonces: nonces, clock: clock}
}

// Decide evaluates a token. When online is true the remote endpoint is
// consulted first; any transport failure falls back to the offline path for
// this single scan, silently - degraded connectivity is treated identically
// to fully offline.
//
// A non-nil error is returned only for persistence failures; every other
// failure mode is a terminal Decision.
func (d *Decider) Decide(ctx context.Context, token, checkinType, sessionID string, online bool) (Decision, error) {
	if online {
		dec, err := d.decideOnline(ctx, token, checkinType, sessionID)
		if err == nil {
			return dec, nil
		}
		// Fall back for this scan. Not an operator-visible error.
		slog.Debug("online verification unavailable, falling back offline",
			"token", token,
			"error", err,
		)
	}
	return d.decideOffline(ctx, token, checkinType, sessionID)
}

// decideOnline sends the token to the remote verification endpoint and
// interprets its verdict verbatim.
func (d *Decider) decideOnline(ctx context.Context, token, checkinType, sessionID string) (Decision, error) {
	resp, err := d.verifier.Verify(ctx, remote.VerifyRequest{
		Token:       token,
		CheckinType: checkinType,
		SessionID:   sessionID,
	})
	if err != nil {
		return Decision{}, err
	}

	dec := Decision{
		PersonName:       resp.PersonName,
		KoreanName:       resp.KoreanName,
		ConfirmationCode: resp.ConfirmationCode,
		CheckinType:      checkinType,
		At:               d.clock.Now(),
	}
	if resp.CheckinType != "" {
		dec.CheckinType = resp.CheckinType
	}

	switch resp.Result {
	case remote.VerifyCheckedIn:
		dec.Outcome = OutcomeCheckedIn
	case remote.VerifyAlreadyCheckedIn:
		dec.Outcome = OutcomeAlreadyCheckedIn
		dec.Reason = MsgAlreadyCheckedIn
	case remote.VerifyInactive:
		dec.Outcome = OutcomeInactive
		dec.Reason = MsgInactive
	case remote.VerifyNotPaid:
		dec.Outcome = OutcomeNotPaid
		dec.Reason = MsgNotPaid
	case remote.VerifyNotFound:
		dec.Outcome = OutcomeNotFound
		dec.Reason = MsgNotFound
	default:
		dec.Outcome = OutcomeError
		dec.Reason = resp.Message
		if dec.Reason == "" {
			dec.Reason = "unrecognized verification result"
		}
	}
	return dec, nil
}

// decideOffline resolves the token against the local credential snapshot.
// Never blocks on the network. An admissible token produces a fresh nonce
// and a durable PendingCheckin before the decision is returned.
func (d *Decider) decideOffline(ctx context.Context, token, checkinType, sessionID string) (Decision, error) {
	now := d.clock.Now()

	cred, err := d.store.LookupCredential(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{
			Outcome:     OutcomeNotFound,
			CheckinType: checkinType,
			Reason:      MsgNotFound,
			Offline:     true,
			At:          now,
		}, nil
	}
	if err != nil {
		return Decision{}, NewPersistenceError("lookup credential", err)
	}

	// Denials still carry the display identity for staff feedback.
	dec := Decision{
		PersonName:       cred.PersonName,
		KoreanName:       cred.KoreanName,
		ConfirmationCode: cred.ConfirmationCode,
		CheckinType:      checkinType,
		Offline:          true,
		At:               now,
	}

	if !cred.IsActive {
		dec.Outcome = OutcomeInactive
		dec.Reason = MsgInactive
		return dec, nil
	}
	if cred.RegistrationStatus != store.StatusPaid {
		dec.Outcome = OutcomeNotPaid
		dec.Reason = MsgNotPaid
		return dec, nil
	}

	// Admit. The nonce is minted here, once, and survives every retry.
	nonce := d.nonces.Generate()
	_, err = d.store.EnqueuePending(ctx, store.PendingCheckin{
		Token:       token,
		CheckinType: checkinType,
		SessionID:   sessionID,
		RecordedAt:  now,
		Nonce:       nonce,
	})
	if err != nil {
		return Decision{}, NewPersistenceError("enqueue pending", err)
	}

	dec.Outcome = OutcomeCheckedIn
	dec.Nonce = nonce
	return dec, nil
}
