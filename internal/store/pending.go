package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeFormat is how instants are stored in TEXT columns. RFC 3339 keeps the
// rows readable and sorts lexicographically within one device's clock.
const timeFormat = time.RFC3339Nano

// EnqueuePending appends an offline admission to the pending queue and
// returns its local id.
//
// Uses ON CONFLICT(nonce) DO NOTHING for idempotency - re-inserting the
// same decision (e.g. after a crash between write and UI update) is
// silently ignored and the existing row's id is returned.
func (s *Store) EnqueuePending(ctx context.Context, p PendingCheckin) (int64, error) {
	sessionID := sql.NullString{String: p.SessionID, Valid: p.SessionID != ""}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_checkins
		(token, checkin_type, session_id, recorded_at, nonce, attempts)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(nonce) DO NOTHING
	`,
		p.Token,
		p.CheckinType,
		sessionID,
		p.RecordedAt.UTC().Format(timeFormat),
		p.Nonce,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue pending: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("enqueue pending: rows affected: %w", err)
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("enqueue pending: last insert id: %w", err)
		}
		return id, nil
	}

	// Conflict - the nonce is already queued, fetch the existing id.
	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM pending_checkins WHERE nonce = ?`, p.Nonce,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue pending: select existing: %w", err)
	}
	return id, nil
}

// ListPending returns all queued check-ins in insertion order.
func (s *Store) ListPending(ctx context.Context) ([]PendingCheckin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, checkin_type, session_id, recorded_at, nonce, attempts
		FROM pending_checkins
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []PendingCheckin
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

// PendingCount returns the number of queued check-ins.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_checkins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}

// DeletePendingByNonce removes an acknowledged row from the queue.
// Deleting a nonce that is already gone is a no-op - a retried drain that
// re-acknowledges an old nonce must not fail.
func (s *Store) DeletePendingByNonce(ctx context.Context, nonce string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_checkins WHERE nonce = ?`, nonce,
	); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	return nil
}

// BumpPendingAttempts increments the attempt counter for a nonce whose sync
// outcome was an error. Returns the new attempt count, or ErrNotFound if
// the row no longer exists.
func (s *Store) BumpPendingAttempts(ctx context.Context, nonce string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_checkins SET attempts = attempts + 1 WHERE nonce = ?`, nonce,
	)
	if err != nil {
		return 0, fmt.Errorf("bump attempts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump attempts: rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrNotFound
	}

	var attempts int
	err = s.db.QueryRowContext(ctx,
		`SELECT attempts FROM pending_checkins WHERE nonce = ?`, nonce,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("bump attempts: read back: %w", err)
	}
	return attempts, nil
}

// DeadLetterPending moves a pending row to dead_checkins in one
// transaction. Called when a row's attempt count reaches the retry limit.
// Idempotent: a nonce already dead-lettered (or already deleted) is a no-op.
func (s *Store) DeadLetterPending(ctx context.Context, nonce string, deadAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dead letter: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dead_checkins
		(token, checkin_type, session_id, recorded_at, nonce, attempts, dead_at)
		SELECT token, checkin_type, session_id, recorded_at, nonce, attempts, ?
		FROM pending_checkins WHERE nonce = ?
		ON CONFLICT(nonce) DO NOTHING
	`, deadAt.UTC().Format(timeFormat), nonce)
	if err != nil {
		return fmt.Errorf("dead letter: copy: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_checkins WHERE nonce = ?`, nonce,
	); err != nil {
		return fmt.Errorf("dead letter: delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dead letter: commit: %w", err)
	}
	return nil
}

// DeadCount returns the number of dead-lettered check-ins.
func (s *Store) DeadCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_checkins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("dead count: %w", err)
	}
	return n, nil
}

// ListDead returns all dead-lettered check-ins in insertion order.
func (s *Store) ListDead(ctx context.Context) ([]DeadCheckin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, checkin_type, session_id, recorded_at, nonce, attempts, dead_at
		FROM dead_checkins
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list dead: %w", err)
	}
	defer rows.Close()

	var out []DeadCheckin
	for rows.Next() {
		var d DeadCheckin
		var sessionID sql.NullString
		var recordedAt, deadAt string
		err := rows.Scan(&d.LocalID, &d.Token, &d.CheckinType, &sessionID,
			&recordedAt, &d.Nonce, &d.Attempts, &deadAt)
		if err != nil {
			return nil, fmt.Errorf("list dead: scan: %w", err)
		}
		d.SessionID = sessionID.String
		if d.RecordedAt, err = time.Parse(timeFormat, recordedAt); err != nil {
			return nil, fmt.Errorf("list dead: parse recorded_at: %w", err)
		}
		if d.DeadAt, err = time.Parse(timeFormat, deadAt); err != nil {
			return nil, fmt.Errorf("list dead: parse dead_at: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dead: %w", err)
	}
	return out, nil
}

func scanPending(rows *sql.Rows) (PendingCheckin, error) {
	var p PendingCheckin
	var sessionID sql.NullString
	var recordedAt string
	err := rows.Scan(&p.LocalID, &p.Token, &p.CheckinType, &sessionID,
		&recordedAt, &p.Nonce, &p.Attempts)
	if err != nil {
		return PendingCheckin{}, fmt.Errorf("scan: %w", err)
	}
	p.SessionID = sessionID.String
	if p.RecordedAt, err = time.Parse(timeFormat, recordedAt); err != nil {
		return PendingCheckin{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	return p, nil
}
