package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultLogCap is the default size of the bounded check-in log window.
const DefaultLogCap = 200

// AppendLog appends one check-in attempt to the bounded log and trims the
// window to cap rows in the same transaction. The log is display-only: it
// is never read back for decisions and never synced.
func (s *Store) AppendLog(ctx context.Context, e LogEntry, cap int) error {
	if cap <= 0 {
		cap = DefaultLogCap
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append log: begin tx: %w", err)
	}
	defer tx.Rollback()

	errMsg := sql.NullString{String: e.ErrorMessage, Valid: e.ErrorMessage != ""}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkin_log
		(person_name, korean_name, confirmation_code, status, checkin_type, recorded_at, is_offline, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.PersonName,
		e.KoreanName,
		e.ConfirmationCode,
		e.Status,
		e.CheckinType,
		e.RecordedAt.UTC().Format(timeFormat),
		e.IsOffline,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("append log: insert: %w", err)
	}

	// Keep only the newest cap rows.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM checkin_log
		WHERE id NOT IN (SELECT id FROM checkin_log ORDER BY id DESC LIMIT ?)
	`, cap)
	if err != nil {
		return fmt.Errorf("append log: trim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append log: commit: %w", err)
	}
	return nil
}

// RecentLog returns up to limit log entries, newest first.
func (s *Store) RecentLog(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogCap
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, person_name, korean_name, confirmation_code, status, checkin_type, recorded_at, is_offline, error_message
		FROM checkin_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var recordedAt string
		var errMsg sql.NullString
		err := rows.Scan(&e.ID, &e.PersonName, &e.KoreanName, &e.ConfirmationCode,
			&e.Status, &e.CheckinType, &recordedAt, &e.IsOffline, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("recent log: scan: %w", err)
		}
		e.ErrorMessage = errMsg.String
		if e.RecordedAt, err = time.Parse(timeFormat, recordedAt); err != nil {
			return nil, fmt.Errorf("recent log: parse recorded_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent log: %w", err)
	}
	return out, nil
}

// LogCount returns the number of rows currently in the log window.
func (s *Store) LogCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkin_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("log count: %w", err)
	}
	return n, nil
}
