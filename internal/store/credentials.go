package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// ReplaceCredentials atomically discards the prior snapshot and installs the
// new one in a single transaction. A concurrent reader either sees the old
// snapshot or the new one, never a mix.
//
// eventID identifies the event the snapshot belongs to; it is recorded in
// meta together with the load instant so staleness is visible to operators.
func (s *Store) ReplaceCredentials(ctx context.Context, eventID string, creds []Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace credentials: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("replace credentials: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO credentials
		(token, person_name, korean_name, confirmation_code, is_active, registration_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace credentials: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range creds {
		_, err := stmt.ExecContext(ctx,
			c.Token,
			c.PersonName,
			c.KoreanName,
			c.ConfirmationCode,
			c.IsActive,
			c.RegistrationStatus,
		)
		if err != nil {
			return fmt.Errorf("replace credentials: insert token %q: %w", c.Token, err)
		}
	}

	if err := setMetaTx(ctx, tx, metaActiveEvent, eventID); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace credentials: commit: %w", err)
	}
	return nil
}

// LookupCredential returns the cached credential for a token.
// Returns ErrNotFound if the token is not in the current snapshot.
// Pure read - no side effects.
func (s *Store) LookupCredential(ctx context.Context, token string) (Credential, error) {
	var c Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT token, person_name, korean_name, confirmation_code, is_active, registration_status
		FROM credentials
		WHERE token = ?
	`, token).Scan(
		&c.Token,
		&c.PersonName,
		&c.KoreanName,
		&c.ConfirmationCode,
		&c.IsActive,
		&c.RegistrationStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("lookup credential: %w", err)
	}
	return c, nil
}

// CredentialCount returns the number of credentials in the current snapshot.
func (s *Store) CredentialCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("credential count: %w", err)
	}
	return n, nil
}
