package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Meta keys.
const (
	metaActiveEvent = "active_event"
	metaCacheLoaded = "cache_loaded_at"
)

// SetCacheLoadedAt records when the credential snapshot was last refreshed.
func (s *Store) SetCacheLoadedAt(ctx context.Context, t time.Time) error {
	return s.setMeta(ctx, metaCacheLoaded, t.UTC().Format(timeFormat))
}

// CacheLoadedAt returns the last successful refresh instant, or the zero
// time if the cache has never been loaded.
func (s *Store) CacheLoadedAt(ctx context.Context) (time.Time, error) {
	v, err := s.getMeta(ctx, metaCacheLoaded)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("cache loaded at: parse: %w", err)
	}
	return t, nil
}

// ActiveEvent returns the event id of the current credential snapshot, or
// "" if no snapshot has been loaded.
func (s *Store) ActiveEvent(ctx context.Context) (string, error) {
	v, err := s.getMeta(ctx, metaActiveEvent)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get meta %q: %w", key, err)
	}
	return v, nil
}

// setMetaTx is the transactional variant used by ReplaceCredentials.
func setMetaTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
