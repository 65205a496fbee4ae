package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// SyncStateStore implements domain.SyncStateStore using PostgreSQL. The
// table is a small key/value map carrying the scan cursor and any future
// coordination markers.
type SyncStateStore struct {
	pool *pgxpool.Pool
}

var _ domain.SyncStateStore = (*SyncStateStore)(nil)

// NewSyncStateStore creates a new SyncStateStore backed by the given pool.
func NewSyncStateStore(pool *pgxpool.Pool) *SyncStateStore {
	return &SyncStateStore{pool: pool}
}

// Get returns the stored value for key, or domain.ErrNotFound.
func (s *SyncStateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM sync_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("postgres: get sync state %q: %w", key, err)
	}
	return value, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *SyncStateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres: set sync state %q: %w", key, err)
	}
	return nil
}
