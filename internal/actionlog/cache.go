package actionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StatsCacheTTL is how long cached mailbox statistics stay valid.
const StatsCacheTTL = 30 * time.Minute

// CachedStats returns the cached payload for key if it exists and is
// younger than StatsCacheTTL. The boolean reports a cache hit.
func (s *Store) CachedStats(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM stats_cache WHERE key = ?
	`, key)

	var payload string
	var fetchedAt int64
	err := row.Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read stats cache: %w", err)
	}

	if s.now().Sub(time.Unix(fetchedAt, 0)) > StatsCacheTTL {
		return "", false, nil
	}
	return payload, true, nil
}

// PutStats stores a payload under key, replacing any previous entry
// and resetting its age.
func (s *Store) PutStats(ctx context.Context, key, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats_cache (key, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, key, payload, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write stats cache: %w", err)
	}
	return nil
}
