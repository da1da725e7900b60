package actionlog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teemow/inboxsweeper/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS sender_actions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	sender       TEXT NOT NULL,
	action       TEXT NOT NULL,
	status       TEXT NOT NULL,
	job_id       TEXT NOT NULL DEFAULT '',
	detail       TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sender_actions_sender ON sender_actions(sender);
CREATE INDEX IF NOT EXISTS idx_sender_actions_status ON sender_actions(status);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	started_at      INTEGER NOT NULL,
	last_update     INTEGER NOT NULL,
	completed_at    INTEGER,
	senders_scanned INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sender_stats (
	run_id        TEXT NOT NULL,
	sender        TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	unread_count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, sender)
);

CREATE TABLE IF NOT EXISTS stats_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// Store is a SQLite-backed action log. It is safe for concurrent use;
// database/sql serializes access to the underlying connection pool.
type Store struct {
	db     *sql.DB
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBus sets the events bus used to publish action notifications.
func WithBus(bus *events.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the action log database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open action log database: %w", err)
	}

	// WAL allows concurrent readers while a writer is active.
	// busy_timeout reduces SQLITE_BUSY errors under contention.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create action log schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(key string, payload any) {
	if s.bus != nil {
		s.bus.Publish(events.TopicActions, key, payload)
	}
}
