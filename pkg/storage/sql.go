package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQL stores entries in a table of a database/sql database:
//
//	CREATE TABLE localstate_items (
//	    key   TEXT PRIMARY KEY,
//	    value TEXT,             -- NULL marks a removed entry
//	    rev   INTEGER NOT NULL
//	);
//
// Every write bumps rev to one past the table maximum. Subscribers are
// notified by polling for rows with a newer rev, so handles opened by other
// processes on the same database see each other's changes.
type SQL struct {
	id        string
	db        *sql.DB
	ownsDB    bool
	table     string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	subs      hub
	closeOnce sync.Once

	mu      sync.Mutex
	known   map[string]string
	lastRev int64
	closed  bool

	pollMu sync.Mutex
	stop   chan struct{}
}

// SQLOption configures a SQL store.
type SQLOption func(*SQL)

// WithSQLTable sets the table name. Default: "localstate_items".
func WithSQLTable(name string) SQLOption {
	return func(s *SQL) {
		s.table = name
	}
}

// WithSQLPollInterval sets how often subscribers poll for changes.
// Default: 500ms.
func WithSQLPollInterval(d time.Duration) SQLOption {
	return func(s *SQL) {
		s.interval = d
	}
}

// WithSQLTimeout bounds each statement. Default: 5s.
func WithSQLTimeout(d time.Duration) SQLOption {
	return func(s *SQL) {
		s.timeout = d
	}
}

// WithSQLLogger sets the logger used for poll errors.
func WithSQLLogger(logger *slog.Logger) SQLOption {
	return func(s *SQL) {
		s.logger = logger
	}
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenSQLite opens (creating if needed) a SQLite database file and returns a
// store on it. The database is closed with the store.
func OpenSQLite(path string, opts ...SQLOption) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite open: %w", err)
	}
	s, err := NewSQL(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQL returns a store on db, creating the table if needed. The caller
// keeps ownership of db. Queries use "?" placeholders.
func NewSQL(db *sql.DB, opts ...SQLOption) (*SQL, error) {
	s := &SQL{
		id:       newID(),
		db:       db,
		table:    "localstate_items",
		interval: 500 * time.Millisecond,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
		known:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !tableNamePattern.MatchString(s.table) {
		return nil, fmt.Errorf("storage: invalid table name %q", s.table)
	}

	ctx, cancel := s.ctx()
	defer cancel()
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT,
		rev INTEGER NOT NULL
	)`, s.table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("storage: sql schema: %w", err)
	}
	return s, nil
}

func (s *SQL) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// ID returns the handle identifier.
func (s *SQL) ID() string { return s.id }

// Available always reports true.
func (s *SQL) Available() bool { return true }

func (s *SQL) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GetItem returns the value stored under key.
func (s *SQL) GetItem(key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	ctx, cancel := s.ctx()
	defer cancel()

	var value sql.NullString
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.table)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: sql get %q: %w", key, err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

// SetItem upserts key.
func (s *SQL) SetItem(key, value string) error {
	return s.write(key, sql.NullString{String: value, Valid: true})
}

// RemoveItem marks key as removed.
func (s *SQL) RemoveItem(key string) error {
	return s.write(key, sql.NullString{})
}

func (s *SQL) write(key string, value sql.NullString) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	if value.Valid {
		s.known[key] = value.String
	} else {
		delete(s.known, key)
	}
	s.mu.Unlock()

	ctx, cancel := s.ctx()
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %[1]s (key, value, rev)
		VALUES (?, ?, (SELECT COALESCE(MAX(rev), 0) + 1 FROM %[1]s))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("storage: sql write %q: %w", key, err)
	}
	return nil
}

// Clear marks every entry as removed.
func (s *SQL) Clear() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.RemoveItem(key); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists stored keys in sorted order.
func (s *SQL) Keys() ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	ctx, cancel := s.ctx()
	defer cancel()

	query := fmt.Sprintf("SELECT key FROM %s WHERE value IS NOT NULL ORDER BY key", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: sql keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("storage: sql keys: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Subscribe registers fn for changes made through other handles. Polling
// runs while at least one subscriber exists.
func (s *SQL) Subscribe(fn func(Event)) func() {
	s.pollMu.Lock()
	cancel, count := s.subs.add(fn)
	if count == 1 {
		s.startPollLocked()
	}
	s.pollMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.pollMu.Lock()
			defer s.pollMu.Unlock()
			cancel()
			if s.subs.len() == 0 {
				s.stopPollLocked()
			}
		})
	}
}

type sqlRow struct {
	key   string
	value sql.NullString
	rev   int64
}

func (s *SQL) changedSince(rev int64) ([]sqlRow, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	query := fmt.Sprintf("SELECT key, value, rev FROM %s WHERE rev > ? ORDER BY rev", s.table)
	rows, err := s.db.QueryContext(ctx, query, rev)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sqlRow
	for rows.Next() {
		var r sqlRow
		if err := rows.Scan(&r.key, &r.value, &r.rev); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// startPollLocked requires pollMu.
func (s *SQL) startPollLocked() {
	if s.stop != nil {
		return
	}

	// Baseline: everything currently stored is known.
	rows, err := s.changedSince(0)
	if err != nil {
		s.logger.Warn("storage: sql poll baseline failed", "table", s.table, "error", err)
	}
	s.mu.Lock()
	for _, r := range rows {
		if r.value.Valid {
			s.known[r.key] = r.value.String
		}
		if r.rev > s.lastRev {
			s.lastRev = r.rev
		}
	}
	s.mu.Unlock()

	s.stop = make(chan struct{})
	go s.pollLoop(s.stop)
}

// stopPollLocked requires pollMu.
func (s *SQL) stopPollLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *SQL) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// poll emits events for rows changed by other handles since the last poll.
func (s *SQL) poll() {
	s.mu.Lock()
	since := s.lastRev
	s.mu.Unlock()

	rows, err := s.changedSince(since)
	if err != nil {
		s.logger.Warn("storage: sql poll failed", "table", s.table, "error", err)
		return
	}

	for _, r := range rows {
		s.mu.Lock()
		if r.rev > s.lastRev {
			s.lastRev = r.rev
		}
		previous, known := s.known[r.key]
		if r.value.Valid == known && r.value.String == previous {
			s.mu.Unlock()
			continue
		}
		if r.value.Valid {
			s.known[r.key] = r.value.String
		} else {
			delete(s.known, r.key)
		}
		s.mu.Unlock()

		ev := Event{Key: r.key, Area: s}
		if known {
			ev.OldValue = String(previous)
		}
		if r.value.Valid {
			ev.NewValue = String(r.value.String)
		}
		s.subs.emit(ev)
	}
}

// Close stops polling and closes the database if the store opened it.
func (s *SQL) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.pollMu.Lock()
		s.stopPollLocked()
		s.pollMu.Unlock()
		if s.ownsDB {
			err = s.db.Close()
		}
	})
	return err
}
