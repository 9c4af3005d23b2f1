/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements linen.TxStore and linen.SessionStore using SQLite. Each record
  is one row holding its JSON document; a collection is the set of rows
  sharing a collection name, ordered by an autoincrement sequence.

INTERFACES IMPLEMENTED:
  linen.TxStore:      Ordered document collections + WithTx
  linen.SessionStore: Single-value session slot

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement is ever issued against rows of the rols
  collection. Update() and Delete() reject it before touching SQL.
  Quarantine is the exception: it moves corrupt rows to the quarantine
  table, where they stay.

KEY TABLES:
  records:    collection, id, seq, body (JSON)
  quarantine: rows moved aside by corrupt-state recovery
  session:    at most one row, the active user id

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single database connection.
  The single connection is what makes ":memory:" databases behave (each
  new connection would otherwise see an empty database) and it serializes
  writers the way SQLite wants anyway.

USAGE:
  store, err := sqlite.New("./data/rol.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  entities := linen.NewEntities(store)

SEE ALSO:
  - linen/store.go: Interface definitions
  - linen/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/laundry-ledger/linen"
)

var (
	_ linen.TxStore      = (*Store)(nil)
	_ linen.SessionStore = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
//
// Transactions begin IMMEDIATE: the write lock is taken before the first
// read, so another process appending to the same file makes this one wait
// for the busy timeout instead of failing on the lock upgrade.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Documents of every collection, ordered by seq
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection_seq
		ON records(collection, seq);

	-- Rows moved aside by corrupt-state recovery
	CREATE TABLE IF NOT EXISTS quarantine (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		quarantined_at TEXT NOT NULL
	);

	-- Last number issued per collection. Quarantine does not touch it.
	CREATE TABLE IF NOT EXISTS sequences (
		collection TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Active session (at most one row)
	CREATE TABLE IF NOT EXISTS session (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		user_id TEXT NOT NULL,
		started_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// DOCUMENT STORE (linen.Store interface)
// =============================================================================

func (s *Store) List(ctx context.Context, c linen.Collection) ([]linen.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(ctx, s.db, c)
}

func (s *Store) Get(ctx context.Context, c linen.Collection, id string) (linen.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(ctx, s.db, c, id)
}

func (s *Store) Count(ctx context.Context, c linen.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return count(ctx, s.db, c)
}

func (s *Store) Insert(ctx context.Context, c linen.Collection, rec linen.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(ctx, s.db, c, rec)
}

func (s *Store) Update(ctx context.Context, c linen.Collection, rec linen.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return update(ctx, s.db, c, rec)
}

func (s *Store) Delete(ctx context.Context, c linen.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(ctx, s.db, c, id)
}

// Quarantine moves a whole collection to the quarantine table atomically.
func (s *Store) Quarantine(ctx context.Context, c linen.Collection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	n, err := quarantine(ctx, sqlTx, c)
	if err != nil {
		return 0, err
	}
	return n, sqlTx.Commit()
}

func (s *Store) Sequence(ctx context.Context, c linen.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sequence(ctx, s.db, c)
}

func (s *Store) SetSequence(ctx context.Context, c linen.Collection, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setSequence(ctx, s.db, c, n)
}

// QuarantinedCount returns how many rows of a collection sit in quarantine.
func (s *Store) QuarantinedCount(ctx context.Context, c linen.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM quarantine WHERE collection = ?", string(c),
	).Scan(&n)
	return n, err
}

func list(ctx context.Context, db execer, c linen.Collection) ([]linen.Record, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, body FROM records WHERE collection = ? ORDER BY seq ASC", string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	records := []linen.Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", c, err)
		}
		records = append(records, linen.Record{ID: id, Body: json.RawMessage(body)})
	}
	return records, rows.Err()
}

func get(ctx context.Context, db execer, c linen.Collection, id string) (linen.Record, error) {
	var body string
	err := db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?", string(c), id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return linen.Record{}, &linen.NotFoundError{Collection: c, ID: id}
	}
	if err != nil {
		return linen.Record{}, fmt.Errorf("failed to get %s %q: %w", c, id, err)
	}
	return linen.Record{ID: id, Body: json.RawMessage(body)}, nil
}

func count(ctx context.Context, db execer, c linen.Collection) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", string(c),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c, err)
	}
	return n, nil
}

func insert(ctx context.Context, db execer, c linen.Collection, rec linen.Record) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO records (collection, id, body, updated_at) VALUES (?, ?, ?, ?)",
		string(c), rec.ID, string(rec.Body), now(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &linen.DuplicateKeyError{Collection: c, ID: rec.ID}
		}
		return fmt.Errorf("failed to insert %s %q: %w", c, rec.ID, err)
	}
	return nil
}

func update(ctx context.Context, db execer, c linen.Collection, rec linen.Record) error {
	if c.AppendOnly() {
		return linen.ErrAppendOnly
	}
	res, err := db.ExecContext(ctx,
		"UPDATE records SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(rec.Body), now(), string(c), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s %q: %w", c, rec.ID, err)
	}
	return requireAffected(res, c, rec.ID)
}

func remove(ctx context.Context, db execer, c linen.Collection, id string) error {
	if c.AppendOnly() {
		return linen.ErrAppendOnly
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND id = ?", string(c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", c, id, err)
	}
	return requireAffected(res, c, id)
}

func quarantine(ctx context.Context, db execer, c linen.Collection) (int, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO quarantine (collection, id, body, quarantined_at)
		SELECT collection, id, body, ? FROM records WHERE collection = ? ORDER BY seq`,
		now(), string(c),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to quarantine %s: %w", c, err)
	}
	res, err := db.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", string(c))
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", c, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func sequence(ctx context.Context, db execer, c linen.Collection) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT value FROM sequences WHERE collection = ?", string(c),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s sequence: %w", c, err)
	}
	return n, nil
}

func setSequence(ctx context.Context, db execer, c linen.Collection, n int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sequences (collection, value) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET value = excluded.value`,
		string(c), n,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s sequence: %w", c, err)
	}
	return nil
}

func requireAffected(res sql.Result, c linen.Collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &linen.NotFoundError{Collection: c, ID: id}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (linen.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store linen.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore routes every call through the open SQL transaction. It must not
// call back into Store methods: those take s.mu, which WithTx already holds.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) List(ctx context.Context, c linen.Collection) ([]linen.Record, error) {
	return list(ctx, ts.tx, c)
}

func (ts *txStore) Get(ctx context.Context, c linen.Collection, id string) (linen.Record, error) {
	return get(ctx, ts.tx, c, id)
}

func (ts *txStore) Count(ctx context.Context, c linen.Collection) (int, error) {
	return count(ctx, ts.tx, c)
}

func (ts *txStore) Insert(ctx context.Context, c linen.Collection, rec linen.Record) error {
	return insert(ctx, ts.tx, c, rec)
}

func (ts *txStore) Update(ctx context.Context, c linen.Collection, rec linen.Record) error {
	return update(ctx, ts.tx, c, rec)
}

func (ts *txStore) Delete(ctx context.Context, c linen.Collection, id string) error {
	return remove(ctx, ts.tx, c, id)
}

func (ts *txStore) Quarantine(ctx context.Context, c linen.Collection) (int, error) {
	return quarantine(ctx, ts.tx, c)
}

func (ts *txStore) Sequence(ctx context.Context, c linen.Collection) (int, error) {
	return sequence(ctx, ts.tx, c)
}

func (ts *txStore) SetSequence(ctx context.Context, c linen.Collection, n int) error {
	return setSequence(ctx, ts.tx, c, n)
}

// =============================================================================
// SESSION STORE (linen.SessionStore interface)
// =============================================================================

func (s *Store) CurrentSession(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var userID string
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM session WHERE slot = 1").Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return userID, true, nil
}

func (s *Store) SetSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (slot, user_id, started_at) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			user_id = excluded.user_id,
			started_at = excluded.started_at`,
		userID, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
