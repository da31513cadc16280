/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Persists the record collections, the archive history and the scalar
  settings in one SQLite file. Documents stay JSON; the store only knows
  keys, collections and timestamps.

KEY TABLES:
  documents: (collection, key) -> JSON body, first-insert order kept
  archives:  closed months; label_key enforces one archive per label
  settings:  scalar values (lastMonthMarker, schemaVersion)

LABEL UNIQUENESS:
  SQLite's NOCASE collation folds ASCII only and month labels are
  Cyrillic, so the unique column holds the label lower-cased in Go.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for
  the whole transaction and the Store it hands out runs every statement
  on the *sql.Tx, so nothing inside fn re-enters the lock.

WAL MODE:
  Files are opened with WAL (Write-Ahead Logging): readers don't block
  the single writer. ":memory:" databases use one connection, otherwise
  each pooled connection would see its own empty database.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := records.New(store)

MIGRATION:
  Schema is auto-migrated on New(). Document-level upgrades (field
  renames) are records.Migrate's job.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
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

	"github.com/warp/sales-payroll/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Record collections (managers, managerReports, ...)
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (collection, key)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection, seq);

	-- Closed months
	CREATE TABLE IF NOT EXISTS archives (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		label_key TEXT NOT NULL UNIQUE,
		stats TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Scalar settings
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) read() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, generic.ErrStoreClosed
	}
	return s.mu.RUnlock, nil
}

func (s *Store) write() (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, generic.ErrStoreClosed
	}
	return s.mu.Unlock, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Store) List(ctx context.Context, coll generic.Collection) ([]generic.Document, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return listDocs(ctx, s.db, coll)
}

func (s *Store) Get(ctx context.Context, coll generic.Collection, key string) (*generic.Document, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return getDoc(ctx, s.db, coll, key)
}

func (s *Store) Put(ctx context.Context, coll generic.Collection, docs ...generic.Document) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return s.inTx(ctx, func(q querier) error { return s.putDocs(ctx, q, coll, docs) })
}

func (s *Store) Delete(ctx context.Context, coll generic.Collection, keys ...string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return s.inTx(ctx, func(q querier) error { return deleteDocs(ctx, q, coll, keys) })
}

// inTx runs a multi-statement write atomically. Caller holds the lock.
func (s *Store) inTx(ctx context.Context, fn func(querier) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func listDocs(ctx context.Context, q querier, coll generic.Collection) ([]generic.Document, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT key, body, updated_at FROM documents WHERE collection = ? ORDER BY seq`, string(coll))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", coll, err)
	}
	defer rows.Close()

	var result []generic.Document
	for rows.Next() {
		var (
			d       generic.Document
			body    string
			updated string
		)
		if err := rows.Scan(&d.Key, &body, &updated); err != nil {
			return nil, err
		}
		d.Body = json.RawMessage(body)
		d.UpdatedAt = parseTime(updated)
		result = append(result, d)
	}
	return result, rows.Err()
}

func getDoc(ctx context.Context, q querier, coll generic.Collection, key string) (*generic.Document, error) {
	var body, updated string
	err := q.QueryRowContext(ctx,
		`SELECT body, updated_at FROM documents WHERE collection = ? AND key = ?`, string(coll), key).
		Scan(&body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", coll, key, err)
	}
	return &generic.Document{Key: key, Body: json.RawMessage(body), UpdatedAt: parseTime(updated)}, nil
}

func (s *Store) putDocs(ctx context.Context, q querier, coll generic.Collection, docs []generic.Document) error {
	query := `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	for _, d := range docs {
		updated := d.UpdatedAt
		if updated.IsZero() {
			updated = s.now()
		}
		if _, err := q.ExecContext(ctx, query, string(coll), d.Key, string(d.Body), formatTime(updated)); err != nil {
			return fmt.Errorf("failed to put %s/%s: %w", coll, d.Key, err)
		}
	}
	return nil
}

func deleteDocs(ctx context.Context, q querier, coll generic.Collection, keys []string) error {
	for _, k := range keys {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND key = ?`, string(coll), k); err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", coll, k, err)
		}
	}
	return nil
}

// =============================================================================
// ARCHIVES
// =============================================================================

func (s *Store) Archives(ctx context.Context) ([]generic.ArchiveRecord, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return listArchives(ctx, s.db)
}

func (s *Store) Archive(ctx context.Context, id string) (*generic.ArchiveRecord, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return getArchive(ctx, s.db, id)
}

func (s *Store) SaveArchive(ctx context.Context, rec generic.ArchiveRecord) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return s.saveArchive(ctx, s.db, rec)
}

func (s *Store) DeleteArchive(ctx context.Context, id string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return deleteArchive(ctx, s.db, id)
}

const archiveColumns = `id, label, stats, created_at, updated_at`

func listArchives(ctx context.Context, q querier) ([]generic.ArchiveRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+archiveColumns+` FROM archives ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	defer rows.Close()

	var result []generic.ArchiveRecord
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func getArchive(ctx context.Context, q querier, id string) (*generic.ArchiveRecord, error) {
	rec, err := scanArchive(q.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive %s: %w", id, err)
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(row scanner) (generic.ArchiveRecord, error) {
	var (
		rec              generic.ArchiveRecord
		stats            sql.NullString
		created, updated string
	)
	if err := row.Scan(&rec.ID, &rec.Label, &stats, &created, &updated); err != nil {
		return generic.ArchiveRecord{}, err
	}
	if stats.Valid {
		rec.Stats = json.RawMessage(stats.String)
	}
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return rec, nil
}

func (s *Store) saveArchive(ctx context.Context, q querier, rec generic.ArchiveRecord) error {
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	query := `
		INSERT INTO archives (id, label, label_key, stats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			label_key = excluded.label_key,
			stats = excluded.stats,
			updated_at = excluded.updated_at
	`
	var stats sql.NullString
	if len(rec.Stats) > 0 {
		stats = sql.NullString{String: string(rec.Stats), Valid: true}
	}
	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.Label,
		labelKey(rec.Label),
		stats,
		formatTime(rec.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateLabel
		}
		return fmt.Errorf("failed to save archive %s: %w", rec.ID, err)
	}
	return nil
}

func deleteArchive(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM archives WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", id, err)
	}
	return nil
}

func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	unlock, err := s.read()
	if err != nil {
		return "", false, err
	}
	defer unlock()
	return getSetting(ctx, s.db, key)
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return putSetting(ctx, s.db, key, value)
}

func getSetting(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func putSetting(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()

	return s.inTx(ctx, func(q querier) error {
		return fn(&txStore{tx: q, parent: s})
	})
}

type txStore struct {
	tx     querier
	parent *Store
}

func (ts *txStore) List(ctx context.Context, coll generic.Collection) ([]generic.Document, error) {
	return listDocs(ctx, ts.tx, coll)
}

func (ts *txStore) Get(ctx context.Context, coll generic.Collection, key string) (*generic.Document, error) {
	return getDoc(ctx, ts.tx, coll, key)
}

func (ts *txStore) Put(ctx context.Context, coll generic.Collection, docs ...generic.Document) error {
	return ts.parent.putDocs(ctx, ts.tx, coll, docs)
}

func (ts *txStore) Delete(ctx context.Context, coll generic.Collection, keys ...string) error {
	return deleteDocs(ctx, ts.tx, coll, keys)
}

func (ts *txStore) Archives(ctx context.Context) ([]generic.ArchiveRecord, error) {
	return listArchives(ctx, ts.tx)
}

func (ts *txStore) Archive(ctx context.Context, id string) (*generic.ArchiveRecord, error) {
	return getArchive(ctx, ts.tx, id)
}

func (ts *txStore) SaveArchive(ctx context.Context, rec generic.ArchiveRecord) error {
	return ts.parent.saveArchive(ctx, ts.tx, rec)
}

func (ts *txStore) DeleteArchive(ctx context.Context, id string) error {
	return deleteArchive(ctx, ts.tx, id)
}

func (ts *txStore) Setting(ctx context.Context, key string) (string, bool, error) {
	return getSetting(ctx, ts.tx, key)
}

func (ts *txStore) PutSetting(ctx context.Context, key, value string) error {
	return putSetting(ctx, ts.tx, key, value)
}

// =============================================================================
// HELPERS
// =============================================================================

// Reset removes every row. Used by tests and the demo seed.
func (s *Store) Reset(ctx context.Context) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	return s.inTx(ctx, func(q querier) error {
		for _, table := range []string{"documents", "archives", "settings"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
