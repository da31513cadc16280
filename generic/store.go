/*
store.go - Persistence interface for record collections, archives and settings

PURPOSE:
  Defines the interface between the payroll domain and the database. The
  persisted state is a set of keyed JSON documents per collection (the
  logical layout managers[], experts[], managerReports[], ...), a list of
  archive entries, and a handful of scalar settings such as the
  last-month marker.

KEY INTERFACES:
  Store:   Documents, archives and settings
  TxStore: Store + atomic multi-write (month close)

NATURAL KEYS:
  Documents are upserted by key. Report keys are the natural key
  (entityId|date), so a store can never hold two rows for the same
  (entity, day). Last write wins.

READ YOUR OWN WRITE:
  Every implementation must make a Put visible to the very next List on
  the same process, regardless of any remote replication.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing and dev
  - store/sqlite/sqlite.go: SQLite
  - store/redissync/mirror.go: Write-behind wrapper around either

SEE ALSO:
  - records/repository.go: Typed access on top of Store
  - archive/manager.go: Uses TxStore to close a month atomically
*/
package generic

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// Document is one persisted record.
type Document struct {
	Key       string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// ArchiveRecord is the storage form of a closed month. Stats is opaque to
// the store; Label is unique (case-insensitive).
type ArchiveRecord struct {
	ID        string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Stats     json.RawMessage
}

// Setting keys.
const (
	SettingLastMonth     = "lastMonthMarker"
	SettingSchemaVersion = "schemaVersion"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists documents, archives and settings.
type Store interface {
	// List returns every document of a collection in first-insert order.
	List(ctx context.Context, coll Collection) ([]Document, error)

	// Get returns one document, or nil when the key is absent.
	Get(ctx context.Context, coll Collection, key string) (*Document, error)

	// Put upserts documents by key. A zero UpdatedAt is stamped with now.
	Put(ctx context.Context, coll Collection, docs ...Document) error

	// Delete removes documents by key. Missing keys are ignored.
	Delete(ctx context.Context, coll Collection, keys ...string) error

	// Archives returns every archive record in creation order.
	Archives(ctx context.Context) ([]ArchiveRecord, error)

	// Archive returns one archive record, or nil when absent.
	Archive(ctx context.Context, id string) (*ArchiveRecord, error)

	// SaveArchive upserts by ID. Returns ErrDuplicateLabel when another
	// archive already carries the same label.
	SaveArchive(ctx context.Context, rec ArchiveRecord) error

	// DeleteArchive removes an archive. Missing IDs are ignored.
	DeleteArchive(ctx context.Context, id string) error

	// Setting returns a scalar setting and whether it exists.
	Setting(ctx context.Context, key string) (string, bool, error)

	// PutSetting stores a scalar setting.
	PutSetting(ctx context.Context, key, value string) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
// Use this when several writes must land together (closing a month writes
// the archive, deletes the live range and advances the marker).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Atomically runs fn inside a transaction when the store supports one, and
// directly against the store otherwise.
func Atomically(ctx context.Context, s Store, fn func(Store) error) error {
	if tx, ok := s.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s)
}
