/*
Package redissync mirrors a local store into a remote one, write-behind.

PURPOSE:
  The local store is the read-of-record. Every write lands locally first
  and is visible to the very next read; the same write is then queued and
  pushed to the remote by a background worker. Other devices write to the
  same remote, and Pull merges their documents back in.

ORDERING:
  Operations are pushed one at a time in the order they were committed
  locally. Writes made inside WithTx are queued only after the local
  transaction commits, and are dropped with it on rollback.

FAILURES:
  A failed push is retried a few times, then logged and dropped. It never
  rolls back the local write.

MERGE:
  Pull copies a remote document only when it is newer (UpdatedAt) than the
  local copy, so a stale remote snapshot never overwrites a recent local
  edit. Archives merge the same way. Deletes are not pulled: the remote
  keeps no tombstones.

USAGE:
  remote, err := redissync.NewRedisRemote(ctx, redissync.RedisOptions{Addr: "localhost:6379"})
  mirror := redissync.New(local, remote)
  mirror.Start(ctx)
  defer mirror.Close()
  mirror.Pull(ctx)

SEE ALSO:
  - redis.go: Redis hash layout
  - generic/store.go: READ YOUR OWN WRITE
*/
package redissync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
)

// =============================================================================
// OPERATIONS
// =============================================================================

// OpKind names a replicated write.
type OpKind string

const (
	OpPutDocs       OpKind = "put"
	OpDeleteDocs    OpKind = "delete"
	OpSaveArchive   OpKind = "save_archive"
	OpDeleteArchive OpKind = "delete_archive"
	OpPutSetting    OpKind = "put_setting"
)

// Op is one committed local write.
type Op struct {
	Kind       OpKind
	Collection generic.Collection
	Docs       []generic.Document
	Keys       []string
	Archive    *generic.ArchiveRecord
	ArchiveID  string
	Key        string
	Value      string
}

// Remote is the far side of the mirror.
type Remote interface {
	Apply(ctx context.Context, op Op) error
	Documents(ctx context.Context, coll generic.Collection) ([]generic.Document, error)
	Archives(ctx context.Context) ([]generic.ArchiveRecord, error)
}

// =============================================================================
// MIRROR
// =============================================================================

// Mirror is a generic.TxStore that replicates its writes to a Remote.
type Mirror struct {
	local  generic.Store
	remote Remote
	log    zerolog.Logger
	now    func() time.Time

	retries int
	backoff time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Op
	busy    bool
	stopped bool
	done    chan struct{}
}

// Option configures a Mirror.
type Option func(*Mirror)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Mirror) { m.log = l }
}

// WithRetry sets how often a failed push is retried and the pause between
// attempts.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(m *Mirror) {
		m.retries = retries
		m.backoff = backoff
	}
}

func New(local generic.Store, remote Remote, opts ...Option) *Mirror {
	m := &Mirror{
		local:   local,
		remote:  remote,
		log:     logger.Component("sync"),
		now:     func() time.Time { return time.Now().UTC() },
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
	m.cond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Local returns the wrapped store.
func (m *Mirror) Local() generic.Store { return m.local }

// Start launches the push worker.
func (m *Mirror) Start(ctx context.Context) {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return
	}
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

// Close drains the queue and stops the worker.
func (m *Mirror) Close() error {
	m.mu.Lock()
	m.stopped = true
	done := m.done
	m.cond.Broadcast()
	m.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// Flush blocks until every queued operation was pushed or dropped.
func (m *Mirror) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) > 0 || m.busy {
		m.cond.Wait()
	}
}

// Pending returns the number of queued operations.
func (m *Mirror) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mirror) enqueue(ops ...Op) {
	if len(ops) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		for _, op := range ops {
			m.log.Warn().
				Str("op", string(op.Kind)).
				Str("collection", string(op.Collection)).
				Str("key", opKey(op)).
				Msg("mirror closed, remote sync skipped, local write kept")
		}
		return
	}
	m.queue = append(m.queue, ops...)
	m.cond.Broadcast()
}

func (m *Mirror) run(ctx context.Context) {
	defer close(m.done)
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.stopped {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.stopped {
			m.mu.Unlock()
			return
		}
		op := m.queue[0]
		m.queue = m.queue[1:]
		m.busy = true
		m.mu.Unlock()

		m.push(ctx, op)

		m.mu.Lock()
		m.busy = false
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}

func (m *Mirror) push(ctx context.Context, op Op) {
	err := m.remote.Apply(ctx, op)
	for attempt := 1; err != nil && attempt <= m.retries && ctx.Err() == nil; attempt++ {
		select {
		case <-ctx.Done():
		case <-time.After(m.backoff):
			err = m.remote.Apply(ctx, op)
		}
	}
	if err == nil {
		return
	}
	m.log.Error().
		Err(err).
		Str("op", string(op.Kind)).
		Str("collection", string(op.Collection)).
		Str("key", opKey(op)).
		Msg("remote sync failed, local write kept")
}

func opKey(op Op) string {
	switch {
	case len(op.Docs) > 0:
		return op.Docs[0].Key
	case len(op.Keys) > 0:
		return op.Keys[0]
	case op.Archive != nil:
		return op.Archive.ID
	case op.ArchiveID != "":
		return op.ArchiveID
	}
	return op.Key
}

// =============================================================================
// generic.TxStore
// =============================================================================

func (m *Mirror) List(ctx context.Context, coll generic.Collection) ([]generic.Document, error) {
	return m.local.List(ctx, coll)
}

func (m *Mirror) Get(ctx context.Context, coll generic.Collection, key string) (*generic.Document, error) {
	return m.local.Get(ctx, coll, key)
}

func (m *Mirror) Archives(ctx context.Context) ([]generic.ArchiveRecord, error) {
	return m.local.Archives(ctx)
}

func (m *Mirror) Archive(ctx context.Context, id string) (*generic.ArchiveRecord, error) {
	return m.local.Archive(ctx, id)
}

func (m *Mirror) Setting(ctx context.Context, key string) (string, bool, error) {
	return m.local.Setting(ctx, key)
}

func (m *Mirror) Put(ctx context.Context, coll generic.Collection, docs ...generic.Document) error {
	return m.write(func(s generic.Store) error { return s.Put(ctx, coll, docs...) })
}

func (m *Mirror) Delete(ctx context.Context, coll generic.Collection, keys ...string) error {
	return m.write(func(s generic.Store) error { return s.Delete(ctx, coll, keys...) })
}

func (m *Mirror) SaveArchive(ctx context.Context, rec generic.ArchiveRecord) error {
	return m.write(func(s generic.Store) error { return s.SaveArchive(ctx, rec) })
}

func (m *Mirror) DeleteArchive(ctx context.Context, id string) error {
	return m.write(func(s generic.Store) error { return s.DeleteArchive(ctx, id) })
}

func (m *Mirror) PutSetting(ctx context.Context, key, value string) error {
	return m.write(func(s generic.Store) error { return s.PutSetting(ctx, key, value) })
}

func (m *Mirror) write(fn func(generic.Store) error) error {
	r := &recorder{Store: m.local, now: m.now}
	if err := fn(r); err != nil {
		return err
	}
	m.enqueue(r.ops...)
	return nil
}

// WithTx runs fn in a local transaction and queues its writes on commit.
func (m *Mirror) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	var ops []Op
	err := generic.Atomically(ctx, m.local, func(tx generic.Store) error {
		r := &recorder{Store: tx, now: m.now}
		if err := fn(r); err != nil {
			return err
		}
		ops = r.ops
		return nil
	})
	if err != nil {
		return err
	}
	m.enqueue(ops...)
	return nil
}

// recorder writes through to a store and remembers what it wrote.
type recorder struct {
	generic.Store
	now func() time.Time
	ops []Op
}

func (r *recorder) Put(ctx context.Context, coll generic.Collection, docs ...generic.Document) error {
	stamped := make([]generic.Document, len(docs))
	for i, d := range docs {
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = r.now()
		}
		stamped[i] = d
	}
	if err := r.Store.Put(ctx, coll, stamped...); err != nil {
		return err
	}
	r.ops = append(r.ops, Op{Kind: OpPutDocs, Collection: coll, Docs: stamped})
	return nil
}

func (r *recorder) Delete(ctx context.Context, coll generic.Collection, keys ...string) error {
	if err := r.Store.Delete(ctx, coll, keys...); err != nil {
		return err
	}
	r.ops = append(r.ops, Op{Kind: OpDeleteDocs, Collection: coll, Keys: append([]string(nil), keys...)})
	return nil
}

func (r *recorder) SaveArchive(ctx context.Context, rec generic.ArchiveRecord) error {
	if err := r.Store.SaveArchive(ctx, rec); err != nil {
		return err
	}
	saved, err := r.Store.Archive(ctx, rec.ID)
	if err != nil {
		return err
	}
	if saved == nil {
		return errors.New("archive vanished after save: " + rec.ID)
	}
	r.ops = append(r.ops, Op{Kind: OpSaveArchive, Archive: saved})
	return nil
}

func (r *recorder) DeleteArchive(ctx context.Context, id string) error {
	if err := r.Store.DeleteArchive(ctx, id); err != nil {
		return err
	}
	r.ops = append(r.ops, Op{Kind: OpDeleteArchive, ArchiveID: id})
	return nil
}

func (r *recorder) PutSetting(ctx context.Context, key, value string) error {
	if err := r.Store.PutSetting(ctx, key, value); err != nil {
		return err
	}
	r.ops = append(r.ops, Op{Kind: OpPutSetting, Key: key, Value: value})
	return nil
}

// =============================================================================
// PULL - Merge remote changes into the local store
// =============================================================================

// PullResult counts what Pull copied locally.
type PullResult struct {
	Documents int
	Archives  int
	Skipped   int
}

// Pull merges every remote collection and archive into the local store.
// Remote entries win only when strictly newer. Pulled writes are not
// pushed back.
func (m *Mirror) Pull(ctx context.Context) (PullResult, error) {
	var res PullResult

	for _, coll := range generic.Collections() {
		remote, err := m.remote.Documents(ctx, coll)
		if err != nil {
			return res, err
		}
		var newer []generic.Document
		for _, d := range remote {
			local, err := m.local.Get(ctx, coll, d.Key)
			if err != nil {
				return res, err
			}
			if local != nil && !d.UpdatedAt.After(local.UpdatedAt) {
				res.Skipped++
				continue
			}
			newer = append(newer, d)
		}
		if len(newer) == 0 {
			continue
		}
		if err := m.local.Put(ctx, coll, newer...); err != nil {
			return res, err
		}
		res.Documents += len(newer)
	}

	archives, err := m.remote.Archives(ctx)
	if err != nil {
		return res, err
	}
	for _, rec := range archives {
		local, err := m.local.Archive(ctx, rec.ID)
		if err != nil {
			return res, err
		}
		if local != nil && !rec.UpdatedAt.After(local.UpdatedAt) {
			res.Skipped++
			continue
		}
		if err := m.local.SaveArchive(ctx, rec); err != nil {
			if errors.Is(err, generic.ErrDuplicateLabel) {
				m.log.Warn().
					Str("archive_id", rec.ID).
					Str("month", rec.Label).
					Msg("remote archive conflicts with a local one, skipped")
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Archives++
	}

	m.log.Info().
		Int("documents", res.Documents).
		Int("archives", res.Archives).
		Int("skipped", res.Skipped).
		Msg("remote pull merged")
	return res, nil
}
