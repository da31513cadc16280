package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/generic/store"
)

func doc(key, body string) generic.Document {
	return generic.Document{Key: key, Body: json.RawMessage(body)}
}

func TestMemory_PutKeepsFirstInsertOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	// GIVEN three documents, the first one rewritten last
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("a", `{"v":1}`), doc("b", `{"v":2}`)))
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("c", `{"v":3}`), doc("a", `{"v":4}`)))

	// WHEN listing
	docs, err := s.List(ctx, generic.CollManagers)
	require.NoError(t, err)

	// THEN the rewrite keeps its slot and carries the new body
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{docs[0].Key, docs[1].Key, docs[2].Key})
	assert.JSONEq(t, `{"v":4}`, string(docs[0].Body))
	assert.False(t, docs[0].UpdatedAt.IsZero())
}

func TestMemory_DeleteAndGet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Put(ctx, generic.CollExperts, doc("x", `{}`), doc("y", `{}`)))

	require.NoError(t, s.Delete(ctx, generic.CollExperts, "x", "missing"))

	got, err := s.Get(ctx, generic.CollExperts, "x")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, generic.CollExperts, "y")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "y", got.Key)
}

func TestMemory_ReturnedBodiesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("a", `{"v":1}`)))

	docs, _ := s.List(ctx, generic.CollManagers)
	docs[0].Body[5] = '9'

	again, _ := s.Get(ctx, generic.CollManagers, "a")
	assert.JSONEq(t, `{"v":1}`, string(again.Body))
}

func TestMemory_ArchiveLabelIsUnique(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.SaveArchive(ctx, generic.ArchiveRecord{ID: "1", Label: "январь 2026", Stats: json.RawMessage(`{}`)}))

	err := s.SaveArchive(ctx, generic.ArchiveRecord{ID: "2", Label: "Январь 2026", Stats: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, generic.ErrDuplicateLabel)

	// Re-saving the same ID is an update, not a duplicate
	require.NoError(t, s.SaveArchive(ctx, generic.ArchiveRecord{ID: "1", Label: "январь 2026", Stats: json.RawMessage(`{"x":1}`)}))

	recs, err := s.Archives(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.JSONEq(t, `{"x":1}`, string(recs[0].Stats))
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	require.NoError(t, s.Put(ctx, generic.CollManagerReports, doc("m1|2026-01-05", `{}`)))
	require.NoError(t, s.PutSetting(ctx, generic.SettingLastMonth, "декабрь 2025"))

	boom := errors.New("boom")

	// WHEN a transaction writes everywhere then fails
	err := s.WithTx(ctx, func(tx generic.Store) error {
		_ = tx.Delete(ctx, generic.CollManagerReports, "m1|2026-01-05")
		_ = tx.SaveArchive(ctx, generic.ArchiveRecord{ID: "a", Label: "январь 2026"})
		_ = tx.PutSetting(ctx, generic.SettingLastMonth, "январь 2026")
		return boom
	})

	// THEN nothing it wrote survives
	assert.ErrorIs(t, err, boom)

	docs, _ := s.List(ctx, generic.CollManagerReports)
	assert.Len(t, docs, 1)

	recs, _ := s.Archives(ctx)
	assert.Empty(t, recs)

	marker, ok, _ := s.Setting(ctx, generic.SettingLastMonth)
	assert.True(t, ok)
	assert.Equal(t, "декабрь 2025", marker)
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()

	err := generic.Atomically(ctx, s, func(tx generic.Store) error {
		return tx.Put(ctx, generic.CollMarketers, doc("mk", `{}`))
	})
	require.NoError(t, err)

	got, _ := s.Get(ctx, generic.CollMarketers, "mk")
	assert.NotNil(t, got)
}
