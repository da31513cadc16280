package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(key, body string) generic.Document {
	return generic.Document{Key: key, Body: json.RawMessage(body)}
}

func TestDocuments_UpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN three documents and an update of the first
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("b", `{"id":"b"}`), doc("a", `{"id":"a"}`)))
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("c", `{"id":"c"}`)))
	require.NoError(t, s.Put(ctx, generic.CollManagers, doc("b", `{"id":"b","name":"x"}`)))

	// WHEN listing
	docs, err := s.List(ctx, generic.CollManagers)
	require.NoError(t, err)

	// THEN first-insert order is kept and the update won
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{docs[0].Key, docs[1].Key, docs[2].Key})
	assert.JSONEq(t, `{"id":"b","name":"x"}`, string(docs[0].Body))
	assert.False(t, docs[0].UpdatedAt.IsZero())

	other, err := s.List(ctx, generic.CollExperts)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDocuments_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Put(ctx, generic.CollManagerReports, doc("m1|2026-01-05", `{}`), doc("m1|2026-01-06", `{}`)))

	require.NoError(t, s.Delete(ctx, generic.CollManagerReports, "m1|2026-01-05", "missing"))

	got, err := s.Get(ctx, generic.CollManagerReports, "m1|2026-01-05")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.Get(ctx, generic.CollManagerReports, "m1|2026-01-06")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m1|2026-01-06", got.Key)
}

func TestArchives_LabelUniqueAcrossCase(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveArchive(ctx, generic.ArchiveRecord{ID: "a1", Label: "январь 2026", Stats: json.RawMessage(`{"totalSales":1}`)}))

	// WHEN another archive reuses the label in a different case
	err := s.SaveArchive(ctx, generic.ArchiveRecord{ID: "a2", Label: "Январь 2026"})

	// THEN it is refused
	assert.ErrorIs(t, err, generic.ErrDuplicateLabel)

	// AND updating the same archive is fine
	require.NoError(t, s.SaveArchive(ctx, generic.ArchiveRecord{ID: "a1", Label: "январь 2026", Stats: json.RawMessage(`{"totalSales":2}`)}))
	rec, err := s.Archive(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `{"totalSales":2}`, string(rec.Stats))
	assert.False(t, rec.CreatedAt.IsZero())

	recs, err := s.Archives(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, s.DeleteArchive(ctx, "a1"))
	rec, err = s.Archive(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, ok, err := s.Setting(ctx, generic.SettingLastMonth)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutSetting(ctx, generic.SettingLastMonth, "январь 2026"))
	require.NoError(t, s.PutSetting(ctx, generic.SettingLastMonth, "февраль 2026"))

	v, ok, err := s.Setting(ctx, generic.SettingLastMonth)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "февраль 2026", v)
}

func TestWithTx_RollbackAndCommit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Put(ctx, generic.CollManagerReports, doc("m1|2026-01-05", `{}`)))

	// GIVEN a transaction that writes everywhere and then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.SaveArchive(ctx, generic.ArchiveRecord{ID: "a1", Label: "январь 2026"}))
		require.NoError(t, tx.Delete(ctx, generic.CollManagerReports, "m1|2026-01-05"))
		require.NoError(t, tx.PutSetting(ctx, generic.SettingLastMonth, "январь 2026"))

		docs, err := tx.List(ctx, generic.CollManagerReports)
		require.NoError(t, err)
		assert.Empty(t, docs, "writes are visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN nothing was written
	recs, err := s.Archives(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	docs, err := s.List(ctx, generic.CollManagerReports)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	_, ok, err := s.Setting(ctx, generic.SettingLastMonth)
	require.NoError(t, err)
	assert.False(t, ok)

	// WHEN the same transaction succeeds
	require.NoError(t, s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.SaveArchive(ctx, generic.ArchiveRecord{ID: "a1", Label: "январь 2026"}); err != nil {
			return err
		}
		return tx.Delete(ctx, generic.CollManagerReports, "m1|2026-01-05")
	}))

	// THEN it is committed
	recs, err = s.Archives(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	docs, err = s.List(ctx, generic.CollManagerReports)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClosedStore(t *testing.T) {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.List(context.Background(), generic.CollManagers)
	assert.ErrorIs(t, err, generic.ErrStoreClosed)
}
