package redissync_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/store/redissync"
)

func newRedisRemote(t *testing.T) (*redissync.RedisRemote, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	r, err := redissync.NewRedisRemote(context.Background(), redissync.RedisOptions{
		Addr:   srv.Addr(),
		Prefix: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, srv
}

func TestRedisRemote_DocumentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, srv := newRedisRemote(t)
	at := time.Date(2026, time.February, 3, 10, 0, 0, 0, time.UTC)

	// GIVEN two documents pushed and one deleted
	require.NoError(t, r.Apply(ctx, redissync.Op{
		Kind:       redissync.OpPutDocs,
		Collection: generic.CollExperts,
		Docs: []generic.Document{
			{Key: "e2", Body: json.RawMessage(`{"id":"e2"}`), UpdatedAt: at},
			{Key: "e1", Body: json.RawMessage(`{"id":"e1"}`), UpdatedAt: at},
		},
	}))
	require.NoError(t, r.Apply(ctx, redissync.Op{
		Kind:       redissync.OpPutDocs,
		Collection: generic.CollExperts,
		Docs:       []generic.Document{{Key: "e3", Body: json.RawMessage(`{}`), UpdatedAt: at}},
	}))
	require.NoError(t, r.Apply(ctx, redissync.Op{
		Kind:       redissync.OpDeleteDocs,
		Collection: generic.CollExperts,
		Keys:       []string{"e3"},
	}))

	// WHEN reading them back
	docs, err := r.Documents(ctx, generic.CollExperts)
	require.NoError(t, err)

	// THEN they come sorted by key with their timestamps
	require.Len(t, docs, 2)
	assert.Equal(t, "e1", docs[0].Key)
	assert.JSONEq(t, `{"id":"e1"}`, string(docs[0].Body))
	assert.True(t, docs[0].UpdatedAt.Equal(at))
	assert.Equal(t, "e2", docs[1].Key)

	// AND they live in one hash under the prefix
	assert.True(t, srv.Exists("test:experts"))
	keys, err := srv.HKeys("test:experts")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2"}, keys)
}

func TestRedisRemote_ArchivesAndSettings(t *testing.T) {
	ctx := context.Background()
	r, srv := newRedisRemote(t)

	jan := generic.ArchiveRecord{
		ID: "a1", Label: "январь 2026",
		CreatedAt: time.Date(2026, time.February, 1, 0, 5, 0, 0, time.UTC),
		Stats:     json.RawMessage(`{"totalSales":3}`),
	}
	dec := generic.ArchiveRecord{
		ID: "a0", Label: "декабрь 2025",
		CreatedAt: time.Date(2026, time.January, 1, 0, 5, 0, 0, time.UTC),
		Stats:     json.RawMessage(`{}`),
	}
	for _, rec := range []generic.ArchiveRecord{jan, dec} {
		rec := rec
		require.NoError(t, r.Apply(ctx, redissync.Op{Kind: redissync.OpSaveArchive, Archive: &rec}))
	}
	require.NoError(t, r.Apply(ctx, redissync.Op{
		Kind: redissync.OpPutSetting, Key: generic.SettingLastMonth, Value: "январь 2026",
	}))

	// WHEN the history is read
	archives, err := r.Archives(ctx)
	require.NoError(t, err)

	// THEN it is ordered by creation
	require.Len(t, archives, 2)
	assert.Equal(t, "a0", archives[0].ID)
	assert.Equal(t, "январь 2026", archives[1].Label)
	assert.JSONEq(t, `{"totalSales":3}`, string(archives[1].Stats))
	assert.Equal(t, "январь 2026", srv.HGet("test:settings", generic.SettingLastMonth))

	// AND deleting an archive removes it remotely
	require.NoError(t, r.Apply(ctx, redissync.Op{Kind: redissync.OpDeleteArchive, ArchiveID: "a0"}))
	archives, err = r.Archives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "a1", archives[0].ID)
}

func TestRedisRemote_UnknownOpAndUnreachableServer(t *testing.T) {
	ctx := context.Background()
	r, srv := newRedisRemote(t)

	err := r.Apply(ctx, redissync.Op{Kind: "rename"})
	assert.ErrorContains(t, err, "unknown sync op")

	addr := srv.Addr()
	srv.Close()
	_, err = redissync.NewRedisRemote(ctx, redissync.RedisOptions{Addr: addr})
	assert.ErrorContains(t, err, "redis connect")
}
