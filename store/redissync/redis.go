package redissync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// REDIS REMOTE
// =============================================================================
//
// Layout, one hash per collection:
//   <prefix>:<collection>  field = document key, value = {"body":…,"updatedAt":…}
//   <prefix>:history       field = archive id,   value = ArchiveRecord JSON
//   <prefix>:settings      field = setting key,  value = raw string

// RedisOptions configures the connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisRemote is a Remote backed by Redis hashes.
type RedisRemote struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisRemote connects and pings the server.
func NewRedisRemote(ctx context.Context, opts RedisOptions) (*RedisRemote, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connect %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "payroll"
	}
	return &RedisRemote{rdb: rdb, prefix: prefix}, nil
}

// Close closes the connection.
func (r *RedisRemote) Close() error {
	return r.rdb.Close()
}

func (r *RedisRemote) key(name string) string { return r.prefix + ":" + name }

type envelope struct {
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Apply writes one operation.
func (r *RedisRemote) Apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpPutDocs:
		values := make([]any, 0, 2*len(op.Docs))
		for _, d := range op.Docs {
			v, err := json.Marshal(envelope{Body: d.Body, UpdatedAt: d.UpdatedAt})
			if err != nil {
				return err
			}
			values = append(values, d.Key, string(v))
		}
		if len(values) == 0 {
			return nil
		}
		return r.rdb.HSet(ctx, r.key(string(op.Collection)), values...).Err()

	case OpDeleteDocs:
		if len(op.Keys) == 0 {
			return nil
		}
		return r.rdb.HDel(ctx, r.key(string(op.Collection)), op.Keys...).Err()

	case OpSaveArchive:
		v, err := json.Marshal(op.Archive)
		if err != nil {
			return err
		}
		return r.rdb.HSet(ctx, r.key("history"), op.Archive.ID, string(v)).Err()

	case OpDeleteArchive:
		return r.rdb.HDel(ctx, r.key("history"), op.ArchiveID).Err()

	case OpPutSetting:
		return r.rdb.HSet(ctx, r.key("settings"), op.Key, op.Value).Err()
	}
	return fmt.Errorf("unknown sync op %q", op.Kind)
}

// Documents returns a collection's remote documents.
func (r *RedisRemote) Documents(ctx context.Context, coll generic.Collection) ([]generic.Document, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(string(coll))).Result()
	if err != nil {
		return nil, fmt.Errorf("redis pull %s: %w", coll, err)
	}
	out := make([]generic.Document, 0, len(fields))
	for k, v := range fields {
		var env envelope
		if err := json.Unmarshal([]byte(v), &env); err != nil {
			return nil, fmt.Errorf("decode remote %s/%s: %w", coll, k, err)
		}
		out = append(out, generic.Document{Key: k, Body: env.Body, UpdatedAt: env.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Archives returns the remote archive history.
func (r *RedisRemote) Archives(ctx context.Context) ([]generic.ArchiveRecord, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key("history")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis pull history: %w", err)
	}
	out := make([]generic.ArchiveRecord, 0, len(fields))
	for id, v := range fields {
		var rec generic.ArchiveRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode remote archive %s: %w", id, err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
