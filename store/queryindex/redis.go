package queryindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis shares the registry across processes through a single hash per
// namespace, so replicas behind a shared Redis provider agree on which
// queries exist. If the hash is lost, registrations rebuild as queries
// are re-cached.
type Redis struct {
	rdb         redis.UniversalClient
	ns          string
	closeClient bool
}

var _ Index = (*Redis)(nil)

// NewRedis creates a Redis-backed registry. namespace should match the
// owning store's namespace. Set closeClient only if this index
// exclusively owns the client.
func NewRedis(client redis.UniversalClient, namespace string, closeClient bool) *Redis {
	return &Redis{rdb: client, ns: namespace, closeClient: closeClient}
}

func (r *Redis) hashKey() string { return "qidx:" + r.ns }

func (r *Redis) Put(ctx context.Context, storageKey string, m Meta) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, r.hashKey(), storageKey, b).Err()
}

func (r *Redis) Entries(ctx context.Context) (map[string]Meta, error) {
	raw, err := r.rdb.HGetAll(ctx, r.hashKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Meta, len(raw))
	for k, v := range raw {
		var m Meta
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("queryindex: corrupt registration at %s: %w", k, err)
		}
		out[k] = m
	}
	return out, nil
}

func (r *Redis) Remove(ctx context.Context, storageKey string) error {
	return r.rdb.HDel(ctx, r.hashKey(), storageKey).Err()
}

func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		return r.rdb.Close()
	}
	return nil
}
