package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// RedisStore keeps each record as a hash of JSON-encoded fields.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store whose hashes live under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "campaign:record"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key Key) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, key.OwnerID, key.SubjectID)
}

// Get implements Store. Reads go to the primary.
func (s *RedisStore) Get(ctx context.Context, key Key) (types.SubjectRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	rec := make(types.SubjectRecord, len(raw))
	for field, encoded := range raw {
		var v any
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			v = encoded
		}
		rec[field] = v
	}
	return rec, nil
}

// Merge implements Store.
func (s *RedisStore) Merge(ctx context.Context, key Key, fields map[string]any) error {
	values := make(map[string]any, len(fields)+1)
	for field, v := range stamp(fields, time.Now()) {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", field, err)
		}
		values[field] = string(b)
	}
	if err := s.client.HSet(ctx, s.key(key), values).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Consistency implements Store.
func (s *RedisStore) Consistency() Consistency { return Strong }
