package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	chunkKeyPrefix        = "concierge:chunks:"
	chunkVersionKeyPrefix = "concierge:chunks:ver:"
)

// ChunkRepository persists the raw text of indexed chunks so every process can
// rebuild its in-memory index.
type ChunkRepository interface {
	Append(ctx context.Context, collection Collection, chunks []string) error
	Replace(ctx context.Context, collection Collection, chunks []string) error
	Get(ctx context.Context, collection Collection) ([]string, error)
	Version(ctx context.Context, collection Collection) (int64, error)
}

// RedisChunkRepository stores chunks in one Redis list per collection. Replace
// bumps a version counter so other processes notice the list was rewritten.
type RedisChunkRepository struct {
	client *redis.Client
}

func NewRedisChunkRepository(client *redis.Client) *RedisChunkRepository {
	if client == nil {
		panic("retrieval: redis client cannot be nil")
	}
	return &RedisChunkRepository{client: client}
}

func (r *RedisChunkRepository) Append(ctx context.Context, collection Collection, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.client.RPush(ctx, chunkKey(collection), toArgs(chunks)...).Err(); err != nil {
		return fmt.Errorf("retrieval: failed to push chunks: %w", err)
	}
	return nil
}

func (r *RedisChunkRepository) Replace(ctx context.Context, collection Collection, chunks []string) error {
	key := chunkKey(collection)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(chunks) > 0 {
		pipe.RPush(ctx, key, toArgs(chunks)...)
	}
	pipe.Incr(ctx, chunkVersionKey(collection))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retrieval: failed to replace chunks: %w", err)
	}
	return nil
}

func (r *RedisChunkRepository) Get(ctx context.Context, collection Collection) ([]string, error) {
	chunks, err := r.client.LRange(ctx, chunkKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("retrieval: failed to load chunks: %w", err)
	}
	return chunks, nil
}

func (r *RedisChunkRepository) Version(ctx context.Context, collection Collection) (int64, error) {
	val, err := r.client.Get(ctx, chunkVersionKey(collection)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("retrieval: get chunk version: %w", err)
	}
	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("retrieval: parse chunk version: %w", err)
	}
	return version, nil
}

// Collections lists every collection that has stored chunks.
func (r *RedisChunkRepository) Collections(ctx context.Context) ([]Collection, error) {
	var (
		cursor uint64
		out    []Collection
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, chunkKeyPrefix+"*", 50).Result()
		if err != nil {
			return nil, fmt.Errorf("retrieval: scan chunk keys failed: %w", err)
		}
		for _, key := range keys {
			if strings.HasPrefix(key, chunkVersionKeyPrefix) {
				continue
			}
			out = append(out, Collection(strings.TrimPrefix(key, chunkKeyPrefix)))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func toArgs(chunks []string) []interface{} {
	args := make([]interface{}, len(chunks))
	for i, c := range chunks {
		args[i] = c
	}
	return args
}

func chunkKey(collection Collection) string {
	return chunkKeyPrefix + string(collection)
}

func chunkVersionKey(collection Collection) string {
	return chunkVersionKeyPrefix + string(collection)
}
