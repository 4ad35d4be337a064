// Package bootstrap builds the runtime dependencies shared by the binaries
// from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/conversation"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const tracerName = "github.com/wolfman30/spa-concierge"

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || cfg.UseMemoryStore || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore prefers Redis and falls back to process memory.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) conversation.SessionStore {
	if redisClient == nil {
		if logger != nil {
			logger.Warn("redis not configured; sessions are kept in memory and lost on restart")
		}
		return conversation.NewMemorySessionStore()
	}
	return conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL, Tracer())
}

// BuildChunkRepository persists indexed chunks in Redis when available.
func BuildChunkRepository(redisClient *redis.Client) retrieval.ChunkRepository {
	if redisClient == nil {
		return retrieval.NewMemoryChunkRepository()
	}
	return retrieval.NewRedisChunkRepository(redisClient)
}

// Tracer returns the application tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
