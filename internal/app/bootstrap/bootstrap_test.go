package bootstrap

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/conversation"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if c := BuildRedisClient(context.Background(), &appconfig.Config{}, quietLogger(), true); c != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1", UseMemoryStore: true}
	if c := BuildRedisClient(context.Background(), cfg, quietLogger(), true); c != nil {
		t.Fatalf("expected nil client when memory store is forced")
	}
}

func TestBuildRedisBackedStores(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), SessionTTL: time.Hour}

	client := BuildRedisClient(context.Background(), cfg, quietLogger(), true)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()

	if _, ok := BuildSessionStore(cfg, client, quietLogger()).(*conversation.RedisSessionStore); !ok {
		t.Fatalf("expected redis session store")
	}
	if _, ok := BuildChunkRepository(client).(*retrieval.RedisChunkRepository); !ok {
		t.Fatalf("expected redis chunk repository")
	}
	if _, ok := BuildSessionStore(cfg, nil, quietLogger()).(*conversation.MemorySessionStore); !ok {
		t.Fatalf("expected memory session store without redis")
	}
}

func TestBuildCompletionClient(t *testing.T) {
	ctx := context.Background()
	if _, err := BuildCompletionClient(ctx, &appconfig.Config{LLMProvider: "openai"}, nil, quietLogger()); err == nil {
		t.Fatalf("expected error without an OpenAI key")
	}
	if _, err := BuildCompletionClient(ctx, &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "m"}, nil, quietLogger()); err == nil {
		t.Fatalf("expected error for bedrock without AWS config")
	}
	if _, err := BuildCompletionClient(ctx, &appconfig.Config{LLMProvider: "carrier-pigeon"}, nil, quietLogger()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}

	cfg := &appconfig.Config{
		LLMProvider:         "openai",
		LLMFallbackProvider: "bedrock",
		OpenAIAPIKey:        "sk-test",
		CompletionTimeout:   time.Second,
	}
	client, err := BuildCompletionClient(ctx, cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*llm.TimeoutClient); !ok {
		t.Fatalf("expected timeout wrapper, got %T", client)
	}
}

func TestBuildClassifier(t *testing.T) {
	cfg := &appconfig.Config{Classifier: "pattern"}
	if _, ok := BuildClassifier(cfg, nil, false, nil, quietLogger()).(intent.PatternClassifier); !ok {
		t.Fatalf("expected pattern classifier")
	}
}

func TestBuildAppointmentStoreSQLite(t *testing.T) {
	cfg := &appconfig.Config{SQLitePath: filepath.Join(t.TempDir(), "appointments.db")}
	store, err := BuildAppointmentStore(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()
	if store.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %s", store.Backend)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	store, err = BuildAppointmentStore(context.Background(), &appconfig.Config{}, quietLogger())
	if err != nil || store.Backend != "memory" {
		t.Fatalf("expected memory fallback, got %v %v", store, err)
	}
}

func TestBuildIngestDefaultsToMemory(t *testing.T) {
	cfg := &appconfig.Config{IngestQueueURL: "https://sqs.local/q", IngestJobsTable: "jobs"}
	queue, memory := BuildIngestQueue(cfg, nil)
	if queue == nil || memory == nil {
		t.Fatalf("expected memory queue without AWS config")
	}
	if _, ok := BuildJobStore(cfg, nil, true, quietLogger()).(*ingest.MemoryJobStore); !ok {
		t.Fatalf("expected memory job store")
	}
}

func TestBuildNotifierFallsBackToStub(t *testing.T) {
	if svc := BuildNotifier(&appconfig.Config{}, nil, "Solorzano Spa", quietLogger()); svc == nil {
		t.Fatalf("expected notifier service")
	}
}
