package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/spa-concierge/internal/booking"
	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/notify"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// BuildEmbedder returns the configured embedding provider.
func BuildEmbedder(cfg *appconfig.Config, awsCfg *aws.Config) (retrieval.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider)) {
	case "openai", "":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("bootstrap: OPENAI_API_KEY is required for openai embeddings")
		}
		clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
			clientCfg.BaseURL = strings.TrimRight(base, "/")
		}
		return retrieval.NewOpenAIEmbedder(openai.NewClientWithConfig(clientCfg), cfg.OpenAIEmbeddingModel), nil
	case "bedrock":
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: bedrock embeddings require AWS configuration")
		}
		return retrieval.NewBedrockEmbedder(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockEmbeddingModelID), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// BuildIndex assembles the chunk repository and vector store.
func BuildIndex(repo retrieval.ChunkRepository, embedder retrieval.Embedder, logger *logging.Logger) *retrieval.Index {
	return retrieval.NewIndex(repo, retrieval.NewVectorStore(embedder), logger)
}

// NewS3Client builds an S3 client, switching to path-style addressing when an
// endpoint override (LocalStack) is configured.
func NewS3Client(cfg *appconfig.Config, awsCfg aws.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.AWSEndpointOverride) != "" {
			o.UsePathStyle = true
		}
	})
}

// AppointmentStore is the repository plus whatever must be released on shutdown.
type AppointmentStore struct {
	Repository booking.Repository
	Backend    string
	Ping       func(ctx context.Context) error
	Close      func()
}

// BuildAppointmentStore picks Postgres, then SQLite, then memory.
func BuildAppointmentStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*AppointmentStore, error) {
	if url := strings.TrimSpace(cfg.DatabaseURL); url != "" {
		pool, err := connectPostgresPool(ctx, url)
		if err != nil {
			return nil, err
		}
		logger.Info("appointments stored in postgres")
		return &AppointmentStore{
			Repository: booking.NewPostgresRepository(pool),
			Backend:    "postgres",
			Ping:       pool.Ping,
			Close:      pool.Close,
		}, nil
	}
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		repo, err := booking.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		logger.Info("appointments stored in sqlite", "path", path)
		return &AppointmentStore{
			Repository: repo,
			Backend:    "sqlite",
			Ping:       repo.Ping,
			Close:      func() { _ = repo.Close() },
		}, nil
	}
	logger.Warn("no appointment database configured; appointments are kept in memory")
	return &AppointmentStore{Repository: booking.NewMemoryRepository(), Backend: "memory", Close: func() {}}, nil
}

func connectPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildCalendarStore writes calendar files to S3 when a bucket is set and to a
// local directory otherwise.
func BuildCalendarStore(cfg *appconfig.Config, awsCfg *aws.Config) (booking.CalendarStore, error) {
	if bucket := strings.TrimSpace(cfg.CalendarBucket); bucket != "" {
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: calendar bucket requires AWS configuration")
		}
		return booking.NewS3CalendarStore(NewS3Client(cfg, *awsCfg), bucket, cfg.CalendarPrefix), nil
	}
	return booking.NewDirCalendarStore(cfg.CalendarDir)
}

// BuildNotifier prefers SendGrid, then SES. Without either, confirmations are logged only.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, businessName string, logger *logging.Logger) *notify.Service {
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
		logger.Info("email confirmations via sendgrid")
	} else if strings.TrimSpace(cfg.SESFromEmail) != "" && awsCfg != nil {
		sender = notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		logger.Info("email confirmations via ses")
	} else {
		sender = notify.NewStubEmailSender(logger)
		logger.Warn("no email provider configured; confirmations are logged only")
	}
	return notify.NewService(sender, businessName, logger)
}
