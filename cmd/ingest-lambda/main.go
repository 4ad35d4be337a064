// Command ingest-lambda indexes documents as they land in the knowledge bucket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/spa-concierge/cmd/mainconfig"
	"github.com/wolfman30/spa-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type objectIngester interface {
	IngestObject(ctx context.Context, collection retrieval.Collection, bucket, key string) (int, error)
}

type handler struct {
	ingester objectIngester
	routes   ingest.KeyRoutes
	logger   *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, false)
	if redisClient == nil {
		panic("ingest-lambda: REDIS_ADDR is required so indexed chunks outlive the invocation")
	}
	embedder, err := bootstrap.BuildEmbedder(cfg, &awsCfg)
	if err != nil {
		panic(err)
	}
	index := bootstrap.BuildIndex(bootstrap.BuildChunkRepository(redisClient), embedder, logger)

	h := &handler{
		ingester: bootstrap.BuildPipeline(cfg, &awsCfg, index, nil, logger),
		routes:   bootstrap.KeyRoutes(cfg),
		logger:   logger,
	}
	lambda.Start(h.handle)
}

// handle indexes every routed object in the event. Keys outside the configured
// prefixes are skipped; failures are joined so S3 retries the whole event.
func (h *handler) handle(ctx context.Context, evt events.S3Event) error {
	var errs []error
	for _, record := range evt.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("decode key %q: %w", record.S3.Object.Key, err))
			continue
		}
		collection, ok := h.routes.CollectionFor(key)
		if !ok {
			h.logger.Info("skipping object outside ingest prefixes", "bucket", bucket, "key", key)
			continue
		}
		chunks, err := h.ingester.IngestObject(ctx, collection, bucket, key)
		if err != nil {
			h.logger.Error("object ingest failed", "bucket", bucket, "key", key, "error", err)
			errs = append(errs, fmt.Errorf("ingest s3://%s/%s: %w", bucket, key, err))
			continue
		}
		h.logger.Info("object indexed", "bucket", bucket, "key", key, "collection", collection, "chunks", chunks)
	}
	return errors.Join(errs...)
}
