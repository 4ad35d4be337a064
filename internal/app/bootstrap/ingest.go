package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// BuildIngestQueue returns SQS when a queue URL is configured and an
// in-memory queue otherwise. The second value is non-nil only for the memory
// queue, whose jobs must be consumed in this process.
func BuildIngestQueue(cfg *appconfig.Config, awsCfg *aws.Config) (ingest.Queue, *ingest.MemoryQueue) {
	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.IngestQueueURL) == "" || awsCfg == nil {
		q := ingest.NewMemoryQueue(64)
		return q, q
	}
	return ingest.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.IngestQueueURL), nil
}

// BuildJobStore tracks job status in DynamoDB alongside SQS and in memory otherwise.
func BuildJobStore(cfg *appconfig.Config, awsCfg *aws.Config, memoryQueue bool, logger *logging.Logger) ingest.JobStore {
	if memoryQueue || strings.TrimSpace(cfg.IngestJobsTable) == "" || awsCfg == nil {
		return ingest.NewMemoryJobStore()
	}
	return ingest.NewDynamoJobStore(dynamodb.NewFromConfig(*awsCfg), cfg.IngestJobsTable, logger)
}

// BuildPipeline wires chunking, scraping and the optional S3 source.
func BuildPipeline(cfg *appconfig.Config, awsCfg *aws.Config, indexer ingest.Indexer, m *metrics.IngestMetrics, logger *logging.Logger) *ingest.Pipeline {
	var source *ingest.S3Source
	if awsCfg != nil {
		source = ingest.NewS3Source(NewS3Client(cfg, *awsCfg))
	}
	return ingest.NewPipeline(ingest.PipelineConfig{
		Indexer: indexer,
		Chunker: ingest.Chunker{Size: cfg.IngestChunkSize, Overlap: cfg.IngestOverlap, Separator: cfg.IngestSeparator},
		Scraper: ingest.NewScraper(cfg.ScrapeTimeout),
		Source:  source,
		Metrics: m,
		Logger:  logger,
	})
}

// WorkerOptions translates configuration into worker options.
func WorkerOptions(cfg *appconfig.Config, m *metrics.IngestMetrics) []ingest.WorkerOption {
	return []ingest.WorkerOption{
		ingest.WithWorkerCount(cfg.WorkerCount),
		ingest.WithReceiveWaitSeconds(int(cfg.IngestPollWait.Seconds())),
		ingest.WithJobTimeout(cfg.IngestJobTimeout),
		ingest.WithWorkerMetrics(m),
	}
}

// KeyRoutes maps uploaded object prefixes to collections.
func KeyRoutes(cfg *appconfig.Config) ingest.KeyRoutes {
	return ingest.KeyRoutes{PDFPrefix: cfg.IngestPDFPrefix, WebPrefix: cfg.IngestWebPrefix}
}
