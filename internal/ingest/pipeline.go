package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Indexer stores chunks in a retrieval collection.
type Indexer interface {
	Index(ctx context.Context, collection retrieval.Collection, chunks []string) error
}

// PipelineConfig wires the Pipeline. Scraper and Source are optional; jobs
// needing a missing one fail.
type PipelineConfig struct {
	Indexer Indexer
	Chunker Chunker
	Scraper *Scraper
	Source  *S3Source
	Metrics *metrics.IngestMetrics
	Logger  *logging.Logger
}

// Pipeline extracts text, chunks it and hands the chunks to the indexer.
type Pipeline struct {
	indexer Indexer
	chunker Chunker
	scraper *Scraper
	source  *S3Source
	metrics *metrics.IngestMetrics
	logger  *logging.Logger
}

var _ JobRunner = (*Pipeline)(nil)

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Indexer == nil {
		panic("ingest: indexer cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Pipeline{
		indexer: cfg.Indexer,
		chunker: NewChunker(cfg.Chunker.Size, cfg.Chunker.Overlap, cfg.Chunker.Separator),
		scraper: cfg.Scraper,
		source:  cfg.Source,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// IngestText chunks text into collection and returns the number of chunks indexed.
func (p *Pipeline) IngestText(ctx context.Context, collection retrieval.Collection, text string) (int, error) {
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := p.indexer.Index(ctx, collection, chunks); err != nil {
		return 0, fmt.Errorf("ingest: index %s: %w", collection, err)
	}
	p.metrics.ObserveChunks(string(collection), len(chunks))
	p.logger.Info("indexed chunks", "collection", collection, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestPDF extracts a PDF's text and indexes it.
func (p *Pipeline) IngestPDF(ctx context.Context, collection retrieval.Collection, data []byte) (int, error) {
	text, err := ExtractPDFText(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return p.IngestText(ctx, collection, text)
}

// IngestURL scrapes a web page and indexes its text.
func (p *Pipeline) IngestURL(ctx context.Context, collection retrieval.Collection, url string) (int, error) {
	if p.scraper == nil {
		return 0, errors.New("ingest: scraper not configured")
	}
	text, err := p.scraper.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	return p.IngestText(ctx, collection, text)
}

// IngestObject reads an S3 object and indexes it according to its extension:
// .pdf is extracted, .html/.htm is stripped, anything else is plain text.
func (p *Pipeline) IngestObject(ctx context.Context, collection retrieval.Collection, bucket, key string) (int, error) {
	if p.source == nil {
		return 0, errors.New("ingest: s3 source not configured")
	}
	data, err := p.source.Fetch(ctx, bucket, key)
	if err != nil {
		return 0, err
	}
	return p.IngestDocument(ctx, collection, key, data)
}

// IngestDocument indexes raw file contents, choosing the extractor from name.
func (p *Pipeline) IngestDocument(ctx context.Context, collection retrieval.Collection, name string, data []byte) (int, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return p.IngestPDF(ctx, collection, data)
	case ".html", ".htm":
		text, err := HTMLText(bytes.NewReader(data))
		if err != nil {
			return 0, err
		}
		return p.IngestText(ctx, collection, text)
	default:
		return p.IngestText(ctx, collection, string(data))
	}
}

// Run executes a queued job.
func (p *Pipeline) Run(ctx context.Context, job Job) (int, error) {
	if err := job.Validate(); err != nil {
		return 0, err
	}
	switch job.Kind {
	case JobKindURL:
		return p.IngestURL(ctx, job.Collection, job.URL)
	case JobKindS3:
		return p.IngestObject(ctx, job.Collection, job.Bucket, job.Key)
	default:
		return 0, fmt.Errorf("ingest: unknown job kind %q", job.Kind)
	}
}

// KeyRoutes maps uploaded object keys to collections by prefix.
type KeyRoutes struct {
	PDFPrefix string
	WebPrefix string
}

// CollectionFor reports the collection an object key belongs to.
func (r KeyRoutes) CollectionFor(key string) (retrieval.Collection, bool) {
	switch {
	case r.PDFPrefix != "" && strings.HasPrefix(key, r.PDFPrefix):
		return retrieval.CompanyDocs, true
	case r.WebPrefix != "" && strings.HasPrefix(key, r.WebPrefix):
		return retrieval.WebDocs, true
	default:
		return "", false
	}
}
