// Command ingest loads knowledge documents into the retrieval index once, in
// process. Web pages go to the web collection and files to the company
// collection unless --collection overrides both.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/wolfman30/spa-concierge/cmd/mainconfig"
	"github.com/wolfman30/spa-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type options struct {
	collection string
	urls       []string
	files      []string
	pdfDir     string
	s3Bucket   string
	s3Prefix   string
}

type ingester interface {
	IngestURL(ctx context.Context, collection retrieval.Collection, url string) (int, error)
	IngestDocument(ctx context.Context, collection retrieval.Collection, name string, data []byte) (int, error)
	IngestObject(ctx context.Context, collection retrieval.Collection, bucket, key string) (int, error)
}

type objectLister interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	fs.StringVar(&opts.collection, "collection", "", "target collection (company_docs or web_docs)")
	fs.StringArrayVar(&opts.urls, "url", nil, "web page to scrape; repeatable")
	fs.StringArrayVar(&opts.files, "file", nil, "local pdf, html or text file; repeatable")
	fs.StringVar(&opts.pdfDir, "pdf-dir", "", "directory of pdf files")
	fs.StringVar(&opts.s3Bucket, "s3-bucket", "", "bucket to ingest objects from")
	fs.StringVar(&opts.s3Prefix, "s3-prefix", "", "key prefix within --s3-bucket")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.collection != "" {
		if _, err := retrieval.ParseCollection(opts.collection); err != nil {
			return options{}, err
		}
	}
	if len(opts.urls) == 0 && len(opts.files) == 0 && opts.pdfDir == "" && opts.s3Bucket == "" {
		return options{}, errors.New("nothing to ingest: pass --url, --file, --pdf-dir or --s3-bucket")
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.s3Bucket != "" {
		cfg.IngestBucket = opts.s3Bucket
	}
	awsCfg, err := mainconfig.LoadOptionalAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("ingest needs REDIS_ADDR; an in-memory index would vanish on exit")
		os.Exit(1)
	}
	defer redisClient.Close()

	embedder, err := bootstrap.BuildEmbedder(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to build embedder", "error", err)
		os.Exit(1)
	}
	index := bootstrap.BuildIndex(bootstrap.BuildChunkRepository(redisClient), embedder, logger)
	pipeline := bootstrap.BuildPipeline(cfg, awsCfg, index, nil, logger)

	var lister objectLister
	if awsCfg != nil {
		lister = ingest.NewS3Source(bootstrap.NewS3Client(cfg, *awsCfg))
	}

	total, err := run(ctx, opts, pipeline, lister, logger)
	if err != nil {
		logger.Error("ingest finished with errors", "chunks", total, "error", err)
		os.Exit(1)
	}
	logger.Info("ingest complete", "chunks", total)
}

// run ingests every requested source, continuing past individual failures.
// It returns the number of chunks indexed and the joined errors.
func run(ctx context.Context, opts options, in ingester, lister objectLister, logger *logging.Logger) (int, error) {
	webColl, docColl := retrieval.WebDocs, retrieval.CompanyDocs
	if opts.collection != "" {
		c, err := retrieval.ParseCollection(opts.collection)
		if err != nil {
			return 0, err
		}
		webColl, docColl = c, c
	}

	var (
		total int
		errs  []error
	)
	record := func(source string, n int, err error) {
		if err != nil {
			logger.Error("source failed", "source", source, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
			return
		}
		logger.Info("source indexed", "source", source, "chunks", n)
		total += n
	}

	for _, u := range opts.urls {
		n, err := in.IngestURL(ctx, webColl, u)
		record(u, n, err)
	}

	files := append([]string(nil), opts.files...)
	if opts.pdfDir != "" {
		pdfs, err := pdfFiles(opts.pdfDir)
		if err != nil {
			errs = append(errs, err)
		}
		files = append(files, pdfs...)
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			record(path, 0, err)
			continue
		}
		n, err := in.IngestDocument(ctx, docColl, filepath.Base(path), data)
		record(path, n, err)
	}

	if opts.s3Bucket != "" {
		if lister == nil {
			errs = append(errs, errors.New("--s3-bucket needs AWS configuration"))
		} else if keys, err := lister.List(ctx, opts.s3Bucket, opts.s3Prefix); err != nil {
			errs = append(errs, fmt.Errorf("list s3://%s/%s: %w", opts.s3Bucket, opts.s3Prefix, err))
		} else {
			for _, key := range keys {
				if strings.HasSuffix(key, "/") {
					continue
				}
				n, err := in.IngestObject(ctx, docColl, opts.s3Bucket, key)
				record("s3://"+opts.s3Bucket+"/"+key, n, err)
			}
		}
	}

	return total, errors.Join(errs...)
}

func pdfFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
