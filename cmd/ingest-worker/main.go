package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/spa-concierge/cmd/mainconfig"
	"github.com/wolfman30/spa-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue, memoryQueue := bootstrap.BuildIngestQueue(cfg, &awsCfg)
	if memoryQueue != nil {
		logger.Error("ingest worker needs INGEST_QUEUE_URL; the memory queue is only usable inside the API process")
		os.Exit(1)
	}
	jobs := bootstrap.BuildJobStore(cfg, &awsCfg, false, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Warn("no redis configured; indexed chunks stay in this process and the API will not see them")
	} else {
		defer redisClient.Close()
	}

	embedder, err := bootstrap.BuildEmbedder(cfg, &awsCfg)
	if err != nil {
		logger.Error("failed to build embedder", "error", err)
		os.Exit(1)
	}
	index := bootstrap.BuildIndex(bootstrap.BuildChunkRepository(redisClient), embedder, logger)

	registry := prometheus.NewRegistry()
	ingestMetrics := metrics.NewIngestMetrics(registry)
	pipeline := bootstrap.BuildPipeline(cfg, &awsCfg, index, ingestMetrics, logger)

	worker := ingest.NewWorker(pipeline, queue, jobs, logger, bootstrap.WorkerOptions(cfg, ingestMetrics)...)
	worker.Start(ctx)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	logger.Info("ingest worker started", "queue", cfg.IngestQueueURL, "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down ingest worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("ingest worker stopped")
	case <-doneCtx.Done():
		logger.Error("ingest worker shutdown timed out", "error", doneCtx.Err())
	}
}
