package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/spa-concierge/cmd/mainconfig"
	"github.com/wolfman30/spa-concierge/internal/api/router"
	"github.com/wolfman30/spa-concierge/internal/app/bootstrap"
	"github.com/wolfman30/spa-concierge/internal/booking"
	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/internal/tokens"
	"github.com/wolfman30/spa-concierge/internal/webchat"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting spa-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	profile, err := appconfig.LoadProfile(cfg.ProfilePath)
	if err != nil {
		logger.Error("failed to load business profile", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, profile, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if a.worker != nil {
		a.worker.Wait()
	}

	logger.Info("server stopped")
}

// app is everything main needs after wiring.
type app struct {
	handler http.Handler
	worker  *ingest.Worker
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires every component. Background work started here stops when ctx
// is cancelled.
func buildApp(ctx context.Context, cfg *appconfig.Config, profile *appconfig.Profile, logger *logging.Logger) (*app, error) {
	a := &app{}

	awsCfg, err := mainconfig.LoadOptionalAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	metricsHandler, convMetrics, ingestMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}
	sessions := bootstrap.BuildSessionStore(cfg, redisClient, logger)

	llmClient, err := bootstrap.BuildCompletionClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	classifier := bootstrap.BuildClassifier(cfg, llmClient, profile.SpecialtyEnabled(), convMetrics, logger)

	embedder, err := bootstrap.BuildEmbedder(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	index := bootstrap.BuildIndex(bootstrap.BuildChunkRepository(redisClient), embedder, logger)

	routes, err := profile.RouteTable()
	if err != nil {
		return nil, err
	}
	slots, err := profile.SlotTable()
	if err != nil {
		return nil, err
	}
	turnRouter := conversation.NewRouter(conversation.RouterConfig{
		Retriever: retrieval.NewRetriever(index, cfg.RetrievalTopK),
		Routes:    routes,
		Slots:     slots,
		Timeout:   cfg.RetrievalTimeout,
		Metrics:   convMetrics,
		Logger:    logger,
	})

	appointments, err := bootstrap.BuildAppointmentStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, appointments.Close)
	calendars, err := bootstrap.BuildCalendarStore(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.BookingTimezone)
	if err != nil {
		return nil, fmt.Errorf("booking timezone %q: %w", cfg.BookingTimezone, err)
	}
	bookings := booking.NewService(booking.ServiceConfig{
		Repository:    appointments.Repository,
		Calendars:     calendars,
		Resolver:      booking.NewResolver(loc, nil),
		Notifier:      bootstrap.BuildNotifier(cfg, awsCfg, profile.BusinessName, logger),
		BusinessName:  profile.BusinessName,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})

	counter, exact := tokens.NewCounter(bootstrap.CompletionModel(cfg))
	if !exact {
		logger.Warn("no tokenizer for model; using approximate token counts", "model", bootstrap.CompletionModel(cfg))
	}

	chat := conversation.NewService(conversation.Config{
		Store:               sessions,
		Dialogue:            booking.NewMachine(bookings, logger),
		Classifier:          classifier,
		Router:              turnRouter,
		LLM:                 llmClient,
		Counter:             counter,
		SystemPrompt:        profile.Prompt(),
		MaxPromptTokens:     cfg.MaxPromptTokens,
		MaxCompletionTokens: int32(cfg.MaxCompletionTokens),
		CompletionTimeout:   cfg.CompletionTimeout,
		Metrics:             convMetrics,
		Logger:              logger,
		Tracer:              bootstrap.Tracer(),
	})

	ingestHandler, worker := setupIngest(ctx, cfg, awsCfg, index, ingestMetrics, logger)
	a.worker = worker

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	a.closers = append(a.closers, limiter.Close)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(chat, logger),
		WebChatHandler:      webchat.NewHandler(chat, cfg.CORSAllowedOrigins, 2*cfg.CompletionTimeout, logger),
		BookingHandler:      booking.NewHandler(bookings, slots, logger),
		MetricsHandler:      metricsHandler,
		HealthChecks:        buildHealthChecks(redisClient, appointments),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		Session: httpmiddleware.SessionOptions{
			CookieName: cfg.SessionCookieName,
			TTL:        cfg.SessionCookieTTL,
			Secure:     strings.EqualFold(cfg.Env, "production"),
		},
		RateLimiter: limiter,
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) != "" {
		routerCfg.IngestHandler = ingestHandler
		routerCfg.AdminAuthSecret = cfg.AdminJWTSecret
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin ingest routes disabled")
	}
	a.handler = router.New(routerCfg)

	logger.Info("concierge ready",
		"business", profile.BusinessName,
		"appointments", appointments.Backend,
		"redis", redisClient != nil,
	)
	return a, nil
}

// setupMetrics builds a private registry so tests can call it repeatedly.
func setupMetrics() (http.Handler, *metrics.ConversationMetrics, *metrics.IngestMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	conv := metrics.NewConversationMetrics(registry)
	ing := metrics.NewIngestMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), conv, ing
}

// setupIngest wires the admin ingest surface. A worker is started in-process
// for the memory queue, whose jobs nothing else can see, or when asked to.
func setupIngest(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, index ingest.Indexer, m *metrics.IngestMetrics, logger *logging.Logger) (*ingest.Handler, *ingest.Worker) {
	queue, memoryQueue := bootstrap.BuildIngestQueue(cfg, awsCfg)
	jobs := bootstrap.BuildJobStore(cfg, awsCfg, memoryQueue != nil, logger)
	pipeline := bootstrap.BuildPipeline(cfg, awsCfg, index, m, logger)
	publisher := ingest.NewPublisher(queue, jobs, logger)

	var worker *ingest.Worker
	if memoryQueue != nil || cfg.IngestInProcess {
		worker = ingest.NewWorker(pipeline, queue, jobs, logger, bootstrap.WorkerOptions(cfg, m)...)
		worker.Start(ctx)
		logger.Info("ingest worker running in-process", "memory_queue", memoryQueue != nil)
	}
	return ingest.NewHandler(pipeline, publisher, jobs, cfg.MaxUploadBytes, logger), worker
}

func buildHealthChecks(redisClient *redis.Client, appointments *bootstrap.AppointmentStore) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if appointments != nil && appointments.Ping != nil {
		checks[appointments.Backend] = appointments.Ping
	}
	return checks
}
