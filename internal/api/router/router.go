package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/spa-concierge/internal/booking"
	"github.com/wolfman30/spa-concierge/internal/conversation"
	httpmiddleware "github.com/wolfman30/spa-concierge/internal/http/middleware"
	"github.com/wolfman30/spa-concierge/internal/ingest"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	BookingHandler      *booking.Handler
	IngestHandler       *ingest.Handler
	WebChatHandler      http.Handler
	MetricsHandler      http.Handler
	HealthChecks        map[string]HealthCheck
	CORSAllowedOrigins  []string
	Session             httpmiddleware.SessionOptions
	RateLimiter         *httpmiddleware.RateLimiter
	AdminAuthSecret     string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.ConversationHandler == nil {
		panic("router: conversation handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks, cfg.Logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			public.Get("/slots", cfg.BookingHandler.Slots)
			public.Get("/appointments/{id}/calendar.ics", cfg.BookingHandler.Calendar)
		}
	})

	// Chat endpoints, keyed by the visitor's session
	r.Group(func(chat chi.Router) {
		if cfg.RateLimiter != nil {
			chat.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		chat.Use(httpmiddleware.Session(cfg.Session))

		chat.Post("/message", cfg.ConversationHandler.Message)
		chat.Get("/history", cfg.ConversationHandler.History)
		chat.Post("/clear", cfg.ConversationHandler.Clear)
		if cfg.WebChatHandler != nil {
			chat.Get("/ws", cfg.WebChatHandler.ServeHTTP)
		}
		if cfg.BookingHandler != nil {
			chat.Post("/confirm-appointment", cfg.BookingHandler.Confirm)
		}
	})

	// Operator endpoints
	if cfg.IngestHandler != nil {
		r.Route("/admin/ingest", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.ScopeIngest))
			admin.Post("/", cfg.IngestHandler.Enqueue)
			admin.Post("/pdf", cfg.IngestHandler.UploadPDF)
			admin.Get("/jobs/{id}", cfg.IngestHandler.Job)
		})
	}

	return r
}
