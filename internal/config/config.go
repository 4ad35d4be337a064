package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	ProfilePath        string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	SessionCookieName  string
	SessionCookieTTL   time.Duration
	AdminJWTSecret     string

	// Completion and classification
	LLMProvider         string
	LLMFallbackProvider string
	Classifier          string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string
	ClassifyTimeout     time.Duration
	CompletionTimeout   time.Duration
	MaxPromptTokens     int
	MaxCompletionTokens int

	// Retrieval
	EmbeddingProvider       string
	OpenAIEmbeddingModel    string
	BedrockEmbeddingModelID string
	RetrievalTopK           int
	RetrievalTimeout        time.Duration

	// Session and chunk storage
	UseMemoryStore bool
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	SessionTTL     time.Duration

	// Appointments
	DatabaseURL     string
	SQLitePath      string
	BookingTimezone string
	CalendarBucket  string
	CalendarPrefix  string
	CalendarDir     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Ingestion
	UseMemoryQueue   bool
	WorkerCount      int
	IngestQueueURL   string
	IngestJobsTable  string
	IngestBucket     string
	ScrapeTimeout    time.Duration
	MaxUploadBytes   int64
	IngestPollWait   time.Duration
	IngestInProcess  bool
	IngestChunkSize  int
	IngestOverlap    int
	IngestSeparator  string
	IngestPDFPrefix  string
	IngestWebPrefix  string
	IngestJobTimeout time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// SES Email Configuration
	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ProfilePath:        getEnv("PROFILE_PATH", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		SessionCookieName:  getEnv("SESSION_COOKIE_NAME", "concierge_session"),
		SessionCookieTTL:   getEnvAsDuration("SESSION_COOKIE_TTL", 24*time.Hour),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		Classifier:          strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER", "llm"))),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ClassifyTimeout:     getEnvAsDuration("CLASSIFY_TIMEOUT", 8*time.Second),
		CompletionTimeout:   getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
		MaxPromptTokens:     getEnvAsInt("MAX_PROMPT_TOKENS", 3500),
		MaxCompletionTokens: getEnvAsInt("MAX_COMPLETION_TOKENS", 512),

		EmbeddingProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMBEDDING_PROVIDER", "openai"))),
		OpenAIEmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", ""),
		BedrockEmbeddingModelID: getEnv("BEDROCK_EMBEDDING_MODEL_ID", ""),
		RetrievalTopK:           getEnvAsInt("RETRIEVAL_TOP_K", 3),
		RetrievalTimeout:        getEnvAsDuration("RETRIEVAL_TIMEOUT", 5*time.Second),

		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", ""),
		BookingTimezone: getEnv("BOOKING_TIMEZONE", "UTC"),
		CalendarBucket:  getEnv("CALENDAR_BUCKET", ""),
		CalendarPrefix:  getEnv("CALENDAR_PREFIX", "calendars/"),
		CalendarDir:     getEnv("CALENDAR_DIR", "data/calendars"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		UseMemoryQueue:   getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),
		IngestQueueURL:   getEnv("INGEST_QUEUE_URL", ""),
		IngestJobsTable:  getEnv("INGEST_JOBS_TABLE", "ingest_jobs"),
		IngestBucket:     getEnv("INGEST_BUCKET", ""),
		ScrapeTimeout:    getEnvAsDuration("SCRAPE_TIMEOUT", 15*time.Second),
		MaxUploadBytes:   int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
		IngestPollWait:   getEnvAsDuration("INGEST_POLL_WAIT", 20*time.Second),
		IngestInProcess:  getEnvAsBool("INGEST_IN_PROCESS", false),
		IngestChunkSize:  getEnvAsInt("INGEST_CHUNK_SIZE", 750),
		IngestOverlap:    getEnvAsInt("INGEST_CHUNK_OVERLAP", 8),
		IngestSeparator:  getEnv("INGEST_CHUNK_SEPARATOR", "\n\n"),
		IngestPDFPrefix:  getEnv("INGEST_PDF_PREFIX", "pdf/"),
		IngestWebPrefix:  getEnv("INGEST_WEB_PREFIX", "web/"),
		IngestJobTimeout: getEnvAsDuration("INGEST_JOB_TIMEOUT", 5*time.Minute),

		// SendGrid Email Configuration
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Spa Concierge"),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Spa Concierge"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
