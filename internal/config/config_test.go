package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected default provider openai, got %s", cfg.LLMProvider)
	}
	if cfg.ClassifyTimeout != 8*time.Second {
		t.Fatalf("expected default classify timeout, got %s", cfg.ClassifyTimeout)
	}
	if cfg.RetrievalTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.RetrievalTopK)
	}
	if cfg.IngestChunkSize != 750 || cfg.IngestOverlap != 8 || cfg.IngestSeparator != "\n\n" {
		t.Fatalf("unexpected chunker defaults %d/%d/%q", cfg.IngestChunkSize, cfg.IngestOverlap, cfg.IngestSeparator)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.SessionCookieName != "concierge_session" {
		t.Fatalf("expected default cookie name, got %s", cfg.SessionCookieName)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LLM_PROVIDER", " Bedrock ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("MAX_PROMPT_TOKENS", "2000")
	t.Setenv("COMPLETION_TIMEOUT", "45s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Fatalf("expected normalized provider, got %q", cfg.LLMProvider)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.MaxPromptTokens != 2000 {
		t.Fatalf("expected prompt token override, got %d", cfg.MaxPromptTokens)
	}
	if cfg.CompletionTimeout != 45*time.Second {
		t.Fatalf("expected completion timeout override, got %s", cfg.CompletionTimeout)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue enabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_PROMPT_TOKENS", "lots")
	t.Setenv("CLASSIFY_TIMEOUT", "soon")
	cfg := Load()
	if cfg.MaxPromptTokens != 3500 {
		t.Fatalf("expected default prompt tokens, got %d", cfg.MaxPromptTokens)
	}
	if cfg.ClassifyTimeout != 8*time.Second {
		t.Fatalf("expected default classify timeout, got %s", cfg.ClassifyTimeout)
	}
}

func TestDefaultProfile(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("load default profile: %v", err)
	}
	routes, err := p.RouteTable()
	if err != nil {
		t.Fatalf("route table: %v", err)
	}
	if routes[intent.Company] != retrieval.WebDocs || routes[intent.Specialty] != retrieval.CompanyDocs {
		t.Fatalf("unexpected default routes %v", routes)
	}
	if !p.SpecialtyEnabled() {
		t.Fatalf("expected specialty enabled by default")
	}
	prompt := p.Prompt()
	if strings.Contains(prompt, businessPlaceholder) || !strings.Contains(prompt, "Solorzano Spa") {
		t.Fatalf("business name not substituted: %q", prompt[:80])
	}
	slots, err := p.SlotTable()
	if err != nil || len(slots) == 0 {
		t.Fatalf("expected default slots, got %v (%v)", slots, err)
	}
}

func TestLoadProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	data := `
business_name: Glow Studio
slots:
  - date: june 3rd
    time_range: 9:00-10:30am
routes:
  company: company_docs
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.BusinessName != "Glow Studio" {
		t.Fatalf("expected business name, got %s", p.BusinessName)
	}
	if p.SpecialtyEnabled() {
		t.Fatalf("specialty should be disabled without a route")
	}
	if !strings.Contains(p.Prompt(), "Glow Studio") {
		t.Fatalf("expected default prompt with business name")
	}
	slots, err := p.SlotTable()
	if err != nil {
		t.Fatalf("slot table: %v", err)
	}
	if slots[0].Date != "Jun 3" || slots[0].TimeRange != "9am - 10:30am" {
		t.Fatalf("expected canonical slot, got %+v", slots[0])
	}
}

func TestParseProfileRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":      "business: x\n",
		"unknown category":   "routes:\n  pricing: web_docs\n",
		"non retrieval":      "routes:\n  company: web_docs\n  appointment: web_docs\n",
		"unknown collection": "routes:\n  company: blog\n",
		"no company route":   "routes:\n  specialty: web_docs\n",
		"bad slot":           "slots:\n  - date: Feb 30\n    time_range: 9am - 10am\n",
	}
	for name, data := range cases {
		if _, err := ParseProfile([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	p, err := ParseProfile(nil)
	if err != nil {
		t.Fatalf("empty profile: %v", err)
	}
	if p.BusinessName != "Solorzano Spa" {
		t.Fatalf("expected defaults for empty profile")
	}
}
