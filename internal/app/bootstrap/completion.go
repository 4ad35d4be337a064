package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/spa-concierge/internal/config"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// BuildCompletionClient wires the configured provider, an optional fallback
// provider, and the per-call completion timeout.
func BuildCompletionClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	var client llm.Client = primary

	if name := strings.TrimSpace(cfg.LLMFallbackProvider); name != "" && name != cfg.LLMProvider {
		fallback, err := buildProvider(ctx, name, cfg, awsCfg)
		if err != nil {
			logger.Warn("fallback completion provider unavailable", "provider", name, "error", err)
		} else {
			client = llm.NewFallbackClient(primary, fallback, logger)
			logger.Info("completion fallback enabled", "primary", cfg.LLMProvider, "fallback", name)
		}
	}

	logger.Info("completion client configured", "provider", cfg.LLMProvider, "timeout", cfg.CompletionTimeout.String())
	return llm.WithTimeout(client, cfg.CompletionTimeout), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "":
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: openai: %w", err)
		}
		return client, nil
	case "bedrock":
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: bedrock requires AWS configuration")
		}
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown completion provider %q", name)
	}
}

// BuildClassifier returns the LLM classifier unless the keyword classifier is selected.
func BuildClassifier(cfg *appconfig.Config, client llm.Client, specialty bool, m *metrics.ConversationMetrics, logger *logging.Logger) intent.Classifier {
	if strings.EqualFold(strings.TrimSpace(cfg.Classifier), "pattern") || client == nil {
		logger.Info("using keyword intent classifier")
		return intent.PatternClassifier{}
	}
	// An empty model lets each provider, fallback included, use its own.
	return intent.NewLLMClassifier(client, "", logger,
		intent.WithTimeout(cfg.ClassifyTimeout),
		intent.WithSpecialty(specialty),
		intent.WithMetrics(m),
	)
}

// CompletionModel names the primary provider's model, for token counting.
func CompletionModel(cfg *appconfig.Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "bedrock":
		return cfg.BedrockModelID
	case "gemini":
		return cfg.GeminiModel
	default:
		return cfg.OpenAIModel
	}
}
