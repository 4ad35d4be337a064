package intent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const defaultClassifyTimeout = 8 * time.Second

const classificationPrompt = `You sort messages sent to the chat assistant of a spa into categories.

Categories:
- Company Question: anything about the spa itself. Hours, services, treatments, prices, specialists, address, e-mail and phone are all Company Questions.
- Specialty Question: general advice about skin, hair, nail or body care that is not about the spa itself.
- Appointment Question: anything about booking, availability or appointments. If the message mentions an appointment it is an Appointment Question.
- Other: anything else, or when you cannot tell.

If the category is Company Question, output 0.
If the category is Specialty Question, output 1.
If the category is Appointment Question, output 2.
If the category is Other, output 3.

Answer in exactly this format: Category: <number>

Examples:

User Input: What services do you offer for acrylic nails?
Category: 0

User Input: What are your opening hours?
Category: 0

User Input: How often should I exfoliate dry skin?
Category: 1

User Input: How can I reach you by phone?
Category: 0

User Input: Is it bad to wash my hair every day?
Category: 1

User Input: Are there any slots left for an appointment this week?
Category: 2

User Input: Which treatments do you provide?
Category: 0

User Input: Can I book a massage for Saturday?
Category: 2

User Input: How much do lash extensions cost?
Category: 0

User Input: What's a good recipe for apple pie?
Category: 3

User Input: Do you have services for kids?
Category: 0

User Input: How do I make an appointment?
Category: 2

User Input: How does the moon affect the tides?
Category: 3

User Input: `

var categoryAnswerPattern = regexp.MustCompile(`(?i)category\s*:?\s*\{?\s*([0-3]|company|specialty|appointment|other)`)

// ClassifierOption customises an LLMClassifier.
type ClassifierOption func(*LLMClassifier)

// WithTimeout bounds each classification call independently of the caller's deadline.
func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *LLMClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSpecialty enables the Specialty category. Without it, specialty answers
// are folded into Company.
func WithSpecialty(enabled bool) ClassifierOption {
	return func(c *LLMClassifier) {
		c.specialty = enabled
	}
}

// WithMetrics counts failed classifications.
func WithMetrics(m *metrics.ConversationMetrics) ClassifierOption {
	return func(c *LLMClassifier) {
		c.metrics = m
	}
}

// LLMClassifier asks a completion model to pick a category using a fixed
// few-shot instruction.
type LLMClassifier struct {
	client    llm.Client
	model     string
	timeout   time.Duration
	specialty bool
	logger    *logging.Logger
	metrics   *metrics.ConversationMetrics
}

func NewLLMClassifier(client llm.Client, model string, logger *logging.Logger, opts ...ClassifierOption) *LLMClassifier {
	if client == nil {
		panic("intent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &LLMClassifier{
		client:  client,
		model:   model,
		timeout: defaultClassifyTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LLMClassifier) Classify(ctx context.Context, utterance string) Category {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Other
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(ctx, llm.Request{
		Model:     c.model,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: classificationPrompt + utterance + "\nCategory:"}},
		MaxTokens: 10,
	})
	if err != nil {
		c.metrics.ObserveClassifierFailure()
		logging.FromContext(ctx, c.logger).Warn("intent classification failed, defaulting to other", "error", err)
		return Other
	}

	category, ok := parseAnswer(resp.Text)
	if !ok {
		c.logger.Debug("unrecognized classifier answer", "answer", resp.Text)
		return Other
	}
	if category == Specialty && !c.specialty {
		return Company
	}
	return category
}

// parseAnswer reads the first category marker out of a model answer. A bare
// digit or category word is accepted as well as "Category: n".
func parseAnswer(text string) (Category, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Other, false
	}

	token := ""
	if m := categoryAnswerPattern.FindStringSubmatch(text); m != nil {
		token = m[1]
	} else {
		fields := strings.Fields(text)
		token = strings.Trim(fields[0], ".:,{} ")
	}

	switch strings.ToLower(token) {
	case "0", "company":
		return Company, true
	case "1", "specialty":
		return Specialty, true
	case "2", "appointment":
		return Appointment, true
	case "3", "other":
		return Other, true
	}
	return Other, false
}
