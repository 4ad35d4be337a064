package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/spa-concierge/internal/booking"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// humanTemplate wraps a question and its retrieved context into one user message.
const humanTemplate = "User Query: %s\n\nRelevant Context: %s"

// ContextRetriever renders supporting passages for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, collection retrieval.Collection) (string, error)
}

// Pending is the routed form of a user message. A terminal Pending already
// holds the assistant's reply and needs no completion call.
type Pending struct {
	Message  llm.Message
	Terminal bool
}

// RouterConfig wires a Router.
type RouterConfig struct {
	Retriever ContextRetriever
	// Routes maps the retrieval categories to their collections. Specialty falls
	// back to the company collection when it has no route of its own.
	Routes  map[intent.Category]retrieval.Collection
	Slots   []booking.Request
	Timeout time.Duration
	Metrics *metrics.ConversationMetrics
	Logger  *logging.Logger
}

// Router turns a classified utterance into a Pending turn.
type Router struct {
	retriever ContextRetriever
	routes    map[intent.Category]retrieval.Collection
	slotMenu  string
	timeout   time.Duration
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Retriever == nil {
		panic("conversation: retriever cannot be nil")
	}
	if _, ok := cfg.Routes[intent.Company]; !ok {
		panic("conversation: company category needs a collection")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Router{
		retriever: cfg.Retriever,
		routes:    cfg.Routes,
		slotMenu:  booking.RenderSlotMenu(cfg.Slots),
		timeout:   cfg.Timeout,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Route dispatches on category. It panics on a value outside the closed
// intent.Category set.
func (r *Router) Route(ctx context.Context, utterance string, category intent.Category) Pending {
	switch category {
	case intent.Company, intent.Specialty:
		return r.withContext(ctx, utterance, r.collectionFor(category))
	case intent.Appointment:
		return Pending{Message: llm.Message{Role: llm.RoleAssistant, Content: r.slotMenu}, Terminal: true}
	case intent.Other:
		return Pending{Message: llm.Message{Role: llm.RoleUser, Content: utterance}}
	default:
		panic(fmt.Sprintf("conversation: invalid category %q", category))
	}
}

func (r *Router) collectionFor(category intent.Category) retrieval.Collection {
	if c, ok := r.routes[category]; ok {
		return c
	}
	return r.routes[intent.Company]
}

func (r *Router) withContext(ctx context.Context, utterance string, collection retrieval.Collection) Pending {
	rctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	block, err := r.retriever.Retrieve(rctx, utterance, collection)
	if err != nil {
		logging.FromContext(ctx, r.logger).Warn("retrieval failed, answering without context",
			"collection", string(collection),
			"error", err,
		)
		r.metrics.ObserveRetrievalFailure(string(collection))
		block = ""
	}
	return Pending{Message: llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(humanTemplate, utterance, block),
	}}
}
