package conversation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-concierge/internal/booking"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type fakeRetriever struct {
	blocks  map[retrieval.Collection]string
	err     error
	queried []retrieval.Collection
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, c retrieval.Collection) (string, error) {
	f.queried = append(f.queried, c)
	if f.err != nil {
		return "", f.err
	}
	return f.blocks[c], nil
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", &bytes.Buffer{})
}

func newTestRouter(r ContextRetriever, routes map[intent.Category]retrieval.Collection, m *metrics.ConversationMetrics) *Router {
	if routes == nil {
		routes = map[intent.Category]retrieval.Collection{intent.Company: retrieval.WebDocs}
	}
	return NewRouter(RouterConfig{
		Retriever: r,
		Routes:    routes,
		Slots:     booking.DefaultSlots,
		Metrics:   m,
		Logger:    quietLogger(),
	})
}

func TestRouteCompanyWrapsContext(t *testing.T) {
	retriever := &fakeRetriever{blocks: map[retrieval.Collection]string{retrieval.WebDocs: "We open at 9am."}}
	router := newTestRouter(retriever, nil, nil)

	p := router.Route(context.Background(), "What are your hours?", intent.Company)
	assert.False(t, p.Terminal)
	assert.Equal(t, llm.RoleUser, p.Message.Role)
	assert.Equal(t, "User Query: What are your hours?\n\nRelevant Context: We open at 9am.", p.Message.Content)
	assert.Equal(t, []retrieval.Collection{retrieval.WebDocs}, retriever.queried)
}

func TestRouteSpecialtyCollection(t *testing.T) {
	retriever := &fakeRetriever{blocks: map[retrieval.Collection]string{}}

	router := newTestRouter(retriever, map[intent.Category]retrieval.Collection{
		intent.Company:   retrieval.WebDocs,
		intent.Specialty: retrieval.CompanyDocs,
	}, nil)
	router.Route(context.Background(), "how do I care for lashes", intent.Specialty)

	fallback := newTestRouter(retriever, nil, nil)
	fallback.Route(context.Background(), "how do I care for lashes", intent.Specialty)

	assert.Equal(t, []retrieval.Collection{retrieval.CompanyDocs, retrieval.WebDocs}, retriever.queried)
}

func TestRouteRetrievalFailureDegrades(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	router := newTestRouter(&fakeRetriever{err: errors.New("vector store down")}, nil, m)

	p := router.Route(context.Background(), "Where are you located?", intent.Company)
	assert.False(t, p.Terminal)
	assert.Equal(t, "User Query: Where are you located?\n\nRelevant Context: ", p.Message.Content)
	assert.Equal(t, 1.0, counterValue(t, reg, "concierge_retrieval_failures_total"))
}

func TestRouteAppointmentIsTerminal(t *testing.T) {
	retriever := &fakeRetriever{}
	router := newTestRouter(retriever, nil, nil)

	p := router.Route(context.Background(), "can I get an appointment?", intent.Appointment)
	assert.True(t, p.Terminal)
	assert.Equal(t, llm.RoleAssistant, p.Message.Role)
	assert.Contains(t, p.Message.Content, `data-prompt="Book appointment for Jun 12 9am - 10am"`)
	assert.Empty(t, retriever.queried)
}

func TestRouteOtherPassesThrough(t *testing.T) {
	retriever := &fakeRetriever{}
	router := newTestRouter(retriever, nil, nil)

	p := router.Route(context.Background(), "How does the moon affect the tides?", intent.Other)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "How does the moon affect the tides?"}, p.Message)
	assert.Empty(t, retriever.queried)
}

func TestRouteInvalidCategoryPanics(t *testing.T) {
	router := newTestRouter(&fakeRetriever{}, nil, nil)
	assert.Panics(t, func() {
		router.Route(context.Background(), "hi", intent.Category("2"))
	})
}

func TestNewRouterRequiresCompanyRoute(t *testing.T) {
	require.Panics(t, func() {
		NewRouter(RouterConfig{Retriever: &fakeRetriever{}, Routes: map[intent.Category]retrieval.Collection{}})
	})
}

// counterValue sums every series of the named counter family in reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
