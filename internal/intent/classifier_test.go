package intent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-concierge/internal/llm"
	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

type scriptedClient struct {
	answer string
	err    error
	block  bool
	got    []llm.Request
}

func (s *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.got = append(s.got, req)
	if s.block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.answer}, nil
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", &bytes.Buffer{})
}

func TestLLMClassifierParsesAnswers(t *testing.T) {
	cases := []struct {
		answer string
		want   Category
	}{
		{"Category: 0", Company},
		{"category:2", Appointment},
		{" 3", Other},
		{"Category: { 2 }", Appointment},
		{"appointment", Appointment},
		{"I think Category: 0 fits best", Company},
		{"banana", Other},
		{"", Other},
	}
	for _, tc := range cases {
		t.Run(tc.answer, func(t *testing.T) {
			client := &scriptedClient{answer: tc.answer}
			c := NewLLMClassifier(client, "gpt-test", quietLogger())
			assert.Equal(t, tc.want, c.Classify(context.Background(), "What are your hours?"))
		})
	}
}

func TestLLMClassifierSpecialtyFolding(t *testing.T) {
	client := &scriptedClient{answer: "Category: 1"}

	folded := NewLLMClassifier(client, "", quietLogger())
	assert.Equal(t, Company, folded.Classify(context.Background(), "How often should I exfoliate?"))

	enabled := NewLLMClassifier(client, "", quietLogger(), WithSpecialty(true))
	assert.Equal(t, Specialty, enabled.Classify(context.Background(), "How often should I exfoliate?"))
}

func TestLLMClassifierPromptCarriesUtterance(t *testing.T) {
	client := &scriptedClient{answer: "Category: 2"}
	c := NewLLMClassifier(client, "gpt-test", quietLogger())

	got := c.Classify(context.Background(), "  Is there a slot on Friday?  ")
	assert.Equal(t, Appointment, got)
	require.Len(t, client.got, 1)
	req := client.got[0]
	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 1)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "User Input: Is there a slot on Friday?\nCategory:"))
}

func TestLLMClassifierFailsSoft(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)

	client := &scriptedClient{err: errors.New("provider down")}
	c := NewLLMClassifier(client, "", quietLogger(), WithMetrics(m))
	assert.Equal(t, Other, c.Classify(context.Background(), "hello"))

	slow := &scriptedClient{block: true}
	c = NewLLMClassifier(slow, "", quietLogger(), WithTimeout(5*time.Millisecond))
	assert.Equal(t, Other, c.Classify(context.Background(), "hello"))
}

func TestLLMClassifierBlankSkipsCall(t *testing.T) {
	client := &scriptedClient{answer: "Category: 0"}
	c := NewLLMClassifier(client, "", quietLogger())
	assert.Equal(t, Other, c.Classify(context.Background(), "   "))
	assert.Empty(t, client.got)
}

func TestPatternClassifier(t *testing.T) {
	cases := map[string]Category{
		"Is there spots available to make an appointment?": Appointment,
		"Can I book a facial?":                              Appointment,
		"What are your operating hours?":                    Company,
		"How much do lash extensions cost?":                 Company,
		"How can I contact you?":                            Company,
		"What's the recipe for apple pie?":                  Other,
		"":                                                  Other,
	}
	var c PatternClassifier
	for utterance, want := range cases {
		assert.Equal(t, want, c.Classify(context.Background(), utterance), utterance)
	}
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory("specialty")
	require.NoError(t, err)
	assert.Equal(t, Specialty, got)

	_, err = ParseCategory("billing")
	require.Error(t, err)
	assert.False(t, Category("").Valid())
}
