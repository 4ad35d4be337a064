package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the chat pipeline.
type ConversationMetrics struct {
	turnsTotal          *prometheus.CounterVec
	classifications     *prometheus.CounterVec
	classifierFailures  prometheus.Counter
	retrievalFailures   *prometheus.CounterVec
	completionLatency   *prometheus.HistogramVec
	droppedMessages     prometheus.Counter
	dialogueTransitions *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total user turns by how they were answered",
		}, []string{"outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "intent",
			Name:      "classifications_total",
			Help:      "Total classified utterances by category",
		}, []string{"category"}),
		classifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "intent",
			Name:      "failures_total",
			Help:      "Classifier calls that failed and defaulted to other",
		}),
		retrievalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "failures_total",
			Help:      "Retrieval calls that failed and fell back to empty context",
		}, []string{"collection"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "llm",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "tokens",
			Name:      "dropped_messages_total",
			Help:      "Prompt messages dropped to fit the token budget",
		}),
		dialogueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "dialogue_transitions_total",
			Help:      "Booking dialogue transitions",
		}, []string{"from", "to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.classifications,
		m.classifierFailures,
		m.retrievalFailures,
		m.completionLatency,
		m.droppedMessages,
		m.dialogueTransitions,
	)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveClassification(category string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(category).Inc()
}

func (m *ConversationMetrics) ObserveClassifierFailure() {
	if m == nil {
		return
	}
	m.classifierFailures.Inc()
}

func (m *ConversationMetrics) ObserveRetrievalFailure(collection string) {
	if m == nil {
		return
	}
	m.retrievalFailures.WithLabelValues(collection).Inc()
}

func (m *ConversationMetrics) ObserveCompletion(status string, seconds float64) {
	if m == nil {
		return
	}
	m.completionLatency.WithLabelValues(status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveDroppedMessages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedMessages.Add(float64(n))
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.dialogueTransitions.WithLabelValues(from, to).Inc()
}
