package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics tracks document ingestion.
type IngestMetrics struct {
	chunksIndexed *prometheus.CounterVec
	jobsTotal     *prometheus.CounterVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		chunksIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and indexed per collection",
		}, []string{"collection"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Ingest jobs processed by kind and status",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chunksIndexed, m.jobsTotal)
	return m
}

func (m *IngestMetrics) ObserveChunks(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksIndexed.WithLabelValues(collection).Add(float64(n))
}

func (m *IngestMetrics) ObserveJob(kind, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, status).Inc()
}
