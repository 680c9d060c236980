package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the conversation pipeline.
type PipelineMetrics struct {
	inboundTotal        *prometheus.CounterVec
	classificationTotal *prometheus.CounterVec
	handlerTotal        *prometheus.CounterVec
	llmLatency          *prometheus.HistogramVec
	llmCostUSD          *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopchat",
			Subsystem: "pipeline",
			Name:      "inbound_messages_total",
			Help:      "Total inbound messages by channel and outcome",
		}, []string{"channel", "status"}),
		classificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopchat",
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Intent classifications by intent and source (pattern or llm)",
		}, []string{"intent", "source"}),
		handlerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopchat",
			Subsystem: "pipeline",
			Name:      "handler_dispatch_total",
			Help:      "Handler dispatches, including low-confidence fallbacks",
		}, []string{"handler"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopchat",
			Subsystem: "llm",
			Name:      "chat_latency_seconds",
			Help:      "Latency of LLM chat calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		llmCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopchat",
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Accumulated LLM spend in USD",
		}, []string{"provider", "model"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.classificationTotal, m.handlerTotal, m.llmLatency, m.llmCostUSD)
	return m
}

func (m *PipelineMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveClassification(intent, source string) {
	if m == nil {
		return
	}
	m.classificationTotal.WithLabelValues(intent, source).Inc()
}

func (m *PipelineMetrics) ObserveHandler(handler string) {
	if m == nil {
		return
	}
	m.handlerTotal.WithLabelValues(handler).Inc()
}

func (m *PipelineMetrics) ObserveLLMLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *PipelineMetrics) ObserveLLMCost(provider, model string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.llmCostUSD.WithLabelValues(provider, model).Add(usd)
}
