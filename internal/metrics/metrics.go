package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jo-hoe/ocrmd/internal/llm"
)

const namespace = "ocrmd"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics owns a private registry so tests and multiple instances never collide.
type Metrics struct {
	registry      *prometheus.Registry
	transcription *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	jobs          *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// New registers all collectors, plus Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transcription: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Latency of provider calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished jobs by outcome.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being processed.",
		}),
	}
	m.registry.MustRegister(
		m.transcription,
		m.duration,
		m.jobs,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobStarted increments the in-flight gauge; call the returned func when the job ends.
func (m *Metrics) JobStarted() func(err error) {
	m.inFlight.Inc()
	return func(err error) {
		m.inFlight.Dec()
		m.jobs.WithLabelValues(outcome(err)).Inc()
	}
}

// Instrument wraps c so every call is counted and timed under the provider label.
func (m *Metrics) Instrument(provider string, c llm.Completer) llm.Completer {
	return &instrumented{next: c, provider: provider, m: m}
}

type instrumented struct {
	next     llm.Completer
	provider string
	m        *Metrics
}

func (i *instrumented) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, prompt, att)
	i.m.duration.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())
	i.m.transcription.WithLabelValues(i.provider, outcome(err)).Inc()
	return out, err
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
