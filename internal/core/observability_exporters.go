package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports engine operation latency and outcome counts.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the engine collectors with reg. A nil
// registerer uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mvpplanner",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of planner engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mvpplanner",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Planner engine operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{rec.durations, rec.results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe records a single operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// JSONTraceEntry is one serialized span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines. Without a writer it keeps them in
// memory for Entries instead.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w; a nil writer retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	if s.tracer.enc == nil {
		s.tracer.entries = append(s.tracer.entries, entry)
		return
	}
	_ = s.tracer.enc.Encode(entry)
}
