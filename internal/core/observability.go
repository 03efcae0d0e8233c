package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per engine operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around engine operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus is the outcome recorded for an audited mutation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes a state-changing engine call.
type AuditEntry struct {
	Operation  string            `json:"operation"`
	Status     AuditStatus       `json:"status"`
	Actor      string            `json:"actor,omitempty"`
	Target     string            `json:"target,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Error      string            `json:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type actorKey struct{}

// WithActor attaches the acting user to ctx for audit entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
