// Package exports renders plan snapshots into downloadable artifacts on a
// background worker and stores them in the blob store.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mvpplanner/internal/blob"
	"mvpplanner/internal/core"
)

// ExportStatus describes the lifecycle stage of an export.
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportRunning   ExportStatus = "running"
	ExportSucceeded ExportStatus = "succeeded"
	ExportFailed    ExportStatus = "failed"
)

const (
	auditOperation = "export_plan"
	artifactBase   = "mvp-strategic-plan"
	queueSize      = 32
	cleanupTimeout = 5 * time.Second
)

// DefaultMaxFinished is how many finished exports GetExport remembers.
const DefaultMaxFinished = 256

// ErrQueueFull is returned when the worker cannot accept more exports.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored rendering of an export.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string       `json:"id"`
	Formats     []Format     `json:"formats"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	RequestedBy string       `json:"requested_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// ExportInput is an export request.
type ExportInput struct {
	Formats     []Format
	RequestedBy string
}

// PlanSource supplies the plan snapshot to export.
type PlanSource interface {
	Plan() core.Plan
}

// Scheduler queues exports and reports their status.
type Scheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithAudit records every status transition.
func WithAudit(a core.AuditRecorder) Option {
	return func(w *Worker) {
		if a != nil {
			w.audit = a
		}
	}
}

// WithMetrics observes each finished export.
func WithMetrics(m core.MetricsRecorder) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithMaxFinished caps how many finished exports are kept for GetExport; the
// oldest are forgotten first. Their artifacts stay in the store.
func WithMaxFinished(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxFinished = n
		}
	}
}

// Worker executes plan exports one at a time.
type Worker struct {
	plans   PlanSource
	store   blob.Store
	audit   core.AuditRecorder
	metrics core.MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time

	queue       chan task
	mu          sync.RWMutex
	jobs        map[string]*ExportRecord
	finished    []string
	maxFinished int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id      string
	formats []Format
	plan    core.Plan
}

// NewWorker builds a worker; call Start before enqueueing.
func NewWorker(plans PlanSource, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		plans:   plans,
		store:   store,
		audit:   nopAudit{},
		metrics: nopMetrics{},
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		queue:       make(chan task, queueSize),
		jobs:        make(map[string]*ExportRecord),
		maxFinished: DefaultMaxFinished,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the processing goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels in-flight work and waits for the loop to exit or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// EnqueueExport snapshots the current plan and queues it for rendering.
// Duplicate formats are collapsed; no formats means DefaultFormats.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.plans == nil || w.store == nil {
		return ExportRecord{}, errors.New("export worker not configured")
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]bool, len(formats))
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return ExportRecord{}, err
		}
		if seen[parsed] {
			continue
		}
		seen[parsed] = true
		uniq = append(uniq, parsed)
	}

	actor := input.RequestedBy
	if actor == "" {
		actor = core.ActorFrom(ctx)
	}
	now := w.now()
	record := ExportRecord{
		ID:          uuid.NewString(),
		Formats:     uniq,
		Status:      ExportQueued,
		RequestedBy: actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()
	w.record(ctx, queued, "")

	select {
	case w.queue <- task{id: record.ID, formats: queued.Formats, plan: w.plans.Plan()}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		rejected := queued
		rejected.Status = ExportFailed
		w.record(ctx, rejected, ErrQueueFull.Error())
		return ExportRecord{}, ErrQueueFull
	}
	w.logger.Info("export queued", zap.String("export_id", record.ID), zap.Int("formats", len(uniq)))
	return queued, nil
}

// GetExport returns a copy of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	started := time.Now()
	w.transition(t.id, ExportRunning, "", nil)

	artifacts := make([]Artifact, 0, len(t.formats))
	for _, f := range t.formats {
		art, err := w.storeFormat(t.id, f, t.plan)
		if err != nil {
			w.transition(t.id, ExportFailed, err.Error(), w.discard(t.id, artifacts))
			w.metrics.Observe(w.ctx, auditOperation, false, time.Since(started))
			return
		}
		artifacts = append(artifacts, art)
	}
	w.transition(t.id, ExportSucceeded, "", artifacts)
	w.metrics.Observe(w.ctx, auditOperation, true, time.Since(started))
}

func (w *Worker) storeFormat(id string, f Format, plan core.Plan) (Artifact, error) {
	payload, err := Render(f, plan)
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", f, err)
	}
	key := ArtifactKey(id, f)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: f.ContentType(),
		Metadata: map[string]string{
			"export_id":    id,
			"format":       string(f),
			"organization": plan.Organization,
			"mvps":         strconv.Itoa(len(plan.Groupings)),
		},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s artifact: %w", f, err)
	}
	art := Artifact{
		Format:      f,
		Key:         key,
		ContentType: f.ContentType(),
		SizeBytes:   int64(len(payload)),
		ETag:        info.ETag,
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
		art.URL = url
	}
	if art.CreatedAt.IsZero() {
		art.CreatedAt = w.now()
	}
	return art, nil
}

// discard deletes artifacts stored before a failed format and returns the
// ones that could not be removed.
func (w *Worker) discard(id string, artifacts []Artifact) []Artifact {
	if len(artifacts) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), cleanupTimeout)
	defer cancel()
	var left []Artifact
	for _, art := range artifacts {
		if _, err := w.store.Delete(ctx, art.Key); err != nil {
			w.logger.Warn("partial export artifact not removed",
				zap.String("export_id", id), zap.String("key", art.Key), zap.Error(err))
			left = append(left, art)
		}
	}
	return left
}

// ArtifactKey is the blob key of an export rendering.
func ArtifactKey(id string, f Format) string {
	return "exports/" + id + "/" + artifactBase + "." + string(f)
}

func (w *Worker) transition(id string, status ExportStatus, reason string, artifacts []Artifact) {
	now := w.now()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = status
	record.Error = reason
	record.UpdatedAt = now
	if artifacts != nil {
		record.Artifacts = artifacts
	}
	if status == ExportSucceeded || status == ExportFailed {
		record.CompletedAt = &now
		w.finished = append(w.finished, id)
		for len(w.finished) > w.maxFinished {
			delete(w.jobs, w.finished[0])
			w.finished = w.finished[1:]
		}
	}
	snapshot := record.copy()
	w.mu.Unlock()

	w.record(w.ctx, snapshot, reason)
	fields := []zap.Field{zap.String("export_id", id), zap.String("status", string(status))}
	if status == ExportFailed {
		w.logger.Error("export failed", append(fields, zap.String("error", reason))...)
		return
	}
	w.logger.Debug("export transition", fields...)
}

func (w *Worker) record(ctx context.Context, r ExportRecord, reason string) {
	entry := core.AuditEntry{
		Operation:  auditOperation,
		Status:     core.AuditStatusSuccess,
		Actor:      r.RequestedBy,
		Target:     r.ID,
		Details:    map[string]string{"status": string(r.Status)},
		OccurredAt: r.UpdatedAt,
	}
	if r.Status == ExportFailed {
		entry.Status = core.AuditStatusError
		entry.Error = reason
	}
	if len(r.Artifacts) > 0 {
		entry.Details["artifacts"] = strconv.Itoa(len(r.Artifacts))
	}
	w.audit.Record(ctx, entry)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, core.AuditEntry) {}

type nopMetrics struct{}

func (nopMetrics) Observe(context.Context, string, bool, time.Duration) {}
