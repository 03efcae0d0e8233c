package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mvpplanner/pkg/domain"
)

// DefaultOrganization titles reports when neither the config collection nor
// the engine options name one.
const DefaultOrganization = "Memorial of Converse"

// Engine owns the record store and both derived indexes for one planning
// session. Every method runs to completion under the engine lock; a load
// discards all index mutations made since the previous load.
type Engine struct {
	mu          sync.RWMutex
	records     *RecordStore
	assignments *AssignmentIndex
	selections  *SelectionIndex

	clinicians   []domain.Clinician
	groupings    []domain.Grouping
	measures     []domain.Measure
	clinicianIdx map[string]int
	groupingIdx  map[string]int
	measureIdx   map[string]int

	mutations int
	loadedAt  time.Time

	organization string
	logger       *zap.Logger
	metrics      MetricsRecorder
	tracer       Tracer
	audit        AuditRecorder
	nowFn        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithAudit sets the audit recorder.
func WithAudit(a AuditRecorder) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

// WithClock overrides the time source used for report dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// WithOrganization sets the fallback organization name for reports.
func WithOrganization(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.organization = name
		}
	}
}

// NewEngine returns an engine with no data loaded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		records:      NewRecordStore(),
		assignments:  NewAssignmentIndex(),
		selections:   NewSelectionIndex(),
		clinicianIdx: map[string]int{},
		groupingIdx:  map[string]int{},
		measureIdx:   map[string]int{},
		organization: DefaultOrganization,
		logger:       zap.NewNop(),
		metrics:      noopMetrics{},
		tracer:       noopTracer{},
		audit:        noopAudit{},
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadResult summarises a load cycle.
type LoadResult struct {
	Counts           map[domain.CollectionName]int `json:"counts"`
	DiscardedChanges bool                          `json:"discarded_changes"`
	SeedRejections   []SeedRejection               `json:"-"`
	LoadedAt         time.Time                     `json:"loaded_at"`
}

// Load replaces all collections with the snapshot and rebuilds both indexes
// from scratch.
func (e *Engine) Load(ctx context.Context, snapshot domain.Snapshot) (LoadResult, error) {
	var res LoadResult
	err := e.instrument(ctx, "load", "", func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.records.Replace(snapshot); err != nil {
			return err
		}
		res.DiscardedChanges = e.mutations > 0
		res.SeedRejections = e.rebuild()
		res.Counts = snapshot.Counts()
		res.LoadedAt = e.loadedAt
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}
	e.logLoad("planner data loaded", res)
	return res, nil
}

// logLoad reports a finished load and anything it threw away.
func (e *Engine) logLoad(msg string, res LoadResult) {
	fields := make([]zap.Field, 0, len(res.Counts))
	for _, name := range domain.Collections() {
		if n, ok := res.Counts[name]; ok {
			fields = append(fields, zap.Int(string(name), n))
		}
	}
	e.logger.Info(msg, fields...)
	if res.DiscardedChanges {
		e.logger.Warn("reload discarded unsaved assignment and selection changes")
	}
	for _, rej := range res.SeedRejections {
		e.logger.Warn("selection row skipped",
			zap.String("mvp_id", rej.GroupingID),
			zap.String("measure_id", rej.MeasureID),
			zap.String("reason", rej.Reason),
		)
	}
}

// LoadCollection replaces a single collection and rebuilds both indexes, so
// unsaved assignment and selection changes are discarded as with Load.
func (e *Engine) LoadCollection(ctx context.Context, name domain.CollectionName, records []domain.Record) (LoadResult, error) {
	var res LoadResult
	err := e.instrument(ctx, "load_collection", string(name), func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.records.Load(name, records); err != nil {
			return err
		}
		res.DiscardedChanges = e.mutations > 0
		res.SeedRejections = e.rebuild()
		res.Counts = map[domain.CollectionName]int{name: len(records)}
		res.LoadedAt = e.loadedAt
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}
	e.logLoad("planner collection loaded", res)
	return res, nil
}

// rebuild must be called with the write lock held.
func (e *Engine) rebuild() []SeedRejection {
	e.clinicians, e.clinicianIdx = decodeAll(e.records.Get(domain.CollectionClinicians), domain.DecodeClinician, func(c domain.Clinician) string { return c.ID })
	e.groupings, e.groupingIdx = decodeAll(e.records.Get(domain.CollectionMVPs), domain.DecodeGrouping, func(g domain.Grouping) string { return g.ID })
	e.measures, e.measureIdx = decodeAll(e.records.Get(domain.CollectionMeasures), domain.DecodeMeasure, func(m domain.Measure) string { return m.ID })

	e.assignments = BuildAssignmentIndex(e.records.Get(domain.CollectionAssignments))
	var rejected []SeedRejection
	e.selections, rejected = BuildSelectionIndex(e.records.Get(domain.CollectionSelections), e.requiredCount, e.lookupMeasure)
	e.mutations = 0
	e.loadedAt = e.nowFn()
	return rejected
}

// decodeAll decodes rows in order and indexes the first row per id.
func decodeAll[T any](rows []domain.Record, decode func(domain.Record) T, key func(T) string) ([]T, map[string]int) {
	out := make([]T, 0, len(rows))
	idx := make(map[string]int, len(rows))
	for _, row := range rows {
		v := decode(row)
		if _, dup := idx[key(v)]; !dup {
			idx[key(v)] = len(out)
		}
		out = append(out, v)
	}
	return out, idx
}

func (e *Engine) lookupMeasure(id string) (domain.Measure, bool) {
	i, ok := e.measureIdx[id]
	if !ok {
		return domain.Measure{}, false
	}
	return e.measures[i], true
}

func (e *Engine) lookupGrouping(id string) (domain.Grouping, bool) {
	i, ok := e.groupingIdx[id]
	if !ok {
		return domain.Grouping{}, false
	}
	return e.groupings[i], true
}

func (e *Engine) lookupClinician(id string) (domain.Clinician, bool) {
	i, ok := e.clinicianIdx[id]
	if !ok {
		return domain.Clinician{}, false
	}
	return e.clinicians[i], true
}

func (e *Engine) requiredCount(groupingID string) int {
	if g, ok := e.lookupGrouping(groupingID); ok {
		return g.RequiredMeasures
	}
	return domain.DefaultRequiredMeasures
}

// MembersOf returns the clinician ids assigned to the MVP.
func (e *Engine) MembersOf(groupingID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.assignments.MembersOf(groupingID)
}

// IsAssigned reports whether the clinician belongs to any MVP.
func (e *Engine) IsAssigned(clinicianID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.assignments.IsAssigned(clinicianID)
}

// SelectedOf returns the measure ids selected for the MVP.
func (e *Engine) SelectedOf(groupingID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selections.SelectedOf(groupingID)
}

// MeasureConfig returns the config of a selected measure.
func (e *Engine) MeasureConfig(groupingID, measureID string) (MeasureConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selections.ConfigOf(groupingID, measureID)
}

// UnassignedClinicians returns active clinicians that are in no MVP, in
// source order.
func (e *Engine) UnassignedClinicians() []domain.Clinician {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unassigned()
}

func (e *Engine) unassigned() []domain.Clinician {
	assigned := e.assignments.AssignedIDs()
	out := make([]domain.Clinician, 0, len(e.clinicians))
	for _, c := range e.clinicians {
		if !c.Active {
			continue
		}
		if _, ok := assigned[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ActiveGroupings returns MVPs with at least one assigned clinician, in
// source order.
func (e *Engine) ActiveGroupings() []domain.Grouping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeGroupings()
}

func (e *Engine) activeGroupings() []domain.Grouping {
	out := make([]domain.Grouping, 0)
	for _, g := range e.groupings {
		if e.assignments.Count(g.ID) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// AssignResult details a bulk assignment.
type AssignResult struct {
	Added             []string          `json:"added"`
	AlreadyMember     []string          `json:"already_member,omitempty"`
	AssignedElsewhere map[string]string `json:"assigned_elsewhere,omitempty"`
}

// Assign adds each clinician to the MVP. Clinicians already in the MVP are
// left alone and clinicians that belong to a different MVP are skipped, so a
// clinician is never counted under two MVPs by this call. An unknown MVP or
// clinician id rejects the whole call.
func (e *Engine) Assign(ctx context.Context, groupingID string, clinicianIDs []string) (AssignResult, error) {
	var res AssignResult
	err := e.instrument(ctx, "bulk_assign", groupingID, func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.lookupGrouping(groupingID); !ok || groupingID == "" {
			return ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
		}
		for _, id := range clinicianIDs {
			if _, ok := e.lookupClinician(id); !ok || id == "" {
				return ErrInvalidTarget{Entity: domain.EntityClinician, ID: id}
			}
		}
		res.Added = []string{}
		for _, id := range clinicianIDs {
			if owner, ok := e.assignments.GroupingOf(id); ok && owner != groupingID {
				if res.AssignedElsewhere == nil {
					res.AssignedElsewhere = make(map[string]string)
				}
				res.AssignedElsewhere[id] = owner
				continue
			}
			if e.assignments.Assign(groupingID, id) {
				res.Added = append(res.Added, id)
			} else {
				res.AlreadyMember = append(res.AlreadyMember, id)
			}
		}
		e.mutations += len(res.Added)
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}
	return res, nil
}

// BulkAssign assigns the clinicians to the MVP and returns how many were newly
// added.
func (e *Engine) BulkAssign(ctx context.Context, groupingID string, clinicianIDs []string) (int, error) {
	res, err := e.Assign(ctx, groupingID, clinicianIDs)
	if err != nil {
		return 0, err
	}
	return len(res.Added), nil
}

// ToggleMeasure adds or removes a measure from the MVP's selection, bounded by
// the MVP's required measure count. A full selection yields ToggleAtCapacity
// with no change. Removing a selected measure succeeds even when the measure
// row has since disappeared from the source.
func (e *Engine) ToggleMeasure(ctx context.Context, groupingID, measureID string) (ToggleOutcome, error) {
	var outcome ToggleOutcome
	err := e.instrument(ctx, "toggle_measure", groupingID+"/"+measureID, func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		g, ok := e.lookupGrouping(groupingID)
		if !ok || groupingID == "" {
			return ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
		}
		if _, known := e.lookupMeasure(measureID); !known && !e.selections.IsSelected(groupingID, measureID) {
			return ErrInvalidTarget{Entity: domain.EntityMeasure, ID: measureID}
		}
		outcome = e.selections.Toggle(groupingID, measureID, g.RequiredMeasures, e.lookupMeasure)
		if outcome.Applied() {
			e.mutations++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// Stats summarises the planning state.
type Stats struct {
	TotalActiveClinicians int `json:"total_active_clinicians"`
	TotalAssigned         int `json:"total_assigned"`
	ActiveGroupingCount   int `json:"active_mvp_count"`
}

// Stats counts active clinicians, assignment list entries and MVP ids with
// members.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats()
}

func (e *Engine) stats() Stats {
	active := 0
	for _, c := range e.clinicians {
		if c.Active {
			active++
		}
	}
	return Stats{
		TotalActiveClinicians: active,
		TotalAssigned:         e.assignments.Total(),
		ActiveGroupingCount:   e.assignments.ActiveCount(),
	}
}

// Dirty reports whether assignments or selections changed since the last load.
func (e *Engine) Dirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mutations > 0
}

// LoadedAt returns when data was last loaded.
func (e *Engine) LoadedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadedAt
}

// Records returns a copy of the raw collection.
func (e *Engine) Records(name domain.CollectionName) []domain.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.CloneRecords(e.records.Get(name))
}

func (e *Engine) instrument(ctx context.Context, op, target string, fn func() error) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, op)
	defer func() {
		span.End(err)
		e.metrics.Observe(ctx, op, err == nil, time.Since(start))
		entry := AuditEntry{
			Operation:  op,
			Status:     AuditStatusSuccess,
			Actor:      ActorFrom(ctx),
			Target:     target,
			OccurredAt: e.nowFn(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		e.audit.Record(ctx, entry)
	}()
	if err = fn(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
