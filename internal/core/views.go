package core

import (
	"sort"
	"strings"

	"mvpplanner/pkg/domain"
)

// SpecialtyCount is one entry of the specialty filter.
type SpecialtyCount struct {
	Specialty string `json:"specialty"`
	Count     int    `json:"count"`
}

// Specialties lists distinct non-empty specialties in ascending order with the
// number of clinicians (active or not) carrying each.
func (e *Engine) Specialties() []SpecialtyCount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range e.clinicians {
		if c.Specialty != "" {
			counts[c.Specialty]++
		}
	}
	out := make([]SpecialtyCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, SpecialtyCount{Specialty: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Specialty < out[j].Specialty })
	return out
}

// FilterUnassigned narrows the unassigned pool. An empty specialty or "all"
// matches every clinician; query matches case-insensitively against the
// display name, specialty and NPI.
func (e *Engine) FilterUnassigned(specialty, query string) []domain.Clinician {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Clinician, 0)
	for _, c := range e.unassigned() {
		if specialty != "" && specialty != "all" && c.Specialty != specialty {
			continue
		}
		if q != "" {
			haystack := strings.ToLower(c.DisplayName() + " " + c.Specialty + " " + c.NPI)
			if !strings.Contains(haystack, q) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// GroupingSummary is the card view of an active MVP.
type GroupingSummary struct {
	ID                  string   `json:"mvp_id"`
	Name                string   `json:"mvp_name"`
	EligibleSpecialties string   `json:"eligible_specialties"`
	AssignedCount       int      `json:"assigned_count"`
	SelectedCount       int      `json:"selected_count"`
	RequiredCount       int      `json:"required_count"`
	Preview             []string `json:"preview"`
	More                int      `json:"more"`
}

const previewSize = 3

// GroupingSummaries returns a summary per active MVP, in source order.
func (e *Engine) GroupingSummaries() []GroupingSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	groupings := e.activeGroupings()
	out := make([]GroupingSummary, 0, len(groupings))
	for _, g := range groupings {
		out = append(out, e.summarize(g))
	}
	return out
}

func (e *Engine) summarize(g domain.Grouping) GroupingSummary {
	members := e.assignments.MembersOf(g.ID)
	s := GroupingSummary{
		ID:                  g.ID,
		Name:                g.Name,
		EligibleSpecialties: g.EligibleSpecialties,
		AssignedCount:       len(members),
		SelectedCount:       e.selections.Count(g.ID),
		RequiredCount:       g.RequiredMeasures,
		Preview:             []string{},
	}
	if s.EligibleSpecialties == "" {
		s.EligibleSpecialties = "All specialties"
	}
	for i, id := range members {
		if i == previewSize {
			s.More = len(members) - previewSize
			break
		}
		name := "Unknown"
		if c, ok := e.lookupClinician(id); ok {
			name = c.LastName
		}
		s.Preview = append(s.Preview, name)
	}
	return s
}

// MeasureOption describes one available measure of an MVP in the picker.
type MeasureOption struct {
	ID              string `json:"measure_id"`
	Name            string `json:"measure_name"`
	CollectionTypes string `json:"collection_types"`
	Activated       bool   `json:"is_activated"`
	Selected        bool   `json:"selected"`
	Disabled        bool   `json:"disabled"`
}

// GroupingDetail is the detail view of one MVP.
type GroupingDetail struct {
	Summary    GroupingSummary    `json:"summary"`
	Options    []MeasureOption    `json:"measure_options"`
	Clinicians []domain.Clinician `json:"clinicians"`
	WorkPlan   []WorkPlanItem     `json:"work_plan"`
}

// WorkPlanItem is a selected measure and whether it still needs implementing.
type WorkPlanItem struct {
	MeasureID   string            `json:"measure_id"`
	MeasureName string            `json:"measure_name"`
	Activated   bool              `json:"is_activated"`
	Config      MeasureConfig     `json:"config"`
	Tasks       []domain.WorkItem `json:"tasks,omitempty"`
}

// MeasureOptions lists the MVP's available measures that resolve to a
// measure row. A measure is disabled when it is not selected and the
// selection is full.
func (e *Engine) MeasureOptions(groupingID string) ([]MeasureOption, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.lookupGrouping(groupingID)
	if !ok {
		return nil, ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
	}
	return e.measureOptions(g), nil
}

func (e *Engine) measureOptions(g domain.Grouping) []MeasureOption {
	full := e.selections.Count(g.ID) >= g.RequiredMeasures
	out := make([]MeasureOption, 0, len(g.AvailableMeasures))
	for _, id := range g.AvailableMeasures {
		m, ok := e.lookupMeasure(id)
		if !ok {
			continue
		}
		selected := e.selections.IsSelected(g.ID, id)
		types := strings.Join(m.CollectionTypes, ", ")
		if types == "" {
			types = "Not specified"
		}
		out = append(out, MeasureOption{
			ID:              id,
			Name:            m.Name,
			CollectionTypes: types,
			Activated:       m.Activated,
			Selected:        selected,
			Disabled:        !selected && full,
		})
	}
	return out
}

// AssignedClinicians resolves the MVP's members in assignment order,
// skipping ids with no clinician row.
func (e *Engine) AssignedClinicians(groupingID string) ([]domain.Clinician, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.lookupGrouping(groupingID); !ok {
		return nil, ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
	}
	return e.assignedClinicians(groupingID), nil
}

func (e *Engine) assignedClinicians(groupingID string) []domain.Clinician {
	out := make([]domain.Clinician, 0)
	for _, id := range e.assignments.MembersOf(groupingID) {
		if c, ok := e.lookupClinician(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// WorkPlan lists the MVP's selected measures with their activation state and
// any work rows recorded for them.
func (e *Engine) WorkPlan(groupingID string) ([]WorkPlanItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.lookupGrouping(groupingID); !ok {
		return nil, ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
	}
	return e.workPlan(groupingID), nil
}

func (e *Engine) workPlan(groupingID string) []WorkPlanItem {
	tasks := e.workItems(groupingID)
	out := make([]WorkPlanItem, 0)
	for _, id := range e.selections.SelectedOf(groupingID) {
		m, ok := e.lookupMeasure(id)
		if !ok {
			continue
		}
		cfg, _ := e.selections.ConfigOf(groupingID, id)
		item := WorkPlanItem{MeasureID: id, MeasureName: m.Name, Activated: m.Activated, Config: cfg}
		for _, t := range tasks {
			if t.MeasureID == id {
				item.Tasks = append(item.Tasks, t)
			}
		}
		out = append(out, item)
	}
	return out
}

// Detail assembles the full detail view of an MVP.
func (e *Engine) Detail(groupingID string) (GroupingDetail, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.lookupGrouping(groupingID)
	if !ok {
		return GroupingDetail{}, ErrInvalidTarget{Entity: domain.EntityGrouping, ID: groupingID}
	}
	return GroupingDetail{
		Summary:    e.summarize(g),
		Options:    e.measureOptions(g),
		Clinicians: e.assignedClinicians(groupingID),
		WorkPlan:   e.workPlan(groupingID),
	}, nil
}

// Groupings returns every MVP in source order.
func (e *Engine) Groupings() []domain.Grouping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Grouping(nil), e.groupings...)
}

// Clinician looks up a clinician by id.
func (e *Engine) Clinician(id string) (domain.Clinician, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookupClinician(id)
}

// Grouping looks up an MVP by id.
func (e *Engine) Grouping(id string) (domain.Grouping, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookupGrouping(id)
}

// Measure looks up a measure by id.
func (e *Engine) Measure(id string) (domain.Measure, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookupMeasure(id)
}

// BenchmarksFor returns the benchmark rows of a measure in source order.
func (e *Engine) BenchmarksFor(measureID string) []domain.Benchmark {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Benchmark, 0)
	for _, row := range e.records.Get(domain.CollectionBenchmarks) {
		if b := domain.DecodeBenchmark(row); b.MeasureID == measureID {
			out = append(out, b)
		}
	}
	return out
}

// PerformanceFor returns the performance rows of a clinician in source order.
func (e *Engine) PerformanceFor(clinicianID string) []domain.PerformanceRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.PerformanceRecord, 0)
	for _, row := range e.records.Get(domain.CollectionPerformance) {
		if p := domain.DecodePerformance(row); p.ClinicianID == clinicianID {
			out = append(out, p)
		}
	}
	return out
}

// WorkItemsFor returns the work rows recorded for an MVP.
func (e *Engine) WorkItemsFor(groupingID string) []domain.WorkItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workItems(groupingID)
}

func (e *Engine) workItems(groupingID string) []domain.WorkItem {
	out := make([]domain.WorkItem, 0)
	for _, row := range e.records.Get(domain.CollectionWork) {
		if w := domain.DecodeWorkItem(row); w.GroupingID == groupingID {
			out = append(out, w)
		}
	}
	return out
}

// Setting returns the value of a config row by key.
func (e *Engine) Setting(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, row := range e.records.Get(domain.CollectionConfig) {
		if s := domain.DecodeSetting(row); s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}
