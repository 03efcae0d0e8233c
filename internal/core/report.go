package core

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mvpplanner/pkg/domain"
)

// ReportDateLayout formats the generation date line of text reports.
const ReportDateLayout = "01/02/2006"

// PlannedMeasure is a selected measure resolved against the measure collection.
type PlannedMeasure struct {
	Measure domain.Measure `json:"measure"`
	Config  MeasureConfig  `json:"config"`
}

// PlannedGrouping is an active MVP with its resolved selections and members.
type PlannedGrouping struct {
	Grouping   domain.Grouping    `json:"mvp"`
	Measures   []PlannedMeasure   `json:"measures"`
	Clinicians []domain.Clinician `json:"clinicians"`
	// MemberCount counts assignment entries, including ids that no longer
	// resolve to a clinician row.
	MemberCount int `json:"member_count"`
}

// Plan is a point-in-time view of the planning state used by every export.
type Plan struct {
	Organization string            `json:"organization"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Stats        Stats             `json:"stats"`
	Groupings    []PlannedGrouping `json:"mvps"`
}

// Plan snapshots the active MVPs, in source order, with their selected
// measures and assigned clinicians. Unresolvable measure or clinician ids are
// left out of the lists.
func (e *Engine) Plan() Plan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	plan := Plan{
		Organization: e.organizationName(),
		GeneratedAt:  e.nowFn(),
		Stats:        e.stats(),
		Groupings:    []PlannedGrouping{},
	}
	for _, g := range e.activeGroupings() {
		pg := PlannedGrouping{
			Grouping:    g,
			Measures:    []PlannedMeasure{},
			Clinicians:  []domain.Clinician{},
			MemberCount: e.assignments.Count(g.ID),
		}
		for _, id := range e.selections.SelectedOf(g.ID) {
			m, ok := e.lookupMeasure(id)
			if !ok {
				continue
			}
			cfg, _ := e.selections.ConfigOf(g.ID, id)
			pg.Measures = append(pg.Measures, PlannedMeasure{Measure: m, Config: cfg})
		}
		for _, id := range e.assignments.MembersOf(g.ID) {
			if c, ok := e.lookupClinician(id); ok {
				pg.Clinicians = append(pg.Clinicians, c)
			}
		}
		plan.Groupings = append(plan.Groupings, pg)
	}
	return plan
}

// BuildReport renders the current plan as plain text.
func (e *Engine) BuildReport() string {
	return RenderReport(e.Plan())
}

// RenderReport renders a plan as the plain-text strategic plan document. The
// output depends only on the plan, so equal plans render identically.
func RenderReport(plan Plan) string {
	var b strings.Builder
	b.WriteString("MVP STRATEGIC PLAN - ")
	b.WriteString(plan.Organization)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")
	b.WriteString("Generated: ")
	b.WriteString(plan.GeneratedAt.Format(ReportDateLayout))
	b.WriteString("\n\n")

	for _, pg := range plan.Groupings {
		name := pg.Grouping.Name
		b.WriteString("\n" + name + "\n")
		b.WriteString(strings.Repeat("-", utf8.RuneCountInString(name)) + "\n")
		b.WriteString("Clinicians: " + strconv.Itoa(pg.MemberCount) + "\n\n")

		if len(pg.Measures) > 0 {
			b.WriteString("Selected Measures:\n")
			for _, pm := range pg.Measures {
				b.WriteString("  - " + pm.Measure.ID + ": " + pm.Measure.Name + "\n")
				if !pm.Measure.Activated {
					b.WriteString("    ACTION: Implement measure\n")
				}
			}
		}

		b.WriteString("\nAssigned Clinicians:\n")
		for _, c := range pg.Clinicians {
			b.WriteString("  - " + c.DisplayName() + " (" + c.SpecialtyOr("N/A") + ")\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// organizationName prefers the organization_name setting of the config
// collection. Must be called with the lock held.
func (e *Engine) organizationName() string {
	for _, row := range e.records.Get(domain.CollectionConfig) {
		s := domain.DecodeSetting(row)
		if s.Key == "organization_name" && s.Value != "" {
			return s.Value
		}
	}
	return e.organization
}
