package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpplanner/internal/core"
	"mvpplanner/pkg/domain"
)

func reportHeader(org string) string {
	return "MVP STRATEGIC PLAN - " + org + "\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"Generated: 10/19/2026\n\n"
}

func TestBuildReportWithNoActiveGroupings(t *testing.T) {
	engine := newLoadedEngine(t, domain.Snapshot{
		domain.CollectionMVPs: {{"mvp_id": "G1", "mvp_name": "Idle"}},
	})
	if diff := cmp.Diff(reportHeader(core.DefaultOrganization), engine.BuildReport()); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildReportLayout(t *testing.T) {
	engine := newLoadedEngine(t, fixtureSnapshot())
	ctx := context.Background()
	_, err := engine.BulkAssign(ctx, "G1", []string{"5", "1"})
	require.NoError(t, err)
	_, err = engine.ToggleMeasure(ctx, "G1", "M1")
	require.NoError(t, err)

	heart := "Advancing Care for Heart Disease"
	chronic := "Optimal Care for Chronic Conditions"
	want := reportHeader("Converse Health") +
		"\n" + heart + "\n" + strings.Repeat("-", len(heart)) + "\n" +
		"Clinicians: 2\n\n" +
		"Selected Measures:\n" +
		"  - M1: Controlling High Blood Pressure\n" +
		"\nAssigned Clinicians:\n" +
		"  - Barbara Liskov (Family Medicine)\n" +
		"  - Lovelace, Ada (Cardiology)\n" +
		"\n" +
		"\n" + chronic + "\n" + strings.Repeat("-", len(chronic)) + "\n" +
		"Clinicians: 1\n\n" +
		"Selected Measures:\n" +
		"  - M2: Statin Therapy\n" +
		"    ACTION: Implement measure\n" +
		"\nAssigned Clinicians:\n" +
		"  - Turing, Alan (Family Medicine)\n" +
		"\n"

	if diff := cmp.Diff(want, engine.BuildReport()); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildReportOmitsEmptyMeasureBlockAndUnknownMembers(t *testing.T) {
	snap := fixtureSnapshot()
	snap[domain.CollectionSelections] = nil
	snap[domain.CollectionAssignments] = []domain.Record{
		{"mvp_id": "G2", "clinician_id": "4", "is_active": "Y"},
		{"mvp_id": "G2", "clinician_id": "999", "is_active": "Y"},
	}
	engine := newLoadedEngine(t, snap)

	report := engine.BuildReport()
	assert.NotContains(t, report, "Selected Measures:")
	assert.Contains(t, report, "Clinicians: 2\n")
	assert.Contains(t, report, "  - Dijkstra, Edsger (N/A)\n")
	assert.NotContains(t, report, "999")
}

func TestBuildReportIsDeterministic(t *testing.T) {
	engine := newLoadedEngine(t, fixtureSnapshot())
	_, err := engine.BulkAssign(context.Background(), "G1", []string{"1", "2"})
	require.NoError(t, err)
	first := engine.BuildReport()
	for i := 0; i < 5; i++ {
		require.Equal(t, first, engine.BuildReport())
	}
	assert.Equal(t, first, core.RenderReport(engine.Plan()))
}

func TestRenderReportUsesRuneCountForUnderline(t *testing.T) {
	plan := core.Plan{
		Organization: "Clinique",
		GeneratedAt:  fixedNow,
		Groupings: []core.PlannedGrouping{{
			Grouping: domain.Grouping{ID: "G", Name: "Santé"},
		}},
	}
	assert.Contains(t, core.RenderReport(plan), "\nSanté\n-----\nClinicians: 0\n")
}

func TestPlanSnapshot(t *testing.T) {
	engine := newLoadedEngine(t, fixtureSnapshot())
	plan := engine.Plan()

	assert.Equal(t, "Converse Health", plan.Organization)
	assert.Equal(t, fixedNow, plan.GeneratedAt)
	require.Len(t, plan.Groupings, 1)
	g := plan.Groupings[0]
	assert.Equal(t, "G2", g.Grouping.ID)
	require.Len(t, g.Measures, 1)
	assert.Equal(t, core.MeasureConfig{CollectionType: "MIPS CQM", Difficulty: core.DefaultDifficulty}, g.Measures[0].Config)
	assert.Equal(t, []string{"3"}, ids(g.Clinicians))
}

func TestPlanFallsBackToConfiguredOrganization(t *testing.T) {
	snap := fixtureSnapshot()
	delete(snap, domain.CollectionConfig)
	engine := newLoadedEngine(t, snap, core.WithOrganization("St. Elsewhere"))
	assert.Equal(t, "St. Elsewhere", engine.Plan().Organization)
}
