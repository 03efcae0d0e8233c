package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mvpplanner/internal/core"
	"mvpplanner/pkg/domain"
)

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

func clinicianRow(id, first, last, specialty, active string) domain.Record {
	return domain.Record{
		"clinician_id": id,
		"first_name":   first,
		"last_name":    last,
		"specialty":    specialty,
		"npi":          "10000000" + id,
		"is_active":    active,
	}
}

func fixtureSnapshot() domain.Snapshot {
	return domain.Snapshot{
		domain.CollectionClinicians: {
			clinicianRow("1", "Ada", "Lovelace", "Cardiology", "Y"),
			clinicianRow("2", "Grace", "Hopper", "Cardiology", "Y"),
			clinicianRow("3", "Alan", "Turing", "Family Medicine", "Y"),
			clinicianRow("4", "Edsger", "Dijkstra", "", "N"),
			{"clinician_id": "5", "full_name": "Barbara Liskov", "specialty": "Family Medicine", "is_active": "Y", "npi": "100000005"},
		},
		domain.CollectionMVPs: {
			{"mvp_id": "G1", "mvp_name": "Advancing Care for Heart Disease", "eligible_specialties": "Cardiology", "required_measures": "2", "available_measures": "M1, M2, M3, M404"},
			{"mvp_id": "G2", "mvp_name": "Optimal Care for Chronic Conditions", "available_measures": "M2,M3"},
			{"mvp_id": "G3", "mvp_name": "Unused", "required_measures": "abc"},
		},
		domain.CollectionMeasures: {
			{"measure_id": "M1", "measure_name": "Controlling High Blood Pressure", "collection_types": "eCQM, MIPS CQM", "is_activated": "Y", "implementation_difficulty": "Low"},
			{"measure_id": "M2", "measure_name": "Statin Therapy", "collection_types": "MIPS CQM"},
			{"measure_id": "M3", "measure_name": "Tobacco Screening", "is_activated": "N"},
		},
		domain.CollectionAssignments: {
			{"mvp_id": "G2", "clinician_id": "3", "is_active": "Y"},
			{"mvp_id": "G1", "clinician_id": "2", "is_active": "N"},
		},
		domain.CollectionSelections: {
			{"mvp_id": "G2", "measure_id": "M2"},
		},
		domain.CollectionConfig: {
			{"setting": "organization_name", "value": "Converse Health"},
		},
		domain.CollectionWork: {
			{"mvp_id": "G2", "measure_id": "M2", "task": "Build registry query", "owner": "IT"},
		},
		domain.CollectionBenchmarks: {
			{"measure_id": "M1", "collection_type": "eCQM", "decile": "3", "benchmark": "71.2"},
		},
		domain.CollectionPerformance: {
			{"clinician_id": "3", "measure_id": "M2", "period": "2025", "performance_rate": "88"},
		},
	}
}

func newLoadedEngine(t *testing.T, snapshot domain.Snapshot, opts ...core.Option) *core.Engine {
	t.Helper()
	opts = append([]core.Option{core.WithClock(func() time.Time { return fixedNow })}, opts...)
	engine := core.NewEngine(opts...)
	_, err := engine.Load(context.Background(), snapshot)
	require.NoError(t, err)
	return engine
}

func ids(clinicians []domain.Clinician) []string {
	out := make([]string, len(clinicians))
	for i, c := range clinicians {
		out[i] = c.ID
	}
	return out
}

// auditLog keeps audit entries in memory.
type auditLog struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (l *auditLog) Record(_ context.Context, entry core.AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *auditLog) Entries() []core.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.AuditEntry(nil), l.entries...)
}
