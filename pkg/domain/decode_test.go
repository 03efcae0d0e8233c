package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccessors(t *testing.T) {
	r := Record{"a": "  x  ", "flag": "Y", "lower": "y", "n": "7", "neg": "-2", "bad": "seven", "list": " M1, ,M2 ,"}

	assert.Equal(t, "x", r.Get("a"))
	assert.Equal(t, "", r.Get("missing"))
	assert.True(t, r.Flag("flag"))
	assert.False(t, r.Flag("lower"))
	assert.Equal(t, 7, r.Int("n", 4))
	assert.Equal(t, 4, r.Int("neg", 4))
	assert.Equal(t, 4, r.Int("bad", 4))
	assert.Equal(t, 4, r.Int("missing", 4))
	assert.Equal(t, []string{"M1", "M2"}, r.List("list"))
	assert.Nil(t, r.List("missing"))
	assert.Equal(t, "", Record(nil).Get("a"))
}

func TestDecodeGroupingRequiredFallback(t *testing.T) {
	cases := map[string]int{"": 4, "0": 4, "-1": 4, "x": 4, "3": 3, " 6 ": 6}
	for raw, want := range cases {
		g := DecodeGrouping(Record{"mvp_id": "G", "required_measures": raw})
		assert.Equal(t, want, g.RequiredMeasures, "required_measures=%q", raw)
	}
}

func TestDecodeClinician(t *testing.T) {
	c := DecodeClinician(Record{
		"clinician_id": " 12 ",
		"first_name":   "Ada",
		"last_name":    "Lovelace",
		"is_active":    "Y",
	})
	assert.Equal(t, Clinician{ID: "12", FirstName: "Ada", LastName: "Lovelace", Active: true}, c)
	assert.Equal(t, "Lovelace, Ada", c.DisplayName())
	assert.Equal(t, "N/A", c.SpecialtyOr("N/A"))

	c.FullName = "Countess Lovelace"
	assert.Equal(t, "Countess Lovelace", c.DisplayName())
}

func TestDecodeMeasureAndSelection(t *testing.T) {
	m := DecodeMeasure(Record{
		"measure_id":                "001",
		"measure_name":              "Diabetes: Hemoglobin A1c",
		"collection_types":          "eCQM,MIPS CQM",
		"is_activated":              "N",
		"implementation_difficulty": "High",
	})
	assert.Equal(t, []string{"eCQM", "MIPS CQM"}, m.CollectionTypes)
	assert.Equal(t, "eCQM", m.PrimaryCollectionType)
	assert.Empty(t, DecodeMeasure(Record{"collection_types": " , eCQM"}).PrimaryCollectionType)
	assert.False(t, m.Activated)
	assert.Equal(t, "High", m.ImplementationDifficulty)

	s := DecodeSelection(Record{"mvp_id": "G1", "measure_id": "001", "implementation_status": "In progress"})
	assert.Equal(t, SelectionRecord{GroupingID: "G1", MeasureID: "001", ImplementationStatus: "In progress"}, s)
}

func TestDecodeAuxiliaryCollections(t *testing.T) {
	raw := Record{"measure_id": "001", "decile": "5", "benchmark": "80.1", "extra": "kept"}
	b := DecodeBenchmark(raw)
	assert.Equal(t, "80.1", b.Value)
	assert.Equal(t, "kept", b.Raw["extra"])
	raw["extra"] = "changed"
	assert.Equal(t, "kept", b.Raw["extra"])

	w := DecodeWorkItem(Record{"mvp_id": "G1", "task": "Train staff", "due_date": "2026-12-01"})
	assert.Equal(t, WorkItem{GroupingID: "G1", Task: "Train staff", DueDate: "2026-12-01"}, w)

	assert.Equal(t, Setting{Key: "organization_name", Value: "Converse"}, DecodeSetting(Record{"setting": "organization_name", "value": "Converse"}))
}

func TestParseCollectionName(t *testing.T) {
	for _, name := range Collections() {
		got, err := ParseCollectionName(" " + string(name) + " ")
		assert.NoError(t, err)
		assert.Equal(t, name, got)
	}
	_, err := ParseCollectionName("patients")
	assert.Error(t, err)
}

func TestSnapshotCounts(t *testing.T) {
	s := Snapshot{CollectionClinicians: {{}, {}}, CollectionMVPs: nil}
	assert.Equal(t, map[CollectionName]int{CollectionClinicians: 2, CollectionMVPs: 0}, s.Counts())
}
