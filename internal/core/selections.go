package core

import "mvpplanner/pkg/domain"

// Fallbacks applied when a measure does not declare its own values.
const (
	DefaultCollectionType = "MIPS CQM"
	DefaultDifficulty     = "Medium"
)

// MeasureConfig is the per-MVP configuration derived when a measure is selected.
type MeasureConfig struct {
	CollectionType string `json:"collection_type"`
	Difficulty     string `json:"difficulty"`
}

// ToggleOutcome describes what a toggle did.
type ToggleOutcome string

const (
	// ToggleAdded means the measure was appended to the selection.
	ToggleAdded ToggleOutcome = "added"
	// ToggleRemoved means the measure was removed along with its config.
	ToggleRemoved ToggleOutcome = "removed"
	// ToggleAtCapacity means the selection was full and nothing changed.
	ToggleAtCapacity ToggleOutcome = "at_capacity"
)

// Applied reports whether the toggle changed the selection.
func (o ToggleOutcome) Applied() bool {
	return o == ToggleAdded || o == ToggleRemoved
}

// MeasureLookup resolves a measure by id.
type MeasureLookup func(measureID string) (domain.Measure, bool)

type selection struct {
	measures []string
	configs  map[string]MeasureConfig
}

// SelectionIndex maps an MVP id to its ordered selected measures and their
// derived configuration. A measure id appears at most once per MVP and has a
// config entry exactly while it is selected.
type SelectionIndex struct {
	byGrouping map[string]*selection
}

// NewSelectionIndex returns an empty index.
func NewSelectionIndex() *SelectionIndex {
	return &SelectionIndex{byGrouping: make(map[string]*selection)}
}

// SeedRejection records a selection row that could not be applied during a build.
type SeedRejection struct {
	GroupingID string
	MeasureID  string
	Reason     string
}

// BuildSelectionIndex derives the index from selection rows. capacity returns
// the required measure count for an MVP. Rows that repeat a measure or exceed
// the MVP's capacity are skipped and reported.
func BuildSelectionIndex(rows []domain.Record, capacity func(groupingID string) int, lookup MeasureLookup) (*SelectionIndex, []SeedRejection) {
	idx := NewSelectionIndex()
	var rejected []SeedRejection
	for _, row := range rows {
		rec := domain.DecodeSelection(row)
		sel := idx.entry(rec.GroupingID)
		switch {
		case contains(sel.measures, rec.MeasureID):
			rejected = append(rejected, SeedRejection{GroupingID: rec.GroupingID, MeasureID: rec.MeasureID, Reason: "duplicate"})
			continue
		case len(sel.measures) >= capacity(rec.GroupingID):
			rejected = append(rejected, SeedRejection{GroupingID: rec.GroupingID, MeasureID: rec.MeasureID, Reason: "at_capacity"})
			continue
		}
		cfg := deriveConfig(rec.MeasureID, lookup)
		if rec.CollectionType != "" {
			cfg.CollectionType = rec.CollectionType
		}
		if rec.ImplementationStatus != "" {
			cfg.Difficulty = rec.ImplementationStatus
		}
		sel.measures = append(sel.measures, rec.MeasureID)
		sel.configs[rec.MeasureID] = cfg
	}
	return idx, rejected
}

func (x *SelectionIndex) entry(groupingID string) *selection {
	sel, ok := x.byGrouping[groupingID]
	if !ok {
		sel = &selection{configs: make(map[string]MeasureConfig)}
		x.byGrouping[groupingID] = sel
	}
	return sel
}

// SelectedOf returns a copy of the MVP's selected measure ids.
func (x *SelectionIndex) SelectedOf(groupingID string) []string {
	sel, ok := x.byGrouping[groupingID]
	if !ok {
		return []string{}
	}
	return append([]string{}, sel.measures...)
}

// Count returns the number of selected measures for the MVP.
func (x *SelectionIndex) Count(groupingID string) int {
	if sel, ok := x.byGrouping[groupingID]; ok {
		return len(sel.measures)
	}
	return 0
}

// IsSelected reports whether the measure is selected for the MVP.
func (x *SelectionIndex) IsSelected(groupingID, measureID string) bool {
	sel, ok := x.byGrouping[groupingID]
	return ok && contains(sel.measures, measureID)
}

// ConfigOf returns the measure's config for the MVP when it is selected.
func (x *SelectionIndex) ConfigOf(groupingID, measureID string) (MeasureConfig, bool) {
	sel, ok := x.byGrouping[groupingID]
	if !ok {
		return MeasureConfig{}, false
	}
	cfg, ok := sel.configs[measureID]
	return cfg, ok
}

// Toggle removes the measure if selected; otherwise appends it when the MVP has
// fewer than required selections. A full selection is left unchanged.
func (x *SelectionIndex) Toggle(groupingID, measureID string, required int, lookup MeasureLookup) ToggleOutcome {
	sel := x.entry(groupingID)
	for i, id := range sel.measures {
		if id == measureID {
			sel.measures = append(sel.measures[:i:i], sel.measures[i+1:]...)
			delete(sel.configs, measureID)
			return ToggleRemoved
		}
	}
	if len(sel.measures) >= required {
		return ToggleAtCapacity
	}
	sel.measures = append(sel.measures, measureID)
	sel.configs[measureID] = deriveConfig(measureID, lookup)
	return ToggleAdded
}

func deriveConfig(measureID string, lookup MeasureLookup) MeasureConfig {
	cfg := MeasureConfig{CollectionType: DefaultCollectionType, Difficulty: DefaultDifficulty}
	if lookup == nil {
		return cfg
	}
	m, ok := lookup(measureID)
	if !ok {
		return cfg
	}
	if m.PrimaryCollectionType != "" {
		cfg.CollectionType = m.PrimaryCollectionType
	}
	if m.ImplementationDifficulty != "" {
		cfg.Difficulty = m.ImplementationDifficulty
	}
	return cfg
}
