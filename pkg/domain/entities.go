// Package domain defines the planning entities, raw record shapes, and the
// decoders that turn spreadsheet rows into typed values used by mvpplanner.
package domain

// EntityType identifies the kind of entity an operation refers to.
type EntityType string

// Entity identifiers used in errors and audit entries.
const (
	EntityClinician EntityType = "clinician"
	EntityGrouping  EntityType = "mvp"
	EntityMeasure   EntityType = "measure"
)

// DefaultRequiredMeasures is used when a grouping does not declare a usable
// required measure count.
const DefaultRequiredMeasures = 4

// Clinician is an individual eligible for assignment to an MVP.
type Clinician struct {
	ID        string `json:"clinician_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	NPI       string `json:"npi,omitempty"`
	Active    bool   `json:"is_active"`
}

// DisplayName returns the full name when present, otherwise "Last, First".
func (c Clinician) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	return c.LastName + ", " + c.FirstName
}

// SpecialtyOr returns the specialty, or fallback when the clinician has none.
func (c Clinician) SpecialtyOr(fallback string) string {
	if c.Specialty == "" {
		return fallback
	}
	return c.Specialty
}

// Grouping is an MVP (MIPS Value Pathway): a bundle of measures a set of
// clinicians report on together.
type Grouping struct {
	ID                  string   `json:"mvp_id"`
	Name                string   `json:"mvp_name"`
	EligibleSpecialties string   `json:"eligible_specialties,omitempty"`
	RequiredMeasures    int      `json:"required_measures"`
	AvailableMeasures   []string `json:"available_measures"`
}

// Measure is a single quality measure that can be selected for an MVP.
type Measure struct {
	ID                       string   `json:"measure_id"`
	Name                     string   `json:"measure_name"`
	CollectionTypes          []string `json:"collection_types,omitempty"`
	PrimaryCollectionType    string   `json:"-"`
	Activated                bool     `json:"is_activated"`
	ImplementationDifficulty string   `json:"implementation_difficulty,omitempty"`
}

// AssignmentRecord links a clinician to an MVP.
type AssignmentRecord struct {
	GroupingID  string `json:"mvp_id"`
	ClinicianID string `json:"clinician_id"`
	Active      bool   `json:"is_active"`
}

// SelectionRecord seeds a measure selection for an MVP.
type SelectionRecord struct {
	GroupingID           string `json:"mvp_id"`
	MeasureID            string `json:"measure_id"`
	CollectionType       string `json:"collection_type,omitempty"`
	ImplementationStatus string `json:"implementation_status,omitempty"`
}

// Benchmark holds a published benchmark row for a measure.
type Benchmark struct {
	MeasureID      string `json:"measure_id"`
	CollectionType string `json:"collection_type,omitempty"`
	Decile         string `json:"decile,omitempty"`
	Value          string `json:"value,omitempty"`
	Raw            Record `json:"raw,omitempty"`
}

// PerformanceRecord is a historical performance row for a clinician and measure.
type PerformanceRecord struct {
	ClinicianID string `json:"clinician_id"`
	MeasureID   string `json:"measure_id"`
	Period      string `json:"period,omitempty"`
	Rate        string `json:"performance_rate,omitempty"`
	Raw         Record `json:"raw,omitempty"`
}

// WorkItem is a task in an MVP's implementation work plan.
type WorkItem struct {
	GroupingID string `json:"mvp_id"`
	MeasureID  string `json:"measure_id,omitempty"`
	Task       string `json:"task,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Status     string `json:"status,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
}

// Setting is a key/value row from the config collection.
type Setting struct {
	Key   string `json:"setting"`
	Value string `json:"value"`
}
