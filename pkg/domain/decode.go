package domain

// Column names used by the source spreadsheet.
const (
	colClinicianID     = "clinician_id"
	colFirstName       = "first_name"
	colLastName        = "last_name"
	colFullName        = "full_name"
	colSpecialty       = "specialty"
	colNPI             = "npi"
	colIsActive        = "is_active"
	colMVPID           = "mvp_id"
	colMVPName         = "mvp_name"
	colEligible        = "eligible_specialties"
	colRequired        = "required_measures"
	colAvailable       = "available_measures"
	colMeasureID       = "measure_id"
	colMeasureName     = "measure_name"
	colCollectionTypes = "collection_types"
	colCollectionType  = "collection_type"
	colIsActivated     = "is_activated"
	colDifficulty      = "implementation_difficulty"
	colImplStatus      = "implementation_status"
)

// DecodeClinician maps a clinicians row.
func DecodeClinician(r Record) Clinician {
	return Clinician{
		ID:        r.Get(colClinicianID),
		FirstName: r.Get(colFirstName),
		LastName:  r.Get(colLastName),
		FullName:  r.Get(colFullName),
		Specialty: r.Get(colSpecialty),
		NPI:       r.Get(colNPI),
		Active:    r.Flag(colIsActive),
	}
}

// DecodeGrouping maps an mvps row. A missing, malformed, negative or zero
// required_measures value falls back to DefaultRequiredMeasures.
func DecodeGrouping(r Record) Grouping {
	required := r.Int(colRequired, DefaultRequiredMeasures)
	if required == 0 {
		required = DefaultRequiredMeasures
	}
	return Grouping{
		ID:                  r.Get(colMVPID),
		Name:                r.Get(colMVPName),
		EligibleSpecialties: r.Get(colEligible),
		RequiredMeasures:    required,
		AvailableMeasures:   r.List(colAvailable),
	}
}

// DecodeMeasure maps a measures row.
func DecodeMeasure(r Record) Measure {
	return Measure{
		ID:                       r.Get(colMeasureID),
		Name:                     r.Get(colMeasureName),
		CollectionTypes:          r.List(colCollectionTypes),
		PrimaryCollectionType:    FirstToken(r.Get(colCollectionTypes)),
		Activated:                r.Flag(colIsActivated),
		ImplementationDifficulty: r.Get(colDifficulty),
	}
}

// DecodeAssignment maps an assignments row.
func DecodeAssignment(r Record) AssignmentRecord {
	return AssignmentRecord{
		GroupingID:  r.Get(colMVPID),
		ClinicianID: r.Get(colClinicianID),
		Active:      r.Flag(colIsActive),
	}
}

// DecodeSelection maps a selections row.
func DecodeSelection(r Record) SelectionRecord {
	return SelectionRecord{
		GroupingID:           r.Get(colMVPID),
		MeasureID:            r.Get(colMeasureID),
		CollectionType:       r.Get(colCollectionType),
		ImplementationStatus: r.Get(colImplStatus),
	}
}

// DecodeBenchmark maps a benchmarks row, keeping the raw row for columns
// the planner does not interpret.
func DecodeBenchmark(r Record) Benchmark {
	return Benchmark{
		MeasureID:      r.Get(colMeasureID),
		CollectionType: r.Get(colCollectionType),
		Decile:         r.Get("decile"),
		Value:          r.Get("benchmark"),
		Raw:            r.Clone(),
	}
}

// DecodePerformance maps a performance row.
func DecodePerformance(r Record) PerformanceRecord {
	return PerformanceRecord{
		ClinicianID: r.Get(colClinicianID),
		MeasureID:   r.Get(colMeasureID),
		Period:      r.Get("period"),
		Rate:        r.Get("performance_rate"),
		Raw:         r.Clone(),
	}
}

// DecodeWorkItem maps a work row.
func DecodeWorkItem(r Record) WorkItem {
	return WorkItem{
		GroupingID: r.Get(colMVPID),
		MeasureID:  r.Get(colMeasureID),
		Task:       r.Get("task"),
		Owner:      r.Get("owner"),
		Status:     r.Get("status"),
		DueDate:    r.Get("due_date"),
	}
}

// DecodeSetting maps a config row.
func DecodeSetting(r Record) Setting {
	return Setting{Key: r.Get("setting"), Value: r.Get("value")}
}
