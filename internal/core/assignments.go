package core

import "mvpplanner/pkg/domain"

// AssignmentIndex maps an MVP id to the ordered clinician ids assigned to it.
type AssignmentIndex struct {
	members map[string][]string
}

// NewAssignmentIndex returns an empty index.
func NewAssignmentIndex() *AssignmentIndex {
	return &AssignmentIndex{members: make(map[string][]string)}
}

// BuildAssignmentIndex derives the index from assignment rows. Inactive rows
// are ignored; duplicates in the source are kept as-is.
func BuildAssignmentIndex(rows []domain.Record) *AssignmentIndex {
	idx := NewAssignmentIndex()
	for _, row := range rows {
		rec := domain.DecodeAssignment(row)
		if !rec.Active {
			continue
		}
		idx.members[rec.GroupingID] = append(idx.members[rec.GroupingID], rec.ClinicianID)
	}
	return idx
}

// MembersOf returns a copy of the clinician ids assigned to the MVP.
func (x *AssignmentIndex) MembersOf(groupingID string) []string {
	return append([]string(nil), x.members[groupingID]...)
}

// Count returns the number of entries in the MVP's list.
func (x *AssignmentIndex) Count(groupingID string) int {
	return len(x.members[groupingID])
}

// IsAssigned reports whether the clinician appears in any MVP's list.
func (x *AssignmentIndex) IsAssigned(clinicianID string) bool {
	_, ok := x.GroupingOf(clinicianID)
	return ok
}

// GroupingOf returns an MVP whose list holds the clinician. When source data
// assigns a clinician twice, the lexically smallest MVP id wins so the answer is stable.
func (x *AssignmentIndex) GroupingOf(clinicianID string) (string, bool) {
	found := ""
	ok := false
	for groupingID, ids := range x.members {
		if !contains(ids, clinicianID) {
			continue
		}
		if !ok || groupingID < found {
			found = groupingID
			ok = true
		}
	}
	return found, ok
}

// AssignedIDs returns the set of all assigned clinician ids.
func (x *AssignmentIndex) AssignedIDs() map[string]struct{} {
	out := make(map[string]struct{})
	for _, ids := range x.members {
		for _, id := range ids {
			out[id] = struct{}{}
		}
	}
	return out
}

// Assign appends the clinician to the MVP unless already present there.
// It reports whether an insertion happened.
func (x *AssignmentIndex) Assign(groupingID, clinicianID string) bool {
	if contains(x.members[groupingID], clinicianID) {
		return false
	}
	x.members[groupingID] = append(x.members[groupingID], clinicianID)
	return true
}

// Total is the sum of all list lengths. A clinician listed under two MVPs
// counts twice.
func (x *AssignmentIndex) Total() int {
	n := 0
	for _, ids := range x.members {
		n += len(ids)
	}
	return n
}

// ActiveCount returns how many MVP ids have at least one member.
func (x *AssignmentIndex) ActiveCount() int {
	n := 0
	for _, ids := range x.members {
		if len(ids) > 0 {
			n++
		}
	}
	return n
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
