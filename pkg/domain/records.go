package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a flat spreadsheet row keyed by column header.
type Record map[string]string

// Get returns the trimmed value of a column, or "" when absent.
func (r Record) Get(key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[key])
}

// Flag reports whether the column holds the literal "Y".
func (r Record) Flag(key string) bool {
	return r.Get(key) == "Y"
}

// Int parses the column as a non-negative integer, returning fallback when the
// value is empty, malformed or negative.
func (r Record) Int(key string, fallback int) int {
	raw := r.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// List splits a comma-separated column into trimmed, non-empty tokens.
func (r Record) List(key string) []string {
	return SplitList(r.Get(key))
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SplitList splits a comma-separated value into trimmed, non-empty tokens.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstToken returns the trimmed first comma-separated token of raw, which is
// empty when that token is blank.
func FirstToken(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}

// CloneRecords deep-copies a record slice.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// CollectionName identifies one of the nine source collections.
type CollectionName string

// Source collections, in the order the planner loads them.
const (
	CollectionClinicians  CollectionName = "clinicians"
	CollectionMeasures    CollectionName = "measures"
	CollectionMVPs        CollectionName = "mvps"
	CollectionBenchmarks  CollectionName = "benchmarks"
	CollectionAssignments CollectionName = "assignments"
	CollectionSelections  CollectionName = "selections"
	CollectionPerformance CollectionName = "performance"
	CollectionWork        CollectionName = "work"
	CollectionConfig      CollectionName = "config"
)

// Collections lists every collection name in load order.
func Collections() []CollectionName {
	return []CollectionName{
		CollectionClinicians,
		CollectionMeasures,
		CollectionMVPs,
		CollectionBenchmarks,
		CollectionAssignments,
		CollectionSelections,
		CollectionPerformance,
		CollectionWork,
		CollectionConfig,
	}
}

// ParseCollectionName validates a collection name.
func ParseCollectionName(raw string) (CollectionName, error) {
	name := CollectionName(strings.TrimSpace(raw))
	for _, known := range Collections() {
		if name == known {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", raw)
}

// Snapshot carries one load cycle's worth of collections.
type Snapshot map[CollectionName][]Record

// Counts reports the number of records per collection.
func (s Snapshot) Counts() map[CollectionName]int {
	out := make(map[CollectionName]int, len(s))
	for name, records := range s {
		out[name] = len(records)
	}
	return out
}
