// This file contains the Report type: the bundle of one run's metadata plus
// its observation tables, as produced by the orchestrator or reloaded from
// disk by the report store.
package sweeptypes

import "sort"

// Report owns the observation set of one run. A report exclusively owns its
// tables until persisted; loading a persisted report produces a fresh
// instance with no state shared with the original.
type Report struct {
	Metadata ReportMetadata

	// Location is the directory the report was persisted to or loaded from.
	// Empty until the report store has handled the report.
	Location string

	observations map[string]*Table
}

// NewReport creates an empty report for the given metadata.
func NewReport(metadata ReportMetadata) *Report {
	return &Report{
		Metadata:     metadata,
		observations: make(map[string]*Table),
	}
}

// SetTable attaches (or replaces) the observation table for a measurement.
func (r *Report) SetTable(name string, table *Table) {
	r.observations[name] = table
}

// Table returns the observation table for a measurement.
func (r *Report) Table(name string) (*Table, bool) {
	table, ok := r.observations[name]
	return table, ok
}

// Measurements returns the measurement names present in the report, sorted.
func (r *Report) Measurements() []string {
	names := make([]string, 0, len(r.observations))
	for name := range r.observations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
