// Package sweeptypes defines the shared data types and capability interfaces
// for sweep. This file contains the session, run, and report metadata records
// that identify a measurement campaign and its individual runs.
package sweeptypes

import (
	"encoding/json"
	"strconv"
	"time"
)

// TimestampLayout is the canonical rendering of timestamps in flat-map
// projections, report file names, and persisted run metadata. Round-tripping
// through it keeps second precision.
const TimestampLayout = "2006_01_02_15_04_05"

// Session identifies a measurement campaign spanning potentially many runs.
// It is created once per orchestrator lifetime and is immutable afterwards.
type Session struct {
	Name   string            `json:"name"`
	Extras map[string]string `json:"extras,omitempty"`
}

// Flat returns the template/serialization projection of the session.
// Extras are merged at the top level so they are addressable as template
// variables.
func (s Session) Flat() map[string]string {
	meta := map[string]string{
		"session": s.Name,
	}
	for k, v := range s.Extras {
		meta[k] = v
	}
	return meta
}

// Run records the timing of one phase-sequenced execution. Fields are
// populated progressively during orchestration and immutable once the run
// completes; a completed run always satisfies
// StartTime <= TreatmentStart <= TreatmentEnd <= EndTime.
type Run struct {
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	TreatmentStart time.Time      `json:"treatmentStart"`
	TreatmentEnd   time.Time      `json:"treatmentEnd"`
	RunHash        string         `json:"runHash"`
	UserData       map[string]any `json:"userData,omitempty"`
}

// Duration returns the total wall-clock span of the run.
func (r Run) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// TreatmentDuration returns the span of the treatment interval.
func (r Run) TreatmentDuration() time.Duration {
	return r.TreatmentEnd.Sub(r.TreatmentStart)
}

// Flat returns the template/serialization projection of the run. Timestamps
// render with TimestampLayout, durations as seconds, and user data as compact
// JSON (json.Marshal sorts map keys, so the projection is deterministic).
func (r Run) Flat() map[string]string {
	meta := map[string]string{
		"startTime":         formatTime(r.StartTime),
		"endTime":           formatTime(r.EndTime),
		"treatmentStart":    formatTime(r.TreatmentStart),
		"treatmentEnd":      formatTime(r.TreatmentEnd),
		"runHash":           r.RunHash,
		"duration":          strconv.FormatFloat(r.Duration().Seconds(), 'f', -1, 64),
		"treatmentDuration": strconv.FormatFloat(r.TreatmentDuration().Seconds(), 'f', -1, 64),
	}
	if r.UserData != nil {
		if encoded, err := json.Marshal(r.UserData); err == nil {
			meta["userData"] = string(encoded)
		}
	} else {
		meta["userData"] = ""
	}
	return meta
}

// RunFields lists the template variables contributed by a run, in a stable
// order. Report enumeration wildcards exactly these.
func RunFields() []string {
	return []string{
		"startTime",
		"endTime",
		"treatmentStart",
		"treatmentEnd",
		"runHash",
		"duration",
		"treatmentDuration",
		"userData",
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ReportMetadata joins a session with one of its runs. It is the key under
// which a persisted report is addressed.
type ReportMetadata struct {
	Session Session `json:"session"`
	Run     Run     `json:"run"`
}

// Flat merges the session and run projections, with run fields taking
// precedence over session extras on collision.
func (m ReportMetadata) Flat() map[string]string {
	meta := m.Session.Flat()
	for k, v := range m.Run.Flat() {
		meta[k] = v
	}
	return meta
}
