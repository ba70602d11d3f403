package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sweep/pkg/sweeptypes"
)

// sessionDocument is the on-disk shape of session.json. Identical across
// schema versions.
type sessionDocument struct {
	Name   string            `json:"name"`
	Extras map[string]string `json:"extras,omitempty"`
}

// runDocument is the on-disk shape of the run metadata: the whole run.json
// in schema 1.0, the "run" member of the ReportMetadata-shaped run.json
// since 1.1. Durations are stored redundantly, in seconds, for readers that
// do not want to parse timestamps.
type runDocument struct {
	StartTime         string         `json:"startTime"`
	EndTime           string         `json:"endTime"`
	TreatmentStart    string         `json:"treatmentStart"`
	TreatmentEnd      string         `json:"treatmentEnd"`
	RunHash           string         `json:"runHash"`
	Duration          float64        `json:"duration"`
	TreatmentDuration float64        `json:"treatmentDuration"`
	UserData          map[string]any `json:"userData,omitempty"`
}

// metadataDocument is the ReportMetadata-shaped run.json written since 1.1.
type metadataDocument struct {
	Session sessionDocument `json:"session"`
	Run     runDocument     `json:"run"`
}

func newRunDocument(run sweeptypes.Run) runDocument {
	return runDocument{
		StartTime:         run.StartTime.Format(sweeptypes.TimestampLayout),
		EndTime:           run.EndTime.Format(sweeptypes.TimestampLayout),
		TreatmentStart:    run.TreatmentStart.Format(sweeptypes.TimestampLayout),
		TreatmentEnd:      run.TreatmentEnd.Format(sweeptypes.TimestampLayout),
		RunHash:           run.RunHash,
		Duration:          run.Duration().Seconds(),
		TreatmentDuration: run.TreatmentDuration().Seconds(),
		UserData:          run.UserData,
	}
}

func (d runDocument) toRun() (sweeptypes.Run, error) {
	startTime, err := parseTimestamp(d.StartTime)
	if err != nil {
		return sweeptypes.Run{}, fmt.Errorf("invalid startTime: %w", err)
	}
	endTime, err := parseTimestamp(d.EndTime)
	if err != nil {
		return sweeptypes.Run{}, fmt.Errorf("invalid endTime: %w", err)
	}
	treatmentStart, err := parseTimestamp(d.TreatmentStart)
	if err != nil {
		return sweeptypes.Run{}, fmt.Errorf("invalid treatmentStart: %w", err)
	}
	treatmentEnd, err := parseTimestamp(d.TreatmentEnd)
	if err != nil {
		return sweeptypes.Run{}, fmt.Errorf("invalid treatmentEnd: %w", err)
	}
	return sweeptypes.Run{
		StartTime:      startTime,
		EndTime:        endTime,
		TreatmentStart: treatmentStart,
		TreatmentEnd:   treatmentEnd,
		RunHash:        d.RunHash,
		UserData:       d.UserData,
	}, nil
}

// parseTimestamp reads a TimestampLayout value in the local zone, mirroring
// how Persist renders it.
func parseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(sweeptypes.TimestampLayout, value, time.Local)
}

func readSession(path string) (sweeptypes.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sweeptypes.Session{}, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	doc := sessionDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return sweeptypes.Session{}, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return sweeptypes.Session{Name: doc.Name, Extras: doc.Extras}, nil
}

func readRunDocument(path string) (runDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runDocument{}, fmt.Errorf("failed to read run file %s: %w", path, err)
	}
	doc := runDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return runDocument{}, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	return doc, nil
}

func readMetadataDocument(path string) (metadataDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metadataDocument{}, fmt.Errorf("failed to read run file %s: %w", path, err)
	}
	doc := metadataDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return metadataDocument{}, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	return doc, nil
}
