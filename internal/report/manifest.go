package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Schema versions. Loading dispatches on the manifest version; adding a
// version means adding one decoder to the table in store.go.
const (
	VersionV10 = "1.0"
	VersionV11 = "1.1"

	// CurrentVersion is the schema version Persist writes.
	CurrentVersion = VersionV11
)

// Fixed file names inside a report directory.
const (
	ManifestFile = "manifest.json"
	SessionFile  = "session.json"
	RunFile      = "run.json"
	ConfigFile   = "config.yaml"
	DataDir      = "data"
)

// DataFileInfo indexes one measurement data file.
type DataFileInfo struct {
	Filename string   `json:"filename"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
}

// ManifestFiles names the metadata files of a report directory.
type ManifestFiles struct {
	Session string `json:"session"`
	Run     string `json:"run"`
	Config  string `json:"config"`
}

// Manifest is the authoritative index of a persisted report. It is written
// last, after every data and metadata file succeeded, and it is the single
// source of truth for loading: readers never guess file names from directory
// listings.
type Manifest struct {
	Version   string                  `json:"version"`
	CreatedAt time.Time               `json:"createdAt"`
	Format    string                  `json:"format"`
	DataFiles map[string]DataFileInfo `json:"dataFiles"`
	Files     ManifestFiles           `json:"files"`
}

// readManifest loads and decodes the manifest of a report directory.
func readManifest(location string) (*Manifest, error) {
	path := filepath.Join(location, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, location)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	manifest := &Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if manifest.Version == "" {
		manifest.Version = VersionV10
	}
	return manifest, nil
}

// writeJSON writes an indented JSON document.
func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
