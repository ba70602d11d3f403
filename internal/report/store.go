package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"sweep/internal/config"
	"sweep/pkg/sweeptypes"
)

// Sentinel errors of the report store.
var (
	// ErrUnsafeLocation marks a computed report location that is absolute or
	// contains a ".." segment. It fails fast, before any file I/O.
	ErrUnsafeLocation = errors.New("unsafe report location")
	// ErrManifestMissing marks a report directory without a manifest.
	ErrManifestMissing = errors.New("report manifest missing")
)

// decoder turns one schema version's on-disk representation into the
// canonical in-memory report.
type decoder func(s *Store, location string, manifest *Manifest) (*sweeptypes.Report, error)

// decoders is the closed version-dispatch table. Keys are exact manifest
// versions; anything unknown falls back to the oldest decoder with a
// warning.
var decoders = map[string]decoder{
	VersionV10: (*Store).decodeV10,
	VersionV11: (*Store).decodeV11,
}

// Store persists and loads reports under the location template of one
// campaign configuration.
type Store struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewStore creates a report store for the given configuration.
func NewStore(cfg *config.Config, logger *log.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// Location computes the report directory for the given metadata by
// substituting its flat projection into the configured location template,
// and validates the result before anything touches the filesystem.
func (s *Store) Location(meta sweeptypes.ReportMetadata) (string, error) {
	location := Expand(s.cfg.Report.Location, meta.Flat())
	if err := validateLocation(location); err != nil {
		return "", err
	}
	return filepath.Clean(location), nil
}

// validateLocation enforces the location safety invariant: relative, and no
// ".." path segment.
func validateLocation(location string) error {
	if filepath.IsAbs(location) {
		return fmt.Errorf("%w: must be relative, not absolute: %s", ErrUnsafeLocation, location)
	}
	for _, part := range strings.Split(filepath.ToSlash(location), "/") {
		if part == ".." {
			return fmt.Errorf("%w: contains '..' segment: %s", ErrUnsafeLocation, location)
		}
	}
	return nil
}

// Persist writes the report to its computed location: one data file per
// measurement under data/, the session and run metadata, a copy of the
// originating configuration file, and the manifest. The manifest is written
// last, after every other file succeeded, so a reader never observes a
// manifest referencing files that are not yet on disk. Persisting the same
// report twice overwrites deterministically.
func (s *Store) Persist(report *sweeptypes.Report) (string, error) {
	location, err := s.Location(report.Metadata)
	if err != nil {
		return "", err
	}
	dataDir := filepath.Join(location, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report location %s: %w", location, err)
	}
	s.logger.Info("Persisting report", "location", location)

	dataFiles := make(map[string]DataFileInfo)
	for _, name := range report.Measurements() {
		table, _ := report.Table(name)
		filename := fmt.Sprintf("%s.%s", name, s.cfg.Report.Format)
		path := filepath.Join(dataDir, filename)
		if err := writeTable(path, table); err != nil {
			return "", err
		}
		dataFiles[name] = DataFileInfo{
			Filename: filename,
			Rows:     table.NumRows(),
			Columns:  table.ColumnNames(),
		}
		s.logger.Debug("Saved measurement", "measurement", name, "location", path)
	}

	session := report.Metadata.Session
	if err := writeJSON(filepath.Join(location, SessionFile), sessionDocument{
		Name:   session.Name,
		Extras: session.Extras,
	}); err != nil {
		return "", err
	}

	// Since 1.1 the run file is a ReportMetadata-shaped document.
	if err := writeJSON(filepath.Join(location, RunFile), metadataDocument{
		Session: sessionDocument{Name: session.Name, Extras: session.Extras},
		Run:     newRunDocument(report.Metadata.Run),
	}); err != nil {
		return "", err
	}

	configFile := ""
	if path := s.cfg.Path(); path != "" {
		if err := copyFile(path, filepath.Join(location, ConfigFile)); err != nil {
			return "", err
		}
		configFile = ConfigFile
	} else {
		s.logger.Warn("No config file available to copy into report")
	}

	manifest := Manifest{
		Version:   CurrentVersion,
		CreatedAt: time.Now(),
		Format:    s.cfg.Report.Format,
		DataFiles: dataFiles,
		Files: ManifestFiles{
			Session: SessionFile,
			Run:     RunFile,
			Config:  configFile,
		},
	}
	if err := writeJSON(filepath.Join(location, ManifestFile), manifest); err != nil {
		return "", err
	}

	report.Location = location
	s.logger.Info("Report persisted", "location", location, "measurements", len(dataFiles))
	return location, nil
}

// LoadFromLocation loads one report directory, dispatching on the manifest
// version. Unknown versions fall back to the oldest decoder with a warning;
// forward compatibility is best effort.
func (s *Store) LoadFromLocation(location string) (*sweeptypes.Report, error) {
	if _, err := os.Stat(location); err != nil {
		return nil, fmt.Errorf("report location does not exist: %s", location)
	}
	manifest, err := readManifest(location)
	if err != nil {
		return nil, err
	}

	decode, ok := decoders[manifest.Version]
	if !ok {
		// Tolerate semver-style noise such as "1.1.0" before giving up.
		if version, perr := semver.NewVersion(manifest.Version); perr == nil {
			key := fmt.Sprintf("%d.%d", version.Major(), version.Minor())
			decode, ok = decoders[key]
		}
	}
	if !ok {
		s.logger.Warn("Unknown report version, attempting compatible load",
			"version", manifest.Version, "location", location)
		decode = decoders[VersionV10]
	}

	s.logger.Debug("Loading report", "version", manifest.Version, "location", location)
	report, err := decode(s, location, manifest)
	if err != nil {
		return nil, err
	}
	report.Location = location
	return report, nil
}

// LoadFromConfig enumerates the filesystem with the same location template
// used for writing, all template variables wildcarded except the supplied
// overrides, and returns every successfully loaded report. Directories
// without a recognizable manifest, and directories that fail to load, are
// logged and skipped; one bad directory never aborts the enumeration.
func (s *Store) LoadFromConfig(overrides map[string]string) ([]*sweeptypes.Report, error) {
	vars := make(map[string]string)
	for _, name := range Identifiers(s.cfg.Report.Location) {
		vars[name] = "*"
	}
	for name, value := range overrides {
		vars[name] = value
	}

	pattern := Expand(s.cfg.Report.Location, vars)
	if err := validateLocation(pattern); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Clean(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid report location pattern %s: %w", pattern, err)
	}
	sort.Strings(matches)

	var reports []*sweeptypes.Report
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(match, ManifestFile)); err != nil {
			s.logger.Debug("Skipping directory without manifest", "location", match)
			continue
		}
		loaded, err := s.LoadFromLocation(match)
		if err != nil {
			s.logger.Warn("Failed to load report", "location", match, "error", err)
			continue
		}
		reports = append(reports, loaded)
		s.logger.Info("Loaded report", "location", match)
	}
	s.logger.Info("Report enumeration finished", "pattern", pattern, "loaded", len(reports))
	return reports, nil
}

func (s *Store) decodeV11(location string, manifest *Manifest) (*sweeptypes.Report, error) {
	session, err := readSession(filepath.Join(location, manifest.Files.Session))
	if err != nil {
		return nil, err
	}
	doc, err := readMetadataDocument(filepath.Join(location, manifest.Files.Run))
	if err != nil {
		return nil, err
	}
	run, err := doc.Run.toRun()
	if err != nil {
		return nil, err
	}
	report := sweeptypes.NewReport(sweeptypes.ReportMetadata{Session: session, Run: run})
	if err := s.loadTables(report, location, manifest); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Store) decodeV10(location string, manifest *Manifest) (*sweeptypes.Report, error) {
	session, err := readSession(filepath.Join(location, manifest.Files.Session))
	if err != nil {
		return nil, err
	}
	doc, err := readRunDocument(filepath.Join(location, manifest.Files.Run))
	if err != nil {
		return nil, err
	}
	run, err := doc.toRun()
	if err != nil {
		return nil, err
	}
	report := sweeptypes.NewReport(sweeptypes.ReportMetadata{Session: session, Run: run})
	if err := s.loadTables(report, location, manifest); err != nil {
		return nil, err
	}
	return report, nil
}

// loadTables reads every data file the manifest indexes. The manifest is the
// only authority on which files exist.
func (s *Store) loadTables(report *sweeptypes.Report, location string, manifest *Manifest) error {
	format := manifest.Format
	if format == "" {
		format = "csv"
	}
	if format != "csv" {
		s.logger.Warn("Unsupported report format, attempting CSV load", "format", format)
	}
	for name, info := range manifest.DataFiles {
		path := filepath.Join(location, DataDir, info.Filename)
		table, err := readTable(path)
		if err != nil {
			return fmt.Errorf("measurement %q: %w", name, err)
		}
		report.SetTable(name, table)
		s.logger.Debug("Loaded measurement", "measurement", name, "location", path)
	}
	return nil
}

func writeTable(path string, table *sweeptypes.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create data file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	if err := table.WriteCSV(file); err != nil {
		return fmt.Errorf("failed to write data file %s: %w", path, err)
	}
	return nil
}

func readTable(path string) (*sweeptypes.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	table, err := sweeptypes.ReadCSVTable(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return table, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
