package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweep/internal/config"
	"sweep/pkg/sweeptypes"
)

func newTestStore(t *testing.T, location string) *Store {
	t.Helper()
	cfg := &config.Config{
		Session: config.SessionConfig{Name: "campaign"},
		Report:  config.ReportConfig{Format: "csv", Location: location},
	}
	return NewStore(cfg, log.New(io.Discard))
}

func testRun(hash string) sweeptypes.Run {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	return sweeptypes.Run{
		StartTime:      start,
		EndTime:        start.Add(4 * time.Minute),
		TreatmentStart: start.Add(1 * time.Minute),
		TreatmentEnd:   start.Add(3 * time.Minute),
		RunHash:        hash,
		UserData:       map[string]any{"users": 10.0},
	}
}

func testReport(hash string) *sweeptypes.Report {
	report := sweeptypes.NewReport(sweeptypes.ReportMetadata{
		Session: sweeptypes.Session{Name: "campaign", Extras: map[string]string{"cluster": "dev"}},
		Run:     testRun(hash),
	})
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	cpu := sweeptypes.NewTable("cpu", "treatment")
	_ = cpu.AddRow(base, "0.5", "")
	_ = cpu.AddRow(base.Add(time.Minute), "0.9", "Treatment")
	report.SetTable("cpu", cpu)
	mem := sweeptypes.NewTable("mem")
	_ = mem.AddRow(base, "120")
	report.SetTable("mem", mem)
	return report
}

func TestStore_Location(t *testing.T) {
	store := newTestStore(t, "reports/${session}/${runHash}/")

	location, err := store.Location(testReport("ab12cd34").Metadata)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "campaign", "ab12cd34"), location)
}

func TestStore_LocationUnsafe(t *testing.T) {
	tests := []struct {
		name     string
		location string
	}{
		{name: "absolute", location: "/var/reports/${runHash}/"},
		{name: "parent escape", location: "../escape/${runHash}/"},
		{name: "embedded parent", location: "reports/../../${runHash}/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, tt.location)
			_, err := store.Location(testReport("ab12cd34").Metadata)
			assert.ErrorIs(t, err, ErrUnsafeLocation)
		})
	}
}

func TestStore_PersistUnsafeLocationWritesNothing(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "../escape/${runHash}/")

	_, err := store.Persist(testReport("ab12cd34"))
	require.ErrorIs(t, err, ErrUnsafeLocation)

	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PersistAndLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${startTime}_${runHash}/")
	configPath := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("session:\n  name: campaign\n"), 0o644))
	store.cfg.SetPath(configPath)

	original := testReport("ab12cd34")
	location, err := store.Persist(original)
	require.NoError(t, err)
	assert.Equal(t, location, original.Location)

	for _, file := range []string{ManifestFile, SessionFile, RunFile, ConfigFile,
		filepath.Join(DataDir, "cpu.csv"), filepath.Join(DataDir, "mem.csv")} {
		_, err := os.Stat(filepath.Join(location, file))
		assert.NoError(t, err, "expected %s in persisted report", file)
	}

	loaded, err := store.LoadFromLocation(location)
	require.NoError(t, err)

	assert.Equal(t, original.Metadata.Session, loaded.Metadata.Session)
	run := loaded.Metadata.Run
	assert.True(t, run.StartTime.Equal(original.Metadata.Run.StartTime))
	assert.True(t, run.EndTime.Equal(original.Metadata.Run.EndTime))
	assert.True(t, run.TreatmentStart.Equal(original.Metadata.Run.TreatmentStart))
	assert.True(t, run.TreatmentEnd.Equal(original.Metadata.Run.TreatmentEnd))
	assert.Equal(t, "ab12cd34", run.RunHash)
	assert.Equal(t, map[string]any{"users": 10.0}, run.UserData)
	assert.Equal(t, location, loaded.Location)

	require.Equal(t, []string{"cpu", "mem"}, loaded.Measurements())
	cpu, _ := loaded.Table("cpu")
	assert.Equal(t, []string{"cpu", "treatment"}, cpu.ColumnNames())
	assert.Equal(t, 2, cpu.NumRows())
	assert.Equal(t, []string{"0.9", "Treatment"}, cpu.Rows[1].Cells)
}

func TestStore_PersistIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")

	first, err := store.Persist(testReport("ab12cd34"))
	require.NoError(t, err)
	second, err := store.Persist(testReport("ab12cd34"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loaded, err := store.LoadFromLocation(second)
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu", "mem"}, loaded.Measurements())
}

func TestStore_PersistWritesCurrentVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")

	location, err := store.Persist(testReport("ab12cd34"))
	require.NoError(t, err)

	manifest, err := readManifest(location)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, manifest.Version)
	assert.Equal(t, "csv", manifest.Format)
	assert.Equal(t, RunFile, manifest.Files.Run)
	assert.Len(t, manifest.DataFiles, 2)
	assert.Equal(t, 2, manifest.DataFiles["cpu"].Rows)

	// The run file carries the full metadata shape since 1.1.
	doc, err := readMetadataDocument(filepath.Join(location, RunFile))
	require.NoError(t, err)
	assert.Equal(t, "campaign", doc.Session.Name)
	assert.Equal(t, "ab12cd34", doc.Run.RunHash)
	assert.Equal(t, 240.0, doc.Run.Duration)
}

// writeLegacyReport lays down a schema 1.0 directory by hand: a flat run.json
// and a manifest carrying the given version string.
func writeLegacyReport(t *testing.T, location, version string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(location, DataDir), 0o755))

	run := newRunDocument(testRun("ab12cd34"))
	writeDoc := func(name string, doc any) {
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(location, name), data, 0o644))
	}
	writeDoc(SessionFile, sessionDocument{Name: "campaign", Extras: map[string]string{"cluster": "dev"}})
	writeDoc(RunFile, run)

	csv := "time,cpu\n2026-08-24T10:00:00Z,0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(location, DataDir, "cpu.csv"), []byte(csv), 0o644))

	writeDoc(ManifestFile, Manifest{
		Version:   version,
		CreatedAt: time.Now(),
		Format:    "csv",
		DataFiles: map[string]DataFileInfo{
			"cpu": {Filename: "cpu.csv", Rows: 1, Columns: []string{"cpu"}},
		},
		Files: ManifestFiles{Session: SessionFile, Run: RunFile},
	})
}

func TestStore_LoadLegacyVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")
	location := filepath.Join("reports", "ab12cd34")
	writeLegacyReport(t, location, VersionV10)

	loaded, err := store.LoadFromLocation(location)
	require.NoError(t, err)
	assert.Equal(t, "campaign", loaded.Metadata.Session.Name)
	assert.Equal(t, "ab12cd34", loaded.Metadata.Run.RunHash)
	assert.True(t, loaded.Metadata.Run.StartTime.Equal(testRun("ab12cd34").StartTime))
	assert.Equal(t, []string{"cpu"}, loaded.Measurements())
}

func TestStore_LoadSemverNoiseVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")
	location := filepath.Join("reports", "ab12cd34")
	// "1.0.3" is not in the dispatch table but resolves to the 1.0 decoder.
	writeLegacyReport(t, location, "1.0.3")

	loaded, err := store.LoadFromLocation(location)
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", loaded.Metadata.Run.RunHash)
}

func TestStore_LoadUnknownVersionFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")
	location := filepath.Join("reports", "ab12cd34")
	writeLegacyReport(t, location, "vNext")

	loaded, err := store.LoadFromLocation(location)
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", loaded.Metadata.Run.RunHash)
}

func TestStore_LoadMissingLocation(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")

	_, err := store.LoadFromLocation("reports/nope")
	assert.Error(t, err)
}

func TestStore_LoadMissingManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${runHash}/")
	require.NoError(t, os.MkdirAll(filepath.Join("reports", "ab12cd34"), 0o755))

	_, err := store.LoadFromLocation(filepath.Join("reports", "ab12cd34"))
	assert.ErrorIs(t, err, ErrManifestMissing)
}

func TestStore_LoadFromConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${startTime}_${runHash}/")

	_, err := store.Persist(testReport("aaaa1111"))
	require.NoError(t, err)
	_, err = store.Persist(testReport("bbbb2222"))
	require.NoError(t, err)
	// A sibling directory without a manifest is skipped, not an error.
	require.NoError(t, os.MkdirAll(filepath.Join("reports", "junk_dir"), 0o755))

	reports, err := store.LoadFromConfig(nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "aaaa1111", reports[0].Metadata.Run.RunHash)
	assert.Equal(t, "bbbb2222", reports[1].Metadata.Run.RunHash)
}

func TestStore_LoadFromConfigWithOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${startTime}_${runHash}/")

	_, err := store.Persist(testReport("aaaa1111"))
	require.NoError(t, err)
	_, err = store.Persist(testReport("bbbb2222"))
	require.NoError(t, err)

	reports, err := store.LoadFromConfig(map[string]string{"runHash": "bbbb2222"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "bbbb2222", reports[0].Metadata.Run.RunHash)
}

func TestStore_LoadFromConfigSkipsBrokenReport(t *testing.T) {
	t.Chdir(t.TempDir())
	store := newTestStore(t, "reports/${startTime}_${runHash}/")

	_, err := store.Persist(testReport("aaaa1111"))
	require.NoError(t, err)
	broken := filepath.Join("reports", "2026_08_24_10_00_00_cccc3333")
	writeLegacyReport(t, broken, VersionV10)
	// Corrupt the run file; the directory should be skipped with a warning.
	require.NoError(t, os.WriteFile(filepath.Join(broken, RunFile), []byte("{"), 0o644))

	reports, err := store.LoadFromConfig(nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "aaaa1111", reports[0].Metadata.Run.RunHash)
}
