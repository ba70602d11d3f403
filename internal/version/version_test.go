package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	SetBuildInfo(version, commit, date)
	t.Cleanup(func() { SetBuildInfo(origVersion, origCommit, origDate) })
}

func TestGetInfo(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "2026-08-24")

	info, err := GetInfo()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abcdef1234567890", info.GitCommit)
	assert.Equal(t, "2026-08-24", info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	require.NotNil(t, info.SemVer)
	assert.Equal(t, uint64(1), info.SemVer.Major())
}

func TestGetInfo_InvalidVersion(t *testing.T) {
	withBuildInfo(t, "not-a-version", "unknown", "unknown")

	_, err := GetInfo()
	assert.Error(t, err)
}

func TestGetFormattedVersion(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef1234567890", "2026-08-24")

	formatted := GetFormattedVersion()
	assert.Contains(t, formatted, "sweep v1.2.3")
	assert.Contains(t, formatted, "commit abcdef1")
	assert.Contains(t, formatted, "built 2026-08-24")
}

func TestGetFormattedVersion_DevelopmentBuild(t *testing.T) {
	withBuildInfo(t, "1.2.3", "unknown", "unknown")

	formatted := GetFormattedVersion()
	assert.Equal(t, "sweep v1.2.3", formatted)
}

func TestGetDetailedVersion(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef12", "2026-08-24")

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "sweep v1.2.3")
	assert.Contains(t, detailed, "Git Commit: abcdef12")
	assert.Contains(t, detailed, "Build Date: 2026-08-24")
	assert.Contains(t, detailed, "Go Version:")
	assert.Contains(t, detailed, "Platform:")
}

func TestValidateVersion(t *testing.T) {
	withBuildInfo(t, "1.2.3-rc.1", "unknown", "unknown")
	assert.NoError(t, ValidateVersion())

	SetBuildInfo("garbage", "unknown", "unknown")
	assert.Error(t, ValidateVersion())
}

func TestIsDevelopment(t *testing.T) {
	withBuildInfo(t, "1.2.3", "unknown", "unknown")
	assert.True(t, IsDevelopment())

	SetBuildInfo("1.2.3", "abcdef12", "2026-08-24")
	assert.False(t, IsDevelopment())
}
