package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pseudomuto/strata/pkg/config"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/stretchr/testify/require"
)

// RequireValidProject asserts that a project structure is correctly initialized
func RequireValidProject(t *testing.T, projectDir string) {
	t.Helper()

	require.DirExists(t, filepath.Join(projectDir, "db"), "db directory should exist")
	require.DirExists(t, filepath.Join(projectDir, "db", "migrations"), "migrations directory should exist")
	require.FileExists(t, filepath.Join(projectDir, consts.ConfigFile), "strata.yaml should exist")

	_, err := config.LoadConfigFile(filepath.Join(projectDir, consts.ConfigFile))
	require.NoError(t, err, "strata.yaml should be loadable")
}

// RequireFileExists asserts that a file exists and optionally checks its content
func RequireFileExists(t *testing.T, path string, checks ...func(content string)) {
	t.Helper()

	require.FileExists(t, path, "File should exist: %s", path)

	if len(checks) > 0 {
		content, err := os.ReadFile(path)
		require.NoError(t, err, "Failed to read file: %s", path)

		contentStr := string(content)
		for _, check := range checks {
			check(contentStr)
		}
	}
}

// RequireFileContains returns a check function that verifies file contains text
func RequireFileContains(t *testing.T, expected string) func(string) {
	return func(content string) {
		require.Contains(t, content, expected, "File should contain: %s", expected)
	}
}

// RequireScriptCount asserts that a specific number of scripts exist
func RequireScriptCount(t *testing.T, dir string, expectedCount int) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "Failed to read scripts directory")

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), consts.ScriptSuffix) {
			count++
		}
	}

	require.Equal(t, expectedCount, count, "Should have expected number of script files")
}

// RequireNoFile asserts that a file does not exist
func RequireNoFile(t *testing.T, path string) {
	t.Helper()

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "File should not exist: %s", path)
}

// RequireError asserts that an error occurred and optionally checks the message
func RequireError(t *testing.T, err error, msgContains ...string) {
	t.Helper()

	require.Error(t, err, "Expected an error")

	for _, msg := range msgContains {
		require.Contains(t, err.Error(), msg, "Error message should contain: %s", msg)
	}
}

// RequireAppliedVersions asserts the versions of the successful versioned and
// baseline records, in installed rank order
func RequireAppliedVersions(t *testing.T, records *history.Records, expected ...string) {
	t.Helper()

	actual := make([]string, 0, len(expected))
	for _, rec := range records.Applied() {
		actual = append(actual, rec.Version.String())
	}

	require.Equal(t, append([]string{}, expected...), actual, "Unexpected applied versions")
}

// RequireFailedVersions asserts the versions of the failed records
func RequireFailedVersions(t *testing.T, records *history.Records, expected ...string) {
	t.Helper()

	actual := make([]string, 0, len(expected))
	for _, rec := range records.Failed() {
		actual = append(actual, rec.Version.String())
	}

	require.Equal(t, append([]string{}, expected...), actual, "Unexpected failed versions")
}
