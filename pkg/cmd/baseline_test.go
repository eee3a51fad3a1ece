package cmd

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/cmd/testutil"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/stretchr/testify/require"
)

func TestBaselineCommand(t *testing.T) {
	fixture := testutil.TestProject(t).WithScripts(map[string]string{
		"V1__create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"V2__create_posts.sql": "CREATE TABLE posts (id INTEGER PRIMARY KEY);",
		"V3__create_tags.sql":  "CREATE TABLE tags (id INTEGER PRIMARY KEY);",
	})

	out, err := runStrata(t, fixture.Dir, "baseline", "--version", "2", "--description", "legacy schema")
	require.NoError(t, err)
	require.Equal(t, "Baselined schema at version 2 (legacy schema)\n", out.Stdout.String())

	out, err = runStrata(t, fixture.Dir, "migrate")
	require.NoError(t, err)
	require.NotContains(t, out.Stdout.String(), "V1 create users")
	require.Contains(t, out.Stdout.String(), "✅ V3 create tags")
	require.Contains(t, out.Stdout.String(), "Successfully applied 1 migration(s)")

	records := fixture.History()
	testutil.RequireAppliedVersions(t, records, "2", "3")
	require.Equal(t, "legacy schema", records.Baseline().Description)

	_, err = runStrata(t, fixture.Dir, "baseline", "--version", "5")
	require.True(t, errors.Is(err, history.ErrBaselineNotAllowed))
}

func TestBaselineCommand_Errors(t *testing.T) {
	fixture := testutil.TestProject(t)

	_, err := runStrata(t, fixture.Dir, "baseline")
	require.Error(t, err, "--version is required")

	_, err = runStrata(t, fixture.Dir, "baseline", "--version", "v1")
	testutil.RequireError(t, err, "invalid version")
}
