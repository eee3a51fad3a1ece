package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/strata/pkg/config"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/project"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ProjectFixture represents a test project backed by a sqlite database in a
// temp directory
type ProjectFixture struct {
	Dir     string
	Config  *config.Config
	Project *project.Project
	t       *testing.T
}

// TestProject creates an isolated temp directory with an initialized strata
// project using a sqlite database inside it
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	tmpDir := t.TempDir()
	proj := project.New(tmpDir)

	err := proj.Initialize(project.InitOptions{
		Dialect: "sqlite",
		URL:     filepath.Join(tmpDir, "strata.db"),
	})
	require.NoError(t, err, "Failed to initialize test project")

	cfg, err := proj.Config()
	require.NoError(t, err, "Failed to load config file")

	return &ProjectFixture{
		Dir:     tmpDir,
		Config:  cfg,
		Project: proj,
		t:       t,
	}
}

// WithConfig applies fn to the project configuration and writes it back
func (p *ProjectFixture) WithConfig(fn func(*config.Config)) *ProjectFixture {
	p.t.Helper()

	fn(p.Config)

	data, err := yaml.Marshal(p.Config)
	require.NoError(p.t, err, "Failed to marshal config")
	require.NoError(p.t, os.WriteFile(p.ConfigPath(), data, consts.ModeFile), "Failed to write config")

	return p
}

// WithScripts writes scripts (file name to content) to the migrations directory
func (p *ProjectFixture) WithScripts(scripts map[string]string) *ProjectFixture {
	p.t.Helper()

	dir := p.ScriptsDir()
	require.NoError(p.t, os.MkdirAll(dir, consts.ModeDir), "Failed to create migrations directory")

	for name, sql := range scripts {
		err := os.WriteFile(filepath.Join(dir, name), []byte(sql), consts.ModeFile)
		require.NoError(p.t, err, "Failed to write script file: %s", name)
	}

	return p
}

// ScriptsDir returns the first script location
func (p *ProjectFixture) ScriptsDir() string {
	return p.Config.LocationPath(p.Config.Locations[0])
}

// ConfigPath returns the path of strata.yaml
func (p *ProjectFixture) ConfigPath() string {
	return filepath.Join(p.Dir, consts.ConfigFile)
}

// History reads every record from the project's history table
func (p *ProjectFixture) History() *history.Records {
	p.t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, p.Config.DatabaseOptions())
	require.NoError(p.t, err, "Failed to open project database")
	defer func() { _ = db.Close() }()

	records, err := history.NewStore(db, p.Config.HistoryOptions()).All(ctx)
	require.NoError(p.t, err, "Failed to read history table")

	return records
}
