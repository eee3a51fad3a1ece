package project

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/config"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/database"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed embed/strata.yaml
	defaultConfig []byte

	image = fstest.MapFS{
		"db":              {Mode: os.ModeDir | consts.ModeDir},
		"db/migrations":   {Mode: os.ModeDir | consts.ModeDir},
		consts.ConfigFile: {Data: defaultConfig},
	}
)

type (
	// InitOptions contains options for project initialization
	InitOptions struct {
		// Dialect overrides the database dialect of a newly written config
		Dialect string

		// URL overrides the database url of a newly written config
		URL string
	}

	// Project is a directory holding a strata.yaml and migration scripts.
	Project struct {
		root string
	}
)

// New creates a new Project rooted at path. The directory must exist.
//
// Example:
//
//	proj := project.New("/path/to/my/app")
//	if err := proj.Initialize(project.InitOptions{Dialect: "postgres"}); err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := proj.NewScript(ctx, project.ScriptOptions{Description: "create users"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("created", path) // db/migrations/V1__create_users.sql
func New(path string) *Project {
	return &Project{root: path}
}

// Root returns the project directory.
func (p *Project) Root() string { return p.root }

// Initialize sets up the project directory structure. This method is
// idempotent: it only creates missing files and directories, preserving any
// existing content. Options are only applied to a config file written by this
// call.
func (p *Project) Initialize(options InitOptions) error {
	if err := p.ensureDirectory(); err != nil {
		return err
	}

	if options.Dialect != "" {
		if _, err := database.LookupDialect(options.Dialect); err != nil {
			return err
		}
	}

	for path, entry := range image {
		fullPath := filepath.Join(p.root, path)

		if _, err := os.Stat(fullPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to stat %s", fullPath)
		}

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(fullPath, entry.Mode.Perm()); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", fullPath)
			}

			continue
		}

		parentDir := filepath.Dir(fullPath)
		if err := os.MkdirAll(parentDir, consts.ModeDir); err != nil {
			return errors.Wrapf(err, "failed to create parent directory %s", parentDir)
		}

		data := entry.Data
		if path == consts.ConfigFile {
			var err error
			if data, err = customizeConfig(data, options); err != nil {
				return err
			}
		}

		if err := os.WriteFile(fullPath, data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write file %s", fullPath)
		}
	}

	// Make sure the result is loadable.
	_, err := p.Config()
	return err
}

// Config loads the project's strata.yaml.
func (p *Project) Config() (*config.Config, error) {
	return config.LoadConfigFile(filepath.Join(p.root, consts.ConfigFile))
}

func (p *Project) ensureDirectory() error {
	dir, err := os.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.root)
	}

	if !dir.IsDir() {
		return errors.Errorf("%s is not a directory", p.root)
	}

	return nil
}

// customizeConfig sets database.dialect and database.url in the template
// while keeping its comments.
func customizeConfig(data []byte, options InitOptions) ([]byte, error) {
	if options.Dialect == "" && options.URL == "" {
		return data, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse config template")
	}

	if options.Dialect != "" {
		if err := setScalar(&doc, options.Dialect, "database", "dialect"); err != nil {
			return nil, err
		}
	}

	if options.URL != "" {
		if err := setScalar(&doc, options.URL, "database", "url"); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to write config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close yaml encoder")
	}

	return buf.Bytes(), nil
}

func setScalar(doc *yaml.Node, value string, path ...string) error {
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	for _, key := range path {
		if node.Kind != yaml.MappingNode {
			return errors.Errorf("config template: %s is not a mapping", key)
		}

		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}

		if next == nil {
			return errors.Errorf("config template: missing key %s", key)
		}
		node = next
	}

	node.Kind = yaml.ScalarNode
	node.Tag = "!!str"
	node.Value = value
	return nil
}
