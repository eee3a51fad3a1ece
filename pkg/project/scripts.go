package project

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/config"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/migrator"
)

const timestampLayout = "20060102150405"

var nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ScriptOptions describe a new script file.
type ScriptOptions struct {
	// Kind defaults to migrator.Versioned.
	Kind migrator.Kind

	// Description becomes the name suffix. Runs of characters other than
	// letters and digits are replaced with a single underscore.
	Description string

	// Version is used as is when set. Otherwise versioned scripts get the
	// next major version (or a timestamp, see Timestamp) and undo scripts
	// the highest existing version.
	Version string

	// Timestamp selects UTC timestamp versions (20060102150405) instead of
	// sequential ones.
	Timestamp bool

	// Now is used for timestamp versions. Defaults to time.Now.
	Now time.Time
}

// NewScript creates an empty script in the first location of the project
// config and returns its path.
func (p *Project) NewScript(ctx context.Context, opts ScriptOptions) (string, error) {
	cfg, err := p.Config()
	if err != nil {
		return "", err
	}

	return NewScript(ctx, cfg, opts)
}

// NewScript creates an empty script in the first location of cfg and returns
// its path.
//
// The new name is checked against the existing scripts of every location, so
// a script that would make the catalog invalid is never written.
func NewScript(ctx context.Context, cfg *config.Config, opts ScriptOptions) (string, error) {
	if len(cfg.Locations) == 0 {
		return "", errors.New("no script locations configured")
	}

	dir := cfg.LocationPath(cfg.Locations[0])
	if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create directory %s", dir)
	}

	catalog, err := migrator.LoadCatalog(ctx, cfg.Sources()...)
	if err != nil {
		return "", errors.Wrap(err, "failed to load existing scripts")
	}

	if opts.Kind == "" {
		opts.Kind = migrator.Versioned
	}

	desc := strings.Trim(nonWord.ReplaceAllString(opts.Description, "_"), "_")
	if desc == "" {
		return "", errors.Wrap(migrator.ErrInvalidArtifactName, "a description is required")
	}

	version, err := nextVersion(catalog, opts)
	if err != nil {
		return "", err
	}

	name := scriptName(opts.Kind, version, desc)

	script, err := migrator.ParseScript(migrator.RawScript{Name: name, Location: cfg.Locations[0]})
	if err != nil {
		return "", err
	}

	if _, err := migrator.NewCatalog(append(catalog.All(), script)...); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, consts.ModeFile)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString("-- " + script.Description + "\n"); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	return path, nil
}

func nextVersion(catalog *migrator.Catalog, opts ScriptOptions) (string, error) {
	switch {
	case opts.Kind == migrator.Repeatable:
		if opts.Version != "" {
			return "", errors.Wrap(migrator.ErrInvalidArtifactName, "repeatable scripts cannot have a version")
		}
		return "", nil

	case opts.Version != "":
		if _, err := migrator.ParseVersion(opts.Version); err != nil {
			return "", err
		}
		return opts.Version, nil

	case opts.Kind == migrator.Undo:
		highest := catalog.Highest()
		if highest == nil {
			return "", errors.New("there is no versioned script to undo")
		}
		return highest.String(), nil

	case opts.Timestamp:
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		return now.UTC().Format(timestampLayout), nil
	}

	highest := catalog.Highest()
	if highest == nil {
		return "1", nil
	}

	major, _ := new(big.Int).SetString(strings.SplitN(highest.Canonical(), ".", 2)[0], 10)
	if major == nil {
		major = new(big.Int)
	}

	return major.Add(major, big.NewInt(1)).String(), nil
}

func scriptName(kind migrator.Kind, version, desc string) string {
	var prefix string
	switch kind {
	case migrator.Repeatable:
		prefix = "R"
	case migrator.Undo:
		prefix = "U"
	default:
		prefix = "V"
	}

	return prefix + version + "__" + desc + consts.ScriptSuffix
}
