package migrator

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/parser"
)

const (
	// Versioned scripts are applied at most once, in version order.
	Versioned Kind = "versioned"

	// Repeatable scripts are re-applied whenever their checksum changes.
	Repeatable Kind = "repeatable"

	// Undo scripts revert a versioned script. They are catalogued only.
	Undo Kind = "undo"

	// Baseline marks a version as applied without running anything. It only
	// ever appears in the history table.
	Baseline Kind = "baseline"
)

// ErrInvalidArtifactName is returned when a script name does not follow the
// naming grammar or conflicts with another script.
var ErrInvalidArtifactName = errors.New("invalid artifact name")

type (
	// Kind is the category of a migration script or history record.
	Kind string

	// Script is a single migration script discovered by a Source.
	//
	// Scripts are rebuilt on every run and never persisted. Only their
	// metadata is written to the history table once applied.
	Script struct {
		// Name is the file name the script was loaded from, e.g. V1__init.sql.
		Name string

		// Location identifies the source the script was found in.
		Location string

		// Kind is Versioned, Repeatable or Undo.
		Kind Kind

		// Version is nil for repeatable scripts.
		Version *Version

		// Description is derived from the name with underscores replaced by spaces.
		Description string

		// Checksum is the CRC-32 of Content.
		Checksum uint32

		// Content is the raw SQL payload.
		Content []byte
	}
)

// KindFromPrefix maps a file name prefix letter to its Kind.
func KindFromPrefix(prefix string) (Kind, bool) {
	switch prefix {
	case "V":
		return Versioned, true
	case "R":
		return Repeatable, true
	case "U":
		return Undo, true
	default:
		return "", false
	}
}

// ParseKind converts the persisted form of a Kind back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Versioned, Repeatable, Undo, Baseline:
		return k, nil
	default:
		return "", errors.Errorf("unknown kind: %q", s)
	}
}

// ParseScript builds a Script from a raw artifact. The name must carry the
// .sql suffix and follow the naming grammar.
//
// Returns an error wrapping ErrInvalidArtifactName when the name is malformed,
// a versioned or undo script lacks a version, or a repeatable script has one.
func ParseScript(raw RawScript) (*Script, error) {
	base := path.Base(raw.Name)
	stem, ok := strings.CutSuffix(base, consts.ScriptSuffix)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: missing %s suffix", base, consts.ScriptSuffix)
	}

	name, err := parser.ParseArtifactName(stem)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: %v", base, err)
	}

	kind, _ := KindFromPrefix(name.Prefix)
	script := &Script{
		Name:        base,
		Location:    raw.Location,
		Kind:        kind,
		Description: strings.ReplaceAll(name.Description, "_", " "),
		Checksum:    Checksum(raw.Content),
		Content:     raw.Content,
	}

	switch {
	case kind == Repeatable && name.Version != "":
		return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: repeatable scripts cannot have a version", base)
	case kind != Repeatable && name.Version == "":
		return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: %s scripts require a version", base, kind)
	case name.Version != "":
		v, err := ParseVersion(name.Version)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: %v", base, err)
		}
		script.Version = v
	}

	if strings.TrimSpace(script.Description) == "" {
		return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: empty description", base)
	}

	return script, nil
}

// ID returns the identity of the script: kind, canonical version and
// description.
func (s *Script) ID() string {
	return fmt.Sprintf("%s:%s:%s", s.Kind, s.Version.Canonical(), s.Description)
}

// String returns a short human readable label for the script.
func (s *Script) String() string {
	if s.Version == nil {
		return s.Description
	}

	return s.Version.String() + " " + s.Description
}
