package migrator

import (
	"cmp"
	"context"
	"slices"

	"github.com/pkg/errors"
)

// Catalog is the set of scripts found in one or more sources, deduplicated by
// identity and partitioned by kind.
//
// A Catalog is built fresh on every run and never modified afterwards.
type Catalog struct {
	versioned  []*Script
	repeatable []*Script
	undo       []*Script

	versions     map[string]*Script
	undos        map[string]*Script
	descriptions map[string]*Script
}

// LoadCatalog reads every source in order and builds a Catalog from the
// scripts they contain.
//
// Example:
//
//	catalog, err := migrator.LoadCatalog(ctx, migrator.NewDirSource("db/migrations"))
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("found %d scripts\n", catalog.Len())
func LoadCatalog(ctx context.Context, sources ...Source) (*Catalog, error) {
	var scripts []*Script
	for _, src := range sources {
		raws, err := src.Scripts(ctx)
		if err != nil {
			return nil, err
		}

		for _, raw := range raws {
			script, err := ParseScript(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "location %s", src.Location())
			}
			scripts = append(scripts, script)
		}
	}

	return NewCatalog(scripts...)
}

// NewCatalog builds a Catalog from already parsed scripts.
//
// The same identity appearing twice is collapsed into a single entry when the
// content is identical. Any other collision is an error wrapping
// ErrInvalidArtifactName:
//   - two versioned (or two undo) scripts sharing a version with different
//     descriptions or different content
//   - two repeatable scripts sharing a description with different content
func NewCatalog(scripts ...*Script) (*Catalog, error) {
	c := &Catalog{
		versions:     make(map[string]*Script),
		undos:        make(map[string]*Script),
		descriptions: make(map[string]*Script),
	}

	for _, s := range scripts {
		var index map[string]*Script
		var key string

		switch s.Kind {
		case Versioned:
			index, key = c.versions, s.Version.Canonical()
		case Undo:
			index, key = c.undos, s.Version.Canonical()
		case Repeatable:
			index, key = c.descriptions, s.Description
		default:
			return nil, errors.Wrapf(ErrInvalidArtifactName, "%s: unsupported kind %s", s.Name, s.Kind)
		}

		existing, ok := index[key]
		if !ok {
			index[key] = s
			c.add(s)
			continue
		}

		if existing.Description != s.Description {
			return nil, errors.Wrapf(
				ErrInvalidArtifactName,
				"%s scripts %s (%s) and %s (%s) share version %s",
				s.Kind, existing.Name, existing.Location, s.Name, s.Location, s.Version,
			)
		}

		if existing.Checksum != s.Checksum {
			return nil, errors.Wrapf(
				ErrInvalidArtifactName,
				"%s (%s) and %s (%s) have the same identity but different content",
				existing.Name, existing.Location, s.Name, s.Location,
			)
		}
	}

	slices.SortStableFunc(c.versioned, func(a, b *Script) int { return a.Version.Compare(b.Version) })
	slices.SortStableFunc(c.undo, func(a, b *Script) int { return a.Version.Compare(b.Version) })
	slices.SortStableFunc(c.repeatable, func(a, b *Script) int { return cmp.Compare(a.Description, b.Description) })

	return c, nil
}

func (c *Catalog) add(s *Script) {
	switch s.Kind {
	case Versioned:
		c.versioned = append(c.versioned, s)
	case Undo:
		c.undo = append(c.undo, s)
	case Repeatable:
		c.repeatable = append(c.repeatable, s)
	}
}

// Versioned returns the versioned scripts in ascending version order.
func (c *Catalog) Versioned() []*Script { return c.versioned }

// Repeatable returns the repeatable scripts ordered by description.
func (c *Catalog) Repeatable() []*Script { return c.repeatable }

// Undo returns the undo scripts in ascending version order.
func (c *Catalog) Undo() []*Script { return c.undo }

// All returns every script: versioned, then repeatable, then undo.
func (c *Catalog) All() []*Script {
	all := make([]*Script, 0, c.Len())
	all = append(all, c.versioned...)
	all = append(all, c.repeatable...)
	return append(all, c.undo...)
}

// Len returns the total number of scripts.
func (c *Catalog) Len() int {
	return len(c.versioned) + len(c.repeatable) + len(c.undo)
}

// ByVersion returns the versioned script with the given version, or nil.
func (c *Catalog) ByVersion(v *Version) *Script {
	if v == nil {
		return nil
	}

	return c.versions[v.Canonical()]
}

// UndoFor returns the undo script for the given version, or nil.
func (c *Catalog) UndoFor(v *Version) *Script {
	if v == nil {
		return nil
	}

	return c.undos[v.Canonical()]
}

// ByDescription returns the repeatable script with the given description, or nil.
func (c *Catalog) ByDescription(description string) *Script {
	return c.descriptions[description]
}

// Highest returns the highest versioned script version, or nil when there are
// no versioned scripts.
func (c *Catalog) Highest() *Version {
	if len(c.versioned) == 0 {
		return nil
	}

	return c.versioned[len(c.versioned)-1].Version
}
