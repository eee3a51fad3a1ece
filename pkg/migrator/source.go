package migrator

import (
	"context"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/consts"
)

type (
	// RawScript is an unparsed artifact as returned by a Source.
	RawScript struct {
		// Name is the path of the artifact relative to its source.
		Name string

		// Location identifies the source.
		Location string

		// Content is the raw payload.
		Content []byte
	}

	// Source lists the migration artifacts available in a location.
	//
	// Implementations decide where the bytes come from (local disk, embedded
	// files, a remote bucket). They only need to return artifacts whose names
	// end with the .sql suffix.
	Source interface {
		Location() string
		Scripts(ctx context.Context) ([]RawScript, error)
	}

	fsSource struct {
		location string
		fsys     fs.FS
	}
)

// NewFSSource returns a Source backed by an fs.FS. The location is used for
// reporting only.
//
// The file system is walked recursively in lexical order. Files that do not
// end with .sql are ignored.
func NewFSSource(location string, fsys fs.FS) Source {
	return &fsSource{location: location, fsys: fsys}
}

// NewDirSource returns a Source reading from a directory on the local disk.
func NewDirSource(dir string) Source {
	return NewFSSource(dir, os.DirFS(dir))
}

func (s *fsSource) Location() string { return s.location }

func (s *fsSource) Scripts(ctx context.Context) ([]RawScript, error) {
	var scripts []RawScript

	// NB: WalkDir always walks in lexical order.
	err := fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, consts.ScriptSuffix) {
			return nil
		}

		f, err := s.fsys.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open: %s", path)
		}
		defer func() { _ = f.Close() }()

		content, err := io.ReadAll(f)
		if err != nil {
			return errors.Wrapf(err, "failed to read: %s", path)
		}

		scripts = append(scripts, RawScript{
			Name:     path,
			Location: s.location,
			Content:  content,
		})

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan location: %s", s.location)
	}

	return scripts, nil
}
