package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var (
	// nameLexer tokenizes the stem of an artifact name (the name without its
	// suffix). Each section of the name has its own state so the description
	// may contain characters that are significant in the version.
	nameLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Prefix", Pattern: `[VUR]`, Action: lexer.Push("Version")},
		},
		"Version": {
			{Name: "Separator", Pattern: `__`, Action: lexer.Push("Description")},
			{Name: "Number", Pattern: `[0-9]+`},
			{Name: "VersionDot", Pattern: `\.`},
		},
		"Description": {
			{Name: "Text", Pattern: `[^.]+`},
			{Name: "Dot", Pattern: `\.`},
		},
	})

	nameParser = participle.MustBuild[artifactName](
		participle.Lexer(nameLexer),
	)
)

type (
	// ArtifactName is the parsed form of a migration file name.
	ArtifactName struct {
		// Prefix is the kind letter: V (versioned), U (undo) or R (repeatable).
		Prefix string

		// Version is the dotted version exactly as written. Empty when the name
		// carries no version.
		Version string

		// Description is the raw description token, underscores included.
		Description string
	}

	artifactName struct {
		Prefix      string   `parser:"@Prefix"`
		Version     []string `parser:"( @Number ( VersionDot @Number )* )?"`
		Description []string `parser:"Separator @( Text | Dot )+"`
	}
)

// ParseArtifactName parses the stem of a migration artifact name.
//
// The grammar is a single kind letter (V, U or R), an optional version made of
// digits separated by single dots, a literal double underscore and a non-empty
// description:
//
//	V1__init            -> {V, "1", "init"}
//	V2.10.1__add_index  -> {V, "2.10.1", "add_index"}
//	R__refresh_views    -> {R, "", "refresh_views"}
//
// Whether a version is required or forbidden depends on the kind and is left
// to the caller. Returns an error if the stem does not match the grammar.
func ParseArtifactName(stem string) (*ArtifactName, error) {
	parsed, err := nameParser.ParseString("", stem)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid artifact name: %s", stem)
	}

	return &ArtifactName{
		Prefix:      parsed.Prefix,
		Version:     strings.Join(parsed.Version, "."),
		Description: strings.Join(parsed.Description, ""),
	}, nil
}
