package migrator

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidVersion is returned when a version string is not made of
// dot separated digit groups.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a dotted numeric version such as 1, 1.2 or 2024.01.15.3.
//
// Segments are compared as arbitrary precision integers. Trailing zero
// segments are not significant, so 1, 1.0 and 1.0.0 are equal. The version
// text is kept as written for display.
type Version struct {
	raw      string
	segments []string
}

// ParseVersion parses a version made of digits separated by single dots.
func ParseVersion(s string) (*Version, error) {
	if s == "" {
		return nil, errors.Wrap(ErrInvalidVersion, "empty version")
	}

	parts := strings.Split(s, ".")
	segments := make([]string, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, errors.Wrapf(ErrInvalidVersion, "empty segment in %q", s)
		}

		for _, r := range part {
			if r < '0' || r > '9' {
				return nil, errors.Wrapf(ErrInvalidVersion, "non-digit in %q", s)
			}
		}

		segments[i] = strings.TrimLeft(part, "0")
	}

	// Drop trailing zero segments. An all-zero version ends up with none.
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}

	return &Version{raw: s, segments: segments}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for
// tests and constants.
func MustParseVersion(s string) *Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

// String returns the version as it was written.
func (v *Version) String() string {
	if v == nil {
		return ""
	}

	return v.raw
}

// Canonical returns the normalized form of the version: leading zeros and
// trailing zero segments removed. Equal versions share a canonical form,
// which makes it suitable as a map key.
func (v *Version) Canonical() string {
	if v == nil {
		return ""
	}

	if len(v.segments) == 0 {
		return "0"
	}

	out := make([]string, len(v.segments))
	for i, seg := range v.segments {
		if seg == "" {
			seg = "0"
		}
		out[i] = seg
	}

	return strings.Join(out, ".")
}

// Compare returns -1, 0 or 1 depending on whether v is less than, equal to or
// greater than other. A nil version sorts before every non-nil version.
func (v *Version) Compare(other *Version) int {
	switch {
	case v == nil && other == nil:
		return 0
	case v == nil:
		return -1
	case other == nil:
		return 1
	}

	n := max(len(v.segments), len(other.segments))
	for i := range n {
		if c := compareSegment(segmentAt(v.segments, i), segmentAt(other.segments, i)); c != 0 {
			return c
		}
	}

	return 0
}

// Less reports whether v sorts before other.
func (v *Version) Less(other *Version) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other denote the same version.
func (v *Version) Equal(other *Version) bool { return v.Compare(other) == 0 }

func segmentAt(segments []string, i int) string {
	if i < len(segments) {
		return segments[i]
	}

	return ""
}

// compareSegment compares two digit strings without leading zeros. The empty
// string is zero.
func compareSegment(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}

	return strings.Compare(a, b)
}
