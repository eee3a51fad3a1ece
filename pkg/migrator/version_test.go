package migrator_test

import (
	"slices"
	"testing"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/strata/pkg/migrator"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input     string
		canonical string
	}{
		{input: "1", canonical: "1"},
		{input: "1.2", canonical: "1.2"},
		{input: "001.002", canonical: "1.2"},
		{input: "1.0", canonical: "1"},
		{input: "1.0.0", canonical: "1"},
		{input: "1.0.1", canonical: "1.0.1"},
		{input: "0", canonical: "0"},
		{input: "0.0", canonical: "0"},
		{input: "20240115093000", canonical: "20240115093000"},
		{input: "99999999999999999999999.1", canonical: "99999999999999999999999.1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseVersion(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.input, v.String())
			require.Equal(t, tt.canonical, v.Canonical())
		})
	}
}

func TestParseVersionErrors(t *testing.T) {
	for _, input := range []string{"", ".", "1.", ".1", "1..2", "1a", "v1", "1-2", " 1"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVersion(input)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidVersion))
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{a: "1", b: "2", expected: -1},
		{a: "2", b: "1", expected: 1},
		{a: "1.9", b: "1.10", expected: -1},
		{a: "1.10", b: "1.9", expected: 1},
		{a: "1", b: "1.0", expected: 0},
		{a: "1.0.0", b: "1", expected: 0},
		{a: "1", b: "1.0.1", expected: -1},
		{a: "01.2", b: "1.2", expected: 0},
		{a: "10", b: "9", expected: 1},
		{a: "99999999999999999999998", b: "99999999999999999999999", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a, b := MustParseVersion(tt.a), MustParseVersion(tt.b)
			require.Equal(t, tt.expected, a.Compare(b))
			require.Equal(t, -tt.expected, b.Compare(a))
			require.Equal(t, tt.expected == 0, a.Equal(b))
			require.Equal(t, tt.expected < 0, a.Less(b))
		})
	}
}

func TestVersionCompareNil(t *testing.T) {
	var none *Version
	require.Equal(t, 0, none.Compare(nil))
	require.Equal(t, -1, none.Compare(MustParseVersion("0")))
	require.Equal(t, 1, MustParseVersion("0").Compare(nil))
	require.Empty(t, none.String())
	require.Empty(t, none.Canonical())
}

func TestVersionSorting(t *testing.T) {
	versions := []*Version{
		MustParseVersion("1.10"),
		MustParseVersion("2"),
		MustParseVersion("1.2"),
		MustParseVersion("1.9"),
		MustParseVersion("1"),
	}

	slices.SortFunc(versions, func(a, b *Version) int { return a.Compare(b) })

	var got []string
	for _, v := range versions {
		got = append(got, v.String())
	}

	require.Equal(t, []string{"1", "1.2", "1.9", "1.10", "2"}, got)
}

func TestMustParseVersionPanics(t *testing.T) {
	require.Panics(t, func() { MustParseVersion("nope") })
}
