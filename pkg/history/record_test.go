package history_test

import (
	"testing"

	. "github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	v := migrator.MustParseVersion
	records := NewRecords([]*Record{
		{InstalledRank: 4, Kind: migrator.Repeatable, Description: "views", Checksum: 2, Success: true},
		{InstalledRank: 1, Kind: migrator.Baseline, Version: v("1"), Description: "baseline", Success: true},
		{InstalledRank: 2, Kind: migrator.Versioned, Version: v("1.10"), Description: "later", Success: true},
		{InstalledRank: 3, Kind: migrator.Repeatable, Description: "views", Checksum: 1, Success: true},
		{InstalledRank: 5, Kind: migrator.Versioned, Version: v("1.9"), Description: "broken", Success: false},
		{InstalledRank: 6, Kind: migrator.Repeatable, Description: "stats", Checksum: 9, Success: false},
	})

	require.Equal(t, 6, records.Len())
	require.Equal(t, int64(6), records.MaxRank())

	var ranks []int64
	for _, r := range records.All() {
		ranks = append(ranks, r.InstalledRank)
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, ranks)

	require.Len(t, records.Applied(), 2)
	require.Len(t, records.Failed(), 2)
	require.Equal(t, "1.10", records.Highest().String())
	require.Equal(t, int64(1), records.Baseline().InstalledRank)

	require.True(t, records.IsApplied(v("1.10")))
	require.False(t, records.IsApplied(v("1.9")))
	require.False(t, records.IsApplied(v("1")))
	require.Nil(t, records.ByVersion(v("2")))

	latest := records.Latest("views")
	require.NotNil(t, latest)
	require.Equal(t, uint32(2), latest.Checksum)
	require.Nil(t, records.Latest("stats"))

	repeatables := records.Repeatables()
	require.Len(t, repeatables, 1)
	require.Equal(t, int64(4), repeatables[0].InstalledRank)
}

func TestRecordsEmpty(t *testing.T) {
	records := NewRecords(nil)
	require.Zero(t, records.Len())
	require.Zero(t, records.MaxRank())
	require.Nil(t, records.Highest())
	require.Nil(t, records.Baseline())
	require.Empty(t, records.Applied())
	require.Empty(t, records.Failed())
}
