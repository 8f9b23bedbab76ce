package stats_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/variant"
	"github.com/llcsim/approxcache/pkg/stats"
)

func Test_Counters_Record_Tallies_Hits_Misses_And_Parked(t *testing.T) {
	t.Parallel()

	var c stats.Counters
	c.Record(variant.Result{Hit: true}, nil)
	c.Record(variant.Result{Hit: false}, nil)
	c.Record(variant.Result{}, variant.ErrMSHRsFull)

	require.Equal(t, uint64(2), c.Accesses)
	require.Equal(t, uint64(1), c.Hits)
	require.Equal(t, uint64(1), c.Misses)
	require.Equal(t, uint64(1), c.Parked)
}

func Test_Counters_HitRate_Is_Zero_With_No_Accesses(t *testing.T) {
	t.Parallel()

	var c stats.Counters
	require.Zero(t, c.HitRate())
}

func Test_Counters_HitRate_Divides_Hits_By_Accesses(t *testing.T) {
	t.Parallel()

	var c stats.Counters
	c.Record(variant.Result{Hit: true}, nil)
	c.Record(variant.Result{Hit: true}, nil)
	c.Record(variant.Result{Hit: false}, nil)

	require.InDelta(t, 2.0/3.0, c.HitRate(), 1e-9)
}

func Test_Dump_Writes_Final_Snapshot_As_JSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")

	c := stats.Counters{Accesses: 10, Hits: 7, Misses: 3}
	final := variant.Stats{ValidTagLines: 4, ValidTagSegments: 12, ValidDataLines: 5}

	require.NoError(t, stats.Dump(path, c, final))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got stats.Counters
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, c.Accesses, got.Accesses)
	require.Equal(t, final, got.Final)
}
