package region_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/req"
)

func Test_Lookup_Resolves_Containing_Region(t *testing.T) {
	t.Parallel()

	tbl := region.NewTable([]region.Region{
		{LowAddr: 0x1000, HighAddr: 0x2000, DataType: req.F32},
	})

	r, ok := tbl.Lookup(0x1800)
	require.True(t, ok)
	require.Equal(t, req.F32, r.DataType)
}

func Test_Lookup_Misses_Outside_Any_Range(t *testing.T) {
	t.Parallel()

	tbl := region.NewTable([]region.Region{
		{LowAddr: 0x1000, HighAddr: 0x2000, DataType: req.F32},
	})

	_, ok := tbl.Lookup(0x2000) // HighAddr is exclusive
	require.False(t, ok)
}

func Test_Lookup_Resolves_First_Match_On_Overlap(t *testing.T) {
	t.Parallel()

	tbl := region.NewTable([]region.Region{
		{LowAddr: 0x1000, HighAddr: 0x3000, DataType: req.F32},
		{LowAddr: 0x2000, HighAddr: 0x4000, DataType: req.F64},
	})

	r, ok := tbl.Lookup(0x2500)
	require.True(t, ok)
	require.Equal(t, req.F32, r.DataType)
}

func Test_Lookup_On_Nil_Table_Always_Misses(t *testing.T) {
	t.Parallel()

	var tbl *region.Table
	_, ok := tbl.Lookup(0x1000)
	require.False(t, ok)
}

func Test_Lookup_On_Zero_Value_Table_Always_Misses(t *testing.T) {
	t.Parallel()

	tbl := region.NewTable(nil)
	_, ok := tbl.Lookup(0x1000)
	require.False(t, ok)
}
