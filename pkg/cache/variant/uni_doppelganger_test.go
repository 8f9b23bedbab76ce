package variant_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
	"github.com/llcsim/approxcache/pkg/cache/variant"
)

func newUniDoppelganger(t *testing.T, numTagLines, numDataLines uint32, regions *region.Table) *variant.UniDoppelganger {
	t.Helper()
	tagHF := hashfamily.New(1, 32)
	contentHF := hashfamily.New(2, 64)
	hashHF := hashfamily.New(3, 32)
	rp := replacement.NewLRU(int(numTagLines))
	return variant.NewUniDoppelganger(
		numTagLines, numTagLines, numDataLines, numTagLines, numTagLines, 4,
		tagHF, contentHF, hashHF, 4, rp,
		coherence.NewSequential(0, 0), timingbus.NewSliceRecorder(), mshr.New(8), regions,
		30, 10, 64, 1,
	)
}

func u32Line(elems ...uint32) []byte {
	line := make([]byte, 64)
	for i, e := range elems {
		binary.LittleEndian.PutUint32(line[i*4:], e)
	}
	return line
}

func Test_UniDoppelganger_Similar_But_Not_Identical_Lines_Share_A_Data_Entry(t *testing.T) {
	t.Parallel()

	regions := region.NewTable([]region.Region{
		{LowAddr: 0, HighAddr: 0x100000, DataType: req.U32, MinValue: req.DataValue{Int: 0}, MaxValue: req.DataValue{Int: 1000}},
	})
	c := newUniDoppelganger(t, 8, 8, regions)

	flat := u32Line(100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	wobbly := u32Line(90, 110, 90, 110, 90, 110, 90, 110, 90, 110, 90, 110, 90, 110, 90, 110)

	r1 := req.MemReq{Cycle: 0, LineAddr: 0x1000, Type: req.GETS}
	_, err := c.Access(&r1, flat)
	require.NoError(t, err)

	r2 := req.MemReq{Cycle: 1, LineAddr: 0x2000, Type: req.GETS}
	_, err = c.Access(&r2, wobbly)
	require.NoError(t, err)

	stats := c.Stats()
	require.EqualValues(t, 2, stats.ValidTagLines)
	require.Equal(t, 1, stats.ValidDataLines, "both lines fall in the same avg/range bucket")
}

func Test_UniDoppelganger_Falls_Back_To_Exact_Hash_Outside_Any_Region(t *testing.T) {
	t.Parallel()

	c := newUniDoppelganger(t, 8, 8, region.NewTable(nil))

	p1 := u32Line(1)
	p2 := u32Line(2)

	r1 := req.MemReq{Cycle: 0, LineAddr: 0x1000, Type: req.GETS}
	_, err := c.Access(&r1, p1)
	require.NoError(t, err)

	r2 := req.MemReq{Cycle: 1, LineAddr: 0x2000, Type: req.GETS}
	_, err = c.Access(&r2, p2)
	require.NoError(t, err)

	require.Equal(t, 2, c.Stats().ValidDataLines, "distinct content outside any region must not dedup")
}
