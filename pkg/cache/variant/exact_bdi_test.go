package variant_test

import (
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

func newExactBDI(t *testing.T, numLines, assoc uint32, numMSHRs int) *variant.ExactBDI {
	t.Helper()
	hf := hashfamily.New(1, 32)
	rp := replacement.NewLRU(int(numLines))
	return variant.NewExactBDI(
		numLines, assoc, hf, rp,
		coherence.NewSequential(0, 0), timingbus.NewSliceRecorder(), mshr.New(numMSHRs), region.NewTable(nil),
		variant.CutSizes{FloatBits: 8, DoubleBits: 16}, 30, 10, 64,
	)
}

func Test_ExactBDI_First_Access_Is_A_Miss_Second_Is_A_Hit(t *testing.T) {
	t.Parallel()

	c := newExactBDI(t, 4, 4, 4)
	r1 := req.MemReq{Cycle: 0, LineAddr: 0x1000, Type: req.GETS}
	res, err := c.Access(&r1, nil)
	require.NoError(t, err)
	require.False(t, res.Hit)

	r2 := req.MemReq{Cycle: 1, LineAddr: 0x1000, Type: req.GETS}
	res, err = c.Access(&r2, nil)
	require.NoError(t, err)
	require.True(t, res.Hit)

	require.EqualValues(t, 1, c.Stats().ValidTagLines)
}

func Test_ExactBDI_Filling_A_Set_Evicts_The_LRU_Member(t *testing.T) {
	t.Parallel()

	c := newExactBDI(t, 4, 4, 8)
	for i := uint64(0); i < 4; i++ {
		r := req.MemReq{Cycle: req.Cycle(i), LineAddr: req.Address(0x1000 + i*0x10000), Type: req.GETS}
		_, err := c.Access(&r, nil)
		require.NoError(t, err)
	}
	require.EqualValues(t, 4, c.Stats().ValidTagLines)

	// A fifth distinct line, still hashing into the same (only) set, evicts
	// the first one installed.
	r5 := req.MemReq{Cycle: 4, LineAddr: 0x1000 + 4*0x10000, Type: req.GETS}
	_, err := c.Access(&r5, nil)
	require.NoError(t, err)
	require.EqualValues(t, 4, c.Stats().ValidTagLines)

	rOld := req.MemReq{Cycle: 5, LineAddr: 0x1000, Type: req.GETS}
	res, err := c.Access(&rOld, nil)
	require.NoError(t, err)
	require.False(t, res.Hit, "the original line should have been evicted")
}

func Test_ExactBDI_PUTX_Hit_Rewrites_The_Line(t *testing.T) {
	t.Parallel()

	c := newExactBDI(t, 4, 4, 4)
	r1 := req.MemReq{Cycle: 0, LineAddr: 0x1000, Type: req.GETS}
	_, err := c.Access(&r1, nil)
	require.NoError(t, err)

	payload := make([]byte, 64)
	payload[0] = 0xff
	r2 := req.MemReq{Cycle: 1, LineAddr: 0x1000, Type: req.PUTX}
	res, err := c.Access(&r2, payload)
	require.NoError(t, err)
	require.True(t, res.Hit)
}

func Test_ExactBDI_Retry_On_An_Idle_Pool_Returns_Nothing(t *testing.T) {
	t.Parallel()

	// Access releases its MSHR synchronously before returning (Sequential
	// never races a miss against another in-flight one), so nothing is
	// ever actually left parked in this single-threaded model; Retry must
	// still behave safely when called against that idle pool.
	c := newExactBDI(t, 8, 8, 1)
	r1 := req.MemReq{Cycle: 0, LineAddr: 0x1000, Type: req.GETS}
	_, err := c.Access(&r1, nil)
	require.NoError(t, err)

	require.Empty(t, c.Retry(1))
}
