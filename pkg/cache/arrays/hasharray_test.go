package arrays_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/arrays"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
)

func newHashArray(t *testing.T, numLines, assoc uint32) (*arrays.HashArray, *arrays.DedupDataArray) {
	t.Helper()
	source := arrays.NewDedupDataArray(numLines, 4, 1)
	hf := hashfamily.New(1, 8)
	return arrays.NewHashArray(numLines, assoc, hf, source), source
}

func Test_HashArray_Lookup_Misses_On_Empty_Array(t *testing.T) {
	t.Parallel()

	h, _ := newHashArray(t, 8, 4)
	require.Equal(t, arrays.InvalidIx, h.Lookup(0xabc))
}

func Test_HashArray_Postinsert_Then_Lookup_Finds_The_Entry(t *testing.T) {
	t.Parallel()

	h, _ := newHashArray(t, 8, 4)
	ix := h.Preinsert(0xabc)
	require.GreaterOrEqual(t, ix, int32(0))

	h.Postinsert(ix, 0xabc, 3, arrays.InvalidIx)
	require.Equal(t, ix, h.Lookup(0xabc))
	require.EqualValues(t, 3, h.ReadDataIx(ix))
}

func Test_HashArray_Invalidate_Clears_The_Entry(t *testing.T) {
	t.Parallel()

	h, _ := newHashArray(t, 8, 4)
	ix := h.Preinsert(0xabc)
	h.Postinsert(ix, 0xabc, 3, arrays.InvalidIx)

	h.Invalidate(ix)
	require.False(t, h.IsValid(ix))
	require.Equal(t, arrays.InvalidIx, h.Lookup(0xabc))
}

func Test_HashArray_Preinsert_Prefers_A_Disposable_Entry_Once_The_Set_Is_Full(t *testing.T) {
	t.Parallel()

	h, source := newHashArray(t, 4, 4) // a single set, all 4 lines in it
	for i := int32(0); i < 4; i++ {
		h.Postinsert(i, uint64(i), i, arrays.InvalidIx)
	}

	// give data entry 2 a disposable (<=1) counter; the rest stay at 0
	// (also <=1, since DedupDataArray starts empty), so any of them could be
	// picked - the important property is Preinsert never returns -1 here.
	source.Postinsert(0, 1, 2, []byte{1})

	victim := h.Preinsert(0x9999)
	require.NotEqual(t, arrays.InvalidIx, victim)
}

func Test_HashArray_Preinsert_Refuses_When_Every_Candidate_Is_Not_Disposable(t *testing.T) {
	t.Parallel()

	h, source := newHashArray(t, 4, 4)
	for i := int32(0); i < 4; i++ {
		h.Postinsert(i, uint64(i), i, arrays.InvalidIx)
		source.Postinsert(i, 2, i, []byte{byte(i)}) // counter 2, not disposable
	}

	require.Equal(t, arrays.InvalidIx, h.Preinsert(0x9999))
}
