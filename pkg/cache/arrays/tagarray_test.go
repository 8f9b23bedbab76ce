package arrays_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/arrays"
	"github.com/llcsim/approxcache/pkg/cache/bdi"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
)

func newTagArray(t *testing.T, numLines, assoc uint32) *arrays.TagArray {
	t.Helper()
	hf := hashfamily.New(1, 8)
	rp := replacement.NewLRU(int(numLines))
	return arrays.NewTagArray(numLines, assoc, hf, rp)
}

func Test_Lookup_Misses_On_Empty_Array(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 8, 4)
	require.Equal(t, arrays.InvalidIx, ta.Lookup(0x1000, &req.MemReq{}, false))
}

func Test_Postinsert_Then_Lookup_Finds_The_Tag(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 8, 4)
	victim, _ := ta.Preinsert(0x1000, &req.MemReq{})

	ta.Postinsert(arrays.NewInsertArgs(0x1000, victim, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, true)

	require.Equal(t, victim, ta.Lookup(0x1000, &req.MemReq{}, false))
	require.EqualValues(t, 1, ta.ValidLines())
}

func Test_Preinsert_Reports_No_Victim_Address_For_An_Unused_Slot(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	victimIx, victimAddr := ta.Preinsert(0x2000, &req.MemReq{})
	require.GreaterOrEqual(t, victimIx, int32(0))
	require.Equal(t, req.Address(0), victimAddr)
}

func Test_Preinsert_Reports_The_Occupants_Address_Once_The_Set_Is_Full(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	for i := int32(0); i < 4; i++ {
		ta.Postinsert(arrays.NewInsertArgs(req.Address(0x1000+i), i, i, i, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)
	}

	victimIx, victimAddr := ta.Preinsert(0x9000, &req.MemReq{})
	require.True(t, ta.IsValid(victimIx))
	require.NotEqual(t, req.Address(0), victimAddr)
}

func Test_Invalidate_Clears_A_Sole_Owner_Slot(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	ta.Postinsert(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)
	require.EqualValues(t, 1, ta.ValidLines())

	ta.Invalidate(0)
	require.EqualValues(t, 0, ta.ValidLines())
	require.False(t, ta.IsValid(0))
	require.Equal(t, arrays.InvalidIx, ta.Lookup(0x1000, &req.MemReq{}, false))
}

func Test_EvictAssociatedData_Reports_Data_Dies_For_A_Lone_Tag(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	ta.Postinsert(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)

	dies, newHead, _ := ta.EvictAssociatedData(0)
	require.True(t, dies)
	require.Equal(t, arrays.InvalidIx, newHead)
}

func Test_EvictAssociatedData_Patches_The_List_When_The_Head_Leaves(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	// tag 1 joins tag 0's data and becomes the head of the two-member list.
	ta.Postinsert(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)
	ta.Postinsert(arrays.NewInsertArgs(0x2000, 1, 0, 0, 0, false, bdi.Zero), &req.MemReq{}, false)

	dies, newHead, _ := ta.EvictAssociatedData(1)
	require.False(t, dies)
	require.Equal(t, int32(0), newHead)
	require.Equal(t, arrays.InvalidIx, ta.ReadPrev(0))
}

func Test_EvictAssociatedData_Patches_The_List_When_A_Non_Head_Leaves(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	ta.Postinsert(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)
	ta.Postinsert(arrays.NewInsertArgs(0x2000, 1, 0, 0, 0, false, bdi.Zero), &req.MemReq{}, false)

	dies, newHead, _ := ta.EvictAssociatedData(0)
	require.False(t, dies)
	require.Equal(t, arrays.InvalidIx, newHead)
	require.Equal(t, arrays.InvalidIx, ta.ReadNext(1))
}

func Test_NeedEviction_Reports_No_Eviction_When_Budget_Allows(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	_, _, mustEvict := ta.NeedEviction(0x1000, &req.MemReq{}, 1, nil)
	require.False(t, mustEvict)
}

func Test_NeedEviction_Skips_Kept_Tags_When_Computing_Occupancy(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	for i := int32(0); i < 4; i++ {
		ta.Postinsert(arrays.NewInsertArgs(req.Address(0x1000+i), i, i, i, arrays.InvalidIx, false, bdi.None), &req.MemReq{}, false)
	}

	// Fully occupied (4 * 8 segments used); excluding tag 0 from the
	// occupancy count should free enough budget for one more 8-segment line.
	_, _, mustEvict := ta.NeedEviction(0x9000, &req.MemReq{}, 8, map[int32]bool{0: true})
	require.False(t, mustEvict)
}

func Test_ChangeInPlace_Adjusts_ValidSegments_Only_For_A_Sole_Owner(t *testing.T) {
	t.Parallel()

	ta := newTagArray(t, 4, 4)
	ta.Postinsert(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.Zero), &req.MemReq{}, false)
	before := ta.ValidSegments()

	ta.ChangeInPlace(arrays.NewInsertArgs(0x1000, 0, 0, 0, arrays.InvalidIx, false, bdi.None), &req.MemReq{}, false)
	require.Greater(t, ta.ValidSegments(), before)
}
