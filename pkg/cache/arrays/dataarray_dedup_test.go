package arrays_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/arrays"
)

func Test_DedupDataArray_Preinsert_Prefers_The_Free_List(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(4, 4, 1)
	ix, listHead := d.Preinsert()
	require.Equal(t, arrays.InvalidIx, listHead)
	require.GreaterOrEqual(t, ix, int32(0))
	require.Less(t, ix, int32(4))
}

func Test_DedupDataArray_Postinsert_Then_IsSame_Round_Trips_Bytes(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(4, 4, 1)
	ix, _ := d.Preinsert()
	payload := []byte{1, 2, 3, 4}

	d.Postinsert(0, 1, ix, payload)
	require.True(t, d.IsSame(ix, payload))
	require.False(t, d.IsSame(ix, []byte{9, 9, 9, 9}))
	require.EqualValues(t, 1, d.ReadCounter(ix))
	require.EqualValues(t, 0, d.ReadListHead(ix))
}

func Test_DedupDataArray_Postinsert_With_Invalid_TagIx_Frees_The_Slot(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(2, 2, 1)
	ix, _ := d.Preinsert()
	d.Postinsert(0, 1, ix, []byte{1})
	require.True(t, d.Valid(ix))

	d.Postinsert(arrays.InvalidIx, 0, ix, nil)
	require.False(t, d.Valid(ix))

	// the freed slot should be handed out again by Preinsert before any
	// sampling happens.
	again, _ := d.Preinsert()
	require.Equal(t, ix, again)
}

func Test_DedupDataArray_Preinsert_Falls_Back_To_Sampling_When_Free_List_Is_Exhausted(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(4, 4, 7)
	for i := 0; i < 4; i++ {
		ix, _ := d.Preinsert()
		d.Postinsert(int32(i), 1, ix, []byte{byte(i)})
	}

	ix, listHead := d.Preinsert()
	require.GreaterOrEqual(t, ix, int32(0))
	require.Less(t, ix, int32(4))
	require.GreaterOrEqual(t, listHead, int32(0))
}

func Test_DedupDataArray_ValidLines_Counts_Nonzero_Counters(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(4, 4, 1)
	require.Equal(t, 0, d.ValidLines())

	ix, _ := d.Preinsert()
	d.Postinsert(0, 2, ix, []byte{1})
	require.Equal(t, 1, d.ValidLines())
}

func Test_DedupDataArray_WriteData_Overwrites_In_Place(t *testing.T) {
	t.Parallel()

	d := arrays.NewDedupDataArray(2, 2, 1)
	ix, _ := d.Preinsert()
	d.Postinsert(0, 1, ix, []byte{1, 2})

	d.WriteData(ix, []byte{9, 9})
	require.True(t, d.IsSame(ix, []byte{9, 9}))
}
