package replacement_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/replacement"
)

func Test_LRU_RankCands_Picks_Least_Recently_Touched(t *testing.T) {
	t.Parallel()

	l := replacement.NewLRU(4)
	l.Update(0, nil)
	l.Update(1, nil)
	l.Update(2, nil)
	// index 3 was never touched, so it's the oldest.

	require.Equal(t, int32(3), l.RankCands(nil, []int32{0, 1, 2, 3}))
}

func Test_LRU_Update_Moves_An_Index_To_The_Front(t *testing.T) {
	t.Parallel()

	l := replacement.NewLRU(3)
	l.Update(0, nil)
	l.Update(1, nil)
	l.Update(2, nil)
	l.Update(0, nil) // 0 is now the most recently used

	require.Equal(t, int32(1), l.RankCands(nil, []int32{0, 1, 2}))
}

func Test_LRU_Replaced_Counts_As_A_Touch(t *testing.T) {
	t.Parallel()

	l := replacement.NewLRU(2)
	l.Replaced(0)
	require.Equal(t, int32(1), l.RankCands(nil, []int32{0, 1}))
}

func Test_LRU_Rank_Skips_Exceptions(t *testing.T) {
	t.Parallel()

	l := replacement.NewLRU(3)
	// all tied at generation 0; index 0 is excluded so index 1 wins.
	victim := l.Rank(nil, []int32{0, 1, 2}, map[int32]bool{0: true})
	require.Equal(t, int32(1), victim)
}
