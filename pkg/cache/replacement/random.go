package replacement

import (
	"math/rand"

	"github.com/llcsim/approxcache/pkg/cache/req"
)

// Random picks a uniformly random candidate, ignoring use history. It is
// the policy the spec's random-sampling victim searches (§4.2, §4.3) are
// layered on top of: those searches sample candidate sets themselves and
// then rank within the sample, so Random.Rank just needs to break ties
// arbitrarily-but-deterministically given a seeded source.
type Random struct {
	rng *rand.Rand
}

// NewRandom builds a Random policy seeded with seed. Deterministic seeding
// matters here: spec.md §8 requires the simulator's behavior to be
// reproducible for a given trace and config.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Update(int32, *req.MemReq) {}
func (r *Random) Replaced(int32)            {}

func (r *Random) RankCands(rq *req.MemReq, cands []int32) int32 {
	return r.Rank(rq, cands, nil)
}

func (r *Random) Rank(_ *req.MemReq, cands []int32, exceptions map[int32]bool) int32 {
	var live []int32
	for _, c := range cands {
		if exceptions != nil && exceptions[c] {
			continue
		}
		live = append(live, c)
	}
	if len(live) == 0 {
		return -1
	}
	return live[r.rng.Intn(len(live))]
}

// Sample draws k distinct indices uniformly from [0, n) without
// replacement, used by the BDI data-set allocator's random_loop_trial
// search (spec.md §4.3) and the dedup data array's k=4 sampling
// (spec.md §4.2).
func (r *Random) Sample(n, k int) []int32 {
	if k > n {
		k = n
	}
	perm := r.rng.Perm(n)
	out := make([]int32, k)
	for i := 0; i < k; i++ {
		out[i] = int32(perm[i])
	}
	return out
}
