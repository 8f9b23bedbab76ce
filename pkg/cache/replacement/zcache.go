package replacement

import "github.com/llcsim/approxcache/pkg/cache/req"

// ZCache implements a z-cache-style skewed associative policy: instead of
// ranking a fixed set, candidates are the union of several independently
// hashed "ways" sampled across a wider pool, and the victim is the LRU
// member of that sampled pool. Config's "cands" parameter (spec.md §6) is
// the pool size sampled per eviction.
type ZCache struct {
	lru   *LRU
	rng   *Random
	cands int
}

// NewZCache builds a z-cache policy over size indices, sampling cands
// candidates per eviction decision.
func NewZCache(size, cands int, seed int64) *ZCache {
	return &ZCache{lru: NewLRU(size), rng: NewRandom(seed), cands: cands}
}

func (z *ZCache) Update(index int32, r *req.MemReq)  { z.lru.Update(index, r) }
func (z *ZCache) Replaced(index int32)               { z.lru.Replaced(index) }

// RankCands samples z.cands candidates from pool (if pool is larger than
// z.cands) and returns the LRU victim among them; if pool already fits
// within z.cands it ranks the whole pool.
func (z *ZCache) RankCands(r *req.MemReq, pool []int32) int32 {
	return z.Rank(r, pool, nil)
}

func (z *ZCache) Rank(r *req.MemReq, pool []int32, exceptions map[int32]bool) int32 {
	sampled := pool
	if z.cands > 0 && len(pool) > z.cands {
		idx := z.rng.Sample(len(pool), z.cands)
		sampled = make([]int32, len(idx))
		for i, p := range idx {
			sampled[i] = pool[p]
		}
	}
	return z.lru.Rank(r, sampled, exceptions)
}
