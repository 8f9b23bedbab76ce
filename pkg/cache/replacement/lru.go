package replacement

import "github.com/llcsim/approxcache/pkg/cache/req"

// LRU is a true-LRU policy over a fixed universe of indices [0, size). It
// tracks a monotonically increasing generation counter per index; the
// smallest counter among the candidates is the victim.
type LRU struct {
	gen  []uint64
	next uint64
}

// NewLRU builds an LRU tracker for size indices, all initially at
// generation 0 (tied, oldest-index-wins on first eviction - matching an
// array that starts out all-invalid).
func NewLRU(size int) *LRU {
	return &LRU{gen: make([]uint64, size)}
}

func (l *LRU) Update(index int32, _ *req.MemReq) {
	l.touch(index)
}

func (l *LRU) Replaced(index int32) {
	l.touch(index)
}

func (l *LRU) touch(index int32) {
	l.next++
	l.gen[index] = l.next
}

func (l *LRU) RankCands(r *req.MemReq, cands []int32) int32 {
	return l.Rank(r, cands, nil)
}

func (l *LRU) Rank(_ *req.MemReq, cands []int32, exceptions map[int32]bool) int32 {
	best := int32(-1)
	var bestGen uint64
	for _, c := range cands {
		if exceptions != nil && exceptions[c] {
			continue
		}
		if best == -1 || l.gen[c] < bestGen {
			best = c
			bestGen = l.gen[c]
		}
	}
	return best
}
