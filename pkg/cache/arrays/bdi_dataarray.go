package arrays

import (
	"github.com/llcsim/approxcache/pkg/cache/bdi"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
)

// bdiSlot is one logical slot within a BDI data set (spec.md §4.3): a
// variable-size compressed line plus the dedup bookkeeping every data
// entry carries (counter, list head).
type bdiSlot struct {
	valid    bool
	counter  int32
	listHead int32
	bytes    []byte
	encoding bdi.Encoding
}

// BDIDataArray is the hardest subcomponent per spec.md §4.3: a data set
// holds `assoc` logical slots whose sizes vary with their BDI encoding, and
// the set's segment budget (assoc * lineSize/8) is enforced only in
// aggregate. Victim sets are found via a free list bucketed by free-segment
// count, falling back to a randomized simulated-eviction search.
type BDIDataArray struct {
	numSets  uint32
	assoc    uint32
	lineSize int

	sets [][]bdiSlot

	// Free-list buckets 0..8: bucket k holds the indices of sets whose
	// current free-segment count is exactly k, except bucket 8 which is a
	// catch-all for "8 or more" (a 64-byte line never needs more than 8
	// segments, per spec.md §3's encoding table, so finer resolution above
	// 8 buys nothing).
	buckets   [9][]int32
	bucketOf  []int8
	bucketPos []int32

	rp              replacement.Policy
	rng             *replacement.Random
	randomLoopTrial int
}

const maxBucket = 8

// NewBDIDataArray builds numSets data sets of `assoc` logical slots each.
func NewBDIDataArray(numSets, assoc uint32, lineSize, randomLoopTrial int, rp replacement.Policy, seed int64) *BDIDataArray {
	d := &BDIDataArray{
		numSets:         numSets,
		assoc:           assoc,
		lineSize:        lineSize,
		sets:            make([][]bdiSlot, numSets),
		bucketOf:        make([]int8, numSets),
		bucketPos:       make([]int32, numSets),
		rp:              rp,
		rng:             replacement.NewRandom(seed),
		randomLoopTrial: randomLoopTrial,
	}
	for i := range d.sets {
		slots := make([]bdiSlot, assoc)
		for j := range slots {
			slots[j].listHead = invalidIx
		}
		d.sets[i] = slots
	}
	// All sets start fully free, i.e. in the top bucket.
	for i := uint32(0); i < numSets; i++ {
		d.bucketOf[i] = maxBucket
		d.bucketPos[i] = int32(len(d.buckets[maxBucket]))
		d.buckets[maxBucket] = append(d.buckets[maxBucket], int32(i))
	}
	return d
}

func (d *BDIDataArray) occupied(setIx int32) int {
	occ := 0
	for _, s := range d.sets[setIx] {
		if s.valid {
			occ += s.encoding.Segments(d.lineSize)
		}
	}
	return occ
}

func (d *BDIDataArray) budget() int {
	return int(d.assoc) * (d.lineSize / 8)
}

func (d *BDIDataArray) freeSegments(setIx int32) int {
	return d.budget() - d.occupied(setIx)
}

// globalSlot maps (setIx, slotIx) to a single index so the shared
// replacement policy can track recency per physical slot instead of
// conflating slot 0 of every set into one entry.
func (d *BDIDataArray) globalSlot(setIx, slotIx int32) int32 {
	return setIx*int32(d.assoc) + slotIx
}

func bucketIndex(free int) int {
	if free >= maxBucket {
		return maxBucket
	}
	if free < 0 {
		return 0
	}
	return free
}

// recomputeBucket moves setIx to the bucket matching its current free
// segment count; called after any mutation of that set's slots.
func (d *BDIDataArray) recomputeBucket(setIx int32) {
	newB := int8(bucketIndex(d.freeSegments(setIx)))
	oldB := d.bucketOf[setIx]
	if newB == oldB {
		return
	}

	// Swap-remove setIx from its old bucket.
	lst := d.buckets[oldB]
	pos := d.bucketPos[setIx]
	last := int32(len(lst) - 1)
	moved := lst[last]
	lst[pos] = moved
	d.bucketPos[moved] = pos
	d.buckets[oldB] = lst[:last]

	d.bucketOf[setIx] = newB
	d.bucketPos[setIx] = int32(len(d.buckets[newB]))
	d.buckets[newB] = append(d.buckets[newB], setIx)
}

// PreinsertSet picks a data set for a line needing neededSegments, per
// spec.md §4.3: first the smallest adequate free-list bucket, else a
// randomized simulated-eviction search over random_loop_trial sampled sets,
// minimizing summed evicted counters (ties broken by the last sampled).
func (d *BDIDataArray) PreinsertSet(neededSegments int) int32 {
	for b := bucketIndex(neededSegments); b <= maxBucket; b++ {
		if n := len(d.buckets[b]); n > 0 {
			return d.buckets[b][n-1]
		}
	}

	const unset = 1 << 30
	best := int32(-1)
	bestCost := unset
	for i := 0; i < d.randomLoopTrial; i++ {
		cands := d.rng.Sample(int(d.numSets), 1)
		setIx := int32(cands[0])
		cost, ok := d.simulatedEvictionCost(setIx, neededSegments)
		if !ok {
			continue
		}
		if best == -1 || cost <= bestCost {
			best = setIx
			bestCost = cost
		}
	}
	return best
}

// simulatedEvictionCost walks the replacement policy's ranking within
// setIx, evicting (in simulation only - no mutation) until neededSegments
// would be free, and returns the summed counters of everything that would
// be evicted.
func (d *BDIDataArray) simulatedEvictionCost(setIx int32, neededSegments int) (int, bool) {
	slots := d.sets[setIx]
	freed := d.freeSegments(setIx)
	if freed >= neededSegments {
		return 0, true
	}

	evicted := map[int32]bool{}
	evictedGlobal := map[int32]bool{}
	sum := 0
	for freed < neededSegments {
		var cands []int32
		for i, s := range slots {
			if s.valid && !evicted[int32(i)] {
				cands = append(cands, d.globalSlot(setIx, int32(i)))
			}
		}
		if len(cands) == 0 {
			return sum, false
		}
		victimGlobal := d.rp.Rank(nil, cands, evictedGlobal)
		if victimGlobal == invalidIx {
			return sum, false
		}
		victim := victimGlobal - setIx*int32(d.assoc)
		evicted[victim] = true
		evictedGlobal[victimGlobal] = true
		freed += slots[victim].encoding.Segments(d.lineSize)
		sum += int(slots[victim].counter)
	}
	return sum, true
}

// PreinsertSlot ranks candidate slots within setIx, excluding kept, and
// returns the chosen slot plus the tag-list head it currently anchors
// (spec.md §4.3). An invalid slot is always preferred over evicting a live
// one.
func (d *BDIDataArray) PreinsertSlot(setIx int32, kept map[int32]bool) (slotIx int32, victimListHead int32) {
	slots := d.sets[setIx]
	for i, s := range slots {
		if !s.valid && !kept[int32(i)] {
			return int32(i), invalidIx
		}
	}

	var cands []int32
	keptGlobal := map[int32]bool{}
	for i := range slots {
		g := d.globalSlot(setIx, int32(i))
		cands = append(cands, g)
		if kept[int32(i)] {
			keptGlobal[g] = true
		}
	}
	victimGlobal := d.rp.Rank(nil, cands, keptGlobal)
	if victimGlobal == invalidIx {
		panic("arrays: BDIDataArray.PreinsertSlot: no candidate slot available")
	}
	victim := victimGlobal - setIx*int32(d.assoc)
	return victim, slots[victim].listHead
}

// SlotArgs is the payload for Postinsert/ChangeInPlace.
type SlotArgs struct {
	SetIx    int32
	SlotIx   int32
	Counter  int32
	ListHead int32
	Bytes    []byte
	Encoding bdi.Encoding
}

// Postinsert installs a's payload at (SetIx, SlotIx), treating the
// previous occupant (if any) as evicted for replacement-policy purposes.
func (d *BDIDataArray) Postinsert(a SlotArgs) {
	d.install(a)
	d.rp.Replaced(d.globalSlot(a.SetIx, a.SlotIx))
}

// ChangeInPlace installs a's payload without notifying the replacement
// policy of an eviction (a write-hit rewrite of an already-owned slot).
func (d *BDIDataArray) ChangeInPlace(a SlotArgs) {
	d.install(a)
	d.rp.Update(d.globalSlot(a.SetIx, a.SlotIx), nil)
}

func (d *BDIDataArray) install(a SlotArgs) {
	slot := &d.sets[a.SetIx][a.SlotIx]
	slot.valid = true
	slot.counter = a.Counter
	slot.listHead = a.ListHead
	slot.encoding = a.Encoding
	if a.Bytes != nil {
		cp := make([]byte, len(a.Bytes))
		copy(cp, a.Bytes)
		slot.bytes = cp
	}
	d.recomputeBucket(a.SetIx)
}

// Invalidate empties (setIx, slotIx), e.g. once its reference counter has
// dropped to zero.
func (d *BDIDataArray) Invalidate(setIx, slotIx int32) {
	slot := &d.sets[setIx][slotIx]
	*slot = bdiSlot{listHead: invalidIx}
	d.recomputeBucket(setIx)
}

// IsSame reports whether (setIx, slotIx)'s stored bytes byte-equal line.
func (d *BDIDataArray) IsSame(setIx, slotIx int32, line []byte) bool {
	stored := d.sets[setIx][slotIx].bytes
	if len(stored) != len(line) {
		return false
	}
	for i := range stored {
		if stored[i] != line[i] {
			return false
		}
	}
	return true
}

func (d *BDIDataArray) ReadCounter(setIx, slotIx int32) int32 { return d.sets[setIx][slotIx].counter }
func (d *BDIDataArray) ReadListHead(setIx, slotIx int32) int32 { return d.sets[setIx][slotIx].listHead }
func (d *BDIDataArray) ReadBytes(setIx, slotIx int32) []byte { return d.sets[setIx][slotIx].bytes }
func (d *BDIDataArray) ReadEncoding(setIx, slotIx int32) bdi.Encoding {
	return d.sets[setIx][slotIx].encoding
}
func (d *BDIDataArray) IsValid(setIx, slotIx int32) bool { return d.sets[setIx][slotIx].valid }

// counterAt implements counterSource for HashArray.
func (d *BDIDataArray) counterAt(setIx, slotIx int32) int32 {
	if setIx == invalidIx || slotIx == invalidIx {
		return 0
	}
	return d.sets[setIx][slotIx].counter
}

// ValidSegments sums the occupied segments across every set - an O(n)
// helper for tests and stats, not the access hot path.
func (d *BDIDataArray) ValidSegments() int {
	total := 0
	for i := range d.sets {
		total += d.occupied(int32(i))
	}
	return total
}

// FreeSegments reports how many segments of setIx's budget are currently
// unused, for callers cascading evictions until a line fits.
func (d *BDIDataArray) FreeSegments(setIx int32) int { return d.freeSegments(setIx) }

func (d *BDIDataArray) NumSets() uint32 { return d.numSets }
func (d *BDIDataArray) Assoc() uint32 { return d.assoc }
