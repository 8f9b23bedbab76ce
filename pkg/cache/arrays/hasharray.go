package arrays

import "github.com/llcsim/approxcache/pkg/cache/hashfamily"

// counterSource lets HashArray ask "is this data entry basically dead
// weight" (counter <= 1) without depending on a concrete data array type -
// both DedupDataArray and BDIDataArray satisfy it.
type counterSource interface {
	counterAt(dataIx, segmentIx int32) int32
}

// HashArray is the associative index from content fingerprint (dedup
// variants) or map (doppelganger variants) to a (dataIx, segmentIx) hint
// (spec.md §4.4). It is purely advisory: a hit here must still be
// confirmed (or found stale) by the caller during miss handling.
type HashArray struct {
	numLines uint32
	assoc    uint32
	numSets  uint32

	valid     []bool
	hash      []uint64
	dataIx    []int32
	segmentIx []int32

	hf     *hashfamily.H3
	source counterSource
}

func NewHashArray(numLines, assoc uint32, hf *hashfamily.H3, source counterSource) *HashArray {
	if assoc == 0 || numLines%assoc != 0 {
		panic("arrays: numLines must be a multiple of assoc")
	}
	return &HashArray{
		numLines:  numLines,
		assoc:     assoc,
		numSets:   numLines / assoc,
		valid:     make([]bool, numLines),
		hash:      make([]uint64, numLines),
		dataIx:    fill(numLines, invalidIx),
		segmentIx: fill(numLines, invalidIx),
		hf:        hf,
		source:    source,
	}
}

func (h *HashArray) setOf(hash uint64) uint32 {
	return uint32(h.hf.Hash(hash)) % h.numSets
}

func (h *HashArray) setCands(set uint32) []int32 {
	cands := make([]int32, h.assoc)
	base := set * h.assoc
	for i := uint32(0); i < h.assoc; i++ {
		cands[i] = int32(base + i)
	}
	return cands
}

// Lookup scans hash's set for a matching entry (spec.md §4.4).
func (h *HashArray) Lookup(hash uint64) int32 {
	for _, ix := range h.setCands(h.setOf(hash)) {
		if h.valid[ix] && h.hash[ix] == hash {
			return ix
		}
	}
	return invalidIx
}

// Preinsert picks a slot for hash: prefer an invalid entry, then an entry
// whose referenced data has counter <= 1 (about to become just as
// disposable), else refuse (-1) (spec.md §4.4).
func (h *HashArray) Preinsert(hash uint64) int32 {
	cands := h.setCands(h.setOf(hash))

	for _, ix := range cands {
		if !h.valid[ix] {
			return ix
		}
	}
	for _, ix := range cands {
		if h.source.counterAt(h.dataIx[ix], h.segmentIx[ix]) <= 1 {
			return ix
		}
	}
	return invalidIx
}

// Postinsert installs (dataIx, segmentIx) at hashIx under key hash.
func (h *HashArray) Postinsert(hashIx int32, hash uint64, dataIx, segmentIx int32) {
	h.valid[hashIx] = true
	h.hash[hashIx] = hash
	h.dataIx[hashIx] = dataIx
	h.segmentIx[hashIx] = segmentIx
}

// Invalidate clears hashIx, e.g. once the caller detects the pointer it
// holds is stale (spec.md §4.4, §7: "Stale hash pointer... normal flow").
func (h *HashArray) Invalidate(hashIx int32) {
	h.valid[hashIx] = false
	h.dataIx[hashIx] = invalidIx
	h.segmentIx[hashIx] = invalidIx
}

func (h *HashArray) ReadDataIx(hashIx int32) int32 { return h.dataIx[hashIx] }
func (h *HashArray) ReadSegmentIx(hashIx int32) int32 { return h.segmentIx[hashIx] }
func (h *HashArray) ReadHash(hashIx int32) uint64 { return h.hash[hashIx] }
func (h *HashArray) IsValid(hashIx int32) bool { return h.valid[hashIx] }
