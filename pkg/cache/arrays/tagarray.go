// Package arrays implements the cache core's associative containers: the
// TagArray, the two DataArray flavors (plain dedup, and dedup+BDI), and the
// HashArray (spec.md §3, §4.1-§4.4).
//
// Every cross-reference between these containers is an index, never a
// pointer (spec.md §9, "arena+index pattern"): the TagArray owns TagEntry
// slots, the DataArray owns DataEntry slots, and both only ever hold
// indices into each other.
package arrays

import (
	"fmt"

	"github.com/llcsim/approxcache/pkg/cache/bdi"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
)

// invalidIx marks an absent index throughout this package (-1 in the
// spec's pseudocode).
const invalidIx int32 = -1

// InvalidIx is invalidIx exported for callers outside this package that
// need to recognize "no index" in values this package returns (tag,
// data-set, and slot indices are all interchangeable -1 sentinels).
const InvalidIx = invalidIx

// TagArray is the set-associative tag store (spec.md §4.1). It is shared by
// all four variants; variants that don't need per-tag BDI encoding simply
// never touch the encoding field.
type TagArray struct {
	numLines uint32
	assoc    uint32
	numSets  uint32

	addr        []req.Address
	dataIx      []int32
	segmentIx   []int32
	prev        []int32
	next        []int32
	approximate []bool
	encoding    []bdi.Encoding

	validLines    uint32
	validSegments uint32

	hf *hashfamily.H3
	rp replacement.Policy
}

// NewTagArray builds a tag array of numLines entries organized into
// numLines/assoc sets (spec.md §4.1).
func NewTagArray(numLines, assoc uint32, hf *hashfamily.H3, rp replacement.Policy) *TagArray {
	if assoc == 0 || numLines%assoc != 0 {
		panic("arrays: numLines must be a multiple of assoc")
	}
	return &TagArray{
		numLines:    numLines,
		assoc:       assoc,
		numSets:     numLines / assoc,
		addr:        make([]req.Address, numLines),
		dataIx:      fill(numLines, invalidIx),
		segmentIx:   fill(numLines, invalidIx),
		prev:        fill(numLines, invalidIx),
		next:        fill(numLines, invalidIx),
		approximate: make([]bool, numLines),
		encoding:    make([]bdi.Encoding, numLines),
		hf:          hf,
		rp:          rp,
	}
}

func fill(n uint32, v int32) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func (t *TagArray) setOf(addr req.Address) uint32 {
	return uint32(t.hf.Hash(uint64(addr))) % t.numSets
}

func (t *TagArray) setCands(set uint32) []int32 {
	cands := make([]int32, t.assoc)
	base := set * t.assoc
	for i := uint32(0); i < t.assoc; i++ {
		cands[i] = int32(base + i)
	}
	return cands
}

// Lookup scans the set hashed from addr for a matching tag (spec.md §4.1).
func (t *TagArray) Lookup(addr req.Address, r *req.MemReq, updateRepl bool) int32 {
	set := t.setOf(addr)
	for _, ix := range t.setCands(set) {
		if t.addr[ix] == addr && t.valid(ix) {
			if updateRepl {
				t.rp.Update(ix, r)
			}
			return ix
		}
	}
	return invalidIx
}

func (t *TagArray) valid(ix int32) bool {
	return t.dataIx[ix] != invalidIx
}

// Preinsert asks the replacement policy to pick a victim within addr's set
// (spec.md §4.1).
func (t *TagArray) Preinsert(addr req.Address, r *req.MemReq) (victimTagIx int32, victimAddr req.Address) {
	set := t.setOf(addr)
	cands := t.setCands(set)
	victim := t.rp.RankCands(r, cands)
	if victim == invalidIx {
		panic("arrays: TagArray.Preinsert: replacement policy returned no candidate")
	}
	if t.valid(victim) {
		return victim, t.addr[victim]
	}
	return victim, 0
}

// NeedEviction is the BDI-only query (spec.md §4.1): is there enough
// capacity in addr's set for a line of neededSegments once the tags in
// kept are not counted? If not, it returns a replacement candidate.
func (t *TagArray) NeedEviction(addr req.Address, r *req.MemReq, neededSegments int, kept map[int32]bool) (victimTagIx int32, victimAddr req.Address, mustEvict bool) {
	set := t.setOf(addr)
	cands := t.setCands(set)

	occupied := 0
	for _, ix := range cands {
		if !t.valid(ix) || kept[ix] {
			continue
		}
		occupied += t.encoding[ix].Segments(64)
	}
	budget := int(t.assoc) * 8
	if budget-occupied >= neededSegments {
		return invalidIx, 0, false
	}

	victim := t.rp.Rank(r, cands, kept)
	if victim == invalidIx {
		panic("arrays: TagArray.NeedEviction: replacement policy returned no candidate")
	}
	return victim, t.addr[victim], true
}

// EvictAssociatedData inspects the linked list threaded through tagIx
// (spec.md §4.1). It returns true iff tagIx was the list's sole member (the
// data entry should die); otherwise it patches the list and reports the new
// head.
func (t *TagArray) EvictAssociatedData(tagIx int32) (dataDies bool, newListHead int32, approximate bool) {
	if !t.valid(tagIx) {
		panic(fmt.Sprintf("arrays: EvictAssociatedData: tag %d is invalid", tagIx))
	}
	approximate = t.approximate[tagIx]

	prev, next := t.prev[tagIx], t.next[tagIx]
	if prev == invalidIx && next == invalidIx {
		return true, invalidIx, approximate
	}

	if prev != invalidIx {
		t.next[prev] = next
	}
	if next != invalidIx {
		t.prev[next] = prev
	}

	if prev == invalidIx {
		// tagIx was the list head; the new head is next.
		return false, next, approximate
	}
	return false, invalidIx, approximate
}

// InsertArgs bundles the common parameters of Postinsert/ChangeInPlace to
// avoid two near-identical nine-argument signatures.
type InsertArgs struct {
	Addr        req.Address
	TagIx       int32
	DataIx      int32
	SegmentIx   int32
	ListHead    int32
	Approximate bool
	Encoding    bdi.Encoding
}

// Postinsert installs a new tag (a miss), splicing it into the linked list
// rooted at listHead as the new head (spec.md §4.1, invariant 1).
func (t *TagArray) Postinsert(a InsertArgs, r *req.MemReq, updateRepl bool) {
	t.install(a)
	t.rp.Replaced(a.TagIx)
	if updateRepl {
		t.rp.Update(a.TagIx, r)
	}
}

// ChangeInPlace behaves like Postinsert but does not call the replacement
// policy's Replaced hook - this is a write-hit rewrite, not an eviction
// (spec.md §4.1).
func (t *TagArray) ChangeInPlace(a InsertArgs, r *req.MemReq, updateRepl bool) {
	wasValid := t.valid(a.TagIx)
	wasSoleOwner := wasValid && t.prev[a.TagIx] == invalidIx && t.next[a.TagIx] == invalidIx
	oldEncoding := t.encoding[a.TagIx]

	t.install(a)
	if updateRepl {
		t.rp.Update(a.TagIx, r)
	}

	// Invariant 3: overwriting in place adjusts valid_segments by the
	// encoding-size difference only when the tag is (still) the sole
	// owner of its data entry.
	if wasSoleOwner && a.ListHead == invalidIx {
		t.validSegments -= uint32(oldEncoding.Segments(64))
		t.validSegments += uint32(a.Encoding.Segments(64))
	}
}

func (t *TagArray) install(a InsertArgs) {
	wasValid := t.valid(a.TagIx)

	if wasValid {
		// Detach from whatever list this slot used to be part of before
		// re-linking it (ChangeInPlace / reused slot paths).
		prev, next := t.prev[a.TagIx], t.next[a.TagIx]
		if prev != invalidIx {
			t.next[prev] = next
		}
		if next != invalidIx {
			t.prev[next] = prev
		}
	} else {
		t.validLines++
	}

	t.addr[a.TagIx] = a.Addr
	t.dataIx[a.TagIx] = a.DataIx
	t.segmentIx[a.TagIx] = a.SegmentIx
	t.approximate[a.TagIx] = a.Approximate
	t.encoding[a.TagIx] = a.Encoding

	if a.ListHead == invalidIx {
		t.prev[a.TagIx] = invalidIx
		t.next[a.TagIx] = invalidIx
		if !wasValid {
			t.validSegments += uint32(a.Encoding.Segments(64))
		}
	} else {
		if t.prev[a.ListHead] != invalidIx {
			panic("arrays: Postinsert: list head already has a predecessor")
		}
		t.prev[a.ListHead] = a.TagIx
		t.next[a.TagIx] = a.ListHead
		t.prev[a.TagIx] = invalidIx
	}
}

// Invalidate removes tagIx from the array entirely (pure capacity eviction,
// no replacement data association left to maintain - callers must have
// already run EvictAssociatedData and handled the result).
func (t *TagArray) Invalidate(tagIx int32) {
	if !t.valid(tagIx) {
		return
	}
	if t.prev[tagIx] == invalidIx && t.next[tagIx] == invalidIx {
		t.validSegments -= uint32(t.encoding[tagIx].Segments(64))
	}
	t.addr[tagIx] = 0
	t.dataIx[tagIx] = invalidIx
	t.segmentIx[tagIx] = invalidIx
	t.prev[tagIx] = invalidIx
	t.next[tagIx] = invalidIx
	t.approximate[tagIx] = false
	t.encoding[tagIx] = 0
	t.validLines--
}

func (t *TagArray) ReadAddress(tagIx int32) req.Address { return t.addr[tagIx] }
func (t *TagArray) ReadDataIx(tagIx int32) int32 { return t.dataIx[tagIx] }
func (t *TagArray) ReadSegmentIx(tagIx int32) int32 { return t.segmentIx[tagIx] }
func (t *TagArray) ReadNext(tagIx int32) int32 { return t.next[tagIx] }
func (t *TagArray) ReadPrev(tagIx int32) int32 { return t.prev[tagIx] }
func (t *TagArray) ReadApproximate(tagIx int32) bool { return t.approximate[tagIx] }
func (t *TagArray) ReadEncoding(tagIx int32) bdi.Encoding { return t.encoding[tagIx] }
func (t *TagArray) WriteEncoding(tagIx int32, e bdi.Encoding) { t.encoding[tagIx] = e }
func (t *TagArray) IsValid(tagIx int32) bool { return t.valid(tagIx) }

func (t *TagArray) ValidLines() uint32 { return t.validLines }
func (t *TagArray) ValidSegments() uint32 { return t.validSegments }
func (t *TagArray) NumLines() uint32 { return t.numLines }
func (t *TagArray) Assoc() uint32 { return t.assoc }

// NewInsertArgs is the exported constructor for InsertArgs, building one
// from positional arguments in field order.
func NewInsertArgs(addr req.Address, tagIx, dataIx, segmentIx, listHead int32, approximate bool, encoding bdi.Encoding) InsertArgs {
	return InsertArgs{
		Addr: addr, TagIx: tagIx, DataIx: dataIx, SegmentIx: segmentIx,
		ListHead: listHead, Approximate: approximate, Encoding: encoding,
	}
}
