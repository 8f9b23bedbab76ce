package arrays

import (
	"bytes"

	"github.com/llcsim/approxcache/pkg/cache/replacement"
)

// DedupDataArray is the plain (non-BDI) deduplicated data store (spec.md
// §4.2): each entry holds raw bytes plus a reference counter and the head
// of the linked list of tags pointing at it.
type DedupDataArray struct {
	numLines uint32

	counter  []int32
	listHead []int32
	bytes    [][]byte

	free  []int32 // stack of indices with counter == 0
	onFree []bool

	sampleK uint32
	rng     *replacement.Random
}

// NewDedupDataArray builds a data array of numLines entries. sampleK is the
// "k=4" random-sampling width from spec.md §4.2's Preinsert.
func NewDedupDataArray(numLines, sampleK uint32, seed int64) *DedupDataArray {
	d := &DedupDataArray{
		numLines: numLines,
		counter:  make([]int32, numLines),
		listHead: fill(numLines, invalidIx),
		bytes:    make([][]byte, numLines),
		onFree:   make([]bool, numLines),
		sampleK:  sampleK,
		rng:      replacement.NewRandom(seed),
	}
	for i := uint32(0); i < numLines; i++ {
		d.free = append(d.free, int32(i))
		d.onFree[i] = true
	}
	return d
}

func (d *DedupDataArray) Valid(ix int32) bool { return d.counter[ix] > 0 }

// counterAt implements counterSource for HashArray; segmentIx is unused
// since DedupDataArray has no BDI segmentation.
func (d *DedupDataArray) counterAt(dataIx, _ int32) int32 {
	if dataIx == invalidIx {
		return 0
	}
	return d.counter[dataIx]
}

// Preinsert picks a victim data entry: pop from the free list if one
// exists, otherwise sample sampleK random indices and return the one with
// the smallest counter (spec.md §4.2).
func (d *DedupDataArray) Preinsert() (dataIx int32, victimListHead int32) {
	if n := len(d.free); n > 0 {
		ix := d.free[n-1]
		d.free = d.free[:n-1]
		d.onFree[ix] = false
		return ix, invalidIx
	}

	cands := d.rng.Sample(int(d.numLines), int(d.sampleK))
	best := cands[0]
	for _, c := range cands[1:] {
		if d.counter[c] < d.counter[best] {
			best = c
		}
	}
	return best, d.listHead[best]
}

// Postinsert installs counter/listHead (and optionally bytes) at dataIx.
// tagIx == -1 pushes the slot onto the free list (counter dropped to
// zero); any other value pops it off if it was there (spec.md §4.2).
func (d *DedupDataArray) Postinsert(tagIx, counter, dataIx int32, payload []byte) {
	d.counter[dataIx] = counter
	d.listHead[dataIx] = tagIx
	if payload != nil {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		d.bytes[dataIx] = cp
	}

	switch {
	case tagIx == invalidIx && !d.onFree[dataIx]:
		d.free = append(d.free, dataIx)
		d.onFree[dataIx] = true
	case tagIx != invalidIx && d.onFree[dataIx]:
		d.removeFromFree(dataIx)
	}
}

func (d *DedupDataArray) removeFromFree(ix int32) {
	for i, f := range d.free {
		if f == ix {
			d.free = append(d.free[:i], d.free[i+1:]...)
			break
		}
	}
	d.onFree[ix] = false
}

// IsSame reports whether payload byte-equals the stored line (spec.md
// §4.2). Approximation pre-processing, if any, must already have been
// applied to payload by the caller before comparing.
func (d *DedupDataArray) IsSame(dataIx int32, payload []byte) bool {
	return bytes.Equal(d.bytes[dataIx], payload)
}

// WriteData overwrites dataIx's bytes in place (a write that keeps the
// same slot).
func (d *DedupDataArray) WriteData(dataIx int32, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	d.bytes[dataIx] = cp
}

func (d *DedupDataArray) ReadCounter(dataIx int32) int32 { return d.counter[dataIx] }
func (d *DedupDataArray) ReadListHead(dataIx int32) int32 { return d.listHead[dataIx] }
func (d *DedupDataArray) ReadBytes(dataIx int32) []byte { return d.bytes[dataIx] }

// ValidLines counts entries with counter > 0, scanning the full array - an
// O(n) helper for tests and stats dumps, not the access hot path.
func (d *DedupDataArray) ValidLines() int {
	n := 0
	for _, c := range d.counter {
		if c > 0 {
			n++
		}
	}
	return n
}
