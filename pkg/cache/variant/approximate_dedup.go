package variant

import (
	"github.com/llcsim/approxcache/pkg/cache/arrays"
	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
)

// ApproximateDedup deduplicates byte-identical lines (spec.md §4.2, §4.7):
// a HashArray indexes resident data by content hash, a DedupDataArray holds
// the deduplicated bytes plus a reference count, and the TagArray's
// prev/next fields thread the list of tags sharing one data entry.
type ApproximateDedup struct {
	base
	tags *arrays.TagArray
	data *arrays.DedupDataArray
	hash *arrays.HashArray
	chf  *hashfamily.H3 // content-hash function, distinct from the tag set-index function
}

func NewApproximateDedup(numTagLines, tagAssoc, numDataLines, hashLines, hashAssoc uint32, sampleK uint32, tagHF, contentHF, hashSetHF *hashfamily.H3, rp replacement.Policy, coh coherence.Controller, rec timingbus.Recorder, mshrs *mshr.Pool, regions *region.Table, accessLatency, evictionLatency req.Cycle, lineSize int, seed int64) *ApproximateDedup {
	data := arrays.NewDedupDataArray(numDataLines, sampleK, seed)
	return &ApproximateDedup{
		base: base{
			lineSize:        lineSize,
			accessLatency:   accessLatency,
			evictionLatency: evictionLatency,
			coh:             coh,
			rec:             rec,
			mshrs:           mshrs,
			regions:         regions,
		},
		tags: arrays.NewTagArray(numTagLines, tagAssoc, tagHF, rp),
		data: data,
		hash: arrays.NewHashArray(hashLines, hashAssoc, hashSetHF, data),
		chf:  contentHF,
	}
}

func (c *ApproximateDedup) Access(r *req.MemReq, payload []byte) (Result, error) {
	if c.coh.StartAccess(r) {
		ev := c.rec.NewEvent(timingbus.Hit, r.Cycle, 0)
		return c.pushRecord(r, true, ev, ev), nil
	}
	defer c.coh.EndAccess(r)

	if tagIx := c.tags.Lookup(r.LineAddr, r, true); tagIx != arrays.InvalidIx {
		return c.hit(r, tagIx, payload), nil
	}
	return c.miss(r, payload)
}

func (c *ApproximateDedup) hit(r *req.MemReq, tagIx int32, payload []byte) Result {
	start, resp, _ := c.chain(timingbus.Hit, r.Cycle, false)

	if r.Type == req.PUTX && payload != nil {
		dataIx := c.tags.ReadDataIx(tagIx)
		if !c.data.IsSame(dataIx, payload) {
			c.detach(tagIx)
			newDataIx, priorHead := c.shareOrAllocate(r, tagIx, payload)
			c.tags.ChangeInPlace(arrays.NewInsertArgs(r.LineAddr, tagIx, newDataIx, arrays.InvalidIx, priorHead, c.isApproximate(r.LineAddr), 0), r, true)
		}
	}

	respCycle := c.coh.ProcessAccess(r, tagIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	return c.pushRecord(r, true, start, resp)
}

func (c *ApproximateDedup) miss(r *req.MemReq, payload []byte) (Result, error) {
	if !c.admit(r) {
		return Result{}, ErrMSHRsFull
	}
	defer func() { c.mshrs.Release(r.Cycle) }()

	if !c.coh.ShouldAllocate(r) {
		start, resp, _ := c.chain(timingbus.MissStart, r.Cycle, false)
		return c.pushRecord(r, false, start, resp), nil
	}

	line := payload
	if line == nil {
		line = make([]byte, c.lineSize)
	}

	slotIx, _ := c.tags.Preinsert(r.LineAddr, r)
	evicting := false
	if c.tags.IsValid(slotIx) {
		c.evictTag(r, slotIx)
		evicting = true
	}

	dataIx, priorHead := c.shareOrAllocate(r, slotIx, line)

	start, resp, wb := c.chain(timingbus.MissStart, r.Cycle, evicting)
	c.tags.Postinsert(arrays.NewInsertArgs(r.LineAddr, slotIx, dataIx, arrays.InvalidIx, priorHead, c.isApproximate(r.LineAddr), 0), r, true)

	respCycle := c.coh.ProcessAccess(r, slotIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	if wb != nil {
		c.coh.ProcessEviction(r, r.LineAddr, slotIx, wb.MinStart)
	}
	return c.pushRecord(r, false, start, resp), nil
}

// detach removes tagIx from whatever data entry's sharer list it's
// currently part of, decrementing or freeing that entry (spec.md §4.2,
// §4.1's prev/next invariant).
func (c *ApproximateDedup) detach(tagIx int32) {
	dataIx := c.tags.ReadDataIx(tagIx)
	dies, newHead, _ := c.tags.EvictAssociatedData(tagIx)
	if dies {
		c.data.Postinsert(arrays.InvalidIx, 0, dataIx, nil)
		return
	}
	// newHead is only meaningful when tagIx was the list head (in which
	// case it's the new head); otherwise the existing head is unaffected.
	if newHead == arrays.InvalidIx {
		newHead = c.data.ReadListHead(dataIx)
	}
	c.data.Postinsert(newHead, c.data.ReadCounter(dataIx)-1, dataIx, nil)
}

// shareOrAllocate finds an existing data entry byte-identical to line via
// the hash array, splicing joiningTag onto its sharer list, or allocates a
// fresh one (spec.md §4.2, §4.4). It returns the data entry and the list
// head joiningTag must be linked in front of (-1 for a fresh entry).
func (c *ApproximateDedup) shareOrAllocate(r *req.MemReq, joiningTag int32, line []byte) (dataIx int32, priorHead int32) {
	h := c.chf.HashLine(line)
	if hashIx := c.hash.Lookup(h); hashIx != arrays.InvalidIx {
		dataIx := c.hash.ReadDataIx(hashIx)
		if c.data.Valid(dataIx) && c.data.IsSame(dataIx, line) {
			priorHead := c.data.ReadListHead(dataIx)
			c.data.Postinsert(joiningTag, c.data.ReadCounter(dataIx)+1, dataIx, nil)
			return dataIx, priorHead
		}
		// Stale hash pointer: the content changed since this entry was
		// indexed. Fall through to a fresh allocation (spec.md §7).
		c.hash.Invalidate(hashIx)
	}

	dataIx, victimListHead := c.data.Preinsert()
	if victimListHead != arrays.InvalidIx {
		c.invalidateChain(r, victimListHead)
	}
	c.data.Postinsert(joiningTag, 1, dataIx, line)

	if hashIx := c.hash.Preinsert(h); hashIx != arrays.InvalidIx {
		c.hash.Postinsert(hashIx, h, dataIx, arrays.InvalidIx)
	}
	return dataIx, arrays.InvalidIx
}

// invalidateChain evicts every tag sharing a data entry that a capacity
// eviction just reclaimed (spec.md §4.2: "evicting a shared data entry
// evicts every sharer's tag").
func (c *ApproximateDedup) invalidateChain(r *req.MemReq, head int32) {
	for tagIx := head; tagIx != arrays.InvalidIx; {
		next := c.tags.ReadNext(tagIx)
		c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
		c.tags.Invalidate(tagIx)
		tagIx = next
	}
}

func (c *ApproximateDedup) evictTag(r *req.MemReq, tagIx int32) {
	c.detach(tagIx)
	c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
	c.tags.Invalidate(tagIx)
}

func (c *ApproximateDedup) isApproximate(addr req.Address) bool {
	_, ok := c.regions.Lookup(addr)
	return ok
}

func (c *ApproximateDedup) Retry(now req.Cycle) []Result {
	var out []Result
	for _, pending := range c.mshrs.DrainReady(now) {
		pr := pending
		if res, err := c.Access(&pr, nil); err == nil {
			out = append(out, res)
		}
	}
	return out
}

func (c *ApproximateDedup) Stats() Stats {
	return Stats{
		ValidTagLines:    c.tags.ValidLines(),
		ValidTagSegments: c.tags.ValidSegments(),
		ValidDataLines:   c.data.ValidLines(),
	}
}
