package variant

import (
	"github.com/llcsim/approxcache/pkg/cache/arrays"
	"github.com/llcsim/approxcache/pkg/cache/bdi"
	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
)

// DedupBDI combines content dedup with BDI compression (spec.md §4.3, §4.7):
// distinct tags sharing byte-identical content share one BDIDataArray slot,
// and that slot's footprint (in 8-byte segments) is whatever its BDI
// encoding says, so a data set's capacity pressure is measured in segments,
// not slot counts.
type DedupBDI struct {
	base
	tags *arrays.TagArray
	data *arrays.BDIDataArray
	hash *arrays.HashArray
	chf  *hashfamily.H3
}

func NewDedupBDI(numTagLines, tagAssoc, dataSets, dataAssoc, hashLines, hashAssoc uint32, tagHF, contentHF, hashSetHF *hashfamily.H3, randomLoopTrial int, rp replacement.Policy, dataRP replacement.Policy, coh coherence.Controller, rec timingbus.Recorder, mshrs *mshr.Pool, regions *region.Table, accessLatency, evictionLatency req.Cycle, lineSize int, seed int64) *DedupBDI {
	data := arrays.NewBDIDataArray(dataSets, dataAssoc, lineSize, randomLoopTrial, dataRP, seed)
	return &DedupBDI{
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

func (c *DedupBDI) Access(r *req.MemReq, payload []byte) (Result, error) {
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

func (c *DedupBDI) hit(r *req.MemReq, tagIx int32, payload []byte) Result {
	start, resp, _ := c.chain(timingbus.Hit, r.Cycle, false)

	if r.Type == req.PUTX && payload != nil {
		setIx, slotIx := c.tags.ReadDataIx(tagIx), c.tags.ReadSegmentIx(tagIx)
		if !c.data.IsSame(setIx, slotIx, payload) {
			c.detach(tagIx)
			compressed := bdi.Compress(payload)
			newSetIx, newSlotIx, priorHead := c.shareOrAllocate(r, tagIx, payload, compressed)
			c.tags.ChangeInPlace(arrays.NewInsertArgs(r.LineAddr, tagIx, newSetIx, newSlotIx, priorHead, c.isApproximate(r.LineAddr), compressed.Encoding), r, true)
		}
	}

	respCycle := c.coh.ProcessAccess(r, tagIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	return c.pushRecord(r, true, start, resp)
}

func (c *DedupBDI) miss(r *req.MemReq, payload []byte) (Result, error) {
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
	compressed := bdi.Compress(line)

	slotIx, _ := c.tags.Preinsert(r.LineAddr, r)
	evicting := false
	if c.tags.IsValid(slotIx) {
		c.evictTag(r, slotIx)
		evicting = true
	}

	setIx, dataSlotIx, priorHead := c.shareOrAllocate(r, slotIx, line, compressed)

	start, resp, wb := c.chain(timingbus.MissStart, r.Cycle, evicting)
	c.tags.Postinsert(arrays.NewInsertArgs(r.LineAddr, slotIx, setIx, dataSlotIx, priorHead, c.isApproximate(r.LineAddr), compressed.Encoding), r, true)

	respCycle := c.coh.ProcessAccess(r, slotIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	if wb != nil {
		c.coh.ProcessEviction(r, r.LineAddr, slotIx, wb.MinStart)
	}
	return c.pushRecord(r, false, start, resp), nil
}

func (c *DedupBDI) detach(tagIx int32) {
	setIx, slotIx := c.tags.ReadDataIx(tagIx), c.tags.ReadSegmentIx(tagIx)
	dies, newHead, _ := c.tags.EvictAssociatedData(tagIx)
	if dies {
		c.data.Invalidate(setIx, slotIx)
		return
	}
	if newHead == arrays.InvalidIx {
		newHead = c.data.ReadListHead(setIx, slotIx)
	}
	c.data.ChangeInPlace(arrays.SlotArgs{
		SetIx: setIx, SlotIx: slotIx,
		Counter:  c.data.ReadCounter(setIx, slotIx) - 1,
		ListHead: newHead,
		Encoding: c.data.ReadEncoding(setIx, slotIx),
	})
}

// shareOrAllocate finds an existing slot byte-identical to line via the
// hash array and splices joiningTag onto its sharer list, or allocates a
// fresh slot, cascading evictions within the chosen data set until enough
// segments are free (spec.md §4.3, §4.4).
func (c *DedupBDI) shareOrAllocate(r *req.MemReq, joiningTag int32, line []byte, compressed bdi.Compressed) (setIx, slotIx, priorHead int32) {
	h := c.chf.HashLine(line)
	if hashIx := c.hash.Lookup(h); hashIx != arrays.InvalidIx {
		setIx, slotIx := c.hash.ReadDataIx(hashIx), c.hash.ReadSegmentIx(hashIx)
		if c.data.IsValid(setIx, slotIx) && c.data.IsSame(setIx, slotIx, line) {
			priorHead := c.data.ReadListHead(setIx, slotIx)
			c.data.ChangeInPlace(arrays.SlotArgs{
				SetIx: setIx, SlotIx: slotIx,
				Counter:  c.data.ReadCounter(setIx, slotIx) + 1,
				ListHead: joiningTag,
				Encoding: c.data.ReadEncoding(setIx, slotIx),
			})
			return setIx, slotIx, priorHead
		}
		c.hash.Invalidate(hashIx)
	}

	needed := compressed.Segments()
	chosenSet := c.data.PreinsertSet(needed)

	kept := map[int32]bool{}
	lastFreed := arrays.InvalidIx
	for c.data.FreeSegments(chosenSet) < needed {
		victimSlot, victimListHead := c.data.PreinsertSlot(chosenSet, kept)
		if victimListHead != arrays.InvalidIx {
			c.invalidateChain(r, victimListHead)
		}
		c.data.Invalidate(chosenSet, victimSlot)
		kept[victimSlot] = true
		lastFreed = victimSlot
	}

	// The cascade above already freed everything the new line needs; place
	// it into the slot it just freed instead of ranking a fresh victim,
	// which would otherwise evict one live slot too many.
	finalSlot := lastFreed
	if finalSlot == arrays.InvalidIx {
		var finalVictimHead int32
		finalSlot, finalVictimHead = c.data.PreinsertSlot(chosenSet, kept)
		if finalVictimHead != arrays.InvalidIx {
			c.invalidateChain(r, finalVictimHead)
		}
	}

	c.data.Postinsert(arrays.SlotArgs{
		SetIx: chosenSet, SlotIx: finalSlot,
		Counter:  1,
		ListHead: joiningTag,
		Bytes:    line,
		Encoding: compressed.Encoding,
	})

	if hashIx := c.hash.Preinsert(h); hashIx != arrays.InvalidIx {
		c.hash.Postinsert(hashIx, h, chosenSet, finalSlot)
	}
	return chosenSet, finalSlot, arrays.InvalidIx
}

func (c *DedupBDI) invalidateChain(r *req.MemReq, head int32) {
	for tagIx := head; tagIx != arrays.InvalidIx; {
		next := c.tags.ReadNext(tagIx)
		c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
		c.tags.Invalidate(tagIx)
		tagIx = next
	}
}

func (c *DedupBDI) evictTag(r *req.MemReq, tagIx int32) {
	c.detach(tagIx)
	c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
	c.tags.Invalidate(tagIx)
}

func (c *DedupBDI) isApproximate(addr req.Address) bool {
	_, ok := c.regions.Lookup(addr)
	return ok
}

func (c *DedupBDI) Retry(now req.Cycle) []Result {
	var out []Result
	for _, pending := range c.mshrs.DrainReady(now) {
		pr := pending
		if res, err := c.Access(&pr, nil); err == nil {
			out = append(out, res)
		}
	}
	return out
}

func (c *DedupBDI) Stats() Stats {
	validSlots := 0
	for s := int32(0); s < int32(c.data.NumSets()); s++ {
		for i := int32(0); i < int32(c.data.Assoc()); i++ {
			if c.data.IsValid(s, i) {
				validSlots++
			}
		}
	}
	return Stats{
		ValidTagLines:    c.tags.ValidLines(),
		ValidTagSegments: c.tags.ValidSegments(),
		ValidDataLines:   validSlots,
	}
}
