package variant

import (
	"fmt"

	"github.com/llcsim/approxcache/pkg/cache/arrays"
	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/fingerprint"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
)

// UniDoppelganger matches lines on the Doppelganger map fingerprint instead
// of exact content (spec.md §4.6, §4.7): lines whose avg/range fall in the
// same fingerprint bucket share one representative data entry, with no
// requirement that their bytes be identical. Addresses outside any
// annotated region fall back to exact content hashing, same as
// ApproximateDedup, since there is no envelope to fingerprint against.
type UniDoppelganger struct {
	base
	tags    *arrays.TagArray
	data    *arrays.DedupDataArray
	hash    *arrays.HashArray
	chf     *hashfamily.H3
	mapSize int
}

func NewUniDoppelganger(numTagLines, tagAssoc, numDataLines, hashLines, hashAssoc, sampleK uint32, tagHF, contentHF, hashSetHF *hashfamily.H3, mapSize int, rp replacement.Policy, coh coherence.Controller, rec timingbus.Recorder, mshrs *mshr.Pool, regions *region.Table, accessLatency, evictionLatency req.Cycle, lineSize int, seed int64) *UniDoppelganger {
	data := arrays.NewDedupDataArray(numDataLines, sampleK, seed)
	return &UniDoppelganger{
		base: base{
			lineSize:        lineSize,
			accessLatency:   accessLatency,
			evictionLatency: evictionLatency,
			coh:             coh,
			rec:             rec,
			mshrs:           mshrs,
			regions:         regions,
		},
		tags:    arrays.NewTagArray(numTagLines, tagAssoc, tagHF, rp),
		data:    data,
		hash:    arrays.NewHashArray(hashLines, hashAssoc, hashSetHF, data),
		chf:     contentHF,
		mapSize: mapSize,
	}
}

func (c *UniDoppelganger) Access(r *req.MemReq, payload []byte) (Result, error) {
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

// key computes the matching key for addr/line: the Doppelganger map when
// addr falls in an annotated region, otherwise an exact content hash
// (spec.md §4.6).
func (c *UniDoppelganger) key(addr req.Address, line []byte) (k uint64, approximate bool) {
	if reg, ok := c.regions.Lookup(addr); ok {
		res, err := fingerprint.Compute(line, reg.DataType, reg.MinValue, reg.MaxValue, c.mapSize)
		if err != nil {
			// An out-of-envelope integer element is a fatal data/annotation
			// mismatch (spec.md §4.6, §7).
			panic(fmt.Sprintf("variant: UniDoppelganger: %v", err))
		}
		return uint64(res.Map), true
	}
	return c.chf.HashLine(line), false
}

func (c *UniDoppelganger) hit(r *req.MemReq, tagIx int32, payload []byte) Result {
	start, resp, _ := c.chain(timingbus.Hit, r.Cycle, false)

	if r.Type == req.PUTX && payload != nil {
		k, approx := c.key(r.LineAddr, payload)
		c.detach(tagIx)
		newDataIx, priorHead := c.shareOrAllocate(r, tagIx, payload, k, approx)
		c.tags.ChangeInPlace(arrays.NewInsertArgs(r.LineAddr, tagIx, newDataIx, arrays.InvalidIx, priorHead, approx, 0), r, true)
	}

	respCycle := c.coh.ProcessAccess(r, tagIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	return c.pushRecord(r, true, start, resp)
}

func (c *UniDoppelganger) miss(r *req.MemReq, payload []byte) (Result, error) {
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
	k, approx := c.key(r.LineAddr, line)

	slotIx, _ := c.tags.Preinsert(r.LineAddr, r)
	evicting := false
	if c.tags.IsValid(slotIx) {
		c.evictTag(r, slotIx)
		evicting = true
	}

	dataIx, priorHead := c.shareOrAllocate(r, slotIx, line, k, approx)

	start, resp, wb := c.chain(timingbus.MissStart, r.Cycle, evicting)
	c.tags.Postinsert(arrays.NewInsertArgs(r.LineAddr, slotIx, dataIx, arrays.InvalidIx, priorHead, approx, 0), r, true)

	respCycle := c.coh.ProcessAccess(r, slotIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	if wb != nil {
		c.coh.ProcessEviction(r, r.LineAddr, slotIx, wb.MinStart)
	}
	return c.pushRecord(r, false, start, resp), nil
}

func (c *UniDoppelganger) detach(tagIx int32) {
	dataIx := c.tags.ReadDataIx(tagIx)
	dies, newHead, _ := c.tags.EvictAssociatedData(tagIx)
	if dies {
		c.data.Postinsert(arrays.InvalidIx, 0, dataIx, nil)
		return
	}
	if newHead == arrays.InvalidIx {
		newHead = c.data.ReadListHead(dataIx)
	}
	c.data.Postinsert(newHead, c.data.ReadCounter(dataIx)-1, dataIx, nil)
}

// shareOrAllocate finds an existing bucket matching k, splicing joiningTag
// onto its sharer list, or allocates a fresh representative entry holding
// line's own bytes (spec.md §4.6, §4.4).
func (c *UniDoppelganger) shareOrAllocate(r *req.MemReq, joiningTag int32, line []byte, k uint64, approximate bool) (dataIx int32, priorHead int32) {
	if hashIx := c.hash.Lookup(k); hashIx != arrays.InvalidIx {
		dataIx := c.hash.ReadDataIx(hashIx)
		if c.data.Valid(dataIx) {
			priorHead := c.data.ReadListHead(dataIx)
			c.data.Postinsert(joiningTag, c.data.ReadCounter(dataIx)+1, dataIx, nil)
			return dataIx, priorHead
		}
		c.hash.Invalidate(hashIx)
	}

	dataIx, victimListHead := c.data.Preinsert()
	if victimListHead != arrays.InvalidIx {
		c.invalidateChain(r, victimListHead)
	}
	c.data.Postinsert(joiningTag, 1, dataIx, line)

	if hashIx := c.hash.Preinsert(k); hashIx != arrays.InvalidIx {
		c.hash.Postinsert(hashIx, k, dataIx, arrays.InvalidIx)
	}
	return dataIx, arrays.InvalidIx
}

func (c *UniDoppelganger) invalidateChain(r *req.MemReq, head int32) {
	for tagIx := head; tagIx != arrays.InvalidIx; {
		next := c.tags.ReadNext(tagIx)
		c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
		c.tags.Invalidate(tagIx)
		tagIx = next
	}
}

func (c *UniDoppelganger) evictTag(r *req.MemReq, tagIx int32) {
	c.detach(tagIx)
	c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
	c.tags.Invalidate(tagIx)
}

func (c *UniDoppelganger) Retry(now req.Cycle) []Result {
	var out []Result
	for _, pending := range c.mshrs.DrainReady(now) {
		pr := pending
		if res, err := c.Access(&pr, nil); err == nil {
			out = append(out, res)
		}
	}
	return out
}

func (c *UniDoppelganger) Stats() Stats {
	return Stats{
		ValidTagLines:    c.tags.ValidLines(),
		ValidTagSegments: c.tags.ValidSegments(),
		ValidDataLines:   c.data.ValidLines(),
	}
}
