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

// ExactBDI is the simplest variant (spec.md §4.7): every resident line owns
// its tag exclusively (no content sharing), compressed with BDI purely to
// account for its true occupied footprint. A tag's set holds at most assoc
// lines, one per tag slot, against a budget of assoc*8 segments (the
// uncompressed size of that many lines): the encoding sets each line's
// recorded footprint, but does not let a set hold more than assoc lines.
type ExactBDI struct {
	base
	tags  *arrays.TagArray
	bytes [][]byte
	cut   CutSizes
}

// CutSizes is the float/double approximation-cut width in bits (spec.md
// §4.5's last paragraph), applied before BDI compression whenever an
// address falls in an annotated float or double region.
type CutSizes struct {
	FloatBits  int
	DoubleBits int
}

// NewExactBDI builds an ExactBDI cache.
func NewExactBDI(numTagLines, tagAssoc uint32, hf *hashfamily.H3, rp replacement.Policy, coh coherence.Controller, rec timingbus.Recorder, mshrs *mshr.Pool, regions *region.Table, cut CutSizes, accessLatency, evictionLatency req.Cycle, lineSize int) *ExactBDI {
	return &ExactBDI{
		base: base{
			lineSize:        lineSize,
			accessLatency:   accessLatency,
			evictionLatency: evictionLatency,
			coh:             coh,
			rec:             rec,
			mshrs:           mshrs,
			regions:         regions,
		},
		tags:  arrays.NewTagArray(numTagLines, tagAssoc, hf, rp),
		bytes: make([][]byte, numTagLines),
		cut:   cut,
	}
}

func (c *ExactBDI) Access(r *req.MemReq, payload []byte) (Result, error) {
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

func (c *ExactBDI) hit(r *req.MemReq, tagIx int32, payload []byte) Result {
	start, resp, _ := c.chain(timingbus.Hit, r.Cycle, false)

	if r.Type == req.PUTX && payload != nil {
		c.rewrite(r, tagIx, payload)
	}

	respCycle := c.coh.ProcessAccess(r, tagIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	return c.pushRecord(r, true, start, resp)
}

// rewrite recompresses payload into tagIx's existing slot, cascading
// evictions within the set if the new encoding needs more segments than the
// old one freed (spec.md §4.1, invariant 3; §4.7).
func (c *ExactBDI) rewrite(r *req.MemReq, tagIx int32, payload []byte) {
	line := c.approximate(r.LineAddr, payload)
	compressed := bdi.Compress(line)

	kept := map[int32]bool{tagIx: true}
	for {
		victim, _, mustEvict := c.tags.NeedEviction(r.LineAddr, r, compressed.Segments(), kept)
		if !mustEvict {
			break
		}
		c.evict(r, victim)
		kept[victim] = true
	}

	c.tags.ChangeInPlace(arrays.NewInsertArgs(r.LineAddr, tagIx, tagIx, arrays.InvalidIx, arrays.InvalidIx, c.isApproximate(r.LineAddr), compressed.Encoding), r, true)
	c.bytes[tagIx] = line
}

func (c *ExactBDI) miss(r *req.MemReq, payload []byte) (Result, error) {
	if !c.admit(r) {
		return Result{}, ErrMSHRsFull
	}
	evicting := false
	defer func() { c.mshrs.Release(r.Cycle) }()

	if !c.coh.ShouldAllocate(r) {
		start, resp, _ := c.chain(timingbus.MissStart, r.Cycle, false)
		return c.pushRecord(r, false, start, resp), nil
	}

	line := c.approximate(r.LineAddr, payload)
	compressed := bdi.Compress(line)

	slotIx, _ := c.tags.Preinsert(r.LineAddr, r)
	kept := map[int32]bool{slotIx: true}
	if c.tags.IsValid(slotIx) {
		c.evict(r, slotIx)
		evicting = true
	}
	for {
		victim, _, mustEvict := c.tags.NeedEviction(r.LineAddr, r, compressed.Segments(), kept)
		if !mustEvict {
			break
		}
		c.evict(r, victim)
		kept[victim] = true
		evicting = true
	}

	start, resp, wb := c.chain(timingbus.MissStart, r.Cycle, evicting)
	c.tags.Postinsert(arrays.NewInsertArgs(r.LineAddr, slotIx, slotIx, arrays.InvalidIx, arrays.InvalidIx, c.isApproximate(r.LineAddr), compressed.Encoding), r, true)
	c.bytes[slotIx] = line

	respCycle := c.coh.ProcessAccess(r, slotIx, resp.End())
	resp.Duration = respCycle - resp.MinStart
	if wb != nil {
		c.coh.ProcessEviction(r, r.LineAddr, slotIx, wb.MinStart)
	}
	return c.pushRecord(r, false, start, resp), nil
}

func (c *ExactBDI) evict(r *req.MemReq, tagIx int32) {
	dies, _, _ := c.tags.EvictAssociatedData(tagIx)
	if dies {
		c.bytes[tagIx] = nil
	}
	c.coh.ProcessEviction(r, c.tags.ReadAddress(tagIx), tagIx, r.Cycle)
	c.tags.Invalidate(tagIx)
}

// approximate runs the float/double cut pass, if addr falls in an annotated
// region, then returns the (possibly modified) line (spec.md §4.5's last
// paragraph: cutting low mantissa bits before compression so BDI sees more
// repeated high-order bytes).
func (c *ExactBDI) approximate(addr req.Address, payload []byte) []byte {
	line := payload
	if line == nil {
		line = make([]byte, c.lineSize)
	}
	reg, ok := c.regions.Lookup(addr)
	if !ok || !reg.DataType.IsFloat() {
		return line
	}
	cutBits := c.cut.FloatBits
	if reg.DataType.Size() == 8 {
		cutBits = c.cut.DoubleBits
	}
	return bdi.ApproximateCut(line, reg.DataType, cutBits)
}

func (c *ExactBDI) isApproximate(addr req.Address) bool {
	_, ok := c.regions.Lookup(addr)
	return ok
}

func (c *ExactBDI) Retry(now req.Cycle) []Result {
	var out []Result
	for _, pending := range c.mshrs.DrainReady(now) {
		pr := pending
		res, err := c.Access(&pr, nil)
		if err == nil {
			out = append(out, res)
		}
	}
	return out
}

func (c *ExactBDI) Stats() Stats {
	return Stats{ValidTagLines: c.tags.ValidLines(), ValidTagSegments: c.tags.ValidSegments()}
}
