// Package variant implements the four per-access state machines (spec.md
// §4.7): ExactBDI, ApproximateDedup, UniDoppelganger, and DedupBDI. Each
// wires the same shared containers (arrays.TagArray, a data array, an
// optional arrays.HashArray) to the external collaborators - a
// coherence.Controller, a replacement.Policy (already folded into the
// arrays), a timingbus.Recorder, and the mshr.Pool - differently, per
// spec.md §4.7's access-procedure skeleton.
package variant

import (
	"fmt"

	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
)

// Cache is the contract every variant satisfies. A single call to Access
// drives one memory request through lookup, hit or miss handling, and
// event-chain construction (spec.md §4.7).
type Cache interface {
	// Access drives r (whose payload, if any, is given by payload) through
	// the cache. It returns ErrMSHRsFull if r had to be parked rather than
	// serviced this cycle; the caller is expected to retry it via Retry
	// once the pool drains (spec.md §5).
	Access(r *req.MemReq, payload []byte) (Result, error)

	// Retry re-drives requests the MSHR pool released this cycle. Callers
	// should invoke it once per cycle before handing new requests to
	// Access.
	Retry(now req.Cycle) []Result

	// Stats returns a point-in-time snapshot of occupancy counters, mostly
	// useful for tests and the driver binary's periodic reporting.
	Stats() Stats
}

// Stats is a point-in-time occupancy snapshot (spec.md §6, "stats dumps").
type Stats struct {
	ValidTagLines    uint32
	ValidTagSegments uint32
	ValidDataLines   int
}

// Result is what one Access call reports back to the caller: whether it hit
// and the cycle its response is visible (spec.md §6).
type Result struct {
	Req       req.MemReq
	Hit       bool
	RespCycle req.Cycle
	Record    timingbus.Record
}

// ErrMSHRsFull is returned when a miss could not be admitted because the
// MSHR pool was at capacity; the request has been parked and will surface
// again from Retry (spec.md §5).
var ErrMSHRsFull = fmt.Errorf("cache: no free mshr, request parked")

// base bundles the collaborators and bookkeeping every variant shares: the
// coherence controller, the event recorder, the MSHR pool, the
// approximation region table, and the fixed per-access latencies.
type base struct {
	lineSize        int
	accessLatency   req.Cycle
	evictionLatency req.Cycle

	coh     coherence.Controller
	rec     timingbus.Recorder
	mshrs   *mshr.Pool
	regions *region.Table
}

// chain builds the standard two-event hit or miss chain described in
// spec.md §4.7 and §6: a start event immediately followed by a response
// event accessLatency cycles later, plus an optional eviction-writeback
// event running concurrently off of the start event.
func (b *base) chain(kind timingbus.Kind, now req.Cycle, evicting bool) (*timingbus.Event, *timingbus.Event, *timingbus.Event) {
	start := b.rec.NewEvent(kind, now, 0)
	resp := b.rec.NewEvent(timingbus.MissResponse, now, b.accessLatency)
	if kind == timingbus.Hit || kind == timingbus.HitWriteback {
		resp = b.rec.NewEvent(timingbus.Hit, now, b.accessLatency)
	}
	start.AddChild(resp)

	var wb *timingbus.Event
	if evicting {
		wb = b.rec.NewEvent(timingbus.MissWriteback, now, b.evictionLatency)
		start.AddChild(wb)
	}
	return start, resp, wb
}

// pushRecord submits the completed access to the recorder and returns the
// Result the caller sees.
func (b *base) pushRecord(r *req.MemReq, hit bool, start, end *timingbus.Event) Result {
	rec := timingbus.Record{
		StartEvent: start,
		EndEvent:   end,
		ReqCycle:   r.Cycle,
		RespCycle:  end.End(),
		LineAddr:   r.LineAddr,
		Type:       r.Type,
	}
	b.rec.PushRecord(rec)
	return Result{Req: *r, Hit: hit, RespCycle: rec.RespCycle, Record: rec}
}

// admit tries to acquire an MSHR for a miss; on failure it parks r on the
// pool's pending queue so Retry picks it up later (spec.md §5).
func (b *base) admit(r *req.MemReq) bool {
	if b.mshrs.TryAcquire(r.Cycle) {
		return true
	}
	b.mshrs.Park(*r)
	return false
}
