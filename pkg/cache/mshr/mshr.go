// Package mshr implements the miss-status-holding-register pool that bounds
// outstanding misses (spec.md §5): up to NumMSHRs concurrent misses are
// admitted; beyond that, accesses park on a pending queue and are retried
// one cycle later.
//
// Per spec.md §5, the pool, the pending queue, and last_acc_cycle /
// last_free_cycle are accessed only inside the outer simulator's per-bank
// lock - this type does no locking of its own; callers serialize access.
package mshr

import "github.com/llcsim/approxcache/pkg/cache/req"

// Pool tracks in-flight misses and the low-priority pending queue.
type Pool struct {
	capacity      int
	inFlight      int
	pending       []req.MemReq
	lastAccCycle  req.Cycle
	lastFreeCycle req.Cycle
}

// New builds a pool admitting up to capacity concurrent misses.
func New(capacity int) *Pool {
	return &Pool{capacity: capacity}
}

// TryAcquire admits a miss if the pool isn't full, returning true on
// success. On failure the caller should park r via Park.
func (p *Pool) TryAcquire(at req.Cycle) bool {
	if p.inFlight >= p.capacity {
		return false
	}
	p.inFlight++
	p.lastAccCycle = at
	return true
}

// Release returns one MSHR to the pool when a miss completes.
func (p *Pool) Release(at req.Cycle) {
	if p.inFlight > 0 {
		p.inFlight--
	}
	p.lastFreeCycle = at
}

// Park queues r on the pending list; it is retried one cycle later by the
// caller re-driving the access (spec.md §5: "requeue(cycle) re-schedules").
func (p *Pool) Park(r req.MemReq) {
	p.pending = append(p.pending, r)
}

// DrainReady pops every pending request queued strictly before `now`,
// in FIFO order, for the caller to retry.
func (p *Pool) DrainReady(now req.Cycle) []req.MemReq {
	var ready, rest []req.MemReq
	for _, r := range p.pending {
		if r.Cycle < now {
			ready = append(ready, r)
		} else {
			rest = append(rest, r)
		}
	}
	p.pending = rest
	return ready
}

// InFlight reports the current number of admitted misses.
func (p *Pool) InFlight() int { return p.inFlight }

// Full reports whether the pool has no free MSHRs.
func (p *Pool) Full() bool { return p.inFlight >= p.capacity }

// AllowLowPriority reports whether a low-priority access (e.g. a
// writeback event) may proceed this cycle: per spec.md §5, "Low-priority
// accesses... succeed only if the cycle's high-priority slot was unused on
// the previous cycle; otherwise they requeue."
func (p *Pool) AllowLowPriority(cycle req.Cycle) bool {
	return p.lastAccCycle < cycle-1 || p.lastAccCycle == 0
}
