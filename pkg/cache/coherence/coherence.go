// Package coherence defines the coherence-controller contract consumed by
// the cache core (spec.md §6). The controller is an external collaborator:
// it is the sole authority on inter-level coherence state transitions and
// on the timing contribution of coherence-visible events. The core treats
// it as opaque and never inspects MESIState beyond forwarding the pointer.
package coherence

import "github.com/llcsim/approxcache/pkg/cache/req"

// Controller is the coherence contract (spec.md §6).
type Controller interface {
	// StartAccess may mutate r.Type (e.g. upgrading GETS to GETX). It
	// returns true when the access should be skipped outright because of a
	// race with an in-flight request for the same line (spec.md §7: benign
	// skip, no state change, response cycle equals request cycle).
	StartAccess(r *req.MemReq) bool

	// ShouldAllocate reports whether a miss for r should allocate a line at
	// all (some coherence protocols deny allocation for certain message
	// types, e.g. a clean writeback that misses).
	ShouldAllocate(r *req.MemReq) bool

	// ProcessAccess accounts for the coherence-visible cost of completing
	// the access for the tag at lineID, given the response would otherwise
	// complete at respCycle. It returns the (possibly later) actual
	// completion cycle.
	ProcessAccess(r *req.MemReq, lineID int32, respCycle req.Cycle) req.Cycle

	// ProcessEviction accounts for the coherence-visible cost of evicting
	// wbAddr (the victim tag's line address) starting at startCycle. It
	// returns the cycle at which the eviction's coherence work completes.
	ProcessEviction(r *req.MemReq, wbAddr req.Address, lineID int32, startCycle req.Cycle) req.Cycle

	// EndAccess releases whatever per-bank resources StartAccess acquired.
	EndAccess(r *req.MemReq)
}
