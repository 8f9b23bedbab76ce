package coherence

import "github.com/llcsim/approxcache/pkg/cache/req"

// Sequential is a minimal Controller for standalone use and tests: it never
// races, always allows allocation, and adds a fixed latency to accesses and
// evictions. Real deployments plug in a protocol-specific controller from
// the outer simulator; this implementation exists so pkg/cache/variant is
// independently testable and so cmd/simcache has something to run without
// an external MOESI/MESI implementation.
type Sequential struct {
	AccessLat   req.Cycle
	EvictionLat req.Cycle
}

func NewSequential(accessLat, evictionLat req.Cycle) *Sequential {
	return &Sequential{AccessLat: accessLat, EvictionLat: evictionLat}
}

func (s *Sequential) StartAccess(*req.MemReq) bool { return false }

func (s *Sequential) ShouldAllocate(*req.MemReq) bool { return true }

func (s *Sequential) ProcessAccess(_ *req.MemReq, _ int32, respCycle req.Cycle) req.Cycle {
	return respCycle + s.AccessLat
}

func (s *Sequential) ProcessEviction(_ *req.MemReq, _ req.Address, _ int32, startCycle req.Cycle) req.Cycle {
	return startCycle + s.EvictionLat
}

func (s *Sequential) EndAccess(*req.MemReq) {}
