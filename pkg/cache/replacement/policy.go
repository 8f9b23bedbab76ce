// Package replacement implements the replacement-policy contract consumed
// by the cache core (spec.md §6) plus three concrete policies (LRU, Random, ZCache)
// used by the default wiring and by tests.
//
// The replacement policy is an external collaborator from the core's point
// of view: the core calls it to rank candidates and to note uses, but never
// inspects its internal state.
package replacement

import "github.com/llcsim/approxcache/pkg/cache/req"

// Policy is the replacement-policy contract (spec.md §6).
type Policy interface {
	// Update notes a use of index (a hit, or a scan during a need_eviction
	// computation that doesn't itself evict).
	Update(index int32, r *req.MemReq)

	// Replaced notes that index was just filled by a forced swap-in
	// (a miss's victim immediately becomes the new resident).
	Replaced(index int32)

	// RankCands picks a victim among cands with no exclusions.
	RankCands(r *req.MemReq, cands []int32) int32

	// Rank picks a victim among cands, skipping any index present in
	// exceptions (spec.md §4.7: "the current tag's own ID is skipped from
	// the victim's LL" during a data-set cascade).
	Rank(r *req.MemReq, cands []int32, exceptions map[int32]bool) int32
}
