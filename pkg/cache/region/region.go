// Package region holds the process-wide approximate-region table: the
// user-annotated address ranges that tell the cache core what scalar type
// and value envelope live at a given address (spec.md §6, "Shared process
// state").
//
// The table is input-only and is handed to a cache at construction time as
// an explicit argument (spec.md §9: "pass as an explicit context... no
// module-level statics except in tests").
package region

import "github.com/llcsim/approxcache/pkg/cache/req"

// Region describes one annotated address range.
type Region struct {
	LowAddr  req.Address
	HighAddr req.Address // exclusive
	DataType req.DataType
	MinValue req.DataValue
	MaxValue req.DataValue
}

// contains reports whether addr falls within [LowAddr, HighAddr).
func (r Region) contains(addr req.Address) bool {
	return addr >= r.LowAddr && addr < r.HighAddr
}

// Table is the shared, read-only region table. The zero value is an empty
// table (every lookup misses), which is a valid and common configuration
// for exact, non-approximate caches.
type Table struct {
	regions []Region
}

// NewTable builds a table from a set of regions. Regions are not required to
// be sorted or non-overlapping; Lookup always resolves the first match in
// the order given, mirroring the linear scan the spec calls for.
func NewTable(regions []Region) *Table {
	cp := make([]Region, len(regions))
	copy(cp, regions)
	return &Table{regions: cp}
}

// Lookup resolves addr to its annotated region by linear scan (spec.md §6).
// The second return value is false if no region covers the address, which
// means the line should be treated as opaque (non-approximate) bytes.
func (t *Table) Lookup(addr req.Address) (Region, bool) {
	if t == nil {
		return Region{}, false
	}
	for _, r := range t.regions {
		if r.contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}
