// Package stats aggregates per-access counters across a simulation run and
// dumps them to disk atomically, so a crashed or interrupted run never
// leaves a half-written stats file for downstream tooling to trip over.
package stats

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/llcsim/approxcache/pkg/cache/variant"
	"github.com/llcsim/approxcache/pkg/fs"
)

// Counters is the process-wide statistics an outer simulator accumulates
// across every Access/Retry call it makes into a cache (spec.md §6 counts
// hits/misses/evictions as the caller's responsibility, not the cache's).
type Counters struct {
	Accesses  uint64 `json:"accesses"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Parked    uint64 `json:"parked"` // ErrMSHRsFull retries
	Evictions uint64 `json:"evictions"`

	// Snapshot of the cache's own end-of-run occupancy, taken once at Dump
	// time rather than tracked incrementally.
	Final variant.Stats `json:"final"`
}

// Record folds one Result into the running counters. It does not count
// evictions directly — a cache's variant.Stats only reports current
// occupancy, not a lifetime eviction count — so callers that care about
// evictions should derive the delta themselves and call AddEviction.
func (c *Counters) Record(res variant.Result, err error) {
	if err != nil {
		c.Parked++
		return
	}
	c.Accesses++
	if res.Hit {
		c.Hits++
	} else {
		c.Misses++
	}
}

// AddEviction increments the eviction count by n, for callers tracking
// occupancy deltas between accesses themselves.
func (c *Counters) AddEviction(n uint64) {
	c.Evictions += n
}

// HitRate returns Hits/Accesses, or 0 if there were no accesses.
func (c *Counters) HitRate() float64 {
	if c.Accesses == 0 {
		return 0
	}
	return float64(c.Hits) / float64(c.Accesses)
}

// Dump snapshots the cache's final occupancy into c and writes c as
// indented JSON to path, atomically (rename over any existing file).
func Dump(path string, c Counters, final variant.Stats) error {
	c.Final = final

	body, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal: %w", err)
	}
	body = append(body, '\n')

	writer := fs.NewAtomicWriter(fs.NewReal())
	if err := writer.WriteWithDefaults(path, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("stats: write %s: %w", path, err)
	}
	return nil
}
