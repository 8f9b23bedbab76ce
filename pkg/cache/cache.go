// Package cache wires the shared containers (pkg/cache/arrays), codecs
// (pkg/cache/bdi, pkg/cache/fingerprint), and external collaborators
// (pkg/cache/coherence, pkg/cache/timingbus, pkg/cache/replacement) into one
// of the four concrete variants in pkg/cache/variant, per an Options value
// (spec.md §6, "External Interfaces").
package cache

import (
	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/hashfamily"
	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/replacement"
	"github.com/llcsim/approxcache/pkg/cache/req"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
	"github.com/llcsim/approxcache/pkg/cache/variant"
)

// Deps bundles the external collaborators a cache doesn't own: spec.md §6
// treats the coherence controller, the event recorder, and the
// approximation region table as inputs from the outer simulator, not
// configuration the cache constructs for itself.
type Deps struct {
	Coherence coherence.Controller
	Recorder  timingbus.Recorder
	Regions   *region.Table
}

// New builds the variant named by opts.Variant, wiring fresh LRU
// replacement policies (matching DefaultOptions' baseline) and an H3 hash
// family seeded from opts.Seed for every array that needs one.
func New(opts Options, deps Deps) (variant.Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tagHF := hashfamily.New(opts.Seed, 32)
	contentHF := hashfamily.New(opts.Seed+1, 64)
	hashSetHF := hashfamily.New(opts.Seed+2, 32)

	mshrs := mshr.New(opts.NumMSHRs)
	accessLatency := req.Cycle(opts.AccessLatency)
	evictionLatency := req.Cycle(opts.EvictionLatency)
	hashAssoc := opts.TagAssoc

	switch opts.Variant {
	case VariantExactBDI:
		rp := replacement.NewLRU(int(opts.NumTagLines))
		return variant.NewExactBDI(
			opts.NumTagLines, opts.TagAssoc, tagHF, rp,
			deps.Coherence, deps.Recorder, mshrs, deps.Regions,
			variant.CutSizes{FloatBits: opts.FloatCutBits, DoubleBits: opts.DoubleCutBits},
			accessLatency, evictionLatency, opts.LineSize,
		), nil

	case VariantApproximateDedup:
		rp := replacement.NewLRU(int(opts.NumTagLines))
		return variant.NewApproximateDedup(
			opts.NumTagLines, opts.TagAssoc, opts.NumDataLines,
			opts.HashSize, hashAssoc, opts.SampleK,
			tagHF, contentHF, hashSetHF, rp,
			deps.Coherence, deps.Recorder, mshrs, deps.Regions,
			accessLatency, evictionLatency, opts.LineSize, opts.Seed,
		), nil

	case VariantUniDoppelganger:
		rp := replacement.NewLRU(int(opts.NumTagLines))
		return variant.NewUniDoppelganger(
			opts.NumTagLines, opts.TagAssoc, opts.NumDataLines,
			opts.HashSize, hashAssoc, opts.SampleK,
			tagHF, contentHF, hashSetHF, opts.MapSize, rp,
			deps.Coherence, deps.Recorder, mshrs, deps.Regions,
			accessLatency, evictionLatency, opts.LineSize, opts.Seed,
		), nil

	case VariantDedupBDI:
		rp := replacement.NewLRU(int(opts.NumTagLines))
		dataRP := replacement.NewLRU(int(opts.NumDataLines))
		return variant.NewDedupBDI(
			opts.NumTagLines, opts.TagAssoc, opts.NumDataLines/opts.DataAssoc, opts.DataAssoc,
			opts.HashSize, hashAssoc, tagHF, contentHF, hashSetHF,
			opts.RandomLoopTrial, rp, dataRP,
			deps.Coherence, deps.Recorder, mshrs, deps.Regions,
			accessLatency, evictionLatency, opts.LineSize, opts.Seed,
		), nil

	default:
		return nil, ErrUnknownVariant
	}
}
