package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/fs"
)

// Variant selects which of the four access-procedure state machines a
// Cache built from an Options runs (spec.md §2).
type Variant string

const (
	VariantExactBDI         Variant = "exact_bdi"
	VariantApproximateDedup Variant = "approximate_dedup"
	VariantUniDoppelganger  Variant = "uni_doppelganger"
	VariantDedupBDI         Variant = "dedup_bdi"
)

// Options enumerates every construction parameter a cache needs (spec.md
// §4, §5, §6). It is deliberately flat and serializable so it can round-trip
// through YAML or JWCC config files unchanged.
type Options struct {
	Name    string  `json:"name" yaml:"name"`
	Variant Variant `json:"variant" yaml:"variant"`

	NumTagLines uint32 `json:"num_tag_lines" yaml:"num_tag_lines"`
	TagAssoc    uint32 `json:"tag_assoc" yaml:"tag_assoc"`

	NumDataLines uint32 `json:"num_data_lines" yaml:"num_data_lines"`
	DataAssoc    uint32 `json:"data_assoc" yaml:"data_assoc"`

	LineSize int `json:"line_size" yaml:"line_size"`

	HashSize uint32 `json:"hash_size" yaml:"hash_size"` // hash array lines
	MapSize  int    `json:"map_size" yaml:"map_size"`   // doppelganger fingerprint bits

	AccessLatency   uint64 `json:"access_latency" yaml:"access_latency"`
	EvictionLatency uint64 `json:"eviction_latency" yaml:"eviction_latency"`

	NumMSHRs int `json:"num_mshrs" yaml:"num_mshrs"`

	SampleK         uint32 `json:"sample_k" yaml:"sample_k"`                   // dedup data array's k=4 sampling width
	RandomLoopTrial int    `json:"random_loop_trial" yaml:"random_loop_trial"` // BDI data array's victim-set search width

	FloatCutBits  int `json:"float_cut_bits" yaml:"float_cut_bits"`
	DoubleCutBits int `json:"double_cut_bits" yaml:"double_cut_bits"`

	Seed int64 `json:"seed" yaml:"seed"`

	Regions []region.Region `json:"regions" yaml:"regions"`
}

// DefaultOptions returns the baseline configuration: a 1MB, 16-way exact BDI
// last-level cache with 64-byte lines.
func DefaultOptions() Options {
	return Options{
		Name:            "llc0",
		Variant:         VariantExactBDI,
		NumTagLines:     16384,
		TagAssoc:        16,
		NumDataLines:    16384,
		DataAssoc:       16,
		LineSize:        64,
		HashSize:        16384,
		MapSize:         16,
		AccessLatency:   30,
		EvictionLatency: 10,
		NumMSHRs:        16,
		SampleK:         4,
		RandomLoopTrial: 8,
		FloatCutBits:    8,
		DoubleCutBits:   16,
		Seed:            1,
	}
}

// Validate checks invariants config loading can't enforce by construction
// (spec.md §7: "invalid configuration... returned as an error at
// construction, never discovered mid-simulation").
func (o Options) Validate() error {
	if o.LineSize != 64 {
		return fmt.Errorf("%w: got %d", ErrLineSizeUnsupported, o.LineSize)
	}
	if o.TagAssoc == 0 || o.NumTagLines%o.TagAssoc != 0 {
		return fmt.Errorf("%w: num_tag_lines=%d tag_assoc=%d", ErrAssocNotDivisor, o.NumTagLines, o.TagAssoc)
	}
	if o.DataAssoc == 0 || o.NumDataLines%o.DataAssoc != 0 {
		return fmt.Errorf("%w: num_data_lines=%d data_assoc=%d", ErrAssocNotDivisor, o.NumDataLines, o.DataAssoc)
	}
	if o.TagAssoc == 0 || o.HashSize%o.TagAssoc != 0 {
		return fmt.Errorf("%w: hash_size=%d tag_assoc=%d", ErrAssocNotDivisor, o.HashSize, o.TagAssoc)
	}
	if o.NumMSHRs <= 0 {
		return ErrZeroMSHRs
	}
	switch o.Variant {
	case VariantExactBDI, VariantApproximateDedup, VariantUniDoppelganger, VariantDedupBDI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVariant, o.Variant)
	}
	for i, a := range o.Regions {
		for j, b := range o.Regions {
			if i != j && a.LowAddr < b.HighAddr && b.LowAddr < a.HighAddr {
				return fmt.Errorf("%w: region %d overlaps region %d", ErrRegionOverlap, i, j)
			}
		}
	}
	return nil
}

// LoadConfig reads path off the real filesystem; see LoadConfigFS.
func LoadConfig(path string) (Options, error) {
	return LoadConfigFS(fs.NewReal(), path)
}

// LoadConfigFS reads path through fsys, sniffing the format from its
// extension: ".yaml" / ".yml" parse as YAML; ".json", ".jsonc" and
// extensionless files parse as JWCC via hujson, matching the looser config
// style developers actually hand-edit; any other extension is rejected with
// ErrUnknownExtension. Taking fsys as an
// explicit argument, rather than calling os.ReadFile directly, lets callers
// substitute a fake in tests without touching disk.
func LoadConfigFS(fsys fs.FS, path string) (Options, error) {
	raw, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Options{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return Options{}, fmt.Errorf("%w: %s: %v", ErrConfigFileRead, path, err)
	}

	opts := DefaultOptions()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &opts); err != nil {
			return Options{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
		}
	case ".json", ".jsonc", "":
		std, err := hujson.Standardize(raw)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
		}
		if err := json.Unmarshal(std, &opts); err != nil {
			return Options{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
		}
	default:
		return Options{}, fmt.Errorf("%w: %s", ErrUnknownExtension, ext)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
