// Package fingerprint computes the Doppelganger "map" fingerprint used to
// collapse numerically-similar lines onto one data slot (spec.md §4.6).
package fingerprint

import (
	"fmt"
	"math"

	"github.com/llcsim/approxcache/pkg/cache/req"
)

// Result is the fingerprint plus the statistics it was derived from, kept
// around for diagnostics and tests.
type Result struct {
	Map      uint32
	Avg      float64
	Range    float64
	AvgMap   int64
	RangeMap int64
}

// Compute derives the map fingerprint of line, whose elements are typed dt,
// against the annotated envelope [minValue, maxValue] and a given mapSize
// (spec.md §4.6).
//
// Integer elements outside the annotated envelope are a fatal invariant
// violation in the spec; this function reports that as an error instead of
// panicking so the caller (the per-access state machine, which is the
// authority on what's fatal per spec.md §7) can decide how to surface it.
// Floating-point elements silently saturate to the envelope instead.
func Compute(line []byte, dt req.DataType, minValue, maxValue req.DataValue, mapSize int) (Result, error) {
	if mapSize <= 0 || mapSize > 32 {
		return Result{}, fmt.Errorf("fingerprint: mapSize %d out of range", mapSize)
	}

	elems, err := decodeElements(line, dt, minValue, maxValue)
	if err != nil {
		return Result{}, err
	}
	if len(elems) == 0 {
		return Result{}, fmt.Errorf("fingerprint: empty line")
	}

	var sum, lo, hi float64
	lo, hi = elems[0], elems[0]
	for _, e := range elems {
		sum += e
		if e < lo {
			lo = e
		}
		if e > hi {
			hi = e
		}
	}
	avg := sum / float64(len(elems))
	rng := hi - lo

	annotatedMin, annotatedMax := envelope(dt, minValue, maxValue)
	step := (annotatedMax - annotatedMin) / math.Pow(2, float64(mapSize-1))
	if step == 0 {
		return Result{}, fmt.Errorf("fingerprint: zero-width annotated envelope")
	}

	avgMap := int64(avg / step)
	rangeMap := int64(rng / step)

	lowBits := uint32(mapSize)
	halfBits := uint32(mapSize / 2)

	m := lowMask(avgMap, lowBits) | (lowMask(rangeMap, halfBits) << lowBits)

	return Result{Map: m, Avg: avg, Range: rng, AvgMap: avgMap, RangeMap: rangeMap}, nil
}

func envelope(dt req.DataType, minValue, maxValue req.DataValue) (float64, float64) {
	if dt.IsFloat() {
		return minValue.Float, maxValue.Float
	}
	return float64(minValue.Int), float64(maxValue.Int)
}

// decodeElements interprets line's bytes as a sequence of dt-typed scalars.
// Integer elements are range-checked against [minValue, maxValue] and
// produce a fatal error on violation (spec.md §4.6, §7). Float elements are
// clamped into range instead.
func decodeElements(line []byte, dt req.DataType, minValue, maxValue req.DataValue) ([]float64, error) {
	size := dt.Size()
	if len(line)%size != 0 {
		return nil, fmt.Errorf("fingerprint: line length %d not a multiple of element size %d", len(line), size)
	}
	n := len(line) / size
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		chunk := line[i*size : (i+1)*size]
		switch dt {
		case req.F32:
			bits := uint32(leUint64(chunk, size))
			v := float64(math.Float32frombits(bits))
			out[i] = clampFloat(v, minValue.Float, maxValue.Float)
		case req.F64:
			bits := leUint64(chunk, size)
			v := math.Float64frombits(bits)
			out[i] = clampFloat(v, minValue.Float, maxValue.Float)
		default:
			v, err := decodeInt(chunk, dt, minValue.Int, maxValue.Int)
			if err != nil {
				return nil, err
			}
			out[i] = float64(v)
		}
	}
	return out, nil
}

func decodeInt(chunk []byte, dt req.DataType, minV, maxV int64) (int64, error) {
	size := dt.Size()
	u := leUint64(chunk, size)
	var v int64
	switch dt {
	case req.U8, req.U16, req.U32, req.U64:
		v = int64(u)
	default: // signed
		bits := uint(size * 8)
		signBit := uint64(1) << (bits - 1)
		if u&signBit != 0 {
			v = int64(u) - int64(1<<bits)
		} else {
			v = int64(u)
		}
	}
	if v < minV || v > maxV {
		return 0, fmt.Errorf("fingerprint: element %d outside annotated range [%d, %d]", v, minV, maxV)
	}
	return v, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func leUint64(b []byte, size int) uint64 {
	var x uint64
	for i := 0; i < size; i++ {
		x |= uint64(b[i]) << uint(8*i)
	}
	return x
}

func lowMask(v int64, bits uint32) uint32 {
	if bits == 0 {
		return 0
	}
	mask := uint32(1)<<bits - 1
	return uint32(v) & mask
}
