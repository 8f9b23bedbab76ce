// Package bdi implements Base-Delta-Immediate compression (spec.md §4.5):
// classifying a cache line into one of a small set of fixed size classes,
// plus the cut-size approximation pass that precedes compression for
// floating-point data (spec.md §4.5, last paragraph).
package bdi

import (
	"fmt"
	"math"

	"github.com/llcsim/approxcache/pkg/cache/req"
)

// Encoding identifies which BDI size class a line compressed to.
type Encoding uint8

const (
	Zero Encoding = iota
	Repetitive
	Base8Delta1
	Base8Delta2
	Base8Delta4
	Base4Delta1
	Base4Delta2
	Base2Delta1
	None
)

// segments maps each encoding to its size in 8-byte segments for a 64-byte
// line, per the table in spec.md §3.
var segments = map[Encoding]int{
	Zero:        1,
	Repetitive:  1,
	Base8Delta1: 2,
	Base8Delta2: 3,
	Base8Delta4: 5,
	Base4Delta1: 3,
	Base4Delta2: 5,
	Base2Delta1: 5,
	None:        8,
}

// Segments returns the 8-byte-segment footprint of e for a 64-byte line.
// For other line sizes the footprint scales linearly with None's share of
// the line (None is always lineSize/8 segments; the rest scale the same
// way since they are fixed per-element overheads over the same element
// count).
func (e Encoding) Segments(lineSize int) int {
	s, ok := segments[e]
	if !ok {
		panic(fmt.Sprintf("bdi: unknown encoding %d", e))
	}
	if lineSize == 64 {
		return s
	}
	scale := float64(lineSize) / 64
	return int(math.Ceil(float64(s) * scale))
}

func (e Encoding) String() string {
	switch e {
	case Zero:
		return "Zero"
	case Repetitive:
		return "Repetitive"
	case Base8Delta1:
		return "Base8Δ1"
	case Base8Delta2:
		return "Base8Δ2"
	case Base8Delta4:
		return "Base8Δ4"
	case Base4Delta1:
		return "Base4Δ1"
	case Base4Delta2:
		return "Base4Δ2"
	case Base2Delta1:
		return "Base2Δ1"
	case None:
		return "None"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// candidate enumerates the (baseSize, deltaSize) combinations tried, in the
// order spec.md §4.5 lists them, smallest footprint first within a base
// size. A later base size can still beat an earlier fit (Base4Δ1 is smaller
// than Base8Δ4), so Compress keeps the smallest fit across all of them.
var candidates = []struct {
	enc       Encoding
	baseSize  int
	deltaSize int
}{
	{Base8Delta1, 8, 1},
	{Base8Delta2, 8, 2},
	{Base8Delta4, 8, 4},
	{Base4Delta1, 4, 1},
	{Base4Delta2, 4, 2},
	{Base2Delta1, 2, 1},
}

// Compressed is the result of compressing one cache line. It carries enough
// information to reconstruct the original bytes (Decompress), which the
// testable-properties round trip in spec.md §8 requires.
type Compressed struct {
	Encoding  Encoding
	LineSize  int
	BaseSize  int
	DeltaSize int
	Base      int64
	Deltas    []int64 // one per element, only meaningful for the Base*Delta* encodings
	raw       []byte  // only populated for None: the line didn't compress
}

// Segments returns the 8-byte-segment footprint of this compressed line.
func (c Compressed) Segments() int {
	return c.Encoding.Segments(c.LineSize)
}

// Compress classifies line into the smallest BDI encoding that represents
// it exactly, per spec.md §4.5: try zero, try same-value repetition, then
// each (baseSize, deltaSize) pair in increasing footprint order; None if
// nothing else fits.
//
// The "bases ≤ 2" allowance in spec.md is implemented here as one explicit
// base plus an implicit zero base (see DESIGN.md) - every element must
// equal either 0 or (explicit base + a delta that fits in deltaSize signed
// bytes).
func Compress(line []byte) Compressed {
	n := len(line)
	if n == 0 || n%8 != 0 {
		panic("bdi: line length must be a positive multiple of 8 bytes")
	}

	if isAllZero(line) {
		return Compressed{Encoding: Zero, LineSize: n}
	}

	if rep, ok := tryRepetitive(line); ok {
		return rep
	}

	var best Compressed
	found := false
	for _, c := range candidates {
		if comp, ok := tryBaseDelta(line, c.enc, c.baseSize, c.deltaSize); ok && (!found || comp.Segments() < best.Segments()) {
			best, found = comp, true
		}
	}
	if found {
		return best
	}

	cp := make([]byte, n)
	copy(cp, line)
	return Compressed{Encoding: None, LineSize: n, raw: cp}
}

// Decompress reconstructs the original line bytes from a Compressed value.
func (c Compressed) Decompress() []byte {
	switch c.Encoding {
	case Zero:
		return make([]byte, c.LineSize)
	case Repetitive:
		out := make([]byte, c.LineSize)
		for off := 0; off < c.LineSize; off += 8 {
			putLE(out[off:off+8], uint64(c.Base))
		}
		return out
	case None:
		out := make([]byte, c.LineSize)
		copy(out, c.raw)
		return out
	default:
		out := make([]byte, c.LineSize)
		n := c.LineSize / c.BaseSize
		for i := 0; i < n; i++ {
			var val int64
			if c.Deltas[i] == implicitZero {
				val = 0
			} else {
				val = c.Base + c.Deltas[i]
			}
			putSigned(out[i*c.BaseSize:(i+1)*c.BaseSize], val, c.BaseSize)
		}
		return out
	}
}

// implicitZero is a sentinel marking "this element used the implicit zero
// base", distinct from any real delta value because it is stored
// out-of-band from the delta range check during Compress.
const implicitZero = math.MinInt64

func isAllZero(line []byte) bool {
	for _, b := range line {
		if b != 0 {
			return false
		}
	}
	return true
}

func tryRepetitive(line []byte) (Compressed, bool) {
	first := leUint64(line[0:8])
	for off := 8; off < len(line); off += 8 {
		if leUint64(line[off:off+8]) != first {
			return Compressed{}, false
		}
	}
	return Compressed{Encoding: Repetitive, LineSize: len(line), Base: int64(first)}, true
}

func tryBaseDelta(line []byte, enc Encoding, baseSize, deltaSize int) (Compressed, bool) {
	n := len(line) / baseSize
	elems := make([]int64, n)
	for i := 0; i < n; i++ {
		elems[i] = getSigned(line[i*baseSize:(i+1)*baseSize], baseSize)
	}

	base, ok := pickBase(elems)
	if !ok {
		return Compressed{}, false
	}

	lo, hi := deltaRange(deltaSize)
	deltas := make([]int64, n)
	for i, e := range elems {
		if e == 0 {
			deltas[i] = implicitZero
			continue
		}
		d := e - base
		if d < lo || d > hi {
			return Compressed{}, false
		}
		deltas[i] = d
	}

	return Compressed{
		Encoding:  enc,
		LineSize:  len(line),
		BaseSize:  baseSize,
		DeltaSize: deltaSize,
		Base:      base,
		Deltas:    deltas,
	}, true
}

// pickBase chooses the explicit non-zero base: the first non-zero element.
// Every other non-zero element must then fall within deltaSize of it (or be
// zero, which uses the implicit base instead).
func pickBase(elems []int64) (int64, bool) {
	for _, e := range elems {
		if e != 0 {
			return e, true
		}
	}
	// Not reached from Compress: every base size views the whole line, and
	// an all-zero line was already caught by isAllZero. A zero base keeps
	// the result well-defined for any other caller.
	return 0, true
}

func deltaRange(deltaSize int) (int64, int64) {
	bits := uint(deltaSize * 8)
	hi := int64(1)<<(bits-1) - 1
	lo := -(int64(1) << (bits - 1))
	return lo, hi
}

func getSigned(b []byte, size int) int64 {
	u := uint64(0)
	for i := 0; i < size; i++ {
		u |= uint64(b[i]) << uint(8*i)
	}
	bits := uint(size * 8)
	signBit := uint64(1) << (bits - 1)
	if u&signBit != 0 {
		return int64(u) - int64(1<<bits)
	}
	return int64(u)
}

func putSigned(b []byte, v int64, size int) {
	u := uint64(v)
	for i := 0; i < size; i++ {
		b[i] = byte(u >> uint(8*i))
	}
}

func leUint64(b []byte) uint64 {
	var x uint64
	for i := 0; i < 8; i++ {
		x |= uint64(b[i]) << uint(8*i)
	}
	return x
}

func putLE(b []byte, x uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(x >> uint(8*i))
	}
}

// ApproximateCut masks the low cutBits bits of every element before
// compression, per spec.md §4.5: "An approximation pass precedes
// compression for data annotated float/double: mask cut_size low bits of
// each element." Integer types are never cut - only DataType.IsFloat()
// elements go through this pass.
func ApproximateCut(line []byte, dt req.DataType, cutBits int) []byte {
	if !dt.IsFloat() || cutBits <= 0 {
		return line
	}
	size := dt.Size()
	out := make([]byte, len(line))
	copy(out, line)

	mask := ^uint64(0) << uint(cutBits)
	for off := 0; off+size <= len(out); off += size {
		var u uint64
		for i := 0; i < size; i++ {
			u |= uint64(out[off+i]) << uint(8*i)
		}
		u &= mask
		for i := 0; i < size; i++ {
			out[off+i] = byte(u >> uint(8*i))
		}
	}
	return out
}
