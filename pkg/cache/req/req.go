// Package req defines the wire-level request/response vocabulary shared by
// every package under pkg/cache. It has no dependencies of its own so that
// the coherence, replacement, timing, array, and variant packages can all
// depend on it without creating import cycles.
package req

import "fmt"

// Address is a cache-line address (already shifted to line granularity by
// the caller; the core never shifts or masks it).
type Address uint64

// Cycle is a point in simulated time, as produced by the outer timing
// simulator's event graph.
type Cycle uint64

// Type is the coherence message type carried on a request.
type Type uint8

const (
	GETS Type = iota
	GETX
	PUTS
	PUTX
)

func (t Type) String() string {
	switch t {
	case GETS:
		return "GETS"
	case GETX:
		return "GETX"
	case PUTS:
		return "PUTS"
	case PUTX:
		return "PUTX"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// MESIState is the opaque coherence state carried by a request. The cache
// core never interprets it; it only forwards the pointer to the coherence
// controller, which is the sole authority on its meaning (spec.md §6).
type MESIState struct {
	// Value is intentionally untyped from the core's perspective - only the
	// external coherence controller assigns it meaning.
	Value int32
}

// MemReq is the request record that travels through a single access.
// SrcID identifies the requesting core/agent, State is the coherence state
// the requester attaches to the line.
type MemReq struct {
	Cycle    Cycle
	LineAddr Address
	Type     Type
	SrcID    int32
	State    *MESIState
}

// DataType is the scalar element type of an approximate region, used by the
// BDI cut-size approximation pass and the doppelganger map fingerprint.
type DataType uint8

const (
	U8 DataType = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
)

// IsFloat reports whether the type is a floating-point scalar. The BDI
// approximation pass and the map fingerprint both treat float/double
// elements differently from integers (saturating instead of failing fatally
// on out-of-range values).
func (d DataType) IsFloat() bool {
	return d == F32 || d == F64
}

// Size returns the element width in bytes.
func (d DataType) Size() int {
	switch d {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		panic(fmt.Sprintf("req: unknown data type %d", d))
	}
}

// DataValue is a scalar value annotated on an approximate region's bounds
// (min/max). It carries both an integer and a float interpretation; callers
// pick the right one based on the associated DataType.
type DataValue struct {
	Int   int64
	Float float64
}
