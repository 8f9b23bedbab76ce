// Package hashfamily implements the H3 family of universal hash functions
// (Carter-Wegman), used both to pick the set within an associative array and
// to fingerprint a cache line's content for the dedup hash array
// (spec.md §4.4).
package hashfamily

// H3 is one member of the H3 hash family: a random 64xoutBits boolean
// matrix. Hashing an input XORs together the matrix rows selected by the
// input's set bits. It is a textbook universal hash - cheap, and with a
// uniform output distribution for any fixed input distribution, which is
// all a cache set-index function needs.
type H3 struct {
	matrix  [64]uint64
	outBits int
}

// New builds an H3 instance producing outBits-wide outputs (1..64), seeded
// so that repeated constructions with the same seed are deterministic
// (tests rely on this - spec.md §8, "Hash function: deterministic and a
// pure function of bytes").
func New(seed int64, outBits int) *H3 {
	if outBits <= 0 || outBits > 64 {
		panic("hashfamily: outBits must be in [1, 64]")
	}
	rng := splitmix64{state: uint64(seed)}
	h := &H3{outBits: outBits}
	mask := mask64(outBits)
	for i := range h.matrix {
		h.matrix[i] = rng.next() & mask
	}
	return h
}

// Hash returns the outBits-wide hash of x.
func (h *H3) Hash(x uint64) uint64 {
	var out uint64
	for i := 0; i < 64; i++ {
		if x&(1<<uint(i)) != 0 {
			out ^= h.matrix[i]
		}
	}
	return out
}

// HashLine hashes a cache line by breaking it into 8-byte chunks,
// interpreting each as a little-endian u64, hashing each chunk, and XORing
// the results together, then masking to outBits (spec.md §4.4).
func (h *H3) HashLine(line []byte) uint64 {
	if len(line)%8 != 0 {
		panic("hashfamily: line length must be a multiple of 8 bytes")
	}
	var acc uint64
	for off := 0; off < len(line); off += 8 {
		chunk := leUint64(line[off : off+8])
		acc ^= h.Hash(chunk)
	}
	return acc & mask64(h.outBits)
}

func mask64(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func leUint64(b []byte) uint64 {
	var x uint64
	for i := 0; i < 8; i++ {
		x |= uint64(b[i]) << uint(8*i)
	}
	return x
}

// splitmix64 is a small, fast, deterministic PRNG used only to seed the H3
// matrix - no cryptographic properties required.
type splitmix64 struct{ state uint64 }

func (s *splitmix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}
