// Package model provides a deliberately simple, in-memory state model of a
// single fully-associative TagArray set under LRU replacement.
//
// The model is intentionally easy to audit: it favors clarity over
// performance, tracking residency as a recency-ordered slice rather than
// the real array's index arena, so that property tests can replay a random
// operation sequence against both the model and the real TagArray and
// assert their observable behavior (hit/miss, evicted address, resident
// set) agrees at every step.
package model

import "github.com/llcsim/approxcache/pkg/cache/req"

// TagSetModel is the slow, obviously-correct reference: residents is kept
// in recency order, front (index 0) most recently touched.
type TagSetModel struct {
	capacity  int
	residents []req.Address
}

// NewTagSetModel builds a model of one set holding at most capacity lines.
func NewTagSetModel(capacity int) *TagSetModel {
	return &TagSetModel{capacity: capacity}
}

// Access records a request for addr, returning whether it was already
// resident and, on a miss that required eviction, the address evicted.
func (m *TagSetModel) Access(addr req.Address) (hit bool, evicted req.Address, evictedValid bool) {
	if i := m.indexOf(addr); i >= 0 {
		m.touch(i)
		return true, 0, false
	}

	if len(m.residents) >= m.capacity {
		victim := m.residents[len(m.residents)-1]
		m.residents = m.residents[:len(m.residents)-1]
		m.residents = append([]req.Address{addr}, m.residents...)
		return false, victim, true
	}

	m.residents = append([]req.Address{addr}, m.residents...)
	return false, 0, false
}

// Resident reports whether addr is currently modeled as present.
func (m *TagSetModel) Resident(addr req.Address) bool {
	return m.indexOf(addr) >= 0
}

// Len is the number of currently resident addresses.
func (m *TagSetModel) Len() int {
	return len(m.residents)
}

func (m *TagSetModel) indexOf(addr req.Address) int {
	for i, a := range m.residents {
		if a == addr {
			return i
		}
	}
	return -1
}

func (m *TagSetModel) touch(i int) {
	a := m.residents[i]
	m.residents = append(m.residents[:i], m.residents[i+1:]...)
	m.residents = append([]req.Address{a}, m.residents...)
}
