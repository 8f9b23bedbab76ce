// Package timingbus defines the typed events and wait-graph edges the cache
// core emits into the outer event-driven timing simulator (spec.md §6). The
// outer simulator is an external collaborator; this package only describes
// the shape of what crosses that boundary.
package timingbus

import "github.com/llcsim/approxcache/pkg/cache/req"

// Kind identifies an event's role, used for stats bucketing and for the
// pushRecord trace (spec.md §6).
type Kind uint8

const (
	Hit Kind = iota
	HitWriteback
	MissStart
	MissResponse
	MissWriteback
	Delay
)

func (k Kind) String() string {
	switch k {
	case Hit:
		return "Hit"
	case HitWriteback:
		return "HitWriteback"
	case MissStart:
		return "MissStart"
	case MissResponse:
		return "MissResponse"
	case MissWriteback:
		return "MissWriteback"
	case Delay:
		return "Delay"
	default:
		return "Unknown"
	}
}

// Event is one node in the wait-graph the core builds for a single access.
// MinStart is the earliest cycle this event's work may begin; it is
// computed from the event's own dependency chain (spec.md §4.7: "Every
// event's min_start_cycle must not be earlier than a realistic dependency
// chain").
type Event struct {
	Kind     Kind
	MinStart req.Cycle
	Duration req.Cycle
	children []*Event
}

// End returns the earliest cycle by which this event's effects are visible
// to a dependent (MinStart + Duration).
func (e *Event) End() req.Cycle {
	return e.MinStart + e.Duration
}

// AddChild records that child depends on e: child's MinStart is raised to
// at least e.End() if it isn't already there (spec.md §6: "edges
// a.addChild(b) impose b.min_start_cycle >= a.min_start_cycle +
// a.duration").
func (e *Event) AddChild(child *Event) {
	if child.MinStart < e.End() {
		child.MinStart = e.End()
	}
	e.children = append(e.children, child)
}

// Children returns the events added via AddChild, in order.
func (e *Event) Children() []*Event {
	return e.children
}

// Record is the pushRecord payload (spec.md §6): a summary of one access
// for statistics and trace output.
type Record struct {
	StartEvent *Event
	EndEvent   *Event
	ReqCycle   req.Cycle
	RespCycle  req.Cycle
	LineAddr   req.Address
	Type       req.Type
}

// Recorder is the event-recorder contract the core emits into (spec.md §6).
type Recorder interface {
	// NewEvent allocates a new event of the given kind with the given
	// duration; callers set MinStart via AddChild edges from predecessors,
	// or directly for root events.
	NewEvent(kind Kind, minStart, duration req.Cycle) *Event

	// PushRecord submits a completed access's summary record.
	PushRecord(rec Record)
}
