package timingbus

import "github.com/llcsim/approxcache/pkg/cache/req"

// SliceRecorder is a simple in-memory Recorder, useful for tests and for
// cmd/simcache's standalone mode where there is no external event-driven
// simulator to hand events to.
type SliceRecorder struct {
	Records []Record
}

func NewSliceRecorder() *SliceRecorder {
	return &SliceRecorder{}
}

func (s *SliceRecorder) NewEvent(kind Kind, minStart, duration req.Cycle) *Event {
	return &Event{Kind: kind, MinStart: minStart, Duration: duration}
}

func (s *SliceRecorder) PushRecord(rec Record) {
	s.Records = append(s.Records, rec)
}
