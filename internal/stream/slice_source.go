package stream

import (
	"io"

	"CascadeReplay/internal/event"
)

// SliceSource serves a pre-built slice of events. Used for small
// in-memory streams and throughout the tests.
type SliceSource struct {
	name     string
	priority int
	events   []event.Event
	next     int
}

// NewSliceSource wraps a slice of events as a Source. The slice must
// already be sorted by (time, seq).
func NewSliceSource(name string, priority int, events []event.Event) *SliceSource {
	return &SliceSource{name: name, priority: priority, events: events}
}

func (s *SliceSource) Name() string  { return s.name }
func (s *SliceSource) Priority() int { return s.priority }

func (s *SliceSource) Next() (event.Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	evt := s.events[s.next]
	s.next++
	return evt, nil
}
