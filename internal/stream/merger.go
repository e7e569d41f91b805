package stream

import (
	"container/heap"
	"errors"
	"fmt"
	"io"

	"CascadeReplay/internal/event"
)

// ErrOrderingViolation is returned when a source yields an event that
// sorts before its predecessor. Replay determinism depends on sorted
// inputs, so the run aborts instead of silently reordering.
var ErrOrderingViolation = errors.New("ordering violation")

// Source yields events in non-decreasing (time, seq) order.
// Next returns io.EOF when exhausted.
type Source interface {
	// Name identifies the source in diagnostics
	Name() string

	// Priority breaks timestamp ties across sources; lower wins
	Priority() int

	Next() (event.Event, error)
}

type mergeItem struct {
	evt      event.Event
	src      int
	priority int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.evt.Time() != b.evt.Time() {
		return a.evt.Time() < b.evt.Time()
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.evt.Seq() < b.evt.Seq()
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) {
	*h = append(*h, x.(mergeItem))
}

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type sourceState struct {
	src      Source
	lastTime int64
	lastSeq  int64
	primed   bool
}

// Merger combines k sorted event sources into one totally ordered
// stream keyed by (time, source priority, seq). It holds exactly one
// pending event per live source, so memory stays O(k) regardless of
// stream length.
type Merger struct {
	states []sourceState
	heap   mergeHeap
	opened bool
}

// NewMerger builds a merger over the given sources.
func NewMerger(sources ...Source) *Merger {
	m := &Merger{states: make([]sourceState, len(sources))}
	for i, s := range sources {
		m.states[i] = sourceState{src: s}
	}
	return m
}

// Next returns the globally next event, or io.EOF once every source is
// drained. Any source error, including an ordering violation, is
// returned as-is and the merger must not be used afterwards.
func (m *Merger) Next() (event.Event, error) {
	if !m.opened {
		m.opened = true
		heap.Init(&m.heap)
		for i := range m.states {
			if err := m.advance(i); err != nil {
				return nil, err
			}
		}
	}

	if m.heap.Len() == 0 {
		return nil, io.EOF
	}

	item := heap.Pop(&m.heap).(mergeItem)
	if err := m.advance(item.src); err != nil {
		return nil, err
	}
	return item.evt, nil
}

// advance pulls the next event from source i, validates per-source
// ordering, and pushes it onto the heap.
func (m *Merger) advance(i int) error {
	st := &m.states[i]

	evt, err := st.src.Next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("source %s: %w", st.src.Name(), err)
	}

	if st.primed {
		if evt.Time() < st.lastTime ||
			(evt.Time() == st.lastTime && evt.Seq() < st.lastSeq) {
			return fmt.Errorf("source %s: event (t=%d seq=%d) after (t=%d seq=%d): %w",
				st.src.Name(), evt.Time(), evt.Seq(), st.lastTime, st.lastSeq,
				ErrOrderingViolation)
		}
	}
	st.lastTime = evt.Time()
	st.lastSeq = evt.Seq()
	st.primed = true

	heap.Push(&m.heap, mergeItem{evt: evt, src: i, priority: st.src.Priority()})
	return nil
}
