package spatial

import "showdown-arena/internal/ecs"

// Sweep is a one-axis sweep-and-prune broad phase: it projects each
// entity's bounding interval onto the X axis, sorts the endpoints, and
// reports every pair whose intervals overlap. The separation system feeds
// it the live enemies each tick and resolves the surviving pairs with a
// precise circle test.
//
// Endpoints are rebuilt from the given intervals on every call, in input
// order, and sorted with insertion sort; the sort approaches O(n) only when
// the intervals arrive nearly sorted by X.
type Sweep struct {
	endpoints []endpoint
	pairs     []Pair
	active    []ecs.EntityID
}

type endpoint struct {
	value float32
	id    ecs.EntityID
	isMin bool
}

// Pair is two entities whose X intervals overlap this tick.
type Pair struct {
	A, B ecs.EntityID
}

// Interval is one entity's projection onto the sweep axis: its center and
// collision radius.
type Interval struct {
	ID     ecs.EntityID
	X      float32
	Radius float32
}

// NewSweep creates a sweep sized for the expected entity count.
func NewSweep(capacity int) *Sweep {
	return &Sweep{
		endpoints: make([]endpoint, 0, capacity*2),
		pairs:     make([]Pair, 0, capacity),
		active:    make([]ecs.EntityID, 0, 16),
	}
}

// Overlaps rebuilds the endpoint list from the given intervals and returns
// every overlapping pair. The returned slice is reused by the next call.
func (s *Sweep) Overlaps(intervals []Interval) []Pair {
	s.pairs = s.pairs[:0]
	s.endpoints = s.endpoints[:0]

	for _, iv := range intervals {
		s.endpoints = append(s.endpoints,
			endpoint{value: iv.X - iv.Radius, id: iv.ID, isMin: true},
			endpoint{value: iv.X + iv.Radius, id: iv.ID, isMin: false},
		)
	}
	insertionSort(s.endpoints)

	s.active = s.active[:0]
	for _, ep := range s.endpoints {
		if ep.isMin {
			for _, other := range s.active {
				s.pairs = append(s.pairs, Pair{A: ep.id, B: other})
			}
			s.active = append(s.active, ep.id)
			continue
		}
		for i, id := range s.active {
			if id == ep.id {
				s.active[i] = s.active[len(s.active)-1]
				s.active = s.active[:len(s.active)-1]
				break
			}
		}
	}
	return s.pairs
}

// insertionSort orders endpoints in place; O(n) for nearly-sorted input.
func insertionSort(eps []endpoint) {
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && eps[j].value > key.value {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}
