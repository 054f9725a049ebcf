package cache

import (
	"container/list"

	"github.com/hupe1980/clusterfs/internal/format"
)

// Strategy decides which cached handle is evicted next.
// Implementations are not required to be safe for concurrent use.
type Strategy interface {
	// Insert records a newly cached handle.
	Insert(h format.Handle)
	// Touch records a hit on a cached handle.
	Touch(h format.Handle)
	// Remove forgets a handle.
	Remove(h format.Handle)
	// Victim returns the handle to evict, without removing it.
	Victim() (format.Handle, bool)
}

// NewLRU returns a least-recently-used strategy.
func NewLRU() Strategy { return newListStrategy(true) }

// NewFIFO returns a first-in-first-out strategy. Hits do not refresh entries.
func NewFIFO() Strategy { return newListStrategy(false) }

type listStrategy struct {
	order       *list.List
	items       map[format.Handle]*list.Element
	moveOnTouch bool
}

func newListStrategy(moveOnTouch bool) *listStrategy {
	return &listStrategy{
		order:       list.New(),
		items:       make(map[format.Handle]*list.Element),
		moveOnTouch: moveOnTouch,
	}
}

func (s *listStrategy) Insert(h format.Handle) {
	if e, ok := s.items[h]; ok {
		s.order.MoveToFront(e)
		return
	}
	s.items[h] = s.order.PushFront(h)
}

func (s *listStrategy) Touch(h format.Handle) {
	if !s.moveOnTouch {
		return
	}
	if e, ok := s.items[h]; ok {
		s.order.MoveToFront(e)
	}
}

func (s *listStrategy) Remove(h format.Handle) {
	if e, ok := s.items[h]; ok {
		s.order.Remove(e)
		delete(s.items, h)
	}
}

func (s *listStrategy) Victim() (format.Handle, bool) {
	e := s.order.Back()
	if e == nil {
		return format.NotSet, false
	}
	return e.Value.(format.Handle), true
}
