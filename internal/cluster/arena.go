package cluster

import "errors"

// ErrArenaFull is returned by Alloc when every slot is in use.
var ErrArenaFull = errors.New("cluster arena is full")

// Slot indexes a record in an Arena.
type Slot int32

// Ref is a slot plus the generation it was handed out with.
// A Ref whose generation no longer matches the slot is stale.
type Ref struct {
	Slot Slot
	Gen  uint32
}

// Arena is a fixed slab of Cluster records addressed by slot index.
//
// Released slots go onto a free stack and are handed to the next Alloc, so
// the number of live records never exceeds the capacity chosen at creation.
// Each release bumps the slot generation, which invalidates outstanding Refs.
type Arena struct {
	records []Cluster
	gens    []uint32
	inUse   []bool
	free    []Slot
}

// NewArena creates an arena with room for capacity records.
func NewArena(capacity int) *Arena {
	a := &Arena{
		records: make([]Cluster, capacity),
		gens:    make([]uint32, capacity),
		inUse:   make([]bool, capacity),
		free:    make([]Slot, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, Slot(i))
	}
	return a
}

// Alloc takes a free slot.
func (a *Arena) Alloc() (Ref, *Cluster, error) {
	if len(a.free) == 0 {
		return Ref{}, nil, ErrArenaFull
	}
	s := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.inUse[s] = true
	return Ref{Slot: s, Gen: a.gens[s]}, &a.records[s], nil
}

// Get resolves ref, returning nil if it is stale or out of range.
func (a *Arena) Get(ref Ref) *Cluster {
	if ref.Slot < 0 || int(ref.Slot) >= len(a.records) {
		return nil
	}
	if !a.inUse[ref.Slot] || a.gens[ref.Slot] != ref.Gen {
		return nil
	}
	return &a.records[ref.Slot]
}

// Release returns the slot of ref to the free stack.
func (a *Arena) Release(ref Ref) {
	if a.Get(ref) == nil {
		return
	}
	a.inUse[ref.Slot] = false
	a.gens[ref.Slot]++
	a.free = append(a.free, ref.Slot)
}

// Cap returns the number of slots.
func (a *Arena) Cap() int { return len(a.records) }

// Len returns the number of slots in use.
func (a *Arena) Len() int { return len(a.records) - len(a.free) }
