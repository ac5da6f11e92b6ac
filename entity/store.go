package entity

import (
	"fmt"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/format"
)

// Store is the fixed-capacity slotted array of live entities. Slots are
// addressed by entity id; an empty slot is distinguishable from a live one
// through Entity.Initialized.
type Store struct {
	slots []Entity
}

// NewStore allocates the full slot array up front, like the engine does.
func NewStore() *Store {
	return &Store{
		slots: make([]Entity, format.MaxEntities),
	}
}

// Len returns the slot capacity.
func (s *Store) Len() int {
	return len(s.slots)
}

// At returns the slot for the given id.
func (s *Store) At(id int32) (*Entity, error) {
	if id < 0 || int(id) >= len(s.slots) {
		return nil, fmt.Errorf("%w: %d", errs.ErrEntityIDTooLarge, id)
	}

	return &s.slots[id], nil
}

// Put places an entity into its slot.
func (s *Store) Put(id int32, e Entity) error {
	if id < 0 || int(id) >= len(s.slots) {
		return fmt.Errorf("%w: %d", errs.ErrEntityIDTooLarge, id)
	}
	s.slots[id] = e

	return nil
}

// Free clears the slot for the given id.
func (s *Store) Free(id int32) {
	if id >= 0 && int(id) < len(s.slots) {
		s.slots[id] = Entity{}
	}
}

// Reset clears every slot; used when seeking.
func (s *Store) Reset() {
	clear(s.slots)
}

// Live counts the occupied slots.
func (s *Store) Live() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].initialized {
			n++
		}
	}

	return n
}

// Each calls fn for every live entity in slot order until fn returns false.
func (s *Store) Each(fn func(e *Entity) bool) {
	for i := range s.slots {
		if s.slots[i].initialized && !fn(&s.slots[i]) {
			return
		}
	}
}
