// Package dispatch implements the typed pub/sub bus replay events fan out
// through: callbacks keyed by (family, id), payload constructors, and
// synchronous in-order delivery on the parse goroutine.
package dispatch

import (
	"fmt"

	"github.com/arloliu/rewind/errs"
)

// Family is one of the fixed message namespaces.
type Family uint8

// Message families.
const (
	// Status carries replay lifecycle events.
	Status Family = iota
	// Dem carries outer DEM records keyed by record kind.
	Dem
	// Net carries inner NET/SVC records keyed by record kind.
	Net
	// User carries user sub-messages keyed by their sub-type.
	User
	// Entity carries entity references keyed by class id.
	Entity
	// EntityDelta carries updated-field sets keyed by class id.
	EntityDelta

	familyCount
)

func (f Family) String() string {
	switch f {
	case Status:
		return "Status"
	case Dem:
		return "Dem"
	case Net:
		return "Net"
	case User:
		return "User"
	case Entity:
		return "Entity"
	case EntityDelta:
		return "EntityDelta"
	default:
		return "Unknown"
	}
}

// Event is the borrowed view a callback receives. The payload is owned by
// the dispatcher for the duration of the call; callbacks must copy what
// they keep.
type Event struct {
	Tick    uint32
	ID      uint32
	Payload any
}

// Callback consumes one event.
type Callback func(*Event)

// Constructor turns a raw payload into the parsed message for one
// (family, id) pair.
type Constructor func(data []byte) (any, error)

// Dispatcher is a single-threaded pub/sub bus. Callbacks run synchronously
// on the dispatching goroutine in registration order; a callback must not
// mutate the callback table of the family being dispatched.
type Dispatcher struct {
	callbacks    [familyCount]map[uint32][]Callback
	constructors [familyCount]map[uint32]Constructor
	defaults     [familyCount]Constructor
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	d := &Dispatcher{}
	for f := range d.callbacks {
		d.callbacks[f] = make(map[uint32][]Callback)
		d.constructors[f] = make(map[uint32]Constructor)
	}

	return d
}

// On registers a callback for the given (family, id) and returns a function
// that removes it again.
func (d *Dispatcher) On(f Family, id uint32, cb Callback) (remove func()) {
	d.callbacks[f][id] = append(d.callbacks[f][id], cb)
	slot := len(d.callbacks[f][id]) - 1

	return func() {
		cbs := d.callbacks[f][id]
		if slot < len(cbs) && cbs[slot] != nil {
			cbs[slot] = nil
		}
	}
}

// HasCallback reports whether any callback is registered at (family, id).
func (d *Dispatcher) HasCallback(f Family, id uint32) bool {
	for _, cb := range d.callbacks[f][id] {
		if cb != nil {
			return true
		}
	}

	return false
}

// RegisterConstructor binds the payload constructor for one (family, id).
func (d *Dispatcher) RegisterConstructor(f Family, id uint32, ctor Constructor) {
	d.constructors[f][id] = ctor
}

// RegisterDefault binds the fallback constructor used for ids of a family
// with no explicit constructor; user sub-messages dispatch raw this way.
func (d *Dispatcher) RegisterDefault(f Family, ctor Constructor) {
	d.defaults[f] = ctor
}

// Retrieve constructs the parsed payload for (family, id) without
// dispatching it. The parser uses this to inline internal handling.
func (d *Dispatcher) Retrieve(f Family, id uint32, data []byte) (any, error) {
	ctor, ok := d.constructors[f][id]
	if !ok {
		if d.defaults[f] == nil {
			return nil, fmt.Errorf("%w: %s id %d", errs.ErrNoConversionAvailable, f, id)
		}
		ctor = d.defaults[f]
	}

	return ctor(data)
}

// Forward delivers an already-constructed payload to every callback at
// (family, id), in registration order.
func (d *Dispatcher) Forward(f Family, id, tick uint32, payload any) {
	cbs := d.callbacks[f][id]
	if len(cbs) == 0 {
		return
	}

	ev := Event{Tick: tick, ID: id, Payload: payload}
	for _, cb := range cbs {
		if cb != nil {
			cb(&ev)
		}
	}
}

// ForwardRaw constructs the payload for (family, id) and delivers it.
// Records nobody listens to are dropped without construction.
func (d *Dispatcher) ForwardRaw(f Family, id, tick uint32, data []byte) error {
	if !d.HasCallback(f, id) {
		return nil
	}

	payload, err := d.Retrieve(f, id, data)
	if err != nil {
		return err
	}

	d.Forward(f, id, tick, payload)

	return nil
}
