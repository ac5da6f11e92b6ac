package entity

import (
	"fmt"
	"strings"

	"github.com/arloliu/rewind/bitstream"
	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/sendtable"
)

// State is the PVS transition an entity saw last.
type State uint8

// Entity states.
const (
	StateDefault State = iota
	StateCreated
	StateOverwritten
	StateUpdated
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateDefault:
		return "Default"
	case StateCreated:
		return "Created"
	case StateOverwritten:
		return "Overwritten"
	case StateUpdated:
		return "Updated"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Class identifies one entity class from the class-info record.
type Class struct {
	// ID is the numeric class id; it indexes the flat table list.
	ID uint32
	// TableName is the send table backing this class.
	TableName string
	// NetworkName is the engine-side class name (C...).
	NetworkName string
}

// Delta records which fields the last update touched, for subscribers that
// want change sets instead of full entities.
type Delta struct {
	EntityID int32
	Fields   []int
}

// fieldTerminator ends the field-id list of an entity update.
const fieldTerminator = 0x3FFF

// Entity is one live instance of a networked class. Property slots align
// with the flat table; a slot stays uninitialized until a delta first
// touches it.
type Entity struct {
	id    int32
	class Class
	flat  *sendtable.FlatSendTable
	state State
	props []Property

	nameIndex   map[string]int
	initialized bool
}

// New creates an entity for the given slot with uninitialized properties.
func New(id int32, class Class, flat *sendtable.FlatSendTable) Entity {
	return Entity{
		id:          id,
		class:       class,
		flat:        flat,
		state:       StateCreated,
		props:       make([]Property, len(flat.Properties)+1),
		initialized: true,
	}
}

// Initialized reports whether this slot holds a live entity.
func (e *Entity) Initialized() bool {
	return e.initialized
}

// ID returns the slot id, or -1 after deletion.
func (e *Entity) ID() int32 {
	return e.id
}

// Class returns the entity class description.
func (e *Entity) Class() Class {
	return e.class
}

// ClassID returns the numeric class id.
func (e *Entity) ClassID() uint32 {
	return e.class.ID
}

// ClassName returns the network name of the entity class.
func (e *Entity) ClassName() string {
	return e.class.NetworkName
}

// State returns the last PVS transition.
func (e *Entity) State() State {
	return e.state
}

// SetState updates the PVS state. Deletion also resets the id to -1.
func (e *Entity) SetState(s State) {
	e.state = s
	if s == StateDeleted {
		e.id = -1
	}
}

// Rebind points an existing entity at a new class and flat table; used when
// a create header arrives for an already-live slot.
func (e *Entity) Rebind(id int32, class Class, flat *sendtable.FlatSendTable) {
	e.id = id
	e.class = class
	e.flat = flat
}

// FlatTable returns the flat table this entity decodes against.
func (e *Entity) FlatTable() *sendtable.FlatSendTable {
	return e.flat
}

// Properties returns the property slots, indexed by field id.
func (e *Entity) Properties() []Property {
	return e.props
}

// Property returns the property at the given field id.
func (e *Entity) Property(field int) (*Property, error) {
	if field < 0 || field >= len(e.props) {
		return nil, fmt.Errorf("%w: field %d of %s", errs.ErrUnknownSendprop, field, e.class.NetworkName)
	}

	return &e.props[field], nil
}

// buildIndex lazily maps hierarchical names to field ids. Only initialized
// slots are indexed; the index is rebuilt on demand after new slots fill.
func (e *Entity) buildIndex() {
	if e.nameIndex != nil {
		return
	}

	e.nameIndex = make(map[string]int, len(e.props))
	for i := range e.props {
		if e.props[i].initialized {
			e.nameIndex[e.props[i].name] = i
		}
	}
}

// PropertyByName returns the property with the given hierarchical name.
func (e *Entity) PropertyByName(name string) (*Property, error) {
	e.buildIndex()

	i, ok := e.nameIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", errs.ErrUnknownProperty, name, e.class.NetworkName)
	}

	return &e.props[i], nil
}

// Update decodes one delta from the stream into the entity. Newly touched
// slots are created from the flat table; existing ones are re-decoded in
// place. scratch holds the field-id list between updates, and delta (when
// non-nil) receives the touched field ids.
func (e *Entity) Update(b *bitstream.Bitstream, scratch *[]int, delta *Delta) error {
	fields, err := readFieldList(b, scratch)
	if err != nil {
		return err
	}

	for _, field := range fields {
		if field >= len(e.flat.Properties) {
			return fmt.Errorf("%w: field %d of %s (table has %d)",
				errs.ErrUnknownSendprop, field, e.class.NetworkName, len(e.flat.Properties))
		}

		p := &e.props[field]
		if p.initialized {
			if err := p.Update(b); err != nil {
				return err
			}

			continue
		}

		fp := e.flat.Properties[field]
		v, err := NewProperty(b, fp.Prop, fp.Name)
		if err != nil {
			return err
		}
		e.props[field] = v
		e.nameIndex = nil
	}

	if delta != nil {
		delta.EntityID = e.id
		delta.Fields = append(delta.Fields[:0], fields...)
	}

	return nil
}

// SkipUpdate advances the stream past one delta without decoding values.
// The position advance matches Update exactly.
func (e *Entity) SkipUpdate(b *bitstream.Bitstream, scratch *[]int) error {
	fields, err := readFieldList(b, scratch)
	if err != nil {
		return err
	}

	for _, field := range fields {
		if field >= len(e.flat.Properties) {
			return fmt.Errorf("%w: field %d of %s (table has %d)",
				errs.ErrUnknownSendprop, field, e.class.NetworkName, len(e.flat.Properties))
		}

		if err := Skip(b, e.flat.Properties[field].Prop); err != nil {
			return err
		}
	}

	return nil
}

// readFieldList decodes the field-id loop: a set continuation bit steps to
// the consecutive field, a clear one carries a varint jump, and 0x3FFF ends
// the list.
func readFieldList(b *bitstream.Bitstream, scratch *[]int) ([]int, error) {
	fields := (*scratch)[:0]
	field := -1

	for {
		consecutive, err := b.Read(1)
		if err != nil {
			return nil, err
		}

		if consecutive != 0 {
			field++
		} else {
			v, err := b.VarUInt32()
			if err != nil {
				return nil, err
			}
			if v == fieldTerminator {
				break
			}
			field += int(v) + 1
		}

		fields = append(fields, field)
	}

	*scratch = fields

	return fields, nil
}

// ReadHeader decodes one entity header: the slot increment with its
// variable-width extension, then the two PVS state bits. The second state
// bit is read under the first, in the engine's order, to stay
// bit-compatible.
func ReadHeader(b *bitstream.Bitstream, id int32) (int32, State, error) {
	value, err := b.Read(6)
	if err != nil {
		return 0, StateDefault, err
	}

	if value&0x30 != 0 {
		x := (value >> 4) & 3
		extra := 0
		if x == 3 {
			extra = 16
		}

		high, err := b.Read(int(4*x) + extra)
		if err != nil {
			return 0, StateDefault, err
		}
		value = high<<4 | (value & 0xF)
	}

	id += int32(value) + 1

	notUpdate, err := b.Read(1)
	if err != nil {
		return 0, StateDefault, err
	}

	if notUpdate == 0 {
		created, err := b.Read(1)
		if err != nil {
			return 0, StateDefault, err
		}
		if created != 0 {
			return id, StateCreated, nil
		}

		return id, StateUpdated, nil
	}

	deleted, err := b.Read(1)
	if err != nil {
		return 0, StateDefault, err
	}
	if deleted != 0 {
		return id, StateDeleted, nil
	}

	return id, StateDefault, nil
}

// String renders the entity with every initialized property, for
// diagnostics.
func (e *Entity) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s / id: %d / state: %s\n", e.class.NetworkName, e.id, e.state)

	for i := range e.props {
		p := &e.props[i]
		if !p.initialized {
			continue
		}
		fmt.Fprintf(&sb, "  %s (%s) = %s\n", p.name, p.prop.Type, p.String())
	}

	return sb.String()
}
