package sendtable

import (
	"fmt"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/wire"
)

// SendTable is one named, insertion-ordered group of property descriptors.
// It owns its SendProps.
type SendTable struct {
	// Name is the net table name (DT_...).
	Name string
	// NeedsDecoder mirrors the wire flag of the same name.
	NeedsDecoder bool

	props  []*SendProp
	byName map[string]int
}

// NewSendTable builds a table and its descriptors from the wire form.
func NewSendTable(msg *wire.SendTable) *SendTable {
	t := &SendTable{
		Name:         msg.NetTableName,
		NeedsDecoder: msg.NeedsDecoder,
		props:        make([]*SendProp, 0, len(msg.Props)),
		byName:       make(map[string]int, len(msg.Props)),
	}
	for _, def := range msg.Props {
		t.insert(newSendProp(def, msg.NetTableName))
	}

	return t
}

func (t *SendTable) insert(p *SendProp) {
	t.byName[p.Name] = len(t.props)
	t.props = append(t.props, p)
}

// Len returns the number of descriptors in insertion order.
func (t *SendTable) Len() int {
	return len(t.props)
}

// Props returns the descriptors in insertion order. The slice is shared;
// callers must not modify it.
func (t *SendTable) Props() []*SendProp {
	return t.props
}

// Prop returns the descriptor at the given insertion index.
func (t *SendTable) Prop(index int) (*SendProp, error) {
	if index < 0 || index >= len(t.props) {
		return nil, fmt.Errorf("%w: index %d in table %s", errs.ErrUnknownSendprop, index, t.Name)
	}

	return t.props[index], nil
}

// PropByName returns the descriptor with the given variable name.
func (t *SendTable) PropByName(name string) (*SendProp, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in table %s", errs.ErrUnknownProperty, name, t.Name)
	}

	return t.props[i], nil
}

// Registry holds every send table of a replay, ordered by arrival and
// addressable by name.
type Registry struct {
	tables []*SendTable
	byName map[string]int
}

// NewRegistry creates an empty send table registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int, 256),
	}
}

// Insert appends a table, keeping insertion order.
func (r *Registry) Insert(t *SendTable) {
	r.byName[t.Name] = len(r.tables)
	r.tables = append(r.tables, t)
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	return len(r.tables)
}

// Tables returns the tables in insertion order.
func (r *Registry) Tables() []*SendTable {
	return r.tables
}

// ByName resolves a table by its net table name.
func (r *Registry) ByName(name string) (*SendTable, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownTable, name)
	}

	return r.tables[i], nil
}
