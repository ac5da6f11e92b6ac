package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rewind/errs"
)

func TestForwardInsertionOrder(t *testing.T) {
	d := New()

	var order []int
	d.On(Net, 26, func(*Event) { order = append(order, 1) })
	d.On(Net, 26, func(*Event) { order = append(order, 2) })
	d.On(Net, 27, func(*Event) { order = append(order, 99) })

	d.Forward(Net, 26, 100, "payload")
	assert.Equal(t, []int{1, 2}, order)
}

func TestForwardEventFields(t *testing.T) {
	d := New()

	var got Event
	d.On(Dem, 7, func(ev *Event) { got = *ev })

	d.Forward(Dem, 7, 42, "pkt")
	assert.Equal(t, uint32(42), got.Tick)
	assert.Equal(t, uint32(7), got.ID)
	assert.Equal(t, "pkt", got.Payload)
}

func TestRemoveCallback(t *testing.T) {
	d := New()

	calls := 0
	remove := d.On(Status, 0, func(*Event) { calls++ })
	d.Forward(Status, 0, 0, nil)
	require.Equal(t, 1, calls)

	remove()
	assert.False(t, d.HasCallback(Status, 0))
	d.Forward(Status, 0, 0, nil)
	assert.Equal(t, 1, calls)
}

func TestRetrieve(t *testing.T) {
	d := New()
	d.RegisterConstructor(Net, 12, func(data []byte) (any, error) {
		return len(data), nil
	})

	v, err := d.Retrieve(Net, 12, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = d.Retrieve(Net, 13, nil)
	assert.ErrorIs(t, err, errs.ErrNoConversionAvailable)
}

func TestForwardRawSkipsWithoutSubscriber(t *testing.T) {
	d := New()

	constructed := false
	d.RegisterConstructor(User, 106, func(data []byte) (any, error) {
		constructed = true
		return data, nil
	})

	require.NoError(t, d.ForwardRaw(User, 106, 1, []byte{0xFF}))
	assert.False(t, constructed, "no subscriber, no construction")

	var seen []byte
	d.On(User, 106, func(ev *Event) { seen = ev.Payload.([]byte) })

	require.NoError(t, d.ForwardRaw(User, 106, 1, []byte{0xFF}))
	assert.True(t, constructed)
	assert.Equal(t, []byte{0xFF}, seen)
}

func TestEntityFamiliesKeyedByClass(t *testing.T) {
	d := New()

	hits := map[uint32]int{}
	d.On(Entity, 42, func(ev *Event) { hits[ev.ID]++ })

	d.Forward(Entity, 42, 0, nil)
	d.Forward(Entity, 43, 0, nil)
	assert.Equal(t, map[uint32]int{42: 1}, hits)
}
