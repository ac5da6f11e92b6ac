package stringtable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/wire"
)

// bitWriter builds delta payloads bit by bit in stream order.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) write(v uint64, n int) *bitWriter {
	for i := 0; i < n; i++ {
		w.bits = append(w.bits, v>>uint(i)&1 == 1)
	}

	return w
}

func (w *bitWriter) writeString(s string) *bitWriter {
	for i := 0; i < len(s); i++ {
		w.write(uint64(s[i]), 8)
	}
	w.write(0, 8)

	return w
}

func (w *bitWriter) writeBytes(b []byte) *bitWriter {
	for _, c := range b {
		w.write(uint64(c), 8)
	}

	return w
}

func (w *bitWriter) bytes() []byte {
	buf := make([]byte, (len(w.bits)+7)/8)
	for i, bit := range w.bits {
		if bit {
			buf[i/8] |= 1 << uint(i%8)
		}
	}

	return buf
}

// entry appends one delta entry with a variable-length value.
func (w *bitWriter) entry(key string, value []byte) *bitWriter {
	w.write(1, 1) // incremental index
	w.write(1, 1) // has name
	w.write(0, 1) // no back-ref guard bit
	w.write(0, 1) // no substring
	w.writeString(key)
	w.write(1, 1) // has value
	w.write(uint64(len(value)), 14)
	w.writeBytes(value)

	return w
}

func newTable(name string, maxEntries int32) *StringTable {
	return New(&wire.CreateStringTable{Name: name, MaxEntries: maxEntries})
}

func TestApplyDeltaInsertsEntries(t *testing.T) {
	tbl := newTable("userinfo", 4096)

	w := new(bitWriter)
	w.write(0, 1) // not a full snapshot
	w.entry("player1", []byte{0x01})
	w.entry("player2", []byte{0x02, 0x03})

	require.NoError(t, tbl.ApplyDelta(2, w.bytes()))
	assert.Equal(t, 2, tbl.Size())

	v, err := tbl.Get("player1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, v)

	v, err = tbl.GetIndex(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03}, v)

	k, err := tbl.KeyAt(0)
	require.NoError(t, err)
	assert.Equal(t, "player1", k)
}

func TestApplyDeltaExplicitIndex(t *testing.T) {
	tbl := newTable("lightstyles", 64) // 6 index bits

	w := new(bitWriter)
	w.write(0, 1)
	w.write(0, 1)  // explicit index
	w.write(17, 6) // index 17
	w.write(1, 1)  // has name
	w.write(0, 1)
	w.write(0, 1)
	w.writeString("style")
	w.write(0, 1) // no value

	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	k, err := tbl.KeyAt(17)
	require.NoError(t, err)
	assert.Equal(t, "style", k)
}

func TestApplyDeltaUpdatesByKey(t *testing.T) {
	tbl := newTable("userinfo", 4096)

	w := new(bitWriter)
	w.write(0, 1)
	w.entry("hero", []byte{0xAA})
	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	// Same key again: the existing entry's value is replaced in place.
	w2 := new(bitWriter)
	w2.write(0, 1)
	w2.entry("hero", []byte{0xBB})
	require.NoError(t, tbl.ApplyDelta(1, w2.bytes()))

	assert.Equal(t, 1, tbl.Size())
	v, err := tbl.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBB}, v)
}

// The §4.6 back-reference path: "CDOTA_Hero" seeds the history, then a
// substring entry copies its first 6 bytes and appends "Npc".
func TestApplyDeltaSubstringBackRef(t *testing.T) {
	tbl := newTable("instancebaseline", 4096)

	w := new(bitWriter)
	w.write(0, 1)
	w.entry("CDOTA_Hero", []byte("bytes_A"))

	// Second entry via history reference.
	w.write(1, 1) // incremental index
	w.write(1, 1) // has name
	w.write(0, 1) // back-ref guard
	w.write(1, 1) // substring
	w.write(0, 5) // history index 0
	w.write(6, 5) // prefix length 6
	w.writeString("Npc")
	w.write(1, 1)
	w.write(uint64(len("bytes_B")), 14)
	w.writeBytes([]byte("bytes_B"))

	require.NoError(t, tbl.ApplyDelta(2, w.bytes()))
	assert.Equal(t, 2, tbl.Size())

	v, err := tbl.Get("CDOTA_Hero")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes_A"), v)

	v, err = tbl.Get("CDOTA_Npc")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes_B"), v)
}

// A history index beyond what has been seen discards the reference and
// falls back to a fresh key read.
func TestApplyDeltaForgivingHistoryMiss(t *testing.T) {
	tbl := newTable("t", 64)

	w := new(bitWriter)
	w.write(0, 1)
	w.write(1, 1)
	w.write(1, 1)
	w.write(0, 1)
	w.write(1, 1)  // substring
	w.write(7, 5)  // history index 7, but history is empty
	w.write(3, 5)  // prefix length, ignored
	w.writeString("fresh")
	w.write(0, 1)

	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	k, err := tbl.KeyAt(0)
	require.NoError(t, err)
	assert.Equal(t, "fresh", k)
}

// A full-snapshot delta cannot back-reference a key: the guard bit set
// together with the full flag fails the decode.
func TestApplyDeltaFullSnapshotBackRefFails(t *testing.T) {
	tbl := newTable("t", 64)

	w := new(bitWriter)
	w.write(1, 1) // full snapshot
	w.write(1, 1) // incremental index
	w.write(1, 1) // has name
	w.write(1, 1) // back-ref guard set
	w.writeString("x")

	err := tbl.ApplyDelta(1, w.bytes())
	assert.ErrorIs(t, err, errs.ErrKeyMissing)
}

func TestApplyDeltaAnonymousValue(t *testing.T) {
	tbl := newTable("t", 64)

	w := new(bitWriter)
	w.write(0, 1)
	w.write(1, 1) // incremental index -> 0
	w.write(0, 1) // no name
	w.write(1, 1) // has value
	w.write(2, 14)
	w.writeBytes([]byte{0xCA, 0xFE})

	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	k, err := tbl.KeyAt(0)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", k)

	v, err := tbl.GetIndex(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, v)
}

func TestApplyDeltaAnonymousUpdateByIndex(t *testing.T) {
	tbl := newTable("t", 64)

	w := new(bitWriter)
	w.write(0, 1)
	w.entry("named", []byte{0x01})
	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	// Nameless update addressed at index 0 replaces the value.
	w2 := new(bitWriter)
	w2.write(0, 1)
	w2.write(0, 1)
	w2.write(0, 6)
	w2.write(0, 1) // no name
	w2.write(1, 1)
	w2.write(1, 14)
	w2.writeBytes([]byte{0x99})

	require.NoError(t, tbl.ApplyDelta(1, w2.bytes()))
	assert.Equal(t, 1, tbl.Size())

	v, err := tbl.Get("named")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x99}, v)
}

func TestApplyDeltaFixedSizeValues(t *testing.T) {
	tbl := New(&wire.CreateStringTable{
		Name: "fixed", MaxEntries: 64,
		UserDataFixedSize: true, UserDataSize: 1, UserDataSizeBits: 6,
	})

	w := new(bitWriter)
	w.write(0, 1)
	w.write(1, 1)
	w.write(1, 1)
	w.write(0, 1)
	w.write(0, 1)
	w.writeString("k")
	w.write(1, 1)
	w.write(0x2A, 6) // 6-bit fixed payload

	require.NoError(t, tbl.ApplyDelta(1, w.bytes()))

	v, err := tbl.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2A}, v)
}

// Key history holds exactly 32 entries; the 33rd key evicts the first, and
// references address the shifted window.
func TestApplyDeltaHistoryRolls(t *testing.T) {
	tbl := newTable("t", 4096)

	w := new(bitWriter)
	w.write(0, 1)
	for i := 0; i < 33; i++ {
		w.entry(fmt.Sprintf("key%02d_", i), nil)
	}

	// History now holds key01_..key32_; index 0 refers to key01_.
	w.write(1, 1)
	w.write(1, 1)
	w.write(0, 1)
	w.write(1, 1) // substring
	w.write(0, 5)
	w.write(6, 5) // prefix "key01_"
	w.writeString("ref")
	w.write(0, 1)

	require.NoError(t, tbl.ApplyDelta(34, w.bytes()))

	k, err := tbl.KeyAt(33)
	require.NoError(t, err)
	assert.Equal(t, "key01_ref", k)
}

// The index -> (key, value) mapping is exactly reproducible.
func TestApplyDeltaDeterministic(t *testing.T) {
	build := func() *StringTable {
		tbl := newTable("det", 256)
		w := new(bitWriter)
		w.write(0, 1)
		w.entry("alpha", []byte{1})
		w.entry("beta", []byte{2})
		w.entry("alpha", []byte{3})
		require.NoError(t, tbl.ApplyDelta(3, w.bytes()))

		return tbl
	}

	a, b := build(), build()
	require.Equal(t, a.Size(), b.Size())
	for _, e := range a.Entries() {
		k, err := b.KeyAt(e.Index)
		require.NoError(t, err)
		assert.Equal(t, e.Key, k)

		v, err := b.GetIndex(e.Index)
		require.NoError(t, err)
		assert.Equal(t, e.Value, v)
	}
}

func TestRegistryDroppedTablesBurnIDs(t *testing.T) {
	r := NewRegistry()

	id0 := r.Insert(newTable("first", 64))
	id1 := r.Insert(nil) // dropped table still consumes its id
	id2 := r.Insert(newTable("third", 64))

	assert.Equal(t, int32(0), id0)
	assert.Equal(t, int32(1), id1)
	assert.Equal(t, int32(2), id2)

	_, ok := r.ByID(1)
	assert.False(t, ok)

	tbl, ok := r.ByID(2)
	require.True(t, ok)
	assert.Equal(t, "third", tbl.Name)

	tbl, ok = r.ByName("first")
	require.True(t, ok)
	assert.Equal(t, "first", tbl.Name)

	names := []string{}
	r.Each(func(id int32, t *StringTable) {
		names = append(names, t.Name)
	})
	assert.Equal(t, []string{"first", "third"}, names)
}
