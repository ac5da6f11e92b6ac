package bitstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rewind/errs"
)

// bitWriter builds test buffers bit by bit in stream order: bit i of the
// stream lands in byte i/8 at bit position i%8.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) write(v uint64, n int) *bitWriter {
	for i := 0; i < n; i++ {
		w.bits = append(w.bits, v>>uint(i)&1 == 1)
	}

	return w
}

func (w *bitWriter) writeVarUint(v uint64) *bitWriter {
	for {
		b := v & 0x7F
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.write(b, 8)
		if v == 0 {
			return w
		}
	}
}

func (w *bitWriter) writeString(s string) *bitWriter {
	for i := 0; i < len(s); i++ {
		w.write(uint64(s[i]), 8)
	}
	w.write(0, 8)

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

func mustNew(t *testing.T, data []byte) *Bitstream {
	t.Helper()
	b, err := New(data)
	require.NoError(t, err)

	return b
}

func TestNewRejectsOversizedBuffer(t *testing.T) {
	_, err := New(make([]byte, 0x10001))
	assert.ErrorIs(t, err, errs.ErrBitstreamTooLarge)

	_, err = New(make([]byte, 0x10000))
	assert.NoError(t, err)
}

func TestReadAcrossWordBoundary(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x23, 0x45, 0x67}
	b := mustNew(t, data)

	// 30 bits puts the next read across the first word boundary.
	v, err := b.Read(30)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xEFBEADDE)&(1<<30-1), v)

	v, err = b.Read(12)
	require.NoError(t, err)

	// Reference: bits 30..41 of the little-endian bit view.
	var want uint32
	for i := 0; i < 12; i++ {
		bit := 30 + i
		if data[bit/8]>>(uint(bit)%8)&1 == 1 {
			want |= 1 << uint(i)
		}
	}
	assert.Equal(t, want, v)
	assert.Equal(t, 42, b.Position())
}

func TestReadTwiceAdvancesTwice(t *testing.T) {
	data := []byte{0xAA, 0x55, 0xF0, 0x0F}
	b := mustNew(t, data)

	v1, err := b.Read(7)
	require.NoError(t, err)
	v2, err := b.Read(7)
	require.NoError(t, err)

	assert.Equal(t, 14, b.Position())
	assert.Equal(t, uint32(0x2A), v1) // 0xAA low 7 bits
	assert.Equal(t, uint32(0x2B), v2) // bits 7..13: 0xAA bit7 | 0x55 low 6 shifted
}

func TestReadOverflow(t *testing.T) {
	b := mustNew(t, []byte{0x01})

	_, err := b.Read(9)
	assert.ErrorIs(t, err, errs.ErrBitstreamOverflow)

	_, err = b.Read(8)
	assert.NoError(t, err)
	assert.False(t, b.Good())
}

func TestReadCapsAt32(t *testing.T) {
	b := mustNew(t, make([]byte, 16))
	_, err := b.Read(33)
	assert.ErrorIs(t, err, errs.ErrBitstreamOverflow)
}

func TestSeekRoundTrip(t *testing.T) {
	b := mustNew(t, make([]byte, 64))

	for _, n := range []int{0, 1, 7, 31, 64, 300} {
		start := b.Position()
		b.SeekForward(n)
		b.SeekBackward(n)
		assert.Equal(t, start, b.Position(), "seek %d", n)
	}
}

func TestSeekClamps(t *testing.T) {
	b := mustNew(t, []byte{0x00, 0x00})

	b.SeekForward(100)
	assert.Equal(t, 16, b.Position())

	b.SeekBackward(100)
	assert.Equal(t, 0, b.Position())
}

func TestVarUInt32(t *testing.T) {
	tests := []struct {
		name string
		v    uint64
	}{
		{"zero", 0},
		{"one byte", 0x7F},
		{"two bytes", 300},
		{"max", 0xFFFFFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(bitWriter).writeVarUint(tt.v)
			b := mustNew(t, w.bytes())

			v, err := b.VarUInt32()
			require.NoError(t, err)
			assert.Equal(t, uint32(tt.v), v)
		})
	}
}

// A varint whose continuation bit never clears stops at 5 bytes and returns
// the accumulated value instead of failing.
func TestVarUInt32CapReturnsAccumulated(t *testing.T) {
	w := new(bitWriter)
	for i := 0; i < 6; i++ {
		w.write(0x81, 8)
	}
	b := mustNew(t, w.bytes())

	v, err := b.VarUInt32()
	require.NoError(t, err)
	assert.Equal(t, 40, b.Position(), "stops after 5 bytes")
	assert.Equal(t, uint32(1|1<<7|1<<14|1<<21|1<<28), v)
}

func TestVarUInt64(t *testing.T) {
	w := new(bitWriter).writeVarUint(0x123456789ABCDEF0)
	b := mustNew(t, w.bytes())

	v, err := b.VarUInt64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x123456789ABCDEF0), v)
}

func TestVarSInt(t *testing.T) {
	for _, want := range []int64{0, -1, 1, -64, 63, -300000, 300000} {
		zigzag := uint64(want<<1) ^ uint64(want>>63)
		b := mustNew(t, new(bitWriter).writeVarUint(zigzag).bytes())

		v, err := b.VarSInt64()
		require.NoError(t, err)
		assert.Equal(t, want, v)

		b32 := mustNew(t, new(bitWriter).writeVarUint(uint64(uint32(int32(want)<<1)^uint32(int32(want)>>31))).bytes())
		v32, err := b32.VarSInt32()
		require.NoError(t, err)
		assert.Equal(t, int32(want), v32)
	}
}

func TestReadSInt(t *testing.T) {
	tests := []struct {
		bits int
		raw  uint64
		want int32
	}{
		{4, 0x7, 7},
		{4, 0x8, -8},
		{4, 0xF, -1},
		{8, 0x80, -128},
		{8, 0x7F, 127},
	}
	for _, tt := range tests {
		b := mustNew(t, new(bitWriter).write(tt.raw, tt.bits).bytes())
		v, err := b.ReadSInt(tt.bits)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}
}

func TestReadNormal(t *testing.T) {
	// sign=1, fraction=2047 -> -1.0
	b := mustNew(t, new(bitWriter).write(1, 1).write(2047, 11).bytes())
	v, err := b.ReadNormal()
	require.NoError(t, err)
	assert.InDelta(t, -1.0, v, 1e-6)
	assert.Equal(t, 12, b.Position())
}

func TestReadCoord(t *testing.T) {
	tests := []struct {
		name  string
		build func(w *bitWriter)
		want  float32
	}{
		{"zero fast path", func(w *bitWriter) {
			w.write(0, 1).write(0, 1)
		}, 0},
		{"integer only", func(w *bitWriter) {
			w.write(1, 1).write(0, 1).write(0, 1).write(41, 14)
		}, 42},
		{"fraction only", func(w *bitWriter) {
			w.write(0, 1).write(1, 1).write(0, 1).write(16, 5)
		}, 0.5},
		{"negative both", func(w *bitWriter) {
			w.write(1, 1).write(1, 1).write(1, 1).write(2, 14).write(8, 5)
		}, -3.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(bitWriter)
			tt.build(w)
			b := mustNew(t, w.bytes())

			v, err := b.ReadCoord()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-6)
		})
	}
}

func TestReadCoordMPIntegral(t *testing.T) {
	// flags: in-bounds=1, has-int=1; sign=1; 11 bits of 9 -> -10
	w := new(bitWriter).write(3, 2).write(1, 1).write(9, 11)
	b := mustNew(t, w.bytes())

	v, err := b.ReadCoordMP(true, false)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, v, 1e-6)
}

func TestReadCoordMPFraction(t *testing.T) {
	// flags: in-bounds=0, has-int=1, sign=0; 14 int bits of 4 -> 5; 5 frac bits of 16 -> .5
	w := new(bitWriter).write(2, 3).write(4, 14).write(16, 5)
	b := mustNew(t, w.bytes())

	v, err := b.ReadCoordMP(false, false)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, v, 1e-6)
}

func TestReadCellCoord(t *testing.T) {
	w := new(bitWriter).write(37, 7).write(4, 3)
	b := mustNew(t, w.bytes())

	v, err := b.ReadCellCoord(7, false, true)
	require.NoError(t, err)
	assert.InDelta(t, 37.5, v, 1e-6)

	b2 := mustNew(t, new(bitWriter).write(100, 9).bytes())
	v, err = b2.ReadCellCoord(9, true, false)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-6)
}

func TestReadString(t *testing.T) {
	b := mustNew(t, new(bitWriter).writeString("CDOTA_Hero").bytes())

	s, err := b.ReadString(1024)
	require.NoError(t, err)
	assert.Equal(t, "CDOTA_Hero", s)
	assert.Equal(t, (len("CDOTA_Hero")+1)*8, b.Position())
}

func TestReadStringForcedTerminator(t *testing.T) {
	// No NUL within the limit: the final byte is dropped.
	w := new(bitWriter)
	for i := 0; i < 8; i++ {
		w.write('a', 8)
	}
	b := mustNew(t, w.bytes())

	s, err := b.ReadString(4)
	require.NoError(t, err)
	assert.Equal(t, "aaa", s)
	assert.Equal(t, 32, b.Position())
}

func TestReadBits(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9A}
	b := mustNew(t, data)
	b.SeekForward(4)

	buf := make([]byte, 5)
	require.NoError(t, b.ReadBits(buf, 20))
	assert.Equal(t, []byte{0x41, 0x63, 0x05, 0x00, 0x00}, buf)
	assert.Equal(t, 24, b.Position())
}

// Every decoder and its skip must advance the position identically.
func TestSkipMatchesRead(t *testing.T) {
	type streamOp struct {
		name  string
		build func(w *bitWriter)
		read  func(b *Bitstream) error
		skip  func(b *Bitstream) error
	}

	ops := []streamOp{
		{
			"normal",
			func(w *bitWriter) { w.write(1, 1).write(1234, 11) },
			func(b *Bitstream) error { _, err := b.ReadNormal(); return err },
			func(b *Bitstream) error { return b.SkipNormal() },
		},
		{
			"coord zero",
			func(w *bitWriter) { w.write(0, 2) },
			func(b *Bitstream) error { _, err := b.ReadCoord(); return err },
			func(b *Bitstream) error { return b.SkipCoord() },
		},
		{
			"coord int",
			func(w *bitWriter) { w.write(1, 1).write(0, 1).write(1, 1).write(99, 14) },
			func(b *Bitstream) error { _, err := b.ReadCoord(); return err },
			func(b *Bitstream) error { return b.SkipCoord() },
		},
		{
			"coord frac",
			func(w *bitWriter) { w.write(0, 1).write(1, 1).write(0, 1).write(7, 5) },
			func(b *Bitstream) error { _, err := b.ReadCoord(); return err },
			func(b *Bitstream) error { return b.SkipCoord() },
		},
		{
			"coord both",
			func(w *bitWriter) { w.write(1, 1).write(1, 1).write(1, 1).write(5, 14).write(3, 5) },
			func(b *Bitstream) error { _, err := b.ReadCoord(); return err },
			func(b *Bitstream) error { return b.SkipCoord() },
		},
		{
			"coordmp integral empty",
			func(w *bitWriter) { w.write(1, 2) },
			func(b *Bitstream) error { _, err := b.ReadCoordMP(true, false); return err },
			func(b *Bitstream) error { return b.SkipCoordMP(true, false) },
		},
		{
			"coordmp integral in-bounds",
			func(w *bitWriter) { w.write(3, 2).write(0, 1).write(7, 11) },
			func(b *Bitstream) error { _, err := b.ReadCoordMP(true, false); return err },
			func(b *Bitstream) error { return b.SkipCoordMP(true, false) },
		},
		{
			"coordmp integral out-of-bounds",
			func(w *bitWriter) { w.write(2, 2).write(1, 1).write(1000, 14) },
			func(b *Bitstream) error { _, err := b.ReadCoordMP(true, false); return err },
			func(b *Bitstream) error { return b.SkipCoordMP(true, false) },
		},
		{
			"coordmp frac no int",
			func(w *bitWriter) { w.write(1, 3).write(21, 5) },
			func(b *Bitstream) error { _, err := b.ReadCoordMP(false, false); return err },
			func(b *Bitstream) error { return b.SkipCoordMP(false, false) },
		},
		{
			"coordmp frac low precision",
			func(w *bitWriter) { w.write(7, 3).write(44, 11).write(5, 3) },
			func(b *Bitstream) error { _, err := b.ReadCoordMP(false, true); return err },
			func(b *Bitstream) error { return b.SkipCoordMP(false, true) },
		},
		{
			"cell coord",
			func(w *bitWriter) { w.write(300, 10).write(11, 5) },
			func(b *Bitstream) error { _, err := b.ReadCellCoord(10, false, false); return err },
			func(b *Bitstream) error { return b.SkipCellCoord(10, false, false) },
		},
		{
			"cell coord integral",
			func(w *bitWriter) { w.write(77, 8) },
			func(b *Bitstream) error { _, err := b.ReadCellCoord(8, true, false); return err },
			func(b *Bitstream) error { return b.SkipCellCoord(8, true, false) },
		},
		{
			"varint",
			func(w *bitWriter) { w.writeVarUint(123456789) },
			func(b *Bitstream) error { _, err := b.VarUInt32(); return err },
			func(b *Bitstream) error { return b.SkipVarInt() },
		},
		{
			"varint64",
			func(w *bitWriter) { w.writeVarUint(1 << 60) },
			func(b *Bitstream) error { _, err := b.VarUInt64(); return err },
			func(b *Bitstream) error { return b.SkipVarInt64() },
		},
		{
			"string",
			func(w *bitWriter) { w.writeString("m_iHealth") },
			func(b *Bitstream) error { _, err := b.ReadString(1024); return err },
			func(b *Bitstream) error { return b.SkipString(1024) },
		},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			w := new(bitWriter)
			op.build(w)
			// Trailing garbage so skips cannot cheat by clamping to the end.
			w.write(0x5A5A, 16)

			reader := mustNew(t, w.bytes())
			skipper := reader.Clone()

			require.NoError(t, op.read(reader))
			require.NoError(t, op.skip(skipper))
			assert.Equal(t, reader.Position(), skipper.Position())
		})
	}
}

func BenchmarkRead(b *testing.B) {
	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = byte(i * 31)
	}
	bs, _ := New(buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if bs.Remaining() < 32 {
			bs.SeekBackward(bs.Position())
		}
		_, _ = bs.Read(17)
	}
}
