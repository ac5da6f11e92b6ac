package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBufferBasics(t *testing.T) {
	bb := NewByteBuffer(64)
	assert.Equal(t, 0, bb.Len())
	assert.Equal(t, 64, bb.Cap())

	n, err := bb.Write([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []byte("payload"), bb.Bytes())

	bb.Reset()
	assert.Equal(t, 0, bb.Len())
	assert.Equal(t, 64, bb.Cap(), "reset retains capacity")
}

func TestByteBufferSetLength(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.SetLength(10)
	assert.Equal(t, 10, bb.Len())

	assert.Panics(t, func() { bb.SetLength(17) })
	assert.Panics(t, func() { bb.SetLength(-1) })
}

func TestByteBufferPoolReuse(t *testing.T) {
	p := NewByteBufferPool(32, 0)

	bb := p.Get()
	require.NotNil(t, bb)
	_, _ = bb.Write([]byte{1, 2, 3})
	p.Put(bb)

	again := p.Get()
	assert.Equal(t, 0, again.Len(), "pooled buffers come back reset")
}

func TestByteBufferPoolDiscardsOversized(t *testing.T) {
	p := NewByteBufferPool(8, 16)

	big := NewByteBuffer(64)
	p.Put(big)

	got := p.Get()
	assert.LessOrEqual(t, got.Cap(), 64)
	assert.NotSame(t, big, got, "oversized buffers are not retained")

	p.Put(nil) // nil is a no-op
}

func TestMessageBufferSize(t *testing.T) {
	bb := GetMessageBuffer()
	defer PutMessageBuffer(bb)

	assert.Equal(t, 0, bb.Len())
	assert.GreaterOrEqual(t, bb.Cap(), MessageBufferSize)
}
