package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSliceReuse(t *testing.T) {
	ptr := GetFieldSlice()
	require.NotNil(t, ptr)
	assert.Empty(t, *ptr)

	*ptr = append(*ptr, 1, 2, 3)
	PutFieldSlice(ptr)

	again := GetFieldSlice()
	defer PutFieldSlice(again)
	assert.Empty(t, *again, "pooled slices come back empty")
}

func TestPutFieldSliceNil(t *testing.T) {
	assert.NotPanics(t, func() { PutFieldSlice(nil) })
}
