package pool

import "sync"

// fieldSlicePool reuses the field-id scratch slices the entity decoder fills
// once per update. The original engine kept these as function-local statics;
// a pool keeps the allocate-once behaviour without global state.
var fieldSlicePool = sync.Pool{
	New: func() any {
		s := make([]int, 0, 1024)
		return &s
	},
}

// GetFieldSlice retrieves an empty field-id slice from the pool.
// The caller must return it with PutFieldSlice when done.
func GetFieldSlice() *[]int {
	ptr, _ := fieldSlicePool.Get().(*[]int)
	*ptr = (*ptr)[:0]

	return ptr
}

// PutFieldSlice returns a field-id slice to the pool.
func PutFieldSlice(ptr *[]int) {
	if ptr == nil {
		return
	}

	fieldSlicePool.Put(ptr)
}
