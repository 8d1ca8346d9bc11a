// Package pool provides pooled scratch slices for per-tile evaluation.
//
// Tile evaluation allocates several transient buffers per tile (validity
// masks, compacted operand vectors, zero-substituted copies). Pooling them
// keeps steady-state allocation flat when millions of tiles stream through a
// worker pool.
package pool

import "sync"

var (
	float64SlicePool = sync.Pool{
		New: func() any { return &[]float64{} },
	}
	float32SlicePool = sync.Pool{
		New: func() any { return &[]float32{} },
	}
	boolSlicePool = sync.Pool{
		New: func() any { return &[]bool{} },
	}
)

// GetFloat64Slice retrieves a float64 slice of exactly the requested length
// from the pool, growing it if the pooled capacity is insufficient.
//
// Contents are unspecified; callers must fully overwrite the slice. The
// returned cleanup function returns the slice to the pool and is typically
// deferred.
func GetFloat64Slice(size int) ([]float64, func()) {
	ptr, _ := float64SlicePool.Get().(*[]float64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]float64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { float64SlicePool.Put(ptr) }
}

// GetFloat32Slice retrieves a float32 slice of exactly the requested length
// from the pool. Same contract as GetFloat64Slice.
func GetFloat32Slice(size int) ([]float32, func()) {
	ptr, _ := float32SlicePool.Get().(*[]float32)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]float32, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { float32SlicePool.Put(ptr) }
}

// GetBoolSlice retrieves a bool slice of exactly the requested length from
// the pool. Same contract as GetFloat64Slice.
func GetBoolSlice(size int) ([]bool, func()) {
	ptr, _ := boolSlicePool.Get().(*[]bool)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]bool, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { boolSlicePool.Put(ptr) }
}
