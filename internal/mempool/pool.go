// Package mempool keeps size-classed scratch buffers for the per-frame image stages.
package mempool

import (
	"sync"
)

const classStep = 1024

// sizeClass rounds n up to the next multiple of 1024, with 1024 as the floor.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return ((n + classStep - 1) / classStep) * classStep
}

// sizedPool hands out slices of one element type grouped by size class.
type sizedPool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (s *sizedPool[T]) pool(cls int) *sync.Pool {
	if p, ok := s.pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := s.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return p.(*sync.Pool)
}

func (s *sizedPool[T]) get(n int) []T {
	cls := sizeClass(n)
	bp, _ := s.pool(cls).Get().(*[]T)
	if bp == nil || cap(*bp) < cls {
		buf := make([]T, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

func (s *sizedPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// Buffers that were not sized by this pool are filed under the class they fully cover.
	cls := sizeClass(cap(buf))
	if cls > cap(buf) {
		cls -= classStep
		if cls < classStep {
			return
		}
	}
	full := buf[:cap(buf)]
	s.pool(cls).Put(&full)
}

var (
	float32s sizedPool[float32]
	int32s   sizedPool[int32]
)

// GetFloat32 returns a slice of length n. Contents are not cleared.
func GetFloat32(n int) []float32 { return float32s.get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32. Nil is ignored.
func PutFloat32(buf []float32) { float32s.put(buf) }

// GetInt32 returns a zeroed slice of length n.
func GetInt32(n int) []int32 {
	buf := int32s.get(n)
	clear(buf)
	return buf
}

// PutInt32 returns a buffer obtained from GetInt32. Nil is ignored.
func PutInt32(buf []int32) { int32s.put(buf) }
