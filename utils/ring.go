package utils

import (
	"sync/atomic"
)

// Ring 无锁环形缓冲区, 只保留最近 size 个元素
type Ring[T any] struct {
	data  []atomic.Pointer[T]
	size  int64
	head  atomic.Int64
	count atomic.Int64
}

func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		data: make([]atomic.Pointer[T], size),
		size: int64(size),
	}
}

// Add 添加元素, 满了以后覆盖最旧的元素
func (r *Ring[T]) Add(item T) {
	pos := r.head.Add(1) - 1
	r.data[pos%r.size].Store(&item)
	if r.count.Load() < r.size {
		r.count.Add(1)
	}
}

func (r *Ring[T]) Len() int {
	return int(r.count.Load())
}

// All 按写入顺序返回当前保留的元素
func (r *Ring[T]) All() []T {
	count := r.count.Load()
	if count == 0 {
		return nil
	}
	head := r.head.Load()
	start := head - count
	result := make([]T, 0, count)
	for i := int64(0); i < count; i++ {
		ptr := r.data[(start+i)%r.size].Load()
		if ptr != nil {
			result = append(result, *ptr)
		}
	}
	return result
}
