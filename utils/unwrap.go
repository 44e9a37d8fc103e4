package utils

import "golang.org/x/exp/constraints"

// WrapFunc 判断 prev -> cur 是否为一次计数器溢出
type WrapFunc[T constraints.Integer] func(prev, cur T) bool

// Unwrap 展开会溢出的单调计数器, 每次判定为溢出时在后续所有值上累加 period.
// 不是溢出的回退保持原样.
func Unwrap[T constraints.Integer](values []T, period int64, isWrap WrapFunc[T]) []int64 {
	out := make([]int64, len(values))
	var offset int64
	for i, v := range values {
		if i > 0 && isWrap(values[i-1], v) {
			offset += period
		}
		out[i] = int64(v) + offset
	}
	return out
}

// WrapBelow 计数器回退且新值小于 threshold 时认为发生溢出
func WrapBelow[T constraints.Integer](threshold T) WrapFunc[T] {
	return func(prev, cur T) bool {
		return cur < prev && cur < threshold
	}
}

// WrapDrop 计数器回退幅度大于 threshold 时认为发生溢出
func WrapDrop[T constraints.Integer](threshold T) WrapFunc[T] {
	return func(prev, cur T) bool {
		return cur < prev && prev-cur > threshold
	}
}
