package core

import (
	"math"
	"strconv"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindUint
	KindFloat
	KindText
)

// Value 解码后的标量, 数值或短文本
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value   { return Value{kind: KindUint, u: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Text(v string) Value   { return Value{kind: KindText, s: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindUint || v.kind == KindFloat
}

// Float64 数值转换为 float64, 文本或空值返回 NaN
func (v Value) Float64() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindUint:
		return float64(v.u)
	case KindFloat:
		return v.f
	}
	return math.NaN()
}

func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return int64(v.u)
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

func (v Value) Uint64() uint64 {
	switch v.kind {
	case KindInt:
		return uint64(v.i)
	case KindUint:
		return v.u
	case KindFloat:
		return uint64(v.f)
	}
	return 0
}

func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	}
	return ""
}
