package core

import "math"

// DecodedRecord 一条解码后的记录, 生成后不再修改
type DecodedRecord struct {
	SchemaID uint32
	Schema   string
	Names    []string
	Values   []Value
	Tick     int64
	HasTick  bool
}

func (r *DecodedRecord) Len() int {
	return len(r.Values)
}

func (r *DecodedRecord) Get(name string) (Value, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Float 返回数值字段, 不存在时为 NaN
func (r *DecodedRecord) Float(name string) float64 {
	v, ok := r.Get(name)
	if !ok {
		return math.NaN()
	}
	return v.Float64()
}

// WithTick 返回附加 tick 的副本
func (r *DecodedRecord) WithTick(tick int64) *DecodedRecord {
	c := *r
	c.Tick = tick
	c.HasTick = true
	return &c
}
