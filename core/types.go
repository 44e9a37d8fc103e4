package core

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/vuuvv/errors"
	"gopkg.in/yaml.v3"
)

// PrimitiveType 字段在线上的原始类型, 全部为小端
type PrimitiveType uint8

const (
	Invalid PrimitiveType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bytes // 定长字节, 宽度由 FieldSpec.Size 给出
)

var primitiveNames = map[PrimitiveType]string{
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Bytes:   "bytes",
}

var primitiveAliases = map[string]PrimitiveType{
	"byte":   Uint8,
	"char":   Int8,
	"short":  Int16,
	"ushort": Uint16,
	"int":    Int32,
	"uint":   Uint32,
	"long":   Int64,
	"ulong":  Uint64,
	"float":  Float32,
	"double": Float64,
	"string": Bytes,
}

func ParsePrimitiveType(name string) (PrimitiveType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range primitiveNames {
		if n == name {
			return t, nil
		}
	}
	if t, ok := primitiveAliases[name]; ok {
		return t, nil
	}
	return Invalid, errors.Errorf("unknown primitive type: %q", name)
}

func (t PrimitiveType) String() string {
	if n, ok := primitiveNames[t]; ok {
		return n
	}
	return "invalid"
}

// Size 返回定宽类型的字节数, Bytes 返回 0
func (t PrimitiveType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

func (t PrimitiveType) IsSigned() bool {
	return t >= Int8 && t <= Int64
}

func (t PrimitiveType) IsUnsigned() bool {
	return t >= Uint8 && t <= Uint64
}

func (t PrimitiveType) IsFloat() bool {
	return t == Float32 || t == Float64
}

func (t *PrimitiveType) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParsePrimitiveType(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*t = parsed
	return nil
}

func (t PrimitiveType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// read 从 data 读取一个值, data 的长度由调用者保证
func (t PrimitiveType) read(data []byte) Value {
	switch t {
	case Int8:
		return Int(int64(int8(data[0])))
	case Int16:
		return Int(int64(int16(binary.LittleEndian.Uint16(data))))
	case Int32:
		return Int(int64(int32(binary.LittleEndian.Uint32(data))))
	case Int64:
		return Int(int64(binary.LittleEndian.Uint64(data)))
	case Uint8:
		return Uint(uint64(data[0]))
	case Uint16:
		return Uint(uint64(binary.LittleEndian.Uint16(data)))
	case Uint32:
		return Uint(uint64(binary.LittleEndian.Uint32(data)))
	case Uint64:
		return Uint(binary.LittleEndian.Uint64(data))
	case Float32:
		return Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(data))))
	case Float64:
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case Bytes:
		return Text(trimText(data))
	}
	return Value{}
}
