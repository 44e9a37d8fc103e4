package autopilot

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/log"
	"go.uber.org/zap"
)

type typeCode struct {
	kind  core.PrimitiveType
	size  int
	scale float64
}

// 紧凑类型码, 参见 ArduPilot 的 log message 定义
var typeCodes = map[byte]typeCode{
	'a': {kind: core.Bytes, size: 64}, // int16_t[32], 文本日志中按原样保留
	'b': {kind: core.Int8},
	'B': {kind: core.Uint8},
	'h': {kind: core.Int16},
	'H': {kind: core.Uint16},
	'i': {kind: core.Int32},
	'I': {kind: core.Uint32},
	'f': {kind: core.Float32},
	'd': {kind: core.Float64},
	'n': {kind: core.Bytes, size: 4},
	'N': {kind: core.Bytes, size: 16},
	'Z': {kind: core.Bytes, size: 64},
	'c': {kind: core.Int16, scale: 100},
	'C': {kind: core.Uint16, scale: 100},
	'e': {kind: core.Int32, scale: 100},
	'E': {kind: core.Uint32, scale: 100},
	'L': {kind: core.Int32, scale: 1e7},
	'M': {kind: core.Bytes, size: 1}, // 飞行模式, 文本日志中写的是模式名
	'q': {kind: core.Int64},
	'Q': {kind: core.Uint64},
}

// Format 一条 FMT 记录
type Format struct {
	Index   int
	Length  int
	Name    string
	Codes   string
	Columns []string
}

// ParseFormat 解析 "FMT, idx, len, NAME, codes, col1, col2, ..." 的字段部分
func ParseFormat(parts []string) (*Format, error) {
	if len(parts) < 6 || parts[0] != "FMT" {
		return nil, errors.Wrapf(core.ErrTruncated, "FMT needs at least 6 values, have %d", len(parts))
	}
	index, err := cast.ToIntE(parts[1])
	if err != nil {
		return nil, errors.Wrapf(core.ErrBadValue, "FMT index %q", parts[1])
	}
	length, err := cast.ToIntE(parts[2])
	if err != nil {
		return nil, errors.Wrapf(core.ErrBadValue, "FMT length %q", parts[2])
	}
	f := &Format{
		Index:   index,
		Length:  length,
		Name:    parts[3],
		Codes:   parts[4],
		Columns: parts[5:],
	}
	if f.Name == "" {
		return nil, errors.Wrap(core.ErrBadValue, "FMT without name")
	}
	// 类型码与列名个数不一致时按较短的一方对齐
	if n := min(len(f.Codes), len(f.Columns)); n != len(f.Codes) || n != len(f.Columns) {
		log.Debug("FMT codes and columns differ",
			zap.String("name", f.Name),
			zap.Int("codes", len(f.Codes)),
			zap.Int("columns", len(f.Columns)),
		)
		f.Codes, f.Columns = f.Codes[:n], f.Columns[:n]
	}
	return f, nil
}

// Schema 由类型码生成 MessageSchema
func (f *Format) Schema() (*core.MessageSchema, error) {
	fields := make([]core.FieldSpec, 0, len(f.Codes))
	for i := 0; i < len(f.Codes); i++ {
		code, ok := typeCodes[f.Codes[i]]
		if !ok {
			return nil, errors.Wrapf(core.ErrBadValue, "FMT %s: unknown type code %q", f.Name, f.Codes[i])
		}
		fields = append(fields, core.FieldSpec{
			Name:  strings.TrimSpace(f.Columns[i]),
			Type:  code.kind,
			Size:  code.size,
			Scale: code.scale,
		})
	}
	fields, _ = core.Sequential(fields, 0)
	return core.NewMessageSchema(uint32(f.Index), f.Name, fields)
}
