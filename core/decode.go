package core

import (
	"maps"
	"strings"

	"github.com/spf13/cast"
	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/utils"
)

// FieldMapper 把线上字段名映射为输出名, 无法映射时返回 false
type FieldMapper func(name string) (string, bool)

// MapFields 基于固定映射表的 FieldMapper, passthrough 为 true 时未列出的字段保持原名
func MapFields(table map[string]string, passthrough bool) FieldMapper {
	return func(name string) (string, bool) {
		if mapped, ok := table[name]; ok {
			return mapped, true
		}
		return name, passthrough
	}
}

func Decode(schema *MessageSchema, data []byte) (*DecodedRecord, error) {
	return DecodeMapped(schema, data, nil, nil)
}

// DecodeMapped 按 schema 解码 data, 字段名经 mapper 映射.
// vars 为帧级变量, 计算字段中以 vars.<name> 引用
func DecodeMapped(schema *MessageSchema, data []byte, mapper FieldMapper, vars map[string]any) (rec *DecodedRecord, err error) {
	defer utils.Catch(func(reason any) {
		rec = nil
		err = errors.Wrapf(ErrDecodePanic, "%s: %v", schema.Name, reason)
	})

	if len(data) < schema.MinLength() {
		return nil, errors.Wrapf(ErrTruncated, "%s: need %d bytes, have %d", schema.Name, schema.MinLength(), len(data))
	}

	ctx := NewContext(data)
	maps.Copy(ctx.Vars, vars)
	rec = newRecord(schema)
	for i, f := range schema.Fields {
		raw, err := ctx.ReadAt(f.Offset, f.Width())
		if err != nil {
			return nil, err
		}
		v := f.Type.read(raw)
		if f.Scale != 0 && v.IsNumeric() {
			v = Float(v.Float64() / f.Scale)
		}
		rec.Values[i] = v
		ctx.Fields[f.Name] = v.Any()
	}
	if err = evaluateCalc(schema, ctx, rec); err != nil {
		return nil, err
	}
	if mapper != nil {
		if err = rec.rename(mapper); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// DecodeText 按 schema 解析文本形式的字段, tokens 与 Fields 一一对应
func DecodeText(schema *MessageSchema, tokens []string) (rec *DecodedRecord, err error) {
	defer utils.Catch(func(reason any) {
		rec = nil
		err = errors.Wrapf(ErrDecodePanic, "%s: %v", schema.Name, reason)
	})

	if len(tokens) < len(schema.Fields) {
		return nil, errors.Wrapf(ErrTruncated, "%s: need %d values, have %d", schema.Name, len(schema.Fields), len(tokens))
	}
	ctx := NewContext(nil)
	rec = newRecord(schema)
	for i, f := range schema.Fields {
		v, err := parseText(f, strings.TrimSpace(tokens[i]))
		if err != nil {
			return nil, errors.Wrapf(ErrBadValue, "%s.%s: %q: %v", schema.Name, f.Name, tokens[i], err)
		}
		if f.Scale != 0 && v.IsNumeric() {
			v = Float(v.Float64() / f.Scale)
		}
		rec.Values[i] = v
		ctx.Fields[f.Name] = v.Any()
	}
	if err = evaluateCalc(schema, ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func newRecord(schema *MessageSchema) *DecodedRecord {
	return &DecodedRecord{
		SchemaID: schema.ID,
		Schema:   schema.Name,
		Names:    schema.Names(),
		Values:   make([]Value, len(schema.Names())),
	}
}

func evaluateCalc(schema *MessageSchema, ctx *Context, rec *DecodedRecord) error {
	n := len(schema.Fields)
	for i, evaluator := range schema.calc {
		f, err := evaluator.ExecuteFloat(ctx)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", schema.Name, schema.Calc[i].Name)
		}
		rec.Values[n+i] = Float(f)
		ctx.Fields[schema.Calc[i].Name] = f
	}
	return nil
}

func (r *DecodedRecord) rename(mapper FieldMapper) error {
	names := make([]string, len(r.Names))
	for i, n := range r.Names {
		mapped, ok := mapper(n)
		if !ok {
			return errors.Wrapf(ErrUnknownField, "%s.%s", r.Schema, n)
		}
		names[i] = mapped
	}
	r.Names = names
	return nil
}

func parseText(f FieldSpec, s string) (Value, error) {
	switch {
	case f.Type == Bytes:
		return Text(s), nil
	case f.Type.IsFloat():
		v, err := cast.ToFloat64E(s)
		return Float(v), err
	case f.Type.IsSigned():
		v, err := cast.ToInt64E(normalizeInt(s))
		return Int(v), err
	case f.Type.IsUnsigned():
		v, err := cast.ToUint64E(normalizeInt(s))
		return Uint(v), err
	}
	return Value{}, errors.Errorf("unsupported type %s", f.Type)
}

// normalizeInt 去掉前导 0, 避免被当作八进制
func normalizeInt(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" || trimmed[0] == '.' {
		trimmed = "0" + trimmed
	}
	if sign == "+" {
		sign = ""
	}
	return sign + trimmed
}
