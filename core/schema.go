package core

import (
	"github.com/vuuvv/errors"
)

// FieldSpec 描述消息中的一个字段
type FieldSpec struct {
	Name   string        `yaml:"name"`
	Type   PrimitiveType `yaml:"type"`
	Size   int           `yaml:"size"` // 仅 Bytes 使用
	Offset int           `yaml:"offset"`
	Scale  float64       `yaml:"scale"` // 0 表示不缩放
}

// Width 字段在线上占用的字节数
func (f FieldSpec) Width() int {
	if f.Type == Bytes {
		return f.Size
	}
	return f.Type.Size()
}

func (f FieldSpec) End() int {
	return f.Offset + f.Width()
}

// CalcField 解码后由 CEL 公式计算出的字段
type CalcField struct {
	Name    string `yaml:"name"`
	Formula string `yaml:"formula"`
}

// MessageSchema 一种消息的字段布局
type MessageSchema struct {
	ID     uint32
	Name   string
	Fields []FieldSpec
	Calc   []CalcField

	minLength int
	names     []string
	index     map[string]int
	calc      []*CelEvaluator
}

// NewMessageSchema 校验字段并编译计算字段
func NewMessageSchema(id uint32, name string, fields []FieldSpec, calc ...CalcField) (*MessageSchema, error) {
	s := &MessageSchema{ID: id, Name: name, Fields: fields, Calc: calc}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSchema 用于内置的静态表
func MustSchema(id uint32, name string, fields []FieldSpec, calc ...CalcField) *MessageSchema {
	s, err := NewMessageSchema(id, name, fields, calc...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *MessageSchema) setup() error {
	s.index = make(map[string]int, len(s.Fields)+len(s.Calc))
	s.names = make([]string, 0, len(s.Fields)+len(s.Calc))
	for i, f := range s.Fields {
		if f.Name == "" {
			return errors.Errorf("schema %s: field %d has no name", s.Name, i)
		}
		if f.Type == Invalid || f.Type > Bytes {
			return errors.Errorf("schema %s: field %s has invalid type", s.Name, f.Name)
		}
		if f.Type == Bytes && f.Size <= 0 {
			return errors.Errorf("schema %s: bytes field %s needs a size", s.Name, f.Name)
		}
		if f.Offset < 0 {
			return errors.Errorf("schema %s: field %s has negative offset", s.Name, f.Name)
		}
		if _, ok := s.index[f.Name]; ok {
			return errors.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		s.index[f.Name] = len(s.names)
		s.names = append(s.names, f.Name)
		if f.End() > s.minLength {
			s.minLength = f.End()
		}
	}
	for _, c := range s.Calc {
		if _, ok := s.index[c.Name]; ok || c.Name == "" {
			return errors.Errorf("schema %s: invalid calc field %q", s.Name, c.Name)
		}
		evaluator, err := CompileExpression(c.Formula)
		if err != nil {
			return errors.Wrapf(err, "schema %s: calc field %s", s.Name, c.Name)
		}
		s.index[c.Name] = len(s.names)
		s.names = append(s.names, c.Name)
		s.calc = append(s.calc, evaluator)
	}
	return nil
}

// MinLength 解码需要的最小字节数
func (s *MessageSchema) MinLength() int {
	return s.minLength
}

// Names 输出列名, 字段在前, 计算字段在后
func (s *MessageSchema) Names() []string {
	return s.names
}

func (s *MessageSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Sequential 按顺序排布字段, 返回总长度
func Sequential(fields []FieldSpec, start int) ([]FieldSpec, int) {
	out := make([]FieldSpec, len(fields))
	offset := start
	for i, f := range fields {
		f.Offset = offset
		out[i] = f
		offset += f.Width()
	}
	return out, offset
}
