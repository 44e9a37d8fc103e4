package inertial

import (
	_ "embed"
	"encoding/hex"
	"os"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"gopkg.in/yaml.v3"
)

//go:embed default_table.yaml
var defaultTable []byte

type FieldSpec struct {
	Name   string             `yaml:"name"`
	Type   core.PrimitiveType `yaml:"type"`
	Size   int                `yaml:"size"`
	Offset *int               `yaml:"offset"` // 为空时紧跟上一个字段
	Scale  float64            `yaml:"scale"`
}

type ModeSpec struct {
	Name    string           `yaml:"name"`
	Class   uint8            `yaml:"class"`
	Address uint8            `yaml:"address"`
	Fields  []FieldSpec      `yaml:"fields"`
	Calc    []core.CalcField `yaml:"calc"`
}

// AddressTable 地址表, 模式由 (class, address) 确定
type AddressTable struct {
	Sync  string     `yaml:"sync"`
	Modes []ModeSpec `yaml:"modes"`

	sync    []byte
	schemas map[uint16]*core.MessageSchema
}

func DefaultAddressTable() *AddressTable {
	t, err := ParseAddressTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

func LoadAddressTable(path string) (*AddressTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.SourceOpenError(err, path)
	}
	return ParseAddressTable(data)
}

func ParseAddressTable(data []byte) (*AddressTable, error) {
	t := &AddressTable{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := t.Setup(); err != nil {
		return nil, err
	}
	return t, nil
}

func key(class, address uint8) uint16 {
	return uint16(class)<<8 | uint16(address)
}

func (t *AddressTable) Setup() (err error) {
	if t.Sync == "" {
		t.Sync = "aa55"
	}
	t.sync, err = hex.DecodeString(t.Sync)
	if err != nil || len(t.sync) != 2 {
		return errors.Errorf("address table: invalid sync %q", t.Sync)
	}
	if len(t.Modes) == 0 {
		return errors.New("address table: no modes")
	}
	t.schemas = make(map[uint16]*core.MessageSchema, len(t.Modes))
	for _, m := range t.Modes {
		k := key(m.Class, m.Address)
		if _, ok := t.schemas[k]; ok {
			return errors.Errorf("address table: duplicate mode %s (0x%02x/0x%02x)", m.Name, m.Class, m.Address)
		}
		fields := make([]core.FieldSpec, len(m.Fields))
		offset := 0
		for i, f := range m.Fields {
			if f.Offset != nil {
				offset = *f.Offset
			}
			fields[i] = core.FieldSpec{Name: f.Name, Type: f.Type, Size: f.Size, Offset: offset, Scale: f.Scale}
			offset += fields[i].Width()
		}
		schema, err := core.NewMessageSchema(uint32(k), m.Name, fields, m.Calc...)
		if err != nil {
			return errors.Wrapf(err, "address table: mode %s", m.Name)
		}
		t.schemas[k] = schema
	}
	return nil
}

// Lookup 按 class/address 查找模式
func (t *AddressTable) Lookup(class, address uint8) (*core.MessageSchema, bool) {
	s, ok := t.schemas[key(class, address)]
	return s, ok
}

// Sentinel 返回某个模式的 4 字节帧头
func (t *AddressTable) Sentinel(class, address uint8) []byte {
	return append(append([]byte(nil), t.sync...), class, address)
}
