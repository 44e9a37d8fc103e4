package gnss

import "github.com/vuuvv/vtelemetry/core"

const (
	ClassNAV uint8 = 0x01

	IDPosLLH uint8 = 0x02
	IDStatus uint8 = 0x03
	IDDOP    uint8 = 0x04
	IDPVT    uint8 = 0x07
	IDVelNED uint8 = 0x12
)

const (
	PosLLH = "NAV-POSLLH"
	Status = "NAV-STATUS"
	DOP    = "NAV-DOP"
	PVT    = "NAV-PVT"
	VelNED = "NAV-VELNED"
)

// 字段名沿用接收机协议手册, 比例换算到度/米/米每秒
func sequential(id uint8, name string, fields ...core.FieldSpec) *core.MessageSchema {
	laid, _ := core.Sequential(fields, 0)
	return core.MustSchema(key(ClassNAV, id), name, laid)
}

var posllhSchema = sequential(IDPosLLH, PosLLH,
	core.FieldSpec{Name: "iTOW", Type: core.Uint32},
	core.FieldSpec{Name: "lon", Type: core.Int32, Scale: 1e7},
	core.FieldSpec{Name: "lat", Type: core.Int32, Scale: 1e7},
	core.FieldSpec{Name: "height", Type: core.Int32, Scale: 1000},
	core.FieldSpec{Name: "hMSL", Type: core.Int32, Scale: 1000},
	core.FieldSpec{Name: "hAcc", Type: core.Uint32, Scale: 1000},
	core.FieldSpec{Name: "vAcc", Type: core.Uint32, Scale: 1000},
)

var statusSchema = sequential(IDStatus, Status,
	core.FieldSpec{Name: "iTOW", Type: core.Uint32},
	core.FieldSpec{Name: "gpsFix", Type: core.Uint8},
	core.FieldSpec{Name: "flags", Type: core.Uint8},
	core.FieldSpec{Name: "fixStat", Type: core.Uint8},
	core.FieldSpec{Name: "flags2", Type: core.Uint8},
	core.FieldSpec{Name: "ttff", Type: core.Uint32},
	core.FieldSpec{Name: "msss", Type: core.Uint32},
)

var dopSchema = sequential(IDDOP, DOP,
	core.FieldSpec{Name: "iTOW", Type: core.Uint32},
	core.FieldSpec{Name: "gDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "pDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "tDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "vDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "hDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "nDOP", Type: core.Uint16, Scale: 100},
	core.FieldSpec{Name: "eDOP", Type: core.Uint16, Scale: 100},
)

var velnedSchema = sequential(IDVelNED, VelNED,
	core.FieldSpec{Name: "iTOW", Type: core.Uint32},
	core.FieldSpec{Name: "velN", Type: core.Int32, Scale: 100},
	core.FieldSpec{Name: "velE", Type: core.Int32, Scale: 100},
	core.FieldSpec{Name: "velD", Type: core.Int32, Scale: 100},
	core.FieldSpec{Name: "speed", Type: core.Uint32, Scale: 100},
	core.FieldSpec{Name: "gSpeed", Type: core.Uint32, Scale: 100},
	core.FieldSpec{Name: "heading", Type: core.Int32, Scale: 1e5},
	core.FieldSpec{Name: "sAcc", Type: core.Uint32, Scale: 100},
	core.FieldSpec{Name: "cAcc", Type: core.Uint32, Scale: 1e5},
)

// NAV-PVT 80..83 为保留字节
var pvtSchema = core.MustSchema(key(ClassNAV, IDPVT), PVT, append(pvtHead(),
	core.FieldSpec{Name: "headVeh", Type: core.Int32, Offset: 84, Scale: 1e5},
	core.FieldSpec{Name: "magDec", Type: core.Int16, Offset: 88, Scale: 100},
	core.FieldSpec{Name: "magAcc", Type: core.Uint16, Offset: 90, Scale: 100},
))

func pvtHead() []core.FieldSpec {
	fields, _ := core.Sequential([]core.FieldSpec{
		{Name: "iTOW", Type: core.Uint32},
		{Name: "year", Type: core.Uint16},
		{Name: "month", Type: core.Uint8},
		{Name: "day", Type: core.Uint8},
		{Name: "hour", Type: core.Uint8},
		{Name: "min", Type: core.Uint8},
		{Name: "sec", Type: core.Uint8},
		{Name: "valid", Type: core.Uint8},
		{Name: "tAcc", Type: core.Uint32},
		{Name: "nano", Type: core.Int32},
		{Name: "fixType", Type: core.Uint8},
		{Name: "flags", Type: core.Uint8},
		{Name: "flags2", Type: core.Uint8},
		{Name: "numSV", Type: core.Uint8},
		{Name: "lon", Type: core.Int32, Scale: 1e7},
		{Name: "lat", Type: core.Int32, Scale: 1e7},
		{Name: "height", Type: core.Int32, Scale: 1000},
		{Name: "hMSL", Type: core.Int32, Scale: 1000},
		{Name: "hAcc", Type: core.Uint32, Scale: 1000},
		{Name: "vAcc", Type: core.Uint32, Scale: 1000},
		{Name: "velN", Type: core.Int32, Scale: 1000},
		{Name: "velE", Type: core.Int32, Scale: 1000},
		{Name: "velD", Type: core.Int32, Scale: 1000},
		{Name: "gSpeed", Type: core.Int32, Scale: 1000},
		{Name: "headMot", Type: core.Int32, Scale: 1e5},
		{Name: "sAcc", Type: core.Uint32, Scale: 1000},
		{Name: "headAcc", Type: core.Uint32, Scale: 1e5},
		{Name: "pDOP", Type: core.Uint16, Scale: 100},
		{Name: "flags3", Type: core.Uint16},
	}, 0)
	return fields
}

func key(class, id uint8) uint32 {
	return uint32(class)<<8 | uint32(id)
}

func defaultSchemas() map[uint32]*core.MessageSchema {
	m := make(map[uint32]*core.MessageSchema)
	for _, s := range []*core.MessageSchema{posllhSchema, statusSchema, dopSchema, velnedSchema, pvtSchema} {
		m[s.ID] = s
	}
	return m
}

// subtypeOrder 合并输出时的列顺序
var subtypeOrder = []string{PosLLH, PVT, VelNED, Status, DOP}
