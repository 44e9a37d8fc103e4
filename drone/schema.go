package drone

import "github.com/vuuvv/vtelemetry/core"

const (
	TypeGPS uint16 = 2096
	TypeRTK uint16 = 53234
)

type message struct {
	schema      *core.MessageSchema
	payloadSize int
}

var gpsSchema = core.MustSchema(uint32(TypeGPS), "GPS", []core.FieldSpec{
	{Name: "date", Type: core.Uint32, Offset: 0},
	{Name: "time", Type: core.Uint32, Offset: 4},
	{Name: "longitude", Type: core.Int32, Offset: 8, Scale: 1e7},
	{Name: "latitude", Type: core.Int32, Offset: 12, Scale: 1e7},
	{Name: "height_msl", Type: core.Int32, Offset: 16, Scale: 1000},
	{Name: "vel_n", Type: core.Float32, Offset: 20, Scale: 100},
	{Name: "vel_e", Type: core.Float32, Offset: 24, Scale: 100},
	{Name: "vel_d", Type: core.Float32, Offset: 28, Scale: 100},
	{Name: "hdop", Type: core.Float32, Offset: 32},
	{Name: "pdop", Type: core.Float32, Offset: 36},
	{Name: "hacc", Type: core.Float32, Offset: 40},
	{Name: "sacc", Type: core.Float32, Offset: 44},
	{Name: "num_gps", Type: core.Uint32, Offset: 56},
	{Name: "num_gln", Type: core.Uint32, Offset: 60},
	{Name: "num_sv", Type: core.Uint16, Offset: 64},
})

// yaw 与 vel_d 的高两字节重叠, 线上格式如此
var rtkSchema = core.MustSchema(uint32(TypeRTK), "RTK", []core.FieldSpec{
	{Name: "date", Type: core.Uint32, Offset: 0},
	{Name: "time", Type: core.Uint32, Offset: 4},
	{Name: "lon_p", Type: core.Float64, Offset: 8},
	{Name: "lat_p", Type: core.Float64, Offset: 16},
	{Name: "hmsl_p", Type: core.Float32, Offset: 24},
	{Name: "lon_s", Type: core.Int32, Offset: 28},
	{Name: "lat_s", Type: core.Int32, Offset: 32},
	{Name: "hmsl_s", Type: core.Int32, Offset: 36},
	{Name: "vel_n", Type: core.Float32, Offset: 40},
	{Name: "vel_e", Type: core.Float32, Offset: 44},
	{Name: "vel_d", Type: core.Float32, Offset: 48},
	{Name: "yaw", Type: core.Int16, Offset: 50},
	{Name: "svn_s", Type: core.Uint8, Offset: 52},
	{Name: "svn_p", Type: core.Uint8, Offset: 53},
	{Name: "hdop", Type: core.Float32, Offset: 54},
	{Name: "pitch", Type: core.Float32, Offset: 58},
	{Name: "pos_flg_0", Type: core.Uint8, Offset: 62},
	{Name: "pos_flg_1", Type: core.Uint8, Offset: 63},
	{Name: "pos_flg_2", Type: core.Uint8, Offset: 64},
	{Name: "pos_flg_3", Type: core.Uint8, Offset: 65},
	{Name: "pos_flg_4", Type: core.Uint8, Offset: 66},
	{Name: "pos_flg_5", Type: core.Uint8, Offset: 67},
	{Name: "gps_state", Type: core.Uint16, Offset: 68},
})

func defaultMessages() map[uint16]message {
	return map[uint16]message{
		TypeGPS: {schema: gpsSchema, payloadSize: 66},
		TypeRTK: {schema: rtkSchema, payloadSize: 72},
	}
}
