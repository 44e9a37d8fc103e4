package drone

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vuuvv/vtelemetry/clock"
	"github.com/vuuvv/vtelemetry/core"
)

func gpsPayload(date, hms uint32, lon, lat float64) []byte {
	p := make([]byte, 66)
	binary.LittleEndian.PutUint32(p[0:], date)
	binary.LittleEndian.PutUint32(p[4:], hms)
	binary.LittleEndian.PutUint32(p[8:], uint32(int32(math.Round(lon*1e7))))
	binary.LittleEndian.PutUint32(p[12:], uint32(int32(math.Round(lat*1e7))))
	binary.LittleEndian.PutUint32(p[16:], 123456)
	binary.LittleEndian.PutUint32(p[20:], math.Float32bits(250))
	binary.LittleEndian.PutUint16(p[64:], 12)
	return p
}

// frame 组装一帧, key 就是 tick 的最低字节
func frame(msgType uint16, tick uint32, payload []byte) []byte {
	f := make([]byte, payloadOffset+len(payload))
	f[0] = 0x55
	f[1] = byte(len(f))
	binary.LittleEndian.PutUint16(f[typeOffset:], msgType)
	binary.LittleEndian.PutUint32(f[tickOffset:], tick)
	key := f[keyOffset]
	for i, b := range payload {
		f[payloadOffset+i] = b ^ key
	}
	return f
}

func torn(tick uint32) []byte {
	return frame(TypeGPS, tick, make([]byte, 66))[:30]
}

func buildScenario() []byte {
	var buf bytes.Buffer
	buf.Write(frame(TypeGPS, 1000, gpsPayload(20240101, 120000, 8.5, 47.25)))
	buf.Write(torn(1500))
	buf.Write(frame(TypeGPS, 2000, gpsPayload(20240101, 120001, 8.5, 47.25)))
	buf.Write(torn(2500))
	buf.Write(frame(TypeGPS, 3000, gpsPayload(20240101, 120002, 8.5, 47.25)))
	return buf.Bytes()
}

func TestDecodeScenario(t *testing.T) {
	input := buildScenario()
	original := append([]byte(nil), input...)

	result, err := NewDecoder(DefaultConfig()).Decode(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, original, input)

	gps := result.GPS()
	require.NotNil(t, gps)
	require.Equal(t, 3, gps.Len())
	assert.Equal(t, 5, result.Stats.FramesSeen)
	assert.Equal(t, 3, result.Stats.FramesDecoded)
	assert.Equal(t, 2, result.Stats.FramesDropped)
	assert.Equal(t, 0, result.Stats.UnknownSchema)
	for _, fe := range result.Stats.Errors() {
		require.ErrorIs(t, fe, core.ErrTruncated)
	}

	require.NoError(t, result.ClockErr)
	require.NotNil(t, result.Clock)
	assert.InDelta(t, 1.0/1000, result.Clock.Slope, 1e-12)

	ticks, _ := gps.Column(ColumnTick)
	assert.Equal(t, []float64{1000, 2000, 3000}, ticks)
	stamps, _ := gps.Column(ColumnTimestamp)
	base := float64(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Unix())
	for i, s := range stamps {
		assert.InDelta(t, base+float64(i), s, 1e-6)
	}

	lon, _ := gps.Column("longitude")
	assert.InDelta(t, 8.5, lon[0], 1e-9)
	height, _ := gps.Column("height_msl")
	assert.InDelta(t, 123.456, height[0], 1e-9)
	vel, _ := gps.Column("vel_n")
	assert.InDelta(t, 2.5, vel[0], 1e-9)
	sv, _ := gps.Column("num_sv")
	assert.Equal(t, 12.0, sv[0])
}

func TestDecodeUnknownAndRTK(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frame(TypeGPS, 1000, gpsPayload(20240101, 120000, 8.5, 47.25)))
	buf.Write(frame(0x1234, 1100, make([]byte, 20)))
	buf.Write(frame(TypeGPS, 2000, gpsPayload(20240101, 120001, 8.5, 47.25)))

	rtk := make([]byte, 72)
	binary.LittleEndian.PutUint64(rtk[8:], math.Float64bits(8.51))
	binary.LittleEndian.PutUint16(rtk[68:], 50)
	buf.Write(frame(TypeRTK, 2500, rtk))
	buf.Write(frame(TypeGPS, 3000, gpsPayload(20240101, 120002, 8.5, 47.25)))

	result, err := NewDecoder(DefaultConfig()).Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.UnknownSchema)
	assert.Equal(t, 0, result.Stats.FramesDropped)

	r := result.RTK()
	require.NotNil(t, r)
	require.Equal(t, 1, r.Len())
	lon, _ := r.Column("lon_p")
	assert.Equal(t, 8.51, lon[0])
	state, _ := r.Column("gps_state")
	assert.Equal(t, 50.0, state[0])

	stamps, err := r.Column(ColumnTimestamp)
	require.NoError(t, err)
	base := float64(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Unix())
	assert.InDelta(t, base+1.5, stamps[0], 1e-6)
}

func TestDecodeTickWrap(t *testing.T) {
	start := uint32(math.MaxUint32 - 1500)
	var buf bytes.Buffer
	for i := 0; i < 6; i++ {
		tick := start + uint32(i)*1000 // 第 2 帧开始溢出
		buf.Write(frame(TypeGPS, tick, gpsPayload(20240101, uint32(120000+i), 8.5, 47.25)))
	}

	result, err := NewDecoder(DefaultConfig()).Decode(&buf)
	require.NoError(t, err)
	ticks, _ := result.GPS().Column(ColumnTick)
	require.Len(t, ticks, 6)
	for i := 1; i < len(ticks); i++ {
		assert.Equal(t, 1000.0, ticks[i]-ticks[i-1])
	}
	assert.Equal(t, float64(start), ticks[0])
	require.NotNil(t, result.Clock)
	assert.InDelta(t, 1.0/1000, result.Clock.Slope, 1e-12)
}

func TestDecodeNoClock(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frame(TypeGPS, 1000, gpsPayload(0, 0, 8.5, 47.25)))

	result, err := NewDecoder(DefaultConfig()).Decode(&buf)
	require.NoError(t, err)
	require.ErrorIs(t, result.ClockErr, clock.ErrInsufficientPoints)
	assert.Nil(t, result.Clock)
	assert.False(t, result.GPS().Has(ColumnTimestamp))
	stamps, _ := result.GPS().Column(ColumnGPSTimestamp)
	assert.True(t, math.IsNaN(stamps[0]))
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "FLY001.DAT")
	require.NoError(t, os.WriteFile(path, buildScenario(), 0o644))

	result, err := NewDecoder(Config{}).DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.GPS().Len())
	assert.Equal(t, path, result.Stats.Source)

	_, err = NewDecoder(Config{}).DecodeFile(filepath.Join(t.TempDir(), "missing.DAT"))
	require.ErrorIs(t, err, core.ErrSourceOpen)
}

func TestGPSSigmaFilter(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 20; i++ {
		lon := 8.5 + float64(i%2)*1e-6
		if i == 10 {
			lon = 120
		}
		buf.Write(frame(TypeGPS, uint32(1000*(i+1)), gpsPayload(20240101, uint32(120000+i), lon, 47.25)))
	}
	result, err := NewDecoder(Config{GPSSigmaFilter: 2}).Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 19, result.GPS().Len())
}

func TestParseDateTime(t *testing.T) {
	assert.Equal(t, float64(time.Date(2023, 6, 15, 8, 30, 5, 0, time.UTC).Unix()), ParseDateTime(20230615, 83005))
	assert.True(t, math.IsNaN(ParseDateTime(19990615, 83005)))
	assert.True(t, math.IsNaN(ParseDateTime(20230231, 83005)))
	assert.True(t, math.IsNaN(ParseDateTime(20231315, 83005)))
	assert.True(t, math.IsNaN(ParseDateTime(0, 83005)))
}
