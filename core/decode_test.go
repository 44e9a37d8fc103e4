package core

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T, calc ...CalcField) *MessageSchema {
	fields, _ := Sequential([]FieldSpec{
		{Name: "i8", Type: Int8},
		{Name: "u16", Type: Uint16},
		{Name: "i32", Type: Int32, Scale: 100},
		{Name: "f32", Type: Float32},
		{Name: "f64", Type: Float64},
		{Name: "u64", Type: Uint64},
		{Name: "name", Type: Bytes, Size: 4},
	}, 0)
	s, err := NewMessageSchema(7, "TEST", fields, calc...)
	require.NoError(t, err)
	return s
}

func testPayload() []byte {
	i32 := int32(-12345)
	buf := make([]byte, 0, 31)
	buf = append(buf, 0xFE)
	buf = binary.LittleEndian.AppendUint16(buf, 513)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(i32))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(1.5))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(-2.25))
	buf = binary.LittleEndian.AppendUint64(buf, 1<<40)
	buf = append(buf, 'G', 'P', 0, 0)
	return buf
}

func TestDecode(t *testing.T) {
	s := testSchema(t)
	require.Equal(t, 31, s.MinLength())

	rec, err := Decode(s, testPayload())
	require.NoError(t, err)
	assert.Equal(t, uint32(7), rec.SchemaID)
	assert.Equal(t, "TEST", rec.Schema)

	v, ok := rec.Get("i8")
	require.True(t, ok)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(-2), v.Int64())
	assert.Equal(t, 513.0, rec.Float("u16"))
	assert.InDelta(t, -123.45, rec.Float("i32"), 1e-9)
	assert.Equal(t, 1.5, rec.Float("f32"))
	assert.Equal(t, -2.25, rec.Float("f64"))
	assert.Equal(t, float64(1<<40), rec.Float("u64"))

	name, _ := rec.Get("name")
	assert.Equal(t, "GP", name.String())
	assert.True(t, math.IsNaN(rec.Float("name")))
	assert.True(t, math.IsNaN(rec.Float("missing")))
}

func TestDecodeTruncated(t *testing.T) {
	s := testSchema(t)
	_, err := Decode(s, testPayload()[:30])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeMapped(t *testing.T) {
	s := testSchema(t)
	rec, err := DecodeMapped(s, testPayload(), MapFields(map[string]string{"i8": "roll"}, true), nil)
	require.NoError(t, err)
	assert.Equal(t, -2.0, rec.Float("roll"))
	assert.Equal(t, "i8", s.Names()[0])

	_, err = DecodeMapped(s, testPayload(), MapFields(map[string]string{"i8": "roll"}, false), nil)
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestDecodeCalc(t *testing.T) {
	s := testSchema(t, CalcField{Name: "sum", Formula: "double(fields.u16) + fields.f64"})
	rec, err := Decode(s, testPayload())
	require.NoError(t, err)
	assert.Equal(t, 510.75, rec.Float("sum"))
	assert.Equal(t, "sum", rec.Names[len(rec.Names)-1])

	_, err = NewMessageSchema(1, "BAD", s.Fields, CalcField{Name: "x", Formula: "fields.("})
	require.Error(t, err)
}

func TestDecodeVars(t *testing.T) {
	s := testSchema(t, CalcField{Name: "t2", Formula: "double(vars.tick) * 2.0"})
	rec, err := DecodeMapped(s, testPayload(), nil, map[string]any{"tick": uint64(21)})
	require.NoError(t, err)
	assert.Equal(t, 42.0, rec.Float("t2"))

	_, err = Decode(s, testPayload())
	require.Error(t, err)
}

func TestDecodeTotal(t *testing.T) {
	s := testSchema(t)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		buf := make([]byte, r.Intn(64))
		r.Read(buf)
		a, errA := Decode(s, buf)
		b, errB := Decode(s, buf)
		if len(buf) < s.MinLength() {
			require.ErrorIs(t, errA, ErrTruncated)
			continue
		}
		require.NoError(t, errA)
		require.NoError(t, errB)
		for j := range a.Values {
			assert.Equal(t, a.Values[j].String(), b.Values[j].String())
		}
	}
}

func TestSchemaValidate(t *testing.T) {
	_, err := NewMessageSchema(1, "DUP", []FieldSpec{{Name: "a", Type: Uint8}, {Name: "a", Type: Uint8, Offset: 1}})
	require.Error(t, err)
	_, err = NewMessageSchema(1, "NOSIZE", []FieldSpec{{Name: "a", Type: Bytes}})
	require.Error(t, err)
	_, err = NewMessageSchema(1, "NOTYPE", []FieldSpec{{Name: "a"}})
	require.Error(t, err)
}

func TestDecodeText(t *testing.T) {
	s, err := NewMessageSchema(0, "GPS", []FieldSpec{
		{Name: "TimeUS", Type: Uint64},
		{Name: "Status", Type: Uint8},
		{Name: "HDop", Type: Int16, Scale: 100},
		{Name: "Lat", Type: Int32, Scale: 1e7},
		{Name: "Alt", Type: Float32},
		{Name: "Tag", Type: Bytes, Size: 4},
	})
	require.NoError(t, err)

	rec, err := DecodeText(s, []string{"0012", " 3", "-150", "473977418", "12.5", "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, rec.Float("TimeUS"))
	assert.Equal(t, 3.0, rec.Float("Status"))
	assert.Equal(t, -1.5, rec.Float("HDop"))
	assert.InDelta(t, 47.3977418, rec.Float("Lat"), 1e-9)
	assert.Equal(t, 12.5, rec.Float("Alt"))

	_, err = DecodeText(s, []string{"1", "2"})
	require.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeText(s, []string{"x", "3", "0", "0", "0", "A"})
	require.ErrorIs(t, err, ErrBadValue)
}

func TestParsePrimitiveType(t *testing.T) {
	for name, want := range map[string]PrimitiveType{"int16": Int16, "double": Float64, "UINT8": Uint8, "bytes": Bytes} {
		got, err := ParsePrimitiveType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePrimitiveType("complex")
	require.Error(t, err)
}

func TestChecksums(t *testing.T) {
	assert.Equal(t, uint16(0x0206), Sum16([]byte{0xFF, 0xFF, 0x08}))
	// UBX ACK-ACK 05 01 02 00 06 01 -> 0F 38
	assert.Equal(t, uint16(0x380F), Fletcher8([]byte{0x05, 0x01, 0x02, 0x00, 0x06, 0x01}))
	_, err := FindChecksum("crc32")
	require.Error(t, err)
}
