package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapSingleOverflow(t *testing.T) {
	const period = int64(1) << 32
	for pos := 1; pos < 20; pos++ {
		ticks := make([]uint32, 20)
		v := uint32(0xFFFFFFFF - 10*uint32(pos))
		for i := range ticks {
			if i == pos {
				v = 5
			}
			ticks[i] = v
			v += 1
		}
		out := Unwrap(ticks, period, WrapBelow[uint32](1e8))
		for i := 1; i < len(out); i++ {
			require.GreaterOrEqual(t, out[i], out[i-1], "pos %d idx %d", pos, i)
		}
		for i := pos; i < len(out); i++ {
			assert.Equal(t, int64(ticks[i])+period, out[i])
		}
		for i := 0; i < pos; i++ {
			assert.Equal(t, int64(ticks[i]), out[i])
		}
	}
}

func TestUnwrapNoiseLeftAlone(t *testing.T) {
	ticks := []uint32{500_000_000, 400_000_000, 600_000_000}
	out := Unwrap(ticks, 1<<32, WrapBelow[uint32](1e8))
	assert.Equal(t, []int64{500_000_000, 400_000_000, 600_000_000}, out)
}

func TestUnwrapDrop(t *testing.T) {
	counter := []uint16{65500, 65516, 12, 28}
	out := Unwrap(counter, 1<<16, WrapDrop[uint16](4096))
	assert.Equal(t, []int64{65500, 65516, 65548, 65564}, out)
}

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	assert.Nil(t, r.All())
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.All())
}

func TestSafeCall(t *testing.T) {
	err := SafeCall(func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	require.Error(t, err)

	sentinel := errors.New("plain")
	require.Equal(t, sentinel, SafeCall(func() error { return sentinel }))
}
