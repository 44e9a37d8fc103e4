package synchronizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vuuvv/vtelemetry/core"
)

// uniform n 个样本, t = start + i/rate, value = f(t)
func uniform(t *testing.T, start, rate float64, n int, f func(float64) float64) *core.TimeSeries {
	times := make([]float64, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = start + float64(i)/rate
		values[i] = f(times[i])
	}
	s, err := core.NewTimeSeriesFromColumns("test", []string{"timestamp", "value"}, map[string][]float64{
		"timestamp": times,
		"value":     values,
	})
	require.NoError(t, err)
	return s
}

func linear(t float64) float64 {
	return 3*t + 1
}

func column(t *testing.T, s *core.TimeSeries, name string) []float64 {
	v, err := s.Column(name)
	require.NoError(t, err)
	return v
}

func TestNativeRateRoundTrip(t *testing.T) {
	src := uniform(t, 100, 10, 10, math.Sin)
	sync := New()
	require.NoError(t, sync.AddSource("imu", src, "timestamp"))

	out, err := sync.Synchronize(10)
	require.NoError(t, err)
	require.Equal(t, 10, out.Len())
	assert.Equal(t, []string{"timestamp", "imu_value"}, out.Names())
	assert.InDeltaSlice(t, column(t, src, "timestamp"), column(t, out, "timestamp"), 1e-9)
	assert.InDeltaSlice(t, column(t, src, "value"), column(t, out, "imu_value"), 1e-9)
}

func TestOverlapLaw(t *testing.T) {
	cases := []struct {
		name   string
		a, b   [2]float64
		failed bool
	}{
		{"overlap", [2]float64{0, 10}, [2]float64{5, 15}, false},
		{"nested", [2]float64{0, 10}, [2]float64{2, 4}, false},
		{"touching", [2]float64{0, 5}, [2]float64{5, 10}, true},
		{"disjoint", [2]float64{0, 4}, [2]float64{5, 10}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sync := New()
			require.NoError(t, sync.AddSource("a", uniform(t, c.a[0], 10/(c.a[1]-c.a[0]), 11, linear), ""))
			require.NoError(t, sync.AddSource("b", uniform(t, c.b[0], 10/(c.b[1]-c.b[0]), 11, linear), ""))
			_, err := sync.Synchronize(1)
			if c.failed {
				assert.ErrorIs(t, err, ErrNoOverlap)
				_, _, err = sync.CommonRange()
				assert.ErrorIs(t, err, ErrNoOverlap)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMixedRates(t *testing.T) {
	fast := uniform(t, 0, 10, 101, linear)
	slow := uniform(t, 0.3, 2, 17, math.Cos)

	sync := New()
	require.NoError(t, sync.AddSource("fast", fast, "timestamp"))
	require.NoError(t, sync.AddSource("slow", slow, "timestamp"))

	start, end, err := sync.CommonRange()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, start, 1e-12)
	assert.InDelta(t, 8.3, end, 1e-12)

	out, err := sync.Synchronize(2)
	require.NoError(t, err)
	require.Equal(t, int(math.Floor((end-start)*2))+1, out.Len())
	require.Equal(t, 17, out.Len())

	grid := column(t, out, "timestamp")
	values := column(t, out, "fast_value")
	for i, ts := range grid {
		assert.InDelta(t, linear(ts), values[i], 1e-9)
	}
	assert.InDeltaSlice(t, column(t, slow, "value"), column(t, out, "slow_value"), 1e-9)
}

func TestRates(t *testing.T) {
	sync := New()
	require.NoError(t, sync.AddSource("a", uniform(t, 0, 10, 11, linear), "timestamp"))

	for _, rate := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := sync.Synchronize(rate)
		assert.ErrorIs(t, err, ErrInvalidRate)
	}
	_, err := sync.Synchronize(11)
	assert.ErrorIs(t, err, ErrRateTooHigh)
	_, err = sync.Synchronize(10)
	assert.NoError(t, err)

	// 0 取最高的数据源采样率
	require.NoError(t, sync.AddSource("b", uniform(t, 0, 5, 6, linear), "timestamp"))
	out, err := sync.Synchronize(0)
	require.NoError(t, err)
	assert.Equal(t, 11, out.Len())
}

func TestSourcePrefix(t *testing.T) {
	sync := New()
	require.NoError(t, sync.AddSourceWithPrefix("inclinometer", "inc", uniform(t, 0, 2, 5, linear), "timestamp"))
	require.NoError(t, sync.AddSourceWithPrefix("gnss", "", uniform(t, 0, 2, 5, linear), "timestamp"))
	out, err := sync.Synchronize(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "inc_value", "gnss_value"}, out.Names())

	require.NoError(t, sync.AddSourceWithPrefix("other", "inc", uniform(t, 0, 2, 5, linear), "timestamp"))
	_, err = sync.Synchronize(2)
	assert.Error(t, err)
}

func TestUnsortedSourceNotMutated(t *testing.T) {
	times := []float64{0.4, 0.0, 0.2, 0.1, 0.3}
	values := make([]float64, len(times))
	for i, ts := range times {
		values[i] = linear(ts)
	}
	src, err := core.NewTimeSeriesFromColumns("raw", []string{"t", "v"}, map[string][]float64{"t": times, "v": values})
	require.NoError(t, err)

	sync := New()
	require.NoError(t, sync.AddSource("raw", src, "t"))
	out, err := sync.Synchronize(10)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1.3, 1.6, 1.9, 2.2}, column(t, out, "raw_v"), 1e-9)

	assert.Equal(t, times, column(t, src, "t"))
	assert.Equal(t, values, column(t, src, "v"))
}

func TestFieldsAndTextColumns(t *testing.T) {
	src := core.NewTimeSeries("log")
	for i := 0; i < 5; i++ {
		src.Append(&core.DecodedRecord{
			Names:  []string{"timestamp", "alt", "speed", "mode"},
			Values: []core.Value{core.Float(float64(i)), core.Float(float64(10 * i)), core.Int(int64(i)), core.Text("AUTO")},
		})
	}

	sync := New()
	require.NoError(t, sync.AddSource("all", src, "timestamp"))
	require.NoError(t, sync.AddSource("alt", src, "timestamp", "alt"))
	out, err := sync.Synchronize(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "all_alt", "all_speed", "alt_alt"}, out.Names())
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, column(t, out, "alt_alt"))
}

func TestAddRemoveSource(t *testing.T) {
	sync := New()
	assert.ErrorIs(t, sync.AddSource("empty", core.NewTimeSeries("empty"), "timestamp"), ErrEmptySource)
	assert.ErrorIs(t, sync.AddSource("a", uniform(t, 0, 1, 3, linear), "time"), ErrMissingColumn)
	assert.ErrorIs(t, sync.AddSource("a", uniform(t, 0, 1, 3, linear), "timestamp", "nope"), ErrMissingColumn)

	require.NoError(t, sync.AddSource("a", uniform(t, 0, 1, 3, linear), "timestamp"))
	require.NoError(t, sync.AddSource("b", uniform(t, 0, 1, 3, linear), "timestamp"))
	require.NoError(t, sync.AddSource("a", uniform(t, 0, 2, 5, linear), "timestamp"))
	assert.Equal(t, []string{"a", "b"}, sync.Sources())

	infos, err := sync.SourceInfo()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 5, infos[0].Samples)
	assert.InDelta(t, 2.0, infos[0].Duration, 1e-12)
	assert.InDelta(t, 2.0, infos[0].Rate, 1e-12)
	assert.Equal(t, []string{"value"}, infos[0].Columns)

	require.NoError(t, sync.RemoveSource("a"))
	assert.ErrorIs(t, sync.RemoveSource("a"), ErrUnknownSource)
	require.NoError(t, sync.RemoveSource("b"))
	_, err = sync.Synchronize(1)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestInterpolate(t *testing.T) {
	out := Interpolate([]float64{0, 1, 2}, []float64{0, 10, 0}, []float64{-0.5, 0, 0.5, 1.5, 2, 2.5})
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, []float64{0, 5, 5, 0}, out[1:5])
	assert.True(t, math.IsNaN(out[5]))
}

func TestSummary(t *testing.T) {
	sync := New()
	assert.Equal(t, "No data sources added.", sync.Summary())
	require.NoError(t, sync.AddSource("drone", uniform(t, 0, 10, 1001, linear), "timestamp"))
	summary := sync.Summary()
	assert.Contains(t, summary, "DRONE")
	assert.Contains(t, summary, "Samples: 1,001")
	assert.Contains(t, summary, "Sample Rate: 10.00 Hz")
	assert.Contains(t, summary, "Common Time Range: 0.000 - 100.000 s")
}
