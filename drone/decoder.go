// Package drone decodes the flight-controller binary log: XOR obfuscated payloads,
// 32-bit tick counters and a tick to UTC clock recovered from the GPS records.
package drone

import (
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"time"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/clock"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/framing"
	"github.com/vuuvv/vtelemetry/log"
	"github.com/vuuvv/vtelemetry/utils"
	"go.uber.org/zap"
)

const (
	Protocol = "drone"

	minFrameSize  = 12
	typeOffset    = 4
	keyOffset     = 6
	tickOffset    = 6
	payloadOffset = 10

	tickPeriod = int64(1) << 32

	ColumnTick         = "tick"
	ColumnTimestamp    = "timestamp"
	ColumnGPSTimestamp = "gps_timestamp"
)

type Config struct {
	// WrapThreshold tick 回退且新值小于该值时认为 32 位计数器溢出
	WrapThreshold uint32       `yaml:"wrap_threshold"`
	Clock         clock.Config `yaml:"clock"`
	// GPSSigmaFilter > 0 时剔除经度偏离均值超过 N 倍标准差的 GPS 记录
	GPSSigmaFilter float64 `yaml:"gps_sigma_filter"`
}

func DefaultConfig() Config {
	c := Config{}
	c.Setup()
	return c
}

func (c *Config) Setup() {
	if c.WrapThreshold == 0 {
		c.WrapThreshold = 100_000_000
	}
	if c.Clock.FreshGap == 0 {
		c.Clock.FreshGap = 0.7
	}
	if c.Clock.OutlierFraction == 0 {
		c.Clock.OutlierFraction = 0.01
	}
}

// Result 一个文件的解码结果
type Result struct {
	Series   map[string]*core.TimeSeries
	Clock    *clock.Model
	ClockErr error // 时钟拟合失败不影响解码结果
	Stats    *core.DecodeStats
}

func (r *Result) GPS() *core.TimeSeries {
	return r.Series["GPS"]
}

func (r *Result) RTK() *core.TimeSeries {
	return r.Series["RTK"]
}

type Decoder struct {
	config   Config
	messages map[uint16]message
}

func NewDecoder(config Config) *Decoder {
	config.Setup()
	return &Decoder{config: config, messages: defaultMessages()}
}

func (d *Decoder) rule() *framing.BinaryRule {
	return &framing.BinaryRule{
		RuleName:     Protocol,
		HeaderMarker: "55",
		LengthOffset: 1,
		LengthSize:   1,
		MinSize:      minFrameSize,
		Aligned:      true,
	}
}

func (d *Decoder) DecodeFile(path string) (*Result, error) {
	return d.decode(path, core.FromFile(path))
}

func (d *Decoder) Decode(r io.Reader) (*Result, error) {
	return d.decode("", core.FromReader(r))
}

type pending struct {
	records []*core.DecodedRecord
	ticks   []uint32
}

func (d *Decoder) decode(source string, scan core.ScanFunc) (*Result, error) {
	stats := core.NewDecodeStats(source)
	var order []uint16
	byType := make(map[uint16]*pending)

	err := scan(core.NewCodec(d.rule()).Stats(stats), func(frame *core.Frame) error {
		rec, tick, ferr := d.decodeFrame(frame.Data)
		if ferr != nil {
			fe := core.NewFrameError(frame.Offset, d.schemaName(frame.Data), ferr)
			if stderrors.Is(ferr, core.ErrUnknownSchema) {
				stats.Unknown(fe)
			} else {
				stats.Drop(fe)
			}
			return nil
		}
		p, ok := byType[uint16(rec.SchemaID)]
		if !ok {
			p = &pending{}
			byType[uint16(rec.SchemaID)] = p
			order = append(order, uint16(rec.SchemaID))
		}
		p.records = append(p.records, rec)
		p.ticks = append(p.ticks, tick)
		stats.FramesDecoded++
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Series: make(map[string]*core.TimeSeries), Stats: stats}
	for _, t := range order {
		p := byType[t]
		name := d.messages[t].schema.Name
		unwrapped := utils.Unwrap(p.ticks, tickPeriod, utils.WrapBelow(d.config.WrapThreshold))
		series := core.NewTimeSeries(name)
		for i, rec := range p.records {
			series.Append(rec.WithTick(unwrapped[i]))
		}
		if unwrapped[len(unwrapped)-1]-int64(p.ticks[len(p.ticks)-1]) > 0 {
			log.Debug("tick unwrapped", zap.String("type", name), zap.Int64("offset", unwrapped[len(unwrapped)-1]-int64(p.ticks[len(p.ticks)-1])))
		}
		result.Series[name] = series
	}

	if gps, ok := result.Series["GPS"]; ok {
		gps, err = withGPSTimestamp(gps)
		if err != nil {
			return nil, err
		}
		if d.config.GPSSigmaFilter > 0 {
			gps = sigmaFilter(gps, "longitude", d.config.GPSSigmaFilter)
		}
		result.Series["GPS"] = gps
		result.Clock, result.ClockErr = d.fitClock(gps)
	} else {
		result.ClockErr = errors.Wrap(clock.ErrInsufficientPoints, "no GPS records")
	}

	if result.Clock != nil {
		for name, series := range result.Series {
			ticks, err := series.Column(ColumnTick)
			if err != nil {
				return nil, err
			}
			series, err = series.WithColumn(ColumnTimestamp, result.Clock.Apply(ticks))
			if err != nil {
				return nil, err
			}
			result.Series[name] = series
		}
	} else {
		log.Warn(result.ClockErr, zap.String("source", source))
	}

	stats.Finish(Protocol)
	return result, nil
}

func (d *Decoder) schemaName(data []byte) string {
	if len(data) < typeOffset+2 {
		return ""
	}
	if m, ok := d.messages[binary.LittleEndian.Uint16(data[typeOffset:])]; ok {
		return m.schema.Name
	}
	return ""
}

// decodeFrame 解出一帧, frame 本身不会被修改
func (d *Decoder) decodeFrame(frame []byte) (*core.DecodedRecord, uint32, error) {
	if len(frame) < minFrameSize {
		return nil, 0, errors.Wrapf(core.ErrTruncated, "frame of %d bytes", len(frame))
	}
	msgType := binary.LittleEndian.Uint16(frame[typeOffset:])
	m, ok := d.messages[msgType]
	if !ok {
		return nil, 0, errors.Wrapf(core.ErrUnknownSchema, "type %d", msgType)
	}
	declared := int(frame[1])
	if len(frame) < declared || len(frame) < payloadOffset+m.payloadSize {
		return nil, 0, errors.Wrapf(core.ErrTruncated, "%s frame of %d bytes, declared %d, payload %d", m.schema.Name, len(frame), declared, m.payloadSize)
	}

	key := frame[keyOffset]
	tick := binary.LittleEndian.Uint32(frame[tickOffset:])
	payload := make([]byte, m.payloadSize)
	for i, b := range frame[payloadOffset : payloadOffset+m.payloadSize] {
		payload[i] = b ^ key
	}

	rec, err := core.DecodeMapped(m.schema, payload, nil, map[string]any{"tick": uint64(tick)})
	if err != nil {
		return nil, 0, err
	}
	return rec, tick, nil
}

func (d *Decoder) fitClock(gps *core.TimeSeries) (*clock.Model, error) {
	ticks, err := gps.Column(ColumnTick)
	if err != nil {
		return nil, err
	}
	stamps, err := gps.Column(ColumnGPSTimestamp)
	if err != nil {
		return nil, err
	}
	var xs, ys []float64
	for i := range stamps {
		if !math.IsNaN(stamps[i]) {
			xs = append(xs, ticks[i])
			ys = append(ys, stamps[i])
		}
	}
	return clock.Fit(xs, ys, d.config.Clock)
}

func withGPSTimestamp(gps *core.TimeSeries) (*core.TimeSeries, error) {
	dates, err := gps.Column("date")
	if err != nil {
		return nil, err
	}
	times, err := gps.Column("time")
	if err != nil {
		return nil, err
	}
	stamps := make([]float64, len(dates))
	for i := range dates {
		stamps[i] = ParseDateTime(uint32(dates[i]), uint32(times[i]))
	}
	return gps.WithColumn(ColumnGPSTimestamp, stamps)
}

// ParseDateTime YYYYMMDD + HHMMSS (UTC) 转换为 Unix 秒, 无效时返回 NaN
func ParseDateTime(date, hms uint32) float64 {
	if date == 0 || hms == 0 {
		return math.NaN()
	}
	year := int(date / 10000)
	month := int(date % 10000 / 100)
	day := int(date % 100)
	hour := int(hms / 10000)
	minute := int(hms % 10000 / 100)
	second := int(hms % 100)
	if year < 2000 || month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return math.NaN()
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		return math.NaN()
	}
	return float64(t.Unix())
}

func sigmaFilter(series *core.TimeSeries, column string, n float64) *core.TimeSeries {
	values, err := series.Column(column)
	if err != nil || len(values) < 2 {
		return series
	}
	var sum, sq float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)-1))
	keep := make([]bool, len(values))
	for i, v := range values {
		keep[i] = math.Abs(v-mean) <= n*std
	}
	return series.Filter(keep)
}
