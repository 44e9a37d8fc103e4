// Package autopilot decodes the comma separated autopilot text log whose
// record layouts are declared inline by FMT records.
package autopilot

import (
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/clock"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/framing"
	"github.com/vuuvv/vtelemetry/gpstime"
	"github.com/vuuvv/vtelemetry/log"
	"go.uber.org/zap"
)

const (
	Protocol = "autopilot"

	ColumnTimestamp = "timestamp"
)

type Config struct {
	GPSType     string `yaml:"gps_type"`
	WeekField   string `yaml:"week_field"`
	MsField     string `yaml:"ms_field"`
	TimeUSField string `yaml:"time_us_field"`
	// LeapSeconds 非 0 时覆盖按日期查表的闰秒
	LeapSeconds int `yaml:"leap_seconds"`
	// DisableClock 不把 TimeUS 映射到 UTC
	DisableClock bool         `yaml:"disable_clock"`
	Clock        clock.Config `yaml:"clock"`
}

func DefaultConfig() Config {
	c := Config{}
	c.Setup()
	return c
}

func (c *Config) Setup() {
	if c.GPSType == "" {
		c.GPSType = "GPS"
	}
	if c.WeekField == "" {
		c.WeekField = "GWk"
	}
	if c.MsField == "" {
		c.MsField = "GMS"
	}
	if c.TimeUSField == "" {
		c.TimeUSField = "TimeUS"
	}
	if c.Clock.OutlierFraction == 0 {
		c.Clock.OutlierFraction = 0.01
	}
}

type Result struct {
	Series  map[string]*core.TimeSeries
	Formats map[string]*Format
	Files   map[string]string // FILE 记录中内嵌的文本文件
	Clock   *clock.Model      // TimeUS(微秒) -> UTC 秒
	// ClockErr GPS 时间无法建立时的原因, 不影响解码结果
	ClockErr error
	Stats    *core.DecodeStats
}

type row struct {
	offset int64
	values []string
}

type Decoder struct {
	config Config
}

func NewDecoder(config Config) *Decoder {
	config.Setup()
	return &Decoder{config: config}
}

func (d *Decoder) DecodeFile(path string) (*Result, error) {
	return d.decode(path, core.FromFile(path))
}

func (d *Decoder) Decode(r io.Reader) (*Result, error) {
	return d.decode("", core.FromReader(r))
}

func (d *Decoder) decode(source string, scan core.ScanFunc) (*Result, error) {
	stats := core.NewDecodeStats(source)
	result := &Result{
		Series:  make(map[string]*core.TimeSeries),
		Formats: make(map[string]*Format),
		Files:   make(map[string]string),
		Stats:   stats,
	}
	schemas := make(map[string]*core.MessageSchema)
	groups := make(map[string][]row)
	var order []string

	// 第一遍: 收集 FMT 并按类型分组
	err := scan(core.NewCodec(&framing.TextRule{RuleName: Protocol}).Stats(stats), func(frame *core.Frame) error {
		line := strings.TrimSpace(string(frame.Data))
		if line == "" {
			return nil
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "FMT":
			format, err := ParseFormat(parts)
			if err == nil {
				var schema *core.MessageSchema
				if schema, err = format.Schema(); err == nil {
					result.Formats[format.Name] = format
					schemas[format.Name] = schema
					return nil
				}
			}
			stats.Drop(core.NewFrameError(frame.Offset, "FMT", err))
		case "FILE":
			appendFile(result.Files, parts)
		default:
			if _, ok := groups[parts[0]]; !ok {
				order = append(order, parts[0])
			}
			groups[parts[0]] = append(groups[parts[0]], row{offset: frame.Offset, values: parts[1:]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 第二遍: 按 schema 解码
	for _, name := range order {
		rows := groups[name]
		schema, ok := schemas[name]
		if !ok {
			for _, r := range rows {
				stats.Unknown(core.NewFrameError(r.offset, name, core.ErrUnknownSchema))
			}
			continue
		}
		series := core.NewTimeSeries(name)
		for _, r := range rows {
			rec, err := core.DecodeText(schema, r.values)
			if err != nil {
				stats.Drop(core.NewFrameError(r.offset, name, err))
				continue
			}
			series.Append(rec)
			stats.FramesDecoded++
		}
		if series.Len() > 0 {
			result.Series[name] = series
		}
	}

	if err := d.applyTime(result); err != nil {
		result.ClockErr = err
		log.Warn(err, zap.String("source", source))
	}

	stats.Finish(Protocol)
	return result, nil
}

// applyTime 给 GPS 序列加上 UTC 时间戳, 再用 TimeUS 拟合出的时钟给其它序列加时间戳
func (d *Decoder) applyTime(result *Result) error {
	gps, ok := result.Series[d.config.GPSType]
	if !ok {
		return errors.Wrapf(clock.ErrInsufficientPoints, "no %s records", d.config.GPSType)
	}
	stamps, err := d.gpsTimestamps(gps)
	if err != nil {
		return err
	}
	gps, err = gps.WithColumn(ColumnTimestamp, stamps)
	if err != nil {
		return err
	}
	result.Series[d.config.GPSType] = gps

	if d.config.DisableClock || !gps.Has(d.config.TimeUSField) {
		return nil
	}
	timeUS, err := gps.Column(d.config.TimeUSField)
	if err != nil {
		return err
	}
	var xs, ys []float64
	for i := range stamps {
		if !math.IsNaN(stamps[i]) {
			xs = append(xs, timeUS[i])
			ys = append(ys, stamps[i])
		}
	}
	cfg := d.config.Clock
	cfg.FreshGap = 0
	model, err := clock.Fit(xs, ys, cfg)
	if err != nil {
		return err
	}
	result.Clock = model

	for name, series := range result.Series {
		if name == d.config.GPSType || !series.Has(d.config.TimeUSField) || series.IsText(d.config.TimeUSField) {
			continue
		}
		us, err := series.Column(d.config.TimeUSField)
		if err != nil {
			return err
		}
		if result.Series[name], err = series.WithColumn(ColumnTimestamp, model.Apply(us)); err != nil {
			return err
		}
	}
	return nil
}

// gpsTimestamps GPS 周 + 周内毫秒转换为 Unix 秒, 闰秒按第一个有效定位所在的年月查表
func (d *Decoder) gpsTimestamps(gps *core.TimeSeries) ([]float64, error) {
	weeks, err := gps.Column(d.config.WeekField)
	if err != nil {
		return nil, err
	}
	ms, err := gps.Column(d.config.MsField)
	if err != nil {
		return nil, err
	}

	leap := d.config.LeapSeconds
	if leap == 0 {
		for i := range weeks {
			if weeks[i] > 0 {
				first := gpstime.ToUTCWithLeap(int(weeks[i]), ms[i], 0)
				leap = gpstime.LeapSeconds(first.Year(), first.Month())
				break
			}
		}
	}

	stamps := make([]float64, len(weeks))
	for i := range weeks {
		if !(weeks[i] > 0) || math.IsNaN(ms[i]) {
			stamps[i] = math.NaN()
			continue
		}
		stamps[i] = gpstime.Unix(gpstime.ToUTCWithLeap(int(weeks[i]), ms[i], leap))
	}
	return stamps, nil
}

// appendFile FILE, name, offset, length, data
func appendFile(files map[string]string, parts []string) {
	if len(parts) < 5 {
		return
	}
	data := strings.Join(parts[4:], ",")
	if s, err := strconv.Unquote(`"` + data + `"`); err == nil {
		data = s
	}
	files[parts[1]] += data
}

// Time 把 TimeUS 转换为 UTC
func (r *Result) Time(timeUS float64) (time.Time, bool) {
	if r.Clock == nil {
		return time.Time{}, false
	}
	sec := r.Clock.Time(timeUS)
	return time.Unix(0, int64(sec*1e9)).UTC(), true
}
