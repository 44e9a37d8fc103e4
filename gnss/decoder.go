// Package gnss decodes UBX navigation messages and merges the NAV subtypes onto
// the position fixes.
package gnss

import (
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"time"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/framing"
	"github.com/vuuvv/vtelemetry/gpstime"
	"github.com/vuuvv/vtelemetry/log"
	"go.uber.org/zap"
)

const (
	Protocol = "gnss"

	headerSize   = 6
	checksumSize = 2

	ColumnITOW      = "iTOW"
	ColumnTimestamp = "timestamp"
)

var ErrNoStartDate = errors.New("no start date")

type Config struct {
	// StartDate 记录开始的日期, 用于确定 GPS 周. 为空时取第一条有效 NAV-PVT 的日期
	StartDate time.Time `yaml:"start_date"`
	// LeapSeconds 非 0 时覆盖按日期查表的闰秒数
	LeapSeconds int `yaml:"leap_seconds"`
	// Reference 合并时作为时间基准的子类型
	Reference    string `yaml:"reference"`
	MaxFrameSize int    `yaml:"max_frame_size"`
}

func DefaultConfig() Config {
	c := Config{}
	c.Setup()
	return c
}

func (c *Config) Setup() {
	if c.Reference == "" {
		c.Reference = PosLLH
	}
}

type Result struct {
	// Series 每个子类型一个序列, 带 timestamp 列
	Series map[string]*core.TimeSeries
	// Merged 以 Reference 为基准合并后的序列
	Merged  *core.TimeSeries
	Week    int
	Leap    int
	TimeErr error
	Stats   *core.DecodeStats
}

type Decoder struct {
	config  Config
	schemas map[uint32]*core.MessageSchema
}

func NewDecoder(config Config) *Decoder {
	config.Setup()
	return &Decoder{config: config, schemas: defaultSchemas()}
}

func (d *Decoder) rule() *framing.BinaryRule {
	return &framing.BinaryRule{
		RuleName:         "ubx",
		HeaderMarker:     "b562",
		LengthOffset:     4,
		LengthSize:       2,
		LengthAdjustment: headerSize + checksumSize,
		Checksum:         core.KEY_FLETCHER8,
		ChecksumOffset:   2,
	}
}

func (d *Decoder) DecodeFile(path string) (*Result, error) {
	return d.decode(path, core.FromFile(path))
}

func (d *Decoder) Decode(r io.Reader) (*Result, error) {
	return d.decode("", core.FromReader(r))
}

func (d *Decoder) decode(source string, scan core.ScanFunc) (*Result, error) {
	stats := core.NewDecodeStats(source)
	series := make(map[string]*core.TimeSeries)

	codec := core.NewCodec(d.rule()).Stats(stats).MaxFrameSize(d.config.MaxFrameSize)
	err := scan(codec, func(frame *core.Frame) error {
		var rec *core.DecodedRecord
		ferr := frame.Err
		if ferr == nil {
			rec, ferr = d.decodeFrame(frame.Data)
		}
		if ferr != nil {
			fe := core.NewFrameError(frame.Offset, "", ferr)
			switch {
			case stderrors.Is(ferr, core.ErrUnknownSchema):
				stats.Unknown(fe)
			case stderrors.Is(ferr, core.ErrChecksumMismatch):
				stats.Checksum(fe)
			default:
				stats.Drop(fe)
			}
			return nil
		}
		s, ok := series[rec.Schema]
		if !ok {
			s = core.NewTimeSeries(rec.Schema)
			series[rec.Schema] = s
		}
		s.Append(rec)
		stats.FramesDecoded++
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Series: series, Stats: stats}
	if err = d.applyTime(result); err != nil {
		return nil, err
	}
	if result.TimeErr == nil {
		result.Merged, err = Merge(result.Series, d.config.Reference)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn(result.TimeErr, zap.String("source", source))
	}
	stats.Finish(Protocol)
	return result, nil
}

// decodeFrame B5 62 | class | id | len(2) | payload | CK_A CK_B, 校验值已由分包规则验证
func (d *Decoder) decodeFrame(frame []byte) (*core.DecodedRecord, error) {
	if len(frame) < headerSize+checksumSize {
		return nil, errors.Wrapf(core.ErrTruncated, "frame of %d bytes", len(frame))
	}
	n := int(binary.LittleEndian.Uint16(frame[4:]))
	if len(frame) < headerSize+n+checksumSize {
		return nil, errors.Wrapf(core.ErrTruncated, "frame of %d bytes, payload %d", len(frame), n)
	}
	end := headerSize + n
	schema, ok := d.schemas[key(frame[2], frame[3])]
	if !ok {
		return nil, errors.Wrapf(core.ErrUnknownSchema, "class 0x%02x id 0x%02x", frame[2], frame[3])
	}
	return core.Decode(schema, frame[headerSize:end])
}

func (d *Decoder) startDate(series map[string]*core.TimeSeries) (time.Time, bool) {
	if !d.config.StartDate.IsZero() {
		return d.config.StartDate, true
	}
	pvt, ok := series[PVT]
	if !ok {
		return time.Time{}, false
	}
	// valid 第 0 位为日期有效
	for _, rec := range pvt.Records() {
		if uint64(rec.Float("valid"))&0x01 == 0 {
			continue
		}
		year, month, day := int(rec.Float("year")), time.Month(rec.Float("month")), int(rec.Float("day"))
		if year < 2000 || month < 1 || month > 12 || day < 1 {
			continue
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// applyTime timestamp = GPS 零点 + 周 + iTOW - 闰秒, iTOW 回退超过半周时进入下一周
func (d *Decoder) applyTime(result *Result) error {
	date, ok := d.startDate(result.Series)
	if !ok {
		result.TimeErr = ErrNoStartDate
		return nil
	}
	result.Week = gpstime.Week(date)
	result.Leap = d.config.LeapSeconds
	if result.Leap == 0 {
		result.Leap = gpstime.LeapSecondsAt(date)
	}

	for name, s := range result.Series {
		tow, err := s.Column(ColumnITOW)
		if err != nil {
			return err
		}
		stamps := make([]float64, len(tow))
		week := result.Week
		for i, ms := range tow {
			if i > 0 && tow[i-1]-ms > gpstime.MsPerWeek/2 {
				week++
			}
			stamps[i] = gpstime.Unix(gpstime.ToUTCWithLeap(week, ms, result.Leap))
		}
		if s, err = s.WithColumn(ColumnTimestamp, stamps); err != nil {
			return err
		}
		result.Series[name] = s
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
