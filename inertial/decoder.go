// Package inertial decodes the inclinometer serial protocol: AA 55 framed
// messages addressed by class/address, a 16-bit additive checksum and a
// wrapping hardware sample counter.
package inertial

import (
	"encoding/binary"
	stderrors "errors"
	"io"
	"slices"
	"time"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/framing"
	"github.com/vuuvv/vtelemetry/utils"
)

const (
	Protocol = "inertial"

	headerSize   = 6
	checksumSize = 2

	ColumnCounter          = "counter"
	ColumnCounterTimestamp = "counter_timestamp"
	ColumnTimestamp        = "timestamp"
)

type Config struct {
	CounterField  string  `yaml:"counter_field"`
	CounterBits   int     `yaml:"counter_bits"`
	WrapThreshold uint64  `yaml:"wrap_threshold"` // 计数器回退超过该值视为溢出, 默认半个周期
	ExpectedSteps []int64 `yaml:"expected_steps"`
	CounterRate   float64 `yaml:"counter_rate"` // Hz
	// Rename 输出字段重命名, StrictRename 时未列出的字段视为错误
	Rename       map[string]string `yaml:"rename"`
	StrictRename bool              `yaml:"strict_rename"`
	Negate       []string          `yaml:"negate"`
	// StartTime 计数器零点对应的 UTC 时间, 为空时不生成 timestamp
	StartTime    time.Time `yaml:"start_time"`
	MaxFrameSize int       `yaml:"max_frame_size"`
}

func DefaultConfig() Config {
	c := Config{}
	c.Setup()
	return c
}

func (c *Config) Setup() {
	if c.CounterField == "" {
		c.CounterField = "Counter"
	}
	if c.CounterBits <= 0 || c.CounterBits > 62 {
		c.CounterBits = 16
	}
	if c.WrapThreshold == 0 {
		c.WrapThreshold = uint64(1) << (c.CounterBits - 1)
	}
	if len(c.ExpectedSteps) == 0 {
		c.ExpectedSteps = []int64{13, 16}
	}
	if c.CounterRate == 0 {
		c.CounterRate = 2000
	}
}

type Result struct {
	Series map[string]*core.TimeSeries
	Stats  *core.DecodeStats
}

type Decoder struct {
	config Config
	table  *AddressTable
	mapper core.FieldMapper
}

// NewDecoder table 为空时使用内置地址表
func NewDecoder(config Config, table *AddressTable) *Decoder {
	config.Setup()
	if table == nil {
		table = DefaultAddressTable()
	}
	d := &Decoder{config: config, table: table}
	if len(config.Rename) > 0 || config.StrictRename {
		d.mapper = core.MapFields(config.Rename, !config.StrictRename)
	}
	return d
}

// rule 帧头之后到校验值之前的字节做 Sum16
func (d *Decoder) rule() *framing.BinaryRule {
	return &framing.BinaryRule{
		RuleName:         Protocol,
		HeaderMarker:     d.table.Sync,
		LengthOffset:     4,
		LengthSize:       2,
		LengthAdjustment: headerSize + checksumSize,
		Checksum:         core.KEY_SUM16,
		ChecksumOffset:   len(d.table.sync),
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
	var order []string

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
			case stderrors.Is(ferr, core.ErrUnknownField):
				return fe
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
			order = append(order, rec.Schema)
		}
		s.Append(rec)
		stats.FramesDecoded++
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Series: make(map[string]*core.TimeSeries, len(series)), Stats: stats}
	for _, name := range order {
		s, err := d.postProcess(series[name])
		if err != nil {
			return nil, err
		}
		result.Series[name] = s
	}
	stats.Finish(Protocol)
	return result, nil
}

// decodeFrame AA 55 | class | address | len(2) | payload | checksum(2), 校验值已由分包规则验证
func (d *Decoder) decodeFrame(frame []byte) (*core.DecodedRecord, error) {
	if len(frame) < headerSize+checksumSize {
		return nil, errors.Wrapf(core.ErrTruncated, "frame of %d bytes", len(frame))
	}
	schema, ok := d.table.Lookup(frame[2], frame[3])
	if !ok {
		return nil, errors.Wrapf(core.ErrUnknownSchema, "class 0x%02x address 0x%02x", frame[2], frame[3])
	}
	n := int(binary.LittleEndian.Uint16(frame[4:]))
	if len(frame) < headerSize+n+checksumSize {
		return nil, errors.Wrapf(core.ErrTruncated, "%s: frame of %d bytes, payload %d", schema.Name, len(frame), n)
	}
	vars := map[string]any{"class": uint64(frame[2]), "address": uint64(frame[3])}
	return core.DecodeMapped(schema, frame[headerSize:headerSize+n], d.mapper, vars)
}

func (d *Decoder) counterField() string {
	if d.mapper == nil {
		return d.config.CounterField
	}
	if mapped, ok := d.mapper(d.config.CounterField); ok {
		return mapped
	}
	return d.config.CounterField
}

// postProcess 展开计数器, 只保留步长符合预期的记录, 并生成时间列
func (d *Decoder) postProcess(s *core.TimeSeries) (*core.TimeSeries, error) {
	var err error
	for _, name := range d.config.Negate {
		if !s.Has(name) || s.IsText(name) {
			continue
		}
		values, _ := s.Column(name)
		for i := range values {
			values[i] = -values[i]
		}
		if s, err = s.WithColumn(name, values); err != nil {
			return nil, err
		}
	}

	field := d.counterField()
	if !s.Has(field) {
		return s, nil
	}
	raw, err := s.Column(field)
	if err != nil {
		return nil, err
	}
	counter := make([]uint64, len(raw))
	for i, v := range raw {
		counter[i] = uint64(v)
	}
	unwrapped := utils.Unwrap(counter, int64(1)<<d.config.CounterBits, utils.WrapDrop(d.config.WrapThreshold))

	keep := make([]bool, len(unwrapped))
	values := make([]float64, len(unwrapped))
	for i := range unwrapped {
		values[i] = float64(unwrapped[i])
		if i > 0 {
			keep[i] = slices.Contains(d.config.ExpectedSteps, unwrapped[i]-unwrapped[i-1])
		}
	}
	if s, err = s.WithColumn(ColumnCounter, values); err != nil {
		return nil, err
	}
	s = s.Filter(keep)

	kept, _ := s.Column(ColumnCounter)
	seconds := make([]float64, len(kept))
	for i, c := range kept {
		seconds[i] = c / d.config.CounterRate
	}
	if s, err = s.WithColumn(ColumnCounterTimestamp, seconds); err != nil {
		return nil, err
	}
	if !d.config.StartTime.IsZero() {
		start := float64(d.config.StartTime.UnixNano()) / 1e9
		stamps := make([]float64, len(seconds))
		for i, sec := range seconds {
			stamps[i] = start + sec
		}
		if s, err = s.WithColumn(ColumnTimestamp, stamps); err != nil {
			return nil, err
		}
	}
	return s, nil
}
