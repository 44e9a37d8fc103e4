package core

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/vuuvv/errors"
)

const (
	DefaultMaxFrameSize = 1 << 20
	initialBufferSize   = 64 * 1024
)

// Frame 分包结果, Data 只在 handler 调用期间有效
type Frame struct {
	Data   []byte
	Offset int64
	Rule   FramingRule
	Err    error // 规则拒绝该帧的原因
}

type FrameHandler func(frame *Frame) error

// ScanFunc 用 codec 扫描某个输入
type ScanFunc func(codec *Codec, fn FrameHandler) error

func FromReader(r io.Reader) ScanFunc {
	return func(codec *Codec, fn FrameHandler) error {
		return codec.Stream(r).Scan(fn)
	}
}

func FromFile(path string) ScanFunc {
	return func(codec *Codec, fn FrameHandler) error {
		return codec.ScanFile(path, fn)
	}
}

// Codec 按分包规则把字节流切成候选帧
type Codec struct {
	rules        []FramingRule
	stream       io.Reader
	stats        *DecodeStats
	maxFrameSize int
}

func NewCodec(rules ...FramingRule) *Codec {
	return &Codec{rules: rules, maxFrameSize: DefaultMaxFrameSize}
}

func (this *Codec) Stream(stream io.Reader) *Codec {
	this.stream = stream
	return this
}

func (this *Codec) Stats(stats *DecodeStats) *Codec {
	this.stats = stats
	return this
}

func (this *Codec) MaxFrameSize(size int) *Codec {
	if size > 0 {
		this.maxFrameSize = size
	}
	return this
}

// ScanFile 打开文件并扫描, 打开失败返回 ErrSourceOpen
func (this *Codec) ScanFile(path string, fn FrameHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return SourceOpenError(err, path)
	}
	defer func() {
		_ = f.Close()
	}()
	return this.Stream(f).Scan(fn)
}

func (this *Codec) Scan(fn FrameHandler) error {
	if this.stream == nil {
		return errors.New("codec: no stream")
	}
	if this.stats == nil {
		this.stats = NewDecodeStats("")
	}
	for _, rule := range this.rules {
		if err := rule.Setup(); err != nil {
			return err
		}
	}

	var current *Frame
	var offset int64
	split := this.Splitter()

	scanner := bufio.NewScanner(this.stream)
	scanner.Buffer(make([]byte, 0, initialBufferSize), this.maxFrameSize)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, rule, rejected, err := split(data, atEOF)
		if err != nil || advance == 0 {
			return advance, token, err
		}
		if rule != nil {
			current = &Frame{Offset: offset, Rule: rule, Err: rejected}
		} else {
			current = nil
		}
		offset += int64(advance)
		return advance, token, nil
	})

	for scanner.Scan() {
		token := scanner.Bytes()
		this.stats.BytesRead += int64(len(token))
		if current == nil {
			this.stats.JunkBytes += int64(len(token))
			continue
		}
		this.stats.FramesSeen++
		current.Data = token
		if err := fn(current); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(ErrSourceOpen, "read at %d: %v", offset, err)
	}
	return nil
}

type splitFunc func(data []byte, atEOF bool) (advance int, token []byte, rule FramingRule, rejected error, err error)

// Splitter 依次尝试每个规则, 空帧头的规则匹配任意数据. 没有规则匹配的字节作为脏数据跳过
func (this *Codec) Splitter() splitFunc {
	type Matcher struct {
		Rule   FramingRule
		Marker []byte
	}
	var matchers []Matcher
	for _, r := range this.rules {
		matchers = append(matchers, Matcher{Rule: r, Marker: r.GetHeaderMarker()})
	}

	return func(data []byte, atEOF bool) (int, []byte, FramingRule, error, error) {
		if len(data) == 0 {
			return 0, nil, nil, nil, nil
		}

		for _, m := range matchers {
			if len(data) < len(m.Marker) {
				if !atEOF && bytes.HasPrefix(m.Marker, data) {
					return 0, nil, nil, nil, nil
				}
				continue
			}
			if !bytes.HasPrefix(data, m.Marker) {
				continue
			}
			res := m.Rule.Split(data, atEOF)
			if res == nil {
				if atEOF {
					break
				}
				return 0, nil, nil, nil, nil
			}
			if res.Error != nil {
				return 0, nil, nil, nil, res.Error
			}
			if res.Advance <= 0 {
				continue
			}
			if res.Abandoned {
				return res.Advance, res.Token, nil, nil, nil
			}
			return res.Advance, res.Token, m.Rule, res.Rejected, nil
		}

		// 脏数据处理, 跳到下一个可能的帧头
		skip := len(data)
		for _, m := range matchers {
			if len(m.Marker) == 0 {
				continue
			}
			if i := bytes.IndexByte(data[1:], m.Marker[0]); i >= 0 && i+1 < skip {
				skip = i + 1
			}
		}
		return skip, data[:skip], nil, nil, nil
	}
}
