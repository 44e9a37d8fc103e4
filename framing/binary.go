package framing

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
)

const (
	Binary         = "binary"
	defaultMaxScan = 64 * 1024
	checksumSize   = 2
)

// BinaryRule 帧头 + 小端长度字段的分包规则.
// 帧总长 = 长度字段的值 + LengthAdjustment.
// 配置了 Checksum 时帧尾 2 字节为小端校验值, 覆盖 [ChecksumOffset, 帧尾校验值),
// 校验失败的帧只跳到下一个帧头, 不信任其长度字段.
type BinaryRule struct {
	RuleName          string `yaml:"name"`
	HeaderMarker      string `yaml:"header_marker"` // 分隔符,Hex
	MinSize           int    `yaml:"min_size"`
	MaxSize           int    `yaml:"max_size"`
	LengthOffset      int    `yaml:"length_offset"`
	LengthSize        int    `yaml:"length_size"`
	LengthAdjustment  int    `yaml:"length_adjustment"`
	Aligned           bool   `yaml:"aligned"`  // 帧后必须紧跟下一个帧头或文件结束
	MaxScan           int    `yaml:"max_scan"` // 寻找下一个帧头时最多缓存的字节数
	Checksum          string `yaml:"checksum"` // 校验算法名, 见 core.Checksums
	ChecksumOffset    int    `yaml:"checksum_offset"`
	headerMarkerBytes []byte
	checksum          core.Checksum
}

func (this *BinaryRule) Name() string {
	if this.RuleName == "" {
		return Binary
	}
	return this.RuleName
}

func (this *BinaryRule) Setup() (err error) {
	if this.LengthSize < 1 || this.LengthSize > 8 {
		return errors.Errorf("BinaryRule.Setup: invalid length size %d", this.LengthSize)
	}
	if this.HeaderMarker == "" {
		return errors.New("BinaryRule.Setup: no header marker")
	}
	this.headerMarkerBytes, err = hex.DecodeString(this.HeaderMarker)
	if err != nil {
		return errors.Wrapf(err, "BinaryRule.Setup: invalid header marker: %s, should be valid hex format. eg: 7a7b", this.HeaderMarker)
	}
	if this.MaxScan <= 0 {
		this.MaxScan = defaultMaxScan
	}
	if this.Checksum != "" {
		if this.checksum, err = core.FindChecksum(this.Checksum); err != nil {
			return errors.Wrap(err, "BinaryRule.Setup")
		}
	}
	return nil
}

func (this *BinaryRule) headerLen() int {
	n := this.LengthOffset + this.LengthSize
	if n < this.MinSize {
		n = this.MinSize
	}
	if n < len(this.headerMarkerBytes) {
		n = len(this.headerMarkerBytes)
	}
	return n
}

func (this *BinaryRule) Split(data []byte, atEOF bool) *core.FramingRuleMatchResult {
	if len(data) < this.headerLen() {
		if atEOF {
			return core.NewFramingRuleMatchResult(len(data), data)
		}
		return core.WaitFramingRuleMatchResult()
	}

	bodyLen, err := core.ConvertBytesToIntLE(data[this.LengthOffset : this.LengthOffset+this.LengthSize])
	if err != nil {
		return core.ErrorFramingRuleMatchResult(err)
	}
	totalLen := int(bodyLen) + this.LengthAdjustment
	if totalLen < this.headerLen() || (this.MaxSize > 0 && totalLen > this.MaxSize) {
		return this.resync(data, atEOF)
	}

	if len(data) < totalLen {
		if atEOF || len(data) >= this.MaxScan+totalLen {
			return this.resync(data, atEOF)
		}
		return core.WaitFramingRuleMatchResult()
	}

	if this.checksum != nil {
		if err := this.verify(data[:totalLen]); err != nil {
			return this.reject(data, atEOF, err)
		}
	}

	if this.Aligned {
		rest := data[totalLen:]
		if len(rest) < len(this.headerMarkerBytes) && !atEOF {
			return core.WaitFramingRuleMatchResult()
		}
		if !bytes.HasPrefix(this.headerMarkerBytes, rest) && !bytes.HasPrefix(rest, this.headerMarkerBytes) {
			return this.resync(data, atEOF)
		}
	}

	return core.NewFramingRuleMatchResult(totalLen, data[:totalLen])
}

// resync 长度字段不可信时, 候选帧截止到下一个帧头
func (this *BinaryRule) resync(data []byte, atEOF bool) *core.FramingRuleMatchResult {
	idx := bytes.Index(data[1:], this.headerMarkerBytes)
	if idx >= 0 {
		return core.NewFramingRuleMatchResult(idx+1, data[:idx+1])
	}
	if atEOF || len(data) >= this.MaxScan {
		return core.NewFramingRuleMatchResult(len(data), data)
	}
	return core.WaitFramingRuleMatchResult()
}

// reject 校验失败, 丢弃到下一个帧头为止的字节
func (this *BinaryRule) reject(data []byte, atEOF bool, reason error) *core.FramingRuleMatchResult {
	res := this.resync(data, atEOF)
	if res == nil {
		return nil
	}
	return core.RejectFramingRuleMatchResult(res.Advance, res.Token, reason)
}

func (this *BinaryRule) verify(frame []byte) error {
	end := len(frame) - checksumSize
	if end < this.ChecksumOffset {
		return errors.Wrapf(core.ErrTruncated, "%s: frame of %d bytes", this.Name(), len(frame))
	}
	want := binary.LittleEndian.Uint16(frame[end:])
	if got := this.checksum(frame[this.ChecksumOffset:end]); got != want {
		return errors.Wrapf(core.ErrChecksumMismatch, "%s: got 0x%04x, want 0x%04x", this.Name(), got, want)
	}
	return nil
}

func (this *BinaryRule) GetHeaderMarker() []byte {
	return this.headerMarkerBytes
}
