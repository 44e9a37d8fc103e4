package framing

import (
	"bytes"

	"github.com/vuuvv/vtelemetry/core"
)

const (
	Text           = "text"
	defaultMaxLine = 64 * 1024
)

// TextRule 按结束符切分文本行, 返回的 token 不含结束符和行尾的 \r
type TextRule struct {
	RuleName     string `yaml:"name"`
	HeaderMarker string `yaml:"header_marker"`
	EndDelimiter string `yaml:"end_delimiter"` // 结束符号
	MaxLen       int    `yaml:"max_len"`
}

func (this *TextRule) Name() string {
	if this.RuleName == "" {
		return Text
	}
	return this.RuleName
}

func (this *TextRule) Setup() error {
	if this.EndDelimiter == "" {
		this.EndDelimiter = "\n"
	}
	if this.MaxLen <= 0 {
		this.MaxLen = defaultMaxLine
	}
	return nil
}

func (this *TextRule) Split(data []byte, atEOF bool) *core.FramingRuleMatchResult {
	endDelimiter := []byte(this.EndDelimiter)
	idx := bytes.Index(data, endDelimiter)

	if idx >= 0 {
		if idx > this.MaxLen {
			return core.AbandonFramingRuleMatchResult(idx+len(endDelimiter), data)
		}
		return &core.FramingRuleMatchResult{Advance: idx + len(endDelimiter), Token: bytes.TrimSuffix(data[:idx], []byte{'\r'})}
	}

	if len(data) > this.MaxLen {
		return core.AbandonFramingRuleMatchResult(len(data), data)
	}
	if atEOF {
		return core.NewFramingRuleMatchResult(len(data), bytes.TrimSuffix(data, []byte{'\r'}))
	}
	return core.WaitFramingRuleMatchResult()
}

func (this *TextRule) GetHeaderMarker() []byte {
	return []byte(this.HeaderMarker)
}
