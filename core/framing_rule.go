package core

type FramingRuleMatchResult struct {
	Abandoned bool
	Advance   int
	Token     []byte
	Error     error
	// Rejected 规则已判定该帧无效(如校验失败), Token 仍交给 handler 计数
	Rejected error
}

func NewFramingRuleMatchResult(advance int, token []byte) *FramingRuleMatchResult {
	return &FramingRuleMatchResult{
		Advance: advance,
		Token:   token,
	}
}

// AbandonFramingRuleMatchResult 表示丢弃 size 个字节
func AbandonFramingRuleMatchResult(size int, data []byte) *FramingRuleMatchResult {
	return &FramingRuleMatchResult{
		Abandoned: true,
		Advance:   size,
		Token:     data[:size],
	}
}

// RejectFramingRuleMatchResult 帧校验失败, 只跳过 advance 个字节
func RejectFramingRuleMatchResult(advance int, token []byte, reason error) *FramingRuleMatchResult {
	return &FramingRuleMatchResult{
		Advance:  advance,
		Token:    token,
		Rejected: reason,
	}
}

// WaitFramingRuleMatchResult 数据不足, 等待更多数据
func WaitFramingRuleMatchResult() *FramingRuleMatchResult {
	return nil
}

func ErrorFramingRuleMatchResult(err error) *FramingRuleMatchResult {
	return &FramingRuleMatchResult{Error: err}
}

// FramingRule 分包规则. Split 只在 data 以 GetHeaderMarker() 开头时被调用,
// 返回 nil 表示需要更多数据, atEOF 为 true 时不允许返回 nil.
type FramingRule interface {
	Name() string
	Split(data []byte, atEOF bool) *FramingRuleMatchResult
	GetHeaderMarker() []byte
	Setup() error
}
