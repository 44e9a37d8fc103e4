package core

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/vuuvv/vtelemetry/log"
	"github.com/vuuvv/vtelemetry/utils"
	"go.uber.org/zap"
)

const frameErrorHistory = 64

// DecodeStats 单次解码的诊断计数, 随结果一起返回
type DecodeStats struct {
	RunID            string
	Source           string
	FramesSeen       int
	FramesDecoded    int
	FramesDropped    int
	UnknownSchema    int
	ChecksumFailures int
	JunkBytes        int64
	BytesRead        int64
	Start            time.Time
	End              time.Time

	errors *utils.Ring[*FrameError]
}

func NewDecodeStats(source string) *DecodeStats {
	return &DecodeStats{
		RunID:  uuid.NewString(),
		Source: source,
		Start:  time.Now(),
		errors: utils.NewRing[*FrameError](frameErrorHistory),
	}
}

// Drop 记录一个被丢弃的帧
func (s *DecodeStats) Drop(err *FrameError) {
	s.FramesDropped++
	s.record(err)
}

// Unknown 记录一个未知类型的帧, 不计入丢帧
func (s *DecodeStats) Unknown(err *FrameError) {
	s.UnknownSchema++
	s.record(err)
}

// Checksum 记录一个校验失败的帧, 同时计入丢帧
func (s *DecodeStats) Checksum(err *FrameError) {
	s.ChecksumFailures++
	s.Drop(err)
}

func (s *DecodeStats) record(err *FrameError) {
	if err == nil {
		return
	}
	s.errors.Add(err)
	log.Debug("frame skipped", zap.String("run", s.RunID), zap.Error(err))
}

// Errors 最近的帧错误
func (s *DecodeStats) Errors() []*FrameError {
	return s.errors.All()
}

// Finish 结束计时并输出汇总日志
func (s *DecodeStats) Finish(protocol string) *DecodeStats {
	s.End = time.Now()
	log.Info("decode finished",
		zap.String("run", s.RunID),
		zap.String("protocol", protocol),
		zap.String("source", s.Source),
		zap.String("read", humanize.Bytes(uint64(s.BytesRead))),
		zap.Int("seen", s.FramesSeen),
		zap.Int("decoded", s.FramesDecoded),
		zap.Int("dropped", s.FramesDropped),
		zap.Int("unknown", s.UnknownSchema),
		zap.Int("checksum", s.ChecksumFailures),
		zap.Duration("elapsed", s.End.Sub(s.Start)),
	)
	return s
}

// LossRate 丢帧比例
func (s *DecodeStats) LossRate() float64 {
	if s.FramesSeen == 0 {
		return 0
	}
	return float64(s.FramesDropped) / float64(s.FramesSeen)
}
