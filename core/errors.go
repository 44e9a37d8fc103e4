package core

import (
	"fmt"

	"github.com/vuuvv/errors"
)

var (
	ErrTruncated        = errors.New("truncated")
	ErrUnknownSchema    = errors.New("unknown schema")
	ErrUnknownField     = errors.New("unknown field")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrBadValue         = errors.New("bad value")
	ErrDecodePanic      = errors.New("decode panic")
	ErrSourceOpen       = errors.New("source open failure")
)

// FrameError 单帧错误, 只影响当前帧
type FrameError struct {
	Offset int64
	Schema string
	Err    error
}

func NewFrameError(offset int64, schema string, err error) *FrameError {
	return &FrameError{Offset: offset, Schema: schema, Err: err}
}

func (e *FrameError) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("frame at %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("frame %s at %d: %v", e.Schema, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// SourceOpenError 包装打开/读取文件失败
func SourceOpenError(err error, path string) error {
	return errors.Wrapf(ErrSourceOpen, "%s: %v", path, err)
}
