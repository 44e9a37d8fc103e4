package log

import (
	"fmt"
	"github.com/spf13/cast"
	"github.com/vuuvv/errors"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

func Logger() *zap.Logger {
	return logger
}

// SetLogger 替换包级 logger, nil 表示静默
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return fmt.Sprintf("%+v", v)
	default:
		return cast.ToString(val)
	}
}

// Reason 把任意 panic 原因转换为日志字段
func Reason(reason any) zap.Field {
	return zap.String("reason", toString(reason))
}

func CastToError(reason any) (msg string, err error) {
	var ok bool

	err, ok = reason.(error)
	if !ok {
		err = errors.NewAndSkip(toString(reason), 2)
	}
	if err == nil {
		err = errors.NewAndSkip("Unknown Error", 2)
	} else {
		err = errors.WithStackAndSkip(err, 2)
	}

	if logger.Core().Enabled(zap.DebugLevel) {
		msg = fmt.Sprintf("%+v", err)
	} else {
		//goland:noinspection GoDfaNilDereference
		msg = err.Error()
	}

	return
}

func Error(reason any, field ...zap.Field) {
	msg, err := CastToError(reason)

	logger.Error(msg, append(field, zap.Error(err))...)
}

func Warn(reason any, field ...zap.Field) {
	msg, err := CastToError(reason)

	logger.Warn(msg, append(field, zap.Error(err))...)
}

func Info(msg string, field ...zap.Field) {
	logger.Info(msg, field...)
}

func Debug(msg string, field ...zap.Field) {
	logger.Debug(msg, field...)
}

