package utils

import (
	"github.com/vuuvv/vtelemetry/log"
)

// Catch 在 defer 中使用, 把 panic 交给 handler
func Catch(handler func(reason any)) {
	if r := recover(); r != nil {
		log.Debug("recovered", log.Reason(r))
		handler(r)
	}
}

// SafeCall 执行 fn, panic 转换为 error 返回
func SafeCall(fn func() error) (err error) {
	defer Catch(func(reason any) {
		_, err = log.CastToError(reason)
	})
	return fn()
}
