package core

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/spf13/cast"
)

func ToString(val any) string {
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

func ToFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}

	i, err := strconv.ParseFloat(ToString(val), 64)
	if err == nil {
		return i, true
	}
	return 0, false
}

func ConvertBytesToIntLE(data []byte) (uint64, error) {
	byteLen := len(data)
	if byteLen < 1 || byteLen > 8 {
		return 0, fmt.Errorf("字节长度必须在1-8之间")
	}

	var result uint64
	for i := 0; i < byteLen; i++ {
		result |= uint64(data[i]) << (i * 8)
	}
	return result, nil
}

// trimText 去掉定长文本字段尾部的 0 和空白
func trimText(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(bytes.TrimSpace(data))
}
