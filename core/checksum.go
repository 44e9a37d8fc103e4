package core

import (
	"strings"

	"github.com/vuuvv/errors"
)

const (
	KEY_SUM16     = "sum16"
	KEY_FLETCHER8 = "fletcher8"
)

// Checksum 计算 data 的校验值
type Checksum func(data []byte) uint16

var Checksums = map[string]Checksum{
	KEY_SUM16:     Sum16,
	KEY_FLETCHER8: Fletcher8,
}

func FindChecksum(name string) (Checksum, error) {
	if fn, ok := Checksums[strings.ToLower(name)]; ok {
		return fn, nil
	}
	return nil, errors.Errorf("checksum not found: %s", name)
}

// Sum16 所有字节的无符号算术和, 截断为 16 位
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Fletcher8 8 位 Fletcher 校验, 返回值低字节为 CK_A, 高字节为 CK_B
func Fletcher8(data []byte) uint16 {
	var a, b uint8
	for _, c := range data {
		a += c
		b += a
	}
	return uint16(a) | uint16(b)<<8
}
