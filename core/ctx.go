package core

import "github.com/vuuvv/errors"

// Context 单次解码的游标及已解出的字段
type Context struct {
	Data    []byte
	BytePos int
	Fields  map[string]any // 字段值
	Vars    map[string]any // 变量值
}

func NewContext(data []byte) *Context {
	return &Context{
		Data:   data,
		Vars:   make(map[string]any),
		Fields: make(map[string]any),
	}
}

func (c *Context) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.BytePos+n > len(c.Data) {
		return nil, errors.Wrapf(ErrTruncated, "reading bytes, need %d, have %d", n, len(c.Data)-c.BytePos)
	}
	ret := c.Data[c.BytePos : c.BytePos+n]
	c.BytePos += n
	return ret, nil
}

// ReadAt 读取 offset 处的 n 个字节并把游标移到其后
func (c *Context) ReadAt(offset, n int) ([]byte, error) {
	if offset < 0 || offset > len(c.Data) {
		return nil, errors.Wrapf(ErrTruncated, "offset %d out of range %d", offset, len(c.Data))
	}
	c.BytePos = offset
	return c.ReadBytes(n)
}

