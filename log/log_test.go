package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCastToError(t *testing.T) {
	_, err := CastToError("boom")
	require.EqualError(t, err, "boom")

	cause := errors.New("cause")
	_, err = CastToError(cause)
	require.ErrorIs(t, err, cause)
}

func TestNewFileSink(t *testing.T) {
	file := filepath.Join(t.TempDir(), "decode.log")
	l, err := New(Config{Level: "debug", Encoding: "json", File: file})
	require.NoError(t, err)

	SetLogger(l)
	defer SetLogger(nil)
	Info("decoded", zap.Int("frames", 3))
	_ = l.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"frames":3`)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, err = New(Config{Encoding: "xml"})
	require.Error(t, err)
}
