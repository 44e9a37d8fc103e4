package log

import (
	"os"

	"github.com/vuuvv/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置, File 为空时输出到 stderr
type Config struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"` // console | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func (c *Config) Setup() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "console"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
}

// New 根据配置创建 logger
func New(c Config) (*zap.Logger, error) {
	c.Setup()
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log.New: invalid level %q", c.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch c.Encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, errors.Errorf("log.New: unknown encoding %q", c.Encoding)
	}

	var sink zapcore.WriteSyncer
	if c.File == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   c.Compress,
		})
	}
	return zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller()), nil
}
