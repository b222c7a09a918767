// Package logger builds the zap loggers used by the asyncdb command.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, console format and the optional rotated log file.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`

	MaxSize    int  `mapstructure:"max_size"` // megabytes
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"` // days
	Compress   bool `mapstructure:"compress"`
}

// New returns a logger writing to stderr and, when cfg.File is set, to a
// lumberjack-rotated JSON file.
func New(cfg Config) (*zap.Logger, error) {
	return build(cfg, os.Stderr)
}

func build(cfg Config, console io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(console), level)}

	if cfg.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAge, 7),
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), file, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
