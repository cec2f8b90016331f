package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// defaultZapLevel defines the fallback log level when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// Rotation defaults applied when a log file is configured without limits.
const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// toZapLevel converts a textual level to zapcore.Level using known level constants.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// newConsoleCore builds a zapcore.Core with a console encoder targeting stdout.
func newConsoleCore(level zapcore.Level) zapcore.Core {
	cfg := encoderConfig()
	cfg.TimeKey = ""

	encoder := zapcore.NewConsoleEncoder(cfg)
	ws := zapcore.Lock(os.Stdout) // thread-safe writer
	return zapcore.NewCore(encoder, zapcore.AddSync(ws), zap.NewAtomicLevelAt(level))
}

// newFileCore builds a JSON core writing to a size-rotated file.
func newFileCore(opts Options, level zapcore.Level) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    valueOr(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: valueOr(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     valueOr(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   opts.Compress,
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig())
	return zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.NewAtomicLevelAt(level))
}

// newZapLogger constructs a sugared zap logger from the provided options.
func newZapLogger(opts Options) *Logger {
	level := toZapLevel(opts.Level)
	core := newConsoleCore(level)
	if opts.File != "" {
		core = zapcore.NewTee(core, newFileCore(opts, level))
	}
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
	}
}

func newNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
