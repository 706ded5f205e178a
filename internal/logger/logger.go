// Package logger настраивает общий zap логгер по LOG_LEVEL и LOG_FORMAT
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu            sync.Mutex
	defaultLogger *zap.Logger
)

// Setup создаёт логгер процесса. Вывод всегда в stderr.
// LOG_LEVEL: debug, info, warn, error. LOG_FORMAT: json или console.
func Setup() *zap.Logger {
	l := New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	return l
}

// New строит логгер с заданным уровнем и форматом
func New(level, format string) *zap.Logger {
	lvl := zapcore.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}

// L возвращает логгер процесса, при необходимости создавая его
func L() *zap.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()

	if l == nil {
		return Setup()
	}
	return l
}
