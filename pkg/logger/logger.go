// Package logger builds the process-wide zap logger. Components receive it at
// construction; nothing in the tree uses zap globals.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to stderr. With debug enabled the
// level drops to Debug and entries carry caller annotations.
func New(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	var opts []zap.Option
	if debug {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}
