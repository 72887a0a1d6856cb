// Package netlog builds the node-wide structured logger. Grounded on the
// teacher's utils/log.go (zap + lumberjack, JSON file sink, level filtered
// by config), but built once by the caller instead of a package init() —
// this module never initializes a process-global singleton (§9 design
// notes); the *zap.Logger it returns is threaded down by reference from
// wherever App is constructed.
package netlog

import (
	"fmt"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"meshnet/config"
)

var levelMap = map[string]zapcore.Level{
	"debug":  zapcore.DebugLevel,
	"info":   zapcore.InfoLevel,
	"warn":   zapcore.WarnLevel,
	"error":  zapcore.ErrorLevel,
	"dpanic": zapcore.DPanicLevel,
	"panic":  zapcore.PanicLevel,
	"fatal":  zapcore.FatalLevel,
}

// New builds a *zap.Logger writing JSON records to a lumberjack-rotated file
// at cfg.Log.Path, filtered at cfg.Log.Level.
func New(cfg config.Log) (*zap.Logger, error) {
	level, ok := levelMap[cfg.Level]
	if !ok {
		return nil, fmt.Errorf("netlog: unknown log level %q", cfg.Level)
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level })

	hook := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    64,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	sink := zapcore.AddSync(hook)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewTee(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, enabler))
	return zap.New(core, zap.AddCaller()), nil
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}
