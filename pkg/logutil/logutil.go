// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cocopc/retention/pkg/common/moerr"
)

var _globalLogger atomic.Value

func init() {
	SetupLogger(&LogConfig{
		Level:  zapcore.InfoLevel.String(),
		Format: "console",
	})
}

// GetGlobalLogger returns the current global zap Logger.
func GetGlobalLogger() *zap.Logger {
	return _globalLogger.Load().(*zap.Logger)
}

func replaceGlobalLogger(logger *zap.Logger) {
	_globalLogger.Store(logger)
}

// LogConfig serializes log related config in toml/json.
type LogConfig struct {
	// Level log level. debug, info, warn, error, panic, fatal
	Level string `toml:"level"`
	// Format log format. console, json
	Format string `toml:"format"`
	// Filename log file name. Empty means stdout.
	Filename string `toml:"filename"`
	// MaxSize maximum size in MB of the log file before it gets rotated.
	MaxSize int `toml:"max-size"`
	// MaxDays maximum number of days to retain old log files.
	MaxDays int `toml:"max-days"`
	// MaxBackups maximum number of old log files to retain.
	MaxBackups int `toml:"max-backups"`
	// StacktraceLevel the level from which stacktraces are attached. Default fatal.
	StacktraceLevel string `toml:"stacktrace-level"`
}

// SetupLogger builds a logger from conf and installs it as the global one.
// It panics on an unsupported format or a directory as Filename.
func SetupLogger(conf *LogConfig) {
	logger := zap.New(zapcore.NewCore(conf.getEncoder(), conf.getSyncer(), conf.getLevel()), conf.getOptions()...)
	replaceGlobalLogger(logger)
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	return level
}

func (cfg *LogConfig) getStacktraceLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil || cfg.StacktraceLevel == "" {
		return zapcore.FatalLevel
	}
	return level
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{
		zap.AddStacktrace(cfg.getStacktraceLevel()),
		zap.AddCaller(),
	}
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return getConsoleSyncer()
	}
	if stat, err := os.Stat(cfg.Filename); err == nil && stat.IsDir() {
		panic("log file can't be a directory")
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	})
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stdout)
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "name",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(moerr.NewInternalErrorNoCtx("unsupported log format: %s", format))
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006/01/02 15:04:05.000000 -0700"))
}

type fieldsKey struct{}

// WithFields returns a copy of ctx carrying fields. Loggers built through
// ContextFields attach them to every entry.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if prev, ok := ctx.Value(fieldsKey{}).([]zap.Field); ok {
		fields = append(append(make([]zap.Field, 0, len(prev)+len(fields)), prev...), fields...)
	}
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// ContextFields returns the hook that turns the fields stored in a context
// into a zap option.
func ContextFields() func(ctx context.Context) zap.Option {
	return contextFields
}

func contextFields(ctx context.Context) zap.Option {
	if ctx == nil {
		return zap.Fields()
	}
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return zap.Fields(fields...)
}
