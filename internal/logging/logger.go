// Package logging provides the structured, one-JSON-object-per-line logger
// used across the request pipeline and config loader.
package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category groups related log lines under a stable name.
type Category string

const (
	CategoryConfigError     Category = "CONFIG_ERROR"
	CategoryValidationError Category = "VALIDATION_ERROR"
	CategoryFiltering       Category = "FILTERING"
	CategoryRouting         Category = "ROUTING"
	CategoryForwarding      Category = "FORWARDING"
	CategoryResponse        Category = "RESPONSE"
)

// Level mirrors the subset of levels the pipeline emits.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Logger emits one JSON object per line with the mandatory keys timestamp,
// level, category, message, context.
type Logger struct {
	zl *zap.Logger
}

// New builds a Logger writing JSON lines to output at the given level.
func New(level Level, output *os.File) (*Logger, error) {
	if output == nil {
		output = os.Stdout
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     rfc3339Millis,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	writer := zapcore.AddSync(output)
	core := zapcore.NewCore(encoder, writer, convertLevel(level))

	return &Logger{zl: zap.New(core)}, nil
}

func rfc3339Millis(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

func convertLevel(l Level) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Debug/Info/Warn/Error each emit exactly one summary line, with context
// nested under the "context" key as the spec requires.
func (l *Logger) Debug(category Category, message string, context map[string]interface{}) {
	l.zl.Debug(message, zap.String("category", string(category)), zap.Any("context", context))
}

func (l *Logger) Info(category Category, message string, context map[string]interface{}) {
	l.zl.Info(message, zap.String("category", string(category)), zap.Any("context", context))
}

func (l *Logger) Warn(category Category, message string, context map[string]interface{}) {
	l.zl.Warn(message, zap.String("category", string(category)), zap.Any("context", context))
}

func (l *Logger) Error(category Category, message string, err error, context map[string]interface{}) {
	if err != nil {
		if context == nil {
			context = make(map[string]interface{}, 1)
		}
		context["error"] = err.Error()
	}
	l.zl.Error(message, zap.String("category", string(category)), zap.Any("context", context))
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}
