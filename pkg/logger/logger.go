package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// project specific keys
const (
	RequestIDKey = "request_id"
	AccountIDKey = "account_id"
	ReferenceKey = "reference"
	ServiceKey   = "service"
	EnvKey       = "env"
	ErrorKey     = "error"
)

const serviceName = "bundlestore"

func init() {
	var err error
	config := zap.NewProductionConfig()

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = "caller"
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"

	config.EncoderConfig = encoderConfig
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if lvl, parseErr := zapcore.ParseLevel(raw); parseErr == nil {
			config.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	Log, err = config.Build(zap.AddCallerSkip(1), zap.Fields(zap.String(ServiceKey, serviceName)))
	if err != nil {
		panic(err)
	}
}

type Fields map[string]interface{}

func Info(msg string, fields ...Fields) {
	Log.Info(msg, getZapFields(fields)...)
}

func Error(msg string, fields ...Fields) {
	Log.Error(msg, getZapFields(fields)...)
}

func Debug(msg string, fields ...Fields) {
	Log.Debug(msg, getZapFields(fields)...)
}

func Warn(msg string, fields ...Fields) {
	Log.Warn(msg, getZapFields(fields)...)
}

func Fatal(msg string, fields ...Fields) {
	Log.Fatal(msg, getZapFields(fields)...)
}

// WithError adds an error field to the log entry
func WithError(err error) Fields {
	return Fields{
		ErrorKey: err.Error(),
	}
}

func Merge(fields ...Fields) Fields {
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

// SetLogger swaps the global logger, tests use it with zap.NewNop or an observer core.
func SetLogger(l *zap.Logger) func() {
	prev := Log
	Log = l
	return func() { Log = prev }
}

func getZapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := Merge(fields...)
	zapFields := make([]zap.Field, 0, len(merged))
	for k, v := range merged {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}
