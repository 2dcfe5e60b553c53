package logging

import (
	"encoding/hex"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent.
const LogLevelEnvVar = "NANRTT_LOG_LEVEL"

// maxDump bounds how many bytes of a frame are written to the log.
const maxDump = 256

var current atomic.Pointer[zap.Logger]

// Initialize installs a console logger on stderr at level. An empty level
// falls back to NANRTT_LOG_LEVEL; if that is empty too the logger is
// silent. Unrecognised levels log at info.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		Use(zap.NewNop())
		return nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	Use(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(zapcore.Lock(os.Stderr))))
	return nil
}

// InitializeFromEnv initializes the logger from NANRTT_LOG_LEVEL.
func InitializeFromEnv() error {
	return Initialize("")
}

// Use replaces the global logger. Tests use it with observer cores.
func Use(l *zap.Logger) {
	current.Store(l)
}

// GetLogger returns the global logger, a no-op logger until one is set.
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	current.CompareAndSwap(nil, zap.NewNop())
	return current.Load()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogSessionEvent logs a lifecycle event of a discovery session at debug.
func LogSessionEvent(mode, service, event string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+3)
	all = append(all, zap.String("mode", mode), zap.String("service", service), zap.String("event", event))
	Debug("Session event", append(all, fields...)...)
}

// LogRawBytes logs a message frame as hex and printable ASCII at debug.
func LogRawBytes(label string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b < ' ' || b > '~' {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = GetLogger().Sync()
}
