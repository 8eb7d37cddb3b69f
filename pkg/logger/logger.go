// Package logger builds the zap loggers used across the store. The core never
// installs a process-global sink; callers that want silence pass a nop logger
// through the options instead.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a production-grade sugared logger tagged with the given
// service name. Output goes to stderr as JSON.
func New(service string) *zap.SugaredLogger {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "ts"
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(config),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)

	return zap.New(core).Sugar().With("service", service)
}

// NewNop returns a logger that discards everything. Used as the default for
// embedded instances and throughout the test suites.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
