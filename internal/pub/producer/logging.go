package producer

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultErrorLogWindow = 10 * time.Second
	defaultErrorLogBurst  = 3
)

// NewThrottledLogger returns a logger that lets through at most burst entries with
// the same level and message per window and drops the rest. Producers sharing one
// throttled logger share the budget.
func NewThrottledLogger(logger *zap.Logger, window time.Duration, burst int) *zap.Logger {
	if window <= 0 {
		window = defaultErrorLogWindow
	}
	if burst <= 0 {
		burst = defaultErrorLogBurst
	}

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, window, burst, 0)
	}))
}
