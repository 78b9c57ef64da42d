// Process logging with zap, optionally bridged into the OTel log pipeline.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/andrewh/enricher"

// NewLogger builds the process logger on stderr: JSON at info level, or
// console output at debug level when verbose.
func NewLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// BridgeLogger returns a logger that writes to both logger and the OTel log
// pipeline behind lp.
func BridgeLogger(logger *zap.Logger, lp log.LoggerProvider) *zap.Logger {
	bridge := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(lp))
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, bridge)
	}))
}

// ErrorHandler routes SDK-internal errors to logger.
func ErrorHandler(logger *zap.Logger) otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("opentelemetry error", zap.Error(err))
	})
}
