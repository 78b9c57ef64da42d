// Per-command runtime: logger, profiling and telemetry providers
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof endpoint is opt-in via --pprof flag
	"sync"

	"github.com/andrewh/enricher/pkg/telemetry"
	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// session owns everything a pipeline command starts and must stop.
type session struct {
	logger        *zap.Logger
	providers     *telemetry.Providers
	stopProfiling func()
	closeOnce     sync.Once
}

func startSession(cmd *cobra.Command, v *viper.Viper) (*session, error) {
	cfg := telemetryConfig(v, cmd)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Stdout {
		if err := telemetry.CheckEndpoint(cfg.Endpoint, cfg.Protocol); err != nil {
			return nil, err
		}
	}

	logger, err := telemetry.NewLogger(v.GetBool("verbose"))
	if err != nil {
		return nil, err
	}
	otel.SetErrorHandler(telemetry.ErrorHandler(logger))

	stop, err := startProfiling(v.GetString("pprof"), v.GetString("pyroscope"), cfg.ServiceName, logger)
	if err != nil {
		return nil, err
	}

	providers, err := telemetry.Setup(cmd.Context(), cfg, logger)
	if err != nil {
		stop()
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	providers.SetGlobal()

	if cfg.Enabled(telemetry.SignalLogs) {
		logger = telemetry.BridgeLogger(logger, providers.LoggerProvider)
	}

	return &session{
		logger:        logger,
		providers:     providers,
		stopProfiling: stop,
	}, nil
}

// Close flushes and shuts down the providers, then stops profiling.
// Safe to call more than once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		if err := s.providers.ShutdownWithTimeout(); err != nil {
			s.logger.Warn("telemetry shutdown incomplete", zap.Error(err))
		}
		s.stopProfiling()
		_ = s.logger.Sync()
	})
}

func startProfiling(pprofAddr, pyroscopeAddr, appName string, logger *zap.Logger) (func(), error) {
	if pprofAddr != "" {
		go func() {
			logger.Info("pprof server listening", zap.String("addr", pprofAddr))
			if err := http.ListenAndServe(pprofAddr, nil); err != nil { //nolint:gosec // pprof server is opt-in via flag
				logger.Warn("pprof server error", zap.Error(err))
			}
		}()
	}

	if pyroscopeAddr == "" {
		return func() {}, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   pyroscopeAddr,
		Logger:          logger.Named("pyroscope").Sugar(),
	})
	if err != nil {
		return nil, fmt.Errorf("starting pyroscope profiler: %w", err)
	}
	return func() {
		if err := profiler.Stop(); err != nil {
			logger.Warn("stopping pyroscope profiler", zap.Error(err))
		}
	}, nil
}
