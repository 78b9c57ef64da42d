// Span enrichment pipeline CLI
// Builds an OpenTelemetry pipeline with the enrichment stage in front of the
// exporter, and emits sample or probe traffic through it
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/andrewh/enricher/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const envPrefix = "ENRICHER"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:          "enricher",
		Short:        "Span enrichment pipeline for OpenTelemetry",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd)
		},
	}

	defaults := telemetry.DefaultConfig()
	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml); keys match flag names")
	flags.Bool("verbose", false, "debug-level console logging")
	flags.String("endpoint", "", "OTLP endpoint (e.g. localhost:4318)")
	flags.String("protocol", defaults.Protocol, "OTLP protocol (http/protobuf or grpc)")
	flags.Bool("stdout", false, "emit signals to stdout as JSON")
	flags.String("signals", defaults.Signals, "comma-separated signals to emit: traces,metrics,logs")
	flags.Float64("sampling-ratio", defaults.SamplingRatio, "fraction of root traces to sample, 0 to 1")
	flags.String("service-name", defaults.ServiceName, "service.name resource attribute")
	flags.String("service-namespace", defaults.ServiceNamespace, "service.namespace resource attribute")
	flags.String("service-instance-id", defaults.ServiceInstanceID, "service.instance.id resource attribute (empty = random UUID)")
	flags.String("pprof", "", "start pprof HTTP server on this address (e.g. :6060)")
	flags.String("pyroscope", "", "send continuous profiles to this Pyroscope server (e.g. http://localhost:4040)")

	root.AddCommand(emitCmd(v))
	root.AddCommand(probeCmd(v))
	root.AddCommand(explainCmd())
	root.AddCommand(versionCmd())

	return root
}

// loadConfig binds flags, ENRICHER_* environment variables and the optional
// config file into v. Precedence: flag, env, file, default.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return nil
}

func telemetryConfig(v *viper.Viper, cmd *cobra.Command) telemetry.Config {
	return telemetry.Config{
		Endpoint:          v.GetString("endpoint"),
		Protocol:          v.GetString("protocol"),
		Stdout:            v.GetBool("stdout"),
		Writer:            cmd.OutOrStdout(),
		Signals:           v.GetString("signals"),
		SamplingRatio:     v.GetFloat64("sampling-ratio"),
		ServiceName:       v.GetString("service-name"),
		ServiceNamespace:  v.GetString("service-namespace"),
		ServiceInstanceID: v.GetString("service-instance-id"),
		Version:           version,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enricher %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	}
}
