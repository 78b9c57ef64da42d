package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/andrewh/enricher/pkg/probe"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoProbes = errors.New("no probes selected\n\nUsage: enricher probe --http https://bing.com [--postgres DSN] [--redis ADDR]")

func probeCmd(v *viper.Viper) *cobra.Command {
	var (
		httpURL     string
		postgresDSN string
		redisAddr   string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Call real dependencies through instrumented clients",
		Long: "Call real dependencies through instrumented clients so their client\n" +
			"spans pass through the enrichment pipeline. Prints one line per probe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if httpURL == "" && postgresDSN == "" && redisAddr == "" {
				return errNoProbes
			}

			sess, err := startSession(cmd, v)
			if err != nil {
				return err
			}
			defer sess.Close()

			tp := sess.providers.TracerProvider
			var probes []probe.Probe
			if httpURL != "" {
				probes = append(probes, probe.NewHTTP(httpURL, tp))
			}
			if postgresDSN != "" {
				probes = append(probes, &probe.Postgres{DSN: postgresDSN})
			}
			if redisAddr != "" {
				probes = append(probes, probe.NewRedis(redisAddr, tp))
			}

			results := probe.NewRunner(tp, sess.logger, timeout).Run(cmd.Context(), probes...)
			for _, r := range results {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&httpURL, "http", "", "GET this URL through the instrumented HTTP client")
	flags.StringVar(&postgresDSN, "postgres", "", "run SELECT NOW() against this Postgres DSN")
	flags.StringVar(&redisAddr, "redis", "", "run SET/GET/ZADD against this Redis address")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "per-probe timeout")

	return cmd
}
