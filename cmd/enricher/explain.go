package main

import (
	"fmt"
	"strings"

	"github.com/andrewh/enricher/pkg/enrich"
	"github.com/andrewh/enricher/pkg/fixture"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <fixtures>",
		Short: "Show what the enrichment stage does to each fixture span",
		Long: "Run each span in a YAML fixture file through the enrichment stage\n" +
			"offline and print its sampled flag before and after, and which\n" +
			"attributes were added or overwritten. No telemetry is exported.\n\n" +
			"The file may be YAML fixtures, stdouttrace output (e.g. from\n" +
			"enricher emit --stdout) or an OTLP JSON export.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spans, err := fixture.Load(args[0])
			if err != nil {
				return err
			}

			p := enrich.New(nil)
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Span", "Kind", "Sampled", "Added", "Overwritten"})

			for i, s := range spans {
				in, err := s.Snapshot(i)
				if err != nil {
					return err
				}
				out := p.Apply(in)
				added, overwritten := diffAttributes(in.Attributes(), out.Attributes())
				t.AppendRow(table.Row{
					s.Name,
					in.SpanKind().String(),
					fmt.Sprintf("%t -> %t", in.SpanContext().IsSampled(), out.SpanContext().IsSampled()),
					strings.Join(added, ", "),
					strings.Join(overwritten, ", "),
				})
			}
			t.Render()
			return nil
		},
	}
}

// diffAttributes lists keys present only in after, and keys whose value changed.
func diffAttributes(before, after []attribute.KeyValue) (added, overwritten []string) {
	prev := make(map[attribute.Key]attribute.Value, len(before))
	for _, kv := range before {
		prev[kv.Key] = kv.Value
	}
	for _, kv := range after {
		old, ok := prev[kv.Key]
		switch {
		case !ok:
			added = append(added, string(kv.Key))
		case old != kv.Value:
			overwritten = append(overwritten, string(kv.Key))
		}
	}
	return added, overwritten
}
