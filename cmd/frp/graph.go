package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/frp/internal/errors"
	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/server"
)

func graphCmd() *cobra.Command {
	var (
		demoName string
		format   string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print a demo graph",
		Long: `Build a demo graph without serving it and print its nodes.

Per-connection parts are built once, in the server network, so the
whole graph appears in the output.

Formats:
  dot    Graphviz digraph, one cluster per network
  json   snapshot with node ids, kinds, types and edges

Examples:
  frp graph --demo mouse | dot -Tsvg > mouse.svg
  frp graph --format json -o counter.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := lookupDemo(demoName)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeGraph(w, d, format)
		},
	}

	cmd.Flags().StringVarP(&demoName, "demo", "d", "counter", "Demo graph to print")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format (dot or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

// writeGraph builds d on a fresh runtime and writes its snapshot.
func writeGraph(w io.Writer, d demo, format string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := frp.NewRuntime(frp.WithLogger(logger))
	srv := server.New(rt, server.Options{Logger: logger})
	d.flatten(srv)
	snap := rt.Snapshot()

	switch format {
	case "dot":
		return frp.WriteDOT(w, snap)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		return errors.New("E502").
			WithDetail(fmt.Sprintf("Format %q is not dot or json.", format)).
			WithExample("frp graph --format dot")
	}
}
