package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/frp/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬─┐┌─┐
  ├┤ ├┬┘├─┘
  └  ┴└─┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "frp",
		Short: "A push-based reactive dataflow engine",
		Long: `frp runs reactive dataflow graphs and serves them to websocket
clients.

Graphs are built from typed streams and behaviors. Every value pushed
into a source propagates synchronously through the graph, and named
outputs are sent to connected clients as they change.

  • serve a demo graph over websockets
  • inspect graphs as DOT or JSON
  • load test the websocket bridge`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		graphCmd(),
		demosCmd(),
		benchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
