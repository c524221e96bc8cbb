/*
PURPOSE:
  Defines the root Cobra command for the analyze-performance CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - --verbose lowers the log level before any subcommand runs.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/analyze-performance/main.go
  - Calls: Child commands (analyze, probe)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands.

RELATED FILES:
  - cmd/analyze-performance/main.go
*/

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mfrisbey/scripts/internal/output"
	"github.com/spf13/cobra"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "analyze-performance",
		Short: "Performance analysis of SMB command and HTTP request traces",
		Long: `Reads the SMB command trace and the HTTP request trace of a desktop client,
pairs begin/end entries and reports latency, status and bandwidth statistics.
Use 'analyze --help' for report options.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				output.SetLevel(slog.LevelDebug)
			}
		},
	}
)

// Execute executes the root command. Interrupts cancel in-flight probes.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./analyze-performance.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
