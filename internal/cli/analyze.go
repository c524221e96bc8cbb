/*
PURPOSE:
  Defines the 'analyze' subcommand.
  Reads both traces from a log directory and prints the report.

REQUIREMENTS:
  User-specified:
  - Take the log directory as the only argument.
  - Flags override the top-K size and the bandwidth threshold.

  Implementation-discovered:
  - Need to load config first, then apply flag overrides.
  - JSON output and a per-operation CSV export for further processing.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Analyze()
  - Uses: internal/config, internal/output

ERROR HANDLING:
  - Returns error if config load fails or the export file cannot be created.
  - Missing trace files are not errors (the engine logs them).

USAGE:
  analyze-performance analyze ~/Library/Logs/desktop
*/

package cli

import (
	"fmt"

	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/engine"
	"github.com/mfrisbey/scripts/internal/output"
	"github.com/spf13/cobra"
)

var (
	topOverride       int
	thresholdOverride int64
	policyOverride    string
	formatFlag        string
	exportCSV         string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <log-dir>",
	Short: "Analyze the SMB and HTTP traces in a log directory",
	Long: `Reads smb-cmd.log and smb-request.log (or their .zst/.gz copies) from the
given directory in a single pass and prints:
1. Summary: date range, throughput per minute, anomalies, average bandwidth.
2. Per category: incomplete entries, average runtime, counts, result codes,
   longest running and most duplicated operations.
3. The lowest bandwidth observed on large transfers.`,
	Example: `  # Report on a log directory
  analyze-performance analyze ./logs

  # Keep 20 entries per list and sample transfers of 5 MB and up
  analyze-performance analyze ./logs --top 20 --threshold 5242880

  # Machine-readable output plus every matched operation as CSV
  analyze-performance analyze ./logs --format json --export-csv ops.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		flags := cmd.Flags()
		if flags.Changed("top") {
			cfg.TopCount = topOverride
		}
		if flags.Changed("threshold") {
			cfg.RateSizeThreshold = thresholdOverride
		}
		if policyOverride != "" {
			cfg.TopKPolicy = policyOverride
		}
		if formatFlag != "text" && formatFlag != "json" {
			return fmt.Errorf("unknown format %q (want text or json)", formatFlag)
		}

		var sink engine.OperationSink
		if exportCSV != "" {
			w, err := output.NewCSVWriter(exportCSV)
			if err != nil {
				return fmt.Errorf("failed to create CSV export %s: %w", exportCSV, err)
			}
			defer w.Close()
			sink = w
		}

		// 3. Execution
		analysis, err := engine.Analyze(cfg, args[0], sink)
		if err != nil {
			return err
		}

		if formatFlag == "json" {
			return output.NewJSONWriter(cmd.OutOrStdout()).Write(analysis)
		}
		return output.WriteReport(cmd.OutOrStdout(), analysis)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&topOverride, "top", 10, "Number of entries in each top list")
	analyzeCmd.Flags().Int64Var(&thresholdOverride, "threshold", 1024*1024, "Minimum transfer size in bytes for bandwidth samples")
	analyzeCmd.Flags().StringVar(&policyOverride, "policy", "", "Top list replacement policy: best-delta or last-exceeded")
	analyzeCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", "Report format: text or json")
	analyzeCmd.Flags().StringVar(&exportCSV, "export-csv", "", "Write every matched operation to this CSV file")
}
