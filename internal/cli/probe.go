/*
PURPOSE:
  Defines the 'probe' subcommand.
  Measures live download bandwidth for one asset.

REQUIREMENTS:
  User-specified:
  - Take the asset URL and a login token.

  Implementation-discovered:
  - Useful to compare against the bandwidth reported by 'analyze'.

ARCHITECTURE INTEGRATION:
  - Calls: internal/probe.Prober.Run()

ERROR HANDLING:
  - Per-flavor failures are printed, not returned.

USAGE:
  analyze-performance probe https://host/content/dam/a.jpg <token>
*/

package cli

import (
	"fmt"

	"github.com/mfrisbey/scripts/internal/config"
	"github.com/mfrisbey/scripts/internal/probe"
	"github.com/spf13/cobra"
)

var probeOutputDir string

var probeCmd = &cobra.Command{
	Use:   "probe <url> <login-token>",
	Short: "Download an asset three ways and report the bandwidth of each",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if probeOutputDir != "" {
			cfg.Probe.OutputDir = probeOutputDir
		}

		out := cmd.OutOrStdout()
		p := probe.New(cfg)
		for _, res := range p.Run(cmd.Context(), args[0], args[1]) {
			if res.Error != "" {
				fmt.Fprintf(out, "%s ERROR %s\n", res.Flavor, res.Error)
				continue
			}
			fmt.Fprintf(out, "%s response code %d\n", res.Flavor, res.StatusCode)
			fmt.Fprintf(out, "%s downloaded %d bytes in %d ms. %d KB/s\n", res.Flavor, res.Bytes, res.Elapsed.Milliseconds(), res.RateKBps())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVarP(&probeOutputDir, "output-dir", "o", "", "Directory for the downloaded files")
}
