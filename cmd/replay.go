package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// replayCmd is run --dry-run under its own name.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Recompute results from stored traces",
	Long:  "Decompose the stored traces of a previous run without invoking anything.",
	Example: `  coldbench replay --functions ms-gateway --run-id 20240101-120000
  coldbench replay --functions ms-gateway --run-id 20240101-120000 --store-driver sqlite --store-path bench.db`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		viper.Set("dry_run", true)
		return bindFlags(cmd, args)
	},
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addBenchmarkFlags(replayCmd)
}
