package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "imbalcv",
	Short: "Compare class-imbalance subsampling strategies under resampling",
	Long: `imbalcv runs repeated cross-validation or bootstrap resampling for a set of
rebalancing strategies, then scores each strategy once on an untouched test
set and reports how far the resampled estimate drifts from the test estimate.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
