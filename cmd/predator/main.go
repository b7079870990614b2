package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "predator",
	Short: "PREDATOR - AlphaTrend scanner, backtester and bracket-order trader",
	Long: `PREDATOR scores US equities on 4-hour bars with the AlphaTrend indicator and a
composite rule table, ranks them, backtests the rules and trades the signals
with ATR bracket orders on a paper or Alpaca account.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
