package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/storage/bars"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncSource  string
	syncFrom    string
	syncSymbols string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download hourly bars into the local DuckDB archive",
	Long: `Fetch hourly bars for the watchlist, benchmark and sector peers from a remote
provider and store them in DuckDB. Symbols already present resume from their
newest stored bar.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSource, "source", "", "provider to download from: alpaca, polygon or yahoo (default: data.provider)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "first date for symbols not yet stored, YYYY-MM-DD (default: data.sync_start_date)")
	syncCmd.Flags().StringVar(&syncSymbols, "symbols", "", "comma separated symbols (default: universe)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	source := syncSource
	if source == "" {
		source = cfg.Data.Provider
	}
	if source == "duckdb" {
		return fmt.Errorf("sync needs a remote source; pass --source alpaca, polygon or yahoo")
	}
	from, err := time.Parse(time.DateOnly, firstNonEmpty(syncFrom, cfg.Data.SyncStartDate))
	if err != nil {
		return fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}

	reg, closer, err := providers(cfg, log)
	if err != nil {
		return err
	}
	defer closer()
	provider, err := reg.MustGet(source)
	if err != nil {
		return err
	}

	store, err := bars.Open(cfg.Data.DuckDBPath, log.Named("duckdb"))
	if err != nil {
		return err
	}
	defer store.Close()

	symbols := symbolsFlag(syncSymbols, cfg)
	if syncSymbols == "" {
		symbols = slices.Concat(symbols, cfg.Universe(), []string{cfg.Strategy.Benchmark})
		slices.Sort(symbols)
		symbols = slices.Compact(symbols)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionSetDescription(fmt.Sprintf("Syncing from %s", provider.Name())),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	results, err := store.Sync(ctx, provider, symbols, from, core.Adjustment(cfg.Data.Adjustment), func(bars.SyncResult) {
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return err
	}

	var total, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%-6s  FAILED  %v\n", r.Symbol, r.Err)
			continue
		}
		total += r.Inserted
		fmt.Printf("%-6s  %6d bars\n", r.Symbol, r.Inserted)
	}
	log.Info("sync complete",
		zap.String("source", provider.Name()),
		zap.Int("symbols", len(results)),
		zap.Int("failed", failed),
		zap.Int("bars", total))
	if failed == len(results) && failed > 0 {
		return core.WrapError(core.ErrDataFetchFailure, fmt.Errorf("every symbol failed to sync"))
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
