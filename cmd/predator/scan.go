package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/report"
	"github.com/newthinker/predator/internal/resample"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scanSymbols string
	scanArchive bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score the watchlist and print a ranking",
	Long:  "Fetch recent bars, score every watchlist symbol on its last closed bar and print the ranking.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanSymbols, "symbols", "", "comma separated symbols (default: watchlist)")
	scanCmd.Flags().BoolVar(&scanArchive, "archive", false, "archive the ranking as CSV")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	reg, closer, err := providers(cfg, log)
	if err != nil {
		return err
	}
	defer closer()
	provider, err := reg.MustGet(cfg.Data.Provider)
	if err != nil {
		return err
	}
	tf, err := scoringTimeframe(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	symbols := symbolsFlag(scanSymbols, cfg)
	fetch := slices.Concat(symbols, cfg.Universe(), []string{cfg.Strategy.Benchmark})
	slices.Sort(fetch)
	fetch = slices.Compact(fetch)

	cache := collector.NewBarCache(provider, cacheConfig(cfg), log)
	if err := cache.Prime(ctx, fetch); err != nil {
		return fmt.Errorf("fetching bars from %s: %w", provider.Name(), err)
	}

	now := time.Now()
	series := resampleAll(cache.Snapshot(), tf, now, log)
	results := newScorer(cfg).ScoreAll(symbols, series, cfg.Strategy.Benchmark)
	rows := report.Build(results)

	title := fmt.Sprintf("PREDATOR %s scan  %s  (%s)", tf, now.Format("2006-01-02 15:04"), provider.Name())
	fmt.Println(report.Render(title, rows))

	if scanArchive || cfg.Report.Archive {
		store, err := newArchive(cfg)
		if err != nil {
			return err
		}
		key := report.Key(cfg.Report.Prefix, tf, now)
		if err := report.Archive(ctx, store, key, rows); err != nil {
			return err
		}
		log.Info("scan archived", zap.String("key", key), zap.Int("rows", len(rows)))
	}
	return nil
}

// resampleAll converts every series to tf, dropping buckets still open at now.
func resampleAll(snap map[string][]core.Bar, tf core.Timeframe, now time.Time, log *zap.Logger) map[string][]core.Bar {
	out := make(map[string][]core.Bar, len(snap))
	for sym, bars := range snap {
		rs, err := resample.Resample(bars, tf.Duration(), resample.WithCutoff(now))
		if err != nil {
			log.Warn("resample failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		out[sym] = rs
	}
	return out
}
