package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/newthinker/predator/internal/backtest"
	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbols string
	backtestFrom    string
	backtestTo      string
	backtestTrades  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the scoring rules and bracket exits over history",
	Long:  "Run the scorer and decision policy bar by bar over historical data and show performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbols, "symbols", "", "comma separated symbols (default: watchlist)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (default: today)")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "list every simulated trade")

	backtestCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fromDate, err := time.Parse(time.DateOnly, backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	toDate := time.Now().UTC()
	if backtestTo != "" {
		toDate, err = time.Parse(time.DateOnly, backtestTo)
		if err != nil {
			return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if toDate.Before(fromDate) {
		return fmt.Errorf("end date must be after start date")
	}

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

	bt := backtest.New(provider, newScorer(cfg), newPolicy(cfg), backtest.Config{
		BaseTimeframe: core.Timeframe(cfg.Data.Timeframe),
		Timeframe:     tf,
		Adjustment:    core.Adjustment(cfg.Data.Adjustment),
		Benchmark:     cfg.Strategy.Benchmark,
		Peers:         cfg.Universe(),
		InitialEquity: decimal.NewFromFloat(cfg.Broker.PaperCash),
	}, log.Named("backtest"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== PREDATOR Backtest ===")
	fmt.Printf("Timeframe: %s (%s via %s)\n", tf, cfg.Data.Timeframe, provider.Name())
	fmt.Printf("Period:    %s to %s\n", fromDate.Format(time.DateOnly), toDate.Format(time.DateOnly))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tBARS\tTRADES\tWIN %\tRETURN %\tMAX DD %\tSHARPE\tPF\tFINAL EQUITY\t")
	fmt.Fprintln(w, "------\t----\t------\t-----\t--------\t--------\t------\t--\t------------\t")

	var results []*backtest.Result
	for _, sym := range symbolsFlag(backtestSymbols, cfg) {
		res, err := bt.Run(ctx, sym, fromDate, toDate)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("backtest skipped", zap.String("symbol", sym), zap.Error(err))
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t-\t%s\t\n", sym, err)
			continue
		}
		results = append(results, res)
		s := res.Stats
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%+.2f\t%.2f\t%.2f\t%.2f\t%s\t\n",
			sym, res.Bars, s.TotalTrades, s.WinRate, s.TotalReturn, s.MaxDrawdown, s.SharpeRatio, s.ProfitFactor, res.FinalEquity.StringFixed(2))
	}
	w.Flush()

	if backtestTrades {
		printTrades(results)
	}
	return nil
}

func printTrades(results []*backtest.Result) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tENTRY\tPRICE\tQTY\tSCORE\tEXIT\tPRICE\tREASON\tRETURN %\t")
	for _, res := range results {
		for _, t := range res.Trades {
			exit, reason := "-", "open"
			if t.IsClosed() {
				exit, reason = t.ExitTime.Format("2006-01-02 15:04"), string(t.ExitReason)
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%s\t%.2f\t%s\t%+.2f\t\n",
				t.Symbol, t.EntryTime.Format("2006-01-02 15:04"), t.EntryPrice, t.Quantity, t.EntryScore,
				exit, t.ExitPrice, reason, t.Return*100)
		}
	}
	w.Flush()
}
