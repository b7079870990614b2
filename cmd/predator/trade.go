package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/predator/internal/alert"
	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/journal"
	"github.com/newthinker/predator/internal/metrics"
	"github.com/newthinker/predator/internal/trader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tradeDryRun bool

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the polling trader",
	Long: `Poll bars, score the watchlist on every interval and submit bracket entries
and AlphaTrend exits to the configured broker.`,
	RunE: runTrade,
}

func init() {
	tradeCmd.Flags().BoolVar(&tradeDryRun, "dry-run", false, "evaluate and log intents without submitting orders")
	rootCmd.AddCommand(tradeCmd)
}

// meteredProvider counts bars served per provider.
type meteredProvider struct {
	collector.BarProvider
	reg *metrics.Registry
}

func (m meteredProvider) GetBars(ctx context.Context, req collector.Request) (map[string]core.BarSeries, error) {
	got, err := m.BarProvider.GetBars(ctx, req)
	n := 0
	for _, s := range got {
		n += s.Len()
	}
	m.reg.AddBarsFetched(m.Name(), n)
	return got, err
}

func runTrade(cmd *cobra.Command, args []string) error {
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

	b, err := newBroker(cfg, log)
	if err != nil {
		return err
	}
	mode := broker.ExecutionAuto
	if tradeDryRun || cfg.Trader.DryRun {
		mode = broker.ExecutionDryRun
	}
	tracker := broker.NewPositionTracker(b)
	risk := broker.NewRiskChecker(broker.RiskConfig{
		MaxPositionPct:   cfg.Risk.MaxPositionPct,
		MaxDailyLossPct:  cfg.Risk.MaxDailyLossPct,
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
	}, b)
	exec := broker.NewExecutionManager(mode, b, risk, tracker)

	mreg := metrics.NewRegistry()
	cache := collector.NewBarCache(meteredProvider{provider, mreg}, cacheConfig(cfg), log.Named("cache"))

	notifiers, err := newNotifiers(cfg)
	if err != nil {
		return err
	}
	opts := []trader.Option{
		trader.WithLogger(log.Named("trader")),
		trader.WithMetrics(mreg),
		trader.WithNotifiers(notifiers),
	}
	if cfg.Journal.Enabled {
		store, err := newArchive(cfg)
		if err != nil {
			return fmt.Errorf("opening journal archive: %w", err)
		}
		opts = append(opts, trader.WithJournal(journal.New(store, cfg.Journal.Key, log.Named("journal"))))
	}
	if cfg.Alerts.Enabled {
		eval := alert.NewEvaluator(notifiers, log.Named("alert"), alert.WithCooldown(cfg.Alerts.Cooldown))
		opts = append(opts, trader.WithAlerts(eval, cfg.AlertRules()))
	}

	tr := trader.New(trader.Config{
		Watchlist:    cfg.Strategy.Watchlist,
		Benchmark:    cfg.Strategy.Benchmark,
		Peers:        cfg.Universe(),
		Timeframe:    tf,
		PollInterval: cfg.Trader.PollInterval,
	}, cache, newScorer(cfg), newPolicy(cfg), b, exec, tracker, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, mreg, log.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info("metrics server listening", zap.String("addr", cfg.Metrics.Listen), zap.String("path", cfg.Metrics.Path))
	}

	if err := tr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
