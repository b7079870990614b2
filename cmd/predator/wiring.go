package main

import (
	"fmt"
	"strings"

	"github.com/newthinker/predator/internal/broker"
	alpacabroker "github.com/newthinker/predator/internal/broker/alpaca"
	"github.com/newthinker/predator/internal/broker/paper"
	"github.com/newthinker/predator/internal/collector"
	alpacadata "github.com/newthinker/predator/internal/collector/alpaca"
	"github.com/newthinker/predator/internal/collector/polygon"
	"github.com/newthinker/predator/internal/collector/yahoo"
	"github.com/newthinker/predator/internal/config"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"github.com/newthinker/predator/internal/notifier"
	"github.com/newthinker/predator/internal/notifier/telegram"
	"github.com/newthinker/predator/internal/notifier/webhook"
	"github.com/newthinker/predator/internal/policy"
	"github.com/newthinker/predator/internal/scoring"
	"github.com/newthinker/predator/internal/storage/archive"
	"github.com/newthinker/predator/internal/storage/bars"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// setup loads and validates configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	opts := logger.Options{Development: debug, Level: cfg.Log.Level}
	if debug {
		opts.Level = "debug"
	}
	if cfg.Log.File != "" {
		opts.OutputPaths = []string{"stderr", cfg.Log.File}
	}
	log, err := logger.Build(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, log, nil
}

// providers registers every bar provider the configuration has credentials
// for. The returned closer releases the DuckDB handle when one was opened.
func providers(cfg *config.Config, log *zap.Logger) (*collector.Registry, func(), error) {
	reg := collector.NewRegistry()
	closer := func() {}

	yopts := []yahoo.Option{yahoo.WithLogger(log.Named("yahoo"))}
	if cfg.Data.YahooBaseURL != "" {
		yopts = append(yopts, yahoo.WithBaseURL(cfg.Data.YahooBaseURL))
	}
	if cfg.Data.RequestTimeout > 0 {
		yopts = append(yopts, yahoo.WithTimeout(cfg.Data.RequestTimeout))
	}
	reg.Register(yahoo.New(yopts...))

	if a := cfg.Data.Alpaca; a.APIKey != "" && a.APISecret != "" {
		p, err := alpacadata.New(alpacadata.Options{APIKey: a.APIKey, APISecret: a.APISecret, BaseURL: a.BaseURL, Feed: a.Feed}, log.Named("alpaca"))
		if err != nil {
			return nil, closer, err
		}
		reg.Register(p)
	}

	if cfg.Data.PolygonAPIKey != "" {
		p, err := polygon.New(cfg.Data.PolygonAPIKey, log.Named("polygon"))
		if err != nil {
			return nil, closer, err
		}
		reg.Register(p)
	}

	if cfg.Data.Provider == "duckdb" {
		store, err := bars.Open(cfg.Data.DuckDBPath, log.Named("duckdb"))
		if err != nil {
			return nil, closer, err
		}
		reg.Register(store)
		closer = func() { store.Close() }
	}

	return reg, closer, nil
}

func newBroker(cfg *config.Config, log *zap.Logger) (broker.Broker, error) {
	switch cfg.Broker.Provider {
	case "paper":
		return paper.New(decimal.NewFromFloat(cfg.Broker.PaperCash)), nil
	case "alpaca":
		a := cfg.Broker.Alpaca
		return alpacabroker.New(alpacabroker.Options{APIKey: a.APIKey, APISecret: a.APISecret, BaseURL: a.BaseURL}, log.Named("alpaca"))
	default:
		return nil, fmt.Errorf("unknown broker provider: %s", cfg.Broker.Provider)
	}
}

func newArchive(cfg *config.Config) (archive.Store, error) {
	j := cfg.Journal
	return archive.New(archive.Options{
		Type: j.Type,
		Path: j.Path,
		S3: archive.S3Config{
			Bucket:    j.S3.Bucket,
			Endpoint:  j.S3.Endpoint,
			Region:    j.S3.Region,
			AccessKey: j.S3.AccessKey,
			SecretKey: j.S3.SecretKey,
			Prefix:    j.S3.Prefix,
		},
	})
}

func newNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	if w := cfg.Notifier.Webhook; w.Enabled {
		n, err := webhook.New(w.URL, w.Headers)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	if tg := cfg.Notifier.Telegram; tg.Enabled {
		n, err := telegram.New(tg.BotToken, tg.ChatID)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newScorer(cfg *config.Config) *scoring.Scorer {
	s := cfg.Strategy
	return scoring.New(scoring.Params{
		AlphaTrendPeriod: s.AlphaTrendPeriod,
		AlphaTrendCoeff:  s.AlphaTrendCoeff,
		TrendWindow:      s.TrendWindow,
		DivergenceWindow: s.DivergenceWindow,
		DivergenceOrder:  s.DivergenceOrder,
	}, scoring.NewSectors(s.Sectors))
}

func newPolicy(cfg *config.Config) *policy.Policy {
	p := cfg.Policy
	return policy.New(policy.Config{
		EntryThreshold:      p.EntryThreshold,
		RiskFraction:        p.RiskFraction,
		StopATRMultiple:     p.StopATRMultiple,
		TargetATRMultiple:   p.TargetATRMultiple,
		FallbackATRFraction: p.FallbackATRFraction,
	})
}

func cacheConfig(cfg *config.Config) collector.CacheConfig {
	return collector.CacheConfig{
		Timeframe:       core.Timeframe(cfg.Data.Timeframe),
		Adjustment:      core.Adjustment(cfg.Data.Adjustment),
		LookbackDays:    cfg.Data.LookbackDays,
		RefreshLookback: cfg.Data.RefreshLookback,
		MaxBars:         cfg.Data.CacheMaxBars,
	}
}

// scoringTimeframe is the timeframe bars are resampled to before scoring.
func scoringTimeframe(cfg *config.Config) (core.Timeframe, error) {
	if cfg.Data.ResampleHours <= 1 || cfg.Data.Timeframe == string(core.Timeframe1D) {
		return core.Timeframe(cfg.Data.Timeframe), nil
	}
	return core.ParseTimeframe(fmt.Sprintf("%dh", cfg.Data.ResampleHours))
}

// symbolsFlag returns the --symbols override or the configured watchlist.
func symbolsFlag(raw string, cfg *config.Config) []string {
	if raw == "" {
		return cfg.Strategy.Watchlist
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
