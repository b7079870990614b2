package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/newthinker/predator/internal/alert"
	"github.com/newthinker/predator/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Trader   TraderConfig   `mapstructure:"trader"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Report   ReportConfig   `mapstructure:"report"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// DataConfig selects the bar provider and the cache refresh policy.
type DataConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=alpaca polygon yahoo duckdb"`
	Timeframe       string        `mapstructure:"timeframe" validate:"oneof=1h 1d"`
	ResampleHours   int           `mapstructure:"resample_hours" validate:"gte=0,lte=24"`
	Adjustment      string        `mapstructure:"adjustment" validate:"oneof=raw splits all"`
	LookbackDays    int           `mapstructure:"lookback_days" validate:"gt=0"`
	RefreshLookback time.Duration `mapstructure:"refresh_lookback" validate:"gt=0"`
	CacheMaxBars    int           `mapstructure:"cache_max_bars" validate:"gte=200"`
	DuckDBPath      string        `mapstructure:"duckdb_path"`
	Alpaca          AlpacaConfig  `mapstructure:"alpaca"`
	PolygonAPIKey   string        `mapstructure:"polygon_api_key"`
	YahooBaseURL    string        `mapstructure:"yahoo_base_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	SyncStartDate   string        `mapstructure:"sync_start_date"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Feed      string `mapstructure:"feed" validate:"omitempty,oneof=iex sip"`
}

// StrategyConfig holds indicator parameters and the scoring universe.
type StrategyConfig struct {
	AlphaTrendPeriod int                 `mapstructure:"alphatrend_period" validate:"gt=0"`
	AlphaTrendCoeff  float64             `mapstructure:"alphatrend_coeff" validate:"gt=0"`
	TrendWindow      int                 `mapstructure:"trend_window" validate:"gte=3"`
	DivergenceWindow int                 `mapstructure:"divergence_window" validate:"gte=3"`
	DivergenceOrder  int                 `mapstructure:"divergence_order" validate:"gt=0"`
	Benchmark        string              `mapstructure:"benchmark" validate:"required"`
	Sectors          map[string][]string `mapstructure:"sectors"`
	Watchlist        []string            `mapstructure:"watchlist" validate:"dive,required"`
}

// PolicyConfig parameterises entry sizing and brackets.
type PolicyConfig struct {
	EntryThreshold      int     `mapstructure:"entry_threshold"`
	RiskFraction        float64 `mapstructure:"risk_fraction" validate:"gt=0,lte=1"`
	StopATRMultiple     float64 `mapstructure:"stop_atr_multiple" validate:"gt=0"`
	TargetATRMultiple   float64 `mapstructure:"target_atr_multiple" validate:"gt=0"`
	FallbackATRFraction float64 `mapstructure:"fallback_atr_fraction" validate:"gt=0,lt=1"`
}

type RiskConfig struct {
	MaxPositionPct   float64 `mapstructure:"max_position_pct" validate:"gte=0,lte=100"`
	MaxOpenPositions int     `mapstructure:"max_open_positions" validate:"gte=0"`
	MaxDailyLossPct  float64 `mapstructure:"max_daily_loss_pct" validate:"gte=0,lte=100"`
}

type BrokerConfig struct {
	Provider  string       `mapstructure:"provider" validate:"oneof=paper alpaca"`
	PaperCash float64      `mapstructure:"paper_cash" validate:"gte=0"`
	Alpaca    AlpacaConfig `mapstructure:"alpaca"`
}

type TraderConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	DryRun       bool          `mapstructure:"dry_run"`
}

// JournalConfig locates the append-only trade audit log.
type JournalConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type" validate:"oneof=localfs s3"`
	Path    string   `mapstructure:"path"`
	Key     string   `mapstructure:"key"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type NotifierConfig struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url" validate:"omitempty,url"`
	Headers map[string]string `mapstructure:"headers"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// ReportConfig controls archiving of scan reports. Reports go to the
// journal's archive store under Prefix.
type ReportConfig struct {
	Archive bool   `mapstructure:"archive"`
	Prefix  string `mapstructure:"prefix"`
}

// AlertsConfig holds health alert rules evaluated after each trader cycle.
// An empty rule list falls back to alert.DefaultRules.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	Rules    []alert.Rule  `mapstructure:"rules"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// DefaultSectors groups the default watchlist for the sector tailwind rule.
func DefaultSectors() map[string][]string {
	return map[string][]string{
		"SEMIS":    {"NVDA", "AMD", "AVGO", "ARM", "QCOM"},
		"BIG_TECH": {"AAPL", "MSFT", "GOOGL", "META", "AMZN", "NFLX"},
		"EXOTIC":   {"TSLA", "SMCI", "PLTR"},
	}
}

// Load reads configuration from file. A .env file next to the working
// directory is loaded first so ${VAR} references can resolve against it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	// collections are replaced, not merged with the defaults
	cfg.Strategy.Sectors = nil
	cfg.Strategy.Watchlist = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if len(cfg.Strategy.Sectors) == 0 {
		cfg.Strategy.Sectors = DefaultSectors()
	} else {
		// viper lower-cases map keys
		sectors := make(map[string][]string, len(cfg.Strategy.Sectors))
		for name, members := range cfg.Strategy.Sectors {
			sectors[strings.ToUpper(name)] = members
		}
		cfg.Strategy.Sectors = sectors
	}
	if len(cfg.Strategy.Watchlist) == 0 {
		cfg.Strategy.Watchlist = cfg.Universe()
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	cfg := &Config{
		Log: LogConfig{Level: "info"},
		Data: DataConfig{
			Provider:        "alpaca",
			Timeframe:       "1h",
			ResampleHours:   4,
			Adjustment:      "all",
			LookbackDays:    100,
			RefreshLookback: 6 * time.Hour,
			CacheMaxBars:    1000,
			DuckDBPath:      "market_data.duckdb",
			RequestTimeout:  30 * time.Second,
			SyncStartDate:   "2020-01-01",
			Alpaca:          AlpacaConfig{Feed: "iex"},
		},
		Strategy: StrategyConfig{
			AlphaTrendPeriod: 14,
			AlphaTrendCoeff:  1,
			TrendWindow:      20,
			DivergenceWindow: 50,
			DivergenceOrder:  5,
			Benchmark:        "SPY",
			Sectors:          DefaultSectors(),
		},
		Policy: PolicyConfig{
			EntryThreshold:      9,
			RiskFraction:        0.02,
			StopATRMultiple:     2.5,
			TargetATRMultiple:   7.5,
			FallbackATRFraction: 0.03,
		},
		Risk: RiskConfig{
			MaxPositionPct:   10,
			MaxOpenPositions: 10,
			MaxDailyLossPct:  3,
		},
		Broker: BrokerConfig{
			Provider:  "paper",
			PaperCash: 100000,
		},
		Trader: TraderConfig{
			PollInterval: 5 * time.Minute,
		},
		Journal: JournalConfig{
			Enabled: true,
			Type:    "localfs",
			Path:    "./journal",
			Key:     "trade_journal.jsonl",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
		Report: ReportConfig{
			Prefix: "scans",
		},
		Alerts: AlertsConfig{
			Cooldown: 30 * time.Minute,
		},
	}
	cfg.Strategy.Watchlist = cfg.Universe()
	return cfg
}

// AlertRules returns the configured rules, or the defaults when none are set.
func (c *Config) AlertRules() []alert.Rule {
	if len(c.Alerts.Rules) > 0 {
		return c.Alerts.Rules
	}
	return alert.DefaultRules()
}

// Universe returns every sector member in sector-name order, deduplicated.
func (c *Config) Universe() []string {
	names := make([]string, 0, len(c.Strategy.Sectors))
	for name := range c.Strategy.Sectors {
		names = append(names, name)
	}
	slices.Sort(names)

	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		for _, sym := range c.Strategy.Sectors[name] {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if c.Policy.TargetATRMultiple <= c.Policy.StopATRMultiple {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("target_atr_multiple (%.2f) must exceed stop_atr_multiple (%.2f)",
				c.Policy.TargetATRMultiple, c.Policy.StopATRMultiple))
	}
	if len(c.Strategy.Watchlist) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("watchlist is empty"))
	}

	switch c.Data.Provider {
	case "alpaca":
		if c.Data.Alpaca.APIKey == "" || c.Data.Alpaca.APISecret == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alpaca api_key and api_secret required when data provider is alpaca"))
		}
	case "polygon":
		if c.Data.PolygonAPIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("polygon_api_key required when data provider is polygon"))
		}
	case "duckdb":
		if c.Data.DuckDBPath == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("duckdb_path required when data provider is duckdb"))
		}
	}

	if c.Broker.Provider == "alpaca" && (c.Broker.Alpaca.APIKey == "" || c.Broker.Alpaca.APISecret == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("alpaca api_key and api_secret required when broker is alpaca"))
	}
	if c.Notifier.Webhook.Enabled && c.Notifier.Webhook.URL == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook url required when webhook notifier is enabled"))
	}
	if c.Notifier.Telegram.Enabled && (c.Notifier.Telegram.BotToken == "" || c.Notifier.Telegram.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram bot_token and chat_id required when telegram notifier is enabled"))
	}
	if (c.Journal.Enabled || c.Report.Archive) && c.Journal.Type == "s3" && c.Journal.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("s3 bucket required when journal type is s3"))
	}
	for _, r := range c.Alerts.Rules {
		if err := r.Validate(); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	return nil
}
