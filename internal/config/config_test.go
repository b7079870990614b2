package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/alert"
	"github.com/newthinker/predator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("PREDATOR_TEST_POLYGON_KEY", "pk-123")
	content := []byte(`
data:
  provider: polygon
  polygon_api_key: "${PREDATOR_TEST_POLYGON_KEY}"
  refresh_lookback: 2h

strategy:
  benchmark: QQQ
  sectors:
    SEMIS: [NVDA, AMD]
  watchlist: [NVDA, AMD, TSLA]

policy:
  entry_threshold: 8
  risk_fraction: 0.05

notifier:
  telegram:
    enabled: true
    bot_token: "123:abc"
    chat_id: "-1001"

report:
  archive: true

alerts:
  enabled: true
  rules:
    - name: stale_bars
      expr: bar_age_minutes > 120
      for: 15m
      severity: warning
      message: bars are stale
`)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "polygon", cfg.Data.Provider)
	assert.Equal(t, "pk-123", cfg.Data.PolygonAPIKey)
	assert.Equal(t, 2*time.Hour, cfg.Data.RefreshLookback)
	assert.Equal(t, "QQQ", cfg.Strategy.Benchmark)
	assert.Equal(t, map[string][]string{"SEMIS": {"NVDA", "AMD"}}, cfg.Strategy.Sectors)
	assert.Equal(t, []string{"NVDA", "AMD", "TSLA"}, cfg.Strategy.Watchlist)
	assert.Equal(t, 8, cfg.Policy.EntryThreshold)
	assert.Equal(t, 0.05, cfg.Policy.RiskFraction)
	assert.Equal(t, TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: "-1001"}, cfg.Notifier.Telegram)
	assert.True(t, cfg.Report.Archive)
	assert.Equal(t, "scans", cfg.Report.Prefix)
	assert.True(t, cfg.Alerts.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.Cooldown)
	require.Len(t, cfg.AlertRules(), 1)
	assert.Equal(t, 15*time.Minute, cfg.AlertRules()[0].For)

	// untouched keys keep their defaults
	assert.Equal(t, 2.5, cfg.Policy.StopATRMultiple)
	assert.Equal(t, 14, cfg.Strategy.AlphaTrendPeriod)
	assert.Equal(t, 1000, cfg.Data.CacheMaxBars)
	require.NoError(t, cfg.Validate())
}

func TestLoad_WatchlistDefaultsToSectors(t *testing.T) {
	content := []byte(`
strategy:
  sectors:
    SEMIS: [NVDA, AMD]
    BIG_TECH: [AAPL, NVDA]
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "NVDA", "AMD"}, cfg.Strategy.Watchlist)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 9, cfg.Policy.EntryThreshold)
	assert.Equal(t, 0.02, cfg.Policy.RiskFraction)
	assert.Equal(t, 7.5, cfg.Policy.TargetATRMultiple)
	assert.Equal(t, 0.03, cfg.Policy.FallbackATRFraction)
	assert.Equal(t, "SPY", cfg.Strategy.Benchmark)
	assert.Len(t, cfg.Strategy.Watchlist, 14)
	assert.Equal(t, 100, cfg.Data.LookbackDays)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Data.Provider = "yahoo"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config", func(*Config) {}, nil},
		{"unknown provider", func(c *Config) { c.Data.Provider = "bloomberg" }, core.ErrConfigInvalid},
		{"zero risk fraction", func(c *Config) { c.Policy.RiskFraction = 0 }, core.ErrConfigInvalid},
		{"inverted brackets", func(c *Config) { c.Policy.TargetATRMultiple = 2 }, core.ErrConfigInvalid},
		{"tiny cache", func(c *Config) { c.Data.CacheMaxBars = 50 }, core.ErrConfigInvalid},
		{"empty watchlist", func(c *Config) { c.Strategy.Watchlist = nil }, core.ErrConfigMissing},
		{"alpaca data without keys", func(c *Config) { c.Data.Provider = "alpaca" }, core.ErrConfigMissing},
		{"polygon without key", func(c *Config) { c.Data.Provider = "polygon" }, core.ErrConfigMissing},
		{"alpaca broker without keys", func(c *Config) { c.Broker.Provider = "alpaca" }, core.ErrConfigMissing},
		{"s3 journal without bucket", func(c *Config) { c.Journal.Type = "s3" }, core.ErrConfigMissing},
		{"webhook without url", func(c *Config) { c.Notifier.Webhook.Enabled = true }, core.ErrConfigMissing},
		{"bad webhook url", func(c *Config) { c.Notifier.Webhook.URL = "not a url" }, core.ErrConfigInvalid},
		{"telegram without chat", func(c *Config) {
			c.Notifier.Telegram.Enabled = true
			c.Notifier.Telegram.BotToken = "123:abc"
		}, core.ErrConfigMissing},
		{"unparseable alert rule", func(c *Config) {
			c.Alerts.Rules = []alert.Rule{{Name: "bad", Expr: "up is down"}}
		}, core.ErrConfigInvalid},
		{"telegram configured", func(c *Config) {
			c.Notifier.Telegram = TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: "42"}
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
