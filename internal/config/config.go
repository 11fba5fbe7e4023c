package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Exchange holds one venue's credentials. Public market data works with
// empty keys on both supported venues.
type Exchange struct {
	Name      string `yaml:"name" validate:"required,oneof=binance bybit mock"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Enabled   bool   `yaml:"enabled"`
}

// Thresholds allows overriding classification cutoffs and the bonus
// activation floors.
type Thresholds struct {
	Critical  float64 `yaml:"critical" default:"78"`
	HighAlert float64 `yaml:"high_alert" default:"62"`
	Watchlist float64 `yaml:"watchlist" default:"48"`
	Monitor   float64 `yaml:"monitor" default:"33"`

	SqueezeMin      float64 `yaml:"squeeze_min" default:"45"`
	CascadeMin      float64 `yaml:"cascade_min" default:"40"`
	AccumulationMin float64 `yaml:"accumulation_min" default:"40"`
}

// Config holds all application configuration.
type Config struct {
	Exchanges []Exchange `yaml:"exchanges" validate:"min=1,dive"`

	Scan struct {
		CadenceSeconds      int `yaml:"cadence_seconds" default:"900" validate:"gte=60"`
		Concurrency         int `yaml:"concurrency" default:"6" validate:"gte=1,lte=64"`
		PerSymbolTimeoutS   int `yaml:"per_symbol_timeout_s" default:"30" validate:"gte=5"`
		MaxSymbols          int `yaml:"max_symbols" default:"400" validate:"gte=1"`
		MinFuturesExchanges int `yaml:"min_futures_exchanges" default:"1" validate:"gte=1"`
		MaxGapHours         int `yaml:"max_gap_hours" default:"3" validate:"gte=1"`
	} `yaml:"scan"`

	Alerts struct {
		MinClassification string `yaml:"min_classification" default:"WATCHLIST" validate:"oneof=CRITICAL HIGH_ALERT WATCHLIST MONITOR NONE"`
		Telegram          struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"alerts"`

	Risk struct {
		AccountUSD    float64 `yaml:"account_usd" default:"10000" validate:"gt=0"`
		RiskPct       float64 `yaml:"risk_pct" default:"0.02" validate:"gt=0,lte=0.2"`
		MaxOpenTrades int     `yaml:"max_open_trades" default:"3" validate:"gte=1"`
	} `yaml:"risk"`

	Store struct {
		Path          string `yaml:"path" default:"data/pumpsentinel.db"`
		RetentionDays int    `yaml:"retention_days" default:"30" validate:"gte=1"`
	} `yaml:"store"`

	Thresholds Thresholds `yaml:"thresholds"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`
}

// Cadence returns the scan interval.
func (c *Config) Cadence() time.Duration {
	return time.Duration(c.Scan.CadenceSeconds) * time.Second
}

// CycleDeadline is the hard budget for one scan cycle: cadence minus 30s,
// floored at half the cadence.
func (c *Config) CycleDeadline() time.Duration {
	d := c.Cadence() - 30*time.Second
	if d < c.Cadence()/2 {
		d = c.Cadence() / 2
	}
	return d
}

// PerSymbolTimeout returns the per-symbol fetch budget.
func (c *Config) PerSymbolTimeout() time.Duration {
	return time.Duration(c.Scan.PerSymbolTimeoutS) * time.Second
}

// EnabledExchanges filters the configured venues.
func (c *Config) EnabledExchanges() []Exchange {
	var out []Exchange
	for _, e := range c.Exchanges {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Load reads config from a YAML file, fills defaults, applies environment
// variable overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Alerts.Telegram.BotToken = v
		cfg.Alerts.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Alerts.Telegram.ChatID = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SCAN_CADENCE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.CadenceSeconds = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if len(cfg.Exchanges) == 0 {
		cfg.Exchanges = []Exchange{
			{Name: "binance", Enabled: true},
			{Name: "bybit", Enabled: true},
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and that at least one exchange is
// enabled and Telegram credentials are complete when the sink is on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if len(c.EnabledExchanges()) == 0 {
		return fmt.Errorf("config validation: no exchange enabled")
	}
	if c.Alerts.Telegram.Enabled {
		if c.Alerts.Telegram.BotToken == "" || c.Alerts.Telegram.ChatID == "" {
			return fmt.Errorf("config validation: telegram enabled but bot_token/chat_id missing")
		}
	}
	if c.Thresholds.Critical <= c.Thresholds.HighAlert ||
		c.Thresholds.HighAlert <= c.Thresholds.Watchlist ||
		c.Thresholds.Watchlist <= c.Thresholds.Monitor {
		return fmt.Errorf("config validation: classification thresholds must be strictly decreasing")
	}
	return nil
}

// Starter is a commented example configuration written by `setup`.
const Starter = `exchanges:
  - name: binance
    enabled: true
  - name: bybit
    enabled: true

scan:
  cadence_seconds: 900
  concurrency: 6
  per_symbol_timeout_s: 30
  max_symbols: 400

alerts:
  min_classification: WATCHLIST
  telegram:
    enabled: false
    bot_token: ""
    chat_id: ""

risk:
  account_usd: 10000
  risk_pct: 0.02
  max_open_trades: 3

store:
  path: data/pumpsentinel.db
  retention_days: 30

logging:
  level: info
  format: console

metrics:
  enabled: false
  addr: ":9090"
`

// WriteStarter writes the example config, refusing to clobber an existing
// file.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(Starter), 0o644)
}
