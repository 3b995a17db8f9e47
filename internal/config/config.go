// Package config defines the top-level configuration for scalpbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCALPBOT_* environment variables.
type Config struct {
	Binance   BinanceConfig   `toml:"binance"`
	Trading   TradingConfig   `toml:"trading"`
	Model     ModelConfig     `toml:"model"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Collector CollectorConfig `toml:"collector"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Refresh   RefreshConfig   `toml:"refresh"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`

	// ConfigPath is the file this Config was loaded from. Set by Load so the
	// refresher can re-read the same file; never decoded from TOML.
	ConfigPath string `toml:"-"`
}

// BinanceConfig holds exchange endpoints and API credentials.
type BinanceConfig struct {
	WsHost     string `toml:"ws_host"`
	RestHost   string `toml:"rest_host"`
	ApiKey     string `toml:"api_key"`
	SecretKey  string `toml:"secret_key"`
	RecvWindow int    `toml:"recv_window"` // milliseconds
	DepthLimit int    `toml:"depth_limit"` // snapshot levels per side
}

// TradingConfig holds the scalping strategy parameters.
type TradingConfig struct {
	Symbol              string     `toml:"symbol"`
	MaxPositions        int        `toml:"max_positions"`
	CapitalPerTrade     float64    `toml:"capital_per_trade"`
	MakerOffsetPct      float64    `toml:"maker_offset_pct"`
	ProfitTargetPct     float64    `toml:"profit_target_pct"`
	StopLossPct         float64    `toml:"stop_loss_pct"`
	ConfidenceThreshold float64    `toml:"confidence_threshold"`
	MakerOrderTimeout   duration   `toml:"maker_order_timeout"`
	HoldingTime         duration   `toml:"holding_time"`
	TickInterval        duration   `toml:"tick_interval"`
	GatewayTimeout      duration   `toml:"gateway_timeout"`
	SlotCooldowns       []duration `toml:"slot_cooldowns"` // minimum age of slot k-1 before slot k may open
}

// ModelConfig holds the predictive model parameters.
type ModelConfig struct {
	Path        string `toml:"path"`
	LibraryPath string `toml:"library_path"` // onnxruntime shared library
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CollectorConfig holds market-data recording parameters.
type CollectorConfig struct {
	Enabled       bool     `toml:"enabled"`
	Dir           string   `toml:"dir"`
	BatchSize     int      `toml:"batch_size"`
	FlushInterval duration `toml:"flush_interval"`
	ArchiveAfter  duration `toml:"archive_after"` // grace delay after rotation before the CSV is uploaded
}

// ServerConfig holds the admin HTTP server parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"` // empty disables authentication
}

// NotifyConfig holds reporting sink credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	BackendURL        string   `toml:"backend_url"`
	BackendKey        string   `toml:"backend_key"`
	BotID             int      `toml:"bot_id"`
	Events            []string `toml:"events"`
}

// RefreshConfig controls the background configuration poll.
type RefreshConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Cooldowns returns the per-slot cooldown durations as plain time.Durations.
func (t TradingConfig) Cooldowns() []time.Duration {
	out := make([]time.Duration, len(t.SlotCooldowns))
	for i, d := range t.SlotCooldowns {
		out[i] = d.Duration
	}
	return out
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			WsHost:     "wss://stream.binance.com:9443",
			RestHost:   "https://api.binance.com",
			RecvWindow: 5000,
			DepthLimit: 20,
		},
		Trading: TradingConfig{
			Symbol:              "BTCUSDC",
			MaxPositions:        2,
			CapitalPerTrade:     200,
			MakerOffsetPct:      0.00001,
			ProfitTargetPct:     0.00015,
			StopLossPct:         0.009,
			ConfidenceThreshold: 0.40,
			MakerOrderTimeout:   duration{60 * time.Second},
			HoldingTime:         duration{2000 * time.Second},
			TickInterval:        duration{2 * time.Second},
			GatewayTimeout:      duration{10 * time.Second},
			SlotCooldowns:       []duration{{0}, {30 * time.Second}},
		},
		Model: ModelConfig{
			Path:        "models/scalp.onnx",
			LibraryPath: "/usr/lib/libonnxruntime.so",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "scalpbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "scalpbot-data",
			ForcePathStyle: true,
		},
		Collector: CollectorConfig{
			Enabled:       true,
			Dir:           "data",
			BatchSize:     50,
			FlushInterval: duration{5 * time.Second},
			ArchiveAfter:  duration{time.Minute},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"quoted", "filled", "expired", "closed", "error"},
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: duration{30 * time.Second},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"collect": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, collect, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Trading.Symbol) == "" {
		errs = append(errs, "trading: symbol must be set")
	}
	if c.Trading.MaxPositions <= 0 {
		errs = append(errs, "trading: max_positions must be positive")
	}
	if c.Trading.CapitalPerTrade <= 0 {
		errs = append(errs, "trading: capital_per_trade must be positive")
	}
	if c.Trading.MakerOffsetPct < 0 || c.Trading.MakerOffsetPct >= 1 {
		errs = append(errs, "trading: maker_offset_pct must be in [0,1)")
	}
	if c.Trading.ProfitTargetPct <= 0 {
		errs = append(errs, "trading: profit_target_pct must be positive")
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct >= 1 {
		errs = append(errs, "trading: stop_loss_pct must be in (0,1)")
	}
	if c.Trading.ConfidenceThreshold < 0 || c.Trading.ConfidenceThreshold > 1 {
		errs = append(errs, "trading: confidence_threshold must be in [0,1]")
	}
	if c.Trading.MakerOrderTimeout.Duration <= 0 {
		errs = append(errs, "trading: maker_order_timeout must be positive")
	}
	if c.Trading.TickInterval.Duration <= 0 {
		errs = append(errs, "trading: tick_interval must be positive")
	}
	if len(c.Trading.SlotCooldowns) < c.Trading.MaxPositions {
		errs = append(errs, fmt.Sprintf("trading: slot_cooldowns needs %d entries (one per slot), got %d",
			c.Trading.MaxPositions, len(c.Trading.SlotCooldowns)))
	}

	needsTrading := c.Mode == "trade" || c.Mode == "full"
	if needsTrading {
		if c.Binance.ApiKey == "" || c.Binance.SecretKey == "" {
			errs = append(errs, "binance: api_key and secret_key must be set for mode "+c.Mode)
		}
		if strings.TrimSpace(c.Model.Path) == "" {
			errs = append(errs, "model: path must be set for mode "+c.Mode)
		}
	}

	if c.Collector.Enabled {
		if c.Collector.BatchSize <= 0 {
			errs = append(errs, "collector: batch_size must be positive")
		}
		if c.Collector.FlushInterval.Duration <= 0 {
			errs = append(errs, "collector: flush_interval must be positive")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
