package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCALPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	cfg.ConfigPath = path

	return &cfg, nil
}

// applyEnvOverrides reads well-known SCALPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.WsHost, "SCALPBOT_BINANCE_WS_HOST")
	setStr(&cfg.Binance.RestHost, "SCALPBOT_BINANCE_REST_HOST")
	setStr(&cfg.Binance.ApiKey, "SCALPBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.SecretKey, "SCALPBOT_BINANCE_SECRET_KEY")
	setInt(&cfg.Binance.RecvWindow, "SCALPBOT_BINANCE_RECV_WINDOW")
	setInt(&cfg.Binance.DepthLimit, "SCALPBOT_BINANCE_DEPTH_LIMIT")

	// ── Trading ──
	setStr(&cfg.Trading.Symbol, "SCALPBOT_TRADING_SYMBOL")
	setInt(&cfg.Trading.MaxPositions, "SCALPBOT_TRADING_MAX_POSITIONS")
	setFloat64(&cfg.Trading.CapitalPerTrade, "SCALPBOT_TRADING_CAPITAL_PER_TRADE")
	setFloat64(&cfg.Trading.MakerOffsetPct, "SCALPBOT_TRADING_MAKER_OFFSET_PCT")
	setFloat64(&cfg.Trading.ProfitTargetPct, "SCALPBOT_TRADING_PROFIT_TARGET_PCT")
	setFloat64(&cfg.Trading.StopLossPct, "SCALPBOT_TRADING_STOP_LOSS_PCT")
	setFloat64(&cfg.Trading.ConfidenceThreshold, "SCALPBOT_TRADING_CONFIDENCE_THRESHOLD")
	setDuration(&cfg.Trading.MakerOrderTimeout, "SCALPBOT_TRADING_MAKER_ORDER_TIMEOUT")
	setDuration(&cfg.Trading.HoldingTime, "SCALPBOT_TRADING_HOLDING_TIME")
	setDuration(&cfg.Trading.TickInterval, "SCALPBOT_TRADING_TICK_INTERVAL")
	setDuration(&cfg.Trading.GatewayTimeout, "SCALPBOT_TRADING_GATEWAY_TIMEOUT")

	// ── Model ──
	setStr(&cfg.Model.Path, "SCALPBOT_MODEL_PATH")
	setStr(&cfg.Model.LibraryPath, "SCALPBOT_MODEL_LIBRARY_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SCALPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SCALPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCALPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCALPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCALPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCALPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCALPBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SCALPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SCALPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SCALPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SCALPBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SCALPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCALPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCALPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCALPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCALPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SCALPBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SCALPBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SCALPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SCALPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SCALPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SCALPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SCALPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "SCALPBOT_S3_FORCE_PATH_STYLE")

	// ── Collector ──
	setBool(&cfg.Collector.Enabled, "SCALPBOT_COLLECTOR_ENABLED")
	setStr(&cfg.Collector.Dir, "SCALPBOT_COLLECTOR_DIR")
	setInt(&cfg.Collector.BatchSize, "SCALPBOT_COLLECTOR_BATCH_SIZE")
	setDuration(&cfg.Collector.FlushInterval, "SCALPBOT_COLLECTOR_FLUSH_INTERVAL")
	setDuration(&cfg.Collector.ArchiveAfter, "SCALPBOT_COLLECTOR_ARCHIVE_AFTER")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCALPBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCALPBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SCALPBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCALPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCALPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SCALPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.BackendURL, "SCALPBOT_NOTIFY_BACKEND_URL")
	setStr(&cfg.Notify.BackendKey, "SCALPBOT_NOTIFY_BACKEND_KEY")
	setInt(&cfg.Notify.BotID, "SCALPBOT_NOTIFY_BOT_ID")
	setStringSlice(&cfg.Notify.Events, "SCALPBOT_NOTIFY_EVENTS")

	// ── Refresh ──
	setBool(&cfg.Refresh.Enabled, "SCALPBOT_REFRESH_ENABLED")
	setDuration(&cfg.Refresh.Interval, "SCALPBOT_REFRESH_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "SCALPBOT_MODE")
	setStr(&cfg.LogLevel, "SCALPBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
