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
// built-in defaults, applies CLOB_* environment variable overrides, and
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

	return &cfg, nil
}

// applyEnvOverrides reads well-known CLOB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "CLOB_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "CLOB_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "CLOB_OPERATOR_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "CLOB_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "CLOB_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.ExchangeAddress, "CLOB_CHAIN_EXCHANGE_ADDRESS")

	// ── Engine ──
	setStr(&cfg.Engine.MinOrderAmount, "CLOB_ENGINE_MIN_ORDER_AMOUNT")
	setStr(&cfg.Engine.MaxOrderAmount, "CLOB_ENGINE_MAX_ORDER_AMOUNT")
	setInt64(&cfg.Engine.MakerFeeBps, "CLOB_ENGINE_MAKER_FEE_BPS")
	setInt64(&cfg.Engine.TakerFeeBps, "CLOB_ENGINE_TAKER_FEE_BPS")
	setInt(&cfg.Engine.MaxOutcomes, "CLOB_ENGINE_MAX_OUTCOMES")

	// ── Settlement ──
	setInt(&cfg.Settlement.MinBatchSize, "CLOB_SETTLEMENT_MIN_BATCH_SIZE")
	setInt(&cfg.Settlement.MaxBatchSize, "CLOB_SETTLEMENT_MAX_BATCH_SIZE")
	setDuration(&cfg.Settlement.MaxBatchWait, "CLOB_SETTLEMENT_MAX_BATCH_WAIT")
	setDuration(&cfg.Settlement.BatchInterval, "CLOB_SETTLEMENT_BATCH_INTERVAL")
	setDuration(&cfg.Settlement.ConfirmInterval, "CLOB_SETTLEMENT_CONFIRM_INTERVAL")
	setUint64(&cfg.Settlement.Confirmations, "CLOB_SETTLEMENT_CONFIRMATIONS")
	setDuration(&cfg.Settlement.ConfirmationTimeout, "CLOB_SETTLEMENT_CONFIRMATION_TIMEOUT")
	setInt(&cfg.Settlement.MaxRetries, "CLOB_SETTLEMENT_MAX_RETRIES")
	setDuration(&cfg.Settlement.RetryDelay, "CLOB_SETTLEMENT_RETRY_DELAY")
	setFloat64(&cfg.Settlement.RetryBackoff, "CLOB_SETTLEMENT_RETRY_BACKOFF")
	setInt64(&cfg.Settlement.MaxGasPriceGwei, "CLOB_SETTLEMENT_MAX_GAS_PRICE_GWEI")
	setInt64(&cfg.Settlement.GasMarginPct, "CLOB_SETTLEMENT_GAS_MARGIN_PCT")
	setDuration(&cfg.Settlement.ReconcileInterval, "CLOB_SETTLEMENT_RECONCILE_INTERVAL")
	setDuration(&cfg.Settlement.ShutdownWait, "CLOB_SETTLEMENT_SHUTDOWN_WAIT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "CLOB_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CLOB_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CLOB_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CLOB_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "CLOB_DATABASE_USER")
	setStr(&cfg.Database.Password, "CLOB_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CLOB_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "CLOB_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CLOB_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CLOB_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CLOB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CLOB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CLOB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CLOB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CLOB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CLOB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.DepthTTL, "CLOB_REDIS_DEPTH_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CLOB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CLOB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CLOB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CLOB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CLOB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CLOB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CLOB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CLOB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CLOB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CLOB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CLOB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CLOB_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "CLOB_MODE")
	setStr(&cfg.LogLevel, "CLOB_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
