// Package config defines the top-level configuration for the exchange node
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CLOB_* environment variables.
type Config struct {
	Operator   OperatorConfig   `toml:"operator"`
	Chain      ChainConfig      `toml:"chain"`
	Engine     EngineConfig     `toml:"engine"`
	Settlement SettlementConfig `toml:"settlement"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// OperatorConfig holds the settlement operator's signing key material.
type OperatorConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds the target chain and exchange contract parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ChainID is the EIP-155 chain id, also the first component of every
	// market key.
	ChainID int64 `toml:"chain_id"`
	// ExchangeAddress is the settlement contract; it doubles as the EIP-712
	// verifying contract for order signatures.
	ExchangeAddress string `toml:"exchange_address"`
}

// EngineConfig holds order admission and fee parameters. Amounts are decimal
// strings in base units (18 implied decimals).
type EngineConfig struct {
	MinOrderAmount string `toml:"min_order_amount"`
	MaxOrderAmount string `toml:"max_order_amount"`
	MakerFeeBps    int64  `toml:"maker_fee_bps"`
	TakerFeeBps    int64  `toml:"taker_fee_bps"`
	// MaxOutcomes is the default outcome count for markets without an entry
	// in outcome_counts. Binary markets use 2.
	MaxOutcomes int `toml:"max_outcomes"`
	// OutcomeCounts maps market keys ("chainId:eventId") to their outcome
	// count for multi-outcome events.
	OutcomeCounts map[string]int `toml:"outcome_counts"`
}

// SettlementConfig holds batching and confirmation policy.
type SettlementConfig struct {
	MinBatchSize int      `toml:"min_batch_size"`
	MaxBatchSize int      `toml:"max_batch_size"`
	MaxBatchWait duration `toml:"max_batch_wait"`

	BatchInterval   duration `toml:"batch_interval"`
	ConfirmInterval duration `toml:"confirm_interval"`

	Confirmations       uint64   `toml:"confirmations"`
	ConfirmationTimeout duration `toml:"confirmation_timeout"`

	MaxRetries   int      `toml:"max_retries"`
	RetryDelay   duration `toml:"retry_delay"`
	RetryBackoff float64  `toml:"retry_backoff"`

	// MaxGasPriceGwei defers submission while the suggested gas price is
	// above it. Zero disables the ceiling.
	MaxGasPriceGwei int64 `toml:"max_gas_price_gwei"`
	GasMarginPct    int64 `toml:"gas_margin_pct"`

	ReconcileInterval duration `toml:"reconcile_interval"`
	ShutdownWait      duration `toml:"shutdown_wait"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	DepthTTL   duration `toml:"depth_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the batch
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on mutating endpoints via the X-API-Key
	// header.
	APIKey string `toml:"api_key"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 137,
		},
		Engine: EngineConfig{
			MinOrderAmount: "1000000000000000000",       // 1 share
			MaxOrderAmount: "1000000000000000000000000", // 1M shares
			MakerFeeBps:    0,
			TakerFeeBps:    20,
			MaxOutcomes:    2,
			OutcomeCounts:  map[string]int{},
		},
		Settlement: SettlementConfig{
			MinBatchSize:        5,
			MaxBatchSize:        50,
			MaxBatchWait:        duration{30 * time.Second},
			BatchInterval:       duration{5 * time.Second},
			ConfirmInterval:     duration{10 * time.Second},
			Confirmations:       3,
			ConfirmationTimeout: duration{5 * time.Minute},
			MaxRetries:          3,
			RetryDelay:          duration{2 * time.Second},
			RetryBackoff:        2.0,
			MaxGasPriceGwei:     0,
			GasMarginPct:        20,
			ReconcileInterval:   duration{2 * time.Minute},
			ShutdownWait:        duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "clob",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			DepthTTL:   duration{30 * time.Second},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "clob-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"api":    true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, api, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Operator — required whenever the settlement pipeline runs.
	needsOperator := c.Mode == "engine" || c.Mode == "full"
	if needsOperator {
		if c.Operator.PrivateKey == "" && c.Operator.EncryptedKeyPath == "" {
			errs = append(errs, "operator: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
			errs = append(errs, "operator: key_password is required when encrypted_key_path is set")
		}
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if needsOperator && c.Chain.ExchangeAddress == "" {
		errs = append(errs, "chain: exchange_address must not be empty for mode "+c.Mode)
	}

	// Engine
	if c.Engine.MakerFeeBps < 0 || c.Engine.TakerFeeBps < 0 {
		errs = append(errs, "engine: fee bps must not be negative")
	}
	if c.Engine.MaxOutcomes < 2 {
		errs = append(errs, fmt.Sprintf("engine: max_outcomes must be >= 2, got %d", c.Engine.MaxOutcomes))
	}
	for key, n := range c.Engine.OutcomeCounts {
		if n < 2 {
			errs = append(errs, fmt.Sprintf("engine: outcome_counts[%s] must be >= 2, got %d", key, n))
		}
	}

	// Settlement
	if c.Settlement.MinBatchSize < 1 {
		errs = append(errs, "settlement: min_batch_size must be >= 1")
	}
	if c.Settlement.MaxBatchSize < c.Settlement.MinBatchSize {
		errs = append(errs, "settlement: max_batch_size must be >= min_batch_size")
	}
	if c.Settlement.Confirmations < 1 {
		errs = append(errs, "settlement: confirmations must be >= 1")
	}
	if c.Settlement.RetryBackoff < 1 {
		errs = append(errs, "settlement: retry_backoff must be >= 1")
	}
	if c.Settlement.MaxGasPriceGwei < 0 {
		errs = append(errs, "settlement: max_gas_price_gwei must not be negative")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
