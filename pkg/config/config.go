package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Ledger       LedgerConfig
	Custody      CustodyConfig
	Issuance     IssuanceConfig
	Verification VerificationConfig
	Metrics      MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how identity-provider access tokens are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
	Leeway   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LedgerConfig points the adapter at the signing gateway of the credential registry.
type LedgerConfig struct {
	Driver          string
	GatewayURL      string
	ContractAddress string
	ChainID         int64
	SignerSeedHex   string
	Timeout         time.Duration
}

// CustodyConfig configures the custodial wallet provider.
type CustodyConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// IssuanceConfig tunes the asynchronous issuance queues.
type IssuanceConfig struct {
	QueuePrefix       string
	LedgerConcurrency int
	WalletConcurrency int
	MaxAttempts       int
	BackoffStrategy   string
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	PollTimeout       time.Duration
	RecoverBatch      int
}

// VerificationConfig controls public verification and share links.
type VerificationConfig struct {
	ShareTokenSecret string
	ShareLinkTTL     time.Duration
	LedgerCheck      bool
	RevokeReasonMin  int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool
	Path       string
	WorkerPort int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
		Leeway:   parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ledger = LedgerConfig{
		Driver:          strings.ToLower(v.GetString("LEDGER_DRIVER")),
		GatewayURL:      v.GetString("LEDGER_GATEWAY_URL"),
		ContractAddress: v.GetString("LEDGER_CONTRACT_ADDRESS"),
		ChainID:         v.GetInt64("LEDGER_CHAIN_ID"),
		SignerSeedHex:   v.GetString("LEDGER_SIGNER_SEED"),
		Timeout:         parseDuration(v.GetString("LEDGER_TIMEOUT"), 30*time.Second),
	}

	cfg.Custody = CustodyConfig{
		BaseURL:   v.GetString("CUSTODY_BASE_URL"),
		APIKey:    v.GetString("CUSTODY_API_KEY"),
		RateLimit: v.GetFloat64("CUSTODY_RATE_LIMIT"),
		Burst:     v.GetInt("CUSTODY_BURST"),
		Timeout:   parseDuration(v.GetString("CUSTODY_TIMEOUT"), 15*time.Second),
	}

	cfg.Issuance = IssuanceConfig{
		QueuePrefix:       v.GetString("ISSUANCE_QUEUE_PREFIX"),
		LedgerConcurrency: v.GetInt("ISSUANCE_LEDGER_CONCURRENCY"),
		WalletConcurrency: v.GetInt("ISSUANCE_WALLET_CONCURRENCY"),
		MaxAttempts:       v.GetInt("ISSUANCE_MAX_ATTEMPTS"),
		BackoffStrategy:   strings.ToLower(v.GetString("ISSUANCE_BACKOFF")),
		BackoffBase:       parseDuration(v.GetString("ISSUANCE_BACKOFF_BASE"), 5*time.Second),
		BackoffMax:        parseDuration(v.GetString("ISSUANCE_BACKOFF_MAX"), 5*time.Minute),
		PollTimeout:       parseDuration(v.GetString("ISSUANCE_POLL_TIMEOUT"), 2*time.Second),
		RecoverBatch:      v.GetInt("ISSUANCE_RECOVER_BATCH"),
	}

	cfg.Verification = VerificationConfig{
		ShareTokenSecret: v.GetString("SHARE_TOKEN_SECRET"),
		ShareLinkTTL:     parseDuration(v.GetString("SHARE_LINK_TTL"), 30*24*time.Hour),
		LedgerCheck:      v.GetBool("VERIFY_LEDGER_CHECK"),
		RevokeReasonMin:  v.GetInt("REVOKE_REASON_MIN_LENGTH"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled:    v.GetBool("ENABLE_METRICS"),
		Path:       v.GetString("METRICS_PATH"),
		WorkerPort: v.GetInt("METRICS_WORKER_PORT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "credential_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEDGER_DRIVER", "memory")
	v.SetDefault("LEDGER_GATEWAY_URL", "http://localhost:8545")
	v.SetDefault("LEDGER_CONTRACT_ADDRESS", "")
	v.SetDefault("LEDGER_CHAIN_ID", 31337)
	v.SetDefault("LEDGER_SIGNER_SEED", "")
	v.SetDefault("LEDGER_TIMEOUT", "30s")

	v.SetDefault("CUSTODY_BASE_URL", "http://localhost:9090")
	v.SetDefault("CUSTODY_API_KEY", "")
	v.SetDefault("CUSTODY_RATE_LIMIT", 5)
	v.SetDefault("CUSTODY_BURST", 5)
	v.SetDefault("CUSTODY_TIMEOUT", "15s")

	v.SetDefault("ISSUANCE_QUEUE_PREFIX", "credledger")
	v.SetDefault("ISSUANCE_LEDGER_CONCURRENCY", 1)
	v.SetDefault("ISSUANCE_WALLET_CONCURRENCY", 5)
	v.SetDefault("ISSUANCE_MAX_ATTEMPTS", 5)
	v.SetDefault("ISSUANCE_BACKOFF", "exponential")
	v.SetDefault("ISSUANCE_BACKOFF_BASE", "5s")
	v.SetDefault("ISSUANCE_BACKOFF_MAX", "5m")
	v.SetDefault("ISSUANCE_POLL_TIMEOUT", "2s")
	v.SetDefault("ISSUANCE_RECOVER_BATCH", 100)

	v.SetDefault("SHARE_TOKEN_SECRET", "dev_share_secret")
	v.SetDefault("SHARE_LINK_TTL", "720h")
	v.SetDefault("VERIFY_LEDGER_CHECK", false)
	v.SetDefault("REVOKE_REASON_MIN_LENGTH", 10)

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")
	v.SetDefault("METRICS_WORKER_PORT", 9091)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
