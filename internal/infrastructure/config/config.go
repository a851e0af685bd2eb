package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

const (
	envPrefix         = "DAX_"
	defaultConfigPath = "configs/config.yaml"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	developmentJWTSecret = "development-secret-change-me"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auction   AuctionConfig   `koanf:"auction"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Security  SecurityConfig  `koanf:"security"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
	LockWait time.Duration `koanf:"lock_wait"`
}

// AuctionConfig configures the settlement engine.
type AuctionConfig struct {
	Admin            string `koanf:"admin"`
	InitialFeeBps    uint64 `koanf:"initial_fee_bps"`
	CurrencyDecimals int32  `koanf:"currency_decimals"`
	CurrencySymbol   string `koanf:"currency_symbol"`
}

// LedgerConfig seeds ledger balances at start-up (principal -> amount in the
// smallest unit).
type LedgerConfig struct {
	Seed map[string]string `koanf:"seed"`
}

type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	Issuer         string        `koanf:"issuer"`
	TokenExpiry    time.Duration `koanf:"token_expiry"`
	RateLimitRPS   int           `koanf:"rate_limit_rps"`
	RateLimitBurst int           `koanf:"rate_limit_burst"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverMemory,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:      "localhost:6379",
			LockTTL:  10 * time.Second,
			LockWait: 5 * time.Second,
		},
		Auction: AuctionConfig{
			InitialFeeBps:    250,
			CurrencyDecimals: 18,
			CurrencySymbol:   "ETH",
		},
		Security: SecurityConfig{
			JWTSecret:      developmentJWTSecret,
			Issuer:         "dutch-auction-exchange",
			TokenExpiry:    24 * time.Hour,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
	}
}

var sections = []string{"server", "database", "redis", "auction", "ledger", "security", "telemetry"}

// envKey maps DAX_SERVER_READ_TIMEOUT to server.read_timeout and
// DAX_LOG_LEVEL to log_level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Load reads defaults, then the YAML file at path (configs/config.yaml when
// empty; a missing file is skipped), then DAX_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at start-up.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is enabled")
	}

	if _, err := values.NewPrincipal(c.Auction.Admin); err != nil {
		return fmt.Errorf("auction.admin: %w", err)
	}
	if err := auction.ValidateFee(c.Auction.InitialFeeBps); err != nil {
		return fmt.Errorf("auction.initial_fee_bps: %w", err)
	}
	if c.Auction.CurrencyDecimals < 0 || c.Auction.CurrencyDecimals > 77 {
		return fmt.Errorf("auction.currency_decimals out of range: %d", c.Auction.CurrencyDecimals)
	}

	for account, amount := range c.Ledger.Seed {
		if _, err := values.NewPrincipal(account); err != nil {
			return fmt.Errorf("ledger.seed: %w", err)
		}
		if _, err := values.ParseAmount(amount); err != nil {
			return fmt.Errorf("ledger.seed[%s]: %w", account, err)
		}
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if c.IsProduction() && c.Security.JWTSecret == developmentJWTSecret {
		return fmt.Errorf("security.jwt_secret must be set in production")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
