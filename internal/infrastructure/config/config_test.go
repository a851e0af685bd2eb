package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
environment: staging
auction:
  admin: "0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
  initial_fee_bps: 500
server:
  read_timeout: 3s
ledger:
  seed:
    alice: "1000000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, uint64(500), cfg.Auction.InitialFeeBps)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 8080, cfg.Server.Port, "default kept")
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, int32(18), cfg.Auction.CurrencyDecimals)
	assert.Equal(t, "1000000", cfg.Ledger.Seed["alice"])
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "auction:\n  admin: admin\n")

	t.Setenv("DAX_SERVER_PORT", "9191")
	t.Setenv("DAX_SERVER_WRITE_TIMEOUT", "7s")
	t.Setenv("DAX_LOG_LEVEL", "debug")
	t.Setenv("DAX_AUCTION_INITIAL_FEE_BPS", "100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 7*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint64(100), cfg.Auction.InitialFeeBps)
}

func TestLoad_MissingFileIsSkipped(t *testing.T) {
	t.Setenv("DAX_AUCTION_ADMIN", testAdmin)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, testAdmin, cfg.Auction.Admin)
	assert.Equal(t, uint64(250), cfg.Auction.InitialFeeBps)
}

func TestLoad_RejectsInitialFeeAboveMaximum(t *testing.T) {
	path := writeConfig(t, "auction:\n  admin: admin\n  initial_fee_bps: 1001\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidFeePercentage)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Defaults()
		c.Auction.Admin = testAdmin
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults with admin", mutate: func(c *Config) {}},
		{name: "missing admin", mutate: func(c *Config) { c.Auction.Admin = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }, wantErr: true},
		{name: "postgres with url", mutate: func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.URL = "postgres://localhost/dax"
		}},
		{name: "redis without url", mutate: func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.URL = ""
		}, wantErr: true},
		{name: "bad seed amount", mutate: func(c *Config) {
			c.Ledger.Seed = map[string]string{"alice": "-1"}
		}, wantErr: true},
		{name: "production with development secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.read_timeout", envKey("DAX_SERVER_READ_TIMEOUT"))
	assert.Equal(t, "log_level", envKey("DAX_LOG_LEVEL"))
	assert.Equal(t, "redis.lock_ttl", envKey("DAX_REDIS_LOCK_TTL"))
}
