package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Checkout.Timeout)
	assert.Equal(t, "0.085", cfg.Pricing.TaxRate)
	assert.Equal(t, 3, cfg.Inventory.CASRetries)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9001
checkout:
  timeout: 7s
  reservationTTL: 2m
infra:
  redis:
    addrs: redis-a:6379
`), 0o600))

	t.Setenv("REDIS_ADDRS", "redis-b:6379")
	t.Setenv("NACOS_ENABLED", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.App.Port)
	assert.Equal(t, 7*time.Second, cfg.Checkout.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Checkout.ReservationTTL)
	// 未在文件中出现的字段保留默认值
	assert.Equal(t, 3*time.Second, cfg.Checkout.InventoryTimeout)
	assert.Equal(t, "redis-b:6379", cfg.Infra.Redis.Addrs)
	assert.True(t, cfg.Infra.Nacos.Enabled)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestMySQLConfig_DSN(t *testing.T) {
	dsn := MySQLConfig{User: "u", Password: "p", Addr: "db:3306", Database: "shop"}.DSN()
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/shop")
	assert.Contains(t, dsn, "parseTime=true")
}
