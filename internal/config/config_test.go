package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
system:
  log_level: "DEBUG"
  log_dir: "./logs"

redis:
  host: "localhost"
  port: 6379
  db: 1
  key_prefix: "tradecore:"

wallet:
  mode: "VIRTUAL"
  initial_capital: 100000
  max_daily_loss_percent: 3.0
  max_drawdown_percent: 10.0
  max_open_positions: 10
  max_position_size_percent: 20.0

api:
  enabled: true
  listen_addr: ":8080"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "tradecore:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "VIRTUAL", cfg.Wallet.Mode)
	assert.Equal(t, 100000.0, cfg.Wallet.InitialCapital)
	assert.Equal(t, 3.0, cfg.Wallet.MaxDailyLossPercent)
	assert.Equal(t, 10, cfg.Wallet.MaxOpenPositions)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoadConfig_环境变量覆盖Redis密码(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "secret-from-env")

	cfg, err := LoadConfig(writeTempConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Redis.Password)
}

func TestLoadConfigFromYAML(t *testing.T) {
	cfg, err := LoadConfigFromYAML(writeTempConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
	assert.Equal(t, "./logs", cfg.System.LogDir)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "tradecore:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 100000.0, cfg.Wallet.InitialCapital)
	assert.Equal(t, 20.0, cfg.Wallet.MaxPositionSizePercent)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoadConfigFromYAML_非法yaml(t *testing.T) {
	_, err := LoadConfigFromYAML(writeTempConfig(t, "wallet: [not a map"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		wantOK bool
	}{
		{"默认配置合法", func(cfg *Config) {}, true},
		{"Redis主机为空", func(cfg *Config) { cfg.Redis.Host = "" }, false},
		{"Redis端口越界", func(cfg *Config) { cfg.Redis.Port = 70000 }, false},
		{"初始资金非正", func(cfg *Config) { cfg.Wallet.InitialCapital = 0 }, false},
		{"钱包模式非法", func(cfg *Config) { cfg.Wallet.Mode = "PAPER" }, false},
		{"日亏损百分比越界", func(cfg *Config) { cfg.Wallet.MaxDailyLossPercent = 150 }, false},
		{"持仓数非正", func(cfg *Config) { cfg.Wallet.MaxOpenPositions = 0 }, false},
		{"API启用但无监听地址", func(cfg *Config) { cfg.API.ListenAddr = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfig_文件不存在(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
