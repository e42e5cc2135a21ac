package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 应用配置结构
type Config struct {
	System SystemConfig `mapstructure:"system" yaml:"system"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Wallet WalletConfig `mapstructure:"wallet" yaml:"wallet"`
	API    APIConfig    `mapstructure:"api" yaml:"api"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Password  string `mapstructure:"password" yaml:"password"` // 从配置文件或环境变量中读取
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// WalletConfig 钱包默认配置，用于首次引用时懒创建
type WalletConfig struct {
	Mode                   string  `mapstructure:"mode" yaml:"mode"`
	InitialCapital         float64 `mapstructure:"initial_capital" yaml:"initial_capital"`
	MaxDailyLoss           float64 `mapstructure:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDailyLossPercent    float64 `mapstructure:"max_daily_loss_percent" yaml:"max_daily_loss_percent"`
	MaxDrawdown            float64 `mapstructure:"max_drawdown" yaml:"max_drawdown"`
	MaxDrawdownPercent     float64 `mapstructure:"max_drawdown_percent" yaml:"max_drawdown_percent"`
	MaxOpenPositions       int     `mapstructure:"max_open_positions" yaml:"max_open_positions"`
	MaxPositionSize        float64 `mapstructure:"max_position_size" yaml:"max_position_size"`
	MaxPositionSizePercent float64 `mapstructure:"max_position_size_percent" yaml:"max_position_size_percent"`
}

// APIConfig 查询/管理API配置
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LoadConfig 从文件加载配置
func LoadConfig(filePath string) (*Config, error) {
	// 使用Viper读取配置
	v := viper.New()
	v.SetConfigFile(filePath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 绑定环境变量（可选，如果需要从环境变量覆盖配置）
	v.AutomaticEnv()
	v.SetEnvPrefix("TRADECORE") // 环境变量前缀，如TRADECORE_REDIS_PASSWORD

	// 特定环境变量映射，如果存在这些环境变量则优先使用
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// LoadConfigFromYAML 保留纯yaml加载函数以备不时之需
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	// 验证Redis配置
	if config.Redis.Host == "" {
		return fmt.Errorf("Redis主机不能为空")
	}

	if config.Redis.Port <= 0 || config.Redis.Port > 65535 {
		return fmt.Errorf("无效的Redis端口")
	}

	// 验证钱包默认配置
	if config.Wallet.InitialCapital <= 0 {
		return fmt.Errorf("初始资金必须大于0")
	}

	if config.Wallet.Mode != "VIRTUAL" && config.Wallet.Mode != "LIVE" {
		return fmt.Errorf("钱包模式必须为 VIRTUAL 或 LIVE")
	}

	if config.Wallet.MaxDailyLossPercent < 0 || config.Wallet.MaxDailyLossPercent > 100 {
		return fmt.Errorf("单日最大亏损百分比必须在0到100之间")
	}

	if config.Wallet.MaxDrawdownPercent < 0 || config.Wallet.MaxDrawdownPercent > 100 {
		return fmt.Errorf("最大回撤百分比必须在0到100之间")
	}

	if config.Wallet.MaxOpenPositions <= 0 {
		return fmt.Errorf("最大持仓数必须大于0")
	}

	if config.Wallet.MaxPositionSizePercent < 0 || config.Wallet.MaxPositionSizePercent > 100 {
		return fmt.Errorf("单笔最大仓位百分比必须在0到100之间")
	}

	// 验证API配置
	if config.API.Enabled && config.API.ListenAddr == "" {
		return fmt.Errorf("API已启用，但监听地址未配置")
	}

	return nil
}

// GetDefaultConfig 获取默认配置（用于生成示例配置）
func GetDefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
			LogDir:   "./logs",
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			Password:  "",
			DB:        0,
			KeyPrefix: "tradecore:",
		},
		Wallet: WalletConfig{
			Mode:                   "VIRTUAL",
			InitialCapital:         100000,
			MaxDailyLossPercent:    3.0,
			MaxDrawdownPercent:     10.0,
			MaxOpenPositions:       10,
			MaxPositionSizePercent: 20.0,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
	}
}
