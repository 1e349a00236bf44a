package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"stratmesh/backtest"
	"stratmesh/strategy"
)

// Config 回测系统配置
type Config struct {
	// 应用配置
	App struct {
		Name     string `yaml:"name"`
		LogLevel string `yaml:"log_level"` // DEBUG/INFO/WARN/ERROR/FATAL
	} `yaml:"app"`

	// Web 服务配置
	Server struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`

	// 行情数据配置
	Data struct {
		Source    string `yaml:"source"`     // binance 或 sqlite
		Interval  string `yaml:"interval"`   // K线周期，如 1d
		CachePath string `yaml:"cache_path"` // SQLite 缓存文件路径
		// Binance 拉取参数
		BatchSize  int     `yaml:"batch_size"`   // 单次请求K线数量上限
		RatePerSec float64 `yaml:"rate_per_sec"` // 每秒请求数限制
		UseTestnet bool    `yaml:"use_testnet"`
	} `yaml:"data"`

	// 回测默认参数
	Backtest struct {
		InitialCash     float64 `yaml:"initial_cash"`
		ReportDir       string  `yaml:"report_dir"`
		Concurrency     int     `yaml:"concurrency"`      // 批量回测并发数
		MaxCombinations int     `yaml:"max_combinations"` // 单次批量评估的组合数上限
	} `yaml:"backtest"`

	// 自定义策略参数档，启动及热更新时并入默认注册表
	Profiles []strategy.Profile `yaml:"profiles"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置（用于测试）
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %v", err)
	}

	return nil
}

// DefaultConfig 创建默认配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "stratmesh"
	cfg.App.LogLevel = "INFO"
	cfg.Server.Enabled = true
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8090
	cfg.Data.Source = "binance"
	cfg.Data.Interval = "1d"
	cfg.Data.CachePath = "data/bars.db"
	cfg.Data.BatchSize = 1000
	cfg.Data.RatePerSec = 5
	cfg.Backtest.InitialCash = 10000
	cfg.Backtest.ReportDir = "reports"
	cfg.Backtest.Concurrency = runtime.NumCPU()
	cfg.Backtest.MaxCombinations = backtest.DefaultMaxCombinations
	return cfg
}

// applyDefaults 补齐零值字段
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.App.Name == "" {
		c.App.Name = def.App.Name
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = def.App.LogLevel
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Data.Source == "" {
		c.Data.Source = def.Data.Source
	}
	if c.Data.Interval == "" {
		c.Data.Interval = def.Data.Interval
	}
	if c.Data.CachePath == "" {
		c.Data.CachePath = def.Data.CachePath
	}
	if c.Data.BatchSize <= 0 {
		c.Data.BatchSize = def.Data.BatchSize
	}
	if c.Data.RatePerSec <= 0 {
		c.Data.RatePerSec = def.Data.RatePerSec
	}
	if c.Backtest.InitialCash <= 0 {
		c.Backtest.InitialCash = def.Backtest.InitialCash
	}
	if c.Backtest.ReportDir == "" {
		c.Backtest.ReportDir = def.Backtest.ReportDir
	}
	if c.Backtest.Concurrency <= 0 {
		c.Backtest.Concurrency = def.Backtest.Concurrency
	}
	if c.Backtest.MaxCombinations <= 0 {
		c.Backtest.MaxCombinations = def.Backtest.MaxCombinations
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("非法端口: %d", c.Server.Port)
	}
	if c.Data.Source != "binance" && c.Data.Source != "sqlite" {
		return fmt.Errorf("不支持的数据源: %s", c.Data.Source)
	}
	if c.Backtest.InitialCash <= 0 {
		return fmt.Errorf("初始资金必须为正数: %f", c.Backtest.InitialCash)
	}
	for i := range c.Profiles {
		if err := c.Profiles[i].Validate(); err != nil {
			return fmt.Errorf("自定义参数档 %s 非法: %v", c.Profiles[i].Key(), err)
		}
	}
	return nil
}

// BuildRegistry 构建策略注册表：默认参数档 + 配置文件中的自定义档
func (c *Config) BuildRegistry() (*strategy.Registry, error) {
	registry := strategy.DefaultRegistry()
	for _, p := range c.Profiles {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("注册自定义参数档失败: %v", err)
		}
	}
	return registry, nil
}
