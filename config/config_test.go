package config

import (
	"testing"
)

// TestLoadConfigDefaults 测试零值字段补默认值
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromBytes([]byte("app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.App.Name != "test" {
		t.Errorf("显式字段不应被默认值覆盖: %s", cfg.App.Name)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("端口应取默认值 8090: got %d", cfg.Server.Port)
	}
	if cfg.Data.Source != "binance" {
		t.Errorf("数据源应取默认值 binance: got %s", cfg.Data.Source)
	}
	if cfg.Backtest.InitialCash != 10000 {
		t.Errorf("初始资金应取默认值 10000: got %v", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.Concurrency <= 0 {
		t.Errorf("并发数默认值应为正: got %d", cfg.Backtest.Concurrency)
	}
}

// TestLoadConfigInvalidSource 测试非法数据源被拒绝
func TestLoadConfigInvalidSource(t *testing.T) {
	_, err := LoadConfigFromBytes([]byte("data:\n  source: carrier_pigeon\n"))
	if err == nil {
		t.Error("非法数据源应返回错误")
	}
}

// TestLoadConfigInvalidYAML 测试语法错误
func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfigFromBytes([]byte("app: [unclosed"))
	if err == nil {
		t.Error("YAML 语法错误应返回错误")
	}
}

// TestLoadConfigCustomProfile 测试自定义参数档加载与注册
func TestLoadConfigCustomProfile(t *testing.T) {
	yamlData := `
profiles:
  - strategy: macd
    name: custom
    fast_period: 8
    slow_period: 21
    signal_period: 5
    crossover_weight: 1.0
    recommendation_threshold: 0.8
    min_confirmations: 1
    transaction_limit_pct: 0.4
    size_multiplier: 1.0
    stop_loss_pct: 0.05
    stop_gain_pct: 0.10
`
	cfg, err := LoadConfigFromBytes([]byte(yamlData))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}

	p, err := registry.Get("macd", "custom")
	if err != nil {
		t.Fatalf("自定义档位应已注册: %v", err)
	}
	if p.FastPeriod != 8 || p.SlowPeriod != 21 {
		t.Errorf("自定义参数未生效: fast=%d slow=%d", p.FastPeriod, p.SlowPeriod)
	}

	// 内置档位仍在
	if _, err := registry.Get("macd", "canonical"); err != nil {
		t.Errorf("内置档位应保留: %v", err)
	}
}

// TestLoadConfigInvalidProfile 测试非法自定义档位被拒绝
func TestLoadConfigInvalidProfile(t *testing.T) {
	yamlData := `
profiles:
  - strategy: macd
    name: broken
    fast_period: 26
    slow_period: 12
    signal_period: 9
    transaction_limit_pct: 0.5
    size_multiplier: 1.0
    recommendation_threshold: 1.0
    min_confirmations: 1
`
	_, err := LoadConfigFromBytes([]byte(yamlData))
	if err == nil {
		t.Error("fast >= slow 的档位应在加载时被拒绝")
	}
}
