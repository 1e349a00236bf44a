package strategy

import (
	"fmt"
	"sort"
	"sync"

	"stratmesh/indicators"
)

// Profile 策略参数档位
// 同一策略的不同档位共用同一套评估逻辑，只有参数不同，
// 避免散落在代码各处的字符串分支
type Profile struct {
	Strategy string `json:"strategy" yaml:"strategy"`
	Name     string `json:"name" yaml:"name"`

	// MACD 参数
	FastPeriod   int `json:"fast_period" yaml:"fast_period"`
	SlowPeriod   int `json:"slow_period" yaml:"slow_period"`
	SignalPeriod int `json:"signal_period" yaml:"signal_period"`

	// RSI 确认
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`

	// EMA 趋势过滤
	TrendPeriod int `json:"trend_period" yaml:"trend_period"`

	// 入场/离场条件权重
	CrossoverWeight float64 `json:"crossover_weight" yaml:"crossover_weight"`
	RSIWeight       float64 `json:"rsi_weight" yaml:"rsi_weight"`
	TrendWeight     float64 `json:"trend_weight" yaml:"trend_weight"`

	// 加权得分达到该阈值才触发动作
	RecommendationThreshold float64 `json:"recommendation_threshold" yaml:"recommendation_threshold"`
	// 至少需要满足的条件数量
	MinConfirmations int `json:"min_confirmations" yaml:"min_confirmations"`

	// 仓位与风控
	TransactionLimitPct float64 `json:"transaction_limit_pct" yaml:"transaction_limit_pct"`
	SizeMultiplier      float64 `json:"size_multiplier" yaml:"size_multiplier"`
	StopLossPct         float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	StopGainPct         float64 `json:"stop_gain_pct" yaml:"stop_gain_pct"`
}

// Key 注册表键 "strategy/profile"
func (p *Profile) Key() string {
	return p.Strategy + "/" + p.Name
}

// IndicatorSpecs 返回该档位评估所需的指标请求
func (p *Profile) IndicatorSpecs() []indicators.Spec {
	specs := []indicators.Spec{
		{Name: "MACD", Params: map[string]interface{}{
			"fast":   p.FastPeriod,
			"slow":   p.SlowPeriod,
			"signal": p.SignalPeriod,
		}},
	}
	if p.RSIWeight > 0 {
		specs = append(specs, indicators.Spec{Name: "RSI", Params: map[string]interface{}{
			"period": p.RSIPeriod,
		}})
	}
	if p.TrendWeight > 0 {
		specs = append(specs, indicators.Spec{Name: "ema", Params: map[string]interface{}{
			"period": p.TrendPeriod,
		}})
	}
	return specs
}

// Validate 校验参数取值
func (p *Profile) Validate() error {
	if p.FastPeriod <= 0 || p.SlowPeriod <= 0 || p.SignalPeriod <= 0 {
		return fmt.Errorf("MACD 周期必须为正: fast=%d slow=%d signal=%d", p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("MACD 快线周期 (%d) 必须小于慢线周期 (%d)", p.FastPeriod, p.SlowPeriod)
	}
	if p.RSIWeight > 0 && p.RSIPeriod <= 0 {
		return fmt.Errorf("RSI 周期必须为正: %d", p.RSIPeriod)
	}
	if p.TrendWeight > 0 && p.TrendPeriod <= 0 {
		return fmt.Errorf("趋势 EMA 周期必须为正: %d", p.TrendPeriod)
	}
	if p.TransactionLimitPct <= 0 || p.TransactionLimitPct > 1 {
		return fmt.Errorf("transaction_limit_pct 必须在 (0, 1] 内: %v", p.TransactionLimitPct)
	}
	if p.SizeMultiplier <= 0 {
		return fmt.Errorf("size_multiplier 必须为正: %v", p.SizeMultiplier)
	}
	if p.StopLossPct < 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct 必须在 [0, 1) 内: %v", p.StopLossPct)
	}
	if p.StopGainPct < 0 {
		return fmt.Errorf("stop_gain_pct 不能为负: %v", p.StopGainPct)
	}
	if p.RecommendationThreshold <= 0 {
		return fmt.Errorf("recommendation_threshold 必须为正: %v", p.RecommendationThreshold)
	}
	if p.MinConfirmations < 1 {
		return fmt.Errorf("min_confirmations 必须 ≥ 1: %d", p.MinConfirmations)
	}
	return nil
}

// ApplyOverrides 在档位副本上应用参数覆盖，未知键或非数值返回错误
func (p *Profile) ApplyOverrides(params map[string]interface{}) error {
	for key, raw := range params {
		value, ok := toFloat(raw)
		if !ok {
			return fmt.Errorf("参数 %s 的值无法解析为数值: %v", key, raw)
		}
		switch key {
		case "fast_period":
			p.FastPeriod = int(value)
		case "slow_period":
			p.SlowPeriod = int(value)
		case "signal_period":
			p.SignalPeriod = int(value)
		case "rsi_period":
			p.RSIPeriod = int(value)
		case "rsi_overbought":
			p.RSIOverbought = value
		case "rsi_oversold":
			p.RSIOversold = value
		case "trend_period":
			p.TrendPeriod = int(value)
		case "crossover_weight":
			p.CrossoverWeight = value
		case "rsi_weight":
			p.RSIWeight = value
		case "trend_weight":
			p.TrendWeight = value
		case "recommendation_threshold":
			p.RecommendationThreshold = value
		case "min_confirmations":
			p.MinConfirmations = int(value)
		case "transaction_limit_pct":
			p.TransactionLimitPct = value
		case "size_multiplier":
			p.SizeMultiplier = value
		case "stop_loss_pct":
			p.StopLossPct = value
		case "stop_gain_pct":
			p.StopGainPct = value
		default:
			return fmt.Errorf("未知的策略参数: %s", key)
		}
	}
	return p.Validate()
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Registry 策略档位注册表，键为 (策略名, 档位名)
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// Register 注册档位（覆盖同名档位）
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("档位 %s 参数非法: %w", p.Key(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Key()] = p
	return nil
}

// Get 按 (策略名, 档位名) 查找，返回副本
func (r *Registry) Get(strategyName, profileName string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[strategyName+"/"+profileName]
	if !ok {
		return Profile{}, fmt.Errorf("未知的策略档位: %s/%s", strategyName, profileName)
	}
	return p, nil
}

// List 返回所有档位副本（按键排序）
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.profiles))
	for key := range r.profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]Profile, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.profiles[key])
	}
	return result
}

// DefaultRegistry 创建内置 MACD 策略族注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()

	base := Profile{
		Strategy:      "macd",
		FastPeriod:    12,
		SlowPeriod:    26,
		SignalPeriod:  9,
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		TrendPeriod:   50,
	}

	// canonical: 仅凭 MACD 金叉/死叉
	canonical := base
	canonical.Name = "canonical"
	canonical.CrossoverWeight = 1.0
	canonical.RecommendationThreshold = 1.0
	canonical.MinConfirmations = 1
	canonical.TransactionLimitPct = 0.5
	canonical.SizeMultiplier = 1.0
	canonical.StopLossPct = 0.10
	canonical.StopGainPct = 0.20

	// balanced: 金叉 + RSI 确认 + EMA 趋势过滤
	balanced := base
	balanced.Name = "balanced"
	balanced.CrossoverWeight = 0.5
	balanced.RSIWeight = 0.3
	balanced.TrendWeight = 0.2
	balanced.RecommendationThreshold = 0.7
	balanced.MinConfirmations = 2
	balanced.TransactionLimitPct = 0.5
	balanced.SizeMultiplier = 1.0
	balanced.StopLossPct = 0.08
	balanced.StopGainPct = 0.15

	// aggressive: 阈值更松、确认更少、仓位更大
	aggressive := base
	aggressive.Name = "aggressive"
	aggressive.RSIOverbought = 80
	aggressive.RSIOversold = 20
	aggressive.CrossoverWeight = 0.5
	aggressive.RSIWeight = 0.3
	aggressive.TrendWeight = 0.2
	// 阈值必须高于 RSI+趋势权重之和，否则无金叉也会触发信号
	aggressive.RecommendationThreshold = 0.6
	aggressive.MinConfirmations = 1
	aggressive.TransactionLimitPct = 0.8
	aggressive.SizeMultiplier = 1.25
	aggressive.StopLossPct = 0.15
	aggressive.StopGainPct = 0.30

	// conservative: 阈值更严、确认更多、仓位更小
	conservative := base
	conservative.Name = "conservative"
	conservative.RSIOverbought = 65
	conservative.RSIOversold = 35
	conservative.CrossoverWeight = 0.5
	conservative.RSIWeight = 0.3
	conservative.TrendWeight = 0.2
	conservative.RecommendationThreshold = 0.9
	conservative.MinConfirmations = 3
	conservative.TransactionLimitPct = 0.3
	conservative.SizeMultiplier = 0.5
	conservative.StopLossPct = 0.05
	conservative.StopGainPct = 0.10

	for _, p := range []Profile{canonical, balanced, aggressive, conservative} {
		if err := r.Register(p); err != nil {
			// 内置档位参数为常量，注册失败意味着代码错误
			panic(err)
		}
	}

	return r
}
