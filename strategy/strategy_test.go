package strategy

import (
	"math"
	"testing"
	"time"

	"stratmesh/indicators"
	"stratmesh/market"
)

func mkBars(closes []float64) []market.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Date: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return bars
}

// mkFrame 手工构造指标帧，便于精确控制评估输入
func mkFrame(t *testing.T, length int, series map[string][]float64) *indicators.Frame {
	t.Helper()
	f := indicators.NewFrame(length)
	for name, values := range series {
		if err := f.Set(name, values); err != nil {
			t.Fatalf("构造指标帧失败: %v", err)
		}
	}
	return f
}

// TestRegistryGetUnknown 测试未注册档位返回错误
func TestRegistryGetUnknown(t *testing.T) {
	registry := DefaultRegistry()

	if _, err := registry.Get("macd", "nonexistent"); err == nil {
		t.Error("未知档位应返回错误")
	}
	if _, err := registry.Get("unknown_strategy", "canonical"); err == nil {
		t.Error("未知策略应返回错误")
	}
}

// TestRegistryGetReturnsCopy 测试取出的档位是副本，修改不污染注册表
func TestRegistryGetReturnsCopy(t *testing.T) {
	registry := DefaultRegistry()

	p1, err := registry.Get("macd", "canonical")
	if err != nil {
		t.Fatalf("获取档位失败: %v", err)
	}
	p1.FastPeriod = 999

	p2, _ := registry.Get("macd", "canonical")
	if p2.FastPeriod == 999 {
		t.Error("修改副本不应影响注册表中的档位")
	}
}

// TestDefaultRegistryProfiles 测试内置档位齐全且通过校验
func TestDefaultRegistryProfiles(t *testing.T) {
	registry := DefaultRegistry()

	for _, name := range []string{"canonical", "balanced", "aggressive", "conservative"} {
		p, err := registry.Get("macd", name)
		if err != nil {
			t.Errorf("内置档位 macd/%s 缺失: %v", name, err)
			continue
		}
		if err := p.Validate(); err != nil {
			t.Errorf("内置档位 macd/%s 未通过校验: %v", name, err)
		}
	}
}

// TestApplyOverridesUnknownKey 测试未知参数键返回错误
func TestApplyOverridesUnknownKey(t *testing.T) {
	registry := DefaultRegistry()
	p, _ := registry.Get("macd", "canonical")

	if err := p.ApplyOverrides(map[string]interface{}{"no_such_param": 1}); err == nil {
		t.Error("未知参数键应返回错误")
	}
	if err := p.ApplyOverrides(map[string]interface{}{"fast_period": "abc"}); err == nil {
		t.Error("非数值参数应返回错误")
	}
}

// TestApplyOverridesValidates 测试覆盖后仍做参数校验
func TestApplyOverridesValidates(t *testing.T) {
	registry := DefaultRegistry()
	p, _ := registry.Get("macd", "canonical")

	// 快线周期大于慢线周期应被拒绝
	if err := p.ApplyOverrides(map[string]interface{}{"fast_period": 50}); err == nil {
		t.Error("fast >= slow 应返回错误")
	}

	p2, _ := registry.Get("macd", "canonical")
	if err := p2.ApplyOverrides(map[string]interface{}{"fast_period": 8, "signal_period": 5}); err != nil {
		t.Errorf("合法覆盖不应失败: %v", err)
	}
	if p2.FastPeriod != 8 || p2.SignalPeriod != 5 {
		t.Errorf("覆盖未生效: fast=%d signal=%d", p2.FastPeriod, p2.SignalPeriod)
	}
}

// TestEvaluateWarmupHold 测试预热期强制 HOLD
func TestEvaluateWarmupHold(t *testing.T) {
	registry := DefaultRegistry()
	p, _ := registry.Get("macd", "canonical")

	bars := mkBars([]float64{100, 101, 102})
	nan := math.NaN()
	frame := mkFrame(t, 3, map[string][]float64{
		"macd":        {nan, nan, 1},
		"macd_signal": {nan, nan, 0.5},
	})

	for i := 0; i < 2; i++ {
		sig := p.Evaluate(bars, frame, i)
		if sig.Action != Hold {
			t.Errorf("预热期下标 %d 应为 HOLD: got %s", i, sig.Action)
		}
		if sig.Reason != "warmup" {
			t.Errorf("预热期原因应为 warmup: got %s", sig.Reason)
		}
	}
}

// TestEvaluateCrossoverBuy 测试 MACD 上穿触发 BUY
func TestEvaluateCrossoverBuy(t *testing.T) {
	p := Profile{
		Strategy: "macd", Name: "test",
		FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9,
		CrossoverWeight:         1.0,
		RecommendationThreshold: 1.0,
		MinConfirmations:        1,
		TransactionLimitPct:     0.5,
		SizeMultiplier:          1.0,
	}

	bars := mkBars([]float64{100, 101, 102})
	frame := mkFrame(t, 3, map[string][]float64{
		"macd":        {-1, -0.2, 0.6}, // 下标 2 上穿
		"macd_signal": {0, 0, 0},
	})

	sig := p.Evaluate(bars, frame, 2)
	if sig.Action != Buy {
		t.Fatalf("上穿应触发 BUY: got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.Reason != "macd_cross_up" {
		t.Errorf("信号原因应为 macd_cross_up: got %s", sig.Reason)
	}
	if sig.Strength <= 0 || sig.Strength > 1 {
		t.Errorf("信号强度应在 (0, 1]: got %v", sig.Strength)
	}

	// 无交叉的K线保持 HOLD
	if got := p.Evaluate(bars, frame, 1); got.Action != Hold {
		t.Errorf("无交叉应为 HOLD: got %s", got.Action)
	}
}

// TestEvaluateCrossUnderSell 测试 MACD 下穿触发 SELL
func TestEvaluateCrossUnderSell(t *testing.T) {
	p := Profile{
		Strategy: "macd", Name: "test",
		FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9,
		CrossoverWeight:         1.0,
		RecommendationThreshold: 1.0,
		MinConfirmations:        1,
		TransactionLimitPct:     0.5,
		SizeMultiplier:          1.0,
	}

	bars := mkBars([]float64{100, 99, 98})
	frame := mkFrame(t, 3, map[string][]float64{
		"macd":        {1, 0.2, -0.6},
		"macd_signal": {0, 0, 0},
	})

	sig := p.Evaluate(bars, frame, 2)
	if sig.Action != Sell {
		t.Fatalf("下穿应触发 SELL: got %s (%s)", sig.Action, sig.Reason)
	}
}

// TestEvaluateSellPrecedence 测试买卖同时达标时卖出优先
func TestEvaluateSellPrecedence(t *testing.T) {
	p := Profile{
		Strategy: "macd", Name: "test",
		FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9,
		RSIPeriod: 14, RSIOverbought: 70, RSIOversold: 30,
		RSIWeight:               0.6,
		RecommendationThreshold: 0.5,
		MinConfirmations:        1,
		TransactionLimitPct:     0.5,
		SizeMultiplier:          1.0,
	}

	// RSI = 50：既低于超买线（买入条件）又高于超卖线（卖出条件）
	bars := mkBars([]float64{100, 100, 100})
	frame := mkFrame(t, 3, map[string][]float64{
		"macd":        {0, 0, 0},
		"macd_signal": {0, 0, 0},
		"rsi":         {50, 50, 50},
	})

	sig := p.Evaluate(bars, frame, 2)
	if sig.Action != Sell {
		t.Errorf("买卖同时达标应取 SELL: got %s (%s)", sig.Action, sig.Reason)
	}
}

// TestGenerateSignalsOnePerBar 测试每根K线恰好一个信号
func TestGenerateSignalsOnePerBar(t *testing.T) {
	registry := DefaultRegistry()
	p, _ := registry.Get("macd", "canonical")

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/4)*10
	}
	bars := mkBars(closes)

	frame, err := indicators.BuildFrame(bars, p.IndicatorSpecs())
	if err != nil {
		t.Fatalf("构建指标帧失败: %v", err)
	}

	signals := p.GenerateSignals(bars, frame)
	if len(signals) != len(bars) {
		t.Fatalf("信号数应等于K线数: got %d want %d", len(signals), len(bars))
	}
	for i, sig := range signals {
		if !sig.Date.Equal(bars[i].Date) {
			t.Errorf("信号 %d 日期不对齐", i)
		}
		if sig.Action != Buy && sig.Action != Sell && sig.Action != Hold {
			t.Errorf("非法动作: %s", sig.Action)
		}
	}
}

// TestAggressiveRequiresCrossover 测试 aggressive 档无金叉/死叉时不触发信号
// RSI 与趋势条件几乎每根K线都满足，阈值必须高于两者权重之和
func TestAggressiveRequiresCrossover(t *testing.T) {
	registry := DefaultRegistry()
	p, err := registry.Get("macd", "aggressive")
	if err != nil {
		t.Fatalf("获取 aggressive 档失败: %v", err)
	}
	if p.RecommendationThreshold <= p.RSIWeight+p.TrendWeight {
		t.Fatalf("阈值 %v 不应低于 RSI+趋势权重之和 %v",
			p.RecommendationThreshold, p.RSIWeight+p.TrendWeight)
	}

	bars := mkBars([]float64{100, 101, 102})
	// MACD 持续高于信号线，无交叉；RSI 中性；价格高于趋势 EMA
	frame := mkFrame(t, 3, map[string][]float64{
		"macd":        {1, 1, 1},
		"macd_signal": {0, 0, 0},
		"rsi":         {50, 50, 50},
		"ema_50":      {90, 90, 90},
	})
	if sig := p.Evaluate(bars, frame, 2); sig.Action != Hold {
		t.Errorf("无金叉不应触发 BUY: got %s (%s)", sig.Action, sig.Reason)
	}

	// 价格低于趋势 EMA 且 RSI 未超卖，同样不足以触发 SELL
	frame = mkFrame(t, 3, map[string][]float64{
		"macd":        {-1, -1, -1},
		"macd_signal": {0, 0, 0},
		"rsi":         {50, 50, 50},
		"ema_50":      {110, 110, 110},
	})
	if sig := p.Evaluate(bars, frame, 2); sig.Action != Hold {
		t.Errorf("无死叉不应触发 SELL: got %s (%s)", sig.Action, sig.Reason)
	}
}

// TestGenerateSignalsPrefixStable 测试截断序列与完整序列的公共前缀信号完全一致
// 任意下标的信号只依赖该下标之前的K线
func TestGenerateSignalsPrefixStable(t *testing.T) {
	closes := make([]float64, 120)
	price := 100.0
	for i := range closes {
		switch {
		case i%7 == 3:
			price *= 0.985
		case i%11 == 5:
			price *= 0.97
		default:
			price *= 1.012
		}
		closes[i] = price
	}

	registry := DefaultRegistry()
	p, err := registry.Get("macd", "canonical")
	if err != nil {
		t.Fatalf("获取 canonical 档失败: %v", err)
	}

	full := mkBars(closes)
	fullFrame, err := indicators.BuildFrame(full, p.IndicatorSpecs())
	if err != nil {
		t.Fatalf("构建完整指标帧失败: %v", err)
	}
	fullSignals := p.GenerateSignals(full, fullFrame)

	prefix := mkBars(closes[:80])
	prefixFrame, err := indicators.BuildFrame(prefix, p.IndicatorSpecs())
	if err != nil {
		t.Fatalf("构建前缀指标帧失败: %v", err)
	}
	prefixSignals := p.GenerateSignals(prefix, prefixFrame)

	for i := range prefixSignals {
		if prefixSignals[i].Action != fullSignals[i].Action {
			t.Errorf("下标 %d 信号动作不一致: 前缀=%s 完整=%s",
				i, prefixSignals[i].Action, fullSignals[i].Action)
		}
		if prefixSignals[i].Reason != fullSignals[i].Reason {
			t.Errorf("下标 %d 信号原因不一致: 前缀=%s 完整=%s",
				i, prefixSignals[i].Reason, fullSignals[i].Reason)
		}
	}
}
