package indicators

import (
	"math"

	"stratmesh/market"
)

// ========== 动量指标 ==========

// RSI 相对强弱指数（Wilder 平滑）
type RSI struct {
	period int
}

// NewRSI 创建 RSI 指标
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Name 指标名称
func (r *RSI) Name() string {
	return "rsi"
}

// Warmup 所需预热K线数
func (r *RSI) Warmup() int {
	return r.period + 1
}

// Compute 计算 RSI，取值范围 [0, 100]
func (r *RSI) Compute(bars []market.Bar) map[string][]float64 {
	closes := market.Closes(bars)
	result := nanSeries(len(bars))

	// 价格变化拆分为上涨和下跌（首根无前收盘价，取 NaN）
	gains := nanSeries(len(closes))
	losses := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
			losses[i] = 0
		} else {
			gains[i] = 0
			losses[i] = -change
		}
	}

	avgGain := RMA(gains, r.period)
	avgLoss := RMA(losses, r.period)

	for i := range result {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			result[i] = 100
		} else {
			rs := avgGain[i] / avgLoss[i]
			result[i] = 100 - 100/(1+rs)
		}
	}

	return map[string][]float64{"rsi": result}
}

// Stochastic 随机振荡器
type Stochastic struct {
	KPeriod int
	DPeriod int
	Slowing int
}

// NewStochastic 创建随机振荡器
func NewStochastic(kPeriod, dPeriod, slowing int) *Stochastic {
	return &Stochastic{
		KPeriod: kPeriod,
		DPeriod: dPeriod,
		Slowing: slowing,
	}
}

// Name 指标名称
func (s *Stochastic) Name() string {
	return "stoch"
}

// Warmup 所需预热K线数
func (s *Stochastic) Warmup() int {
	return s.KPeriod + s.Slowing + s.DPeriod
}

// Compute 计算 %K 和 %D
func (s *Stochastic) Compute(bars []market.Bar) map[string][]float64 {
	rawK := nanSeries(len(bars))

	highs := HighestHigh(bars, s.KPeriod)
	lows := LowestLow(bars, s.KPeriod)

	for i := range bars {
		if math.IsNaN(highs[i]) || math.IsNaN(lows[i]) {
			continue
		}
		if highs[i] != lows[i] {
			rawK[i] = (bars[i].Close - lows[i]) / (highs[i] - lows[i]) * 100
		} else {
			rawK[i] = 50
		}
	}

	k := SMA(rawK, s.Slowing)
	d := SMA(k, s.DPeriod)

	return map[string][]float64{
		"stoch_k": k,
		"stoch_d": d,
	}
}

// WilliamsR 威廉指标 %R，取值范围 [-100, 0]
type WilliamsR struct {
	period int
}

// NewWilliamsR 创建威廉指标
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{period: period}
}

// Name 指标名称
func (w *WilliamsR) Name() string {
	return "williams_r"
}

// Warmup 所需预热K线数
func (w *WilliamsR) Warmup() int {
	return w.period
}

// Compute 计算 Williams %R
func (w *WilliamsR) Compute(bars []market.Bar) map[string][]float64 {
	result := nanSeries(len(bars))

	highs := HighestHigh(bars, w.period)
	lows := LowestLow(bars, w.period)

	for i := range bars {
		if math.IsNaN(highs[i]) || math.IsNaN(lows[i]) {
			continue
		}
		if highs[i] != lows[i] {
			result[i] = (highs[i] - bars[i].Close) / (highs[i] - lows[i]) * -100
		} else {
			result[i] = -50
		}
	}

	return map[string][]float64{"williams_r": result}
}

// 注册动量指标
func init() {
	RegisterIndicator("RSI", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 14)
		return NewRSI(period)
	})

	RegisterIndicator("Stochastic", func(params map[string]interface{}) Indicator {
		kPeriod := getIntParam(params, "k_period", 14)
		dPeriod := getIntParam(params, "d_period", 3)
		slowing := getIntParam(params, "slowing", 3)
		return NewStochastic(kPeriod, dPeriod, slowing)
	})

	RegisterIndicator("WilliamsR", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 14)
		return NewWilliamsR(period)
	})
}
