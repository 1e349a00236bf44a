package indicators

import (
	"math"

	"stratmesh/market"
)

// ========== 波动率指标 ==========

// ATR 平均真实波幅（Wilder 平滑）
type ATR struct {
	period int
}

// NewATR 创建 ATR 指标
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Name 指标名称
func (a *ATR) Name() string {
	return "atr"
}

// Warmup 所需预热K线数
func (a *ATR) Warmup() int {
	return a.period + 1
}

// Compute 计算 ATR
func (a *ATR) Compute(bars []market.Bar) map[string][]float64 {
	tr := TrueRangeSeries(bars)
	return map[string][]float64{"atr": RMA(tr, a.period)}
}

// BollingerBands 布林带
type BollingerBands struct {
	period     int
	multiplier float64
}

// NewBollingerBands 创建布林带指标
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{
		period:     period,
		multiplier: multiplier,
	}
}

// Name 指标名称
func (bb *BollingerBands) Name() string {
	return "bb"
}

// Warmup 所需预热K线数
func (bb *BollingerBands) Warmup() int {
	return bb.period
}

// Compute 计算上轨、中轨、下轨
func (bb *BollingerBands) Compute(bars []market.Bar) map[string][]float64 {
	closes := market.Closes(bars)

	middle := SMA(closes, bb.period)
	stdDev := StdDev(closes, bb.period)

	upper := nanSeries(len(bars))
	lower := nanSeries(len(bars))

	for i := range middle {
		if math.IsNaN(middle[i]) || math.IsNaN(stdDev[i]) {
			continue
		}
		band := bb.multiplier * stdDev[i]
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
	}

	return map[string][]float64{
		"bb_upper":  upper,
		"bb_middle": middle,
		"bb_lower":  lower,
	}
}

// 注册波动率指标
func init() {
	RegisterIndicator("ATR", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 14)
		return NewATR(period)
	})

	RegisterIndicator("BollingerBands", func(params map[string]interface{}) Indicator {
		period := getIntParam(params, "period", 20)
		multiplier := getFloatParam(params, "multiplier", 2.0)
		return NewBollingerBands(period, multiplier)
	})
}
