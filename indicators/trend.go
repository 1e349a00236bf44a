package indicators

import (
	"fmt"
	"math"

	"stratmesh/market"
)

// ========== 趋势指标 ==========

// MovingAverage 移动平均指标（简单/指数/加权/赫尔）
type MovingAverage struct {
	Kind   string // "sma", "ema", "wma", "hma"
	period int
}

// NewMovingAverage 创建移动平均指标
func NewMovingAverage(kind string, period int) *MovingAverage {
	return &MovingAverage{Kind: kind, period: period}
}

// Name 指标名称
func (ma *MovingAverage) Name() string {
	return fmt.Sprintf("%s_%d", ma.Kind, ma.period)
}

// Warmup 所需预热K线数
func (ma *MovingAverage) Warmup() int {
	if ma.Kind == "hma" {
		// HMA 对 WMA 结果再做一次 sqrt(n) 周期的 WMA
		return ma.period + int(math.Round(math.Sqrt(float64(ma.period))))
	}
	return ma.period
}

// Compute 计算移动平均序列
func (ma *MovingAverage) Compute(bars []market.Bar) map[string][]float64 {
	closes := market.Closes(bars)

	var values []float64
	switch ma.Kind {
	case "ema":
		values = EMA(closes, ma.period)
	case "wma":
		values = WMA(closes, ma.period)
	case "hma":
		values = HMA(closes, ma.period)
	default:
		values = SMA(closes, ma.period)
	}

	return map[string][]float64{ma.Name(): values}
}

// MACD 指数平滑异同移动平均线
type MACD struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// NewMACD 创建 MACD 指标
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		FastPeriod:   fast,
		SlowPeriod:   slow,
		SignalPeriod: signal,
	}
}

// Name 指标名称
func (m *MACD) Name() string {
	return "macd"
}

// Warmup 所需预热K线数
func (m *MACD) Warmup() int {
	return m.SlowPeriod + m.SignalPeriod
}

// Compute 计算 MACD 线、信号线和柱状图
func (m *MACD) Compute(bars []market.Bar) map[string][]float64 {
	closes := market.Closes(bars)

	fastEMA := EMA(closes, m.FastPeriod)
	slowEMA := EMA(closes, m.SlowPeriod)

	macdLine := nanSeries(len(bars))
	for i := range macdLine {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macdLine[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine := EMA(macdLine, m.SignalPeriod)

	histogram := nanSeries(len(bars))
	for i := range histogram {
		if !math.IsNaN(macdLine[i]) && !math.IsNaN(signalLine[i]) {
			histogram[i] = macdLine[i] - signalLine[i]
		}
	}

	return map[string][]float64{
		"macd":        macdLine,
		"macd_signal": signalLine,
		"macd_hist":   histogram,
	}
}

// 注册趋势指标
func init() {
	RegisterIndicator("MACD", func(params map[string]interface{}) Indicator {
		fast := getIntParam(params, "fast", 12)
		slow := getIntParam(params, "slow", 26)
		signal := getIntParam(params, "signal", 9)
		return NewMACD(fast, slow, signal)
	})

	for _, kind := range []string{"sma", "ema", "wma", "hma"} {
		kind := kind
		RegisterIndicator(kind, func(params map[string]interface{}) Indicator {
			period := getIntParam(params, "period", 20)
			return NewMovingAverage(kind, period)
		})
	}
}
