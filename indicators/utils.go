package indicators

import (
	"math"

	"stratmesh/market"
)

// ========== 基础计算工具 ==========
// 所有函数返回与输入等长的序列，预热期填 NaN；
// 输入序列允许带 NaN 前缀（例如对 MACD 线再做 EMA）

// firstValid 返回第一个非 NaN 值的下标，全 NaN 时返回 len(values)
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

// nanSeries 生成全 NaN 序列
func nanSeries(length int) []float64 {
	result := make([]float64, length)
	for i := range result {
		result[i] = math.NaN()
	}
	return result
}

// SMA 简单移动平均
func SMA(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 || len(values)-start < period {
		return result
	}

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	result[start+period-1] = sum / float64(period)

	for i := start + period; i < len(values); i++ {
		sum = sum - values[i-period] + values[i]
		result[i] = sum / float64(period)
	}

	return result
}

// EMA 指数移动平均（首值用 SMA 做种子）
func EMA(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 || len(values)-start < period {
		return result
	}

	multiplier := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	result[start+period-1] = sum / float64(period)

	for i := start + period; i < len(values); i++ {
		result[i] = values[i]*multiplier + result[i-1]*(1-multiplier)
	}

	return result
}

// WMA 加权移动平均
func WMA(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 || len(values)-start < period {
		return result
	}

	weightSum := float64(period*(period+1)) / 2

	for i := start + period - 1; i < len(values); i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += values[i-period+1+j] * float64(j+1)
		}
		result[i] = sum / weightSum
	}

	return result
}

// HMA 赫尔移动平均 HMA = WMA(2*WMA(n/2) - WMA(n), sqrt(n))
func HMA(values []float64, period int) []float64 {
	if period <= 1 {
		return nanSeries(len(values))
	}

	half := WMA(values, period/2)
	full := WMA(values, period)

	raw := nanSeries(len(values))
	for i := range raw {
		if !math.IsNaN(half[i]) && !math.IsNaN(full[i]) {
			raw[i] = 2*half[i] - full[i]
		}
	}

	sqrtPeriod := int(math.Round(math.Sqrt(float64(period))))
	if sqrtPeriod < 1 {
		sqrtPeriod = 1
	}
	return WMA(raw, sqrtPeriod)
}

// RMA Wilder 平滑移动平均 RMA = (RMA*(n-1) + x) / n，首值用 SMA 做种子
func RMA(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 || len(values)-start < period {
		return result
	}

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	result[start+period-1] = sum / float64(period)

	for i := start + period; i < len(values); i++ {
		result[i] = (result[i-1]*float64(period-1) + values[i]) / float64(period)
	}

	return result
}

// StdDev 滚动标准差（总体标准差）
func StdDev(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 || len(values)-start < period {
		return result
	}

	for i := start + period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			diff := v - mean
			variance += diff * diff
		}
		result[i] = math.Sqrt(variance / float64(period))
	}

	return result
}

// TrueRange 真实波幅
func TrueRange(high, low, prevClose float64) float64 {
	tr1 := high - low
	tr2 := math.Abs(high - prevClose)
	tr3 := math.Abs(low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}

// TrueRangeSeries 真实波幅序列（首根K线无前收盘价，取 NaN）
func TrueRangeSeries(bars []market.Bar) []float64 {
	result := nanSeries(len(bars))
	for i := 1; i < len(bars); i++ {
		result[i] = TrueRange(bars[i].High, bars[i].Low, bars[i-1].Close)
	}
	return result
}

// HighestHigh 滚动窗口内最高价的最高值
func HighestHigh(bars []market.Bar, period int) []float64 {
	result := nanSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return result
	}

	for i := period - 1; i < len(bars); i++ {
		high := bars[i-period+1].High
		for j := i - period + 2; j <= i; j++ {
			if bars[j].High > high {
				high = bars[j].High
			}
		}
		result[i] = high
	}

	return result
}

// LowestLow 滚动窗口内最低价的最低值
func LowestLow(bars []market.Bar, period int) []float64 {
	result := nanSeries(len(bars))
	if period <= 0 || len(bars) < period {
		return result
	}

	for i := period - 1; i < len(bars); i++ {
		low := bars[i-period+1].Low
		for j := i - period + 2; j <= i; j++ {
			if bars[j].Low < low {
				low = bars[j].Low
			}
		}
		result[i] = low
	}

	return result
}

// RateOfChange 变化率 (%)
func RateOfChange(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	start := firstValid(values)
	if period <= 0 {
		return result
	}

	for i := start + period; i < len(values); i++ {
		if values[i-period] != 0 {
			result[i] = (values[i] - values[i-period]) / values[i-period] * 100
		}
	}

	return result
}

// CrossOver 判断下标 i 处是否金叉（line1 上穿 line2）
func CrossOver(line1, line2 []float64, i int) bool {
	if i < 1 || i >= len(line1) || i >= len(line2) {
		return false
	}
	if math.IsNaN(line1[i-1]) || math.IsNaN(line1[i]) || math.IsNaN(line2[i-1]) || math.IsNaN(line2[i]) {
		return false
	}
	return line1[i-1] <= line2[i-1] && line1[i] > line2[i]
}

// CrossUnder 判断下标 i 处是否死叉（line1 下穿 line2）
func CrossUnder(line1, line2 []float64, i int) bool {
	if i < 1 || i >= len(line1) || i >= len(line2) {
		return false
	}
	if math.IsNaN(line1[i-1]) || math.IsNaN(line1[i]) || math.IsNaN(line2[i-1]) || math.IsNaN(line2[i]) {
		return false
	}
	return line1[i-1] >= line2[i-1] && line1[i] < line2[i]
}

// Mean 平均值
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
