package backtest

import (
	"math"
	"testing"
	"time"
)

func mkEquity(values []float64) []EquityPoint {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]EquityPoint, len(values))
	for i, v := range values {
		points[i] = EquityPoint{Date: base.AddDate(0, 0, i), Value: v}
	}
	return points
}

// TestMaxDrawdownBruteForce 测试最大回撤与暴力算法一致
func TestMaxDrawdownBruteForce(t *testing.T) {
	values := []float64{
		10000, 10500, 10200, 11000, 9500, 9800, 10700, 10100, 11500, 11200,
		10400, 12000, 11000, 11800, 10800,
	}
	equity := mkEquity(values)

	got := MaxDrawdown(equity)

	// 暴力 O(n²)：所有峰谷对取最大跌幅
	want := 0.0
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			dd := (values[i] - values[j]) / values[i] * 100
			if dd > want {
				want = dd
			}
		}
	}

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("最大回撤与暴力算法不一致: got %v want %v", got, want)
	}
}

// TestMaxDrawdownMonotonic 测试单调上涨序列回撤为 0
func TestMaxDrawdownMonotonic(t *testing.T) {
	equity := mkEquity([]float64{100, 110, 120, 130})
	if dd := MaxDrawdown(equity); dd != 0 {
		t.Errorf("单调上涨回撤应为 0: got %v", dd)
	}
}

// TestSharpeFlatEquity 测试权益不变时夏普为 0 而非 NaN
func TestSharpeFlatEquity(t *testing.T) {
	equity := mkEquity([]float64{10000, 10000, 10000, 10000, 10000})
	summary := CalculateSummary(equity, nil, 10000, nil)

	if summary.SharpeRatio != 0 {
		t.Errorf("零波动夏普应为 0: got %v", summary.SharpeRatio)
	}
	if math.IsNaN(summary.SharpeRatio) || math.IsInf(summary.SharpeRatio, 0) {
		t.Error("夏普不应为 NaN/Inf")
	}
	if summary.TotalReturnPct != 0 {
		t.Errorf("零收益: got %v", summary.TotalReturnPct)
	}
}

// TestWinRateExcludesOpenTrades 测试胜率只统计已平仓交易
func TestWinRateExcludesOpenTrades(t *testing.T) {
	trades := []Trade{
		{Status: TradeStatusClosed, PnLPct: 5, PnLDollars: 50},
		{Status: TradeStatusClosed, PnLPct: -3, PnLDollars: -30},
		{Status: TradeStatusClosed, PnLPct: 2, PnLDollars: 20},
		{Status: TradeStatusOpen, PnLPct: 100, PnLDollars: 1000}, // 未平仓，不计入
	}

	summary := CalculateSummary(mkEquity([]float64{10000, 10040}), trades, 10000, nil)

	if summary.TotalTrades != 3 {
		t.Errorf("已平仓交易数应为 3: got %d", summary.TotalTrades)
	}
	want := 2.0 / 3.0 * 100
	if math.Abs(summary.WinRatePct-want) > 1e-9 {
		t.Errorf("胜率应为 %.4f: got %v", want, summary.WinRatePct)
	}
}

// TestWinRateNoTrades 测试零交易胜率为 0 不除零
func TestWinRateNoTrades(t *testing.T) {
	summary := CalculateSummary(mkEquity([]float64{10000, 10000}), nil, 10000, nil)
	if summary.WinRatePct != 0 {
		t.Errorf("零交易胜率应为 0: got %v", summary.WinRatePct)
	}
	if summary.AvgTradeReturnPct != 0 {
		t.Errorf("零交易平均收益应为 0: got %v", summary.AvgTradeReturnPct)
	}
}

// TestAlphaSimpleDifference 测试超额收益 = 总收益 − 基准收益
func TestAlphaSimpleDifference(t *testing.T) {
	equity := mkEquity([]float64{10000, 11000})    // +10%
	benchmark := mkEquity([]float64{10000, 10400}) // +4%

	summary := CalculateSummary(equity, nil, 10000, benchmark)

	if math.Abs(summary.BenchmarkReturnPct-4) > 1e-9 {
		t.Errorf("基准收益应为 4%%: got %v", summary.BenchmarkReturnPct)
	}
	if math.Abs(summary.AlphaPct-6) > 1e-9 {
		t.Errorf("超额收益应为 6%%: got %v", summary.AlphaPct)
	}
}

// TestSummaryWithoutBenchmark 测试无基准时 alpha 为 0
func TestSummaryWithoutBenchmark(t *testing.T) {
	summary := CalculateSummary(mkEquity([]float64{10000, 10500}), nil, 10000, nil)
	if summary.BenchmarkReturnPct != 0 || summary.AlphaPct != 0 {
		t.Errorf("无基准时基准收益与 alpha 均应为 0: %v %v", summary.BenchmarkReturnPct, summary.AlphaPct)
	}
}

// TestConsecutiveRuns 测试最大连胜/连亏统计
func TestConsecutiveRuns(t *testing.T) {
	trades := []Trade{
		{Status: TradeStatusClosed, PnLPct: 1},
		{Status: TradeStatusClosed, PnLPct: 2},
		{Status: TradeStatusClosed, PnLPct: 3},
		{Status: TradeStatusClosed, PnLPct: -1},
		{Status: TradeStatusClosed, PnLPct: -2},
		{Status: TradeStatusClosed, PnLPct: 4},
	}
	summary := CalculateSummary(mkEquity([]float64{10000, 10100}), trades, 10000, nil)

	if summary.MaxConsecutiveWins != 3 {
		t.Errorf("最大连胜应为 3: got %d", summary.MaxConsecutiveWins)
	}
	if summary.MaxConsecutiveLosses != 2 {
		t.Errorf("最大连亏应为 2: got %d", summary.MaxConsecutiveLosses)
	}
}

// TestRiskMetricsBounds 测试风险指标取值合理
func TestRiskMetricsBounds(t *testing.T) {
	values := make([]float64, 100)
	v := 10000.0
	for i := range values {
		if i%3 == 0 {
			v *= 0.98
		} else {
			v *= 1.015
		}
		values[i] = v
	}
	risk := CalculateRiskMetrics(mkEquity(values))

	if risk.VaR95 < 0 || risk.VaR99 < 0 {
		t.Errorf("VaR 应为非负: %v %v", risk.VaR95, risk.VaR99)
	}
	if risk.CVaR95 < risk.VaR95-1e-9 {
		t.Errorf("CVaR95 (%v) 不应小于 VaR95 (%v)", risk.CVaR95, risk.VaR95)
	}
	if risk.RiskScore < 0 || risk.RiskScore > 100 {
		t.Errorf("风险评分应在 [0, 100]: got %v", risk.RiskScore)
	}
}

// TestRiskMetricsEmpty 测试数据不足时风险指标为零值
func TestRiskMetricsEmpty(t *testing.T) {
	risk := CalculateRiskMetrics(mkEquity([]float64{10000}))
	if risk.VaR95 != 0 || risk.RiskScore != 0 {
		t.Errorf("单点权益曲线风险指标应为零值: %+v", risk)
	}
}
