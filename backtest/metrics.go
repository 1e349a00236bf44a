package backtest

import (
	"math"
)

// PerformanceSummary 绩效汇总
type PerformanceSummary struct {
	TotalReturnPct     float64 `json:"total_return_pct"`     // 总收益率 (%)
	FinalValue         float64 `json:"final_value"`          // 最终权益
	SharpeRatio        float64 `json:"sharpe_ratio"`         // 夏普比率（年化，无风险利率取 0）
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`     // 最大回撤 (%)
	BenchmarkReturnPct float64 `json:"benchmark_return_pct"` // 基准收益率 (%)
	AlphaPct           float64 `json:"alpha_pct"`            // 超额收益 = 总收益 − 基准收益（非 beta 调整）
	TotalTrades        int     `json:"total_trades"`         // 已平仓交易数
	WinRatePct         float64 `json:"win_rate_pct"`         // 胜率 (%)，仅统计已平仓交易
	AvgTradeReturnPct  float64 `json:"avg_trade_return_pct"` // 平均单笔收益率 (%)

	// 扩展指标
	VolatilityPct        float64 `json:"volatility_pct"` // 年化波动率 (%)
	ProfitFactor         float64 `json:"profit_factor"`  // 总盈利 / 总亏损
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// CalculateSummary 计算绩效汇总
// benchmark 为空时基准收益与 alpha 均为 0
func CalculateSummary(equity []EquityPoint, trades []Trade, initialCash float64, benchmark []EquityPoint) PerformanceSummary {
	summary := PerformanceSummary{FinalValue: initialCash}
	if len(equity) > 0 {
		summary.FinalValue = equity[len(equity)-1].Value
	}
	if initialCash > 0 {
		summary.TotalReturnPct = (summary.FinalValue/initialCash - 1) * 100
	}

	returns := dailyReturns(equity)
	summary.SharpeRatio = sharpeRatio(returns)
	summary.VolatilityPct = annualizedVolatility(returns)
	summary.MaxDrawdownPct = MaxDrawdown(equity)

	if len(benchmark) > 1 && benchmark[0].Value > 0 {
		summary.BenchmarkReturnPct = (benchmark[len(benchmark)-1].Value/benchmark[0].Value - 1) * 100
		summary.AlphaPct = summary.TotalReturnPct - summary.BenchmarkReturnPct
	}

	closed := closedTrades(trades)
	summary.TotalTrades = len(closed)
	summary.WinRatePct = winRate(closed)
	summary.AvgTradeReturnPct = avgTradeReturn(closed)
	summary.ProfitFactor = profitFactor(closed)
	summary.AvgWin, summary.AvgLoss = avgWinLoss(closed)
	summary.LargestWin, summary.LargestLoss = largestWinLoss(closed)
	summary.MaxConsecutiveWins, summary.MaxConsecutiveLosses = consecutiveRuns(closed)

	return summary
}

// dailyReturns 日收益率序列（权益曲线逐日百分比变化）
func dailyReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1].Value > 0 {
			returns[i-1] = (equity[i].Value - equity[i-1].Value) / equity[i-1].Value
		}
	}
	return returns
}

// sharpeRatio 夏普比率 = mean(r) / stdev(r) × sqrt(252)
// 标准差为 0 时报告 0 而非无穷/NaN
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(252)
}

// annualizedVolatility 年化波动率 (%)
func annualizedVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(252) * 100
}

// MaxDrawdown 最大回撤 (%)：权益曲线最大的峰谷跌幅
func MaxDrawdown(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := equity[0].Value

	for _, point := range equity {
		if point.Value > peak {
			peak = point.Value
		}
		if peak > 0 {
			drawdown := (peak - point.Value) / peak * 100
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// closedTrades 过滤出已平仓交易；未平仓持仓不参与胜率等统计
func closedTrades(trades []Trade) []Trade {
	result := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == TradeStatusClosed {
			result = append(result, t)
		}
	}
	return result
}

// winRate 胜率 (%)；无已平仓交易时为 0，不做除零
func winRate(closed []Trade) float64 {
	if len(closed) == 0 {
		return 0
	}
	wins := 0
	for _, t := range closed {
		if t.PnLPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(closed)) * 100
}

// avgTradeReturn 平均单笔收益率 (%)
func avgTradeReturn(closed []Trade) float64 {
	if len(closed) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range closed {
		total += t.PnLPct
	}
	return total / float64(len(closed))
}

// profitFactor 利润因子（总盈利 / 总亏损）
func profitFactor(closed []Trade) float64 {
	totalProfit := 0.0
	totalLoss := 0.0
	for _, t := range closed {
		if t.PnLDollars > 0 {
			totalProfit += t.PnLDollars
		} else {
			totalLoss += math.Abs(t.PnLDollars)
		}
	}
	if totalLoss == 0 {
		return 0
	}
	return totalProfit / totalLoss
}

// avgWinLoss 平均盈利与平均亏损（美元）
func avgWinLoss(closed []Trade) (float64, float64) {
	totalWin, totalLoss := 0.0, 0.0
	winCount, lossCount := 0, 0
	for _, t := range closed {
		if t.PnLDollars > 0 {
			totalWin += t.PnLDollars
			winCount++
		} else if t.PnLDollars < 0 {
			totalLoss += math.Abs(t.PnLDollars)
			lossCount++
		}
	}

	avgWin, avgLoss := 0.0, 0.0
	if winCount > 0 {
		avgWin = totalWin / float64(winCount)
	}
	if lossCount > 0 {
		avgLoss = totalLoss / float64(lossCount)
	}
	return avgWin, avgLoss
}

// largestWinLoss 最大单笔盈利与最大单笔亏损（美元）
func largestWinLoss(closed []Trade) (float64, float64) {
	largestWin, largestLoss := 0.0, 0.0
	for _, t := range closed {
		if t.PnLDollars > largestWin {
			largestWin = t.PnLDollars
		}
		if t.PnLDollars < 0 && math.Abs(t.PnLDollars) > largestLoss {
			largestLoss = math.Abs(t.PnLDollars)
		}
	}
	return largestWin, largestLoss
}

// consecutiveRuns 最大连续盈利/亏损次数
func consecutiveRuns(closed []Trade) (int, int) {
	maxWins, maxLosses := 0, 0
	curWins, curLosses := 0, 0

	for _, t := range closed {
		if t.PnLPct > 0 {
			curWins++
			curLosses = 0
			if curWins > maxWins {
				maxWins = curWins
			}
		} else {
			curLosses++
			curWins = 0
			if curLosses > maxLosses {
				maxLosses = curLosses
			}
		}
	}

	return maxWins, maxLosses
}
