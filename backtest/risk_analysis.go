package backtest

import (
	"math"
	"sort"
)

// RiskMetrics 风险指标
type RiskMetrics struct {
	VaR95     float64 `json:"var_95"`     // 95% 置信度的风险价值 (%)
	VaR99     float64 `json:"var_99"`     // 99% 置信度的风险价值 (%)
	CVaR95    float64 `json:"cvar_95"`    // 95% 置信度的条件风险价值 (%)
	CVaR99    float64 `json:"cvar_99"`    // 99% 置信度的条件风险价值 (%)
	RiskScore float64 `json:"risk_score"` // 综合风险评分 0-100，越高越危险
}

// CalculateRiskMetrics 计算风险指标（历史模拟法）
func CalculateRiskMetrics(equity []EquityPoint) RiskMetrics {
	if len(equity) < 2 {
		return RiskMetrics{}
	}

	returns := dailyReturns(equity)

	metrics := RiskMetrics{
		VaR95:  historicalVaR(returns, 0.95) * 100,
		VaR99:  historicalVaR(returns, 0.99) * 100,
		CVaR95: conditionalVaR(returns, 0.95) * 100,
		CVaR99: conditionalVaR(returns, 0.99) * 100,
	}
	metrics.RiskScore = riskScore(annualizedVolatility(returns), MaxDrawdown(equity))

	return metrics
}

// historicalVaR 历史模拟法计算 VaR
func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)) * (1 - confidence))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		index = 0
	}

	return math.Abs(sorted[index]) // VaR 是正数，表示损失
}

// conditionalVaR 条件风险价值（CVaR / Expected Shortfall）：超过 VaR 阈值的平均损失
func conditionalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)) * (1 - confidence))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := 0; i <= index; i++ {
		sum += sorted[i]
		count++
	}

	if count == 0 {
		return 0
	}

	return math.Abs(sum / float64(count))
}

// riskScore 综合风险评分：波动率与最大回撤各占一半权重
// 波动率 50% 以上、回撤 50% 以上均视为满分风险
func riskScore(volatilityPct, maxDrawdownPct float64) float64 {
	volScore := volatilityPct / 50 * 50
	if volScore > 50 {
		volScore = 50
	}
	ddScore := maxDrawdownPct / 50 * 50
	if ddScore > 50 {
		ddScore = 50
	}

	score := volScore + ddScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
