package strategy

import (
	"fmt"
	"math"
	"strings"

	"stratmesh/indicators"
	"stratmesh/market"
)

// Evaluate 计算下标 i 处的交易信号
// 纯函数：只读取 (bars, frame, p)，不持有任何跨K线状态
func (p *Profile) Evaluate(bars []market.Bar, frame *indicators.Frame, i int) Signal {
	sig := Signal{Date: bars[i].Date, Action: Hold, Reason: "no_condition"}

	macd := frame.Get("macd")
	macdSignal := frame.Get("macd_signal")
	if macd == nil || macdSignal == nil {
		sig.Reason = "warmup"
		return sig
	}

	// 预热期内指标未定义，强制 HOLD
	if math.IsNaN(macd[i]) || math.IsNaN(macdSignal[i]) {
		sig.Reason = "warmup"
		return sig
	}
	if p.RSIWeight > 0 && math.IsNaN(frame.At("rsi", i)) {
		sig.Reason = "warmup"
		return sig
	}
	trendKey := fmt.Sprintf("ema_%d", p.TrendPeriod)
	if p.TrendWeight > 0 && math.IsNaN(frame.At(trendKey, i)) {
		sig.Reason = "warmup"
		return sig
	}

	buyScore, buyConf, buyReasons := p.scoreBuy(bars, frame, i, trendKey)
	sellScore, sellConf, sellReasons := p.scoreSell(bars, frame, i, trendKey)

	// 买卖同时达标时卖出优先（降低风险的保守取向）
	if sellScore >= p.RecommendationThreshold && sellConf >= p.MinConfirmations {
		return Signal{
			Date:     bars[i].Date,
			Action:   Sell,
			Strength: math.Min(sellScore, 1.0),
			Reason:   strings.Join(sellReasons, "+"),
		}
	}
	if buyScore >= p.RecommendationThreshold && buyConf >= p.MinConfirmations {
		return Signal{
			Date:     bars[i].Date,
			Action:   Buy,
			Strength: math.Min(buyScore, 1.0),
			Reason:   strings.Join(buyReasons, "+"),
		}
	}

	return sig
}

// scoreBuy 入场条件打分
func (p *Profile) scoreBuy(bars []market.Bar, frame *indicators.Frame, i int, trendKey string) (float64, int, []string) {
	score := 0.0
	confirmations := 0
	reasons := make([]string, 0, 3)

	if indicators.CrossOver(frame.Get("macd"), frame.Get("macd_signal"), i) {
		score += p.CrossoverWeight
		confirmations++
		reasons = append(reasons, "macd_cross_up")
	}

	if p.RSIWeight > 0 {
		if rsi := frame.At("rsi", i); rsi < p.RSIOverbought {
			score += p.RSIWeight
			confirmations++
			reasons = append(reasons, "rsi_not_overbought")
		}
	}

	if p.TrendWeight > 0 {
		if bars[i].Close > frame.At(trendKey, i) {
			score += p.TrendWeight
			confirmations++
			reasons = append(reasons, "above_trend_ema")
		}
	}

	return score, confirmations, reasons
}

// scoreSell 离场条件打分
func (p *Profile) scoreSell(bars []market.Bar, frame *indicators.Frame, i int, trendKey string) (float64, int, []string) {
	score := 0.0
	confirmations := 0
	reasons := make([]string, 0, 3)

	if indicators.CrossUnder(frame.Get("macd"), frame.Get("macd_signal"), i) {
		score += p.CrossoverWeight
		confirmations++
		reasons = append(reasons, "macd_cross_down")
	}

	if p.RSIWeight > 0 {
		if rsi := frame.At("rsi", i); rsi > p.RSIOversold {
			score += p.RSIWeight
			confirmations++
			reasons = append(reasons, "rsi_not_oversold")
		}
	}

	if p.TrendWeight > 0 {
		if bars[i].Close < frame.At(trendKey, i) {
			score += p.TrendWeight
			confirmations++
			reasons = append(reasons, "below_trend_ema")
		}
	}

	return score, confirmations, reasons
}

// GenerateSignals 对整个序列逐K线求值，每根K线恰好产生一个信号
func (p *Profile) GenerateSignals(bars []market.Bar, frame *indicators.Frame) []Signal {
	signals := make([]Signal, len(bars))
	for i := range bars {
		signals[i] = p.Evaluate(bars, frame, i)
	}
	return signals
}
