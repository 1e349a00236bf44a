package indicators

import (
	"stratmesh/market"
)

// ========== 成交量指标 ==========

// OBV 能量潮，附带 OBV 移动平均和变化率
type OBV struct {
	MAPeriod  int
	ROCPeriod int
}

// NewOBV 创建 OBV 指标
func NewOBV(maPeriod, rocPeriod int) *OBV {
	return &OBV{
		MAPeriod:  maPeriod,
		ROCPeriod: rocPeriod,
	}
}

// Name 指标名称
func (o *OBV) Name() string {
	return "obv"
}

// Warmup 所需预热K线数
func (o *OBV) Warmup() int {
	warmup := o.MAPeriod
	if o.ROCPeriod+1 > warmup {
		warmup = o.ROCPeriod + 1
	}
	if warmup < 1 {
		warmup = 1
	}
	return warmup
}

// Compute 计算 OBV 及其衍生序列
func (o *OBV) Compute(bars []market.Bar) map[string][]float64 {
	obv := make([]float64, len(bars))
	if len(bars) > 0 {
		obv[0] = bars[0].Volume
	}

	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] = obv[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv[i] = obv[i-1] - bars[i].Volume
		default:
			obv[i] = obv[i-1]
		}
	}

	result := map[string][]float64{"obv": obv}
	if o.MAPeriod > 0 {
		result["obv_ma"] = SMA(obv, o.MAPeriod)
	}
	if o.ROCPeriod > 0 {
		result["obv_roc"] = RateOfChange(obv, o.ROCPeriod)
	}

	return result
}

// 注册成交量指标
func init() {
	RegisterIndicator("OBV", func(params map[string]interface{}) Indicator {
		maPeriod := getIntParam(params, "ma_period", 20)
		rocPeriod := getIntParam(params, "roc_period", 10)
		return NewOBV(maPeriod, rocPeriod)
	})
}
