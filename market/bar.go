// Package market K线数据模型
// 定义回测引擎消费的历史行情序列和数据提供方接口
package market

import (
	"context"
	"fmt"
	"time"
)

// Bar 单根K线（一个交易周期的 OHLCV 观测值）
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid 判断K线价格是否可用于决策（非正价格视为坏数据）
func (b Bar) Valid() bool {
	return b.Close > 0 && b.Open > 0 && b.High > 0 && b.Low > 0
}

// Provider 历史K线数据提供方
// 返回的序列必须按日期升序、日期唯一、价格已校验
type Provider interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// Closes 提取收盘价序列
func Closes(bars []Bar) []float64 {
	result := make([]float64, len(bars))
	for i, b := range bars {
		result[i] = b.Close
	}
	return result
}

// Highs 提取最高价序列
func Highs(bars []Bar) []float64 {
	result := make([]float64, len(bars))
	for i, b := range bars {
		result[i] = b.High
	}
	return result
}

// Lows 提取最低价序列
func Lows(bars []Bar) []float64 {
	result := make([]float64, len(bars))
	for i, b := range bars {
		result[i] = b.Low
	}
	return result
}

// Volumes 提取成交量序列
func Volumes(bars []Bar) []float64 {
	result := make([]float64, len(bars))
	for i, b := range bars {
		result[i] = b.Volume
	}
	return result
}

// CheckOrdered 校验序列按日期严格升序（日期唯一）
func CheckOrdered(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("K线序列日期非严格升序: 第 %d 根 (%s) 不晚于第 %d 根 (%s)",
				i, bars[i].Date.Format("2006-01-02"), i-1, bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}
