// Package strategy 策略配置与信号生成
// 信号生成是 (K线下标, 指标帧, 参数档位) 的纯函数，不感知持仓状态
package strategy

import (
	"time"
)

// Action 交易动作
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal 单根K线上的交易信号
type Signal struct {
	Date     time.Time `json:"date"`
	Action   Action    `json:"action"`
	Strength float64   `json:"strength"` // 加权得分，[0, 1]
	Reason   string    `json:"reason"`   // 机器可校验的触发原因
}
