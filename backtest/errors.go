package backtest

import (
	"errors"
	"fmt"
)

// ErrInvalidRange 日期区间非法（开始日期不早于结束日期）
var ErrInvalidRange = errors.New("开始日期必须早于结束日期")

// ConfigurationError 配置错误：未知策略/档位或参数非法
// 在任何模拟开始前返回，不产生部分结果
type ConfigurationError struct {
	Strategy string
	Profile  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("策略配置错误 (%s/%s): %v", e.Strategy, e.Profile, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InsufficientDataError 历史数据不足：K线数量低于最长指标预热期
type InsufficientDataError struct {
	Symbol   string
	Got      int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("历史数据不足 (%s): 需要至少 %d 根K线，实际 %d 根", e.Symbol, e.Required, e.Got)
}
