// Package indicators 技术指标库
// 所有指标输出与输入K线序列一一对齐，预热期取 NaN；
// 任意下标 i 的值只依赖下标 ≤ i 的K线（因果性）
package indicators

import (
	"fmt"
	"math"
	"sort"

	"stratmesh/market"
)

// Indicator 指标接口
type Indicator interface {
	// Name 指标名称
	Name() string
	// Warmup 产生有效值所需的最小K线数量
	Warmup() int
	// Compute 计算指标序列，键为输出序列名，值与输入K线对齐
	Compute(bars []market.Bar) map[string][]float64
}

// Spec 指标请求（名称 + 参数）
type Spec struct {
	Name   string                 `json:"name" yaml:"name"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

// Frame 指标帧：指标序列名 → 与K线对齐的数值序列
type Frame struct {
	length int
	series map[string][]float64
}

// NewFrame 创建指定长度的指标帧
func NewFrame(length int) *Frame {
	return &Frame{
		length: length,
		series: make(map[string][]float64),
	}
}

// Len 帧长度（等于K线数量）
func (f *Frame) Len() int {
	return f.length
}

// Set 写入一条序列（长度必须与帧一致）
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != f.length {
		return fmt.Errorf("指标序列 %s 长度不匹配: 期望 %d，实际 %d", name, f.length, len(values))
	}
	f.series[name] = values
	return nil
}

// Get 读取一条序列，不存在时返回 nil
func (f *Frame) Get(name string) []float64 {
	return f.series[name]
}

// At 读取下标 i 的值，序列不存在或越界时返回 NaN
func (f *Frame) At(name string, i int) float64 {
	s, ok := f.series[name]
	if !ok || i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}

// Has 判断序列是否存在
func (f *Frame) Has(name string) bool {
	_, ok := f.series[name]
	return ok
}

// Names 返回所有序列名（排序后）
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.series))
	for name := range f.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry 指标注册表
type Registry struct {
	indicators map[string]func(params map[string]interface{}) Indicator
}

// NewRegistry 创建指标注册表
func NewRegistry() *Registry {
	return &Registry{
		indicators: make(map[string]func(params map[string]interface{}) Indicator),
	}
}

// Register 注册指标
func (r *Registry) Register(name string, factory func(params map[string]interface{}) Indicator) {
	r.indicators[name] = factory
}

// Get 获取指标实例
func (r *Registry) Get(name string, params map[string]interface{}) (Indicator, error) {
	factory, ok := r.indicators[name]
	if !ok {
		return nil, fmt.Errorf("未注册的指标: %s", name)
	}
	return factory(params), nil
}

// List 列出所有注册的指标名
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry 默认指标注册表
var DefaultRegistry = NewRegistry()

// RegisterIndicator 注册指标到默认注册表
func RegisterIndicator(name string, factory func(params map[string]interface{}) Indicator) {
	DefaultRegistry.Register(name, factory)
}

// BuildFrame 根据指标请求列表计算对齐的指标帧
func BuildFrame(bars []market.Bar, specs []Spec) (*Frame, error) {
	frame := NewFrame(len(bars))
	for _, spec := range specs {
		ind, err := DefaultRegistry.Get(spec.Name, spec.Params)
		if err != nil {
			return nil, err
		}
		for name, values := range ind.Compute(bars) {
			if err := frame.Set(name, values); err != nil {
				return nil, err
			}
		}
	}
	return frame, nil
}

// MaxWarmup 计算一组指标请求中最长的预热期
func MaxWarmup(specs []Spec) (int, error) {
	warmup := 0
	for _, spec := range specs {
		ind, err := DefaultRegistry.Get(spec.Name, spec.Params)
		if err != nil {
			return 0, err
		}
		if ind.Warmup() > warmup {
			warmup = ind.Warmup()
		}
	}
	return warmup, nil
}

// 参数读取辅助函数
func getIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case float64:
			return int(val)
		}
	}
	return defaultVal
}

func getFloatParam(params map[string]interface{}, key string, defaultVal float64) float64 {
	if v, ok := params[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		}
	}
	return defaultVal
}
