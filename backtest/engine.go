package backtest

import (
	"context"
	"sync"
	"time"

	"stratmesh/indicators"
	"stratmesh/logger"
	"stratmesh/market"
	"stratmesh/strategy"
)

// Request 单次回测请求
type Request struct {
	Symbol      string                 `json:"symbol"`
	Strategy    string                 `json:"strategy"`
	Profile     string                 `json:"profile"`
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	InitialCash float64                `json:"initial_cash"`
	Overrides   map[string]interface{} `json:"overrides,omitempty"` // 参数覆盖，键为 snake_case
	// BenchmarkSymbol 基准标的，留空时以回测标的自身的买入持有作为基准
	BenchmarkSymbol string `json:"benchmark_symbol,omitempty"`
}

// Result 单次回测结果
type Result struct {
	Symbol      string                 `json:"symbol"`
	Strategy    string                 `json:"strategy"`
	Profile     string                 `json:"profile"`
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	InitialCash float64                `json:"initial_cash"`
	Params      strategy.Profile       `json:"params"`
	Bars        int                    `json:"bars"`
	Signals     []strategy.Signal      `json:"signals,omitempty"`
	Trades      []Trade                `json:"trades"`
	Equity      []EquityPoint          `json:"equity"`
	Benchmark   []EquityPoint          `json:"benchmark"`
	Summary     PerformanceSummary     `json:"summary"`
	Risk        RiskMetrics            `json:"risk"`
	Diagnostics []string               `json:"diagnostics,omitempty"`
}

// Engine 回测引擎：拉取行情 → 构建指标 → 生成信号 → 模拟交易 → 计算绩效
type Engine struct {
	mu         sync.RWMutex
	profiles   *strategy.Registry
	indicators *indicators.Registry
	provider   market.Provider
}

// NewEngine 创建回测引擎
func NewEngine(profiles *strategy.Registry, provider market.Provider) *Engine {
	return &Engine{
		profiles:   profiles,
		indicators: indicators.DefaultRegistry,
		provider:   provider,
	}
}

// SetProfiles 替换策略注册表，配置热更新时调用
func (e *Engine) SetProfiles(profiles *strategy.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiles = profiles
}

// Profiles 返回当前策略注册表
func (e *Engine) Profiles() *strategy.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profiles
}

// Run 执行一次完整回测
// 校验顺序：时间区间 → 策略/参数配置 → 数据量
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if !req.End.After(req.Start) {
		return nil, ErrInvalidRange
	}

	profile, err := e.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	bars, err := e.provider.GetBars(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if err := market.CheckOrdered(bars); err != nil {
		return nil, err
	}

	specs := profile.IndicatorSpecs()
	warmup, err := indicators.MaxWarmup(specs)
	if err != nil {
		return nil, &ConfigurationError{Strategy: req.Strategy, Profile: req.Profile, Err: err}
	}
	if len(bars) < warmup {
		logger.Warn("⚠️ 数据不足: %s 仅 %d 根K线，需要至少 %d 根", req.Symbol, len(bars), warmup)
		return nil, &InsufficientDataError{Symbol: req.Symbol, Got: len(bars), Required: warmup}
	}

	logger.Info("🚀 开始回测: %s %s/%s, %d 根K线", req.Symbol, profile.Strategy, profile.Name, len(bars))

	frame, err := indicators.BuildFrame(bars, specs)
	if err != nil {
		return nil, &ConfigurationError{Strategy: req.Strategy, Profile: req.Profile, Err: err}
	}

	signals := profile.GenerateSignals(bars, frame)

	initialCash := req.InitialCash
	if initialCash <= 0 {
		initialCash = 10000
	}

	sim := NewSimulator(req.Symbol, profile, initialCash, 4)
	sim.Run(bars, signals)

	benchBars := bars
	if req.BenchmarkSymbol != "" && req.BenchmarkSymbol != req.Symbol {
		benchBars, err = e.provider.GetBars(ctx, req.BenchmarkSymbol, req.Start, req.End)
		if err != nil {
			return nil, err
		}
	}
	benchmark := benchmarkCurve(benchBars, initialCash)
	summary := CalculateSummary(sim.Equity(), sim.Trades(), initialCash, benchmark)
	risk := CalculateRiskMetrics(sim.Equity())

	logger.Info("✅ 回测完成: %s 收益 %.2f%%, 夏普 %.2f, 最大回撤 %.2f%%, %d 笔交易",
		req.Symbol, summary.TotalReturnPct, summary.SharpeRatio, summary.MaxDrawdownPct, summary.TotalTrades)

	return &Result{
		Symbol:      req.Symbol,
		Strategy:    profile.Strategy,
		Profile:     profile.Name,
		Start:       req.Start,
		End:         req.End,
		InitialCash: initialCash,
		Params:      profile,
		Bars:        len(bars),
		Signals:     signals,
		Trades:      sim.Trades(),
		Equity:      sim.Equity(),
		Benchmark:   benchmark,
		Summary:     summary,
		Risk:        risk,
		Diagnostics: sim.Diagnostics(),
	}, nil
}

// resolveProfile 查找策略参数档并应用覆盖
func (e *Engine) resolveProfile(req Request) (strategy.Profile, error) {
	profile, err := e.Profiles().Get(req.Strategy, req.Profile)
	if err != nil {
		return profile, &ConfigurationError{Strategy: req.Strategy, Profile: req.Profile, Err: err}
	}
	if len(req.Overrides) > 0 {
		if err := profile.ApplyOverrides(req.Overrides); err != nil {
			return profile, &ConfigurationError{Strategy: req.Strategy, Profile: req.Profile, Err: err}
		}
	}
	return profile, nil
}

// benchmarkCurve 买入持有基准曲线，按初始资金归一化
func benchmarkCurve(bars []market.Bar, initialCash float64) []EquityPoint {
	if len(bars) == 0 {
		return nil
	}

	base := 0.0
	for _, b := range bars {
		if b.Valid() {
			base = b.Close
			break
		}
	}
	if base == 0 {
		return nil
	}

	curve := make([]EquityPoint, 0, len(bars))
	last := base
	for _, b := range bars {
		price := last
		if b.Valid() {
			price = b.Close
			last = price
		}
		curve = append(curve, EquityPoint{Date: b.Date, Value: initialCash * price / base})
	}
	return curve
}
