package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"stratmesh/logger"
)

// Combination 一次批量评估中的单个组合
type Combination struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Profile  string `json:"profile"`
}

// RankedResult 带名次的单个组合结果
type RankedResult struct {
	Rank           int     `json:"rank"`
	Combination    `json:"combination"`
	Summary        PerformanceSummary `json:"summary"`
	Risk           RiskMetrics        `json:"risk"`
	Recommendation string             `json:"recommendation"`
	Result         *Result            `json:"-"`
}

// BatchFailure 失败组合及原因
type BatchFailure struct {
	Combination `json:"combination"`
	Error       string `json:"error"`
}

// DefaultMaxCombinations 单次批量评估的默认组合数上限
const DefaultMaxCombinations = 500

// BatchRequest 批量评估请求：符号 × 策略/参数档 的笛卡尔组合
type BatchRequest struct {
	Symbols         []string  `json:"symbols"`
	Strategies      []string  `json:"strategies"`                 // "strategy/profile" 形式；空则取注册表全部
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	InitialCash     float64   `json:"initial_cash"`
	Concurrency     int       `json:"concurrency,omitempty"`      // <=0 时取 CPU 数
	MaxCombinations int       `json:"max_combinations,omitempty"` // <=0 时取排名器配置的上限
}

// BatchResult 批量评估结果
type BatchResult struct {
	Ranked    []RankedResult `json:"ranked"`
	Failures  []BatchFailure `json:"failures,omitempty"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Canceled  bool           `json:"canceled"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// ProgressFunc 批量进度回调：已完成数 / 总数 / 当前组合
type ProgressFunc func(done, total int, combo Combination)

// RecommendThresholds 推荐评级阈值
type RecommendThresholds struct {
	StrongSharpe float64 // 强烈推荐的最低夏普
	StrongReturn float64 // 强烈推荐的最低收益率 (%)
	GoodSharpe   float64
	GoodReturn   float64
	MaxDrawdown  float64 // 超过则降级为谨慎
}

// DefaultThresholds 默认推荐阈值
func DefaultThresholds() RecommendThresholds {
	return RecommendThresholds{
		StrongSharpe: 1.5,
		StrongReturn: 20,
		GoodSharpe:   0.8,
		GoodReturn:   8,
		MaxDrawdown:  25,
	}
}

// Ranker 策略排名器：并发跑多组合回测并按风险调整后收益排序
type Ranker struct {
	engine     *Engine
	thresholds RecommendThresholds
	progress   ProgressFunc
	maxCombos  int
}

// NewRanker 创建排名器
func NewRanker(engine *Engine) *Ranker {
	return &Ranker{
		engine:     engine,
		thresholds: DefaultThresholds(),
		maxCombos:  DefaultMaxCombinations,
	}
}

// SetMaxCombinations 覆盖单次批量评估的组合数上限
func (r *Ranker) SetMaxCombinations(limit int) {
	if limit > 0 {
		r.maxCombos = limit
	}
}

// MaxCombinations 返回当前组合数上限
func (r *Ranker) MaxCombinations() int {
	return r.maxCombos
}

// SetThresholds 覆盖推荐阈值
func (r *Ranker) SetThresholds(t RecommendThresholds) {
	r.thresholds = t
}

// OnProgress 注册进度回调；回调在结果收集 goroutine 中串行触发
func (r *Ranker) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// RunBatch 并发执行所有组合并排序
// 上下文取消后不再派发新组合，已完成的结果照常返回
func (r *Ranker) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	combos := r.expandCombinations(req)
	if len(combos) == 0 {
		return &BatchResult{}, nil
	}

	limit := req.MaxCombinations
	if limit <= 0 {
		limit = r.maxCombos
	}
	if len(combos) > limit {
		logger.Warn("⚠️ 组合数 %d 超过上限 %d，仅评估前 %d 个", len(combos), limit, limit)
		combos = combos[:limit]
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency > len(combos) {
		concurrency = len(combos)
	}

	logger.Info("🚀 开始批量回测: %d 个组合, 并发 %d", len(combos), concurrency)
	started := time.Now()

	type outcome struct {
		combo  Combination
		result *Result
		err    error
	}

	jobs := make(chan Combination)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for combo := range jobs {
				res, err := r.engine.Run(ctx, Request{
					Symbol:      combo.Symbol,
					Strategy:    combo.Strategy,
					Profile:     combo.Profile,
					Start:       req.Start,
					End:         req.End,
					InitialCash: req.InitialCash,
				})
				outcomes <- outcome{combo: combo, result: res, err: err}
			}
		}()
	}

	canceled := false
	go func() {
		defer close(jobs)
		for _, combo := range combos {
			select {
			case <-ctx.Done():
				canceled = true
				return
			case jobs <- combo:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	batch := &BatchResult{Total: len(combos)}
	done := 0
	for o := range outcomes {
		done++
		if o.err != nil {
			// 单个组合失败不影响其余组合
			logger.Warn("⚠️ 组合回测失败: %s %s/%s: %v", o.combo.Symbol, o.combo.Strategy, o.combo.Profile, o.err)
			batch.Failures = append(batch.Failures, BatchFailure{Combination: o.combo, Error: o.err.Error()})
		} else {
			batch.Ranked = append(batch.Ranked, RankedResult{
				Combination:    o.combo,
				Summary:        o.result.Summary,
				Risk:           o.result.Risk,
				Recommendation: r.recommend(o.result.Summary),
				Result:         o.result,
			})
			batch.Completed++
		}
		if r.progress != nil {
			r.progress(done, len(combos), o.combo)
		}
	}

	sortRanked(batch.Ranked)
	for i := range batch.Ranked {
		batch.Ranked[i].Rank = i + 1
	}

	batch.Canceled = canceled || ctx.Err() != nil
	batch.Elapsed = time.Since(started)

	logger.Info("✅ 批量回测完成: %d/%d 成功, 耗时 %v", batch.Completed, batch.Total, batch.Elapsed.Round(time.Millisecond))
	return batch, ctx.Err()
}

// expandCombinations 展开 符号 × 策略 笛卡尔积
func (r *Ranker) expandCombinations(req BatchRequest) []Combination {
	keys := req.Strategies
	if len(keys) == 0 {
		for _, p := range r.engine.Profiles().List() {
			keys = append(keys, p.Key())
		}
	}

	combos := make([]Combination, 0, len(req.Symbols)*len(keys))
	for _, symbol := range req.Symbols {
		for _, key := range keys {
			strategyName, profileName := splitKey(key)
			combos = append(combos, Combination{Symbol: symbol, Strategy: strategyName, Profile: profileName})
		}
	}
	return combos
}

// splitKey 拆分 "strategy/profile" 键；缺少斜杠时整体视为策略名
func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// sortRanked 按夏普降序，平手按总收益降序；排序与提交顺序无关
func sortRanked(ranked []RankedResult) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Summary.SharpeRatio != ranked[j].Summary.SharpeRatio {
			return ranked[i].Summary.SharpeRatio > ranked[j].Summary.SharpeRatio
		}
		return ranked[i].Summary.TotalReturnPct > ranked[j].Summary.TotalReturnPct
	})
}

// recommend 根据绩效给出文字评级
func (r *Ranker) recommend(s PerformanceSummary) string {
	t := r.thresholds
	switch {
	case s.MaxDrawdownPct > t.MaxDrawdown:
		return "⚠️ 谨慎：回撤过大"
	case s.SharpeRatio >= t.StrongSharpe && s.TotalReturnPct >= t.StrongReturn:
		return "🌟 强烈推荐"
	case s.SharpeRatio >= t.GoodSharpe && s.TotalReturnPct >= t.GoodReturn:
		return "✅ 推荐"
	case s.TotalReturnPct > 0:
		return "➖ 一般"
	default:
		return "❌ 不推荐"
	}
}
