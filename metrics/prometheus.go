package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 回测指标
	backtestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratmesh_backtest_total",
			Help: "Total number of backtest runs",
		},
		[]string{"symbol", "strategy", "profile", "status"},
	)

	backtestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratmesh_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		},
		[]string{"symbol", "strategy"},
	)

	backtestBars = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratmesh_backtest_bars",
			Help:    "Number of bars processed per backtest",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"symbol"},
	)

	// 批量回测指标
	batchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratmesh_batch_total",
			Help: "Total number of batch evaluations",
		},
	)

	batchCombinations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratmesh_batch_combinations_total",
			Help: "Total number of batch combinations by outcome",
		},
		[]string{"status"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratmesh_batch_duration_seconds",
			Help:    "Batch evaluation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
		},
	)

	// 行情数据指标
	dataFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratmesh_data_fetch_total",
			Help: "Total number of market data fetches",
		},
		[]string{"source", "symbol", "status"},
	)

	dataFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratmesh_data_fetch_duration_seconds",
			Help:    "Market data fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		},
		[]string{"source"},
	)

	cacheHitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratmesh_cache_total",
			Help: "Bar cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// Collector 回测系统指标采集器
type Collector struct{}

var (
	collector *Collector
	once      sync.Once
)

// GetCollector 获取全局指标采集器
func GetCollector() *Collector {
	once.Do(func() {
		collector = &Collector{}
	})
	return collector
}

// RecordBacktest 记录一次回测
func (c *Collector) RecordBacktest(symbol, strategy, profile, status string, bars int, duration time.Duration) {
	backtestTotal.WithLabelValues(symbol, strategy, profile, status).Inc()
	backtestDuration.WithLabelValues(symbol, strategy).Observe(duration.Seconds())
	if bars > 0 {
		backtestBars.WithLabelValues(symbol).Observe(float64(bars))
	}
}

// RecordBatch 记录一次批量评估
func (c *Collector) RecordBatch(completed, failed int, duration time.Duration) {
	batchTotal.Inc()
	batchCombinations.WithLabelValues("success").Add(float64(completed))
	batchCombinations.WithLabelValues("failure").Add(float64(failed))
	batchDuration.Observe(duration.Seconds())
}

// RecordDataFetch 记录一次行情拉取
func (c *Collector) RecordDataFetch(source, symbol, status string, duration time.Duration) {
	dataFetchTotal.WithLabelValues(source, symbol, status).Inc()
	dataFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit() {
	cacheHitTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	cacheHitTotal.WithLabelValues("miss").Inc()
}
