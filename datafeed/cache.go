package datafeed

import (
	"context"
	"fmt"
	"time"

	"stratmesh/logger"
	"stratmesh/market"
	"stratmesh/metrics"
	"stratmesh/storage"
)

// CachedProvider 带 SQLite 缓存的数据源：命中则直接返回，未命中回源并写缓存
type CachedProvider struct {
	source   market.Provider
	store    *storage.SQLiteStorage
	interval string
}

// NewCachedProvider 包装上游数据源
func NewCachedProvider(source market.Provider, store *storage.SQLiteStorage, interval string) *CachedProvider {
	return &CachedProvider{source: source, store: store, interval: interval}
}

// GetBars 优先读缓存
// 缓存判定按区间内K线数量估算是否完整，不完整则整段回源刷新
func (p *CachedProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	if cached, ok := p.loadCached(symbol, start, end); ok {
		metrics.GetCollector().RecordCacheHit()
		logger.Info("✅ 从缓存加载: %s %s (%d 根K线)", symbol, p.interval, len(cached))
		return cached, nil
	}
	metrics.GetCollector().RecordCacheMiss()

	bars, err := p.source.GetBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveBars(symbol, p.interval, bars); err != nil {
		logger.Warn("⚠️ 缓存保存失败: %v", err)
	} else {
		logger.Info("💾 已缓存: %s %s (%d 根K线)", symbol, p.interval, len(bars))
	}

	return bars, nil
}

// loadCached 读缓存并判断完整性
func (p *CachedProvider) loadCached(symbol string, start, end time.Time) ([]market.Bar, bool) {
	bars, err := p.store.LoadBars(symbol, p.interval, start, end)
	if err != nil {
		logger.Warn("⚠️ 缓存读取失败: %v", err)
		return nil, false
	}
	if len(bars) == 0 {
		return nil, false
	}

	expected := expectedBarCount(p.interval, start, end)
	// 交易日历有空洞，放宽到六成即视为完整
	if expected > 0 && float64(len(bars)) < float64(expected)*0.6 {
		return nil, false
	}
	return bars, true
}

// expectedBarCount 按周期估算区间内K线数量
func expectedBarCount(interval string, start, end time.Time) int {
	d, err := intervalDuration(interval)
	if err != nil || d <= 0 {
		return 0
	}
	return int(end.Sub(start) / d)
}

// intervalDuration 解析周期字符串为时长
func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("不支持的K线周期: %s", interval)
	}
}

// SQLiteProvider 只读缓存数据源，适合离线回测
type SQLiteProvider struct {
	store    *storage.SQLiteStorage
	interval string
}

// NewSQLiteProvider 创建只读缓存数据源
func NewSQLiteProvider(store *storage.SQLiteStorage, interval string) *SQLiteProvider {
	return &SQLiteProvider{store: store, interval: interval}
}

// GetBars 直接读缓存，缓存为空视为错误
func (p *SQLiteProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	bars, err := p.store.LoadBars(symbol, p.interval, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("缓存中没有 %s %s 的K线数据", symbol, p.interval)
	}
	return bars, nil
}
