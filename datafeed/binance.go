package datafeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"stratmesh/logger"
	"stratmesh/market"
	"stratmesh/metrics"
)

// BinanceProvider 从 Binance 现货行情拉取K线
type BinanceProvider struct {
	client    *binance.Client
	interval  string
	batchSize int
	limiter   *rate.Limiter
}

// BinanceOptions Binance 数据源参数
type BinanceOptions struct {
	Interval   string  // K线周期，默认 1d
	BatchSize  int     // 单次请求上限，Binance 最大 1000
	RatePerSec float64 // 每秒请求数限制
	UseTestnet bool
}

// NewBinanceProvider 创建 Binance 数据源；公开行情接口无需密钥
func NewBinanceProvider(opts BinanceOptions) *BinanceProvider {
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	if opts.BatchSize <= 0 || opts.BatchSize > 1000 {
		opts.BatchSize = 1000
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}

	binance.UseTestnet = opts.UseTestnet
	return &BinanceProvider{
		client:    binance.NewClient("", ""),
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// Interval 返回数据源的K线周期
func (p *BinanceProvider) Interval() string {
	return p.interval
}

// GetBars 分批拉取 [start, end] 区间的K线
func (p *BinanceProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	started := time.Now()
	logger.Info("⬇️ 从 Binance 下载: %s %s (%s 至 %s)",
		symbol, p.interval, start.Format("2006-01-02"), end.Format("2006-01-02"))

	allBars := make([]market.Bar, 0)
	currentStart := start

	for currentStart.Before(end) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(p.interval).
			StartTime(currentStart.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(p.batchSize).
			Do(ctx)
		if err != nil {
			metrics.GetCollector().RecordDataFetch("binance", symbol, "error", time.Since(started))
			return nil, fmt.Errorf("获取K线失败: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, err
			}
			if bar.Date.After(end) {
				break
			}
			allBars = append(allBars, bar)
		}

		// 下一批从最后一根之后开始
		lastOpen := time.UnixMilli(klines[len(klines)-1].OpenTime)
		next := lastOpen.Add(time.Millisecond)
		if !next.After(currentStart) {
			break
		}
		currentStart = next

		if len(klines) < p.batchSize {
			break
		}
	}

	metrics.GetCollector().RecordDataFetch("binance", symbol, "success", time.Since(started))
	logger.Info("✅ 下载完成: %s 共 %d 根K线", symbol, len(allBars))
	return allBars, nil
}

// klineToBar 转换 Binance K线为内部K线
func klineToBar(k *binance.Kline) (market.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("解析开盘价失败: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("解析最高价失败: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("解析最低价失败: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("解析收盘价失败: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("解析成交量失败: %w", err)
	}

	return market.Bar{
		Date:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
