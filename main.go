package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"stratmesh/backtest"
	"stratmesh/config"
	"stratmesh/datafeed"
	"stratmesh/logger"
	"stratmesh/market"
	"stratmesh/storage"
	"stratmesh/web"
)

// Version 版本号
var Version = "1.2.0"

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "", "命令行模式：回测标的，如 BTCUSDT")
	strategyKey := flag.String("strategy", "macd/canonical", "命令行模式：strategy/profile")
	startStr := flag.String("start", "", "命令行模式：开始日期 2006-01-02")
	endStr := flag.String("end", "", "命令行模式：结束日期 2006-01-02")
	showVersion := flag.Bool("version", false, "显示版本号")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stratmesh v%s\n", Version)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// 没有配置文件时用默认配置启动
		logger.Warn("⚠️ 加载配置失败 (%v)，使用默认配置", err)
		cfg = config.DefaultConfig()
	}

	logger.SetLevel(logger.ParseLogLevel(cfg.App.LogLevel))

	logger.Info("🚀 stratmesh v%s 启动", Version)

	registry, err := cfg.BuildRegistry()
	if err != nil {
		logger.Fatal("❌ 构建策略注册表失败: %v", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Data.CachePath)
	if err != nil {
		logger.Fatal("❌ 初始化存储失败: %v", err)
	}
	defer store.Close()

	provider := buildProvider(cfg, store)
	engine := backtest.NewEngine(registry, provider)
	ranker := backtest.NewRanker(engine)
	ranker.SetMaxCombinations(cfg.Backtest.MaxCombinations)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 命令行模式：直接跑一次回测后退出
	if *symbol != "" {
		runOnce(ctx, engine, cfg, *symbol, *strategyKey, *startStr, *endStr)
		return
	}

	server := web.NewServer(engine, ranker, registry, store, cfg.Backtest.ReportDir)

	// 配置热更新：重建注册表并替换到引擎与服务
	var reloadMu sync.Mutex
	watcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		newRegistry, err := newCfg.BuildRegistry()
		if err != nil {
			logger.Error("❌ 热更新注册表失败: %v", err)
			return
		}
		engine.SetProfiles(newRegistry)
		server.SetRegistry(newRegistry)
		logger.SetLevel(logger.ParseLogLevel(newCfg.App.LogLevel))
	})
	if err != nil {
		logger.Warn("⚠️ 创建配置监控器失败: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 配置热更新未启用: %v", err)
	} else {
		defer watcher.Stop()
	}

	if err := server.Run(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		logger.Fatal("❌ Web 服务退出: %v", err)
	}
	logger.Info("👋 stratmesh 已退出")
}

// buildProvider 按配置组装数据源
func buildProvider(cfg *config.Config, store *storage.SQLiteStorage) market.Provider {
	if cfg.Data.Source == "sqlite" {
		return datafeed.NewSQLiteProvider(store, cfg.Data.Interval)
	}

	binanceProvider := datafeed.NewBinanceProvider(datafeed.BinanceOptions{
		Interval:   cfg.Data.Interval,
		BatchSize:  cfg.Data.BatchSize,
		RatePerSec: cfg.Data.RatePerSec,
		UseTestnet: cfg.Data.UseTestnet,
	})
	return datafeed.NewCachedProvider(binanceProvider, store, cfg.Data.Interval)
}

// runOnce 命令行模式跑单次回测并输出报告路径
func runOnce(ctx context.Context, engine *backtest.Engine, cfg *config.Config, symbol, strategyKey, startStr, endStr string) {
	end := time.Now()
	start := end.AddDate(-1, 0, 0)

	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			logger.Fatal("❌ 非法开始日期: %v", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			logger.Fatal("❌ 非法结束日期: %v", err)
		}
	}

	parts := strings.SplitN(strategyKey, "/", 2)
	req := backtest.Request{
		Symbol:      symbol,
		Strategy:    parts[0],
		Start:       start,
		End:         end,
		InitialCash: cfg.Backtest.InitialCash,
	}
	if len(parts) == 2 {
		req.Profile = parts[1]
	}

	result, err := engine.Run(ctx, req)
	if err != nil {
		logger.Fatal("❌ 回测失败: %v", err)
	}

	reportPath, err := backtest.GenerateReport(result, cfg.Backtest.ReportDir)
	if err != nil {
		logger.Error("❌ 报告生成失败: %v", err)
	} else {
		logger.Info("📄 报告已生成: %s", reportPath)
	}
	if csvPath, err := backtest.SaveEquityCurveCSV(result, cfg.Backtest.ReportDir); err == nil {
		logger.Info("📈 权益曲线已导出: %s", csvPath)
	}

	fmt.Fprintf(os.Stdout, "总收益 %.2f%%  夏普 %.2f  最大回撤 %.2f%%  交易 %d 笔  胜率 %.2f%%\n",
		result.Summary.TotalReturnPct, result.Summary.SharpeRatio,
		result.Summary.MaxDrawdownPct, result.Summary.TotalTrades, result.Summary.WinRatePct)
}
