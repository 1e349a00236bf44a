package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// GenerateReport 生成 Markdown 回测报告，返回文件路径
func GenerateReport(result *Result, reportDir string) (string, error) {
	if reportDir == "" {
		reportDir = filepath.Join("reports")
	}
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%s_%s.md", result.Symbol, result.Strategy, result.Profile, timestamp)
	reportPath := filepath.Join(reportDir, filename)

	content, err := renderReportTemplate(prepareReportData(result))
	if err != nil {
		return "", fmt.Errorf("渲染报告模板失败: %w", err)
	}

	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	return reportPath, nil
}

// ReportData 报告模板数据
type ReportData struct {
	Strategy       string
	Profile        string
	Symbol         string
	GeneratedAt    string
	StartDate      string
	EndDate        string
	Duration       string
	InitialCash    string
	FinalValue     string

	TotalReturn     string
	BenchmarkReturn string
	Alpha           string

	MaxDrawdown string
	Volatility  string
	RiskScore   string

	SharpeRatio string

	TotalTrades          string
	WinRate              string
	AvgTradeReturn       string
	ProfitFactor         string
	AvgWin               string
	AvgLoss              string
	LargestWin           string
	LargestLoss          string
	MaxConsecutiveWins   string
	MaxConsecutiveLosses string

	Trades []TradeRow

	VaR95  string
	VaR99  string
	CVaR95 string
	CVaR99 string

	Diagnostics []string
	Conclusion  string
}

// TradeRow 交易明细行
type TradeRow struct {
	EntryDate  string
	ExitDate   string
	EntryPrice string
	ExitPrice  string
	Shares     string
	PnL        string
	PnLPct     string
	ExitReason string
	Status     string
}

// prepareReportData 准备报告数据
func prepareReportData(result *Result) ReportData {
	s := result.Summary

	duration := result.End.Sub(result.Start)
	durationStr := fmt.Sprintf("%d 天", int(duration.Hours()/24))

	// 交易明细（最多前20笔）
	rows := make([]TradeRow, 0, 20)
	for _, trade := range result.Trades {
		if len(rows) >= 20 {
			break
		}
		exitDate := "-"
		if !trade.ExitDate.IsZero() {
			exitDate = trade.ExitDate.Format("2006-01-02")
		}
		rows = append(rows, TradeRow{
			EntryDate:  trade.EntryDate.Format("2006-01-02"),
			ExitDate:   exitDate,
			EntryPrice: fmt.Sprintf("%.2f", trade.EntryPrice),
			ExitPrice:  fmt.Sprintf("%.2f", trade.ExitPrice),
			Shares:     fmt.Sprintf("%.4f", trade.Shares),
			PnL:        fmt.Sprintf("%.2f", trade.PnLDollars),
			PnLPct:     fmt.Sprintf("%.2f%%", trade.PnLPct),
			ExitReason: trade.ExitReason,
			Status:     trade.Status,
		})
	}

	return ReportData{
		Strategy:    result.Strategy,
		Profile:     result.Profile,
		Symbol:      result.Symbol,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		StartDate:   result.Start.Format("2006-01-02"),
		EndDate:     result.End.Format("2006-01-02"),
		Duration:    durationStr,
		InitialCash: fmt.Sprintf("%.2f", result.InitialCash),
		FinalValue:  fmt.Sprintf("%.2f", s.FinalValue),

		TotalReturn:     fmt.Sprintf("%.2f%%", s.TotalReturnPct),
		BenchmarkReturn: fmt.Sprintf("%.2f%%", s.BenchmarkReturnPct),
		Alpha:           fmt.Sprintf("%.2f%%", s.AlphaPct),

		MaxDrawdown: fmt.Sprintf("%.2f%%", s.MaxDrawdownPct),
		Volatility:  fmt.Sprintf("%.2f%%", s.VolatilityPct),
		RiskScore:   fmt.Sprintf("%.0f / 100", result.Risk.RiskScore),

		SharpeRatio: fmt.Sprintf("%.2f", s.SharpeRatio),

		TotalTrades:          fmt.Sprintf("%d", s.TotalTrades),
		WinRate:              fmt.Sprintf("%.2f%%", s.WinRatePct),
		AvgTradeReturn:       fmt.Sprintf("%.2f%%", s.AvgTradeReturnPct),
		ProfitFactor:         fmt.Sprintf("%.2f", s.ProfitFactor),
		AvgWin:               fmt.Sprintf("%.2f", s.AvgWin),
		AvgLoss:              fmt.Sprintf("%.2f", s.AvgLoss),
		LargestWin:           fmt.Sprintf("%.2f", s.LargestWin),
		LargestLoss:          fmt.Sprintf("%.2f", s.LargestLoss),
		MaxConsecutiveWins:   fmt.Sprintf("%d", s.MaxConsecutiveWins),
		MaxConsecutiveLosses: fmt.Sprintf("%d", s.MaxConsecutiveLosses),

		Trades: rows,

		VaR95:  fmt.Sprintf("%.2f%%", result.Risk.VaR95),
		VaR99:  fmt.Sprintf("%.2f%%", result.Risk.VaR99),
		CVaR95: fmt.Sprintf("%.2f%%", result.Risk.CVaR95),
		CVaR99: fmt.Sprintf("%.2f%%", result.Risk.CVaR99),

		Diagnostics: result.Diagnostics,
		Conclusion:  generateConclusion(result),
	}
}

// generateConclusion 生成结论
func generateConclusion(result *Result) string {
	s := result.Summary
	var conclusions []string

	// 收益评估
	if s.TotalReturnPct > 50 {
		conclusions = append(conclusions, "✅ 策略表现优秀，总收益率超过 50%")
	} else if s.TotalReturnPct > 20 {
		conclusions = append(conclusions, "✅ 策略表现良好，总收益率超过 20%")
	} else if s.TotalReturnPct > 0 {
		conclusions = append(conclusions, "⚠️ 策略盈利，但收益率较低")
	} else {
		conclusions = append(conclusions, "❌ 策略亏损，需要优化参数或更换策略")
	}

	// 相对基准
	if s.AlphaPct > 0 {
		conclusions = append(conclusions, fmt.Sprintf("✅ 跑赢买入持有基准 %.2f%%", s.AlphaPct))
	} else if s.BenchmarkReturnPct != 0 {
		conclusions = append(conclusions, fmt.Sprintf("⚠️ 跑输买入持有基准 %.2f%%", -s.AlphaPct))
	}

	// 风险评估
	if s.MaxDrawdownPct < 10 {
		conclusions = append(conclusions, "✅ 风险控制良好，最大回撤小于 10%")
	} else if s.MaxDrawdownPct < 20 {
		conclusions = append(conclusions, "⚠️ 风险适中，最大回撤在 10-20% 之间")
	} else {
		conclusions = append(conclusions, "❌ 风险较高，最大回撤超过 20%")
	}

	// 夏普比率评估
	if s.SharpeRatio > 2 {
		conclusions = append(conclusions, "✅ 风险调整收益优秀，夏普比率 > 2")
	} else if s.SharpeRatio > 1 {
		conclusions = append(conclusions, "✅ 风险调整收益良好，夏普比率 > 1")
	} else if s.SharpeRatio > 0 {
		conclusions = append(conclusions, "⚠️ 风险调整收益一般，夏普比率 < 1")
	} else {
		conclusions = append(conclusions, "❌ 风险调整收益差，夏普比率为负")
	}

	// 胜率评估
	if s.TotalTrades == 0 {
		conclusions = append(conclusions, "➖ 无已平仓交易，无法评估胜率")
	} else if s.WinRatePct > 60 {
		conclusions = append(conclusions, "✅ 胜率高，超过 60%")
	} else if s.WinRatePct > 50 {
		conclusions = append(conclusions, "✅ 胜率良好，超过 50%")
	} else {
		conclusions = append(conclusions, "⚠️ 胜率较低，需要优化策略")
	}

	return strings.Join(conclusions, "\n\n")
}

// renderReportTemplate 渲染报告模板
func renderReportTemplate(data ReportData) (string, error) {
	tmpl := `# {{.Strategy}}/{{.Profile}} 策略回测报告

生成时间: {{.GeneratedAt}}

## 执行摘要

- **标的**: {{.Symbol}}
- **回测期间**: {{.StartDate}} 至 {{.EndDate}} ({{.Duration}})
- **初始资金**: ${{.InitialCash}}
- **最终权益**: ${{.FinalValue}}
- **总收益率**: {{.TotalReturn}}
- **基准收益率**: {{.BenchmarkReturn}}
- **超额收益**: {{.Alpha}}
- **最大回撤**: {{.MaxDrawdown}}
- **夏普比率**: {{.SharpeRatio}}

## 风险指标

| 指标 | 数值 |
|------|------|
| 最大回撤 | {{.MaxDrawdown}} |
| 波动率（年化） | {{.Volatility}} |
| 风险评分 | {{.RiskScore}} |

## 交易指标

| 指标 | 数值 |
|------|------|
| 总交易次数（已平仓） | {{.TotalTrades}} |
| 胜率 | {{.WinRate}} |
| 平均单笔收益率 | {{.AvgTradeReturn}} |
| 利润因子 | {{.ProfitFactor}} |
| 平均盈利 | ${{.AvgWin}} |
| 平均亏损 | ${{.AvgLoss}} |
| 最大单笔盈利 | ${{.LargestWin}} |
| 最大单笔亏损 | ${{.LargestLoss}} |
| 最大连续盈利 | {{.MaxConsecutiveWins}} 笔 |
| 最大连续亏损 | {{.MaxConsecutiveLosses}} 笔 |

## 交易明细（前20笔）

| 入场 | 离场 | 入场价 | 离场价 | 数量 | 盈亏 | 收益率 | 离场原因 | 状态 |
|------|------|--------|--------|------|------|--------|----------|------|
{{range .Trades}}| {{.EntryDate}} | {{.ExitDate}} | {{.EntryPrice}} | {{.ExitPrice}} | {{.Shares}} | {{.PnL}} | {{.PnLPct}} | {{.ExitReason}} | {{.Status}} |
{{end}}

## 高级风险指标

| 指标 | 数值 | 说明 |
|------|------|------|
| VaR (95%) | {{.VaR95}} | 95% 置信度下的最大损失 |
| VaR (99%) | {{.VaR99}} | 99% 置信度下的最大损失 |
| CVaR (95%) | {{.CVaR95}} | 超过 VaR 的平均损失 |
| CVaR (99%) | {{.CVaR99}} | 超过 VaR 的平均损失 |
{{if .Diagnostics}}

## 诊断信息

{{range .Diagnostics}}- {{.}}
{{end}}{{end}}

## 结论

{{.Conclusion}}

---

*本报告由 StratMesh 回测系统自动生成*
`

	t, err := template.New("report").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// SaveEquityCurveCSV 保存权益曲线与基准曲线到 CSV
func SaveEquityCurveCSV(result *Result, reportDir string) (string, error) {
	if reportDir == "" {
		reportDir = filepath.Join("reports")
	}
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%s_%s_equity.csv", result.Symbol, result.Strategy, result.Profile, timestamp)
	csvPath := filepath.Join(reportDir, filename)

	file, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("创建 CSV 文件失败: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"date", "equity", "benchmark"}); err != nil {
		return "", err
	}
	for i, point := range result.Equity {
		benchmark := ""
		if i < len(result.Benchmark) {
			benchmark = strconv.FormatFloat(result.Benchmark[i].Value, 'f', 2, 64)
		}
		record := []string{
			point.Date.Format("2006-01-02"),
			strconv.FormatFloat(point.Value, 'f', 2, 64),
			benchmark,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()

	return csvPath, w.Error()
}
