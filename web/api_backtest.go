package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stratmesh/backtest"
	"stratmesh/logger"
	"stratmesh/metrics"
	"stratmesh/storage"
)

// BacktestResponse 回测响应
type BacktestResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Result     *backtest.Result `json:"result,omitempty"`
	ReportPath string           `json:"report_path,omitempty"`
}

// runBacktest 运行单次回测
func (s *Server) runBacktest(c *gin.Context) {
	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: fmt.Sprintf("请求参数错误: %v", err),
		})
		return
	}

	started := time.Now()
	result, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		status, message := classifyError(err)
		metrics.GetCollector().RecordBacktest(req.Symbol, req.Strategy, req.Profile, "failure", 0, time.Since(started))
		c.JSON(status, BacktestResponse{Success: false, Message: message})
		return
	}
	metrics.GetCollector().RecordBacktest(req.Symbol, req.Strategy, req.Profile, "success", result.Bars, time.Since(started))

	reportPath, err := backtest.GenerateReport(result, s.reportDir)
	if err != nil {
		logger.Warn("⚠️ 报告生成失败: %v", err)
	}

	s.archiveResult(result)

	c.JSON(http.StatusOK, BacktestResponse{
		Success:    true,
		Result:     result,
		ReportPath: reportPath,
	})
}

// BatchResponse 批量回测响应
type BatchResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Batch   *backtest.BatchResult `json:"batch,omitempty"`
}

// runBatch 运行批量回测并返回排名
func (s *Server) runBatch(c *gin.Context) {
	var req backtest.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, BatchResponse{
			Success: false,
			Message: fmt.Sprintf("请求参数错误: %v", err),
		})
		return
	}
	if len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, BatchResponse{
			Success: false,
			Message: "symbols 不能为空",
		})
		return
	}

	batch, err := s.ranker.RunBatch(c.Request.Context(), req)
	if err != nil && batch == nil {
		c.JSON(http.StatusInternalServerError, BatchResponse{Success: false, Message: err.Error()})
		return
	}
	metrics.GetCollector().RecordBatch(batch.Completed, len(batch.Failures), batch.Elapsed)

	c.JSON(http.StatusOK, BatchResponse{Success: true, Batch: batch})
}

// StrategyInfo 策略参数档信息
type StrategyInfo struct {
	Strategy string `json:"strategy"`
	Profile  string `json:"profile"`
	Key      string `json:"key"`
}

// listStrategies 列出已注册的策略参数档
func (s *Server) listStrategies(c *gin.Context) {
	profiles := s.profiles.List()
	infos := make([]StrategyInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, StrategyInfo{Strategy: p.Strategy, Profile: p.Name, Key: p.Key()})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": infos, "profiles": profiles})
}

// listResults 查询历史回测结果归档
func (s *Server) listResults(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "结果归档未启用"})
		return
	}

	symbol := c.Query("symbol")
	records, err := s.store.QueryResults(symbol, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": records})
}

// archiveResult 归档回测结果，失败仅记日志
func (s *Server) archiveResult(result *backtest.Result) {
	if s.store == nil {
		return
	}
	record := &storage.ResultRecord{
		Symbol:         result.Symbol,
		Strategy:       result.Strategy,
		Profile:        result.Profile,
		StartDate:      result.Start,
		EndDate:        result.End,
		InitialCash:    result.InitialCash,
		TotalReturnPct: result.Summary.TotalReturnPct,
		SharpeRatio:    result.Summary.SharpeRatio,
		MaxDrawdownPct: result.Summary.MaxDrawdownPct,
		WinRatePct:     result.Summary.WinRatePct,
		TotalTrades:    result.Summary.TotalTrades,
	}
	if err := s.store.SaveResult(record, result.Summary); err != nil {
		logger.Warn("⚠️ 结果归档失败: %v", err)
	}
}

// classifyError 将回测错误映射为 HTTP 状态码
func classifyError(err error) (int, string) {
	var cfgErr *backtest.ConfigurationError
	var dataErr *backtest.InsufficientDataError

	switch {
	case errors.Is(err, backtest.ErrInvalidRange):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &dataErr):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
