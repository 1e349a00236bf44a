package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stratmesh/backtest"
	"stratmesh/market"
	"stratmesh/strategy"
)

type fakeProvider struct {
	bars []market.Bar
}

func (p *fakeProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	if p.bars == nil {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return p.bars, nil
}

func trendingBars(n int) []market.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	price := 100.0
	for i := range bars {
		if i%6 == 2 {
			price *= 0.98
		} else {
			price *= 1.01
		}
		bars[i] = market.Bar{Date: base.AddDate(0, 0, i), Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 1000}
	}
	return bars
}

func newTestRouter(bars []market.Bar, reportDir string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	registry := strategy.DefaultRegistry()
	engine := backtest.NewEngine(registry, &fakeProvider{bars: bars})
	ranker := backtest.NewRanker(engine)
	server := NewServer(engine, ranker, registry, nil, reportDir)

	r := gin.New()
	server.setupRoutes(r)
	return r
}

// TestListStrategies 测试策略列表接口
func TestListStrategies(t *testing.T) {
	router := newTestRouter(trendingBars(100), t.TempDir())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/strategies", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码应为 200: got %d", w.Code)
	}

	var body struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(body.Strategies) < 4 {
		t.Errorf("至少应返回 4 个内置档位: got %d", len(body.Strategies))
	}
}

// TestRunBacktestOK 测试单次回测接口
func TestRunBacktestOK(t *testing.T) {
	bars := trendingBars(200)
	router := newTestRouter(bars, t.TempDir())

	reqBody, _ := json.Marshal(backtest.Request{
		Symbol:      "TEST",
		Strategy:    "macd",
		Profile:     "canonical",
		Start:       bars[0].Date,
		End:         bars[len(bars)-1].Date,
		InitialCash: 10000,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码应为 200: got %d body=%s", w.Code, w.Body.String())
	}

	var resp BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if !resp.Success || resp.Result == nil {
		t.Fatalf("回测应成功: %+v", resp)
	}
	if resp.Result.Bars != 200 {
		t.Errorf("K线数不符: got %d", resp.Result.Bars)
	}
	if resp.ReportPath == "" {
		t.Error("应生成报告文件")
	}
}

// TestRunBacktestInvalidRange 测试非法时间区间返回 400
func TestRunBacktestInvalidRange(t *testing.T) {
	router := newTestRouter(trendingBars(100), t.TempDir())

	reqBody, _ := json.Marshal(backtest.Request{
		Symbol:   "TEST",
		Strategy: "macd",
		Profile:  "canonical",
		Start:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("非法区间应返回 400: got %d", w.Code)
	}
}

// TestRunBacktestInsufficientData 测试数据不足返回 422
func TestRunBacktestInsufficientData(t *testing.T) {
	bars := trendingBars(10)
	router := newTestRouter(bars, t.TempDir())

	reqBody, _ := json.Marshal(backtest.Request{
		Symbol:      "TEST",
		Strategy:    "macd",
		Profile:     "canonical",
		Start:       bars[0].Date,
		End:         bars[len(bars)-1].Date,
		InitialCash: 10000,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("数据不足应返回 422: got %d body=%s", w.Code, w.Body.String())
	}
}

// TestRunBatchEndpoint 测试批量回测接口
func TestRunBatchEndpoint(t *testing.T) {
	bars := trendingBars(150)
	router := newTestRouter(bars, t.TempDir())

	reqBody, _ := json.Marshal(backtest.BatchRequest{
		Symbols:     []string{"TEST"},
		Strategies:  []string{"macd/canonical", "macd/balanced"},
		Start:       bars[0].Date,
		End:         bars[len(bars)-1].Date,
		InitialCash: 10000,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/batch", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码应为 200: got %d body=%s", w.Code, w.Body.String())
	}

	var resp BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if !resp.Success || resp.Batch == nil {
		t.Fatalf("批量回测应成功: %+v", resp)
	}
	if resp.Batch.Total != 2 {
		t.Errorf("组合数应为 2: got %d", resp.Batch.Total)
	}
}

// TestRunBatchEmptySymbols 测试空标的列表返回 400
func TestRunBatchEmptySymbols(t *testing.T) {
	router := newTestRouter(trendingBars(100), t.TempDir())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/batch", bytes.NewReader([]byte(`{"symbols": []}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("空标的列表应返回 400: got %d", w.Code)
	}
}

// TestMetricsEndpoint 测试 Prometheus 指标暴露
func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(trendingBars(100), t.TempDir())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("/metrics 应返回 200: got %d", w.Code)
	}
}

// TestResultsWithoutStore 测试归档未启用时返回 503
func TestResultsWithoutStore(t *testing.T) {
	router := newTestRouter(trendingBars(100), t.TempDir())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("无存储时应返回 503: got %d", w.Code)
	}
}
