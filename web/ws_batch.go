package web

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stratmesh/backtest"
	"stratmesh/logger"
	"stratmesh/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressFrame 批量回测进度帧
type ProgressFrame struct {
	Type     string                `json:"type"` // progress 或 done 或 error
	Done     int                   `json:"done,omitempty"`
	Total    int                   `json:"total,omitempty"`
	Symbol   string                `json:"symbol,omitempty"`
	Strategy string                `json:"strategy,omitempty"`
	Profile  string                `json:"profile,omitempty"`
	Message  string                `json:"message,omitempty"`
	Batch    *backtest.BatchResult `json:"batch,omitempty"`
}

// runBatchWS 通过 WebSocket 运行批量回测并推送进度
// 客户端连接后先发送一条 BatchRequest JSON，随后收到逐组合进度帧与最终结果帧
func (s *Server) runBatchWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("❌ WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	var req backtest.BatchRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(ProgressFrame{Type: "error", Message: "请求参数错误: " + err.Error()})
		return
	}
	if len(req.Symbols) == 0 {
		conn.WriteJSON(ProgressFrame{Type: "error", Message: "symbols 不能为空"})
		return
	}

	// 进度回调在收集 goroutine 中触发，写入仍需互斥保护
	var writeMu sync.Mutex
	ranker := backtest.NewRanker(s.engine)
	ranker.SetMaxCombinations(s.ranker.MaxCombinations())
	ranker.OnProgress(func(done, total int, combo backtest.Combination) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.WriteJSON(ProgressFrame{
			Type:     "progress",
			Done:     done,
			Total:    total,
			Symbol:   combo.Symbol,
			Strategy: combo.Strategy,
			Profile:  combo.Profile,
		})
	})

	batch, err := ranker.RunBatch(c.Request.Context(), req)
	writeMu.Lock()
	defer writeMu.Unlock()
	if err != nil && batch == nil {
		conn.WriteJSON(ProgressFrame{Type: "error", Message: err.Error()})
		return
	}
	metrics.GetCollector().RecordBatch(batch.Completed, len(batch.Failures), batch.Elapsed)

	conn.WriteJSON(ProgressFrame{Type: "done", Batch: batch})
}
