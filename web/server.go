package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stratmesh/backtest"
	"stratmesh/logger"
	"stratmesh/storage"
	"stratmesh/strategy"
)

// Server 回测 Web 服务
type Server struct {
	engine   *backtest.Engine
	ranker   *backtest.Ranker
	profiles *strategy.Registry
	store    *storage.SQLiteStorage

	reportDir string
	httpSrv   *http.Server
}

// NewServer 创建 Web 服务
func NewServer(engine *backtest.Engine, ranker *backtest.Ranker, profiles *strategy.Registry, store *storage.SQLiteStorage, reportDir string) *Server {
	return &Server{
		engine:    engine,
		ranker:    ranker,
		profiles:  profiles,
		store:     store,
		reportDir: reportDir,
	}
}

// SetRegistry 热更新后替换策略注册表
func (s *Server) SetRegistry(profiles *strategy.Registry) {
	s.profiles = profiles
}

// Run 启动 HTTP 服务并阻塞，上下文取消后优雅退出
func (s *Server) Run(ctx context.Context, host string, port int) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s.setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", host, port)
	s.httpSrv = &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🌐 Web 服务已启动: http://%s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("🛑 Web 服务正在关闭...")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// setupRoutes 注册路由
func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":   "stratmesh",
			"status": "ok",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/backtest", s.runBacktest)
		api.POST("/backtest/batch", s.runBatch)
		api.GET("/backtest/batch/ws", s.runBatchWS)
		api.GET("/strategies", s.listStrategies)
		api.GET("/results", s.listResults)
	}
}

// requestLogger 请求日志中间件
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%v)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started).Round(time.Microsecond))
	}
}
