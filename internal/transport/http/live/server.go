package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quorum/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 提供只读的诊断 HTTP 服务（排名、账本、最近一轮融合结果、实盘订单）。
type Server struct {
	addr   string
	router *gin.Engine
}

// Pinger 由能够检查底层连接的存储实现，/healthz 据此报告存储状态。
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig 描述诊断 HTTP 服务依赖。
type ServerConfig struct {
	Addr    string
	Store   Repositories
	Cycles  CycleSource
	Weights WeightSource
}

// NewServer 构建诊断 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("diagnostics http server requires a store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	pinger, _ := cfg.Store.(Pinger)
	router.GET("/healthz", func(c *gin.Context) {
		if pinger != nil {
			if err := pinger.Ping(c.Request.Context()); err != nil {
				logger.Warnf("health check: store ping failed: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r := NewRouter(cfg.Store, cfg.Cycles, cfg.Weights)
	r.Register(router.Group("/api"))
	router.GET("/charts/leaderboard", r.handleLeaderboardChart)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the gin engine for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger 记录接口调用，便于追踪。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("diagnostics http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
