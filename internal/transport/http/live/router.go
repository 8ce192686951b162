package livehttp

import (
	"errors"
	"net/http"
	"strconv"

	"quorum/internal/analysis/visual"
	"quorum/internal/logger"
	"quorum/internal/orchestrator"
	"quorum/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Repositories 是路由需要的只读存储视图。
type Repositories interface {
	Ledgers() store.LedgerRepository
	Points() store.PointsRepository
	Ranks() store.RankRepository
	Orders() store.OrderRepository
	Snapshots() store.SnapshotRepository
	TimeDelta() store.TimeDeltaRepository
}

// CycleSource 暴露最近一轮的诊断信息。
type CycleSource interface {
	LastCycle() orchestrator.CycleReport
	Epochs() int64
}

// WeightSource 暴露当前时段生效的策略权重。
type WeightSource interface {
	Snapshot() map[string]decimal.Decimal
}

// Router 暴露排名、账本与实盘相关的查询接口。
type Router struct {
	store   Repositories
	cycles  CycleSource
	weights WeightSource
}

func NewRouter(st Repositories, cycles CycleSource, weights WeightSource) *Router {
	return &Router{store: st, cycles: cycles, weights: weights}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/ranks", r.handleRanks)
	group.GET("/ledgers", r.handleLedgers)
	group.GET("/ledgers/:id", r.handleLedger)
	group.GET("/cycle", r.handleCycle)
	group.GET("/live/orders", r.handleOrders)
	group.GET("/live/snapshots", r.handleSnapshots)
}

func (r *Router) handleRanks(c *gin.Context) {
	ranks, err := r.store.Ranks().List(c.Request.Context())
	if err != nil {
		internalError(c, "list ranks", err)
		return
	}
	delta, err := r.store.TimeDelta().Get(c.Request.Context())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(c, "read time delta", err)
		return
	}
	resp := gin.H{"ranks": ranks, "time_delta": delta}
	if r.weights != nil {
		resp["weights"] = r.weights.Snapshot()
	}
	if r.cycles != nil {
		resp["epochs"] = r.cycles.Epochs()
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleLedgers(c *gin.Context) {
	ledgers, err := r.store.Ledgers().List(c.Request.Context())
	if err != nil {
		internalError(c, "list ledgers", err)
		return
	}
	points, err := r.store.Points().List(c.Request.Context())
	if err != nil {
		internalError(c, "list points", err)
		return
	}
	byID := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		byID[p.StrategyID] = p.TotalPoints
	}
	items := make([]gin.H, 0, len(ledgers))
	for _, l := range ledgers {
		items = append(items, gin.H{"ledger": l, "points": byID[l.StrategyID]})
	}
	c.JSON(http.StatusOK, gin.H{"ledgers": items})
}

func (r *Router) handleLedger(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	l, err := r.store.Ledgers().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger not found"})
		return
	}
	if err != nil {
		internalError(c, "get ledger", err)
		return
	}
	resp := gin.H{"ledger": l}
	if p, err := r.store.Points().Get(ctx, id); err == nil {
		resp["points"] = p.TotalPoints
	}
	if rank, err := r.store.Ranks().Get(ctx, id); err == nil {
		resp["rank"] = rank
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleCycle(c *gin.Context) {
	if r.cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not running"})
		return
	}
	c.JSON(http.StatusOK, r.cycles.LastCycle())
}

func (r *Router) handleOrders(c *gin.Context) {
	orders, err := r.store.Orders().ListRecent(c.Request.Context(), limitParam(c))
	if err != nil {
		internalError(c, "list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleSnapshots(c *gin.Context) {
	snaps, err := r.store.Snapshots().ListRecent(c.Request.Context(), limitParam(c))
	if err != nil {
		internalError(c, "list snapshots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (r *Router) handleLeaderboardChart(c *gin.Context) {
	ctx := c.Request.Context()
	ranks, err := r.store.Ranks().List(ctx)
	if err != nil {
		internalError(c, "list ranks", err)
		return
	}
	ledgers, err := r.store.Ledgers().List(ctx)
	if err != nil {
		internalError(c, "list ledgers", err)
		return
	}
	points, err := r.store.Points().List(ctx)
	if err != nil {
		internalError(c, "list points", err)
		return
	}
	snaps, err := r.store.Snapshots().ListRecent(ctx, 500)
	if err != nil {
		internalError(c, "list snapshots", err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := visual.RenderLeaderboard(c.Writer, visual.Rows(ranks, ledgers, points), snaps); err != nil {
		logger.Warnf("render leaderboard failed: %v", err)
	}
}

func limitParam(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

func internalError(c *gin.Context, what string, err error) {
	logger.Warnf("http %s failed: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": what + " failed"})
}
