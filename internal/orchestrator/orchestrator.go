// Package orchestrator 驱动每一轮：按市场状态选择标的，并发评估策略，
// 汇合后融合投票并串行执行实盘调度；收盘沿触发排名周期。
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"quorum/internal/coefficient"
	"quorum/internal/ledger"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/ranking"
	"quorum/internal/risk"
	"quorum/internal/store"
	"quorum/internal/strategy"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

var orchLog = logger.Named("orchestrator")

// Ranker 执行一次排名周期。
type Ranker interface {
	RunEpoch(ctx context.Context) (ranking.EpochResult, error)
}

// WeightSource 提供按时段刷新的策略权重。
type WeightSource interface {
	RefreshSegment(ctx context.Context, segment string) (bool, error)
	Weight(strategyID string) decimal.Decimal
}

var (
	_ Ranker       = (*ranking.Engine)(nil)
	_ WeightSource = (*coefficient.Weights)(nil)
)

// Deps 是编排器的全部协作者，启动时一次性构建。
type Deps struct {
	Strategies *strategy.Registry
	Reserved   map[string]struct{}

	Prices   market.PriceOracle
	History  market.HistoryProvider
	Status   market.StatusOracle
	Universe market.UniverseProvider

	Store   store.Store
	Ledgers *ledger.Service
	Ranking Ranker
	Weights WeightSource
	// Live 为 nil 时只运行模拟账户。
	Live *risk.Dispatcher

	TimeDeltaStep  decimal.Decimal
	ActiveInterval time.Duration
	QuietInterval  time.Duration
	Location       *time.Location
}

// Orchestrator 是唯一的协调 goroutine。
type Orchestrator struct {
	deps Deps
	now  func() time.Time

	universe   []market.Instrument
	prevStatus market.Status
	// pendingAdvances 是已提交但尚未推进 TimeDelta 的排名周期数。
	pendingAdvances int

	epochRequested atomic.Bool
	epochs         atomic.Int64

	mu   sync.RWMutex
	last CycleReport
}

func New(deps Deps) *Orchestrator {
	if deps.Reserved == nil {
		deps.Reserved = map[string]struct{}{}
	}
	if deps.ActiveInterval <= 0 {
		deps.ActiveInterval = time.Minute
	}
	if deps.QuietInterval <= 0 {
		deps.QuietInterval = 30 * time.Second
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// RequestEpoch 请求在下一次迭代之前执行一次排名周期（定时任务调用）。
func (o *Orchestrator) RequestEpoch() {
	o.epochRequested.Store(true)
}

// Epochs 返回已成功执行的排名周期数。
func (o *Orchestrator) Epochs() int64 { return o.epochs.Load() }

// LastCycle 返回最近一次处理周期的诊断信息。
func (o *Orchestrator) LastCycle() CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Run 循环执行 Step 直到 ctx 取消；进行中的 worker 总会被汇合。
func (o *Orchestrator) Run(ctx context.Context) error {
	orchLog.Infof("orchestrator started with %d strategies", o.deps.Strategies.Len())
	for {
		wait := o.Step(ctx)
		if ctx.Err() != nil {
			orchLog.Infof("orchestrator stopped")
			return ctx.Err()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			orchLog.Infof("orchestrator stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Step 执行一次迭代并返回下一次迭代前的等待时间。
func (o *Orchestrator) Step(ctx context.Context) time.Duration {
	status, err := o.deps.Status.Poll(ctx)
	if err != nil {
		orchLog.Warnf("market status unavailable: %v", err)
		status = market.StatusError
	}

	closeEdge := status != market.StatusError && o.prevStatus.Active() && status == market.StatusClosed
	if status != market.StatusError {
		o.prevStatus = status
	}
	if o.pendingAdvances > 0 {
		o.advanceTimeDelta(ctx, "previous epoch")
	}
	// 同一次迭代中收盘沿与定时请求合并为一次排名周期。
	requested := o.epochRequested.Swap(false)
	switch {
	case closeEdge:
		o.runEpoch(ctx, "market close")
	case requested:
		o.runEpoch(ctx, "requested")
	}

	switch status {
	case market.StatusOpen:
		if o.cycle(ctx, status, o.instruments(ctx, false)) {
			return o.deps.ActiveInterval
		}
	case market.StatusClosed:
		if o.cycle(ctx, status, o.instruments(ctx, true)) {
			return o.deps.ActiveInterval
		}
	case market.StatusEarlyHours:
		o.cycle(ctx, status, o.instruments(ctx, true))
	}
	return o.deps.QuietInterval
}

// runEpoch 排名并推进 TimeDelta；失败时在下一次迭代重试。
func (o *Orchestrator) runEpoch(ctx context.Context, reason string) {
	if o.deps.Ranking == nil {
		return
	}
	orchLog.Infof("ranking epoch triggered (%s)", reason)
	res, err := o.deps.Ranking.RunEpoch(ctx)
	if err != nil {
		orchLog.Errorf("ranking epoch failed, retrying next iteration: %v", err)
		o.epochRequested.Store(true)
		return
	}
	o.epochs.Add(1)
	o.pendingAdvances++
	o.advanceTimeDelta(ctx, "epoch "+res.EpochID)
}

// advanceTimeDelta 为每个未推进的周期推进一步 TimeDelta；失败的留到下一次迭代。
func (o *Orchestrator) advanceTimeDelta(ctx context.Context, after string) {
	for o.pendingAdvances > 0 {
		delta, err := o.deps.Store.TimeDelta().Advance(ctx, o.deps.TimeDeltaStep)
		if err != nil {
			orchLog.Errorf("advance time delta after %s failed, retrying next iteration: %v", after, err)
			return
		}
		o.pendingAdvances--
		orchLog.Infof("%s done, time delta now %s", after, delta)
	}
}

// instruments 返回本轮标的；continuousOnly 时只保留全天候交易的标的。
func (o *Orchestrator) instruments(ctx context.Context, continuousOnly bool) []market.Instrument {
	if len(o.universe) == 0 && o.deps.Universe != nil {
		list, err := o.deps.Universe.List(ctx)
		switch {
		case err != nil:
			orchLog.Warnf("universe refresh failed: %v", err)
		default:
			o.universe = list
			orchLog.Infof("tracking %d instruments", len(list))
		}
	}
	if !continuousOnly {
		return append([]market.Instrument(nil), o.universe...)
	}
	out := make([]market.Instrument, 0, len(o.universe))
	for _, inst := range o.universe {
		if inst.Continuous() {
			out = append(out, inst)
		}
	}
	return out
}

func (o *Orchestrator) refreshWeights(ctx context.Context, status market.Status) string {
	segment := market.SegmentKey(o.now().In(o.deps.Location), status)
	if o.deps.Weights == nil {
		return segment
	}
	refreshed, err := o.deps.Weights.RefreshSegment(ctx, segment)
	if err != nil {
		orchLog.Errorf("refresh coefficient weights for %s failed: %v", segment, err)
	} else if refreshed {
		orchLog.Infof("coefficient weights refreshed for segment %s", segment)
	}
	return segment
}

func (o *Orchestrator) weight(id string) decimal.Decimal {
	if o.deps.Weights == nil {
		return decimal.Zero
	}
	return o.deps.Weights.Weight(id)
}

func isSkip(err error) bool {
	return errors.Is(err, types.ErrConfigMissing) || errors.Is(err, store.ErrNotFound)
}
