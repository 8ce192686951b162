package orchestrator

import (
	"context"
	"errors"
	"time"

	"quorum/internal/ensemble"
	"quorum/internal/market"
	"quorum/internal/risk"
	"quorum/internal/strategy"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// CycleReport 是最近一次处理周期的诊断快照。
type CycleReport struct {
	Status      market.Status            `json:"status"`
	Segment     string                   `json:"segment"`
	StartedAt   time.Time                `json:"started_at"`
	Duration    time.Duration            `json:"duration"`
	Instruments []InstrumentReport       `json:"instruments"`
	Drain       *risk.DrainReport        `json:"drain,omitempty"`
	Snapshot    *types.PortfolioSnapshot `json:"snapshot,omitempty"`
	LiveError   string                   `json:"live_error,omitempty"`
}

// InstrumentReport 记录单个标的在本轮的投票、融合结果与实盘处理。
type InstrumentReport struct {
	Instrument string          `json:"instrument"`
	Price      decimal.Decimal `json:"price"`
	Votes      []ensemble.Vote `json:"votes"`
	Fused      ensemble.Result `json:"fused"`
	Verdict    *risk.Verdict   `json:"verdict,omitempty"`
	SimTrades  int             `json:"sim_trades"`
	Skipped    []string        `json:"skipped,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// cycle 运行一轮处理，返回是否处理了任何标的。
func (o *Orchestrator) cycle(ctx context.Context, status market.Status, instruments []market.Instrument) bool {
	if len(instruments) == 0 {
		return false
	}
	started := o.now()
	report := CycleReport{Status: status, StartedAt: started}
	report.Segment = o.refreshWeights(ctx, status)

	var live *risk.Cycle
	liveAcct := risk.Account{}
	if o.deps.Live != nil {
		c, err := o.deps.Live.Begin(ctx)
		if err != nil {
			orchLog.Errorf("live account unavailable, simulation only this cycle: %v", err)
			report.LiveError = err.Error()
		} else {
			live = c
			liveAcct = c.Account()
		}
	}

	results := make([]InstrumentReport, len(instruments))
	var g errgroup.Group
	g.SetLimit(len(instruments))
	for i, inst := range instruments {
		i, inst := i, inst
		g.Go(func() error {
			results[i] = o.evaluate(ctx, inst.Symbol, liveAcct)
			return nil
		})
	}
	_ = g.Wait()

	// 汇合之后串行：止损止盈 → 融合 → 实盘闸门。存储不可用时放弃本轮实盘处理，下一轮重试。
	liveDown := false
	for i := range results {
		res := &results[i]
		if res.Error != "" {
			continue
		}
		res.Fused = ensemble.Fuse(res.Votes)
		if live == nil || liveDown || ctx.Err() != nil {
			continue
		}
		guard, handled, err := live.Guard(ctx, res.Instrument, res.Price)
		if err != nil {
			orchLog.Errorf("%s limit check: %v", res.Instrument, err)
			if errors.Is(err, types.ErrStoreUnavailable) {
				liveDown = abortLive(&report, res, guard, err)
				continue
			}
		}
		if handled {
			res.Verdict = &guard
			continue
		}
		v, err := live.Decide(ctx, res.Instrument, res.Price, res.Fused)
		if err != nil {
			orchLog.Errorf("%s live decision: %v", res.Instrument, err)
			res.Error = err.Error()
			if errors.Is(err, types.ErrStoreUnavailable) {
				liveDown = abortLive(&report, res, v, err)
				continue
			}
		}
		if v.Kind != "" {
			res.Verdict = &v
		}
	}

	if live != nil && !liveDown && ctx.Err() == nil {
		drain, err := live.Drain(ctx)
		report.Drain = &drain
		if err != nil && !errors.Is(err, context.Canceled) {
			report.LiveError = err.Error()
		}
		if snap, err := o.deps.Live.RecordSnapshot(ctx); err != nil {
			orchLog.Warnf("portfolio snapshot failed: %v", err)
		} else {
			report.Snapshot = &snap
		}
	}

	report.Instruments = results
	report.Duration = o.now().Sub(started)
	o.mu.Lock()
	o.last = report
	o.mu.Unlock()
	orchLog.Infof("%s cycle processed %d instruments in %s", status, len(instruments), report.Duration.Truncate(time.Millisecond))
	return true
}

// abortLive 记录存储故障；本轮剩余标的与买入队列都不再提交给券商。
func abortLive(report *CycleReport, res *InstrumentReport, v risk.Verdict, err error) bool {
	if v.Kind != "" {
		res.Verdict = &v
	}
	res.Error = err.Error()
	report.LiveError = err.Error()
	orchLog.Errorf("store unavailable, abandoning live dispatch until next cycle: %v", err)
	return true
}

// evaluate 是单个标的的 worker：模拟账户记账，并收集非保留策略在实盘账户下的投票。
func (o *Orchestrator) evaluate(ctx context.Context, instrument string, liveAcct risk.Account) InstrumentReport {
	rep := InstrumentReport{Instrument: instrument}
	price, err := o.deps.Prices.Latest(ctx, instrument)
	if err != nil {
		orchLog.Warnf("%s price unavailable, skipping this cycle: %v", instrument, err)
		rep.Error = err.Error()
		return rep
	}
	rep.Price = price

	liveHeld := decimal.Zero
	if o.deps.Live != nil {
		if liveHeld, err = o.deps.Store.Holdings().Get(ctx, instrument); err != nil {
			orchLog.Warnf("%s live holding unavailable: %v", instrument, err)
			liveHeld = decimal.Zero
		}
	}

	for _, id := range o.deps.Strategies.IDs() {
		if ctx.Err() != nil {
			break
		}
		fn, _ := o.deps.Strategies.Get(id)
		period, err := o.deps.Store.IdealPeriods().Get(ctx, id)
		if err != nil {
			o.skip(&rep, id, "ideal period", err)
			continue
		}
		series, err := o.deps.History.Series(ctx, instrument, period.Window)
		if err != nil {
			o.skip(&rep, id, "history "+period.Window, err)
			continue
		}
		snapshot, err := o.deps.Ledgers.Snapshot(ctx, id)
		if err != nil {
			o.skip(&rep, id, "ledger", err)
			continue
		}

		action, qty := fn(strategy.Input{
			Instrument:     instrument,
			Series:         series,
			Price:          price,
			Cash:           snapshot.Cash,
			Held:           snapshot.HeldQuantity(instrument),
			PortfolioValue: snapshot.PortfolioValue,
		})
		outcome, err := o.deps.Ledgers.Record(ctx, id, instrument, price, types.Decision{Action: action, Quantity: qty})
		switch {
		case err == nil:
			if outcome.Changed {
				rep.SimTrades++
			}
		case errors.Is(err, types.ErrCapacityExceeded), errors.Is(err, types.ErrNothingToSell):
		default:
			orchLog.Warnf("%s/%s simulated trade: %v", id, instrument, err)
		}

		if _, reserved := o.deps.Reserved[id]; reserved {
			continue
		}
		liveAction, liveQty := fn(strategy.Input{
			Instrument:     instrument,
			Series:         series,
			Price:          price,
			Cash:           liveAcct.Cash,
			Held:           liveHeld,
			PortfolioValue: liveAcct.PortfolioValue,
		})
		rep.Votes = append(rep.Votes, ensemble.Vote{
			StrategyID: id,
			Action:     types.NormalizeAction(liveAction),
			Quantity:   liveQty,
			Weight:     o.weight(id),
		})
	}
	return rep
}

func (o *Orchestrator) skip(rep *InstrumentReport, id, what string, err error) {
	rep.Skipped = append(rep.Skipped, id)
	if isSkip(err) {
		orchLog.Warnf("%s/%s: %s missing, skipped", id, rep.Instrument, what)
		return
	}
	orchLog.Warnf("%s/%s: %s: %v", id, rep.Instrument, what, err)
}
