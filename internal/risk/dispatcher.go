package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quorum/internal/config"
	"quorum/internal/ensemble"
	"quorum/internal/gateway/notifier"
	"quorum/internal/logger"
	"quorum/internal/pkg/circuit"
	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var riskLog = logger.Named("risk")

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// Config 是实盘风控阈值。
type Config struct {
	ReserveFloor        decimal.Decimal
	ConcentrationCap    decimal.Decimal
	StopLossPct         decimal.Decimal
	TakeProfitPct       decimal.Decimal
	BaselineValue       decimal.Decimal
	SuggestionThreshold decimal.Decimal
	SettleDelay         time.Duration
}

func ConfigFrom(c config.LiveConfig) Config {
	return Config{
		ReserveFloor:        config.Dec(c.ReserveFloor),
		ConcentrationCap:    config.Dec(c.ConcentrationCap),
		StopLossPct:         config.Dec(c.StopLossPct),
		TakeProfitPct:       config.Dec(c.TakeProfitPct),
		BaselineValue:       config.Dec(c.BaselineValue),
		SuggestionThreshold: config.Dec(c.SuggestionWeightThreshold),
		SettleDelay:         c.SettleDelay(),
	}
}

// Kind 描述闸门对一个标的做出的处理。
type Kind string

const (
	KindHold       Kind = "hold"
	KindStopLoss   Kind = "stop_loss"
	KindTakeProfit Kind = "take_profit"
	KindSell       Kind = "sell"
	KindQueued     Kind = "queued_buy"
	KindSuggested  Kind = "suggested_buy"
	KindRejected   Kind = "rejected"
)

// Verdict 是闸门对单个标的的处理结果。
type Verdict struct {
	Instrument string           `json:"instrument"`
	Kind       Kind             `json:"kind"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Reason     string           `json:"reason,omitempty"`
	Order      *types.LiveOrder `json:"order,omitempty"`
}

// Dispatcher 负责实盘下单：卖出即时执行，买入进入优先队列由 Drain 统一下单。
// 实盘账户只在调度阶段串行修改。
type Dispatcher struct {
	cfg     Config
	broker  Broker
	store   store.Store
	breaker *circuit.CircuitBreaker
	notify  notifier.TextNotifier
	// reportedDay 是最近一次推送组合摘要的日期，每天只推送第一份快照。
	reportedDay string

	newID func() string
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(cfg Config, broker Broker, st store.Store, notify notifier.TextNotifier) *Dispatcher {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Dispatcher{
		cfg:     cfg,
		broker:  broker,
		store:   st,
		breaker: circuit.NewCircuitBreaker("broker", 3, 5*time.Minute),
		notify:  notify,
		newID:   uuid.NewString,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Cycle 持有一个处理周期内的账户视图和两个买入队列。
type Cycle struct {
	d           *Dispatcher
	account     Account
	buys        BuyQueue
	suggestions BuyQueue
}

// DrainReport 汇总一次队列下单。
type DrainReport struct {
	Filled         []types.LiveOrder `json:"filled"`
	Remaining      int               `json:"remaining"`
	StoppedAtFloor bool              `json:"stopped_at_floor"`
}

// Begin 读取券商账户开始新周期。
func (d *Dispatcher) Begin(ctx context.Context) (*Cycle, error) {
	acct, err := d.broker.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read account: %v", types.ErrExecution, err)
	}
	return &Cycle{d: d, account: acct}, nil
}

func (c *Cycle) Account() Account { return c.account }

// Queued 返回主队列与建议队列的当前内容（按出队顺序）。
func (c *Cycle) Queued() (buys, suggestions []Pending) {
	return c.buys.Items(), c.suggestions.Items()
}

// Guard 检查止损/止盈。触发时卖出全部实盘持仓并返回 handled=true，调用方跳过融合。
func (c *Cycle) Guard(ctx context.Context, instrument string, price decimal.Decimal) (Verdict, bool, error) {
	limit, err := c.d.store.Limits().Get(ctx, instrument)
	if errors.Is(err, store.ErrNotFound) {
		return Verdict{}, false, nil
	}
	if err != nil {
		return Verdict{}, false, storeErr(err)
	}
	if !limit.Breached(price) {
		return Verdict{}, false, nil
	}
	kind := KindTakeProfit
	if price.LessThanOrEqual(limit.StopLossPrice) {
		kind = KindStopLoss
	}
	held, err := c.d.store.Holdings().Get(ctx, instrument)
	if err != nil {
		return Verdict{}, false, storeErr(err)
	}
	if !held.IsPositive() {
		riskLog.Warnf("%s %s triggered without live holding, dropping stale limit", instrument, kind)
		if err := c.d.store.Limits().Delete(ctx, instrument); err != nil {
			return Verdict{}, false, storeErr(err)
		}
		return Verdict{}, false, nil
	}
	riskLog.Infof("%s %s at %s (stop=%s take=%s), selling %s", instrument, kind,
		price, limit.StopLossPrice, limit.TakeProfitPrice, held)
	order, err := c.d.execute(ctx, instrument, types.SideSell, held, price, string(kind))
	v := Verdict{Instrument: instrument, Kind: kind, Quantity: held}
	if err != nil {
		return v, true, err
	}
	v.Order = &order
	c.refresh(ctx)
	return v, true, nil
}

// Decide 对融合结果应用实盘规则：卖出立即执行，买入入队，其它视情况进入建议队列。
func (c *Cycle) Decide(ctx context.Context, instrument string, price decimal.Decimal, res ensemble.Result) (Verdict, error) {
	held, err := c.d.store.Holdings().Get(ctx, instrument)
	if err != nil {
		return Verdict{}, storeErr(err)
	}
	v := Verdict{Instrument: instrument, Kind: KindHold, Quantity: decimal.Zero}

	switch {
	case res.Action.IsBuy():
		if reason := c.checkBuy(price, held, res.Quantity); reason != "" {
			riskLog.Infof("%s buy %s rejected: %s", instrument, res.Quantity, reason)
			v.Kind, v.Reason = KindRejected, reason
			break
		}
		c.buys.Push(Pending{
			Instrument: instrument,
			Quantity:   res.Quantity,
			Price:      price,
			Priority:   res.Conviction().Neg(),
			Reason:     "ensemble",
		})
		v.Kind, v.Quantity = KindQueued, res.Quantity
		return v, nil
	case res.Action.IsSell():
		if !held.IsPositive() {
			v.Kind, v.Reason = KindRejected, types.ErrNothingToSell.Error()
			break
		}
		qty := decimal.Max(res.Quantity, one)
		if qty.GreaterThan(held) {
			qty = held
		}
		v.Kind, v.Quantity = KindSell, qty
		order, err := c.d.execute(ctx, instrument, types.SideSell, qty, price, "ensemble")
		if err != nil {
			return v, err
		}
		v.Order = &order
		c.refresh(ctx)
		return v, nil
	}

	if p, ok := c.suggest(instrument, price, held, res); ok {
		c.suggestions.Push(p)
		riskLog.Infof("%s suggested buy %s (buy weight %s)", instrument, p.Quantity, res.BuyWeight)
		v.Kind, v.Quantity = KindSuggested, p.Quantity
	}
	return v, nil
}

// checkBuy 返回拒绝原因，空串表示允许。
func (c *Cycle) checkBuy(price, held, qty decimal.Decimal) string {
	if !qty.IsPositive() {
		return "non-positive quantity"
	}
	if !c.account.Cash.GreaterThan(c.d.cfg.ReserveFloor) {
		return "cash at reserve floor"
	}
	if !c.account.PortfolioValue.IsPositive() || !price.IsPositive() {
		return "portfolio or price not positive"
	}
	share := held.Add(qty).Mul(price).Div(c.account.PortfolioValue)
	if !share.LessThan(c.d.cfg.ConcentrationCap) {
		return "concentration cap"
	}
	return ""
}

// suggest 在没有持仓但买入权重占优且超过阈值时，给出半仓建议买入。
func (c *Cycle) suggest(instrument string, price, held decimal.Decimal, res ensemble.Result) (Pending, bool) {
	cfg := c.d.cfg
	if !cfg.SuggestionThreshold.IsPositive() || !held.IsZero() {
		return Pending{}, false
	}
	if !res.BuyWeight.GreaterThan(res.SellWeight) || !res.BuyWeight.GreaterThan(cfg.SuggestionThreshold) {
		return Pending{}, false
	}
	if !c.account.Cash.GreaterThan(cfg.ReserveFloor) || !c.account.PortfolioValue.IsPositive() || !price.IsPositive() {
		return Pending{}, false
	}
	if !held.Add(res.Quantity).Mul(price).Div(c.account.PortfolioValue).LessThan(cfg.ConcentrationCap) {
		return Pending{}, false
	}
	byCap := cfg.ConcentrationCap.Mul(c.account.PortfolioValue).Div(price).Floor()
	byCash := c.account.Cash.Div(price).Floor()
	qty := decimal.Max(decimal.Min(byCap, byCash), two).Div(two).Floor()
	return Pending{
		Instrument: instrument,
		Quantity:   qty,
		Price:      price,
		Priority:   res.BuyWeight.Sub(res.SellWeight).Neg(),
		Reason:     "suggestion",
	}, true
}

// Drain 按优先级下单：先主队列后建议队列；每单前重读现金，低于保留资金即停止；
// 下单失败放弃本周期剩余队列。
func (c *Cycle) Drain(ctx context.Context) (report DrainReport, err error) {
	defer func() {
		report.Remaining = c.buys.Len() + c.suggestions.Len()
	}()
	for c.buys.Len() > 0 || c.suggestions.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		acct, aerr := c.d.broker.Account(ctx)
		if aerr != nil {
			err = fmt.Errorf("%w: read account: %v", types.ErrExecution, aerr)
			riskLog.Errorf("abandoning buy queue: %v", err)
			return report, err
		}
		c.account = acct
		if !acct.Cash.GreaterThan(c.d.cfg.ReserveFloor) {
			report.StoppedAtFloor = true
			riskLog.Infof("cash %s at reserve floor %s, %d queued buys left", acct.Cash, c.d.cfg.ReserveFloor, c.buys.Len()+c.suggestions.Len())
			return report, nil
		}
		p, ok := c.buys.Pop()
		if !ok {
			p, _ = c.suggestions.Pop()
		}
		order, err := c.d.execute(ctx, p.Instrument, types.SideBuy, p.Quantity, p.Price, p.Reason)
		if err != nil {
			riskLog.Errorf("abandoning buy queue: %v", err)
			return report, err
		}
		report.Filled = append(report.Filled, order)
		if err := c.d.sleep(ctx, c.d.cfg.SettleDelay); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (c *Cycle) refresh(ctx context.Context) {
	acct, err := c.d.broker.Account(ctx)
	if err != nil {
		riskLog.Warnf("refresh account after sell failed: %v", err)
		return
	}
	c.account = acct
}

// execute 提交订单并在一个事务中更新实盘持仓、止损止盈价位与订单日志。
func (d *Dispatcher) execute(ctx context.Context, instrument string, side types.OrderSide, qty, price decimal.Decimal, reason string) (types.LiveOrder, error) {
	req := OrderRequest{
		ClientOrderID: d.newID(),
		Instrument:    instrument,
		Side:          side,
		Quantity:      qty,
		Price:         price,
	}
	var receipt Receipt
	err := d.breaker.Do(func() error {
		var err error
		receipt, err = d.broker.SubmitOrder(ctx, req)
		return err
	})
	if err != nil {
		return types.LiveOrder{}, fmt.Errorf("%w: %s %s %s: %v", types.ErrExecution, side, qty, instrument, err)
	}
	fill := receipt.FilledPrice
	if !fill.IsPositive() {
		fill = price
	}
	status := receipt.Status
	if status == "" {
		status = "submitted"
	}
	order := types.LiveOrder{
		ClientOrderID: req.ClientOrderID,
		BrokerOrderID: receipt.BrokerOrderID,
		Instrument:    instrument,
		Side:          side,
		Quantity:      qty,
		Price:         fill,
		Reason:        reason,
		Status:        status,
		CreatedAt:     d.now(),
	}
	err = store.WithinTx(ctx, d.store, func(uow store.UnitOfWork) error {
		delta := qty
		if side == types.SideSell {
			delta = qty.Neg()
		}
		if _, err := uow.Holdings().Adjust(ctx, instrument, delta); err != nil {
			return err
		}
		if side == types.SideBuy {
			if err := uow.Limits().Upsert(ctx, d.limitsFor(instrument, fill)); err != nil {
				return err
			}
		}
		return uow.Orders().Save(ctx, &order)
	})
	if err != nil {
		riskLog.Errorf("order %s accepted by broker but not recorded: %v", order.ClientOrderID, err)
		return order, storeErr(err)
	}
	logger.Journal("live", map[string]any{
		"side":       string(side),
		"instrument": instrument,
		"qty":        qty.String(),
		"price":      fill.String(),
		"reason":     reason,
		"order":      order.ClientOrderID,
		"broker":     receipt.BrokerOrderID,
	})
	go d.sendText(notifier.OrderMessage(order).RenderMarkdown())
	return order, nil
}

func (d *Dispatcher) limitsFor(instrument string, price decimal.Decimal) types.PositionLimit {
	return types.PositionLimit{
		Instrument:      instrument,
		StopLossPrice:   price.Mul(one.Sub(d.cfg.StopLossPct)).Round(2),
		TakeProfitPrice: price.Mul(one.Add(d.cfg.TakeProfitPct)).Round(2),
	}
}

// RecordSnapshot 记录实盘组合相对基准的收益。
func (d *Dispatcher) RecordSnapshot(ctx context.Context) (types.PortfolioSnapshot, error) {
	acct, err := d.broker.Account(ctx)
	if err != nil {
		return types.PortfolioSnapshot{}, fmt.Errorf("%w: read account: %v", types.ErrExecution, err)
	}
	snap := types.PortfolioSnapshot{
		Cash:           acct.Cash,
		PortfolioValue: acct.PortfolioValue,
		ReturnPct:      decimal.Zero,
		CreatedAt:      d.now(),
	}
	if d.cfg.BaselineValue.IsPositive() {
		snap.ReturnPct = acct.PortfolioValue.Sub(d.cfg.BaselineValue).Div(d.cfg.BaselineValue)
	}
	if err := d.store.Snapshots().Insert(ctx, snap); err != nil {
		return snap, storeErr(err)
	}
	if day := snap.CreatedAt.Format(time.DateOnly); day != d.reportedDay {
		d.reportedDay = day
		go d.sendText(notifier.SnapshotMessage(snap).RenderMarkdown())
	}
	return snap, nil
}

func (d *Dispatcher) sendText(text string) {
	if err := d.notify.SendText(text); err != nil {
		riskLog.Warnf("notify failed: %v", err)
	}
}

func storeErr(err error) error {
	if errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
