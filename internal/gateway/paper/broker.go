// Package paper 是按参考价即时成交的纸面券商，持仓读取自实盘持仓镜像。
package paper

import (
	"context"
	"fmt"
	"sync"

	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/risk"
	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var paperLog = logger.Named("paper")

// Broker 实现 risk.Broker。现金保存在内存中，启动时从最近一次组合快照恢复。
type Broker struct {
	store  store.Repositories
	prices market.PriceOracle

	once sync.Once
	mu   sync.Mutex
	cash decimal.Decimal
	init decimal.Decimal
}

func NewBroker(st store.Repositories, prices market.PriceOracle, initialCash decimal.Decimal) *Broker {
	return &Broker{store: st, prices: prices, init: initialCash}
}

func (b *Broker) restore(ctx context.Context) {
	b.once.Do(func() {
		b.cash = b.init
		snaps, err := b.store.Snapshots().ListRecent(ctx, 1)
		if err != nil {
			paperLog.Warnf("restore cash from snapshot failed, using initial %s: %v", b.init, err)
			return
		}
		if len(snaps) > 0 {
			b.cash = snaps[0].Cash
			paperLog.Infof("restored paper cash %s", b.cash)
		}
	})
}

// Account 返回现金与按最新价估值的组合市值；无法取价的持仓不计入。
func (b *Broker) Account(ctx context.Context) (risk.Account, error) {
	b.restore(ctx)
	holdings, err := b.store.Holdings().List(ctx)
	if err != nil {
		return risk.Account{}, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	b.mu.Lock()
	cash := b.cash
	b.mu.Unlock()
	value := cash
	for _, h := range holdings {
		price, err := b.prices.Latest(ctx, h.Instrument)
		if err != nil {
			paperLog.Warnf("value %s: %v", h.Instrument, err)
			continue
		}
		value = value.Add(h.Quantity.Mul(price))
	}
	return risk.Account{Cash: cash, PortfolioValue: value}, nil
}

// SubmitOrder 按参考价立即成交。
func (b *Broker) SubmitOrder(ctx context.Context, req risk.OrderRequest) (risk.Receipt, error) {
	b.restore(ctx)
	if !req.Quantity.IsPositive() || !req.Price.IsPositive() {
		return risk.Receipt{}, fmt.Errorf("paper order %s: quantity and price must be positive", req.Instrument)
	}
	notional := req.Quantity.Mul(req.Price)
	switch req.Side {
	case types.SideBuy:
		b.mu.Lock()
		defer b.mu.Unlock()
		if notional.GreaterThan(b.cash) {
			return risk.Receipt{}, fmt.Errorf("paper order %s: insufficient cash %s < %s", req.Instrument, b.cash, notional)
		}
		b.cash = b.cash.Sub(notional)
	case types.SideSell:
		held, err := b.store.Holdings().Get(ctx, req.Instrument)
		if err != nil {
			return risk.Receipt{}, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
		if held.LessThan(req.Quantity) {
			return risk.Receipt{}, fmt.Errorf("paper order %s: %w (held %s, want %s)", req.Instrument, types.ErrNothingToSell, held, req.Quantity)
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cash = b.cash.Add(notional)
	default:
		return risk.Receipt{}, fmt.Errorf("paper order %s: unknown side %q", req.Instrument, req.Side)
	}
	return risk.Receipt{
		BrokerOrderID: "paper-" + uuid.NewString(),
		Status:        "filled",
		FilledPrice:   req.Price,
	}, nil
}
