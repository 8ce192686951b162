// Package risk 是实盘风控闸门与下单调度。
package risk

import (
	"context"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// Account 是券商账户的资金视图。
type Account struct {
	Cash           decimal.Decimal
	PortfolioValue decimal.Decimal
}

// OrderRequest 是一笔市价单。
type OrderRequest struct {
	ClientOrderID string
	Instrument    string
	Side          types.OrderSide
	Quantity      decimal.Decimal
	// Price 是下单时的参考价，纸面券商按它成交。
	Price decimal.Decimal
}

// Receipt 是券商回执。FilledPrice 为 0 时使用参考价。
type Receipt struct {
	BrokerOrderID string
	Status        string
	FilledPrice   decimal.Decimal
}

// Broker 执行实盘订单。
type Broker interface {
	Account(ctx context.Context) (Account, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (Receipt, error)
}
