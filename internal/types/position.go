package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionLimit 是实盘账户某标的的止损/止盈价位。
type PositionLimit struct {
	Instrument      string          `json:"instrument"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
}

// Breached 判断当前价格是否触发止损（<=）或止盈（>=）。
func (p PositionLimit) Breached(price decimal.Decimal) bool {
	if p.StopLossPrice.IsPositive() && price.LessThanOrEqual(p.StopLossPrice) {
		return true
	}
	if p.TakeProfitPrice.IsPositive() && price.GreaterThanOrEqual(p.TakeProfitPrice) {
		return true
	}
	return false
}

type LiveHolding struct {
	Instrument string          `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// AccountSnapshot 是券商账户的资金快照。
type AccountSnapshot struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// LiveOrder 是一次实盘下单的审计记录。
type LiveOrder struct {
	ClientOrderID string          `json:"client_order_id"`
	BrokerOrderID string          `json:"broker_order_id"`
	Instrument    string          `json:"instrument"`
	Side          OrderSide       `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Reason        string          `json:"reason"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PortfolioSnapshot 记录每轮结束时实盘组合相对基准的收益。
type PortfolioSnapshot struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ReturnPct      decimal.Decimal `json:"return_pct"`
	CreatedAt      time.Time       `json:"created_at"`
}
