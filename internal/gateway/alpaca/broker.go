package alpaca

import (
	"context"
	"fmt"

	"quorum/internal/risk"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// Account 读取现金与组合市值；portfolio_value 缺失时使用 equity。
func (c *Client) Account(ctx context.Context) (risk.Account, error) {
	acct, err := call(ctx, "account", c.trading.GetAccount)
	if err != nil {
		return risk.Account{}, err
	}
	pv := acct.PortfolioValue
	if pv.IsZero() {
		pv = acct.Equity
	}
	return risk.Account{Cash: acct.Cash, PortfolioValue: pv}, nil
}

// SubmitOrder 提交市价单。加密资产只接受 gtc。
func (c *Client) SubmitOrder(ctx context.Context, req risk.OrderRequest) (risk.Receipt, error) {
	if !req.Quantity.IsPositive() {
		return risk.Receipt{}, fmt.Errorf("alpaca order: quantity must be positive")
	}
	tif := alpacaapi.Day
	if isCrypto(req.Instrument) {
		tif = alpacaapi.GTC
	}
	qty := req.Quantity
	order, err := call(ctx, "order", func() (*alpacaapi.Order, error) {
		return c.trading.PlaceOrder(alpacaapi.PlaceOrderRequest{
			Symbol:        req.Instrument,
			Qty:           &qty,
			Side:          alpacaapi.Side(req.Side),
			Type:          alpacaapi.Market,
			TimeInForce:   tif,
			ClientOrderID: req.ClientOrderID,
		})
	})
	if err != nil {
		return risk.Receipt{}, err
	}
	receipt := risk.Receipt{
		BrokerOrderID: order.ID,
		Status:        order.Status,
		FilledPrice:   decimal.Zero,
	}
	if order.FilledAvgPrice != nil {
		receipt.FilledPrice = *order.FilledAvgPrice
	}
	return receipt, nil
}
