package alpaca

import (
	"context"

	"quorum/internal/market"
)

// Clock 用交易时钟判断美股是否开盘。
type Clock struct {
	Client *Client
}

func (c Clock) Poll(ctx context.Context) (market.Status, error) {
	clock, err := call(ctx, "clock", c.Client.trading.GetClock)
	if err != nil {
		return market.StatusError, err
	}
	if clock.IsOpen {
		return market.StatusOpen, nil
	}
	return market.StatusClosed, nil
}
