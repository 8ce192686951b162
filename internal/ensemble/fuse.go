// Package ensemble 把各策略的加权投票融合为一个交易决策。
package ensemble

import (
	"sort"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// Vote 是单个策略对一个标的的加权投票。
type Vote struct {
	StrategyID string          `json:"strategy_id"`
	Action     types.Action    `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Weight     decimal.Decimal `json:"weight"`
}

// Result 是融合结果及三个桶的累计权重。
type Result struct {
	Action     types.Action    `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	BuyWeight  decimal.Decimal `json:"buy_weight"`
	SellWeight decimal.Decimal `json:"sell_weight"`
	HoldWeight decimal.Decimal `json:"hold_weight"`
	Votes      int             `json:"votes"`
}

// Conviction = buy − (sell + 0.5·hold)，买入队列按它从大到小出队。
func (r Result) Conviction() decimal.Decimal {
	return r.BuyWeight.Sub(r.SellWeight.Add(r.HoldWeight.Mul(half)))
}

// Fuse 按动作分桶累计权重。胜出桶必须严格大于另外两个桶，否则为 hold。
// 数量取胜出桶原始数量的中位数（不加权）。
func Fuse(votes []Vote) Result {
	res := Result{
		Action:     types.ActionHold,
		Quantity:   decimal.Zero,
		BuyWeight:  decimal.Zero,
		SellWeight: decimal.Zero,
		HoldWeight: decimal.Zero,
	}
	var buys, sells []decimal.Decimal
	for _, v := range votes {
		switch {
		case v.Action.IsBuy():
			res.BuyWeight = res.BuyWeight.Add(v.Weight)
			buys = append(buys, v.Quantity)
		case v.Action.IsSell():
			res.SellWeight = res.SellWeight.Add(v.Weight)
			sells = append(sells, v.Quantity)
		case v.Action.IsHold():
			res.HoldWeight = res.HoldWeight.Add(v.Weight)
		default:
			continue
		}
		res.Votes++
	}

	switch {
	case res.BuyWeight.GreaterThan(res.SellWeight) && res.BuyWeight.GreaterThan(res.HoldWeight):
		res.Action = types.ActionBuy
		res.Quantity = Median(buys)
	case res.SellWeight.GreaterThan(res.BuyWeight) && res.SellWeight.GreaterThan(res.HoldWeight):
		res.Action = types.ActionSell
		res.Quantity = Median(sells)
	}
	return res
}

// Median 偶数个取中间两个的均值，空切片为 0。
func Median(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}
