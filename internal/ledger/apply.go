// Package ledger 实现策略模拟账户的记账与积分规则。
package ledger

import (
	"errors"
	"fmt"
	"time"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity 表示请求数量 <= 0。
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Limits 是模拟买入的风控阈值。
type Limits struct {
	ReserveFloor     decimal.Decimal
	ConcentrationCap decimal.Decimal
}

// DefaultLimits 保留 15000 现金，单标的仓位不超过组合的 10%。
func DefaultLimits() Limits {
	return Limits{
		ReserveFloor:     decimal.NewFromInt(15000),
		ConcentrationCap: decimal.RequireFromString("0.10"),
	}
}

// Trade 是一次待记账的模拟成交请求。
type Trade struct {
	Instrument string
	Action     types.Action
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	At         time.Time
}

// Result 是卖出的盈亏分类。
type Result string

const (
	ResultNone       Result = ""
	ResultSuccessful Result = "successful"
	ResultFailed     Result = "failed"
	ResultNeutral    Result = "neutral"
)

// Outcome 是 Apply 的结果；Changed=false 时 Ledger 与输入一致。
type Outcome struct {
	Ledger      types.Ledger
	Executed    decimal.Decimal
	PointsDelta decimal.Decimal
	Result      Result
	Changed     bool
}

var (
	gainTier1  = decimal.RequireFromString("1.05")
	gainTier2  = decimal.RequireFromString("1.10")
	lossTier1  = decimal.RequireFromString("0.975")
	lossTier2  = decimal.RequireFromString("0.95")
	oneAndHalf = decimal.RequireFromString("1.5")
	two        = decimal.NewFromInt(2)
)

// Apply 纯函数：在快照上应用一次交易，返回新快照与积分变化。
// 买入被风控拒绝时返回 types.ErrCapacityExceeded，卖出无持仓时返回 types.ErrNothingToSell。
func Apply(snapshot types.Ledger, trade Trade, delta decimal.Decimal, limits Limits) (Outcome, error) {
	next := snapshot.Clone()
	out := Outcome{Ledger: next}
	at := trade.At
	if at.IsZero() {
		at = time.Now()
	}
	switch {
	case trade.Action.IsBuy():
		if !trade.Quantity.IsPositive() {
			return out, fmt.Errorf("%w: buy %s qty=%s", types.ErrCapacityExceeded, trade.Instrument, trade.Quantity)
		}
		cost := trade.Quantity.Mul(trade.Price)
		if !next.Cash.Sub(cost).GreaterThan(limits.ReserveFloor) {
			return out, fmt.Errorf("%w: cash %s - cost %s would breach reserve %s",
				types.ErrCapacityExceeded, next.Cash, cost, limits.ReserveFloor)
		}
		held := next.Holdings[trade.Instrument]
		if !next.PortfolioValue.IsPositive() {
			return out, fmt.Errorf("%w: portfolio value %s", types.ErrCapacityExceeded, next.PortfolioValue)
		}
		exposure := held.Quantity.Add(trade.Quantity).Mul(trade.Price).Div(next.PortfolioValue)
		if !exposure.LessThan(limits.ConcentrationCap) {
			return out, fmt.Errorf("%w: %s exposure %s >= cap %s",
				types.ErrCapacityExceeded, trade.Instrument, exposure.StringFixed(4), limits.ConcentrationCap)
		}
		newQty := held.Quantity.Add(trade.Quantity)
		newAvg := held.AverageCost.Mul(held.Quantity).Add(trade.Price.Mul(trade.Quantity)).Div(newQty)
		next.Holdings[trade.Instrument] = types.Holding{Quantity: newQty, AverageCost: newAvg}
		next.Cash = next.Cash.Sub(cost)
		next.Counters.Total++
		next.UpdatedAt = at
		out.Ledger = next
		out.Executed = trade.Quantity
		out.Changed = true
		return out, nil

	case trade.Action.IsSell():
		held, ok := next.Holdings[trade.Instrument]
		if !ok || !held.Quantity.IsPositive() {
			return out, fmt.Errorf("%w: %s", types.ErrNothingToSell, trade.Instrument)
		}
		if !trade.Quantity.IsPositive() {
			return out, fmt.Errorf("%w: sell %s qty=%s", ErrInvalidQuantity, trade.Instrument, trade.Quantity)
		}
		sold := decimal.Min(trade.Quantity, held.Quantity)
		points, result := Score(trade.Price, held.AverageCost, delta)
		switch result {
		case ResultSuccessful:
			next.Counters.Successful++
		case ResultFailed:
			next.Counters.Failed++
		default:
			next.Counters.Neutral++
		}
		remaining := held.Quantity.Sub(sold)
		if remaining.IsZero() {
			delete(next.Holdings, trade.Instrument)
		} else {
			next.Holdings[trade.Instrument] = types.Holding{Quantity: remaining, AverageCost: held.AverageCost}
		}
		next.Cash = next.Cash.Add(sold.Mul(trade.Price))
		next.Counters.Total++
		next.UpdatedAt = at
		out.Ledger = next
		out.Executed = sold
		out.PointsDelta = points
		out.Result = result
		out.Changed = true
		return out, nil
	}
	return out, nil
}

// Score 按 price/avgCost 的比值分档计算积分（乘以 delta），并返回盈亏分类。
func Score(price, avgCost, delta decimal.Decimal) (decimal.Decimal, Result) {
	if !avgCost.IsPositive() {
		return two.Mul(delta), ResultSuccessful
	}
	ratio := price.Div(avgCost)
	switch ratio.Cmp(decimal.NewFromInt(1)) {
	case 1:
		switch {
		case ratio.LessThan(gainTier1):
			return delta, ResultSuccessful
		case ratio.LessThan(gainTier2):
			return oneAndHalf.Mul(delta), ResultSuccessful
		default:
			return two.Mul(delta), ResultSuccessful
		}
	case -1:
		switch {
		case ratio.GreaterThan(lossTier1):
			return delta.Neg(), ResultFailed
		case ratio.GreaterThan(lossTier2):
			return oneAndHalf.Mul(delta).Neg(), ResultFailed
		default:
			return two.Mul(delta).Neg(), ResultFailed
		}
	}
	return decimal.Zero, ResultNeutral
}

// Revalue 以最新价格重估组合价值：cash + Σ qty·price。prices 中缺失的标的按成本价计。
func Revalue(snapshot types.Ledger, prices map[string]decimal.Decimal) types.Ledger {
	next := snapshot.Clone()
	total := next.Cash
	for inst, h := range next.Holdings {
		price, ok := prices[inst]
		if !ok {
			price = h.AverageCost
		}
		total = total.Add(h.Quantity.Mul(price))
	}
	next.PortfolioValue = total
	return next
}
