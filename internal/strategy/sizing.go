package strategy

import (
	"quorum/internal/market"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

var (
	maxPositionShare = decimal.NewFromFloat(0.10)
	sellFraction     = decimal.NewFromFloat(0.5)
)

// Size 把信号换算成整数数量。
// 买入：min(⌊0.1·组合/价格⌋, ⌊现金/价格⌋)；卖出：min(持仓, max(1, ⌊持仓·0.5⌋))。
func Size(in Input, action types.Action) decimal.Decimal {
	switch {
	case action.IsBuy():
		if !in.Price.IsPositive() {
			return decimal.Zero
		}
		byShare := maxPositionShare.Mul(in.PortfolioValue).Div(in.Price).Floor()
		byCash := in.Cash.Div(in.Price).Floor()
		q := decimal.Min(byShare, byCash)
		if q.IsNegative() {
			return decimal.Zero
		}
		return q
	case action.IsSell():
		if !in.Held.IsPositive() {
			return decimal.Zero
		}
		q := decimal.Max(decimal.NewFromInt(1), in.Held.Mul(sellFraction).Floor())
		return decimal.Min(in.Held, q)
	}
	return decimal.Zero
}

// Signal 是只看行情的指标信号，由 Sized 包装成 Func。
type Signal func(s market.Series) types.Action

// Sized 把信号与统一的仓位规则组合为 Func。数据不足时返回 hold。
func Sized(minBars int, sig Signal) Func {
	return func(in Input) (types.Action, decimal.Decimal) {
		if len(in.Series) < minBars {
			return types.ActionHold, decimal.Zero
		}
		action := types.NormalizeAction(sig(in.Series))
		if !action.IsBuy() && !action.IsSell() {
			return types.ActionHold, decimal.Zero
		}
		return action, Size(in, action)
	}
}
