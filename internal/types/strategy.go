package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action 是策略给出的交易动作。
type Action string

const (
	ActionBuy        Action = "buy"
	ActionStrongBuy  Action = "strong buy"
	ActionSell       Action = "sell"
	ActionStrongSell Action = "strong sell"
	ActionHold       Action = "hold"
)

// NormalizeAction 统一大小写与空白，未知动作原样返回（小写）。
func NormalizeAction(a Action) Action {
	return Action(strings.ToLower(strings.Join(strings.Fields(string(a)), " ")))
}

// IsBuy reports whether the action belongs to the buy bucket.
func (a Action) IsBuy() bool {
	switch NormalizeAction(a) {
	case ActionBuy, ActionStrongBuy:
		return true
	}
	return false
}

// IsSell reports whether the action belongs to the sell bucket.
func (a Action) IsSell() bool {
	switch NormalizeAction(a) {
	case ActionSell, ActionStrongSell:
		return true
	}
	return false
}

func (a Action) IsHold() bool { return NormalizeAction(a) == ActionHold }

// Decision 是单个策略对某个标的的输出。
type Decision struct {
	Action   Action          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Holding 是模拟账户中的单个持仓。
type Holding struct {
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// TradeCounters 记录模拟成交的分类计数。
type TradeCounters struct {
	Total      int64 `json:"total_trades"`
	Successful int64 `json:"successful_trades"`
	Failed     int64 `json:"failed_trades"`
	Neutral    int64 `json:"neutral_trades"`
}

// Ledger 是某个策略模拟账户的完整快照。
type Ledger struct {
	StrategyID     string             `json:"strategy_id"`
	Cash           decimal.Decimal    `json:"cash"`
	PortfolioValue decimal.Decimal    `json:"portfolio_value"`
	Holdings       map[string]Holding `json:"holdings"`
	Counters       TradeCounters      `json:"counters"`
	Version        int64              `json:"version"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// HeldQuantity 返回某标的的持仓数量，不存在时为 0。
func (l Ledger) HeldQuantity(instrument string) decimal.Decimal {
	if h, ok := l.Holdings[instrument]; ok {
		return h.Quantity
	}
	return decimal.Zero
}

// Clone 深拷贝 holdings，避免调用方修改共享 map。
func (l Ledger) Clone() Ledger {
	out := l
	out.Holdings = make(map[string]Holding, len(l.Holdings))
	for k, v := range l.Holdings {
		out.Holdings[k] = v
	}
	return out
}

// PointsRecord 是策略累计积分。
type PointsRecord struct {
	StrategyID  string          `json:"strategy_id"`
	TotalPoints decimal.Decimal `json:"total_points"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RankRecord 是一次排名周期中单个策略的名次。
type RankRecord struct {
	StrategyID string          `json:"strategy_id"`
	Rank       int             `json:"rank"`
	EpochID    string          `json:"epoch_id"`
	Score      decimal.Decimal `json:"score"`
}

// CoefficientRecord maps a rank to its ensemble weight.
type CoefficientRecord struct {
	Rank   int             `json:"rank"`
	Weight decimal.Decimal `json:"weight"`
}

// IdealPeriodRecord 记录策略拉取历史数据时使用的周期。
type IdealPeriodRecord struct {
	StrategyID string `json:"strategy_id"`
	Window     string `json:"window"`
}
