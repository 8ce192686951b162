// Package ranking 在每个排名周期对策略模拟账户排序并写入名次。
package ranking

import (
	"sort"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Entry 是参与排名的单个策略及其排序键。
type Entry struct {
	StrategyID string
	Primary    decimal.Decimal // points>0 ? points·2 + portfolio : portfolio
	Secondary  int64           // successful − failed
	Tertiary   decimal.Decimal // cash
}

// NewEntry 由账本与积分计算排序键。
func NewEntry(l types.Ledger, p types.PointsRecord) Entry {
	primary := l.PortfolioValue
	if p.TotalPoints.IsPositive() {
		primary = p.TotalPoints.Mul(two).Add(l.PortfolioValue)
	}
	return Entry{
		StrategyID: l.StrategyID,
		Primary:    primary,
		Secondary:  l.Counters.Successful - l.Counters.Failed,
		Tertiary:   l.Cash,
	}
}

// Better 是全序比较：三个键依次降序，全部相等时按 strategy_id 升序。
func Better(a, b Entry) bool {
	if c := a.Primary.Cmp(b.Primary); c != 0 {
		return c > 0
	}
	if a.Secondary != b.Secondary {
		return a.Secondary > b.Secondary
	}
	if c := a.Tertiary.Cmp(b.Tertiary); c != 0 {
		return c > 0
	}
	return a.StrategyID < b.StrategyID
}

// Assign 排序并分配 1..N 名次。
func Assign(entries []Entry, epochID string) []types.RankRecord {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return Better(sorted[i], sorted[j]) })
	out := make([]types.RankRecord, 0, len(sorted))
	for i, e := range sorted {
		out = append(out, types.RankRecord{
			StrategyID: e.StrategyID,
			Rank:       i + 1,
			EpochID:    epochID,
			Score:      e.Primary,
		})
	}
	return out
}
