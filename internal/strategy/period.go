package strategy

import (
	"context"
	"math"

	"quorum/internal/logger"
	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

// DefaultPeriods 是 SelectPeriod 的候选周期。
var DefaultPeriods = []string{"1m", "5m", "15m", "1h", "1d"}

// FallbackPeriod 在没有可用历史时使用。
const FallbackPeriod = "1d"

// PeriodScore = 0.7·stddev(close) + 0.3·|last/first − 1|。
func PeriodScore(s market.Series) (float64, bool) {
	closes := s.Closes()
	if len(closes) < 2 || closes[0] == 0 {
		return 0, false
	}
	std := last(talib.StdDev(closes, len(closes), 1))
	trend := math.Abs(closes[len(closes)-1]-closes[0]) / closes[0]
	if anyNaN(std, trend) {
		return 0, false
	}
	return std*0.7 + trend*0.3, true
}

// SelectPeriod 为新策略挑选历史周期：取评分最低的周期，全部失败时返回 1d。
func SelectPeriod(ctx context.Context, history market.HistoryProvider, instrument string, periods []string) string {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}
	best, bestScore := FallbackPeriod, math.Inf(1)
	for _, p := range periods {
		series, err := history.Series(ctx, instrument, p)
		if err != nil {
			logger.Warnf("period selector: %s %s: %v", instrument, p, err)
			continue
		}
		score, ok := PeriodScore(series)
		if !ok {
			continue
		}
		if score < bestScore {
			best, bestScore = p, score
		}
	}
	return best
}
