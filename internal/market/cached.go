package market

import (
	"context"
	"time"

	"quorum/internal/logger"
	"quorum/internal/scheduler"
)

// CachedHistory 先查暂存库，过期（超过一个 window 周期）才回源拉取。
type CachedHistory struct {
	Inner HistoryProvider
	Cache SeriesCache
	Now   func() time.Time
}

func (c CachedHistory) Series(ctx context.Context, instrument, window string) (Series, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.Cache != nil {
		cached, fetchedAt, ok, err := c.Cache.Get(ctx, instrument, window)
		if err != nil {
			logger.Warnf("history cache read %s@%s failed: %v", instrument, window, err)
		} else if ok && fresh(fetchedAt, window, now()) {
			return cached, nil
		}
	}
	series, err := c.Inner.Series(ctx, instrument, window)
	if err != nil {
		return nil, err
	}
	if c.Cache != nil && len(series) > 0 {
		if err := c.Cache.Set(ctx, instrument, window, series); err != nil {
			logger.Warnf("history cache write %s@%s failed: %v", instrument, window, err)
		}
	}
	return series, nil
}

func fresh(fetchedAt time.Time, window string, now time.Time) bool {
	ttl, ok := scheduler.ParseIntervalDuration(window)
	if !ok {
		ttl = time.Minute
	}
	return now.Sub(fetchedAt) < ttl
}
