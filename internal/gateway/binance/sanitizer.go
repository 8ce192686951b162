package binance

import (
	"time"

	"quorum/internal/market"
)

const DefaultKlineGrace = 10 * time.Second

// dropUnclosedKline drops the last element if it is still in-progress.
// Binance returns the current, not-yet-closed candle as the last kline.
//
// Candle times are expected to be in milliseconds since epoch.
func dropUnclosedKline(klines market.Series, interval time.Duration, now time.Time, grace time.Duration) market.Series {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	if grace < 0 {
		grace = 0
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	cutoffMs := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoffMs {
		return klines[:len(klines)-1]
	}
	return klines
}
