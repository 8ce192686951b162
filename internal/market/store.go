package market

import (
	"context"
	"time"
)

// SeriesCache 是按 (instrument, window) 缓存历史序列的暂存库，在排名周期结束时清空。
type SeriesCache interface {
	Get(ctx context.Context, instrument, window string) (Series, time.Time, bool, error)
	Set(ctx context.Context, instrument, window string, series Series) error
	Purge(ctx context.Context) error
}
