package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"quorum/internal/market"
)

// MemoryCache 是按 key 分片的进程内序列缓存，供测试与无盘部署使用。
type MemoryCache struct {
	shards []seriesShard
	nowFn  func() time.Time
}

type seriesEntry struct {
	series    market.Series
	fetchedAt time.Time
}

type seriesShard struct {
	mu   sync.RWMutex
	data map[string]seriesEntry
}

const defaultShardCount = 32

func NewMemoryCache() *MemoryCache {
	return newMemoryCache(defaultShardCount)
}

func newMemoryCache(shards int) *MemoryCache {
	if shards <= 0 {
		shards = 1
	}
	out := &MemoryCache{
		shards: make([]seriesShard, shards),
		nowFn:  time.Now,
	}
	for i := range out.shards {
		out.shards[i] = seriesShard{data: make(map[string]seriesEntry)}
	}
	return out
}

func (s *MemoryCache) shardFor(key string) *seriesShard {
	idx := hashKey(key) % uint32(len(s.shards))
	return &s.shards[idx]
}

func key(instrument, window string) string { return instrument + "@" + window }

func (s *MemoryCache) Get(ctx context.Context, instrument, window string) (market.Series, time.Time, bool, error) {
	k := key(instrument, window)
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.data[k]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	out := make(market.Series, len(entry.series))
	copy(out, entry.series)
	return out, entry.fetchedAt, true, nil
}

func (s *MemoryCache) Set(ctx context.Context, instrument, window string, series market.Series) error {
	if instrument == "" || window == "" {
		return errors.New("instrument/window 不能为空")
	}
	k := key(instrument, window)
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	dst := make(market.Series, len(series))
	copy(dst, series)
	sh.data[k] = seriesEntry{series: dst, fetchedAt: s.nowFn()}
	return nil
}

func (s *MemoryCache) Purge(ctx context.Context) error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.data = make(map[string]seriesEntry)
		sh.mu.Unlock()
	}
	return nil
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
