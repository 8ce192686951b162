package coefficient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// Weights 缓存每个策略在当前交易时段的权重，按时段刷新一次。
type Weights struct {
	store    store.Store
	mapper   Mapper
	reserved map[string]struct{}

	mu          sync.RWMutex
	byStrategy  map[string]decimal.Decimal
	refreshedAt time.Time
	segment     string
}

func NewWeights(st store.Store, mapper Mapper, reserved map[string]struct{}) *Weights {
	if reserved == nil {
		reserved = map[string]struct{}{}
	}
	return &Weights{
		store:      st,
		mapper:     mapper,
		reserved:   reserved,
		byStrategy: map[string]decimal.Decimal{},
	}
}

// Refresh 按最新名次重新计算所有非保留策略的权重。
func (w *Weights) Refresh(ctx context.Context) error {
	ranks, err := w.store.Ranks().List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list ranks: %v", types.ErrStoreUnavailable, err)
	}
	next := make(map[string]decimal.Decimal, len(ranks))
	for _, r := range ranks {
		if _, ok := w.reserved[r.StrategyID]; ok {
			continue
		}
		weight, err := w.mapper.Weight(ctx, r.Rank)
		if err != nil {
			return err
		}
		next[r.StrategyID] = weight
	}
	w.mu.Lock()
	w.byStrategy = next
	w.refreshedAt = time.Now()
	w.mu.Unlock()
	curveLog.Infof("coefficient weights refreshed for %d strategies", len(next))
	return nil
}

// RefreshSegment 只在 segment 与上次不同时刷新，返回是否刷新过。
func (w *Weights) RefreshSegment(ctx context.Context, segment string) (bool, error) {
	w.mu.RLock()
	same := segment != "" && segment == w.segment
	w.mu.RUnlock()
	if same {
		return false, nil
	}
	if err := w.Refresh(ctx); err != nil {
		return false, err
	}
	w.mu.Lock()
	w.segment = segment
	w.mu.Unlock()
	return true, nil
}

// Weight 未排名或保留策略返回 0。
func (w *Weights) Weight(strategyID string) decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if v, ok := w.byStrategy[strategyID]; ok {
		return v
	}
	return decimal.Zero
}

func (w *Weights) Snapshot() map[string]decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(w.byStrategy))
	for k, v := range w.byStrategy {
		out[k] = v
	}
	return out
}

func (w *Weights) RefreshedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.refreshedAt
}
