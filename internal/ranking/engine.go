package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quorum/internal/ledger"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/pkg/symbol"
	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var rankLog = logger.Named("ranking")

// Engine 执行排名周期：重估组合 → 排序 → 原子替换名次 → 清空暂存历史。
type Engine struct {
	store    store.Store
	ledgers  *ledger.Service
	prices   market.PriceOracle
	cache    market.SeriesCache
	reserved map[string]struct{}

	newEpochID func() string
	now        func() time.Time
}

// EpochResult 汇总一次排名周期。
type EpochResult struct {
	EpochID   string
	Ranks     []types.RankRecord
	Revalued  int
	StartedAt time.Time
	Duration  time.Duration
}

func NewEngine(st store.Store, ledgers *ledger.Service, prices market.PriceOracle, cache market.SeriesCache, reserved map[string]struct{}) *Engine {
	if reserved == nil {
		reserved = map[string]struct{}{}
	}
	return &Engine{
		store:      st,
		ledgers:    ledgers,
		prices:     prices,
		cache:      cache,
		reserved:   reserved,
		newEpochID: uuid.NewString,
		now:        time.Now,
	}
}

// RunEpoch 任一存储错误都会中止本周期，已有名次保持不变。
func (e *Engine) RunEpoch(ctx context.Context) (EpochResult, error) {
	res := EpochResult{EpochID: e.newEpochID(), StartedAt: e.now()}
	rankLog.Infof("epoch %s started", res.EpochID)

	revalued, err := e.RevalueAll(ctx)
	if err != nil {
		return res, fmt.Errorf("epoch %s revalue: %w", res.EpochID, err)
	}
	res.Revalued = revalued

	entries, err := e.collect(ctx)
	if err != nil {
		return res, fmt.Errorf("epoch %s collect: %w", res.EpochID, err)
	}
	res.Ranks = Assign(entries, res.EpochID)

	err = store.WithinTx(ctx, e.store, func(uow store.UnitOfWork) error {
		return uow.Ranks().Replace(ctx, res.Ranks)
	})
	if err != nil {
		return res, fmt.Errorf("epoch %s replace ranks: %w", res.EpochID, wrapStore(err))
	}

	if e.cache != nil {
		if err := e.cache.Purge(ctx); err != nil {
			rankLog.Warnf("epoch %s purge history cache failed: %v", res.EpochID, err)
		}
	}
	res.Duration = e.now().Sub(res.StartedAt)
	rankLog.Infof("epoch %s ranked %d strategies (revalued %d) in %s",
		res.EpochID, len(res.Ranks), res.Revalued, res.Duration.Truncate(time.Millisecond))
	return res, nil
}

// RevalueAll 用最新价格重估所有账本的组合价值，每个标的只取价一次。
// 格式非法的标的不计入价值；取价失败时按成本价计。
func (e *Engine) RevalueAll(ctx context.Context) (int, error) {
	ledgers, err := e.store.Ledgers().List(ctx)
	if err != nil {
		return 0, wrapStore(err)
	}
	instruments := make(map[string]struct{})
	for _, l := range ledgers {
		for inst := range l.Holdings {
			instruments[inst] = struct{}{}
		}
	}
	names := make([]string, 0, len(instruments))
	for inst := range instruments {
		names = append(names, inst)
	}
	sort.Strings(names)

	prices := make(map[string]decimal.Decimal, len(names))
	for _, inst := range names {
		if !symbol.ValidInstrument(inst) {
			rankLog.Warnf("skipping invalid instrument format: %s", inst)
			prices[inst] = decimal.Zero
			continue
		}
		if e.prices == nil {
			continue
		}
		p, err := e.prices.Latest(ctx, inst)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			rankLog.Warnf("price %s unavailable, valuing at cost: %v", inst, err)
			continue
		}
		prices[inst] = p
	}

	count := 0
	for _, l := range ledgers {
		if _, err := e.ledgers.Revalue(ctx, l.StrategyID, prices); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) collect(ctx context.Context) ([]Entry, error) {
	ledgers, err := e.store.Ledgers().List(ctx)
	if err != nil {
		return nil, wrapStore(err)
	}
	points, err := e.store.Points().List(ctx)
	if err != nil {
		return nil, wrapStore(err)
	}
	byID := make(map[string]types.PointsRecord, len(points))
	for _, p := range points {
		byID[p.StrategyID] = p
	}
	entries := make([]Entry, 0, len(ledgers))
	for _, l := range ledgers {
		if _, reserved := e.reserved[l.StrategyID]; reserved {
			continue
		}
		p, ok := byID[l.StrategyID]
		if !ok {
			rankLog.Warnf("strategy %s has no points record, not ranked", l.StrategyID)
			continue
		}
		entries = append(entries, NewEntry(l, p))
	}
	return entries, nil
}

func wrapStore(err error) error {
	if err == nil || errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
}
