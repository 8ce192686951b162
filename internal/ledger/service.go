package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quorum/internal/logger"
	"quorum/internal/pkg/retry"
	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

var ledgerLog = logger.Named("ledger")

// Service 把 Apply 的结果以乐观并发（version 列 CAS）写回存储。
type Service struct {
	store  store.Store
	limits Limits
	policy retry.Policy
	now    func() time.Time
}

// NewService 构造记账服务。policy 控制 CAS 冲突后的重试。
func NewService(st store.Store, limits Limits, policy retry.Policy) *Service {
	return &Service{store: st, limits: limits, policy: policy, now: time.Now}
}

// Limits 返回模拟账户风控阈值。
func (s *Service) Limits() Limits { return s.limits }

// Snapshot 读取策略账本；不存在时返回 types.ErrConfigMissing。
func (s *Service) Snapshot(ctx context.Context, strategyID string) (types.Ledger, error) {
	l, err := s.store.Ledgers().Get(ctx, strategyID)
	if err != nil {
		return types.Ledger{}, storeErr("ledger "+strategyID, err)
	}
	return l, nil
}

// Record 对策略账本应用一次决策。风控拒绝与无持仓卖出以 info 级别记录并原样返回错误。
func (s *Service) Record(ctx context.Context, strategyID, instrument string, price decimal.Decimal, d types.Decision) (Outcome, error) {
	action := types.NormalizeAction(d.Action)
	if action.IsHold() || (!action.IsBuy() && !action.IsSell()) {
		return Outcome{}, nil
	}
	delta, err := s.timeDelta(ctx)
	if err != nil {
		return Outcome{}, err
	}
	trade := Trade{Instrument: instrument, Action: action, Quantity: d.Quantity, Price: price}
	out, err := s.mutate(ctx, strategyID, func(l types.Ledger) (Outcome, error) {
		trade.At = s.now()
		return Apply(l, trade, delta, s.limits)
	})
	switch {
	case err == nil:
		if out.Changed {
			logger.Journal("sim", map[string]any{
				"strategy":   strategyID,
				"action":     string(action),
				"instrument": instrument,
				"qty":        out.Executed.String(),
				"price":      price.String(),
				"cash":       out.Ledger.Cash.String(),
				"points":     out.PointsDelta.String(),
				"result":     out.Result,
			})
		}
	case errors.Is(err, types.ErrCapacityExceeded), errors.Is(err, types.ErrNothingToSell), errors.Is(err, ErrInvalidQuantity):
		ledgerLog.Infof("%s %s %s skipped: %v", strategyID, action, instrument, err)
	}
	return out, err
}

// Revalue 以 prices 重估组合价值并写回。
func (s *Service) Revalue(ctx context.Context, strategyID string, prices map[string]decimal.Decimal) (types.Ledger, error) {
	out, err := s.mutate(ctx, strategyID, func(l types.Ledger) (Outcome, error) {
		next := Revalue(l, prices)
		return Outcome{Ledger: next, Changed: !next.PortfolioValue.Equal(l.PortfolioValue)}, nil
	})
	return out.Ledger, err
}

// mutate 读快照 → 计算 → 事务内 CAS + 积分累加；版本冲突时退避重试。
func (s *Service) mutate(ctx context.Context, strategyID string, fn func(types.Ledger) (Outcome, error)) (Outcome, error) {
	var result Outcome
	err := retry.Do(ctx, s.policy, isConflict, func(ctx context.Context, attempt int) error {
		snapshot, err := s.Snapshot(ctx, strategyID)
		if err != nil {
			return err
		}
		out, err := fn(snapshot)
		result = out
		if err != nil || !out.Changed {
			return err
		}
		err = store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
			ok, err := uow.Ledgers().CompareAndSwap(ctx, out.Ledger, snapshot.Version)
			if err != nil {
				return storeErr("cas ledger "+strategyID, err)
			}
			if !ok {
				return types.ErrVersionConflict
			}
			if out.Result != ResultNone {
				if _, err := uow.Points().Add(ctx, strategyID, out.PointsDelta); err != nil {
					return storeErr("points "+strategyID, err)
				}
			}
			return nil
		})
		if errors.Is(err, types.ErrVersionConflict) {
			ledgerLog.Debugf("%s version %d conflict, attempt %d", strategyID, snapshot.Version, attempt)
			return err
		}
		if err != nil {
			return storeErr("commit "+strategyID, err)
		}
		result.Ledger.Version = snapshot.Version + 1
		return nil
	})
	return result, err
}

func (s *Service) timeDelta(ctx context.Context) (decimal.Decimal, error) {
	delta, err := s.store.TimeDelta().Get(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.NewFromInt(1), nil
	}
	if err != nil {
		return decimal.Zero, storeErr("time delta", err)
	}
	return delta, nil
}

func isConflict(err error) bool {
	return errors.Is(err, types.ErrVersionConflict)
}

// storeErr 把 NotFound 映射为 ErrConfigMissing，其余存储错误映射为 ErrStoreUnavailable。
func storeErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrStoreUnavailable) || errors.Is(err, types.ErrConfigMissing) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", types.ErrConfigMissing, what)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrStoreUnavailable, what, err)
}
