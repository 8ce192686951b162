// Package coefficient 把策略名次映射为集成投票权重。
package coefficient

import (
	"context"
	"errors"
	"fmt"

	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// Mapper 返回名次对应的权重；没有系数的名次权重为 0。
type Mapper interface {
	Weight(ctx context.Context, rank int) (decimal.Decimal, error)
}

// StoreMapper 直接读取 rank_coefficients 表。
type StoreMapper struct {
	Repo store.CoefficientRepository
}

func NewStoreMapper(st store.Store) StoreMapper {
	return StoreMapper{Repo: st.Coefficients()}
}

func (m StoreMapper) Weight(ctx context.Context, rank int) (decimal.Decimal, error) {
	if rank <= 0 {
		return decimal.Zero, nil
	}
	w, err := m.Repo.Get(ctx, rank)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: coefficient for rank %d: %v", types.ErrStoreUnavailable, rank, err)
	}
	return w, nil
}

// TableMapper 是内存中的系数表，主要供离线计算与测试使用。
type TableMapper map[int]decimal.Decimal

func (m TableMapper) Weight(_ context.Context, rank int) (decimal.Decimal, error) {
	if w, ok := m[rank]; ok {
		return w, nil
	}
	return decimal.Zero, nil
}
