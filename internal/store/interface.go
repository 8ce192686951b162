package store

import (
	"context"
	"errors"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// ErrNotFound 表示按主键查找的记录不存在。
var ErrNotFound = errors.New("record not found")

// Repositories groups every repository exposed by the store.
type Repositories interface {
	Ledgers() LedgerRepository
	Points() PointsRepository
	TimeDelta() TimeDeltaRepository
	Ranks() RankRepository
	Coefficients() CoefficientRepository
	IdealPeriods() IdealPeriodRepository
	Limits() PositionLimitRepository
	Holdings() LiveHoldingRepository
	Orders() OrderRepository
	Snapshots() SnapshotRepository
}

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Repositories
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error
}

// Store is the entry point for database access. The embedded repositories
// run outside any transaction.
type Store interface {
	Repositories
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// LedgerRepository handles strategy ledger persistence.
type LedgerRepository interface {
	Get(ctx context.Context, strategyID string) (types.Ledger, error)
	List(ctx context.Context) ([]types.Ledger, error)
	// Create inserts a ledger if none exists for the strategy; existing rows are left untouched.
	Create(ctx context.Context, ledger types.Ledger) (bool, error)
	// CompareAndSwap writes next only when the stored version still equals expected.
	// On success the stored version becomes expected+1.
	CompareAndSwap(ctx context.Context, next types.Ledger, expected int64) (bool, error)
}

// PointsRepository handles cumulative strategy points.
type PointsRepository interface {
	Get(ctx context.Context, strategyID string) (types.PointsRecord, error)
	List(ctx context.Context) ([]types.PointsRecord, error)
	Ensure(ctx context.Context, strategyID string, initial decimal.Decimal) error
	Add(ctx context.Context, strategyID string, delta decimal.Decimal) (decimal.Decimal, error)
}

// TimeDeltaRepository handles the singleton points multiplier.
type TimeDeltaRepository interface {
	Get(ctx context.Context) (decimal.Decimal, error)
	Ensure(ctx context.Context, initial decimal.Decimal) error
	Advance(ctx context.Context, step decimal.Decimal) (decimal.Decimal, error)
}

// RankRepository handles per-epoch rank records.
type RankRepository interface {
	List(ctx context.Context) ([]types.RankRecord, error)
	Get(ctx context.Context, strategyID string) (types.RankRecord, error)
	// Replace drops every existing rank and inserts records.
	Replace(ctx context.Context, records []types.RankRecord) error
}

// CoefficientRepository handles the rank to weight curve.
type CoefficientRepository interface {
	List(ctx context.Context) ([]types.CoefficientRecord, error)
	Get(ctx context.Context, rank int) (decimal.Decimal, error)
	Replace(ctx context.Context, records []types.CoefficientRecord) error
}

// IdealPeriodRepository handles strategy lookback windows.
type IdealPeriodRepository interface {
	Get(ctx context.Context, strategyID string) (types.IdealPeriodRecord, error)
	List(ctx context.Context) ([]types.IdealPeriodRecord, error)
	Upsert(ctx context.Context, rec types.IdealPeriodRecord) error
}

// PositionLimitRepository handles live stop-loss / take-profit levels.
type PositionLimitRepository interface {
	Get(ctx context.Context, instrument string) (types.PositionLimit, error)
	List(ctx context.Context) ([]types.PositionLimit, error)
	Upsert(ctx context.Context, limit types.PositionLimit) error
	Delete(ctx context.Context, instrument string) error
}

// LiveHoldingRepository handles the live account position mirror.
type LiveHoldingRepository interface {
	Get(ctx context.Context, instrument string) (decimal.Decimal, error)
	List(ctx context.Context) ([]types.LiveHolding, error)
	// Adjust adds delta to the held quantity and deletes the row once it reaches zero.
	Adjust(ctx context.Context, instrument string, delta decimal.Decimal) (decimal.Decimal, error)
}

// OrderRepository handles the live order audit log.
type OrderRepository interface {
	Save(ctx context.Context, order *types.LiveOrder) error
	ListRecent(ctx context.Context, limit int) ([]types.LiveOrder, error)
}

// SnapshotRepository handles live portfolio snapshots.
type SnapshotRepository interface {
	Insert(ctx context.Context, snap types.PortfolioSnapshot) error
	ListRecent(ctx context.Context, limit int) ([]types.PortfolioSnapshot, error)
}

// WithinTx runs fn inside a UnitOfWork, committing when fn returns nil.
func WithinTx(ctx context.Context, st Store, fn func(uow UnitOfWork) error) error {
	uow, err := st.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
