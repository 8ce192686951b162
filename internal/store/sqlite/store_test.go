package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"quorum/internal/store"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	st, err := NewSqliteStore(filepath.Join(t.TempDir(), "quorum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLedgerCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.Ledgers().Create(ctx, types.Ledger{
		StrategyID:     "rsi",
		Cash:           decimal.NewFromInt(50000),
		PortfolioValue: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, err := st.Ledgers().Create(ctx, types.Ledger{StrategyID: "rsi", Cash: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, again, "existing ledger must not be overwritten")

	l, err := st.Ledgers().Get(ctx, "rsi")
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Version)
	assert.True(t, l.Cash.Equal(decimal.NewFromInt(50000)))

	next := l.Clone()
	next.Cash = decimal.NewFromInt(45000)
	next.Holdings["BTCUSD"] = types.Holding{Quantity: decimal.NewFromInt(50), AverageCost: decimal.NewFromInt(100)}
	next.Counters.Total = 1

	ok, err := st.Ledgers().CompareAndSwap(ctx, next, l.Version)
	require.NoError(t, err)
	assert.True(t, ok)

	stale, err := st.Ledgers().CompareAndSwap(ctx, next, l.Version)
	require.NoError(t, err)
	assert.False(t, stale, "stale version must be rejected")

	got, err := st.Ledgers().Get(ctx, "rsi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.Cash.Equal(decimal.NewFromInt(45000)))
	assert.True(t, got.HeldQuantity("BTCUSD").Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(1), got.Counters.Total)
}

func TestLedgerGetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Ledgers().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPointsAndTimeDelta(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Points().Ensure(ctx, "macd", decimal.Zero))
	total, err := st.Points().Add(ctx, "macd", decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", total.String())
	total, err = st.Points().Add(ctx, "macd", decimal.NewFromInt(-1))
	require.NoError(t, err)
	assert.Equal(t, "1.5", total.String())

	require.NoError(t, st.TimeDelta().Ensure(ctx, decimal.NewFromInt(1)))
	require.NoError(t, st.TimeDelta().Ensure(ctx, decimal.NewFromInt(7)))
	v, err := st.TimeDelta().Advance(ctx, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, "1.01", v.String())
	v, err = st.TimeDelta().Advance(ctx, decimal.NewFromInt(-5))
	require.NoError(t, err)
	assert.Equal(t, "1.01", v.String(), "time delta never decreases")
}

func TestRankReplaceInTransaction(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	first := []types.RankRecord{
		{StrategyID: "a", Rank: 1, EpochID: "e1"},
		{StrategyID: "b", Rank: 2, EpochID: "e1"},
	}
	require.NoError(t, store.WithinTx(ctx, st, func(uow store.UnitOfWork) error {
		return uow.Ranks().Replace(ctx, first)
	}))

	second := []types.RankRecord{{StrategyID: "b", Rank: 1, EpochID: "e2"}}
	require.NoError(t, store.WithinTx(ctx, st, func(uow store.UnitOfWork) error {
		return uow.Ranks().Replace(ctx, second)
	}))

	got, err := st.Ranks().List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].StrategyID)
	assert.Equal(t, "e2", got[0].EpochID)
}

func TestRankReplaceRollback(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.Ranks().Replace(ctx, []types.RankRecord{{StrategyID: "a", Rank: 1}}))

	err := store.WithinTx(ctx, st, func(uow store.UnitOfWork) error {
		if err := uow.Ranks().Replace(ctx, nil); err != nil {
			return err
		}
		return types.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	got, err := st.Ranks().List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed epoch must leave prior ranks intact")
}

func TestLiveHoldingAdjustDropsLimitAtZero(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	qty, err := st.Holdings().Adjust(ctx, "AAPL", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "10", qty.String())
	require.NoError(t, st.Limits().Upsert(ctx, types.PositionLimit{
		Instrument:      "AAPL",
		StopLossPrice:   decimal.RequireFromString("97"),
		TakeProfitPrice: decimal.RequireFromString("105"),
	}))

	qty, err = st.Holdings().Adjust(ctx, "AAPL", decimal.NewFromInt(-4))
	require.NoError(t, err)
	assert.Equal(t, "6", qty.String())

	qty, err = st.Holdings().Adjust(ctx, "AAPL", decimal.NewFromInt(-6))
	require.NoError(t, err)
	assert.True(t, qty.IsZero())

	holdings, err := st.Holdings().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, holdings)
	_, err = st.Limits().Get(ctx, "AAPL")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrdersAndSnapshots(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	order := &types.LiveOrder{
		ClientOrderID: "c-1",
		Instrument:    "AAPL",
		Side:          types.SideBuy,
		Quantity:      decimal.NewFromInt(3),
		Price:         decimal.RequireFromString("101.5"),
		Status:        "submitted",
	}
	require.NoError(t, st.Orders().Save(ctx, order))
	order.Status = "filled"
	order.BrokerOrderID = "b-1"
	require.NoError(t, st.Orders().Save(ctx, order))

	orders, err := st.Orders().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "filled", orders[0].Status)
	assert.Equal(t, "b-1", orders[0].BrokerOrderID)

	require.NoError(t, st.Snapshots().Insert(ctx, types.PortfolioSnapshot{
		Cash:           decimal.NewFromInt(20000),
		PortfolioValue: decimal.NewFromInt(51000),
		ReturnPct:      decimal.RequireFromString("1.0083"),
	}))
	snaps, err := st.Snapshots().ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].PortfolioValue.Equal(decimal.NewFromInt(51000)))
}
