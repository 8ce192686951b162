package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quorum/internal/pkg/retry"
	"quorum/internal/store/sqlite"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sqlite.SqliteStore) {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	policy := retry.Policy{MaxAttempts: 50, Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 1.5, Jitter: true}
	return NewService(st, DefaultLimits(), policy), st
}

func seedLedger(t *testing.T, st *sqlite.SqliteStore, id string, cash, portfolio string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.Ledgers().Create(ctx, types.Ledger{StrategyID: id, Cash: dec(cash), PortfolioValue: dec(portfolio)})
	require.NoError(t, err)
	require.NoError(t, st.Points().Ensure(ctx, id, decimal.Zero))
}

func TestRecordPersistsBuyThenSell(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedLedger(t, st, "rsi", "50000", "500000")
	require.NoError(t, st.TimeDelta().Ensure(ctx, dec("1.5")))

	_, err := svc.Record(ctx, "rsi", "BTCUSD", dec("100"), types.Decision{Action: types.ActionBuy, Quantity: dec("50")})
	require.NoError(t, err)
	out, err := svc.Record(ctx, "rsi", "BTCUSD", dec("110"), types.Decision{Action: "Sell", Quantity: dec("20")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Ledger.Version)

	l, err := st.Ledgers().Get(ctx, "rsi")
	require.NoError(t, err)
	assert.True(t, l.Cash.Equal(dec("47200")))
	assert.True(t, l.HeldQuantity("BTCUSD").Equal(dec("30")))
	assert.Equal(t, int64(2), l.Counters.Total)
	assert.Equal(t, int64(1), l.Counters.Successful)

	p, err := st.Points().Get(ctx, "rsi")
	require.NoError(t, err)
	assert.True(t, p.TotalPoints.Equal(dec("3")), "points scale with time delta: %s", p.TotalPoints)
}

func TestRecordHoldAndRejectionsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedLedger(t, st, "macd", "16000", "100000")

	_, err := svc.Record(ctx, "macd", "AAPL", dec("100"), types.Decision{Action: types.ActionHold, Quantity: dec("3")})
	require.NoError(t, err)
	_, err = svc.Record(ctx, "macd", "AAPL", dec("100"), types.Decision{Action: types.ActionBuy, Quantity: dec("20")})
	assert.ErrorIs(t, err, types.ErrCapacityExceeded)
	_, err = svc.Record(ctx, "macd", "AAPL", dec("100"), types.Decision{Action: types.ActionSell, Quantity: dec("1")})
	assert.ErrorIs(t, err, types.ErrNothingToSell)

	l, err := st.Ledgers().Get(ctx, "macd")
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Version)
}

func TestRecordMissingLedger(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Record(context.Background(), "ghost", "AAPL", dec("1"), types.Decision{Action: types.ActionBuy, Quantity: dec("1")})
	assert.ErrorIs(t, err, types.ErrConfigMissing)
}

func TestConcurrentRecordsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedLedger(t, st, "ensemble", "1000000", "100000000")

	instruments := []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOG", "META", "TSLA", "AMD"}
	var wg sync.WaitGroup
	errs := make(chan error, len(instruments))
	for _, inst := range instruments {
		wg.Add(1)
		go func(inst string) {
			defer wg.Done()
			_, err := svc.Record(ctx, "ensemble", inst, dec("100"), types.Decision{Action: types.ActionBuy, Quantity: dec("10")})
			errs <- err
		}(inst)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	l, err := st.Ledgers().Get(ctx, "ensemble")
	require.NoError(t, err)
	assert.Len(t, l.Holdings, len(instruments))
	assert.Equal(t, int64(len(instruments)), l.Counters.Total)
	assert.Equal(t, int64(len(instruments)), l.Version)
	assert.True(t, l.Cash.Equal(dec("992000")), "cash=%s", l.Cash)
}

func TestRevaluePersistsPortfolioValue(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedLedger(t, st, "bb", "50000", "500000")
	_, err := svc.Record(ctx, "bb", "AAPL", dec("100"), types.Decision{Action: types.ActionBuy, Quantity: dec("10")})
	require.NoError(t, err)

	l, err := svc.Revalue(ctx, "bb", map[string]decimal.Decimal{"AAPL": dec("150")})
	require.NoError(t, err)
	assert.True(t, l.PortfolioValue.Equal(dec("50500")), "pv=%s", l.PortfolioValue)

	stored, err := st.Ledgers().Get(ctx, "bb")
	require.NoError(t, err)
	assert.True(t, stored.PortfolioValue.Equal(dec("50500")))
}
