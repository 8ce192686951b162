package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quorum/internal/ledger"
	"quorum/internal/market"
	"quorum/internal/pkg/retry"
	"quorum/internal/ranking"
	"quorum/internal/risk"
	"quorum/internal/store"
	"quorum/internal/store/sqlite"
	"quorum/internal/strategy"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

type statusSeq struct {
	seq []market.Status
	i   int
}

func (s *statusSeq) Poll(context.Context) (market.Status, error) {
	if s.i >= len(s.seq) {
		return market.StatusClosed, nil
	}
	st := s.seq[s.i]
	s.i++
	if st == market.StatusError {
		return st, errors.New("status feed down")
	}
	return st, nil
}

type countingRanker struct {
	calls int
	fail  int
}

func (r *countingRanker) RunEpoch(context.Context) (ranking.EpochResult, error) {
	r.calls++
	if r.calls <= r.fail {
		return ranking.EpochResult{}, types.ErrStoreUnavailable
	}
	return ranking.EpochResult{EpochID: "e"}, nil
}

type staticWeights struct {
	weights  map[string]decimal.Decimal
	segments []string
}

func (w *staticWeights) RefreshSegment(_ context.Context, segment string) (bool, error) {
	if n := len(w.segments); n > 0 && w.segments[n-1] == segment {
		return false, nil
	}
	w.segments = append(w.segments, segment)
	return true, nil
}

func (w *staticWeights) Weight(id string) decimal.Decimal { return w.weights[id] }

type fakeBroker struct {
	mu     sync.Mutex
	cash   decimal.Decimal
	pv     decimal.Decimal
	orders []risk.OrderRequest
}

func (b *fakeBroker) Account(context.Context) (risk.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return risk.Account{Cash: b.cash, PortfolioValue: b.pv}, nil
}

func (b *fakeBroker) SubmitOrder(_ context.Context, req risk.OrderRequest) (risk.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, req)
	notional := req.Quantity.Mul(req.Price)
	if req.Side == types.SideBuy {
		b.cash = b.cash.Sub(notional)
	} else {
		b.cash = b.cash.Add(notional)
	}
	return risk.Receipt{BrokerOrderID: "paper", Status: "filled"}, nil
}

func newStore(t *testing.T) *sqlite.SqliteStore {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEpochEdgeTriggeredOncePerClose(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.TimeDelta().Ensure(ctx, dec(1)))
	ranker := &countingRanker{}
	o := New(Deps{
		Strategies:    strategy.NewRegistry(),
		Status:        &statusSeq{seq: []market.Status{"open", "open", "error", "closed", "closed", "early_hours", "closed", "closed", "open"}},
		Store:         st,
		Ranking:       ranker,
		TimeDeltaStep: dec(0.01),
	})
	for i := 0; i < 9; i++ {
		o.Step(ctx)
	}
	assert.Equal(t, 2, ranker.calls)
	assert.EqualValues(t, 2, o.Epochs())

	delta, err := st.TimeDelta().Get(ctx)
	require.NoError(t, err)
	assert.True(t, delta.Equal(dec(1.02)), "got %s", delta)
}

func TestEpochRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	ranker := &countingRanker{fail: 1}
	o := New(Deps{
		Strategies:    strategy.NewRegistry(),
		Status:        &statusSeq{seq: []market.Status{"open", "closed", "closed", "closed"}},
		Store:         st,
		Ranking:       ranker,
		TimeDeltaStep: dec(0.01),
	})
	for i := 0; i < 4; i++ {
		o.Step(ctx)
	}
	assert.Equal(t, 2, ranker.calls)
	assert.EqualValues(t, 1, o.Epochs())
}

func TestRequestedEpochRunsOnNextStep(t *testing.T) {
	ctx := context.Background()
	ranker := &countingRanker{}
	o := New(Deps{
		Strategies: strategy.NewRegistry(),
		Status:     &statusSeq{seq: []market.Status{"closed", "closed", "closed"}},
		Store:      newStore(t),
		Ranking:    ranker,
	})
	o.Step(ctx)
	assert.Equal(t, 0, ranker.calls)
	o.RequestEpoch()
	o.Step(ctx)
	o.Step(ctx)
	assert.Equal(t, 1, ranker.calls)
}

// flakyDeltaStore 让 TimeDelta().Advance 先失败 failures 次。
type flakyDeltaStore struct {
	store.Store
	failures int
}

func (s *flakyDeltaStore) TimeDelta() store.TimeDeltaRepository {
	return &flakyDelta{TimeDeltaRepository: s.Store.TimeDelta(), s: s}
}

type flakyDelta struct {
	store.TimeDeltaRepository
	s *flakyDeltaStore
}

func (d *flakyDelta) Advance(ctx context.Context, step decimal.Decimal) (decimal.Decimal, error) {
	if d.s.failures > 0 {
		d.s.failures--
		return decimal.Zero, types.ErrStoreUnavailable
	}
	return d.TimeDeltaRepository.Advance(ctx, step)
}

func TestTimeDeltaAdvanceRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.TimeDelta().Ensure(ctx, dec(1)))
	ranker := &countingRanker{}
	o := New(Deps{
		Strategies:    strategy.NewRegistry(),
		Status:        &statusSeq{seq: []market.Status{"open", "closed", "closed", "closed"}},
		Store:         &flakyDeltaStore{Store: st, failures: 1},
		Ranking:       ranker,
		TimeDeltaStep: dec(0.01),
	})
	o.Step(ctx)
	o.Step(ctx)
	delta, err := st.TimeDelta().Get(ctx)
	require.NoError(t, err)
	assert.True(t, delta.Equal(dec(1)), "advance failed, got %s", delta)

	o.Step(ctx)
	o.Step(ctx)
	assert.Equal(t, 1, ranker.calls, "ranking is not rerun for a failed advance")
	delta, err = st.TimeDelta().Get(ctx)
	require.NoError(t, err)
	assert.True(t, delta.Equal(dec(1.01)), "got %s", delta)
}

func TestCloseEdgeAndRequestShareOneEpoch(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.TimeDelta().Ensure(ctx, dec(1)))
	ranker := &countingRanker{}
	o := New(Deps{
		Strategies:    strategy.NewRegistry(),
		Status:        &statusSeq{seq: []market.Status{"open", "closed", "closed"}},
		Store:         st,
		Ranking:       ranker,
		TimeDeltaStep: dec(0.01),
	})
	o.Step(ctx)
	o.RequestEpoch()
	o.Step(ctx)
	o.Step(ctx)
	assert.Equal(t, 1, ranker.calls)
	assert.EqualValues(t, 1, o.Epochs())
	delta, err := st.TimeDelta().Get(ctx)
	require.NoError(t, err)
	assert.True(t, delta.Equal(dec(1.01)), "got %s", delta)
}

func alwaysBuy(in strategy.Input) (types.Action, decimal.Decimal) {
	return types.ActionBuy, strategy.Size(in, types.ActionBuy)
}

func alwaysSell(in strategy.Input) (types.Action, decimal.Decimal) {
	return types.ActionSell, strategy.Size(in, types.ActionSell)
}

type cycleFixture struct {
	o      *Orchestrator
	st     *sqlite.SqliteStore
	broker *fakeBroker
	status *statusSeq
}

func newCycleFixture(t *testing.T, statuses ...market.Status) cycleFixture {
	t.Helper()
	ctx := context.Background()
	st := newStore(t)
	reg := strategy.NewRegistry()
	reg.MustRegister("buyer", alwaysBuy)
	reg.MustRegister("seller", alwaysSell)
	reg.MustRegister("test", alwaysBuy)
	reg.MustRegister("orphan", alwaysBuy)

	for _, id := range []string{"buyer", "seller", "test", "orphan"} {
		_, err := st.Ledgers().Create(ctx, types.Ledger{StrategyID: id, Cash: dec(50000), PortfolioValue: dec(50000)})
		require.NoError(t, err)
		require.NoError(t, st.Points().Ensure(ctx, id, decimal.Zero))
	}
	for _, id := range []string{"buyer", "seller", "test"} {
		require.NoError(t, st.IdealPeriods().Upsert(ctx, types.IdealPeriodRecord{StrategyID: id, Window: "1d"}))
	}
	require.NoError(t, st.TimeDelta().Ensure(ctx, dec(1)))

	prices := map[string]decimal.Decimal{"AAPL": dec(130), "BTC/USD": dec(30000)}
	broker := &fakeBroker{cash: dec(40000), pv: dec(100000)}
	live := risk.NewDispatcher(risk.Config{
		ReserveFloor:     dec(15000),
		ConcentrationCap: dec(0.10),
		StopLossPct:      dec(0.03),
		TakeProfitPct:    dec(0.05),
		BaselineValue:    dec(100000),
	}, broker, st, nil)

	status := &statusSeq{seq: statuses}
	o := New(Deps{
		Strategies: reg,
		Reserved:   map[string]struct{}{"test": {}},
		Prices: market.PriceFunc(func(_ context.Context, inst string) (decimal.Decimal, error) {
			return prices[inst], nil
		}),
		History: market.HistoryFunc(func(context.Context, string, string) (market.Series, error) {
			return market.Series{{Close: 1}, {Close: 2}}, nil
		}),
		Status:   status,
		Universe: market.StaticUniverse{Symbols: []string{"AAPL", "BTC/USD"}},
		Store:    st,
		Ledgers:  ledger.NewService(st, ledger.DefaultLimits(), retry.Policy{MaxAttempts: 5, Min: time.Millisecond, Max: time.Millisecond}),
		Weights: &staticWeights{weights: map[string]decimal.Decimal{
			"buyer": dec(3), "seller": dec(1), "test": dec(100),
		}},
		Live:           live,
		ActiveInterval: time.Minute,
		QuietInterval:  30 * time.Second,
	})
	return cycleFixture{o: o, st: st, broker: broker, status: status}
}

func TestOpenCycleSimulatesFusesAndDispatches(t *testing.T) {
	ctx := context.Background()
	f := newCycleFixture(t, market.StatusOpen)

	wait := f.o.Step(ctx)
	assert.Equal(t, time.Minute, wait)

	report := f.o.LastCycle()
	require.Len(t, report.Instruments, 2)
	aapl := report.Instruments[0]
	assert.Equal(t, "AAPL", aapl.Instrument)
	require.Len(t, aapl.Votes, 2, "reserved and unconfigured strategies do not vote")
	assert.Equal(t, types.ActionBuy, aapl.Fused.Action)
	assert.True(t, aapl.Fused.Quantity.Equal(dec(76)), "got %s", aapl.Fused.Quantity)
	assert.Contains(t, aapl.Skipped, "orphan")
	require.NotNil(t, aapl.Verdict)
	assert.Equal(t, risk.KindQueued, aapl.Verdict.Kind)

	btc := report.Instruments[1]
	require.NotNil(t, btc.Verdict)
	assert.Equal(t, risk.KindRejected, btc.Verdict.Kind)

	require.NotNil(t, report.Drain)
	require.Len(t, report.Drain.Filled, 1)
	require.Len(t, f.broker.orders, 1)
	assert.Equal(t, "AAPL", f.broker.orders[0].Instrument)
	require.NotNil(t, report.Snapshot)

	held, err := f.st.Holdings().Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, held.Equal(dec(76)))
	limit, err := f.st.Limits().Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, limit.StopLossPrice.Equal(dec(126.1)))

	buyer, err := f.st.Ledgers().Get(ctx, "buyer")
	require.NoError(t, err)
	assert.True(t, buyer.HeldQuantity("AAPL").Equal(dec(38)))
	reserved, err := f.st.Ledgers().Get(ctx, "test")
	require.NoError(t, err)
	assert.True(t, reserved.HeldQuantity("AAPL").Equal(dec(38)), "reserved strategies still trade in simulation")
	orphan, err := f.st.Ledgers().Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Empty(t, orphan.Holdings)
}

func TestClosedCycleOnlyContinuousInstruments(t *testing.T) {
	ctx := context.Background()
	f := newCycleFixture(t, market.StatusClosed)
	f.o.Step(ctx)
	report := f.o.LastCycle()
	require.Len(t, report.Instruments, 1)
	assert.Equal(t, "BTC/USD", report.Instruments[0].Instrument)
	assert.Equal(t, market.StatusClosed, report.Status)
}

func TestErrorStatusSleepsQuietly(t *testing.T) {
	f := newCycleFixture(t, market.StatusError)
	assert.Equal(t, 30*time.Second, f.o.Step(context.Background()))
	assert.True(t, f.o.LastCycle().StartedAt.IsZero())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newCycleFixture(t, market.StatusError)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.o.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

// closingBroker 在成交卖单后关闭存储，模拟下单过程中数据库失效。
type closingBroker struct {
	*fakeBroker
	st *sqlite.SqliteStore
}

func (b *closingBroker) SubmitOrder(ctx context.Context, req risk.OrderRequest) (risk.Receipt, error) {
	receipt, err := b.fakeBroker.SubmitOrder(ctx, req)
	if req.Side == types.SideSell {
		_ = b.st.Close()
	}
	return receipt, err
}

func buyFirstSellSecond(in strategy.Input) (types.Action, decimal.Decimal) {
	if in.Instrument == "ZZZ" {
		return types.ActionSell, decimal.NewFromInt(1)
	}
	return types.ActionBuy, decimal.NewFromInt(5)
}

func TestStoreOutageAbandonsLiveDispatch(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	reg := strategy.NewRegistry()
	reg.MustRegister("voter", buyFirstSellSecond)
	_, err := st.Ledgers().Create(ctx, types.Ledger{StrategyID: "voter", Cash: dec(50000), PortfolioValue: dec(50000)})
	require.NoError(t, err)
	require.NoError(t, st.IdealPeriods().Upsert(ctx, types.IdealPeriodRecord{StrategyID: "voter", Window: "1d"}))
	_, err = st.Holdings().Adjust(ctx, "ZZZ", dec(1))
	require.NoError(t, err)

	broker := &closingBroker{fakeBroker: &fakeBroker{cash: dec(40000), pv: dec(100000)}, st: st}
	live := risk.NewDispatcher(risk.Config{
		ReserveFloor:     dec(15000),
		ConcentrationCap: dec(0.10),
		StopLossPct:      dec(0.03),
		TakeProfitPct:    dec(0.05),
		BaselineValue:    dec(100000),
	}, broker, st, nil)
	prices := map[string]decimal.Decimal{"AAA": dec(100), "ZZZ": dec(50)}
	o := New(Deps{
		Strategies: reg,
		Prices: market.PriceFunc(func(_ context.Context, inst string) (decimal.Decimal, error) {
			return prices[inst], nil
		}),
		History: market.HistoryFunc(func(context.Context, string, string) (market.Series, error) {
			return market.Series{{Close: 1}, {Close: 2}}, nil
		}),
		Status:   &statusSeq{seq: []market.Status{market.StatusOpen}},
		Universe: market.StaticUniverse{Symbols: []string{"ZZZ", "AAA"}},
		Store:    st,
		Ledgers:  ledger.NewService(st, ledger.DefaultLimits(), retry.Policy{MaxAttempts: 1, Min: time.Millisecond, Max: time.Millisecond}),
		Weights:  &staticWeights{weights: map[string]decimal.Decimal{"voter": dec(1)}},
		Live:     live,
	})

	o.Step(ctx)
	report := o.LastCycle()
	require.Len(t, report.Instruments, 2)
	aaa, zzz := report.Instruments[0], report.Instruments[1]
	require.NotNil(t, aaa.Verdict)
	assert.Equal(t, risk.KindQueued, aaa.Verdict.Kind)
	require.NotNil(t, zzz.Verdict)
	assert.Equal(t, risk.KindSell, zzz.Verdict.Kind)

	require.Len(t, broker.orders, 1, "queued buys are not submitted once the store is down")
	assert.Equal(t, types.SideSell, broker.orders[0].Side)
	assert.Contains(t, report.LiveError, types.ErrStoreUnavailable.Error())
	assert.Nil(t, report.Drain)
	assert.Nil(t, report.Snapshot)
}
