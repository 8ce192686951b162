package livehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"quorum/internal/ensemble"
	"quorum/internal/market"
	"quorum/internal/orchestrator"
	"quorum/internal/store"
	"quorum/internal/store/sqlite"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCycles struct{ report orchestrator.CycleReport }

func (s stubCycles) LastCycle() orchestrator.CycleReport { return s.report }
func (s stubCycles) Epochs() int64                       { return 4 }

type stubWeights map[string]decimal.Decimal

func (s stubWeights) Snapshot() map[string]decimal.Decimal { return s }

func newTestServer(t *testing.T) (*Server, *sqlite.SqliteStore) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, id := range []string{"alpha", "beta"} {
		_, err := st.Ledgers().Create(ctx, types.Ledger{
			StrategyID: id, Cash: decimal.NewFromInt(50000), PortfolioValue: decimal.NewFromInt(50000),
			Holdings: map[string]types.Holding{},
		})
		require.NoError(t, err)
		require.NoError(t, st.Points().Ensure(ctx, id, decimal.Zero))
	}
	require.NoError(t, store.WithinTx(ctx, st, func(uow store.UnitOfWork) error {
		return uow.Ranks().Replace(ctx, []types.RankRecord{
			{StrategyID: "beta", Rank: 1, EpochID: "e1"},
			{StrategyID: "alpha", Rank: 2, EpochID: "e1"},
		})
	}))
	require.NoError(t, st.Orders().Save(ctx, &types.LiveOrder{
		ClientOrderID: "c1", Instrument: "BTC/USD", Side: types.SideBuy,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(30000), Status: "filled",
	}))

	cycles := stubCycles{report: orchestrator.CycleReport{
		Status: market.StatusOpen,
		Instruments: []orchestrator.InstrumentReport{{
			Instrument: "BTC/USD",
			Fused:      ensemble.Result{Action: types.ActionBuy, Quantity: decimal.NewFromInt(2)},
		}},
	}}
	srv, err := NewServer(ServerConfig{
		Store:   st,
		Cycles:  cycles,
		Weights: stubWeights{"beta": decimal.NewFromInt(1)},
	})
	require.NoError(t, err)
	return srv, st
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, st := newTestServer(t)
	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, st.Close())
	rec = get(t, srv, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestRanksEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/ranks")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ranks   []types.RankRecord `json:"ranks"`
		Epochs  int64              `json:"epochs"`
		Weights map[string]string  `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Ranks, 2)
	assert.Equal(t, "beta", body.Ranks[0].StrategyID)
	assert.Equal(t, int64(4), body.Epochs)
	assert.Equal(t, "1", body.Weights["beta"])
}

func TestLedgerEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/ledgers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alpha"`)

	rec = get(t, srv, "/api/ledgers/beta")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rank"`)

	rec = get(t, srv, "/api/ledgers/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCycleAndOrders(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/cycle")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"BTC/USD"`)

	rec = get(t, srv, "/api/live/orders?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_order_id":"c1"`)
}

func TestLeaderboardChart(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/charts/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "#1 beta")
}
