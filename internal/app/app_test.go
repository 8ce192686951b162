package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	brcfg "quorum/internal/config"
	"quorum/internal/market"
	"quorum/internal/store/history"
	"quorum/internal/strategy"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCurve = `description: test
coefficients:
  - rank: 1
    weight: 1.0
  - rank: 2
    weight: 0.5
`

func testConfig(t *testing.T) *brcfg.Config {
	t.Helper()
	dir := t.TempDir()
	curvePath := filepath.Join(dir, "coefficients.yaml")
	require.NoError(t, os.WriteFile(curvePath, []byte(testCurve), 0o644))
	return &brcfg.Config{
		App:   brcfg.AppConfig{Env: "test", LogLevel: "error"},
		Store: brcfg.StoreConfig{Path: filepath.Join(dir, "quorum.db")},
		Strategies: brcfg.StrategiesConfig{
			Reserved: []string{"test"},
			SeedPath: filepath.Join(dir, "missing.yaml"),
		},
		Simulation: brcfg.SimulationConfig{
			ReserveFloor:     15000,
			ConcentrationCap: 0.1,
			InitialCash:      100000,
			InitialTimeDelta: 1,
			TimeDeltaStep:    0.1,
		},
		Ranking:  brcfg.RankingConfig{Cron: "0 16 * * 1-5", CoefficientsPath: curvePath},
		Schedule: brcfg.ScheduleConfig{ActiveIntervalSeconds: 60, QuietIntervalSeconds: 30, Timezone: "America/New_York"},
		Retry:    brcfg.RetryConfig{MaxAttempts: 1},
		Market:   brcfg.MarketConfig{Universe: brcfg.UniverseConfig{Symbols: []string{"BTC/USD"}}},
	}
}

func holdAll(strategy.Input) (types.Action, decimal.Decimal) { return types.ActionHold, decimal.Zero }

func testStack() *MarketStack {
	return &MarketStack{
		Prices: market.PriceFunc(func(context.Context, string) (decimal.Decimal, error) {
			return decimal.NewFromInt(100), nil
		}),
		History: market.HistoryFunc(func(context.Context, string, string) (market.Series, error) {
			return nil, nil
		}),
		Status:   market.AlwaysOpen{},
		Universe: market.StaticUniverse{Symbols: []string{"BTC/USD"}},
		Cache:    history.NewMemoryCache(),
	}
}

func TestBuildSeedsStrategiesAndWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	reg := strategy.NewRegistry()
	reg.MustRegister("alpha", holdAll)
	reg.MustRegister("test", holdAll)

	a, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.NotNil(t, a.Orchestrator())
	assert.Nil(t, a.http, "no http_addr configured")
	require.NotNil(t, a.cron)
	assert.False(t, a.cron.Next().IsZero(), "next fire time is known before the cron starts")
	assert.False(t, a.Summary.NextEpoch.IsZero())

	require.NotNil(t, a.Summary)
	assert.ElementsMatch(t, []string{"alpha", "test"}, a.Summary.Seeded.LedgersCreated)
	assert.Equal(t, map[string]string{"alpha": "1d", "test": "1d"}, a.Summary.Seeded.PeriodsSet)
	assert.False(t, a.Summary.LiveEnabled)
	assert.Len(t, a.Summary.Curve.Records, 2)
}

func TestBuildRebuildDoesNotReseed(t *testing.T) {
	cfg := testConfig(t)
	reg := strategy.NewRegistry()
	reg.MustRegister("alpha", holdAll)

	first, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.NoError(t, err)
	first.close()

	second, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(second.close)
	assert.Empty(t, second.Summary.Seeded.LedgersCreated)
	assert.Empty(t, second.Summary.Seeded.PeriodsSet)
}

func TestBuildWithLiveUsesPaperBroker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Live = brcfg.LiveConfig{Enabled: true, ReserveFloor: 1000, ConcentrationCap: 0.2, BaselineValue: 100000}
	cfg.Broker = brcfg.BrokerConfig{Kind: "paper", PaperCash: 100000}
	cfg.App.HTTPAddr = "127.0.0.1:0"
	reg := strategy.NewRegistry()
	reg.MustRegister("alpha", holdAll)

	a, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.close)
	assert.True(t, a.Summary.LiveEnabled)
	assert.NotNil(t, a.http)
}

func TestBuildRejectsBadCurve(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Ranking.CoefficientsPath, []byte("coefficients: []\n"), 0o644))
	reg := strategy.NewRegistry()
	reg.MustRegister("alpha", holdAll)

	_, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ranking.Cron = ""
	reg := strategy.NewRegistry()
	reg.MustRegister("alpha", holdAll)

	a, err := NewAppBuilder(cfg, WithMarketStack(testStack()), WithRegistry(reg)).Build(context.Background())
	require.NoError(t, err)
	a.Summary = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
}

func TestSummaryPrint(t *testing.T) {
	s := &StartupSummary{
		Env:        "prod",
		Strategies: []string{"alpha", "beta"},
		Universe:   brcfg.UniverseConfig{Source: "alpaca"},
	}
	var buf bytes.Buffer
	s.Fprint(&buf)
	out := buf.String()
	assert.Contains(t, out, "启用策略(2): alpha, beta")
	assert.Contains(t, out, "标的列表: alpaca")
	assert.Contains(t, out, "未启用 (仅模拟)")
	assert.Contains(t, out, "系数曲线: (空)")
	assert.NotContains(t, out, "下次触发")

	s.EpochCron = "30 16 * * 1-5"
	s.NextEpoch = time.Date(2026, 10, 19, 16, 30, 0, 0, time.UTC)
	buf.Reset()
	s.Fprint(&buf)
	assert.Contains(t, buf.String(), "下次触发: 2026-10-19T16:30:00Z")
}
