package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quorum/internal/config"
	"quorum/internal/market"
	"quorum/internal/store/sqlite"
	"quorum/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newStore(t *testing.T) *sqlite.SqliteStore {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLoadValidatesSchema(t *testing.T) {
	_, err := Load(writeSeed(t, "strategies:\n  rsi_indicator:\n    window: hourly\n"))
	require.Error(t, err)

	_, err = Load(writeSeed(t, "strategies:\n  rsi_indicator:\n    unknown: 1\n"))
	require.Error(t, err)

	f, err := Load(writeSeed(t, "defaults:\n  initial_cash: 1000\nstrategies:\n  RSI_Indicator:\n    window: 1h\n"))
	require.NoError(t, err)
	assert.Equal(t, "1h", f.entry("rsi_indicator").Window)
	assert.Equal(t, 1000.0, f.entry("rsi_indicator").InitialCash)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, f.Strategies)
}

func TestSeedCreatesOnlyMissingRecords(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	file, err := Load(writeSeed(t, `
defaults:
  sample_instrument: BTC/USD
strategies:
  rsi_indicator:
    window: 15m
    initial_cash: 20000
`))
	require.NoError(t, err)

	calls := 0
	history := market.HistoryFunc(func(_ context.Context, instrument, window string) (market.Series, error) {
		calls++
		assert.Equal(t, "BTC/USD", instrument)
		if window != "5m" {
			return nil, errors.New("unavailable")
		}
		return market.Series{{Close: 100}, {Close: 101}, {Close: 100.5}}, nil
	})
	seeder := NewSeeder(st, history, file, config.SimulationConfig{InitialCash: 50000, InitialTimeDelta: 1})

	report, err := seeder.Seed(ctx, []string{"rsi_indicator", "macd_indicator", "ema_indicator"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rsi_indicator", "macd_indicator", "ema_indicator"}, report.LedgersCreated)
	assert.Equal(t, map[string]string{"rsi_indicator": "15m", "macd_indicator": "5m", "ema_indicator": "5m"}, report.PeriodsSet)
	assert.Equal(t, len(strategy.DefaultPeriods), calls, "sample instrument evaluated once for all unconfigured strategies")

	rsi, err := st.Ledgers().Get(ctx, "rsi_indicator")
	require.NoError(t, err)
	assert.True(t, rsi.Cash.Equal(decimal.NewFromInt(20000)))
	macd, err := st.Ledgers().Get(ctx, "macd_indicator")
	require.NoError(t, err)
	assert.True(t, macd.PortfolioValue.Equal(decimal.NewFromInt(50000)))

	delta, err := st.TimeDelta().Get(ctx)
	require.NoError(t, err)
	assert.True(t, delta.Equal(decimal.NewFromInt(1)))

	again, err := seeder.Seed(ctx, []string{"rsi_indicator", "macd_indicator"})
	require.NoError(t, err)
	assert.Empty(t, again.LedgersCreated)
	assert.Empty(t, again.PeriodsSet)
}

func TestSeedFallsBackWithoutSampleInstrument(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	seeder := NewSeeder(st, nil, File{}, config.SimulationConfig{InitialCash: 50000, InitialTimeDelta: 1})

	report, err := seeder.Seed(ctx, []string{"atr_indicator"})
	require.NoError(t, err)
	assert.Equal(t, "1d", report.PeriodsSet["atr_indicator"])
}
