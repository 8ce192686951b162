package coefficient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quorum/internal/store/sqlite"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.SqliteStore {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "coef.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeCurve(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const validCurve = `
description: top heavy
coefficients:
  - rank: 2
    weight: 0.8
  - rank: 1
    weight: 1.0
  - rank: 3
    weight: 0.5
`

func TestCurveSyncsStore(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	writeCurve(t, path, validCurve)

	curve, err := NewCurve(ctx, path, st)
	require.NoError(t, err)
	snap := curve.Snapshot()
	assert.EqualValues(t, 1, snap.Version)
	require.Len(t, snap.Records, 3)
	assert.Equal(t, 1, snap.Records[0].Rank)

	recs, err := st.Coefficients().List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	mapper := NewStoreMapper(st)
	w, err := mapper.Weight(ctx, 2)
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.RequireFromString("0.8")))
	w, err = mapper.Weight(ctx, 9)
	require.NoError(t, err)
	assert.True(t, w.IsZero())
}

func TestCurveRejectsBadFilesAndKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	writeCurve(t, path, validCurve)
	curve, err := NewCurve(ctx, path, st)
	require.NoError(t, err)

	cases := map[string]string{
		"increasing": "coefficients:\n  - {rank: 1, weight: 0.5}\n  - {rank: 2, weight: 0.9}\n",
		"duplicate":  "coefficients:\n  - {rank: 1, weight: 0.5}\n  - {rank: 1, weight: 0.4}\n",
		"negative":   "coefficients:\n  - {rank: 1, weight: -1}\n",
		"zero rank":  "coefficients:\n  - {rank: 0, weight: 1}\n",
		"unknown":    "coefficients:\n  - {rank: 1, weight: 1}\nextra: true\n",
		"empty":      "coefficients: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			writeCurve(t, path, body)
			assert.Error(t, curve.Reload(ctx))
			recs, err := st.Coefficients().List(ctx)
			require.NoError(t, err)
			assert.Len(t, recs, 3)
			assert.EqualValues(t, 1, curve.Snapshot().Version)
		})
	}
}

func TestWeightsRefresh(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.Ranks().Replace(ctx, []types.RankRecord{
		{StrategyID: "rsi", Rank: 1, EpochID: "e"},
		{StrategyID: "macd", Rank: 2, EpochID: "e"},
		{StrategyID: "test", Rank: 3, EpochID: "e"},
		{StrategyID: "tail", Rank: 40, EpochID: "e"},
	}))
	mapper := TableMapper{
		1: decimal.NewFromInt(2),
		2: decimal.NewFromInt(1),
		3: decimal.NewFromInt(1),
	}
	w := NewWeights(st, mapper, map[string]struct{}{"test": {}})

	refreshed, err := w.RefreshSegment(ctx, "2026-10-16/open")
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.True(t, w.Weight("rsi").Equal(decimal.NewFromInt(2)))
	assert.True(t, w.Weight("macd").Equal(decimal.NewFromInt(1)))
	assert.True(t, w.Weight("test").IsZero())
	assert.True(t, w.Weight("tail").IsZero())
	assert.True(t, w.Weight("unranked").IsZero())
	assert.False(t, w.RefreshedAt().IsZero())

	refreshed, err = w.RefreshSegment(ctx, "2026-10-16/open")
	require.NoError(t, err)
	assert.False(t, refreshed, "same segment refreshes once")

	require.NoError(t, st.Ranks().Replace(ctx, []types.RankRecord{{StrategyID: "macd", Rank: 1, EpochID: "f"}}))
	refreshed, err = w.RefreshSegment(ctx, "2026-10-17/open")
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.True(t, w.Weight("macd").Equal(decimal.NewFromInt(2)))
	assert.True(t, w.Weight("rsi").IsZero())
	assert.Len(t, w.Snapshot(), 1)
}
