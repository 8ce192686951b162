package visual

import (
	"bytes"
	"testing"
	"time"

	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsJoinsByStrategy(t *testing.T) {
	ranks := []types.RankRecord{
		{StrategyID: "beta", Rank: 2},
		{StrategyID: "alpha", Rank: 1},
		{StrategyID: "ghost", Rank: 3},
	}
	ledgers := []types.Ledger{
		{StrategyID: "alpha", Cash: decimal.NewFromInt(100), PortfolioValue: decimal.NewFromInt(500)},
		{StrategyID: "beta", Cash: decimal.NewFromInt(50), PortfolioValue: decimal.NewFromInt(400)},
	}
	points := []types.PointsRecord{{StrategyID: "beta", TotalPoints: decimal.NewFromFloat(-1.5)}}

	rows := Rows(ranks, ledgers, points)
	require.Len(t, rows, 3)
	assert.Equal(t, "alpha", rows[0].StrategyID)
	assert.Equal(t, 500.0, rows[0].PortfolioValue)
	assert.Equal(t, -1.5, rows[1].Points)
	assert.Equal(t, 0.0, rows[2].PortfolioValue)
}

func TestRenderLeaderboard(t *testing.T) {
	rows := []Row{{Rank: 1, StrategyID: "rsi_indicator", PortfolioValue: 51000, Points: 3}}
	snaps := []types.PortfolioSnapshot{
		{ReturnPct: decimal.NewFromFloat(0.01), CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{ReturnPct: decimal.NewFromFloat(-0.02), CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderLeaderboard(&buf, rows, snaps))
	html := buf.String()
	assert.Contains(t, html, "Strategy leaderboard")
	assert.Contains(t, html, "rsi_indicator")
	assert.Contains(t, html, "Live return vs baseline")
}
