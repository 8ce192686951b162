package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quorum/internal/market"
	"quorum/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, h http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{RESTBaseURL: srv.URL, HistoryLimit: 3})
}

func TestLatestMapsUSDQuote(t *testing.T) {
	var gotSymbol string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		gotSymbol = r.URL.Query().Get("symbol")
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"30123.45"}`)
	})

	price, err := src.Latest(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", gotSymbol)
	assert.Equal(t, "30123.45", price.String())
}

func TestLatestErrorClassification(t *testing.T) {
	t.Run("invalid symbol is permanent", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		})
		_, err := src.Latest(context.Background(), "NOPE/USD")
		require.Error(t, err)
		assert.False(t, errors.Is(err, types.ErrTransientFetch))
	})
	t.Run("rate limit is transient", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests."}`)
		})
		_, err := src.Latest(context.Background(), "BTC/USD")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransientFetch))
	})
}

func TestSeriesDropsOpenCandle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	hour := time.Hour.Milliseconds()
	open := now.Truncate(time.Hour).UnixMilli()
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `[
			[%d,"10","12","9","11","100",%d,"0",5,"0","0","0"],
			[%d,"11","13","10","12","110",%d,"0",6,"0","0","0"],
			[%d,"12","14","11","13","120",%d,"0",7,"0","0","0"]
		]`, open-2*hour, open-hour-1, open-hour, open-1, open, open+hour-1)
	})
	src.now = func() time.Time { return now }

	series, err := src.Series(context.Background(), "ETH/USDT", "1H")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 12.0, series[1].Close)
	assert.Equal(t, int64(6), series[1].Trades)
}

func TestDropUnclosedKline(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	closed := market.Series{{OpenTime: now.UnixMilli() - 120_000}}
	assert.Len(t, dropUnclosedKline(closed, time.Minute, now, DefaultKlineGrace), 1)

	inProgress := market.Series{{OpenTime: now.UnixMilli() - 30_000}}
	assert.Empty(t, dropUnclosedKline(inProgress, time.Minute, now, DefaultKlineGrace))

	assert.Len(t, dropUnclosedKline(inProgress, 0, now, DefaultKlineGrace), 1)
}
