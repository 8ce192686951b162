package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quorum/internal/market"
	"quorum/internal/scheduler"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// timeframes 把内部周期映射为 Alpaca timeframe。
var timeframes = map[string]marketdata.TimeFrame{
	"1m":  marketdata.OneMin,
	"5m":  marketdata.NewTimeFrame(5, marketdata.Min),
	"15m": marketdata.NewTimeFrame(15, marketdata.Min),
	"30m": marketdata.NewTimeFrame(30, marketdata.Min),
	"1h":  marketdata.OneHour,
	"4h":  marketdata.NewTimeFrame(4, marketdata.Hour),
	"1d":  marketdata.OneDay,
	"1w":  marketdata.OneWeek,
}

// Timeframe 返回 Alpaca timeframe，未知周期返回 false。
func Timeframe(window string) (marketdata.TimeFrame, bool) {
	tf, ok := timeframes[strings.ToLower(strings.TrimSpace(window))]
	return tf, ok
}

func isCrypto(instrument string) bool {
	return market.Instrument{Symbol: instrument}.Continuous()
}

// Latest 返回最新卖一价（ap），缺失时退回买一价（bp）。
func (c *Client) Latest(ctx context.Context, instrument string) (decimal.Decimal, error) {
	sym := strings.ToUpper(strings.TrimSpace(instrument))
	if sym == "" {
		return decimal.Zero, fmt.Errorf("alpaca: instrument is required")
	}
	var ask, bid float64
	if isCrypto(sym) {
		q, err := call(ctx, "crypto quote", func() (*marketdata.CryptoQuote, error) {
			return c.data.GetLatestCryptoQuote(sym, marketdata.GetLatestCryptoQuoteRequest{})
		})
		if err != nil {
			return decimal.Zero, err
		}
		if q == nil {
			return decimal.Zero, fmt.Errorf("alpaca: no quote for %s", sym)
		}
		ask, bid = q.AskPrice, q.BidPrice
	} else {
		q, err := call(ctx, "stock quote", func() (*marketdata.Quote, error) {
			return c.data.GetLatestQuote(sym, marketdata.GetLatestQuoteRequest{})
		})
		if err != nil {
			return decimal.Zero, err
		}
		if q == nil {
			return decimal.Zero, fmt.Errorf("alpaca: no quote for %s", sym)
		}
		ask, bid = q.AskPrice, q.BidPrice
	}
	for _, p := range []float64{ask, bid} {
		if p > 0 {
			return decimal.NewFromFloat(p).Round(2), nil
		}
	}
	return decimal.Zero, market.Transient(fmt.Errorf("alpaca: empty quote for %s", sym))
}

// Series 拉取最近 HistoryLimit 根 K 线。
func (c *Client) Series(ctx context.Context, instrument, window string) (market.Series, error) {
	sym := strings.ToUpper(strings.TrimSpace(instrument))
	if sym == "" {
		return nil, fmt.Errorf("alpaca: instrument is required")
	}
	tf, ok := Timeframe(window)
	if !ok {
		return nil, fmt.Errorf("alpaca: unsupported window %q", window)
	}
	var start time.Time
	if dur, ok := scheduler.ParseIntervalDuration(window); ok {
		start = c.now().UTC().Add(-dur * time.Duration(c.cfg.HistoryLimit))
	}

	if isCrypto(sym) {
		bars, err := call(ctx, "crypto bars", func() ([]marketdata.CryptoBar, error) {
			return c.data.GetCryptoBars(sym, marketdata.GetCryptoBarsRequest{
				TimeFrame:  tf,
				Start:      start,
				TotalLimit: c.cfg.HistoryLimit,
			})
		})
		if err != nil {
			return nil, err
		}
		out := make(market.Series, 0, len(bars))
		for _, b := range bars {
			out = append(out, candle(b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, b.TradeCount))
		}
		return out, nil
	}

	bars, err := call(ctx, "stock bars", func() ([]marketdata.Bar, error) {
		return c.data.GetBars(sym, marketdata.GetBarsRequest{
			TimeFrame:  tf,
			Start:      start,
			TotalLimit: c.cfg.HistoryLimit,
		})
	})
	if err != nil {
		return nil, err
	}
	out := make(market.Series, 0, len(bars))
	for _, b := range bars {
		out = append(out, candle(b.Timestamp, b.Open, b.High, b.Low, b.Close, float64(b.Volume), b.TradeCount))
	}
	return out, nil
}

func candle(ts time.Time, open, high, low, closePrice, volume float64, trades uint64) market.Candle {
	return market.Candle{
		OpenTime: ts.UnixMilli(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Trades:   int64(trades),
	}
}

// List 返回所有 active 的加密资产。
func (c *Client) List(ctx context.Context) ([]market.Instrument, error) {
	assets, err := call(ctx, "assets", func() ([]alpacaapi.Asset, error) {
		return c.trading.GetAssets(alpacaapi.GetAssetsRequest{
			Status:     string(alpacaapi.AssetActive),
			AssetClass: string(alpacaapi.Crypto),
		})
	})
	if err != nil {
		return nil, err
	}
	var symbols []string
	for _, asset := range assets {
		if asset.Status != alpacaapi.AssetActive {
			continue
		}
		symbols = append(symbols, asset.Symbol)
	}
	return market.NormalizeInstruments(symbols), nil
}
