package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quorum/internal/market"
	symbolpkg "quorum/internal/pkg/symbol"
	"quorum/internal/scheduler"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

const maxHistoryLimit = 1000

// Binance 现货限流/服务端繁忙错误码，视为可重试。
var transientCodes = map[int64]struct{}{
	-1001: {}, // DISCONNECTED
	-1003: {}, // TOO_MANY_REQUESTS
	-1007: {}, // TIMEOUT
	-1008: {}, // SERVER_BUSY
}

// Source 基于 go-binance 现货 SDK 实现 market.PriceOracle 与 market.HistoryProvider。
type Source struct {
	cfg       Config
	client    *binance.Client
	converter symbolpkg.BinanceConverter
	now       func() time.Time
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{
		cfg:       final,
		client:    client,
		converter: symbolpkg.BinanceConverter{Quote: final.QuoteAsset},
		now:       time.Now,
	}
}

// Latest 返回最新成交价。
func (s *Source) Latest(ctx context.Context, instrument string) (decimal.Decimal, error) {
	sym := s.converter.ToExchange(instrument)
	if sym == "" {
		return decimal.Zero, fmt.Errorf("binance: instrument is required")
	}
	prices, err := s.client.NewListPricesService().Symbol(sym).Do(ctx)
	if err != nil {
		return decimal.Zero, classify(fmt.Errorf("binance price %s: %w", sym, err))
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, sym) {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("binance price %s: %w", sym, err)
		}
		if !price.IsPositive() {
			return decimal.Zero, market.Transient(fmt.Errorf("binance price %s: non-positive %s", sym, p.Price))
		}
		return price, nil
	}
	return decimal.Zero, market.Transient(fmt.Errorf("binance price %s: empty response", sym))
}

// Series 拉取 window 周期的 K 线，丢弃未收盘的最后一根。
func (s *Source) Series(ctx context.Context, instrument, window string) (market.Series, error) {
	sym := s.converter.ToExchange(instrument)
	if sym == "" {
		return nil, fmt.Errorf("binance: instrument is required")
	}
	interval := strings.ToLower(strings.TrimSpace(window))
	if interval == "" {
		return nil, fmt.Errorf("binance: window is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(sym).Interval(interval).Limit(s.cfg.HistoryLimit).Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("binance klines %s@%s: %w", sym, interval, err))
	}
	out := make(market.Series, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
		out = dropUnclosedKline(out, dur, s.now().UTC(), DefaultKlineGrace)
	}
	return out, nil
}

// classify 把网络错误与限流错误标记为可重试，业务错误（如无效交易对）直接返回。
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientCodes[apiErr.Code]; ok {
			return market.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return market.Transient(err)
}

func parseFloat(raw string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f
}
