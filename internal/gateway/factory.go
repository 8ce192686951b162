package gateway

import (
	"fmt"
	"time"

	"quorum/internal/config"
	"quorum/internal/gateway/alpaca"
	"quorum/internal/gateway/binance"
	"quorum/internal/gateway/paper"
	"quorum/internal/gateway/polygon"
	"quorum/internal/market"
	"quorum/internal/pkg/retry"
	"quorum/internal/risk"
	"quorum/internal/store"
)

// DataSource 是一个同时提供价格与历史序列的行情源。
type DataSource interface {
	market.PriceOracle
	market.HistoryProvider
}

// RetryPolicy 把 retry 配置段转换为退避策略。
func RetryPolicy(c config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		Min:         time.Duration(c.MinDelayMs) * time.Millisecond,
		Max:         time.Duration(c.MaxDelayMs) * time.Millisecond,
		Factor:      c.Factor,
		Jitter:      true,
	}
}

// NewAlpacaClient 在 data_source、universe 或 broker 任一使用 alpaca 时构造客户端。
func NewAlpacaClient(cfg *config.Config) (*alpaca.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if !usesAlpaca(cfg) {
		return nil, nil
	}
	return alpaca.New(alpaca.ConfigFrom(cfg.Market.Alpaca, cfg.Market.HistoryLimit))
}

func usesAlpaca(cfg *config.Config) bool {
	return cfg.Market.DataSource == "alpaca" ||
		cfg.Market.Universe.Source == "alpaca" ||
		cfg.Market.StatusSource == "alpaca" ||
		cfg.Broker.Kind == "alpaca"
}

// NewDataSourceFromConfig 返回原始（未加重试/缓存）的行情源。
func NewDataSourceFromConfig(cfg *config.Config, ac *alpaca.Client) (DataSource, error) {
	switch cfg.Market.DataSource {
	case "", "binance":
		b := cfg.Market.Binance
		return binance.New(binance.Config{
			RESTBaseURL:  b.RESTBaseURL,
			QuoteAsset:   b.QuoteAsset,
			HTTPTimeout:  time.Duration(b.TimeoutSeconds) * time.Second,
			HistoryLimit: cfg.Market.HistoryLimit,
		}), nil
	case "alpaca":
		if ac == nil {
			return nil, fmt.Errorf("alpaca client not configured")
		}
		return ac, nil
	default:
		return nil, fmt.Errorf("unsupported market.data_source: %s", cfg.Market.DataSource)
	}
}

// NewPriceOracle 为行情源加上有界重试。
func NewPriceOracle(cfg *config.Config, src DataSource) market.PriceOracle {
	return market.RetryingPrice{Inner: src, Policy: RetryPolicy(cfg.Retry)}
}

// NewHistoryProvider 在重试之外叠加按周期过期的序列缓存。
func NewHistoryProvider(cfg *config.Config, src DataSource, cache market.SeriesCache) market.HistoryProvider {
	return market.CachedHistory{
		Inner: market.RetryingHistory{Inner: src, Policy: RetryPolicy(cfg.Retry)},
		Cache: cache,
	}
}

func NewStatusOracleFromConfig(cfg *config.Config, ac *alpaca.Client) (market.StatusOracle, error) {
	switch cfg.Market.StatusSource {
	case "", "clock":
		return market.NewSessionClock(cfg.Schedule.Timezone)
	case "always_open":
		return market.AlwaysOpen{}, nil
	case "polygon":
		return polygon.NewStatusOracle(cfg.Market.Polygon.BaseURL, cfg.Market.Polygon.APIKey)
	case "alpaca":
		if ac == nil {
			return nil, fmt.Errorf("alpaca client not configured")
		}
		return alpaca.Clock{Client: ac}, nil
	default:
		return nil, fmt.Errorf("unsupported market.status_source: %s", cfg.Market.StatusSource)
	}
}

func NewUniverseFromConfig(cfg *config.Config, ac *alpaca.Client) (market.UniverseProvider, error) {
	switch cfg.Market.Universe.Source {
	case "", "static":
		if len(cfg.Market.Universe.Symbols) == 0 {
			return nil, fmt.Errorf("market.universe.symbols cannot be empty for static universe")
		}
		return market.StaticUniverse{Symbols: cfg.Market.Universe.Symbols}, nil
	case "alpaca":
		if ac == nil {
			return nil, fmt.Errorf("alpaca client not configured")
		}
		return ac, nil
	default:
		return nil, fmt.Errorf("unsupported market.universe.source: %s", cfg.Market.Universe.Source)
	}
}

func NewBrokerFromConfig(cfg *config.Config, st store.Store, prices market.PriceOracle, ac *alpaca.Client) (risk.Broker, error) {
	switch cfg.Broker.Kind {
	case "", "paper":
		return paper.NewBroker(st, prices, config.Dec(cfg.Broker.PaperCash)), nil
	case "alpaca":
		if ac == nil {
			return nil, fmt.Errorf("alpaca client not configured")
		}
		return ac, nil
	default:
		return nil, fmt.Errorf("unsupported broker.kind: %s", cfg.Broker.Kind)
	}
}
