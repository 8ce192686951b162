// Package alpaca 通过官方 alpaca-trade-api-go SDK 提供行情、标的列表、交易时钟与下单。
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"quorum/internal/config"
	"quorum/internal/market"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const (
	defaultTradingURL = "https://paper-api.alpaca.markets"
	defaultDataURL    = "https://data.alpaca.markets"
)

// Config 描述 Alpaca 交易与行情两个入口。
type Config struct {
	TradingURL   string
	DataURL      string
	APIKey       string
	APISecret    string
	HTTPTimeout  time.Duration
	HistoryLimit int
}

// ConfigFrom 从 market.alpaca 配置段构造。
func ConfigFrom(c config.AlpacaConfig, historyLimit int) Config {
	return Config{
		TradingURL:   c.TradingURL,
		DataURL:      c.DataURL,
		APIKey:       c.APIKey,
		APISecret:    c.APISecret,
		HTTPTimeout:  time.Duration(c.TimeoutSeconds) * time.Second,
		HistoryLimit: historyLimit,
	}
}

// Client 组合 SDK 的交易客户端与行情客户端。
type Client struct {
	cfg     Config
	trading *alpacaapi.Client
	data    *marketdata.Client
	now     func() time.Time
}

// New constructs a client; credentials are required.
func New(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca api_key/api_secret 不能为空")
	}
	cfg.TradingURL = strings.TrimRight(strings.TrimSpace(cfg.TradingURL), "/")
	if cfg.TradingURL == "" {
		cfg.TradingURL = defaultTradingURL
	}
	cfg.DataURL = strings.TrimRight(strings.TrimSpace(cfg.DataURL), "/")
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 300
	}
	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	// SDK 自带的 429 重试关闭（RetryLimit<0），重试统一由 market.Retrying 负责。
	return &Client{
		cfg: cfg,
		trading: alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.TradingURL,
			RetryLimit: -1,
			HTTPClient: hc,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.DataURL,
			RetryLimit: -1,
			HTTPClient: hc,
		}),
		now: time.Now,
	}, nil
}

// call 执行一次 SDK 调用。SDK 不接收 ctx，调用前先检查取消。
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	out, err := fn()
	if err != nil {
		return zero, classify(op, err)
	}
	return out, nil
}

// classify 把 429/5xx 与网络错误标记为可重试，其余视为永久错误。
func classify(op string, err error) error {
	var apiErr *alpacaapi.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("alpaca %s 返回错误(HTTP %d): %s", op, apiErr.StatusCode, apiErr.Message)
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return market.Transient(wrapped)
		}
		return wrapped
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return market.Transient(fmt.Errorf("调用 alpaca %s 失败: %w", op, err))
	}
	return fmt.Errorf("alpaca %s: %w", op, err)
}
