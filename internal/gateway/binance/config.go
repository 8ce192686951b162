package binance

import (
	"strings"
	"time"
)

// Config 描述 Binance 现货行情源。
type Config struct {
	RESTBaseURL  string
	QuoteAsset   string
	HTTPTimeout  time.Duration
	HistoryLimit int
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.binance.com"
	}
	out.QuoteAsset = strings.ToUpper(strings.TrimSpace(out.QuoteAsset))
	if out.QuoteAsset == "" {
		out.QuoteAsset = "USDT"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = 300
	}
	if out.HistoryLimit > maxHistoryLimit {
		out.HistoryLimit = maxHistoryLimit
	}
	return out
}
