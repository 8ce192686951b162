package market

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Status 是外部市场状态。
type Status string

const (
	StatusOpen       Status = "open"
	StatusEarlyHours Status = "early_hours"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// ParseStatus 把外部返回的状态字符串映射为 Status，未知值视为 CLOSED。
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return StatusOpen
	case "early_hours", "extended-hours", "pre":
		return StatusEarlyHours
	case "error":
		return StatusError
	default:
		return StatusClosed
	}
}

// Active reports whether the exchange session is running or about to.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusEarlyHours
}

// Instrument 是可交易标的。包含 "/" 的符号（如 BTC/USD）视为全天候交易的加密资产。
type Instrument struct {
	Symbol string `json:"symbol"`
	Class  string `json:"class,omitempty"`
}

func (i Instrument) String() string { return i.Symbol }

// Continuous reports whether the instrument trades outside exchange hours.
func (i Instrument) Continuous() bool {
	if strings.EqualFold(i.Class, "crypto") {
		return true
	}
	return strings.Contains(i.Symbol, "/")
}

// PriceOracle 返回标的最新价格。
type PriceOracle interface {
	Latest(ctx context.Context, instrument string) (decimal.Decimal, error)
}

// HistoryProvider 返回按 window 采样的历史序列。
type HistoryProvider interface {
	Series(ctx context.Context, instrument, window string) (Series, error)
}

// StatusOracle 返回当前市场状态。
type StatusOracle interface {
	Poll(ctx context.Context) (Status, error)
}

// UniverseProvider 返回当前可交易标的集合。
type UniverseProvider interface {
	List(ctx context.Context) ([]Instrument, error)
}

// PriceFunc adapts a function to PriceOracle.
type PriceFunc func(ctx context.Context, instrument string) (decimal.Decimal, error)

func (f PriceFunc) Latest(ctx context.Context, instrument string) (decimal.Decimal, error) {
	return f(ctx, instrument)
}

// HistoryFunc adapts a function to HistoryProvider.
type HistoryFunc func(ctx context.Context, instrument, window string) (Series, error)

func (f HistoryFunc) Series(ctx context.Context, instrument, window string) (Series, error) {
	return f(ctx, instrument, window)
}
