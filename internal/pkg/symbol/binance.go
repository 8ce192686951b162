package symbol

import "strings"

// BinanceConverter 把 BASE/QUOTE 转为 Binance 现货符号（BTCUSDT）。
// Binance 没有 USD 现货对，USD 计价映射到 Quote（默认 USDT）。
type BinanceConverter struct {
	Quote string
}

func (c BinanceConverter) ToExchange(instrument string) string {
	p := Parse(instrument)
	if !p.Valid() {
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(instrument)), "/", "")
	}
	if p.Quote == "USD" {
		p.Quote = c.usdQuote()
	}
	return p.Base + p.Quote
}

func (c BinanceConverter) FromExchange(raw string) string {
	return Normalize(raw)
}

func (c BinanceConverter) usdQuote() string {
	if q := strings.ToUpper(strings.TrimSpace(c.Quote)); q != "" {
		return q
	}
	return "USDT"
}
