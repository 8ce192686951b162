// Package symbol 处理标的代码：股票代码（AAPL、BRK.B）与加密货币对（BTC/USD）。
package symbol

import (
	"regexp"
	"strings"
)

// Pair 是一个 BASE/QUOTE 交易对。
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) Valid() bool { return p.Base != "" && p.Quote != "" }

// String 返回内部格式 BASE/QUOTE；无效时为空。
func (p Pair) String() string {
	if !p.Valid() {
		return ""
	}
	return p.Base + "/" + p.Quote
}

// knownQuotes 用于拆分无分隔符的交易所符号（BTCUSDT），长后缀优先。
var knownQuotes = []string{"USDT", "BUSD", "USDC", "TUSD", "USD", "BTC", "ETH", "BNB"}

// Parse 接受 "btc/usd"、"BTCUSDT"、"SOL/USDT:USDT" 等写法；无法识别时返回零值。
func Parse(s string) Pair {
	s = strings.ToUpper(strings.TrimSpace(s))
	s, _, _ = strings.Cut(s, ":")
	if base, quote, ok := strings.Cut(s, "/"); ok {
		return Pair{Base: strings.TrimSpace(base), Quote: strings.TrimSpace(quote)}
	}
	for _, q := range knownQuotes {
		if base, ok := strings.CutSuffix(s, q); ok && base != "" {
			return Pair{Base: base, Quote: q}
		}
	}
	return Pair{}
}

// Normalize 把交易对统一为 BASE/QUOTE；非交易对返回空。
func Normalize(s string) string {
	return Parse(s).String()
}

var instrumentPattern = regexp.MustCompile(`^[A-Z][A-Z.]*(/[A-Z]+)?$`)

// ValidInstrument 接受股票代码或加密货币对（均为大写），其余格式视为无效。
func ValidInstrument(s string) bool {
	return instrumentPattern.MatchString(s)
}

// IsPair reports whether s is a BASE/QUOTE pair.
func IsPair(s string) bool {
	return strings.Contains(s, "/") && ValidInstrument(s)
}
