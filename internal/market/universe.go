package market

import (
	"context"
	"sort"
	"strings"

	"quorum/internal/pkg/symbol"
)

// StaticUniverse 返回配置中固定的标的列表。
type StaticUniverse struct {
	Symbols []string
}

func (u StaticUniverse) List(context.Context) ([]Instrument, error) {
	return NormalizeInstruments(u.Symbols), nil
}

// NormalizeInstruments 去重、转大写并排序；加密货币对统一为 BASE/QUOTE 形式。
func NormalizeInstruments(list []string) []Instrument {
	seen := make(map[string]bool, len(list))
	out := make([]Instrument, 0, len(list))
	for _, raw := range list {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			continue
		}
		class := "us_equity"
		if strings.Contains(sym, "/") {
			class = "crypto"
			sym = symbol.Normalize(sym)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, Instrument{Symbol: sym, Class: class})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
