// Package strategy 提供策略注册表以及基于 go-talib 的内置指标策略。
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"quorum/internal/market"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// Input 是一次策略评估所需的全部输入，账户字段来自模拟账本或实盘账户。
type Input struct {
	Instrument     string
	Series         market.Series
	Price          decimal.Decimal
	Cash           decimal.Decimal
	Held           decimal.Decimal
	PortfolioValue decimal.Decimal
}

// Func 是一个策略：给出动作与数量。
type Func func(Input) (types.Action, decimal.Decimal)

// Registry 是启动时构建一次的 策略ID → Func 映射，注册顺序即评估顺序。
type Registry struct {
	order []string
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(id string, fn Func) error {
	id = strings.TrimSpace(id)
	if id == "" || fn == nil {
		return fmt.Errorf("strategy id and func are required")
	}
	if _, dup := r.funcs[id]; dup {
		return fmt.Errorf("strategy %s already registered", id)
	}
	r.funcs[id] = fn
	r.order = append(r.order, id)
	return nil
}

func (r *Registry) MustRegister(id string, fn Func) {
	if err := r.Register(id, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(id string) (Func, bool) {
	fn, ok := r.funcs[id]
	return fn, ok
}

func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int { return len(r.order) }

// Only 返回只包含 enabled 中策略的新注册表；enabled 为 nil 时返回全部。
// 未注册的 ID 作为错误返回。
func (r *Registry) Only(enabled map[string]struct{}) (*Registry, error) {
	if enabled == nil {
		return r, nil
	}
	var missing []string
	for id := range enabled {
		if _, ok := r.funcs[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown strategies: %s", strings.Join(missing, ", "))
	}
	out := NewRegistry()
	for _, id := range r.order {
		if _, ok := enabled[id]; ok {
			out.MustRegister(id, r.funcs[id])
		}
	}
	return out, nil
}
