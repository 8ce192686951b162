package strategy

import (
	"math"

	"quorum/internal/market"
	"quorum/internal/types"

	talib "github.com/markcheno/go-talib"
)

// Builtins 返回全部内置指标策略，顺序固定。
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister("rsi_indicator", Sized(15, rsiSignal))
	r.MustRegister("macd_indicator", Sized(35, macdSignal))
	r.MustRegister("ema_indicator", Sized(27, emaCrossSignal))
	r.MustRegister("dema_indicator", Sized(42, demaSignal))
	r.MustRegister("kama_indicator", Sized(32, kamaSignal))
	r.MustRegister("bbands_indicator", Sized(21, bbandsSignal))
	r.MustRegister("sar_indicator", Sized(3, sarSignal))
	r.MustRegister("adx_indicator", Sized(29, adxSignal))
	r.MustRegister("cci_indicator", Sized(21, cciSignal))
	r.MustRegister("stoch_indicator", Sized(20, stochSignal))
	r.MustRegister("willr_indicator", Sized(15, willrSignal))
	r.MustRegister("roc_indicator", Sized(10, rocSignal))
	r.MustRegister("mfi_indicator", Sized(15, mfiSignal))
	r.MustRegister("obv_indicator", Sized(21, obvSignal))
	r.MustRegister("atr_indicator", Sized(16, atrSignal))
	return r
}

// band 把振荡指标映射到动作：低于 low 买入，高于 high 卖出，越过 extreme 为强信号。
func band(v, strongLow, low, high, strongHigh float64) types.Action {
	switch {
	case math.IsNaN(v):
		return types.ActionHold
	case v <= strongLow:
		return types.ActionStrongBuy
	case v <= low:
		return types.ActionBuy
	case v >= strongHigh:
		return types.ActionStrongSell
	case v >= high:
		return types.ActionSell
	}
	return types.ActionHold
}

// cross 判断 a 相对 b 在最后一根K线上的穿越。
func cross(a, b []float64) types.Action {
	if len(a) < 2 || len(b) < 2 {
		return types.ActionHold
	}
	pa, ca := a[len(a)-2], a[len(a)-1]
	pb, cb := b[len(b)-2], b[len(b)-1]
	if anyNaN(pa, ca, pb, cb) {
		return types.ActionHold
	}
	switch {
	case pa <= pb && ca > cb:
		return types.ActionBuy
	case pa >= pb && ca < cb:
		return types.ActionSell
	}
	return types.ActionHold
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func rsiSignal(s market.Series) types.Action {
	return band(last(talib.Rsi(s.Closes(), 14)), 20, 30, 70, 80)
}

func macdSignal(s market.Series) types.Action {
	macd, signal, _ := talib.Macd(s.Closes(), 12, 26, 9)
	return cross(macd, signal)
}

func emaCrossSignal(s market.Series) types.Action {
	closes := s.Closes()
	return cross(talib.Ema(closes, 12), talib.Ema(closes, 26))
}

func demaSignal(s market.Series) types.Action {
	closes := s.Closes()
	return cross(closes, talib.Dema(closes, 20))
}

func kamaSignal(s market.Series) types.Action {
	closes := s.Closes()
	return cross(closes, talib.Kama(closes, 30))
}

func bbandsSignal(s market.Series) types.Action {
	closes := s.Closes()
	upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	price, up, lo := last(closes), last(upper), last(lower)
	switch {
	case anyNaN(price, up, lo):
		return types.ActionHold
	case price < lo:
		return types.ActionBuy
	case price > up:
		return types.ActionSell
	}
	return types.ActionHold
}

func sarSignal(s market.Series) types.Action {
	return cross(s.Closes(), talib.Sar(s.Highs(), s.Lows(), 0.02, 0.2))
}

func adxSignal(s market.Series) types.Action {
	highs, lows, closes := s.Highs(), s.Lows(), s.Closes()
	adx := last(talib.Adx(highs, lows, closes, 14))
	plus := last(talib.PlusDI(highs, lows, closes, 14))
	minus := last(talib.MinusDI(highs, lows, closes, 14))
	if anyNaN(adx, plus, minus) || adx < 25 {
		return types.ActionHold
	}
	if plus > minus {
		return types.ActionBuy
	}
	return types.ActionSell
}

func cciSignal(s market.Series) types.Action {
	return band(last(talib.Cci(s.Highs(), s.Lows(), s.Closes(), 20)), -200, -100, 100, 200)
}

func stochSignal(s market.Series) types.Action {
	k, d := talib.Stoch(s.Highs(), s.Lows(), s.Closes(), 14, 3, talib.SMA, 3, talib.SMA)
	kv, dv := last(k), last(d)
	switch {
	case anyNaN(kv, dv):
		return types.ActionHold
	case kv < 20 && kv > dv:
		return types.ActionBuy
	case kv > 80 && kv < dv:
		return types.ActionSell
	}
	return types.ActionHold
}

func willrSignal(s market.Series) types.Action {
	return band(last(talib.WillR(s.Highs(), s.Lows(), s.Closes(), 14)), -95, -80, -20, -5)
}

func rocSignal(s market.Series) types.Action {
	v := last(talib.Roc(s.Closes(), 9))
	switch {
	case anyNaN(v):
		return types.ActionHold
	case v >= 3:
		return types.ActionBuy
	case v <= -3:
		return types.ActionSell
	}
	return types.ActionHold
}

func mfiSignal(s market.Series) types.Action {
	return band(last(talib.Mfi(s.Highs(), s.Lows(), s.Closes(), s.Volumes(), 14)), 10, 20, 80, 90)
}

// obvSignal 价量同向时跟随：OBV 与收盘价同时位于各自 20 期均线之上买入，同时之下卖出。
func obvSignal(s market.Series) types.Action {
	closes := s.Closes()
	obv := talib.Obv(closes, s.Volumes())
	o, oma := last(obv), last(talib.Sma(obv, 20))
	c, cma := last(closes), last(talib.Sma(closes, 20))
	switch {
	case anyNaN(o, oma, c, cma):
		return types.ActionHold
	case o > oma && c > cma:
		return types.ActionBuy
	case o < oma && c < cma:
		return types.ActionSell
	}
	return types.ActionHold
}

// atrSignal 收盘价相对前一根突破一个 ATR 视为趋势。
func atrSignal(s market.Series) types.Action {
	closes := s.Closes()
	atr := last(talib.Atr(s.Highs(), s.Lows(), closes, 14))
	if len(closes) < 2 || anyNaN(atr) || atr <= 0 {
		return types.ActionHold
	}
	move := closes[len(closes)-1] - closes[len(closes)-2]
	switch {
	case move > atr:
		return types.ActionBuy
	case move < -atr:
		return types.ActionSell
	}
	return types.ActionHold
}
