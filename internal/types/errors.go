package types

import "errors"

var (
	// ErrTransientFetch 价格/历史数据暂时不可用，可重试。
	ErrTransientFetch = errors.New("transient fetch failure")
	// ErrFetchExhausted 重试次数耗尽。
	ErrFetchExhausted = errors.New("fetch retries exhausted")
	// ErrConfigMissing 策略缺少 ideal period 或账本记录。
	ErrConfigMissing = errors.New("strategy configuration missing")
	// ErrCapacityExceeded 买入被保留资金或集中度检查拒绝。
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrNothingToSell 卖出时没有持仓。
	ErrNothingToSell = errors.New("nothing to sell")
	// ErrExecution 实盘下单失败。
	ErrExecution = errors.New("order execution failed")
	// ErrStoreUnavailable 存储不可用。
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrVersionConflict 乐观锁冲突，需要重读后重试。
	ErrVersionConflict = errors.New("ledger version conflict")
)
