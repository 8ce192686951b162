package market

import (
	"context"
	"errors"
	"fmt"

	"quorum/internal/logger"
	"quorum/internal/pkg/retry"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
)

// Transient 把采集错误标记为可重试。
func Transient(err error) error {
	if err == nil || errors.Is(err, types.ErrTransientFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrTransientFetch, err)
}

func isTransient(err error) bool {
	return errors.Is(err, types.ErrTransientFetch)
}

// RetryingPrice 为 PriceOracle 加上有界指数退避。
type RetryingPrice struct {
	Inner  PriceOracle
	Policy retry.Policy
}

func (r RetryingPrice) Latest(ctx context.Context, instrument string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := retry.Do(ctx, r.Policy, isTransient, func(ctx context.Context, attempt int) error {
		p, err := r.Inner.Latest(ctx, instrument)
		if err != nil {
			logger.Warnf("price %s attempt %d failed: %v", instrument, attempt, err)
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return decimal.Zero, exhausted(instrument, err)
	}
	return price, nil
}

// RetryingHistory 为 HistoryProvider 加上有界指数退避。
type RetryingHistory struct {
	Inner  HistoryProvider
	Policy retry.Policy
}

func (r RetryingHistory) Series(ctx context.Context, instrument, window string) (Series, error) {
	var out Series
	err := retry.Do(ctx, r.Policy, isTransient, func(ctx context.Context, attempt int) error {
		s, err := r.Inner.Series(ctx, instrument, window)
		if err != nil {
			logger.Warnf("history %s@%s attempt %d failed: %v", instrument, window, attempt, err)
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, exhausted(instrument+"@"+window, err)
	}
	return out, nil
}

func exhausted(target string, err error) error {
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("%w: %s: %w", types.ErrFetchExhausted, target, err)
	}
	return err
}
